package mongodb

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/freshfold/support-chat/internal/model"
	"github.com/freshfold/support-chat/internal/store"
)

// threadFilter builds the selector for a conditional thread update.
func threadFilter(id string, c store.ThreadCondition) bson.M {
	filter := bson.M{"_id": id}
	if c.Status != nil {
		filter["status"] = *c.Status
	}
	if c.Unassigned {
		filter["assignedAgentId"] = nil
	}
	if c.Assigned {
		filter["assignedAgentId"] = bson.M{"$ne": nil}
	}
	if c.AutoResponseSent != nil {
		filter["autoResponseSent"] = *c.AutoResponseSent
	}
	return filter
}

// threadUpdateDoc translates u into update operators. It mirrors
// store.ThreadUpdate.Apply: a reset followed by an increment on the same
// counter becomes a single $set.
func threadUpdateDoc(u store.ThreadUpdate) bson.M {
	set := bson.M{}
	inc := bson.M{}

	if u.Status != nil {
		set["status"] = *u.Status
	}
	if u.ClearAssignment {
		set["assignedAgentId"] = nil
		set["assignedAgentName"] = nil
		set["assignedAt"] = nil
	}
	if u.Assign != nil {
		set["assignedAgentId"] = u.Assign.AgentID
		set["assignedAgentName"] = u.Assign.AgentName
		set["assignedAt"] = u.Assign.At
	}
	if u.ClearResolvedAt {
		set["resolvedAt"] = nil
	}
	if u.ResolvedAt != nil {
		set["resolvedAt"] = *u.ResolvedAt
	}
	if u.ResolutionTimeMinutes != nil {
		set["resolutionTimeMinutes"] = *u.ResolutionTimeMinutes
	}
	if u.LastMessageText != nil {
		set["lastMessageText"] = *u.LastMessageText
	}
	if u.LastMessageAt != nil {
		set["lastMessageAt"] = *u.LastMessageAt
	}
	counter(set, inc, "unreadCountAgent", u.ResetUnreadAgent, u.IncUnreadAgent)
	counter(set, inc, "unreadCountCustomer", u.ResetUnreadCustomer, u.IncUnreadCustomer)
	if u.AutoResponseSent != nil {
		set["autoResponseSent"] = *u.AutoResponseSent
	}
	if u.HiddenFromAgents != nil {
		set["isHiddenFromAgents"] = *u.HiddenFromAgents
	}
	if u.FirstResponseAt != nil {
		set["firstResponseAt"] = *u.FirstResponseAt
	}
	if u.LastAgentReplyAt != nil {
		set["lastAgentReplyAt"] = *u.LastAgentReplyAt
	}

	doc := bson.M{}
	if len(set) > 0 {
		doc["$set"] = set
	}
	if len(inc) > 0 {
		doc["$inc"] = inc
	}
	return doc
}

func counter(set, inc bson.M, field string, reset bool, delta int) {
	switch {
	case reset:
		set[field] = delta
	case delta != 0:
		inc[field] = delta
	}
}

// branchAgentsFilter selects active agents who should hear about branchID.
func branchAgentsFilter(branchID string) bson.M {
	return bson.M{
		"role":      model.RoleAgent,
		"isRevoked": bson.M{"$ne": true},
		"$or": bson.A{
			bson.M{"isMaster": true},
			bson.M{"seesAllBranches": true},
			bson.M{"assignedBranches": branchID},
			bson.M{"subscribedBranches": branchID},
		},
	}
}

// branchThreadsFilter selects a branch's threads visible to agents.
func branchThreadsFilter(branchID string, status model.ThreadStatus) bson.M {
	filter := bson.M{
		"branchId":           branchID,
		"isHiddenFromAgents": bson.M{"$ne": true},
	}
	if status != "" {
		filter["status"] = status
	}
	return filter
}
