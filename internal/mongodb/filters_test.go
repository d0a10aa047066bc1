package mongodb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/freshfold/support-chat/internal/model"
	"github.com/freshfold/support-chat/internal/store"
)

func ptr[T any](v T) *T { return &v }

func TestThreadFilterPickupPrecondition(t *testing.T) {
	got := threadFilter("t1", store.ThreadCondition{Status: ptr(model.ThreadOpen), Unassigned: true})

	assert.Equal(t, bson.M{
		"_id":             "t1",
		"status":          model.ThreadOpen,
		"assignedAgentId": nil,
	}, got)
}

func TestThreadFilterRequiresAssignee(t *testing.T) {
	got := threadFilter("t1", store.ThreadCondition{Status: ptr(model.ThreadResolved), Assigned: true})

	assert.Equal(t, bson.M{
		"_id":             "t1",
		"status":          model.ThreadResolved,
		"assignedAgentId": bson.M{"$ne": nil},
	}, got)
}

func TestThreadUpdateDocPickup(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	got := threadUpdateDoc(store.ThreadUpdate{
		Status: ptr(model.ThreadPickedUp),
		Assign: &store.Assignment{AgentID: "a1", AgentName: "Ada", At: at},
	})

	assert.Equal(t, bson.M{"$set": bson.M{
		"status":            model.ThreadPickedUp,
		"assignedAgentId":   "a1",
		"assignedAgentName": "Ada",
		"assignedAt":        at,
	}}, got)
}

func TestThreadUpdateDocCounters(t *testing.T) {
	got := threadUpdateDoc(store.ThreadUpdate{
		IncUnreadAgent:      1,
		ResetUnreadCustomer: true,
	})

	assert.Equal(t, bson.M{
		"$set": bson.M{"unreadCountCustomer": 0},
		"$inc": bson.M{"unreadCountAgent": 1},
	}, got)

	got = threadUpdateDoc(store.ThreadUpdate{ResetUnreadAgent: true, IncUnreadAgent: 2})
	assert.Equal(t, bson.M{"$set": bson.M{"unreadCountAgent": 2}}, got)
}

func TestThreadUpdateDocReopen(t *testing.T) {
	got := threadUpdateDoc(store.ThreadUpdate{
		Status:           ptr(model.ThreadOpen),
		ClearAssignment:  true,
		ClearResolvedAt:  true,
		AutoResponseSent: ptr(false),
	})

	assert.Equal(t, bson.M{"$set": bson.M{
		"status":            model.ThreadOpen,
		"assignedAgentId":   nil,
		"assignedAgentName": nil,
		"assignedAt":        nil,
		"resolvedAt":        nil,
		"autoResponseSent":  false,
	}}, got)
}

func TestBranchThreadsFilter(t *testing.T) {
	assert.Equal(t, bson.M{
		"branchId":           "b",
		"isHiddenFromAgents": bson.M{"$ne": true},
	}, branchThreadsFilter("b", ""))

	assert.Equal(t, model.ThreadResolved, branchThreadsFilter("b", model.ThreadResolved)["status"])
}

func TestInsertFieldsDropsFilterKeys(t *testing.T) {
	th := model.NewThread("t1", "c", "b", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))

	doc, err := insertFields(th, "customerId", "branchId")

	assert.NoError(t, err)
	assert.Equal(t, "t1", doc["_id"])
	assert.Equal(t, "open", doc["status"])
	assert.NotContains(t, doc, "customerId")
	assert.NotContains(t, doc, "branchId")
}
