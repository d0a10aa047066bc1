package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/freshfold/support-chat/internal/model"
	"github.com/freshfold/support-chat/internal/store"
)

var storedAt = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func threadDoc(t *testing.T, th *model.Thread) bson.D {
	t.Helper()
	raw, err := bson.Marshal(th)
	require.NoError(t, err)
	var doc bson.D
	require.NoError(t, bson.Unmarshal(raw, &doc))
	return doc
}

func namespace(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

// noMatch is a findAndModify reply that matched nothing.
func noMatch() bson.D {
	return mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil})
}

func TestUpdateThreadMissVsFailedCondition(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	pickup := store.ThreadCondition{Status: ptr(model.ThreadOpen), Unassigned: true}
	assign := store.ThreadUpdate{
		Status: ptr(model.ThreadPickedUp),
		Assign: &store.Assignment{AgentID: "a1", AgentName: "Ada", At: storedAt},
	}

	mt.Run("condition failed on existing thread", func(mt *mtest.T) {
		s := &Store{threads: mt.Coll}
		mt.AddMockResponses(
			noMatch(),
			mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, bson.D{{Key: "n", Value: int32(1)}}),
		)

		_, err := s.UpdateThread(context.Background(), "t1", pickup, assign)

		assert.ErrorIs(mt, err, store.ErrPreconditionFailed)
	})

	mt.Run("thread does not exist", func(mt *mtest.T) {
		s := &Store{threads: mt.Coll}
		mt.AddMockResponses(
			noMatch(),
			mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch),
		)

		_, err := s.UpdateThread(context.Background(), "t1", pickup, assign)

		assert.ErrorIs(mt, err, store.ErrNotFound)
	})

	mt.Run("unconditional miss skips the count", func(mt *mtest.T) {
		s := &Store{threads: mt.Coll}
		mt.AddMockResponses(noMatch())

		_, err := s.UpdateThread(context.Background(), "t1", store.ThreadCondition{}, store.ThreadUpdate{HiddenFromAgents: ptr(true)})

		assert.ErrorIs(mt, err, store.ErrNotFound)
	})

	mt.Run("returns the updated thread", func(mt *mtest.T) {
		s := &Store{threads: mt.Coll}
		th := model.NewThread("t1", "c1", "b1", storedAt)
		th.Status = model.ThreadPickedUp
		th.AssignedAgentID = ptr("a1")
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: threadDoc(mt.T, th)}))

		got, err := s.UpdateThread(context.Background(), "t1", pickup, assign)

		require.NoError(mt, err)
		assert.Equal(mt, model.ThreadPickedUp, got.Status)
		assert.Equal(mt, "a1", *got.AssignedAgentID)
	})
}

func TestGetOrCreateThreadDuplicateKeyReadsWinner(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("lost upsert race", func(mt *mtest.T) {
		s := &Store{threads: mt.Coll}
		winner := model.NewThread("t-winner", "c1", "b1", storedAt)
		mt.AddMockResponses(
			mtest.CreateCommandErrorResponse(mtest.CommandError{
				Code:    11000,
				Name:    "DuplicateKey",
				Message: "E11000 duplicate key error collection: chat_threads index: thread_customer_branch",
			}),
			mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, threadDoc(mt.T, winner)),
		)

		got, created, err := s.GetOrCreateThread(context.Background(), "c1", "b1", storedAt)

		require.NoError(mt, err)
		assert.False(mt, created)
		assert.Equal(mt, "t-winner", got.ID)
	})

	mt.Run("existing thread is not reported as created", func(mt *mtest.T) {
		s := &Store{threads: mt.Coll}
		existing := model.NewThread("t-old", "c1", "b1", storedAt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: threadDoc(mt.T, existing)}))

		got, created, err := s.GetOrCreateThread(context.Background(), "c1", "b1", storedAt.Add(time.Hour))

		require.NoError(mt, err)
		assert.False(mt, created)
		assert.Equal(mt, "t-old", got.ID)
	})
}
