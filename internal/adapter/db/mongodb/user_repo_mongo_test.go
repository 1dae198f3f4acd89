package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.uber.org/zap/zaptest"

	apperrors "mongo-user-service/pkg/errors"
)

func newMockTest(t *testing.T) *mtest.T {
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

func counterResponse(seq int64) bson.D {
	return mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
		{Key: "_id", Value: "users"},
		{Key: "seq", Value: seq},
	}})
}

func duplicateIDResponse() bson.D {
	return mtest.CreateWriteErrorsResponse(mtest.WriteError{
		Index:   0,
		Code:    11000,
		Message: "E11000 duplicate key error collection: userdb.users index: id_unique",
	})
}

func insertedID(t *testing.T, evt *event.CommandStartedEvent) int64 {
	t.Helper()
	require.NotNil(t, evt)
	require.Equal(t, "insert", evt.CommandName)
	return evt.Command.Lookup("documents", "0", "id").Int64()
}

func TestUserRepoMongo_Create(t *testing.T) {
	mt := newMockTest(t)

	mt.Run("assigns next id and keeps fields verbatim", func(mt *mtest.T) {
		repo := NewUserRepoMongo(mt.DB, "users", zaptest.NewLogger(t))

		mt.AddMockResponses(
			counterResponse(7),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
		)

		u, err := repo.Create(context.Background(), 0, map[string]any{
			"name":     "Alice",
			"age":      float64(30),
			"<b>x</b>": true,
			"a.b":      "dotted",
			"_id":      "client supplied",
		})
		require.NoError(mt, err)

		assert.Equal(mt, int64(7), u.ID)
		assert.Len(mt, u.DocumentID, 24, "ObjectID hex")
		assert.Equal(mt, map[string]any{
			"name":     "Alice",
			"age":      float64(30),
			"<b>x</b>": true,
			"a.b":      "dotted",
		}, u.Fields)

		assert.Equal(mt, "findAndModify", mt.GetStartedEvent().CommandName)
		assert.Equal(mt, int64(7), insertedID(mt.T, mt.GetStartedEvent()))
	})

	mt.Run("empty document", func(mt *mtest.T) {
		repo := NewUserRepoMongo(mt.DB, "users", zaptest.NewLogger(t))

		mt.AddMockResponses(
			counterResponse(1),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
		)

		u, err := repo.Create(context.Background(), 0, map[string]any{})
		require.NoError(mt, err)
		assert.Equal(mt, int64(1), u.ID)
		assert.Empty(mt, u.Fields)
	})

	mt.Run("keeps client id and advances sequence", func(mt *mtest.T) {
		repo := NewUserRepoMongo(mt.DB, "users", zaptest.NewLogger(t))

		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
		)

		u, err := repo.Create(context.Background(), 5, map[string]any{"name": "Bob"})
		require.NoError(mt, err)
		assert.Equal(mt, int64(5), u.ID)
		assert.Equal(mt, map[string]any{"name": "Bob"}, u.Fields)

		assert.Equal(mt, int64(5), insertedID(mt.T, mt.GetStartedEvent()))

		update := mt.GetStartedEvent()
		require.NotNil(mt, update)
		assert.Equal(mt, "update", update.CommandName)
		assert.Equal(mt, CountersCollection, update.Command.Lookup("update").StringValue())
		assert.Equal(mt, int64(5), update.Command.Lookup("updates", "0", "u", "$max", "seq").Int64())
	})

	mt.Run("client id survives sequence failure", func(mt *mtest.T) {
		repo := NewUserRepoMongo(mt.DB, "users", zaptest.NewLogger(t))

		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 13, Name: "Unauthorized", Message: "not authorized"}),
		)

		u, err := repo.Create(context.Background(), 12, map[string]any{"name": "Dan"})
		require.NoError(mt, err)
		assert.Equal(mt, int64(12), u.ID)
	})

	mt.Run("taken client id", func(mt *mtest.T) {
		repo := NewUserRepoMongo(mt.DB, "users", zaptest.NewLogger(t))

		mt.AddMockResponses(duplicateIDResponse())

		u, err := repo.Create(context.Background(), 5, map[string]any{"name": "Bob"})
		require.Error(mt, err)
		assert.Nil(mt, u)
		assert.Contains(mt, err.Error(), "failed to create user")
	})

	mt.Run("skips ids taken by client ids", func(mt *mtest.T) {
		repo := NewUserRepoMongo(mt.DB, "users", zaptest.NewLogger(t))

		mt.AddMockResponses(
			counterResponse(5),
			duplicateIDResponse(),
			counterResponse(6),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
		)

		u, err := repo.Create(context.Background(), 0, map[string]any{"name": "Eve"})
		require.NoError(mt, err)
		assert.Equal(mt, int64(6), u.ID)
	})

	mt.Run("gives up after repeated collisions", func(mt *mtest.T) {
		repo := NewUserRepoMongo(mt.DB, "users", zaptest.NewLogger(t))

		for seq := int64(1); seq <= maxAssignAttempts; seq++ {
			mt.AddMockResponses(counterResponse(seq), duplicateIDResponse())
		}

		_, err := repo.Create(context.Background(), 0, map[string]any{"name": "Eve"})
		require.Error(mt, err)
		assert.True(mt, mongo.IsDuplicateKeyError(err))
	})

	mt.Run("counter failure", func(mt *mtest.T) {
		repo := NewUserRepoMongo(mt.DB, "users", zaptest.NewLogger(t))

		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    13,
			Name:    "Unauthorized",
			Message: "not authorized on userdb",
		}))

		u, err := repo.Create(context.Background(), 0, map[string]any{"name": "Alice"})
		require.Error(mt, err)
		assert.Nil(mt, u)
		assert.Contains(mt, err.Error(), "failed to allocate user id")
	})
}

func TestUserRepoMongo_SyncSequence(t *testing.T) {
	mt := newMockTest(t)
	ns := "userdb.users"

	mt.Run("raises sequence to highest id", func(mt *mtest.T) {
		repo := NewUserRepoMongo(mt.DB, "users", zaptest.NewLogger(t))

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "id", Value: int64(9)}}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
		)

		require.NoError(mt, repo.SyncSequence(context.Background()))

		find := mt.GetStartedEvent()
		require.NotNil(mt, find)
		assert.Equal(mt, "find", find.CommandName)
		assert.Equal(mt, int64(-1), find.Command.Lookup("sort", "id").AsInt64())

		update := mt.GetStartedEvent()
		require.NotNil(mt, update)
		assert.Equal(mt, "update", update.CommandName)
		assert.Equal(mt, int64(9), update.Command.Lookup("updates", "0", "u", "$max", "seq").Int64())
	})

	mt.Run("empty collection leaves sequence alone", func(mt *mtest.T) {
		repo := NewUserRepoMongo(mt.DB, "users", zaptest.NewLogger(t))

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		require.NoError(mt, repo.SyncSequence(context.Background()))

		assert.Equal(mt, "find", mt.GetStartedEvent().CommandName)
		assert.Nil(mt, mt.GetStartedEvent())
	})

	mt.Run("find error", func(mt *mtest.T) {
		repo := NewUserRepoMongo(mt.DB, "users", zaptest.NewLogger(t))

		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    96,
			Name:    "OperationFailed",
			Message: "operation failed",
		}))

		err := repo.SyncSequence(context.Background())
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "failed to read highest user id")
	})
}

func TestUserRepoMongo_GetByID(t *testing.T) {
	mt := newMockTest(t)
	ns := "userdb.users"

	mt.Run("found", func(mt *mtest.T) {
		repo := NewUserRepoMongo(mt.DB, "users", zaptest.NewLogger(t))
		oid := primitive.NewObjectID()
		created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: oid},
			{Key: "id", Value: int64(3)},
			{Key: "name", Value: "Carol"},
			{Key: "createdAt", Value: primitive.NewDateTimeFromTime(created)},
			{Key: "address", Value: bson.D{{Key: "city", Value: "Hanoi"}}},
			{Key: "tags", Value: bson.A{"a", int32(2)}},
		}))

		u, err := repo.GetByID(context.Background(), 3)
		require.NoError(mt, err)

		assert.Equal(mt, int64(3), u.ID)
		assert.Equal(mt, oid.Hex(), u.DocumentID)
		assert.Equal(mt, "Carol", u.Fields["name"])
		assert.Equal(mt, "2024-03-01T10:00:00Z", u.Fields["createdAt"])
		assert.Equal(mt, map[string]any{"city": "Hanoi"}, u.Fields["address"])
		assert.Equal(mt, []any{"a", int32(2)}, u.Fields["tags"])
		assert.NotContains(mt, u.Fields, "id")
		assert.NotContains(mt, u.Fields, "_id")
	})

	mt.Run("not found", func(mt *mtest.T) {
		repo := NewUserRepoMongo(mt.DB, "users", zaptest.NewLogger(t))

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		u, err := repo.GetByID(context.Background(), 42)
		assert.Nil(mt, u)
		assert.True(mt, apperrors.IsNotFound(err))
	})

	mt.Run("server error", func(mt *mtest.T) {
		repo := NewUserRepoMongo(mt.DB, "users", zaptest.NewLogger(t))

		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    96,
			Name:    "OperationFailed",
			Message: "operation failed",
		}))

		_, err := repo.GetByID(context.Background(), 1)
		require.Error(mt, err)
		assert.False(mt, apperrors.IsNotFound(err))
	})
}

func TestUserRepoMongo_List(t *testing.T) {
	mt := newMockTest(t)
	ns := "userdb.users"

	mt.Run("returns all documents across batches", func(mt *mtest.T) {
		repo := NewUserRepoMongo(mt.DB, "users", zaptest.NewLogger(t))

		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, ns, mtest.FirstBatch,
				bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "id", Value: int64(1)}, {Key: "name", Value: "Alice"}},
				bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "id", Value: int32(2)}, {Key: "name", Value: "Bob"}},
			),
			mtest.CreateCursorResponse(0, ns, mtest.NextBatch,
				bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "id", Value: float64(3)}, {Key: "name", Value: "Carol"}},
			),
		)

		users, err := repo.List(context.Background())
		require.NoError(mt, err)
		require.Len(mt, users, 3)

		assert.Equal(mt, int64(1), users[0].ID)
		assert.Equal(mt, int64(2), users[1].ID)
		assert.Equal(mt, int64(3), users[2].ID)
		assert.Equal(mt, "Carol", users[2].Fields["name"])
	})

	mt.Run("empty collection", func(mt *mtest.T) {
		repo := NewUserRepoMongo(mt.DB, "users", zaptest.NewLogger(t))

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		users, err := repo.List(context.Background())
		require.NoError(mt, err)
		assert.Empty(mt, users)
	})

	mt.Run("skips documents without numeric id", func(mt *mtest.T) {
		repo := NewUserRepoMongo(mt.DB, "users", zaptest.NewLogger(t))

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "name", Value: "legacy"}},
			bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "id", Value: "x"}},
			bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "id", Value: int64(9)}, {Key: "name", Value: "ok"}},
		))

		users, err := repo.List(context.Background())
		require.NoError(mt, err)
		require.Len(mt, users, 1)
		assert.Equal(mt, int64(9), users[0].ID)
	})

	mt.Run("find error", func(mt *mtest.T) {
		repo := NewUserRepoMongo(mt.DB, "users", zaptest.NewLogger(t))

		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    11601,
			Name:    "Interrupted",
			Message: "operation was interrupted",
		}))

		users, err := repo.List(context.Background())
		require.Error(mt, err)
		assert.Nil(mt, users)
	})
}

func TestUserRepoMongo_EnsureIndexes(t *testing.T) {
	mt := newMockTest(t)

	mt.Run("creates unique id index", func(mt *mtest.T) {
		repo := NewUserRepoMongo(mt.DB, "users", zaptest.NewLogger(t))

		mt.AddMockResponses(mtest.CreateSuccessResponse())

		require.NoError(mt, repo.EnsureIndexes(context.Background()))

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "createIndexes", evt.CommandName)
		index := evt.Command.Lookup("indexes", "0")
		assert.True(mt, index.Document().Lookup("unique").Boolean())
		assert.Equal(mt, "number", index.Document().Lookup("partialFilterExpression", "id", "$type").StringValue())
	})
}

func TestNormalize(t *testing.T) {
	oid := primitive.NewObjectID()
	dec, err := primitive.ParseDecimal128("12.50")
	require.NoError(t, err)

	got := normalize(primitive.M{
		"ref":   oid,
		"price": dec,
		"none":  primitive.Null{},
		"list":  primitive.A{primitive.D{{Key: "k", Value: oid}}},
	})

	assert.Equal(t, map[string]any{
		"ref":   oid.Hex(),
		"price": "12.50",
		"none":  nil,
		"list":  []any{map[string]any{"k": oid.Hex()}},
	}, got)
}
