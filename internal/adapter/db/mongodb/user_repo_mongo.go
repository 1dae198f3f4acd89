package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"mongo-user-service/internal/domain/user"
	apperrors "mongo-user-service/pkg/errors"
	"mongo-user-service/pkg/logger"
)

// CountersCollection holds one sequence document per user collection.
const CountersCollection = "counters"

// UserRepoMongo implements the Repository interface using MongoDB.
type UserRepoMongo struct {
	users    *mongo.Collection // user documents
	counters *mongo.Collection // id sequences
	sequence string            // counters document _id for this collection
	log      *zap.Logger
}

// NewUserRepoMongo creates a new instance of UserRepoMongo over db.collection.
func NewUserRepoMongo(db *mongo.Database, collection string, log *zap.Logger) *UserRepoMongo {
	return &UserRepoMongo{
		users:    db.Collection(collection),
		counters: db.Collection(CountersCollection),
		sequence: collection,
		log:      log,
	}
}

// maxAssignAttempts bounds how often Create draws a new id after losing it
// to a client-supplied one.
const maxAssignAttempts = 5

// numericID matches documents whose id is a number. Documents written by other
// tools may lack one and are left out of the unique index.
var numericID = bson.M{"$type": "number"}

// EnsureIndexes creates the unique index backing id lookups.
func (r *UserRepoMongo) EnsureIndexes(ctx context.Context) error {
	name, err := r.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: user.IDKey, Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetName("id_unique").
			SetPartialFilterExpression(bson.M{user.IDKey: numericID}),
	})
	if err != nil {
		return fmt.Errorf("failed to create user id index: %w", err)
	}

	r.log.Info("user indexes ensured", zap.String("index", name))
	return nil
}

// SyncSequence moves the id sequence past the highest id already stored, so
// assigned ids start after existing documents.
func (r *UserRepoMongo) SyncSequence(ctx context.Context) error {
	var top struct {
		ID int64 `bson:"id"`
	}
	err := r.users.FindOne(ctx,
		bson.M{user.IDKey: numericID},
		options.FindOne().
			SetSort(bson.D{{Key: user.IDKey, Value: -1}}).
			SetProjection(bson.M{user.IDKey: 1, user.DocumentIDKey: 0}),
	).Decode(&top)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read highest user id: %w", err)
	}

	if err := r.advanceSequence(ctx, top.ID); err != nil {
		return err
	}
	r.log.Info("user id sequence synced", zap.Int64("max_id", top.ID))
	return nil
}

// advanceSequence raises the sequence to at least id.
func (r *UserRepoMongo) advanceSequence(ctx context.Context, id int64) error {
	_, err := r.counters.UpdateOne(ctx,
		bson.M{"_id": r.sequence},
		bson.M{"$max": bson.M{"seq": id}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to advance user id sequence: %w", err)
	}
	return nil
}

// nextID atomically increments and returns the collection's id sequence.
func (r *UserRepoMongo) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}

	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": r.sequence},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate user id: %w", err)
	}

	return counter.Seq, nil
}

// Create inserts fields as a new user document. A positive id is stored as
// given and raises the sequence; id 0 draws the next free id from the
// sequence, skipping ids taken by client-supplied ones.
func (r *UserRepoMongo) Create(ctx context.Context, id int64, fields map[string]any) (*user.User, error) {
	log := logger.WithContext(ctx, r.log)

	kept := make(map[string]any, len(fields))
	for k, v := range fields {
		if !user.IsReservedKey(k) {
			kept[k] = v
		}
	}

	if id > 0 {
		u, err := r.insert(ctx, id, kept)
		if err != nil {
			log.Error("failed to insert user", zap.Int64("id", id), zap.Error(err))
			return nil, err
		}
		if err := r.advanceSequence(ctx, id); err != nil {
			// the user is stored; a later assigned id that collides is retried
			log.Warn("user created but sequence not advanced", zap.Int64("id", id), zap.Error(err))
		}
		log.Info("user created in mongo", zap.Int64("id", id))
		return u, nil
	}

	for attempt := 1; ; attempt++ {
		next, err := r.nextID(ctx)
		if err != nil {
			log.Error("failed to allocate user id", zap.Error(err))
			return nil, err
		}

		u, err := r.insert(ctx, next, kept)
		if err == nil {
			log.Info("user created in mongo", zap.Int64("id", next))
			return u, nil
		}
		if !mongo.IsDuplicateKeyError(err) || attempt == maxAssignAttempts {
			log.Error("failed to insert user", zap.Int64("id", next), zap.Int("attempt", attempt), zap.Error(err))
			return nil, err
		}
		log.Warn("assigned user id already taken, drawing another", zap.Int64("id", next))
	}
}

func (r *UserRepoMongo) insert(ctx context.Context, id int64, fields map[string]any) (*user.User, error) {
	doc := make(bson.M, len(fields)+1)
	for k, v := range fields {
		doc[k] = v
	}
	doc[user.IDKey] = id

	res, err := r.users.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &user.User{
		ID:         id,
		DocumentID: documentID(res.InsertedID),
		Fields:     fields,
	}, nil
}

// GetByID retrieves the user whose id field equals id.
func (r *UserRepoMongo) GetByID(ctx context.Context, id int64) (*user.User, error) {
	var doc bson.M
	// $type keeps the filter within the partial id index
	err := r.users.FindOne(ctx, bson.M{user.IDKey: bson.M{"$eq": id, "$type": "number"}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NewNotFoundError("user", fmt.Sprintf("user not found: id=%d", id))
		}
		logger.WithContext(ctx, r.log).Error("failed to get user from mongo", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	u, err := toDomain(doc)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// List retrieves every user ordered by id.
func (r *UserRepoMongo) List(ctx context.Context) ([]user.User, error) {
	log := logger.WithContext(ctx, r.log)

	cursor, err := r.users.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: user.IDKey, Value: 1}}))
	if err != nil {
		log.Error("failed to list users from mongo", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		log.Error("failed to read user cursor", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]user.User, 0, len(docs))
	for _, doc := range docs {
		u, err := toDomain(doc)
		if err != nil {
			// Documents written outside this service may lack a numeric id
			log.Warn("skipping malformed user document", zap.Any("_id", normalize(doc[user.DocumentIDKey])), zap.Error(err))
			continue
		}
		users = append(users, u)
	}

	return users, nil
}

// toDomain converts a raw user document into the domain user.
func toDomain(doc bson.M) (user.User, error) {
	id, err := toInt64(doc[user.IDKey])
	if err != nil {
		return user.User{}, err
	}

	u := user.User{
		ID:         id,
		DocumentID: documentID(doc[user.DocumentIDKey]),
		Fields:     make(map[string]any, len(doc)),
	}
	for k, v := range doc {
		if user.IsReservedKey(k) {
			continue
		}
		u.Fields[k] = normalize(v)
	}
	return u, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("user id %v is not an integer", n)
		}
		return int64(n), nil
	case nil:
		return 0, errors.New("user document has no id")
	default:
		return 0, fmt.Errorf("user id has unsupported type %T", v)
	}
}

func documentID(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}

// normalize converts BSON-specific values into plain Go values that encode
// cleanly as JSON and protobuf Struct values.
func normalize(v any) any {
	switch t := v.(type) {
	case primitive.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = normalize(e.Value)
		}
		return m
	case primitive.M:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = normalize(e)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = normalize(e)
		}
		return m
	case primitive.A:
		return normalizeSlice(t)
	case []any:
		return normalizeSlice(t)
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC().Format(time.RFC3339Nano)
	case primitive.Timestamp:
		return time.Unix(int64(t.T), 0).UTC().Format(time.RFC3339)
	case primitive.Decimal128:
		return t.String()
	case primitive.Binary:
		return t.Data
	case primitive.Regex:
		return t.String()
	case primitive.Null, primitive.Undefined:
		return nil
	default:
		return v
	}
}

func normalizeSlice(in []any) []any {
	out := make([]any, len(in))
	for i, e := range in {
		out[i] = normalize(e)
	}
	return out
}
