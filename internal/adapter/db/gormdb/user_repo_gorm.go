package gormdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"mongo-user-service/internal/domain/user"
	apperrors "mongo-user-service/pkg/errors"
	"mongo-user-service/pkg/logger"
)

// UserRepoGorm implements the Repository interface on a relational database
// through GORM. Free-form user attributes are stored as one JSON document per row.
type UserRepoGorm struct {
	db  *gorm.DB    // GORM database connection
	log *zap.Logger // Structured logger for database operations
}

// NewUserRepoGorm creates a new instance of UserRepoGorm.
func NewUserRepoGorm(db *gorm.DB, log *zap.Logger) *UserRepoGorm {
	return &UserRepoGorm{db: db, log: log}
}

// UserSchema represents the database schema for the users table.
type UserSchema struct {
	ID   int64  `gorm:"primaryKey;autoIncrement"` // Numeric identifier assigned by the database
	Data string `gorm:"type:text;not null"`       // JSON object holding the user's attributes
}

// TableName specifies the table name for the UserSchema model.
func (UserSchema) TableName() string {
	return "users"
}

// AutoMigrate creates or updates the users table.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&UserSchema{}); err != nil {
		return fmt.Errorf("failed to migrate users table: %w", err)
	}
	return nil
}

// syncSerialSQL moves the postgres id sequence past ids inserted explicitly.
const syncSerialSQL = `SELECT setval(pg_get_serial_sequence('users', 'id'), (SELECT MAX(id) FROM users))`

// Create inserts a new user row. A positive id is used as the primary key;
// id 0 lets the database assign one.
func (r *UserRepoGorm) Create(ctx context.Context, id int64, fields map[string]any) (*user.User, error) {
	log := logger.WithContext(ctx, r.log)

	kept := make(map[string]any, len(fields))
	for k, v := range fields {
		if user.IsReservedKey(k) {
			continue
		}
		kept[k] = v
	}

	data, err := json.Marshal(kept)
	if err != nil {
		return nil, fmt.Errorf("failed to encode user: %w", err)
	}

	model := UserSchema{ID: id, Data: string(data)}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		log.Error("failed to create user in db", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	// sqlite autoincrement already follows the largest rowid
	if id > 0 && r.db.Dialector.Name() == "postgres" {
		if err := r.db.WithContext(ctx).Exec(syncSerialSQL).Error; err != nil {
			log.Warn("user created but id sequence not advanced", zap.Int64("id", id), zap.Error(err))
		}
	}

	log.Info("user created in db", zap.Int64("id", model.ID))
	return &user.User{ID: model.ID, Fields: kept}, nil
}

// GetByID retrieves a user row by its primary key.
func (r *UserRepoGorm) GetByID(ctx context.Context, id int64) (*user.User, error) {
	var model UserSchema
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("user", fmt.Sprintf("user not found: id=%d", id))
		}
		logger.WithContext(ctx, r.log).Error("failed to get user from db", zap.Error(err), zap.Int64("id", id))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	u, err := toDomain(model)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// List retrieves every user row ordered by id.
func (r *UserRepoGorm) List(ctx context.Context) ([]user.User, error) {
	log := logger.WithContext(ctx, r.log)

	var models []UserSchema
	if err := r.db.WithContext(ctx).Order("id").Find(&models).Error; err != nil {
		log.Error("failed to list users from db", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]user.User, 0, len(models))
	for _, model := range models {
		u, err := toDomain(model)
		if err != nil {
			log.Warn("skipping malformed user row", zap.Int64("id", model.ID), zap.Error(err))
			continue
		}
		users = append(users, u)
	}

	return users, nil
}

func toDomain(model UserSchema) (user.User, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(model.Data)))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return user.User{}, fmt.Errorf("failed to decode user %d: %w", model.ID, err)
	}
	if fields == nil {
		fields = map[string]any{}
	}
	for k, v := range fields {
		if user.IsReservedKey(k) {
			delete(fields, k)
			continue
		}
		fields[k] = user.NormalizeJSON(v)
	}

	return user.User{ID: model.ID, Fields: fields}, nil
}
