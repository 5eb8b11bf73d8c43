package repository

import (
	"context"
	"fmt"
	"roombook/pkg/config"
	"roombook/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ResourceLockRepository stores advisory locks. The TTL index on expires_at
// eventually removes abandoned locks; TryAcquire also steals expired ones so
// admission does not wait for the TTL monitor.
type ResourceLockRepository interface {
	// TryAcquire inserts lock. It reports false without error when an
	// unexpired lock with the same id exists.
	TryAcquire(ctx context.Context, lock *model.ResourceLock) (bool, error)
	// Renew moves the expiry of a lock still held by owner. It reports false
	// without error when the lock is gone or belongs to someone else.
	Renew(ctx context.Context, lockID, owner string, expiresAt time.Time) (bool, error)
	Release(ctx context.Context, lockID, owner string) error
}

type mongoResourceLockRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoResourceLockRepository(cfg *config.Config) ResourceLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoResourceLockRepository{
		cfg:        cfg,
		collection: db.Collection(LocksCollection),
	}
}

func (r *mongoResourceLockRepository) TryAcquire(ctx context.Context, lock *model.ResourceLock) (bool, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.DeleteOne(ctx, bson.M{
		"_id":        lock.ID,
		"expires_at": bson.M{"$lt": lock.CreatedAt},
	}); err != nil {
		return false, fmt.Errorf("failed to clear expired lock: %w", err)
	}

	if _, err := r.collection.InsertOne(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	return true, nil
}

func (r *mongoResourceLockRepository) Renew(ctx context.Context, lockID, owner string, expiresAt time.Time) (bool, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": lockID, "owner": owner},
		bson.M{"$set": bson.M{"expires_at": expiresAt}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to renew lock: %w", err)
	}
	return result.MatchedCount == 1, nil
}

func (r *mongoResourceLockRepository) Release(ctx context.Context, lockID, owner string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID, "owner": owner}); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}
