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

type VisibilityRepository interface {
	// FindResourceIDs returns the resources offered to orgID on date. No
	// entries means nothing is offered.
	FindResourceIDs(ctx context.Context, orgID, date string) ([]string, error)
	// Replace swaps the whole entry set for (orgID, date). Run it inside a
	// transaction so readers never observe a half-replaced set.
	Replace(ctx context.Context, orgID, date string, resourceIDs []string, now time.Time) error
}

type mongoVisibilityRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoVisibilityRepository(cfg *config.Config) VisibilityRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoVisibilityRepository{
		cfg:        cfg,
		collection: db.Collection(VisibilityCollection),
	}
}

func (r *mongoVisibilityRepository) FindResourceIDs(ctx context.Context, orgID, date string) ([]string, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	values, err := r.collection.Distinct(ctx, "resource_id", bson.M{
		"organization_id": orgID,
		"date":            date,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find visible resources: %w", err)
	}

	ids := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *mongoVisibilityRepository) Replace(ctx context.Context, orgID, date string, resourceIDs []string, now time.Time) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.DeleteMany(ctx, bson.M{"organization_id": orgID, "date": date}); err != nil {
		return fmt.Errorf("failed to clear visibility entries: %w", err)
	}
	if len(resourceIDs) == 0 {
		return nil
	}

	createdAt := now.UTC().Truncate(time.Millisecond)
	docs := make([]any, 0, len(resourceIDs))
	for _, id := range resourceIDs {
		docs = append(docs, model.VisibilityEntry{
			ResourceID:     id,
			OrganizationID: orgID,
			Date:           date,
			CreatedAt:      createdAt,
		})
	}
	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert visibility entries: %w", err)
	}
	return nil
}
