package repository

import (
	"context"
	"errors"
	"fmt"
	reservationerrors "roombook/internal/reservations/errors"
	"roombook/pkg/config"
	"roombook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ResourceRepository is a read-only view of the resource catalogue. Resources
// are administered elsewhere.
type ResourceRepository interface {
	FindByID(ctx context.Context, id string) (*model.Resource, error)
	FindByIDs(ctx context.Context, ids []string) ([]*model.Resource, error)
}

type mongoResourceRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoResourceRepository(cfg *config.Config) ResourceRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoResourceRepository{
		cfg:        cfg,
		collection: db.Collection(ResourcesCollection),
	}
}

func (r *mongoResourceRepository) FindByID(ctx context.Context, id string) (*model.Resource, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", reservationerrors.ErrInvalidID, id)
	}

	var resource model.Resource
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&resource)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationerrors.ErrResourceNotFound
		}
		return nil, fmt.Errorf("failed to find resource: %w", err)
	}
	return &resource, nil
}

func (r *mongoResourceRepository) FindByIDs(ctx context.Context, ids []string) ([]*model.Resource, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	oids, err := objectIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", reservationerrors.ErrInvalidID, err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": oids}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find resources: %w", err)
	}
	defer cursor.Close(ctx)

	var resources []*model.Resource
	if err := cursor.All(ctx, &resources); err != nil {
		return nil, fmt.Errorf("failed to decode resources: %w", err)
	}
	return resources, nil
}
