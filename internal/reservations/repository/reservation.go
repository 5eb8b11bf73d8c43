package repository

import (
	"context"
	"errors"
	"fmt"
	reservationerrors "roombook/internal/reservations/errors"
	"roombook/pkg/config"
	mongotx "roombook/pkg/db/mongo"
	"roombook/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DuplicateGroup lists the ids of PENDING reservations sharing the same
// (resource, start, end, purpose), oldest first.
type DuplicateGroup struct {
	IDs []string
}

type ReservationRepository interface {
	Create(ctx context.Context, reservation *model.Reservation) error
	FindByID(ctx context.Context, id string) (*model.Reservation, error)

	// FindOverlapping returns active PENDING/APPROVED reservations on the
	// resource whose window intersects [start, end).
	FindOverlapping(ctx context.Context, resourceID string, start, end time.Time) ([]*model.Reservation, error)
	// FindExactDuplicates returns active reservations with the same requester,
	// resource, window and purpose.
	FindExactDuplicates(ctx context.Context, requesterID, resourceID string, start, end time.Time, purpose string) ([]*model.Reservation, error)
	// CountRecentByRequester counts active reservations the requester created
	// on the resource at or after since.
	CountRecentByRequester(ctx context.Context, requesterID, resourceID string, since time.Time) (int64, error)
	// FindBusyResourceIDs returns which of resourceIDs have an occupying
	// reservation intersecting [start, end).
	FindBusyResourceIDs(ctx context.Context, resourceIDs []string, start, end time.Time) ([]string, error)

	FindByRequester(ctx context.Context, requesterID string, limit int, offset int64) ([]*model.Reservation, error)
	CountByRequester(ctx context.Context, requesterID string) (int64, error)
	FindPendingByOrganization(ctx context.Context, orgID string, limit int, offset int64) ([]*model.Reservation, error)
	CountPendingByOrganization(ctx context.Context, orgID string) (int64, error)

	// FindPendingStartingBy and FindApprovedEndedBy page through their rows in
	// _id order, starting after afterID ("" for the first page).
	FindPendingStartingBy(ctx context.Context, cutoff time.Time, afterID string, limit int) ([]*model.Reservation, error)
	FindApprovedEndedBy(ctx context.Context, cutoff time.Time, afterID string, limit int) ([]*model.Reservation, error)
	FindDuplicatePendingGroups(ctx context.Context) ([]DuplicateGroup, error)

	// UpdateStatus persists the lifecycle fields of reservation, only if the
	// stored row is still in status from.
	UpdateStatus(ctx context.Context, reservation *model.Reservation, from model.ReservationStatus) error

	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoReservationRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoReservationRepository(cfg *config.Config) ReservationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReservationRepository{
		cfg:        cfg,
		collection: db.Collection(ReservationsCollection),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoReservationRepository) Create(ctx context.Context, reservation *model.Reservation) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	reservation.CreatedAt = reservation.CreatedAt.UTC().Truncate(time.Millisecond)
	reservation.UpdatedAt = reservation.CreatedAt
	result, err := r.collection.InsertOne(ctx, reservation)
	if err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		reservation.ID = oid.Hex()
	}
	return nil
}

func (r *mongoReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", reservationerrors.ErrInvalidID, id)
	}

	var reservation model.Reservation
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&reservation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}

	return &reservation, nil
}

func occupyingFilter() bson.M {
	return bson.M{
		"is_active": true,
		"status":    bson.M{"$in": model.OccupyingStatuses},
	}
}

func (r *mongoReservationRepository) FindOverlapping(ctx context.Context, resourceID string, start, end time.Time) ([]*model.Reservation, error) {
	filter := occupyingFilter()
	filter["resource_id"] = resourceID
	filter["start_time"] = bson.M{"$lt": end}
	filter["end_time"] = bson.M{"$gt": start}

	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}}))
}

func (r *mongoReservationRepository) FindExactDuplicates(ctx context.Context, requesterID, resourceID string, start, end time.Time, purpose string) ([]*model.Reservation, error) {
	filter := bson.M{
		"is_active":    true,
		"requester_id": requesterID,
		"resource_id":  resourceID,
		"start_time":   start,
		"end_time":     end,
		"purpose":      purpose,
	}
	return r.find(ctx, filter, options.Find().SetLimit(1))
}

func (r *mongoReservationRepository) CountRecentByRequester(ctx context.Context, requesterID, resourceID string, since time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"is_active":    true,
		"requester_id": requesterID,
		"resource_id":  resourceID,
		"created_at":   bson.M{"$gte": since},
	}
	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent reservations: %w", err)
	}
	return count, nil
}

func (r *mongoReservationRepository) FindBusyResourceIDs(ctx context.Context, resourceIDs []string, start, end time.Time) ([]string, error) {
	if len(resourceIDs) == 0 {
		return nil, nil
	}

	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := occupyingFilter()
	filter["resource_id"] = bson.M{"$in": resourceIDs}
	filter["start_time"] = bson.M{"$lt": end}
	filter["end_time"] = bson.M{"$gt": start}

	values, err := r.collection.Distinct(ctx, "resource_id", filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find busy resources: %w", err)
	}

	busy := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok {
			busy = append(busy, id)
		}
	}
	return busy, nil
}

func (r *mongoReservationRepository) FindByRequester(ctx context.Context, requesterID string, limit int, offset int64) ([]*model.Reservation, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)
	return r.find(ctx, bson.M{"requester_id": requesterID}, opts)
}

func (r *mongoReservationRepository) CountByRequester(ctx context.Context, requesterID string) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"requester_id": requesterID})
	if err != nil {
		return 0, fmt.Errorf("failed to count reservations: %w", err)
	}
	return count, nil
}

func pendingByOrganizationFilter(orgID string) bson.M {
	filter := bson.M{"status": model.StatusPending, "is_active": true}
	if orgID != "" {
		filter["resource_org_id"] = orgID
	}
	return filter
}

// FindPendingByOrganization lists the approval queue. An empty orgID spans
// every organization.
func (r *mongoReservationRepository) FindPendingByOrganization(ctx context.Context, orgID string, limit int, offset int64) ([]*model.Reservation, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)
	return r.find(ctx, pendingByOrganizationFilter(orgID), opts)
}

func (r *mongoReservationRepository) CountPendingByOrganization(ctx context.Context, orgID string) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, pendingByOrganizationFilter(orgID))
	if err != nil {
		return 0, fmt.Errorf("failed to count pending reservations: %w", err)
	}
	return count, nil
}

func (r *mongoReservationRepository) FindPendingStartingBy(ctx context.Context, cutoff time.Time, afterID string, limit int) ([]*model.Reservation, error) {
	return r.sweepPage(ctx, bson.M{
		"status":     model.StatusPending,
		"start_time": bson.M{"$lte": cutoff},
	}, afterID, limit)
}

func (r *mongoReservationRepository) FindApprovedEndedBy(ctx context.Context, cutoff time.Time, afterID string, limit int) ([]*model.Reservation, error) {
	return r.sweepPage(ctx, bson.M{
		"status":   model.StatusApproved,
		"end_time": bson.M{"$lte": cutoff},
	}, afterID, limit)
}

func (r *mongoReservationRepository) sweepPage(ctx context.Context, filter bson.M, afterID string, limit int) ([]*model.Reservation, error) {
	if afterID != "" {
		oid, err := primitive.ObjectIDFromHex(afterID)
		if err != nil {
			return nil, reservationerrors.ErrInvalidID
		}
		filter["_id"] = bson.M{"$gt": oid}
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetLimit(int64(limit))
	return r.find(ctx, filter, opts)
}

func (r *mongoReservationRepository) FindDuplicatePendingGroups(ctx context.Context) ([]DuplicateGroup, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": model.StatusPending, "is_active": true}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{
				"resource_id": "$resource_id",
				"start_time":  "$start_time",
				"end_time":    "$end_time",
				"purpose":     "$purpose",
			},
			"ids":   bson.M{"$push": "$_id"},
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$match", Value: bson.M{"count": bson.M{"$gt": 1}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate duplicate reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		IDs []primitive.ObjectID `bson:"ids"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode duplicate groups: %w", err)
	}

	groups := make([]DuplicateGroup, 0, len(rows))
	for _, row := range rows {
		group := DuplicateGroup{IDs: make([]string, 0, len(row.IDs))}
		for _, oid := range row.IDs {
			group.IDs = append(group.IDs, oid.Hex())
		}
		groups = append(groups, group)
	}
	return groups, nil
}

func (r *mongoReservationRepository) UpdateStatus(ctx context.Context, reservation *model.Reservation, from model.ReservationStatus) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(reservation.ID)
	if err != nil {
		return fmt.Errorf("%w: %s", reservationerrors.ErrInvalidID, reservation.ID)
	}

	filter := bson.M{"_id": objectID, "status": from}
	update := bson.M{
		"$set": bson.M{
			"status":           reservation.Status,
			"is_active":        reservation.IsActive,
			"approver_id":      reservation.ApproverID,
			"rejection_reason": reservation.RejectionReason,
			"updated_at":       reservation.UpdatedAt.UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update reservation status: %w", err)
	}
	if result.MatchedCount == 0 {
		return reservationerrors.ErrStatusPrecondition
	}
	return nil
}

func (r *mongoReservationRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

func (r *mongoReservationRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Reservation, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var reservations []*model.Reservation
	if err = cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}

	return reservations, nil
}
