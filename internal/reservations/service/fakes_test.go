package service

import (
	"context"
	"roombook/internal/notifications"
	reservationserrors "roombook/internal/reservations/errors"
	"roombook/internal/reservations/repository"
	"roombook/internal/reservations/validator"
	"roombook/pkg/clock"
	"roombook/pkg/config"
	mongotx "roombook/pkg/db/mongo"
	"roombook/pkg/logger"
	"roombook/pkg/model"
	"sort"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeReservationRepo struct {
	mu   sync.Mutex
	rows map[string]*model.Reservation
	// beforeUpdate runs ahead of the guarded update, outside the lock.
	beforeUpdate func(id string)
	// afterOverlapScan runs once, after the first overlap scan.
	afterOverlapScan func()
	// failUpdate makes UpdateStatus fail for the ids it returns an error for.
	failUpdate func(id string) error
	findErr    error
	// pages counts sweep page queries.
	pages int
}

func newFakeReservationRepo() *fakeReservationRepo {
	return &fakeReservationRepo{rows: map[string]*model.Reservation{}}
}

func clone(r *model.Reservation) *model.Reservation {
	c := *r
	if r.Recurrence != nil {
		rec := *r.Recurrence
		c.Recurrence = &rec
	}
	return &c
}

func (f *fakeReservationRepo) Create(_ context.Context, r *model.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r.ID = primitive.NewObjectID().Hex()
	f.rows[r.ID] = clone(r)
	return nil
}

// insert stores r as-is, for seeding.
func (f *fakeReservationRepo) insert(r *model.Reservation) *model.Reservation {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.ID == "" {
		r.ID = primitive.NewObjectID().Hex()
	}
	f.rows[r.ID] = clone(r)
	return r
}

func (f *fakeReservationRepo) get(id string) *model.Reservation {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rows[id]; ok {
		return clone(r)
	}
	return nil
}

func (f *fakeReservationRepo) FindByID(_ context.Context, id string) (*model.Reservation, error) {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, reservationserrors.ErrInvalidID
	}
	if r := f.get(id); r != nil {
		return r, nil
	}
	return nil, reservationserrors.ErrNotFound
}

func (f *fakeReservationRepo) filter(match func(r *model.Reservation) bool) []*model.Reservation {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Reservation
	for _, r := range f.rows {
		if match(r) {
			out = append(out, clone(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func occupying(r *model.Reservation) bool {
	return r.IsActive && (r.Status == model.StatusPending || r.Status == model.StatusApproved)
}

func (f *fakeReservationRepo) FindOverlapping(_ context.Context, resourceID string, start, end time.Time) ([]*model.Reservation, error) {
	found := f.filter(func(r *model.Reservation) bool {
		return occupying(r) && r.ResourceID == resourceID && r.Overlaps(start, end)
	})
	f.mu.Lock()
	hook := f.afterOverlapScan
	f.afterOverlapScan = nil
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return found, nil
}

func (f *fakeReservationRepo) FindExactDuplicates(_ context.Context, requesterID, resourceID string, start, end time.Time, purpose string) ([]*model.Reservation, error) {
	return f.filter(func(r *model.Reservation) bool {
		return r.IsActive && r.RequesterID == requesterID && r.ResourceID == resourceID &&
			r.StartTime.Equal(start) && r.EndTime.Equal(end) && r.Purpose == purpose
	}), nil
}

func (f *fakeReservationRepo) CountRecentByRequester(_ context.Context, requesterID, resourceID string, since time.Time) (int64, error) {
	return int64(len(f.filter(func(r *model.Reservation) bool {
		return r.IsActive && r.RequesterID == requesterID && r.ResourceID == resourceID && !r.CreatedAt.Before(since)
	}))), nil
}

func (f *fakeReservationRepo) FindBusyResourceIDs(_ context.Context, resourceIDs []string, start, end time.Time) ([]string, error) {
	wanted := map[string]bool{}
	for _, id := range resourceIDs {
		wanted[id] = true
	}
	seen := map[string]bool{}
	var busy []string
	for _, r := range f.filter(func(r *model.Reservation) bool {
		return occupying(r) && wanted[r.ResourceID] && r.Overlaps(start, end)
	}) {
		if !seen[r.ResourceID] {
			seen[r.ResourceID] = true
			busy = append(busy, r.ResourceID)
		}
	}
	return busy, nil
}

func page(rows []*model.Reservation, limit int, offset int64) []*model.Reservation {
	if offset >= int64(len(rows)) {
		return nil
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

func (f *fakeReservationRepo) FindByRequester(_ context.Context, requesterID string, limit int, offset int64) ([]*model.Reservation, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return page(f.filter(func(r *model.Reservation) bool { return r.RequesterID == requesterID }), limit, offset), nil
}

func (f *fakeReservationRepo) CountByRequester(_ context.Context, requesterID string) (int64, error) {
	return int64(len(f.filter(func(r *model.Reservation) bool { return r.RequesterID == requesterID }))), nil
}

func pendingIn(orgID string) func(r *model.Reservation) bool {
	return func(r *model.Reservation) bool {
		return r.Status == model.StatusPending && r.IsActive && (orgID == "" || r.ResourceOrgID == orgID)
	}
}

func (f *fakeReservationRepo) FindPendingByOrganization(_ context.Context, orgID string, limit int, offset int64) ([]*model.Reservation, error) {
	return page(f.filter(pendingIn(orgID)), limit, offset), nil
}

func (f *fakeReservationRepo) CountPendingByOrganization(_ context.Context, orgID string) (int64, error) {
	return int64(len(f.filter(pendingIn(orgID)))), nil
}

func (f *fakeReservationRepo) FindPendingStartingBy(_ context.Context, cutoff time.Time, afterID string, limit int) ([]*model.Reservation, error) {
	return f.page(afterID, limit, func(r *model.Reservation) bool {
		return r.Status == model.StatusPending && !r.StartTime.After(cutoff)
	}), nil
}

func (f *fakeReservationRepo) FindApprovedEndedBy(_ context.Context, cutoff time.Time, afterID string, limit int) ([]*model.Reservation, error) {
	return f.page(afterID, limit, func(r *model.Reservation) bool {
		return r.Status == model.StatusApproved && !r.EndTime.After(cutoff)
	}), nil
}

// page returns up to limit matching rows with an id above afterID, in id
// order. ObjectID hex strings sort like the ids themselves.
func (f *fakeReservationRepo) page(afterID string, limit int, match func(r *model.Reservation) bool) []*model.Reservation {
	f.mu.Lock()
	f.pages++
	f.mu.Unlock()

	rows := f.filter(func(r *model.Reservation) bool {
		return r.ID > afterID && match(r)
	})
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

func (f *fakeReservationRepo) FindDuplicatePendingGroups(_ context.Context) ([]repository.DuplicateGroup, error) {
	type key struct {
		resourceID, purpose string
		start, end          int64
	}
	index := map[key]int{}
	var groups []repository.DuplicateGroup
	for _, r := range f.filter(func(r *model.Reservation) bool { return r.Status == model.StatusPending && r.IsActive }) {
		k := key{r.ResourceID, r.Purpose, r.StartTime.UnixMilli(), r.EndTime.UnixMilli()}
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, repository.DuplicateGroup{})
		}
		groups[i].IDs = append(groups[i].IDs, r.ID)
	}

	var out []repository.DuplicateGroup
	for _, g := range groups {
		if len(g.IDs) > 1 {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeReservationRepo) UpdateStatus(_ context.Context, r *model.Reservation, from model.ReservationStatus) error {
	if f.beforeUpdate != nil {
		f.beforeUpdate(r.ID)
	}
	if f.failUpdate != nil {
		if err := f.failUpdate(r.ID); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.rows[r.ID]
	if !ok || stored.Status != from {
		return reservationserrors.ErrStatusPrecondition
	}
	stored.Status = r.Status
	stored.IsActive = r.IsActive
	stored.ApproverID = r.ApproverID
	stored.RejectionReason = r.RejectionReason
	stored.UpdatedAt = r.UpdatedAt
	return nil
}

func (f *fakeReservationRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(ctx)
}

type fakeResourceRepo struct {
	rows map[string]*model.Resource
}

func (f *fakeResourceRepo) add(r *model.Resource) *model.Resource {
	if r.ID == "" {
		r.ID = primitive.NewObjectID().Hex()
	}
	f.rows[r.ID] = r
	return r
}

func (f *fakeResourceRepo) FindByID(_ context.Context, id string) (*model.Resource, error) {
	if r, ok := f.rows[id]; ok {
		c := *r
		return &c, nil
	}
	return nil, reservationserrors.ErrResourceNotFound
}

func (f *fakeResourceRepo) FindByIDs(_ context.Context, ids []string) ([]*model.Resource, error) {
	var out []*model.Resource
	for _, id := range ids {
		if r, ok := f.rows[id]; ok {
			c := *r
			out = append(out, &c)
		}
	}
	return out, nil
}

type fakeVisibilityRepo struct {
	mu      sync.Mutex
	entries map[string][]string
}

func visibilityKey(orgID, date string) string { return orgID + "|" + date }

func (f *fakeVisibilityRepo) FindResourceIDs(_ context.Context, orgID, date string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.entries[visibilityKey(orgID, date)]...), nil
}

func (f *fakeVisibilityRepo) Replace(_ context.Context, orgID, date string, ids []string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(ids) == 0 {
		delete(f.entries, visibilityKey(orgID, date))
		return nil
	}
	f.entries[visibilityKey(orgID, date)] = append([]string(nil), ids...)
	return nil
}

type fakeLockRepo struct {
	mu    sync.Mutex
	locks map[string]*model.ResourceLock
	// acquired counts successful acquisitions.
	acquired int
}

func newFakeLockRepo() *fakeLockRepo {
	return &fakeLockRepo{locks: map[string]*model.ResourceLock{}}
}

func (f *fakeLockRepo) TryAcquire(_ context.Context, lock *model.ResourceLock) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if held, ok := f.locks[lock.ID]; ok && held.ExpiresAt.After(lock.CreatedAt) {
		return false, nil
	}
	c := *lock
	f.locks[lock.ID] = &c
	f.acquired++
	return true, nil
}

func (f *fakeLockRepo) Renew(_ context.Context, lockID, owner string, expiresAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	held, ok := f.locks[lockID]
	if !ok || held.Owner != owner {
		return false, nil
	}
	held.ExpiresAt = expiresAt
	return true, nil
}

func (f *fakeLockRepo) Release(_ context.Context, lockID, owner string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if held, ok := f.locks[lockID]; ok && held.Owner == owner {
		delete(f.locks, lockID)
	}
	return nil
}

func (f *fakeLockRepo) get(lockID string) (model.ResourceLock, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	held, ok := f.locks[lockID]
	if !ok {
		return model.ResourceLock{}, false
	}
	return *held, true
}

// takeOver replaces the lock row as another replica would after the lease
// expired.
func (f *fakeLockRepo) takeOver(lockID, owner string, expiresAt time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locks[lockID] = &model.ResourceLock{ID: lockID, Owner: owner, ExpiresAt: expiresAt}
}

func (f *fakeLockRepo) held(lockID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.locks[lockID]
	return ok
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notifications.Notification
}

func (n *recordingNotifier) Enqueue(msg notifications.Notification) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return true
}

func (n *recordingNotifier) kinds() []notifications.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := make([]notifications.Kind, 0, len(n.sent))
	for _, msg := range n.sent {
		kinds = append(kinds, msg.Kind)
	}
	return kinds
}

// testNow is Monday 2026-10-19 08:00 UTC.
var testNow = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

func at(day, hour, minute int) time.Time {
	return time.Date(2026, 10, day, hour, minute, 0, 0, time.UTC)
}

const (
	orgA     = "org-a"
	orgB     = "org-b"
	orgRooms = "org-rooms"
)

var (
	alice      = model.Actor{ID: "alice", OrganizationID: orgA, Authority: model.AuthorityMember}
	bob        = model.Actor{ID: "bob", OrganizationID: orgB, Authority: model.AuthorityMember}
	roomsAdmin = model.Actor{ID: "rooms-admin", OrganizationID: orgRooms, Authority: model.AuthorityOrgAdmin}
	otherAdmin = model.Actor{ID: "a-admin", OrganizationID: orgA, Authority: model.AuthorityOrgAdmin}
	superAdmin = model.Actor{ID: "root", Authority: model.AuthoritySuperAdmin}
)

type fixture struct {
	svc        ReservationService
	sweeper    *Sweeper
	repo       *fakeReservationRepo
	resources  *fakeResourceRepo
	visibility *fakeVisibilityRepo
	locks      *fakeLockRepo
	notifier   *recordingNotifier
	clock      *clock.Fake
	cfg        *config.Config
	room       *model.Resource
}

func testConfig() *config.Config {
	return &config.Config{
		BookingRateLimitWindow:  config.DefaultBookingRateLimitWindow,
		MaxRecurringOccurrences: config.DefaultMaxRecurringOccurrences,
		ResourceLockTTL:         config.DefaultResourceLockTTL,
		ResourceLockWait:        100 * time.Millisecond,
		ResourceLockRetry:       5 * time.Millisecond,
		SweepImminentHorizon:    config.DefaultSweepImminentHorizon,
		Log:                     logger.Discard(),
	}
}

func newFixture(t *testing.T, opts ...func(cfg *config.Config)) *fixture {
	t.Helper()

	cfg := testConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	f := &fixture{
		repo:       newFakeReservationRepo(),
		resources:  &fakeResourceRepo{rows: map[string]*model.Resource{}},
		visibility: &fakeVisibilityRepo{entries: map[string][]string{}},
		locks:      newFakeLockRepo(),
		notifier:   &recordingNotifier{},
		clock:      clock.NewFake(testNow),
		cfg:        cfg,
	}
	f.room = f.resources.add(&model.Resource{
		OrganizationID: orgRooms,
		Name:           "Boardroom",
		Capacity:       10,
		IsActive:       true,
	})

	f.svc = NewReservationService(
		Repositories{
			Reservations: f.repo,
			Resources:    f.resources,
			Visibility:   f.visibility,
			Locks:        f.locks,
		},
		validator.NewRequestValidator(cfg.Log),
		validator.DefaultRules(),
		f.notifier,
		f.clock,
		cfg,
	)
	f.sweeper = NewSweeper(f.repo, f.notifier, f.clock, cfg.SweepImminentHorizon, cfg.Log)
	return f
}

// offer makes resource visible to orgID on each of the given October days.
func (f *fixture) offer(resource *model.Resource, orgID string, days ...int) {
	for _, day := range days {
		date := at(day, 0, 0).Format(model.DateLayout)
		key := visibilityKey(orgID, date)
		f.visibility.entries[key] = append(f.visibility.entries[key], resource.ID)
	}
}

func (f *fixture) request(start, end time.Time) *model.ReservationRequest {
	return &model.ReservationRequest{
		ResourceID:    f.room.ID,
		StartTime:     start,
		EndTime:       end,
		Purpose:       "Quarterly planning",
		AttendeeCount: 4,
	}
}

// seed stores a reservation created an hour ago so it does not trip the
// rate limit.
func (f *fixture) seed(actor model.Actor, status model.ReservationStatus, start, end time.Time) *model.Reservation {
	return f.repo.insert(&model.Reservation{
		RequesterID:    actor.ID,
		RequesterOrgID: actor.OrganizationID,
		ResourceID:     f.room.ID,
		ResourceOrgID:  f.room.OrganizationID,
		StartTime:      start,
		EndTime:        end,
		Status:         status,
		IsActive:       status == model.StatusPending || status == model.StatusApproved,
		Purpose:        "Seeded",
		AttendeeCount:  2,
		CreatedAt:      testNow.Add(-time.Hour),
		UpdatedAt:      testNow.Add(-time.Hour),
	})
}
