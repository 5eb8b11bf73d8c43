package service

import (
	"context"
	"roombook/internal/notifications"
	apperrors "roombook/pkg/errors"
	"roombook/pkg/model"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApprove(t *testing.T) {
	tests := []struct {
		name   string
		actor  model.Actor
		status model.ReservationStatus
		code   string
	}{
		{name: "resource org admin", actor: roomsAdmin, status: model.StatusPending},
		{name: "super admin", actor: superAdmin, status: model.StatusPending},
		{name: "member", actor: bob, status: model.StatusPending, code: apperrors.CodeUnauthorized},
		{name: "admin of another org", actor: otherAdmin, status: model.StatusPending, code: apperrors.CodeUnauthorized},
		{name: "already approved", actor: roomsAdmin, status: model.StatusApproved, code: apperrors.CodeInvalidTransition},
		{name: "rejected", actor: roomsAdmin, status: model.StatusRejected, code: apperrors.CodeInvalidTransition},
		{name: "completed", actor: roomsAdmin, status: model.StatusCompleted, code: apperrors.CodeInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			seeded := f.seed(alice, tt.status, at(20, 10, 0), at(20, 11, 0))

			got, err := f.svc.Approve(context.Background(), tt.actor, seeded.ID)
			if tt.code != "" {
				requireCode(t, err, tt.code)
				assert.Equal(t, tt.status, f.repo.get(seeded.ID).Status)
				assert.Empty(t, f.notifier.kinds())
				return
			}

			require.NoError(t, err)
			assert.Equal(t, model.StatusApproved, got.Status)
			assert.True(t, got.IsActive)
			assert.Equal(t, tt.actor.ID, got.ApproverID)

			stored := f.repo.get(seeded.ID)
			assert.Equal(t, model.StatusApproved, stored.Status)
			assert.Equal(t, tt.actor.ID, stored.ApproverID)
			assert.Equal(t, []notifications.Kind{notifications.KindApproved}, f.notifier.kinds())
		})
	}
}

func TestReject(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(alice, model.StatusPending, at(20, 10, 0), at(20, 11, 0))
	ctx := context.Background()

	got, err := f.svc.Reject(ctx, roomsAdmin, seeded.ID, "  room under   renovation ")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, got.Status)
	assert.False(t, got.IsActive)
	assert.Equal(t, "room under renovation", got.RejectionReason)

	_, err = f.svc.Reject(ctx, roomsAdmin, seeded.ID, "again")
	requireCode(t, err, apperrors.CodeInvalidTransition)

	assert.Equal(t, []notifications.Kind{notifications.KindRejected}, f.notifier.kinds())
	sent := f.notifier.sent[0]
	assert.Equal(t, alice.ID, sent.RecipientID)
	assert.Equal(t, roomsAdmin.ID, sent.ActorID)
	assert.Equal(t, "room under renovation", sent.Reason)
}

func TestCancel(t *testing.T) {
	tests := []struct {
		name   string
		actor  model.Actor
		status model.ReservationStatus
		code   string
	}{
		{name: "requester cancels pending", actor: alice, status: model.StatusPending},
		{name: "requester cannot cancel approved", actor: alice, status: model.StatusApproved, code: apperrors.CodeInvalidTransition},
		{name: "someone else", actor: bob, status: model.StatusPending, code: apperrors.CodeUnauthorized},
		{name: "admins use admin cancel", actor: roomsAdmin, status: model.StatusPending, code: apperrors.CodeUnauthorized},
		{name: "already cancelled", actor: alice, status: model.StatusCancelled, code: apperrors.CodeInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			seeded := f.seed(alice, tt.status, at(20, 10, 0), at(20, 11, 0))

			got, err := f.svc.Cancel(context.Background(), tt.actor, seeded.ID)
			if tt.code != "" {
				requireCode(t, err, tt.code)
				assert.Equal(t, tt.status, f.repo.get(seeded.ID).Status)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, model.StatusCancelled, got.Status)
			assert.False(t, got.IsActive)
			assert.Equal(t, []notifications.Kind{notifications.KindCancelled}, f.notifier.kinds())
		})
	}
}

func TestAdminCancel(t *testing.T) {
	tests := []struct {
		name    string
		actor   model.Actor
		status  model.ReservationStatus
		code    string
		changed bool
	}{
		{name: "pending", actor: roomsAdmin, status: model.StatusPending, changed: true},
		{name: "approved", actor: superAdmin, status: model.StatusApproved, changed: true},
		{name: "already cancelled is a no-op", actor: roomsAdmin, status: model.StatusCancelled},
		{name: "completed is a no-op", actor: roomsAdmin, status: model.StatusCompleted},
		{name: "rejected", actor: roomsAdmin, status: model.StatusRejected, code: apperrors.CodeInvalidTransition},
		{name: "member", actor: alice, status: model.StatusApproved, code: apperrors.CodeUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			seeded := f.seed(alice, tt.status, at(20, 10, 0), at(20, 11, 0))

			got, err := f.svc.AdminCancel(context.Background(), tt.actor, seeded.ID)
			if tt.code != "" {
				requireCode(t, err, tt.code)
				assert.Equal(t, tt.status, f.repo.get(seeded.ID).Status)
				return
			}

			require.NoError(t, err)
			if !tt.changed {
				assert.Equal(t, tt.status, got.Status)
				assert.Empty(t, f.notifier.kinds())
				return
			}
			assert.Equal(t, model.StatusCancelled, got.Status)
			assert.False(t, got.IsActive)
			assert.Equal(t, model.StatusCancelled, f.repo.get(seeded.ID).Status)
			assert.Equal(t, []notifications.Kind{notifications.KindAdminCancelled}, f.notifier.kinds())
		})
	}
}

func TestTransition_LosesRaceWithSweep(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(alice, model.StatusPending, at(20, 10, 0), at(20, 11, 0))

	f.repo.beforeUpdate = func(id string) {
		f.repo.mu.Lock()
		defer f.repo.mu.Unlock()
		f.repo.rows[id].Status = model.StatusRejected
		f.repo.rows[id].IsActive = false
	}

	_, err := f.svc.Approve(context.Background(), roomsAdmin, seeded.ID)
	requireCode(t, err, apperrors.CodeInvalidTransition)
	assert.Equal(t, model.StatusRejected, f.repo.get(seeded.ID).Status)
	assert.Empty(t, f.notifier.kinds())
}

func TestTransition_UnknownReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Approve(ctx, roomsAdmin, "65f1c0ffee0000000000abcd")
	requireCode(t, err, apperrors.CodeNotFound)

	_, err = f.svc.Cancel(ctx, alice, "not-an-id")
	requireCode(t, err, apperrors.CodeInvalidInput)
}

func TestGetByID(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(alice, model.StatusPending, at(20, 10, 0), at(20, 11, 0))
	ctx := context.Background()

	for _, actor := range []model.Actor{alice, roomsAdmin, superAdmin} {
		got, err := f.svc.GetByID(ctx, actor, seeded.ID)
		require.NoError(t, err, actor.ID)
		assert.Equal(t, seeded.ID, got.ID)
	}

	for _, actor := range []model.Actor{bob, otherAdmin} {
		_, err := f.svc.GetByID(ctx, actor, seeded.ID)
		requireCode(t, err, apperrors.CodeNotFound)
	}
}

func TestListMine(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		f.seed(alice, model.StatusPending, at(20+i, 10, 0), at(20+i, 11, 0))
	}
	f.seed(bob, model.StatusPending, at(20, 13, 0), at(20, 14, 0))

	got, total, err := f.svc.ListMine(context.Background(), alice, 2, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, got, 2)
	for _, r := range got {
		assert.Equal(t, alice.ID, r.RequesterID)
	}

	got, total, err = f.svc.ListMine(context.Background(), alice, 2, 5)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestListPendingForOrganization(t *testing.T) {
	f := newFixture(t)
	f.seed(alice, model.StatusPending, at(20, 10, 0), at(20, 11, 0))
	f.seed(bob, model.StatusPending, at(20, 13, 0), at(20, 14, 0))
	f.seed(bob, model.StatusApproved, at(21, 13, 0), at(21, 14, 0))
	ctx := context.Background()

	got, total, err := f.svc.ListPendingForOrganization(ctx, roomsAdmin, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, got, 2)

	got, total, err = f.svc.ListPendingForOrganization(ctx, otherAdmin, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, got)

	_, total, err = f.svc.ListPendingForOrganization(ctx, superAdmin, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	_, _, err = f.svc.ListPendingForOrganization(ctx, alice, 10, 0)
	requireCode(t, err, apperrors.CodeUnauthorized)
}
