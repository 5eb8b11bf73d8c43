package service

import (
	"context"
	apperrors "roombook/pkg/errors"
	"roombook/pkg/model"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resourceIDs(rs []*model.Resource) []string {
	ids := make([]string, 0, len(rs))
	for _, r := range rs {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestAvailability(t *testing.T) {
	f := newFixture(t)
	annex := f.resources.add(&model.Resource{OrganizationID: orgRooms, Name: "Annex", Capacity: 4, IsActive: true})
	closed := f.resources.add(&model.Resource{OrganizationID: orgRooms, Name: "Closed", Capacity: 4, IsActive: false})
	own := f.resources.add(&model.Resource{OrganizationID: orgA, Name: "Own room", Capacity: 4, IsActive: true})

	f.offer(f.room, orgA, 20)
	f.offer(annex, orgA, 20)
	f.offer(closed, orgA, 20)
	f.seed(bob, model.StatusApproved, at(20, 10, 0), at(20, 11, 0))
	ctx := context.Background()

	t.Run("busy and inactive resources are excluded", func(t *testing.T) {
		got, err := f.svc.Availability(ctx, alice, at(20, 10, 30), at(20, 11, 30))
		require.NoError(t, err)
		assert.Equal(t, []string{annex.ID}, resourceIDs(got))
	})

	t.Run("adjacent window is free", func(t *testing.T) {
		got, err := f.svc.Availability(ctx, alice, at(20, 11, 0), at(20, 12, 0))
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{f.room.ID, annex.ID}, resourceIDs(got))
	})

	t.Run("no entries means nothing is offered", func(t *testing.T) {
		got, err := f.svc.Availability(ctx, alice, at(21, 10, 0), at(21, 11, 0))
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
		assert.NotContains(t, resourceIDs(got), own.ID)
	})

	t.Run("other organizations see their own gate", func(t *testing.T) {
		got, err := f.svc.Availability(ctx, bob, at(20, 12, 0), at(20, 13, 0))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("invalid window", func(t *testing.T) {
		_, err := f.svc.Availability(ctx, alice, at(20, 12, 0), at(20, 11, 0))
		requireCode(t, err, apperrors.CodeInvalidWindow)
	})
}

func TestReplaceVisibility(t *testing.T) {
	f := newFixture(t)
	annex := f.resources.add(&model.Resource{OrganizationID: orgRooms, Name: "Annex", Capacity: 4, IsActive: true})
	ctx := context.Background()

	err := f.svc.ReplaceVisibility(ctx, otherAdmin, orgA, "2026-10-20", &model.VisibilityReplaceRequest{
		ResourceIDs: []string{f.room.ID, " " + annex.ID + " ", f.room.ID},
	})
	require.NoError(t, err)

	visible, err := f.visibility.FindResourceIDs(ctx, orgA, "2026-10-20")
	require.NoError(t, err)
	assert.Equal(t, []string{f.room.ID, annex.ID}, visible)

	require.NoError(t, f.svc.ReplaceVisibility(ctx, superAdmin, orgA, "2026-10-20", &model.VisibilityReplaceRequest{
		ResourceIDs: []string{annex.ID},
	}))
	visible, _ = f.visibility.FindResourceIDs(ctx, orgA, "2026-10-20")
	assert.Equal(t, []string{annex.ID}, visible, "replacement is wholesale")

	require.NoError(t, f.svc.ReplaceVisibility(ctx, otherAdmin, orgA, "2026-10-20", &model.VisibilityReplaceRequest{}))
	visible, _ = f.visibility.FindResourceIDs(ctx, orgA, "2026-10-20")
	assert.Empty(t, visible)
}

func TestReplaceVisibility_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		actor model.Actor
		org   string
		date  string
		ids   func(f *fixture) []string
		code  string
	}{
		{name: "member", actor: alice, org: orgA, date: "2026-10-20", code: apperrors.CodeUnauthorized},
		{name: "admin of another org", actor: roomsAdmin, org: orgA, date: "2026-10-20", code: apperrors.CodeUnauthorized},
		{name: "missing org", actor: superAdmin, org: " ", date: "2026-10-20", code: apperrors.CodeInvalidInput},
		{name: "bad date", actor: otherAdmin, org: orgA, date: "20-10-2026", code: apperrors.CodeInvalidInput},
		{
			name: "unknown resource", actor: otherAdmin, org: orgA, date: "2026-10-20",
			ids:  func(*fixture) []string { return []string{"65f1c0ffee0000000000abcd"} },
			code: apperrors.CodeNotFound,
		},
		{
			name: "malformed id", actor: otherAdmin, org: orgA, date: "2026-10-20",
			ids:  func(*fixture) []string { return []string{"room-1"} },
			code: apperrors.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.offer(f.room, orgA, 20)

			req := &model.VisibilityReplaceRequest{ResourceIDs: []string{f.room.ID}}
			if tt.ids != nil {
				req.ResourceIDs = tt.ids(f)
			}

			err := f.svc.ReplaceVisibility(context.Background(), tt.actor, tt.org, tt.date, req)
			requireCode(t, err, tt.code)

			visible, _ := f.visibility.FindResourceIDs(context.Background(), orgA, "2026-10-20")
			assert.Equal(t, []string{f.room.ID}, visible, "gate must be untouched")
		})
	}
}
