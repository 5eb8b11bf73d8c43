package mongo

import (
	"roombook/internal/reservations/repository"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestCollections_CoverRepositories(t *testing.T) {
	names := map[string]bool{}
	for _, def := range collections() {
		names[def.Name] = true
		assert.NotEmpty(t, def.Indexes, def.Name)
		require.Contains(t, def.Validator, "$jsonSchema", def.Name)
	}
	assert.Equal(t, map[string]bool{
		repository.ReservationsCollection: true,
		repository.ResourcesCollection:    true,
		repository.VisibilityCollection:   true,
		repository.LocksCollection:        true,
	}, names)
}

func TestVisibilityIndex_IsUnique(t *testing.T) {
	require.Len(t, VisibilityIndexes, 1)
	idx := VisibilityIndexes[0]

	assert.Equal(t, bson.D{
		{Key: "organization_id", Value: 1},
		{Key: "date", Value: 1},
		{Key: "resource_id", Value: 1},
	}, idx.Keys)
	require.NotNil(t, idx.Options)
	require.NotNil(t, idx.Options.Unique)
	assert.True(t, *idx.Options.Unique)
}

func TestLocksIndex_ExpiresAtDeadline(t *testing.T) {
	require.Len(t, LocksIndexes, 1)
	opts := LocksIndexes[0].Options
	require.NotNil(t, opts)
	require.NotNil(t, opts.ExpireAfterSeconds)
	assert.Equal(t, int32(0), *opts.ExpireAfterSeconds)
}

func TestReservationsIndexes_ServeOverlapScan(t *testing.T) {
	first := ReservationsIndexes[0].Keys.(bson.D)
	keys := make([]string, 0, len(first))
	for _, e := range first {
		keys = append(keys, e.Key)
	}
	assert.Equal(t, []string{"resource_id", "status", "start_time", "end_time"}, keys)
}

