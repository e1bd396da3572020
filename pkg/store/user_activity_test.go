package store

import (
	"context"
	"testing"
	"time"

	"github.com/codelieche/analytics/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserActivityStore_AggregateAndCreateOnce(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	dates := NewDateDimensionStore(db, time.UTC)
	dims := NewDimensionStore(db)
	facts := NewTicketFactStore(db)
	s := NewUserActivityStore(db)

	alice := &core.UserDimension{ExternalID: "u1", Username: "alice"}
	bob := &core.UserDimension{ExternalID: "u2", Username: "bob"}
	require.NoError(t, dims.Upsert(ctx, nil, alice))
	require.NoError(t, dims.Upsert(ctx, nil, bob))
	closed := &core.StatusDimension{ExternalID: "s-closed", Name: "closed", IsClosed: true}
	open := &core.StatusDimension{ExternalID: "s-open", Name: "open", IsOpen: true}
	require.NoError(t, dims.Upsert(ctx, nil, closed))
	require.NoError(t, dims.Upsert(ctx, nil, open))

	day, err := dates.Resolve(ctx, nil, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	add := func(id string, creator, assignee *uint, status uint, resolved bool) {
		fact := &core.TicketFact{
			ExternalTicketID: id,
			CreatedDateID:    day.ID,
			CreatorID:        creator,
			AssigneeID:       assignee,
			StatusID:         &status,
			SourceCreatedAt:  time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
			EtlUpdatedAt:     time.Now().UTC(),
		}
		if resolved {
			fact.ResolvedDateID = &day.ID
		}
		require.NoError(t, facts.Upsert(ctx, nil, fact))
	}
	add("T-1", &alice.ID, &bob.ID, closed.ID, true)
	add("T-2", &alice.ID, &bob.ID, closed.ID, true)
	add("T-3", &bob.ID, &alice.ID, open.ID, true) // 未关闭不计入
	add("T-4", &alice.ID, nil, open.ID, false)

	activities, err := s.Aggregate(ctx, nil, day)
	require.NoError(t, err)
	require.Len(t, activities, 2)

	byUser := map[uint]*core.UserActivityFact{}
	for _, a := range activities {
		byUser[a.UserID] = a
	}
	assert.Equal(t, 3, byUser[alice.ID].TicketsCreated)
	assert.Equal(t, 0, byUser[alice.ID].TicketsClosed)
	assert.Equal(t, 1, byUser[bob.ID].TicketsCreated)
	assert.Equal(t, 2, byUser[bob.ID].TicketsClosed)

	for _, a := range activities {
		created, err := s.CreateIfAbsent(ctx, nil, a)
		require.NoError(t, err)
		assert.True(t, created)
	}

	// 已存在的不会被重新聚合
	again := &core.UserActivityFact{DateID: day.ID, UserID: alice.ID, TicketsCreated: 99}
	created, err := s.CreateIfAbsent(ctx, nil, again)
	require.NoError(t, err)
	assert.False(t, created)

	stored, err := s.Find(ctx, alice.ID, day.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.TicketsCreated)

	_, err = s.Find(ctx, 999, day.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}
