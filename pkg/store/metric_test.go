package store

import (
	"context"
	"testing"
	"time"

	"github.com/codelieche/analytics/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricStore_ValueAndBreakdown(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	dates := NewDateDimensionStore(db, time.UTC)
	dims := NewDimensionStore(db)
	facts := NewTicketFactStore(db)
	activity := NewUserActivityStore(db)
	s := NewMetricStore(db)

	day1, err := dates.Resolve(ctx, nil, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	day2, err := dates.Resolve(ctx, nil, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	alice := &core.UserDimension{ExternalID: "u1", Username: "alice"}
	require.NoError(t, dims.Upsert(ctx, nil, alice))
	hardware := &core.CategoryDimension{ExternalID: "c1", Name: "hardware"}
	require.NoError(t, dims.Upsert(ctx, nil, hardware))

	ptr := func(v float64) *float64 { return &v }
	rows := []*core.TicketFact{
		{ExternalTicketID: "T-1", CreatedDateID: day1.ID, ResolvedDateID: &day2.ID, CategoryID: &hardware.ID, AssigneeID: &alice.ID,
			ResponseTimeMinutes: ptr(10), ResolutionTimeMinutes: ptr(600)},
		{ExternalTicketID: "T-2", CreatedDateID: day1.ID, ResponseTimeMinutes: ptr(30)},
		{ExternalTicketID: "T-3", CreatedDateID: day2.ID, CategoryID: &hardware.ID},
	}
	for _, row := range rows {
		row.SourceCreatedAt = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		row.EtlUpdatedAt = time.Now().UTC()
		require.NoError(t, facts.Upsert(ctx, nil, row))
	}
	_, err = activity.CreateIfAbsent(ctx, nil, &core.UserActivityFact{DateID: day1.ID, UserID: alice.ID, TicketsCreated: 2, TicketsClosed: 1})
	require.NoError(t, err)

	value, err := s.Value(ctx, core.MetricTicketCount, 20240301, 20240301)
	require.NoError(t, err)
	assert.Equal(t, 2.0, value)

	value, err = s.Value(ctx, core.MetricTicketCount, 20240301, 20240302)
	require.NoError(t, err)
	assert.Equal(t, 3.0, value)

	value, err = s.Value(ctx, core.MetricAvgResponseTime, 20240301, 20240302)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, value, 1e-9)

	value, err = s.Value(ctx, core.MetricTicketsClosed, 20240302, 20240302)
	require.NoError(t, err)
	assert.Equal(t, 1.0, value)

	value, err = s.Value(ctx, core.MetricUserActivity, 20240301, 20240331)
	require.NoError(t, err)
	assert.Equal(t, 3.0, value)

	// 没有数据的平均值为0
	value, err = s.Value(ctx, core.MetricAvgResolutionTime, 20250101, 20250131)
	require.NoError(t, err)
	assert.Equal(t, 0.0, value)

	breakdown, err := s.Breakdown(ctx, core.MetricTicketCount, core.BreakdownCategory, 20240301, 20240302)
	require.NoError(t, err)
	require.Len(t, breakdown, 2)
	assert.Equal(t, "hardware", breakdown[0].Label)
	assert.Equal(t, 2.0, breakdown[0].Value)
	assert.Equal(t, "unknown", breakdown[1].Label)
	assert.Equal(t, 1.0, breakdown[1].Value)

	_, err = s.Breakdown(ctx, core.MetricUserActivity, core.BreakdownCategory, 20240301, 20240302)
	assert.ErrorIs(t, err, core.ErrBadRequest)

	byUser, err := s.Breakdown(ctx, core.MetricUserActivity, core.BreakdownAssignee, 20240301, 20240302)
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, "alice", byUser[0].Label)
}
