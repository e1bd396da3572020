package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/codelieche/analytics/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateDimensionStore_ResolveSameDay(t *testing.T) {
	db := newTestDB(t)
	s := NewDateDimensionStore(db, time.UTC)
	ctx := context.Background()

	morning, err := s.Resolve(ctx, nil, time.Date(2024, 2, 29, 0, 0, 1, 0, time.UTC))
	require.NoError(t, err)
	evening, err := s.Resolve(ctx, nil, time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, morning.ID, evening.ID)
	assert.Equal(t, 20240229, morning.DateKey)
	assert.Equal(t, 3, morning.DayOfWeek) // 周四
	assert.Equal(t, "Thursday", morning.DayName)
	assert.Equal(t, 1, morning.Quarter)
	assert.False(t, morning.IsWeekend)

	next, err := s.Resolve(ctx, nil, time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.NotEqual(t, morning.ID, next.ID)
	assert.True(t, next.IsWeekend)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestDateDimensionStore_ResolveUsesWarehouseLocation(t *testing.T) {
	db := newTestDB(t)
	loc := time.FixedZone("UTC+8", 8*3600)
	s := NewDateDimensionStore(db, loc)

	// UTC 2024-03-01 20:00 是东八区的 3月2日
	dim, err := s.Resolve(context.Background(), nil, time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 20240302, dim.DateKey)
}

func TestDateDimensionStore_ResolveConcurrent(t *testing.T) {
	db := newTestDB(t)
	s := NewDateDimensionStore(db, time.UTC)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]uint, 8)
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dim, err := s.Resolve(ctx, nil, time.Date(2024, 5, 1, i, 0, 0, 0, time.UTC))
			errs[i] = err
			if dim != nil {
				ids[i] = dim.ID
			}
		}(i)
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestDateDimensionStore_ResolveInTransaction(t *testing.T) {
	db := newTestDB(t)
	s := NewDateDimensionStore(db, time.UTC)
	ctx := context.Background()

	var resolved *core.DateDimension
	err := NewUnitOfWork(db).Transaction(ctx, func(tx core.UnitOfWork) error {
		var err error
		resolved, err = s.Resolve(ctx, tx, time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC))
		return err
	})
	require.NoError(t, err)

	found, err := s.FindByDate(ctx, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, resolved.ID, found.ID)

	_, err = s.FindByDate(ctx, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDateDimensionStore_MarkHoliday(t *testing.T) {
	db := newTestDB(t)
	s := NewDateDimensionStore(db, time.UTC)
	ctx := context.Background()
	day := time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC)

	dim, err := s.MarkHoliday(ctx, day, "Christmas")
	require.NoError(t, err)
	assert.True(t, dim.IsHoliday)

	found, err := s.FindByDate(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, dim.ID, found.ID)
	assert.True(t, found.IsHoliday)
	assert.Equal(t, "Christmas", found.HolidayName)
	assert.Equal(t, 2, found.DayOfWeek)

	// 取消
	_, err = s.MarkHoliday(ctx, day, "")
	require.NoError(t, err)
	found, err = s.FindByDate(ctx, day)
	require.NoError(t, err)
	assert.False(t, found.IsHoliday)
}
