package store

import (
	"context"
	"testing"

	"github.com/codelieche/analytics/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDimensionStore_UpsertOverwrites(t *testing.T) {
	db := newTestDB(t)
	s := NewDimensionStore(db)
	ctx := context.Background()

	first := &core.UserDimension{ExternalID: "u1", Username: "alice", Email: "alice@example.com", IsActive: true}
	require.NoError(t, s.Upsert(ctx, nil, first))
	require.NotZero(t, first.ID)

	second := &core.UserDimension{ExternalID: "u1", Username: "alice.w", Email: "alice@example.com", IsActive: true}
	require.NoError(t, s.Upsert(ctx, nil, second))
	assert.Equal(t, first.ID, second.ID)

	count, err := s.Count(ctx, &core.UserDimension{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	found := &core.UserDimension{}
	require.NoError(t, s.FindByExternalID(ctx, found, "u1"))
	assert.Equal(t, "alice.w", found.Username)
	assert.False(t, found.LastUpdated.IsZero())
}

func TestDimensionStore_EnsureKeepsAttributes(t *testing.T) {
	db := newTestDB(t)
	s := NewDimensionStore(db)
	ctx := context.Background()

	status := &core.StatusDimension{ExternalID: "3", Name: "closed", IsClosed: true}
	require.NoError(t, s.Upsert(ctx, nil, status))

	// 只知道ID时不能把已有属性清空
	ref := &core.StatusDimension{ExternalID: "3"}
	require.NoError(t, s.Ensure(ctx, nil, ref))
	assert.Equal(t, status.ID, ref.ID)
	assert.Equal(t, "closed", ref.Name)
	assert.True(t, ref.IsClosed)

	// 不存在时创建
	other := &core.StatusDimension{ExternalID: "4"}
	require.NoError(t, s.Ensure(ctx, nil, other))
	assert.NotZero(t, other.ID)
	assert.NotEqual(t, status.ID, other.ID)

	count, err := s.Count(ctx, &core.StatusDimension{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestDimensionStore_CategoryParent(t *testing.T) {
	db := newTestDB(t)
	s := NewDimensionStore(db)
	ctx := context.Background()

	parent := &core.CategoryDimension{ExternalID: "c1", Name: "Hardware"}
	require.NoError(t, s.Upsert(ctx, nil, parent))

	child := &core.CategoryDimension{ExternalID: "c2", Name: "Laptop", ParentID: &parent.ID}
	require.NoError(t, s.Upsert(ctx, nil, child))
	require.NotNil(t, child.ParentID)
	assert.Equal(t, parent.ID, *child.ParentID)
}

func TestDimensionStore_EmptyExternalID(t *testing.T) {
	db := newTestDB(t)
	s := NewDimensionStore(db)

	assert.Error(t, s.Upsert(context.Background(), nil, &core.PriorityDimension{Name: "high"}))
	assert.Error(t, s.Ensure(context.Background(), nil, &core.PriorityDimension{}))
}

func TestDimensionStore_FindByExternalIDNotFound(t *testing.T) {
	db := newTestDB(t)
	s := NewDimensionStore(db)

	err := s.FindByExternalID(context.Background(), &core.PriorityDimension{}, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
