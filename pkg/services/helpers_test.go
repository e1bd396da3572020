package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/codelieche/analytics/pkg/core"
	"github.com/codelieche/analytics/pkg/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB 每个测试一个独立的内存数据库
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, core.AutoMigrate(db))
	return db
}

// warehouse 测试用的仓库组件
type warehouse struct {
	db         *gorm.DB
	dates      core.DateDimensionStore
	dimensions core.DimensionStore
	facts      core.TicketFactStore
	activities core.UserActivityStore
	logs       core.ETLRunLogStore
	metrics    core.MetricStore
	loader     *FactLoader
}

func newTestWarehouse(t *testing.T) *warehouse {
	db := newTestDB(t)
	w := &warehouse{
		db:         db,
		dates:      store.NewDateDimensionStore(db, time.UTC),
		dimensions: store.NewDimensionStore(db),
		facts:      store.NewTicketFactStore(db),
		activities: store.NewUserActivityStore(db),
		logs:       store.NewETLRunLogStore(db),
		metrics:    store.NewMetricStore(db),
	}
	w.loader = NewFactLoader(store.NewUnitOfWork(db), w.dates, w.dimensions, w.facts, w.activities).(*FactLoader)
	return w
}

// fakeExtractor 固定返回的抽取结果
type fakeExtractor struct {
	users      []core.RawUser
	categories []core.RawCategory
	tickets    []core.RawTicket
	err        error
	calls      int
}

func (f *fakeExtractor) ExtractTickets(ctx context.Context, fromDate time.Time) (*core.Batch[core.RawTicket], error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &core.Batch[core.RawTicket]{Records: f.tickets}, nil
}

func (f *fakeExtractor) ExtractUsers(ctx context.Context) (*core.Batch[core.RawUser], error) {
	if f.err != nil {
		return nil, f.err
	}
	return &core.Batch[core.RawUser]{Records: f.users}, nil
}

func (f *fakeExtractor) ExtractCategories(ctx context.Context) (*core.Batch[core.RawCategory], error) {
	if f.err != nil {
		return nil, f.err
	}
	return &core.Batch[core.RawCategory]{Records: f.categories}, nil
}

func boolPtr(v bool) *bool { return &v }
