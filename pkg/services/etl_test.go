package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/codelieche/analytics/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestETL(w *warehouse, extractor core.Extractor, now time.Time) *ETLService {
	service := NewETLService(extractor, w.loader, w.logs, time.UTC)
	service.now = func() time.Time { return now }
	return service
}

func sampleExtract() *fakeExtractor {
	return &fakeExtractor{
		users: []core.RawUser{
			{ID: "1", Username: "alice"},
			{ID: "2", Username: "bob"},
		},
		categories: []core.RawCategory{
			{ID: "10", Name: "Hardware"},
		},
		tickets: []core.RawTicket{
			{ID: "100", Title: "a", CreatedAt: "2024-03-10T09:00:00Z", CreatedBy: "1", AssignedTo: "2", CategoryID: "10"},
			{ID: "101", Title: "b", CreatedAt: "2024-03-10T10:00:00Z", ResolvedAt: "2024-03-10T12:00:00Z",
				CreatedBy: "1", AssignedTo: "2", Status: &core.RawStatus{ID: "5", Name: "Closed", IsClosed: boolPtr(true)}},
			{ID: "102", Title: "missing created_at"},
		},
	}
}

func TestETLService_RunIsIdempotent(t *testing.T) {
	w := newTestWarehouse(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC)
	service := newTestETL(w, sampleExtract(), now)

	runLog, err := service.Run(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, core.ETLStatusSuccess, runLog.Status)
	// 2个用户 + 1个分类 + 2个工单
	assert.Equal(t, 5, runLog.RecordsProcessed)
	assert.Equal(t, 1, runLog.RecordsSkipped)
	require.NotNil(t, runLog.EndTime)

	first, err := w.facts.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), first)

	_, err = service.Run(ctx, 1)
	require.NoError(t, err)
	second, err := w.facts.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	users, err := w.dimensions.Count(ctx, &core.UserDimension{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), users)

	stored, err := w.logs.FindByID(ctx, runLog.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ETLStatusSuccess, stored.Status)

	var details runDetails
	require.NoError(t, json.Unmarshal(stored.Details, &details))
	assert.Equal(t, "2024-03-09", details.FromDate)
	assert.Equal(t, 3, details.Entities["tickets"].Extracted)
	assert.Equal(t, 2, details.Entities["tickets"].Loaded)
	assert.Equal(t, 1, details.Entities["tickets"].Skipped)
	assert.Equal(t, 2, details.ActivityRows["2024-03-10"])
	assert.Len(t, details.Errors, 1)

	value, err := w.metrics.Value(ctx, core.MetricUserActivity, 20240310, 20240310)
	require.NoError(t, err)
	// 用户1创建了2个工单，用户2关闭了1个
	assert.Equal(t, float64(3), value)
}

func TestETLService_ExtractionFailure(t *testing.T) {
	w := newTestWarehouse(t)
	ctx := context.Background()
	extractionErr := &core.ExtractionError{Service: "users", URL: "http://users/api/users", StatusCode: 503, Err: errors.New("unavailable")}
	service := newTestETL(w, &fakeExtractor{err: extractionErr}, time.Now())

	runLog, err := service.Run(ctx, 1)
	require.Error(t, err)
	assert.True(t, core.IsRetryable(err))

	stored, err := w.logs.FindByID(ctx, runLog.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ETLStatusFailed, stored.Status)
	assert.Contains(t, stored.ErrorMessage, "503")
	assert.NotNil(t, stored.EndTime)
}

type panicExtractor struct{ fakeExtractor }

func (p *panicExtractor) ExtractUsers(ctx context.Context) (*core.Batch[core.RawUser], error) {
	panic("boom")
}

func TestETLService_RecoversPanic(t *testing.T) {
	w := newTestWarehouse(t)
	service := newTestETL(w, &panicExtractor{}, time.Now())

	runLog, err := service.Run(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, core.ETLStatusFailed, runLog.Status)
}

func TestETLService_RunWithRetry(t *testing.T) {
	w := newTestWarehouse(t)
	ctx := context.Background()

	extractor := &fakeExtractor{err: &core.ExtractionError{Service: "tickets", Err: errors.New("timeout")}}
	service := newTestETL(w, extractor, time.Now())
	_, err := service.RunWithRetry(ctx, 1, 2, time.Millisecond)
	require.Error(t, err)

	count, err := w.logs.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	// 非抽取错误不重试
	w2 := newTestWarehouse(t)
	service = newTestETL(w2, &fakeExtractor{err: errors.New("bad config")}, time.Now())
	_, err = service.RunWithRetry(ctx, 1, 2, time.Millisecond)
	require.Error(t, err)
	count, err = w2.logs.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestETLService_SkipsMalformedRecords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/users":
			fmt.Fprint(w, `{"users":[{"id":1,"username":"alice"},{"id":2,"username":"bob","is_active":"yes"}]}`)
		case "/api/categories":
			fmt.Fprint(w, `{"categories":[]}`)
		case "/api/tickets":
			fmt.Fprint(w, `{"tickets":[`+
				`{"id":1,"title":"a","created_at":"2024-03-10T09:00:00Z","created_by":1},`+
				`{"id":2,"title":"b","created_at":1709287200},`+
				`{"id":3,"title":"c","created_at":"2024-03-10T11:00:00Z","reopened_count":"3"},`+
				`{"id":4,"title":"d","created_at":"2024-03-10T12:00:00Z","created_by":1}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	w := newTestWarehouse(t)
	ctx := context.Background()
	service := newTestETL(w, newTestExtractor(server.URL, 10), time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC))

	runLog, err := service.Run(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, core.ETLStatusSuccess, runLog.Status)
	// 1个用户 + 2个工单
	assert.Equal(t, 3, runLog.RecordsProcessed)
	assert.Equal(t, 3, runLog.RecordsSkipped)

	facts, err := w.facts.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), facts)

	var details runDetails
	require.NoError(t, json.Unmarshal(runLog.Details, &details))
	assert.Equal(t, 4, details.Entities["tickets"].Extracted)
	assert.Equal(t, 2, details.Entities["tickets"].Loaded)
	assert.Equal(t, 2, details.Entities["tickets"].Skipped)
	assert.Equal(t, 1, details.Entities["users"].Skipped)
	assert.Contains(t, details.Errors[0], "users:2")
}
