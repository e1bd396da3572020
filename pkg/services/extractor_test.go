package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/codelieche/analytics/pkg/core"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExtractor(serverURL string, maxPages int) *HTTPExtractor {
	return NewHTTPExtractor(&ExtractorOptions{
		TicketServiceURL: serverURL,
		UserServiceURL:   serverURL,
		BatchSize:        2,
		MaxPages:         maxPages,
		Timeout:          5 * time.Second,
		RateLimit:        1000,
		RateBurst:        100,
		Tokens:           NewServiceTokenSource("test-secret", "analytics-service", "k1", time.Minute),
	})
}

func TestServiceTokenSource_Claims(t *testing.T) {
	source := NewServiceTokenSource("test-secret", "analytics-service", "k1", 5*time.Minute)
	tokenString, err := source.Token()
	require.NoError(t, err)

	claims := &ServiceClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	assert.True(t, token.Valid)
	assert.Equal(t, "HS256", token.Method.Alg())
	assert.Equal(t, "analytics-service", claims.Subject)
	assert.True(t, claims.Service)
	assert.Equal(t, "k1", claims.APIKey)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), claims.ExpiresAt.Time, 5*time.Second)

	_, err = NewServiceTokenSource("", "analytics-service", "", 0).Token()
	assert.Error(t, err)
}

func TestHTTPExtractor_FollowsCursor(t *testing.T) {
	var authHeader atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tickets", r.URL.Path)
		assert.Equal(t, "2024-03-01", r.URL.Query().Get("from_date"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		authHeader.Store(r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("cursor") {
		case "":
			fmt.Fprint(w, `{"tickets":[{"id":1,"title":"a","created_at":"2024-03-01T10:00:00Z"},{"id":"2","title":"b"}],"next_cursor":"c2"}`)
		case "c2":
			fmt.Fprint(w, `{"tickets":[{"id":3,"title":"c"}],"next_cursor":null}`)
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("cursor"))
		}
	}))
	defer server.Close()

	extractor := newTestExtractor(server.URL, 10)
	tickets, err := extractor.ExtractTickets(context.Background(), time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, tickets.Records, 3)
	assert.Empty(t, tickets.Invalid)
	assert.Equal(t, core.ExternalID("1"), tickets.Records[0].ID)
	assert.Equal(t, core.ExternalID("2"), tickets.Records[1].ID)
	assert.Equal(t, "2024-03-01T10:00:00Z", tickets.Records[0].CreatedAt)
	assert.True(t, strings.HasPrefix(authHeader.Load().(string), "Bearer "))
}

func TestHTTPExtractor_MaxPages(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		fmt.Fprintf(w, `{"users":[{"id":%d,"username":"u%d"}],"next_cursor":"next-%d"}`, n, n, n)
	}))
	defer server.Close()

	extractor := newTestExtractor(server.URL, 3)
	users, err := extractor.ExtractUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, users.Records, 3)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestHTTPExtractor_Categories(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/categories", r.URL.Path)
		fmt.Fprint(w, `{"categories":[{"id":1,"name":"Hardware"},{"id":2,"name":"Laptop","parent_id":1}]}`)
	}))
	defer server.Close()

	categories, err := newTestExtractor(server.URL, 10).ExtractCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, categories.Records, 2)
	assert.Equal(t, core.ExternalID("1"), categories.Records[1].ParentID)
}

func TestHTTPExtractor_MalformedRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"tickets":[`+
			`{"id":1,"title":"a","created_at":"2024-03-01T10:00:00Z"},`+
			`{"id":2,"created_at":1709287200},`+
			`{"title":"no id","reopened_count":"3"},`+
			`{"id":3,"title":"c","created_at":"2024-03-01T11:00:00Z"}]}`)
	}))
	defer server.Close()

	tickets, err := newTestExtractor(server.URL, 10).ExtractTickets(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 4, tickets.Len())
	require.Len(t, tickets.Records, 2)
	assert.Equal(t, core.ExternalID("1"), tickets.Records[0].ID)
	assert.Equal(t, core.ExternalID("3"), tickets.Records[1].ID)

	require.Len(t, tickets.Invalid, 2)
	assert.Equal(t, "tickets:2", tickets.Invalid[0].Record)
	assert.Equal(t, "tickets[2]", tickets.Invalid[1].Record)
	assert.False(t, core.IsRetryable(tickets.Invalid[0]))
}

func TestHTTPExtractor_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/users" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `not json`)
	}))
	defer server.Close()
	extractor := newTestExtractor(server.URL, 10)

	_, err := extractor.ExtractUsers(context.Background())
	var extractionErr *core.ExtractionError
	require.True(t, errors.As(err, &extractionErr))
	assert.Equal(t, http.StatusUnauthorized, extractionErr.StatusCode)
	assert.Equal(t, "users", extractionErr.Service)
	assert.True(t, core.IsRetryable(err))

	_, err = extractor.ExtractCategories(context.Background())
	require.True(t, errors.As(err, &extractionErr))
	assert.Equal(t, "categories", extractionErr.Service)

	// 服务不可达
	server.Close()
	_, err = extractor.ExtractTickets(context.Background(), time.Now())
	require.True(t, errors.As(err, &extractionErr))
	assert.Equal(t, 0, extractionErr.StatusCode)
}
