package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/codelieche/analytics/pkg/config"
	"github.com/codelieche/analytics/pkg/core"
	"github.com/codelieche/analytics/pkg/monitoring"
	"github.com/codelieche/analytics/pkg/utils/logger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ExtractorOptions 抽取客户端配置
type ExtractorOptions struct {
	TicketServiceURL string
	UserServiceURL   string
	BatchSize        int
	MaxPages         int
	Timeout          time.Duration
	RateLimit        float64
	RateBurst        int
	Tokens           TokenSource
	Transport        http.RoundTripper // 测试时可注入
}

// HTTPExtractor 从工单服务、用户服务分页抽取数据
//
// 请求：GET {base}/api/tickets?from_date=YYYY-MM-DD&limit=N[&cursor=C]
// 响应：{"tickets": [...], "next_cursor": "..."}，next_cursor为空表示没有下一页
// 翻页数量受MaxPages限制，超出时记录告警并计数
type HTTPExtractor struct {
	opts       *ExtractorOptions
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewHTTPExtractor 创建抽取客户端
func NewHTTPExtractor(opts *ExtractorOptions) *HTTPExtractor {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 50
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 10
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 5
	}

	return &HTTPExtractor{
		opts: opts,
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: opts.Transport,
		},
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst),
	}
}

// NewHTTPExtractorFromConfig 根据config.ETL创建抽取客户端
func NewHTTPExtractorFromConfig() *HTTPExtractor {
	return NewHTTPExtractor(&ExtractorOptions{
		TicketServiceURL: config.ETL.TicketServiceURL,
		UserServiceURL:   config.ETL.UserServiceURL,
		BatchSize:        config.ETL.BatchSize,
		MaxPages:         config.ETL.MaxPages,
		Timeout:          config.ETL.HTTPTimeout,
		RateLimit:        config.ETL.RateLimit,
		RateBurst:        config.ETL.RateBurst,
		Tokens:           NewServiceTokenSourceFromConfig(),
	})
}

// ExtractTickets 抽取from_date之后变化的工单
func (e *HTTPExtractor) ExtractTickets(ctx context.Context, fromDate time.Time) (*core.Batch[core.RawTicket], error) {
	query := url.Values{}
	query.Set("from_date", fromDate.Format("2006-01-02"))
	query.Set("limit", strconv.Itoa(e.opts.BatchSize))
	return fetchAll[core.RawTicket](ctx, e, "tickets", e.opts.TicketServiceURL, "/api/tickets", query)
}

// ExtractUsers 抽取用户
func (e *HTTPExtractor) ExtractUsers(ctx context.Context) (*core.Batch[core.RawUser], error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(e.opts.BatchSize))
	return fetchAll[core.RawUser](ctx, e, "users", e.opts.UserServiceURL, "/api/users", query)
}

// ExtractCategories 抽取分类
func (e *HTTPExtractor) ExtractCategories(ctx context.Context) (*core.Batch[core.RawCategory], error) {
	return fetchAll[core.RawCategory](ctx, e, "categories", e.opts.TicketServiceURL, "/api/categories", url.Values{})
}

// pageBody 一页响应
type pageBody struct {
	Items      json.RawMessage
	NextCursor string
}

// fetchAll 跟随next_cursor抽取所有页
func fetchAll[T any](ctx context.Context, e *HTTPExtractor, service, baseURL, path string, query url.Values) (*core.Batch[T], error) {
	batch := &core.Batch[T]{}
	cursor := ""

	for page := 1; ; page++ {
		if cursor != "" {
			query.Set("cursor", cursor)
		}
		endpoint := strings.TrimRight(baseURL, "/") + path + "?" + query.Encode()

		body, err := e.fetchPage(ctx, service, endpoint)
		if err != nil {
			return nil, err
		}

		if len(body.Items) > 0 && string(body.Items) != "null" {
			// 页面本身不是数组视为上游异常，单条记录格式错误只跳过该条
			var items []json.RawMessage
			if err := json.Unmarshal(body.Items, &items); err != nil {
				return nil, &core.ExtractionError{Service: service, URL: endpoint, Err: fmt.Errorf("解析%s失败: %w", service, err)}
			}
			for _, item := range items {
				var record T
				if err := json.Unmarshal(item, &record); err != nil {
					batch.Invalid = append(batch.Invalid, &core.TransformError{Record: recordName(service, item, batch.Len()), Err: err})
					continue
				}
				batch.Records = append(batch.Records, record)
			}
		}

		if body.NextCursor == "" {
			break
		}
		if page >= e.opts.MaxPages {
			logger.Warn("抽取达到最大分页数，剩余数据未抽取",
				zap.String("service", service),
				zap.Int("max_pages", e.opts.MaxPages),
				zap.Int("records", batch.Len()))
			monitoring.GlobalMetrics.ExtractTruncated.WithLabelValues(service).Inc()
			break
		}
		cursor = body.NextCursor
	}

	logger.Info("抽取完成",
		zap.String("service", service),
		zap.Int("records", len(batch.Records)),
		zap.Int("invalid", len(batch.Invalid)))
	return batch, nil
}

// recordName 解析失败的记录标识：能取到id就用id，否则用序号
func recordName(service string, item json.RawMessage, index int) string {
	var head struct {
		ID core.ExternalID `json:"id"`
	}
	if err := json.Unmarshal(item, &head); err == nil && head.ID != "" {
		return service + ":" + head.ID.String()
	}
	return fmt.Sprintf("%s[%d]", service, index)
}

// fetchPage 请求一页数据，网络/认证/状态码错误都返回ExtractionError
func (e *HTTPExtractor) fetchPage(ctx context.Context, service, endpoint string) (*pageBody, error) {
	wrap := func(statusCode int, err error) error {
		return &core.ExtractionError{Service: service, URL: endpoint, StatusCode: statusCode, Err: err}
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, wrap(0, fmt.Errorf("rate limiter: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, wrap(0, err)
	}
	req.Header.Set("Accept", "application/json")
	if e.opts.Tokens != nil {
		token, err := e.opts.Tokens.Token()
		if err != nil {
			return nil, wrap(0, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := e.httpClient.Do(req)
	if err != nil {
		monitoring.GlobalMetrics.RecordExtract(service, "error", time.Since(start))
		return nil, wrap(0, err)
	}
	defer resp.Body.Close()
	monitoring.GlobalMetrics.RecordExtract(service, strconv.Itoa(resp.StatusCode), time.Since(start))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrap(resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		message := strings.TrimSpace(string(data))
		if len(message) > 200 {
			message = message[:200]
		}
		return nil, wrap(resp.StatusCode, errors.New(message))
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, wrap(resp.StatusCode, fmt.Errorf("响应不是JSON对象: %w", err))
	}

	body := &pageBody{Items: raw[service]}
	if cursor, ok := raw["next_cursor"]; ok && string(cursor) != "null" {
		if err := json.Unmarshal(cursor, &body.NextCursor); err != nil {
			return nil, wrap(resp.StatusCode, fmt.Errorf("next_cursor格式错误: %w", err))
		}
	}
	return body, nil
}
