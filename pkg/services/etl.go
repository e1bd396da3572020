package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/codelieche/analytics/pkg/config"
	"github.com/codelieche/analytics/pkg/core"
	"github.com/codelieche/analytics/pkg/monitoring"
	"github.com/codelieche/analytics/pkg/utils/filters"
	"github.com/codelieche/analytics/pkg/utils/logger"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// maxDetailErrors 运行日志details中最多保留的错误条数
const maxDetailErrors = 20

// entityStats 单个实体的加载统计
type entityStats struct {
	Extracted int `json:"extracted"`
	Loaded    int `json:"loaded"`
	Skipped   int `json:"skipped"`
}

// runDetails 写入etl_run_log.details
type runDetails struct {
	FromDate     string                  `json:"from_date"`
	Entities     map[string]*entityStats `json:"entities"`
	ActivityRows map[string]int          `json:"activity_rows,omitempty"`
	Errors       []string                `json:"errors,omitempty"`
}

func (d *runDetails) stats(entity string) *entityStats {
	if s, ok := d.Entities[entity]; ok {
		return s
	}
	s := &entityStats{}
	d.Entities[entity] = s
	return s
}

func (d *runDetails) addError(err error) {
	if len(d.Errors) < maxDetailErrors {
		d.Errors = append(d.Errors, err.Error())
	}
}

// NewETLService 创建ETLService实例
func NewETLService(extractor core.Extractor, loader core.FactLoader, logStore core.ETLRunLogStore, loc *time.Location) *ETLService {
	if loc == nil {
		loc = time.UTC
	}
	return &ETLService{
		extractor: extractor,
		loader:    loader,
		logStore:  logStore,
		loc:       loc,
		now:       time.Now,
	}
}

// ETLService 数据仓库ETL流水线
type ETLService struct {
	extractor core.Extractor
	loader    core.FactLoader
	logStore  core.ETLRunLogStore
	loc       *time.Location
	now       func() time.Time
}

// Run 执行一次完整的ETL
//
//  1. 写入运行日志（running）
//  2. 抽取用户、分类、工单
//  3. 依次加载用户、分类维度和工单事实，再生成昨天和今天的用户活跃度
//  4. 运行日志标记为success或failed
//
// 单条记录的转换/写入错误只跳过该记录；抽取失败会让整次运行失败，返回的ExtractionError由调用方决定是否重试
func (s *ETLService) Run(ctx context.Context, windowDays int) (runLog *core.ETLRunLog, err error) {
	if windowDays < 1 {
		windowDays = 1
	}
	start := s.now()
	fromDate := start.In(s.loc).AddDate(0, 0, -windowDays)

	runLog, err = s.logStore.Create(ctx, &core.ETLRunLog{
		ProcessName: config.ETLProcessName,
		StartTime:   start.UTC(),
		Status:      core.ETLStatusRunning,
		WindowDays:  windowDays,
	})
	if err != nil {
		logger.Error("create etl run log error", zap.Error(err))
		return nil, err
	}

	details := &runDetails{
		FromDate: fromDate.Format("2006-01-02"),
		Entities: map[string]*entityStats{},
	}

	logger.Info("ETL开始",
		zap.Uint("run_id", runLog.ID),
		zap.Int("window_days", windowDays),
		zap.String("from_date", details.FromDate))

	// 无论成功失败都要结束运行日志
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ETL panic: %v", r)
			logger.Error("etl panic recovered", zap.Any("panic", r), zap.Uint("run_id", runLog.ID))
		}
		s.finish(runLog, details, start, err)
	}()

	err = s.pipeline(ctx, runLog, details, fromDate)
	return runLog, err
}

// pipeline 抽取 + 加载
func (s *ETLService) pipeline(ctx context.Context, runLog *core.ETLRunLog, details *runDetails, fromDate time.Time) error {
	users, err := s.extractor.ExtractUsers(ctx)
	if err != nil {
		return err
	}
	categories, err := s.extractor.ExtractCategories(ctx)
	if err != nil {
		return err
	}
	tickets, err := s.extractor.ExtractTickets(ctx, fromDate)
	if err != nil {
		return err
	}
	details.stats("users").Extracted = users.Len()
	details.stats("categories").Extracted = categories.Len()
	details.stats("tickets").Extracted = tickets.Len()

	for i := range users.Records {
		_, err := s.loader.LoadUser(ctx, &users.Records[i])
		s.count(runLog, details, "users", err)
	}
	s.skipInvalid(runLog, details, "users", users.Invalid)

	for i := range categories.Records {
		_, err := s.loader.LoadCategory(ctx, &categories.Records[i])
		s.count(runLog, details, "categories", err)
	}
	s.skipInvalid(runLog, details, "categories", categories.Invalid)

	for i := range tickets.Records {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := s.loader.LoadTicket(ctx, &tickets.Records[i])
		s.count(runLog, details, "tickets", err)
	}
	s.skipInvalid(runLog, details, "tickets", tickets.Invalid)

	// 用户活跃度：昨天和今天
	today := s.now().In(s.loc)
	details.ActivityRows = map[string]int{}
	for _, day := range []time.Time{today.AddDate(0, 0, -1), today} {
		created, err := s.loader.LoadUserActivity(ctx, day)
		if err != nil {
			logger.Error("load user activity error", zap.Error(err), zap.String("date", day.Format("2006-01-02")))
			details.addError(err)
			continue
		}
		details.ActivityRows[day.Format("2006-01-02")] = created
		monitoring.GlobalMetrics.ETLRecords.WithLabelValues("user_activity", "loaded").Add(float64(created))
	}
	return nil
}

// count 统计单条记录的加载结果，失败的记录记日志后跳过
func (s *ETLService) count(runLog *core.ETLRunLog, details *runDetails, entity string, err error) {
	stats := details.stats(entity)
	if err == nil {
		stats.Loaded++
		runLog.RecordsProcessed++
		monitoring.GlobalMetrics.RecordETLRecord(entity, "loaded")
		return
	}

	stats.Skipped++
	runLog.RecordsSkipped++
	details.addError(err)

	var transformErr *core.TransformError
	if errors.As(err, &transformErr) {
		logger.Warn("skip invalid record", zap.String("entity", entity), zap.Error(err))
		monitoring.GlobalMetrics.RecordETLRecord(entity, "invalid")
	} else {
		logger.Error("skip record, persist error", zap.String("entity", entity), zap.Error(err))
		monitoring.GlobalMetrics.RecordETLRecord(entity, "failed")
	}
}

// skipInvalid 抽取时就无法解析的记录
func (s *ETLService) skipInvalid(runLog *core.ETLRunLog, details *runDetails, entity string, invalid []*core.TransformError) {
	for _, err := range invalid {
		s.count(runLog, details, entity, err)
	}
}

// finish 结束运行日志
// 使用独立的context，调用方取消后仍然能写入最终状态
func (s *ETLService) finish(runLog *core.ETLRunLog, details *runDetails, start time.Time, runErr error) {
	end := s.now()
	endUTC := end.UTC()
	runLog.EndTime = &endUTC
	if runErr != nil {
		runLog.Status = core.ETLStatusFailed
		runLog.ErrorMessage = runErr.Error()
	} else {
		runLog.Status = core.ETLStatusSuccess
	}
	if data, err := json.Marshal(details); err == nil {
		runLog.Details = datatypes.JSON(data)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.logStore.Update(ctx, runLog); err != nil {
		logger.Error("update etl run log error", zap.Error(err), zap.Uint("run_id", runLog.ID))
	}

	duration := end.Sub(start)
	monitoring.GlobalMetrics.RecordETLRun(runLog.Status, duration)
	if runErr != nil {
		logger.Error("ETL失败",
			zap.Uint("run_id", runLog.ID),
			zap.Duration("duration", duration),
			zap.Error(runErr))
	} else {
		logger.Info("ETL完成",
			zap.Uint("run_id", runLog.ID),
			zap.Int("records_processed", runLog.RecordsProcessed),
			zap.Int("records_skipped", runLog.RecordsSkipped),
			zap.Duration("duration", duration))
	}
}

// RunWithRetry 抽取失败时按间隔重试，其它错误直接返回
// 每次尝试都会写一条独立的运行日志
func (s *ETLService) RunWithRetry(ctx context.Context, windowDays, maxRetries int, interval time.Duration) (*core.ETLRunLog, error) {
	for attempt := 0; ; attempt++ {
		runLog, err := s.Run(ctx, windowDays)
		if err == nil || !core.IsRetryable(err) || attempt >= maxRetries {
			return runLog, err
		}

		logger.Warn("etl extraction failed, retry later",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Duration("interval", interval),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return runLog, err
		case <-time.After(interval):
		}
	}
}

// FindLog 根据ID获取运行日志
func (s *ETLService) FindLog(ctx context.Context, id uint) (*core.ETLRunLog, error) {
	runLog, err := s.logStore.FindByID(ctx, id)
	if err != nil && err != core.ErrNotFound {
		logger.Error("find etl run log error", zap.Error(err), zap.Uint("id", id))
	}
	return runLog, err
}

// ListLogs 运行日志列表
func (s *ETLService) ListLogs(ctx context.Context, offset int, limit int, filterActions ...filters.Filter) ([]*core.ETLRunLog, error) {
	logs, err := s.logStore.List(ctx, offset, limit, filterActions...)
	if err != nil {
		logger.Error("list etl run logs error", zap.Error(err))
	}
	return logs, err
}

// CountLogs 运行日志数量
func (s *ETLService) CountLogs(ctx context.Context, filterActions ...filters.Filter) (int64, error) {
	count, err := s.logStore.Count(ctx, filterActions...)
	if err != nil {
		logger.Error("count etl run logs error", zap.Error(err))
	}
	return count, err
}
