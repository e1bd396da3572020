// Package middleware HTTP中间件
//
// - Prometheus请求指标
// - 慢请求/错误请求日志
// - CORS
package middleware

import (
	"strconv"
	"time"

	"github.com/codelieche/analytics/pkg/monitoring"
	"github.com/codelieche/analytics/pkg/utils/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SlowRequestThreshold 超过这个耗时的请求记录告警日志
// 预测接口会等待模型拟合，所以阈值比普通接口宽松
var SlowRequestThreshold = 3 * time.Second

// PrometheusMiddleware Prometheus监控中间件
// 自动收集HTTP请求的监控指标
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		monitoring.GlobalMetrics.HTTPRequestsInFlight.Inc()

		c.Next()

		monitoring.GlobalMetrics.HTTPRequestsInFlight.Dec()

		// 用路由模板作为endpoint，避免ID导致标签基数过大
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		monitoring.GlobalMetrics.RecordHTTPRequest(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// RequestLogMiddleware 记录慢请求和错误请求
func RequestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status_code", statusCode),
			zap.Duration("duration", duration),
			zap.String("remote_addr", c.ClientIP()),
		}

		switch {
		case statusCode >= 500:
			logger.Error("HTTP请求错误", append(fields, zap.String("errors", c.Errors.String()))...)
		case statusCode >= 400:
			logger.Debug("HTTP请求被拒绝", fields...)
		case duration > SlowRequestThreshold:
			logger.Warn("检测到慢请求", fields...)
		}
	}
}
