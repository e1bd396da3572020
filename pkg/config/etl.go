package config

import (
	"time"
)

// etl 数据仓库ETL配置
//
// 上游服务：
// - 工单服务：/api/tickets、/api/categories
// - 用户服务：/api/users
type etl struct {
	TicketServiceURL string        // 工单服务地址
	UserServiceURL   string        // 用户服务地址
	BatchSize        int           // 单页拉取条数
	MaxPages         int           // 单次抽取最多跟随的分页数（防止无限翻页）
	HTTPTimeout      time.Duration // 单次HTTP请求超时
	RateLimit        float64       // 每秒请求数上限
	RateBurst        int           // 突发请求数
	JWTSecret        string        // 签发服务token的密钥
	ServiceAPIKey    string        // 服务间调用的api key
	TokenTTL         time.Duration // 服务token有效期
	MaxRetries       int           // 抽取失败（ExtractionError）时的重试次数
	RetryInterval    time.Duration // 重试间隔
	DailyCron        string        // 每日ETL的cron表达式（带秒）
	WindowDays       int           // 每日ETL的抽取窗口
	TimeZone         string        // 数据仓库的日期维度时区
}

// Location 日期维度使用的时区，解析失败时回退到UTC
func (e *etl) Location() *time.Location {
	if loc, err := time.LoadLocation(e.TimeZone); err == nil {
		return loc
	}
	return time.UTC
}

var ETL *etl

func parseETL() {
	rateLimit := float64(getEnvInt("ETL_RATE_LIMIT", 10))
	if rateLimit <= 0 {
		rateLimit = 10
	}

	ETL = &etl{
		TicketServiceURL: GetDefaultEnv("TICKET_SERVICE_URL", "http://localhost:8001"),
		UserServiceURL:   GetDefaultEnv("USER_SERVICE_URL", "http://localhost:8000"),
		BatchSize:        getEnvInt("ETL_BATCH_SIZE", 1000),
		MaxPages:         getEnvInt("ETL_MAX_PAGES", 50),
		HTTPTimeout:      getEnvSeconds("ETL_HTTP_TIMEOUT", 30),
		RateLimit:        rateLimit,
		RateBurst:        getEnvInt("ETL_RATE_BURST", 5),
		JWTSecret:        GetDefaultEnv("JWT_SECRET", "your-super-secret-key-here"),
		ServiceAPIKey:    GetDefaultEnv("SERVICE_API_KEY", ""),
		TokenTTL:         getEnvSeconds("SERVICE_TOKEN_TTL", 300),
		MaxRetries:       getEnvInt("ETL_MAX_RETRIES", 3),
		RetryInterval:    getEnvSeconds("ETL_RETRY_INTERVAL", 60),
		DailyCron:        GetDefaultEnv("ETL_DAILY_CRON", "0 0 2 * * *"),
		WindowDays:       getEnvInt("ETL_WINDOW_DAYS", 1),
		TimeZone:         GetDefaultEnv("ETL_TIMEZONE", "UTC"),
	}
}

func init() {
	parseETL()
}
