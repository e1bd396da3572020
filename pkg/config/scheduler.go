package config

// scheduler 报表调度配置
type scheduler struct {
	Enabled        bool   // 是否启动后台调度（多副本时也可只在部分实例开启）
	DueCheckCron   string // 到期检查的cron表达式（带秒）
	Workers        int    // 报表执行的并发数
	ForecastWorker int    // 预测计算的并发数（CPU密集）
	TimeZone       string // 计算next_run使用的时区
}

var Scheduler *scheduler

func init() {
	workers := getEnvInt("SCHEDULER_WORKERS", 4)
	if workers < 1 {
		workers = 4
	}
	forecastWorkers := getEnvInt("FORECAST_WORKERS", 2)
	if forecastWorkers < 1 {
		forecastWorkers = 2
	}

	Scheduler = &scheduler{
		Enabled:        getEnvBool("SCHEDULER_ENABLED", true),
		DueCheckCron:   GetDefaultEnv("SCHEDULER_DUE_CRON", "0 * * * * *"),
		Workers:        workers,
		ForecastWorker: forecastWorkers,
		TimeZone:       GetDefaultEnv("SCHEDULER_TIMEZONE", "UTC"),
	}
}
