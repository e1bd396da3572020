package config

const SystemCode = "analytics_warehouse"

// ETLLockerKey 每日ETL的分布式锁key（多副本只允许一个实例执行）
const ETLLockerKey = "analytics:etl:daily"

// ReportDispatchLockerKey 报表到期检查的锁key
const ReportDispatchLockerKey = "analytics:report:dispatch"

// ReportJobLockerKeyFormat 单个报表任务执行的锁key
const ReportJobLockerKeyFormat = "analytics:report:job:%s"

// ETLProcessName 完整ETL流水线在运行日志中的名称
const ETLProcessName = "full_etl_pipeline"

// ServiceTokenSubject 访问上游服务时使用的服务身份
const ServiceTokenSubject = "analytics-service"
