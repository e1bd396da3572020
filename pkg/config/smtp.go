package config

// smtp 报表通知邮件配置
type smtp struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

var SMTP *smtp

func init() {
	SMTP = &smtp{
		Enabled:  getEnvBool("SMTP_ENABLED", false),
		Host:     GetDefaultEnv("SMTP_HOST", "localhost"),
		Port:     getEnvInt("SMTP_PORT", 587),
		Username: GetDefaultEnv("SMTP_USERNAME", ""),
		Password: GetDefaultEnv("SMTP_PASSWORD", ""),
		From:     GetDefaultEnv("SMTP_FROM", "analytics@example.com"),
	}
}
