package config

import (
	"strconv"
	"time"
)

// web 配置
type web struct {
	Host         string        // 监听主机
	Port         int           // 监听端口
	ReadTimeout  time.Duration // 读超时
	WriteTimeout time.Duration // 写超时（预测接口可能较慢）
}

// Address 获取web服务监听的地址
func (w *web) Address() string {
	return w.Host + ":" + strconv.Itoa(w.Port)
}

var Web *web

// parseWeb 解析web配置
func parseWeb() {
	Web = &web{
		Host:         GetDefaultEnv("WEB_HOST", "0.0.0.0"),
		Port:         getEnvInt("WEB_PORT", 8000),
		ReadTimeout:  getEnvSeconds("WEB_READ_TIMEOUT", 30),
		WriteTimeout: getEnvSeconds("WEB_WRITE_TIMEOUT", 60),
	}
}

func init() {
	parseWeb()
}
