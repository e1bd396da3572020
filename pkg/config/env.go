package config

import (
	"os"
	"strconv"
	"time"
)

// GetDefaultEnv 获取环境变量，若不存在则返回默认值
// key: 环境变量名
// value: 默认值
// return: 环境变量值
func GetDefaultEnv(key, value string) string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return value
	}
	return os.ExpandEnv(val)
}

// getEnvInt 获取整型环境变量，解析失败时返回默认值
func getEnvInt(key string, value int) int {
	if v, err := strconv.Atoi(GetDefaultEnv(key, "")); err == nil {
		return v
	}
	return value
}

// getEnvBool 获取布尔型环境变量
func getEnvBool(key string, value bool) bool {
	if v, err := strconv.ParseBool(GetDefaultEnv(key, "")); err == nil {
		return v
	}
	return value
}

// getEnvSeconds 获取以秒为单位的时长
func getEnvSeconds(key string, value int) time.Duration {
	seconds := getEnvInt(key, value)
	if seconds <= 0 {
		seconds = value
	}
	return time.Duration(seconds) * time.Second
}
