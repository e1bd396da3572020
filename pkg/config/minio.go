package config

// minio 报表导出文件的对象存储配置
type minio struct {
	Enabled         bool   // 未开启时导出文件只随邮件发送
	Endpoint        string // MinIO服务端点
	AccessKeyID     string // 访问密钥ID
	SecretAccessKey string // 秘密访问密钥
	UseSSL          bool   // 是否使用SSL
	BucketName      string // 存储桶
}

var MinIO *minio

func init() {
	MinIO = &minio{
		Enabled:         getEnvBool("MINIO_ENABLED", false),
		Endpoint:        GetDefaultEnv("MINIO_ENDPOINT", "localhost:9000"),
		AccessKeyID:     GetDefaultEnv("MINIO_ACCESS_KEY_ID", "minioadmin"),
		SecretAccessKey: GetDefaultEnv("MINIO_SECRET_ACCESS_KEY", "minioadmin"),
		UseSSL:          getEnvBool("MINIO_USE_SSL", false),
		BucketName:      GetDefaultEnv("MINIO_BUCKET", "analytics-reports"),
	}
}
