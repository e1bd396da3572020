package tools

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/codelieche/analytics/pkg/config"
	"github.com/codelieche/analytics/pkg/utils/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinIOClient MinIO客户端封装，报表导出文件上传到这里
type MinIOClient struct {
	client     *minio.Client
	bucketName string
}

// NewMinIOClient 创建MinIO客户端，存储桶不存在时自动创建
func NewMinIOClient(ctx context.Context, endpoint, accessKeyID, secretAccessKey string, useSSL bool, bucketName string) (*MinIOClient, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		logger.Error("创建MinIO客户端失败", zap.Error(err))
		return nil, err
	}

	if bucketName == "" {
		bucketName = "analytics-reports"
	}

	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		logger.Error("检查存储桶是否存在失败", zap.Error(err), zap.String("bucket", bucketName))
		return nil, err
	}
	if !exists {
		if err = client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			logger.Error("创建存储桶失败", zap.Error(err), zap.String("bucket", bucketName))
			return nil, err
		}
		logger.Info("创建存储桶成功", zap.String("bucket", bucketName))
	}

	return &MinIOClient{client: client, bucketName: bucketName}, nil
}

// NewMinIOClientFromConfig 根据config.MinIO创建客户端
func NewMinIOClientFromConfig(ctx context.Context) (*MinIOClient, error) {
	c := config.MinIO
	return NewMinIOClient(ctx, c.Endpoint, c.AccessKeyID, c.SecretAccessKey, c.UseSSL, c.BucketName)
}

// PutBytes 上传内容，返回 bucket/objectName
func (m *MinIOClient) PutBytes(ctx context.Context, objectName string, content []byte, contentType string) (string, error) {
	if !IsValidObjectName(objectName) {
		return "", fmt.Errorf("对象名称不合法: %s", objectName)
	}
	_, err := m.client.PutObject(ctx, m.bucketName, objectName, bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		logger.Error("上传对象到MinIO失败", zap.Error(err), zap.String("object", objectName))
		return "", err
	}
	return path.Join(m.bucketName, objectName), nil
}

// GetPresignedURL 获取预签名下载地址
func (m *MinIOClient) GetPresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	url, err := m.client.PresignedGetObject(ctx, m.bucketName, objectName, expiry, nil)
	if err != nil {
		logger.Error("获取预签名URL失败", zap.Error(err), zap.String("object", objectName))
		return "", err
	}
	return url.String(), nil
}

// HealthCheck 健康检查
func (m *MinIOClient) HealthCheck(ctx context.Context) error {
	if _, err := m.client.BucketExists(ctx, m.bucketName); err != nil {
		logger.Error("MinIO健康检查失败", zap.Error(err))
		return err
	}
	return nil
}

// BucketName 存储桶名称
func (m *MinIOClient) BucketName() string {
	return m.bucketName
}

// ReportObjectName 报表导出文件的对象名称
// 格式: reports/{yyyyMM}/{jobID}/{yyyyMMdd-HHmmss}_{filename}
func ReportObjectName(jobID string, filename string, at time.Time) string {
	return fmt.Sprintf("reports/%s/%s/%s_%s", at.Format("200601"), jobID, at.Format("20060102-150405"), filename)
}

// IsValidObjectName 对象名称不能为空，不能以/开头，不能包含..
func IsValidObjectName(objectName string) bool {
	if objectName == "" || strings.HasPrefix(objectName, "/") || strings.Contains(objectName, "..") {
		return false
	}
	return true
}
