package services

import (
	"context"
	"fmt"
	"time"

	"github.com/codelieche/analytics/pkg/core"
	"github.com/codelieche/analytics/pkg/utils/tools"
)

// ObjectPutter 对象存储写入
type ObjectPutter interface {
	PutBytes(ctx context.Context, objectName string, content []byte, contentType string) (string, error)
}

// ObjectExportSink 把导出文件写入对象存储（MinIO）
// 对象名：reports/{yyyymm}/{job_id}/{时间}_{文件名}
type ObjectExportSink struct {
	putter ObjectPutter
	now    func() time.Time
}

// NewObjectExportSink 创建导出文件存储
func NewObjectExportSink(putter ObjectPutter) *ObjectExportSink {
	return &ObjectExportSink{putter: putter, now: time.Now}
}

// Store 写入一个导出文件，返回 bucket/object
func (s *ObjectExportSink) Store(ctx context.Context, job *core.ScheduledJob, export *core.Export) (string, error) {
	objectName := tools.ReportObjectName(job.ID.String(), export.Filename, s.now())
	if !tools.IsValidObjectName(objectName) {
		return "", fmt.Errorf("无效的对象名: %s", objectName)
	}
	return s.putter.PutBytes(ctx, objectName, export.Content, export.ContentType)
}
