package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"strings"

	"github.com/codelieche/analytics/pkg/config"
	"github.com/codelieche/analytics/pkg/core"
	"github.com/codelieche/analytics/pkg/utils/logger"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// MailSender 发送邮件，测试时可替换
type MailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailNotifier 报表生成后发送邮件，导出文件作为附件
type EmailNotifier struct {
	from   string
	sender MailSender
}

// NewEmailNotifier 创建邮件通知
func NewEmailNotifier(from string, sender MailSender) *EmailNotifier {
	return &EmailNotifier{from: from, sender: sender}
}

// NewEmailNotifierFromConfig 根据config.SMTP创建，未开启时返回nil
func NewEmailNotifierFromConfig() *EmailNotifier {
	if !config.SMTP.Enabled {
		return nil
	}

	// 465端口gomail会直接使用SSL，其它端口使用STARTTLS
	dialer := gomail.NewDialer(config.SMTP.Host, config.SMTP.Port, config.SMTP.Username, config.SMTP.Password)
	dialer.TLSConfig = &tls.Config{ServerName: config.SMTP.Host}
	return NewEmailNotifier(config.SMTP.From, dialer)
}

// buildMessage 构建邮件：正文为报表摘要，导出文件作为附件
func (n *EmailNotifier) buildMessage(job *core.ScheduledJob, report *core.Report, exports []*core.Export) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", job.NotifyEmails...)
	m.SetHeader("Subject", fmt.Sprintf("[报表] %s (%s)", report.Title, report.GeneratedAt.Format("2006-01-02")))

	var body strings.Builder
	fmt.Fprintf(&body, "报表: %s\n类型: %s\n生成时间: %s\n", report.Title, report.Type, report.GeneratedAt.Format("2006-01-02 15:04:05"))
	for key, value := range report.Summary {
		fmt.Fprintf(&body, "%s: %s\n", key, formatCell(value))
	}
	for _, export := range exports {
		if export.Location != "" {
			fmt.Fprintf(&body, "%s: %s\n", export.Format, export.Location)
		}
	}
	m.SetBody("text/plain", body.String())

	for _, export := range exports {
		content := export.Content
		m.Attach(export.Filename, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := io.Copy(w, bytes.NewReader(content))
			return err
		}))
	}
	return m
}

// Notify 发送通知，任务没有收件人时直接返回
func (n *EmailNotifier) Notify(ctx context.Context, job *core.ScheduledJob, report *core.Report, exports []*core.Export) error {
	if len(job.NotifyEmails) == 0 {
		return nil
	}
	m := n.buildMessage(job, report, exports)

	sendDone := make(chan error, 1)
	go func() {
		sendDone <- n.sender.DialAndSend(m)
	}()

	select {
	case err := <-sendDone:
		if err != nil {
			return fmt.Errorf("SMTP发送失败: %w", err)
		}
	case <-ctx.Done():
		return fmt.Errorf("邮件发送被取消或超时: %w", ctx.Err())
	}

	logger.Info("报表邮件已发送",
		zap.String("job_id", job.ID.String()),
		zap.Strings("to", job.NotifyEmails),
		zap.Int("attachments", len(exports)))
	return nil
}
