// Package app 应用程序核心模块
//
// 负责组件组装、路由初始化、后台服务启动和优雅关闭
package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codelieche/analytics/pkg/config"
	"github.com/codelieche/analytics/pkg/core"
	"github.com/codelieche/analytics/pkg/middleware"
	"github.com/codelieche/analytics/pkg/utils/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// newApp 创建并配置Gin Web应用实例
func newApp() *gin.Engine {
	app := gin.New()
	app.Use(gin.Recovery())

	// CORS中间件必须在所有路由之前注册
	app.Use(middleware.CORSMiddleware())

	return app
}

// openDatabase 获取数据库连接并执行自动迁移
func openDatabase() (*gorm.DB, error) {
	db, err := core.GetDB()
	if err != nil {
		return nil, err
	}
	if err := core.AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Run 启动API服务器和后台调度，阻塞直到收到关闭信号
func Run() {
	logger.InitLogger()
	logger.Info("工单分析数据仓库 API Server 启动中", zap.String("address", config.Web.Address()))

	db, err := openDatabase()
	if err != nil {
		logger.Panic("数据库连接或迁移失败", zap.Error(err))
	}
	logger.Info("数据库连接和迁移完成", zap.String("driver", config.Database.Driver))

	comp := newComponents(db)

	app := newApp()
	initRouter(app, comp)

	stop := dispatch(comp)

	server := &http.Server{
		Addr:         config.Web.Address(),
		Handler:      app,
		ReadTimeout:  config.Web.ReadTimeout,
		WriteTimeout: config.Web.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("API Server 已启动", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("服务器启动失败", zap.Error(err))
		}
	}()

	gracefulShutdown(server, stop)
}

// RunETL 执行一次ETL（命令行回填），抽取失败时按配置重试
func RunETL(days int) (*core.ETLRunLog, error) {
	logger.InitLogger()
	defer logger.Sync()

	db, err := openDatabase()
	if err != nil {
		return nil, err
	}
	defer core.CloseDB()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return newETLService(db).RunWithRetry(ctx, days, config.ETL.MaxRetries, config.ETL.RetryInterval)
}

// Migrate 只执行数据库迁移
func Migrate() error {
	logger.InitLogger()
	defer logger.Sync()

	if _, err := openDatabase(); err != nil {
		return err
	}
	logger.Info("数据库迁移完成", zap.String("driver", config.Database.Driver))
	return core.CloseDB()
}

// gracefulShutdown 优雅关闭服务器
func gracefulShutdown(server *http.Server, stopBackground func()) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	logger.Info("收到关闭信号，开始优雅关闭", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("正在关闭HTTP服务器...")
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("HTTP服务器关闭失败", zap.Error(err))
	} else {
		logger.Info("HTTP服务器已关闭")
	}

	// 停止调度，等待正在执行的报表
	logger.Info("正在停止后台服务...")
	stopBackground()

	logger.Info("正在关闭数据库连接...")
	if err := core.CloseDB(); err != nil {
		logger.Error("数据库连接关闭失败", zap.Error(err))
	}
	if err := core.CloseRedis(); err != nil {
		logger.Error("Redis连接关闭失败", zap.Error(err))
	}

	logger.Sync()
	logger.Info("API Server 已优雅关闭")
}
