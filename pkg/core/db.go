package core

import (
	"database/sql"
	"sync"
	"time"

	"github.com/codelieche/analytics/pkg/config"
	"github.com/codelieche/analytics/pkg/utils/logger"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// db 全局数据库连接实例（首次GetDB时创建）
var (
	db     *gorm.DB
	dbLock sync.Mutex
)

// GetDB 获取数据库连接实例
// 如果连接不存在，会尝试创建连接
func GetDB() (*gorm.DB, error) {
	dbLock.Lock()
	defer dbLock.Unlock()

	if db != nil {
		return db, nil
	}

	var err error
	db, err = connectDatabase()
	return db, err
}

// SetDB 替换全局连接（命令行工具、测试使用）
func SetDB(gormDB *gorm.DB) {
	dbLock.Lock()
	defer dbLock.Unlock()
	db = gormDB
}

// connectDatabase 创建数据库连接并配置连接池
// 支持MySQL、PostgreSQL，本地开发可用sqlite
func connectDatabase() (*gorm.DB, error) {
	var dialector gorm.Dialector
	dsn := config.Database.GetDSN()

	switch {
	case config.Database.IsPostgres():
		dialector = postgres.Open(dsn)
	case config.Database.IsSQLite():
		dialector = sqlite.Open(dsn)
	default:
		dialector = mysql.New(mysql.Config{
			DSN:                       dsn,
			DefaultStringSize:         256,
			DisableDatetimePrecision:  true,
			DontSupportRenameIndex:    true,
			DontSupportRenameColumn:   true,
			SkipInitializeWithVersion: false,
		})
	}

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	if sqlDB, err := gormDB.DB(); err == nil {
		configureConnectionPool(sqlDB)
		logger.Info("数据库连接池配置完成",
			zap.String("driver", config.Database.Driver),
			zap.Int("max_idle_conns", 20),
			zap.Int("max_open_conns", 100))
	}

	return gormDB, nil
}

// configureConnectionPool 配置数据库连接池参数
func configureConnectionPool(sqlDB *sql.DB) {
	sqlDB.SetMaxIdleConns(20)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)
}

// CloseDB 关闭数据库连接
func CloseDB() error {
	dbLock.Lock()
	defer dbLock.Unlock()

	if db != nil {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		db = nil
		return sqlDB.Close()
	}
	return nil
}
