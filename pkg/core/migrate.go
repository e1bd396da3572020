package core

import "gorm.io/gorm"

// AutoMigrate 同步数据仓库和调度相关的表结构
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&DateDimension{},
		&UserDimension{},
		&CategoryDimension{},
		&PriorityDimension{},
		&StatusDimension{},
		&TicketFact{},
		&UserActivityFact{},
		&ETLRunLog{},
		&ScheduledJob{},
		&ReportRun{},
	)
}
