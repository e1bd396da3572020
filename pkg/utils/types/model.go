package types

import (
	"time"

	"gorm.io/gorm"
)

// BaseModel 业务表（报表任务等）的公共字段
// 数据仓库的维度/事实表不使用软删除，不嵌入此结构
type BaseModel struct {
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Deleted   *bool          `gorm:"type:boolean;default:false" json:"deleted" form:"deleted"`
}

// BeforeDelete 删除前设置deleted字段为True
func (m *BaseModel) BeforeDelete(tx *gorm.DB) (err error) {
	trueValue := true
	m.Deleted = &trueValue
	return nil
}
