package models

import (
	"time"

	"gorm.io/gorm"
)

// Campaign 发放活动
type Campaign struct {
	ID          uint           `gorm:"primarykey" json:"id"`             // 主键
	Name        string         `gorm:"uniqueIndex;not null" json:"name"` // 活动名称（唯一）
	Description string         `gorm:"type:text" json:"description"`     // 活动描述
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`          // 创建时间
	UpdatedAt   time.Time      `gorm:"index" json:"updated_at"`          // 更新时间
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`                   // 软删除时间
}

// TableName 指定表名
func (Campaign) TableName() string {
	return "campaigns"
}
