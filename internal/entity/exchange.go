package entity

import "time"

// Exchange 用于相关性过滤的交易所名称
type Exchange struct {
	Id        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"uniqueIndex" json:"name"`
	CreatedAt time.Time `json:"-"`
}
