package entity

import "time"

// Channel 监听的消息来源（频道）
type Channel struct {
	Id        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"uniqueIndex" json:"name"`
	CreatedAt time.Time `json:"-"`
}
