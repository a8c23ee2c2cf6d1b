package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Listing 一条上币记录, 写入后不再修改
type Listing struct {
	Id            int64               `gorm:"primaryKey;autoIncrement" json:"id"`
	Token         string              `gorm:"index" json:"token"`
	Exchange      string              `gorm:"index" json:"exchange"`
	Market        string              `json:"market"`
	Channel       string              `gorm:"index" json:"channel,omitempty"`
	Strategy      string              `json:"strategy,omitempty"` // rule / llm
	PriceUSDT     decimal.NullDecimal `gorm:"type:varchar(64)" json:"price_usdt"`
	SourceMessage string              `json:"source_message"`
	ObservedAt    time.Time           `gorm:"index" json:"timestamp"`
}

const (
	StrategyRule = "rule"
	StrategyLLM  = "llm"
)
