package exchange

import (
	"context"

	"github.com/shopspring/decimal"
)

// PriceProbe 查询代币当前的 USDT 价格, 未上线时返回 ErrSymbolNotFound
type PriceProbe interface {
	PriceUSDT(ctx context.Context, token string, market Market) (decimal.Decimal, error)
}
