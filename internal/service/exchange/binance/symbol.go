package binance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KNICEX/listing-agent/internal/service/exchange"
	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
)

var _ exchange.PriceProbe = (*SymbolService)(nil)

// 币安 Invalid symbol 错误码
const codeInvalidSymbol = -1121

type SymbolService struct {
	spot    *binance.Client
	futures *futures.Client
}

func NewSymbolService(spot *binance.Client, futuresCli *futures.Client) *SymbolService {
	return &SymbolService{
		spot:    spot,
		futures: futuresCli,
	}
}

// PriceUSDT 合约公告查合约价格, 其余查现货价格
func (svc *SymbolService) PriceUSDT(ctx context.Context, token string, market exchange.Market) (decimal.Decimal, error) {
	pair := exchange.TradingPair{Base: token, Quote: "USDT"}
	if market == exchange.MarketFutures {
		return svc.futuresPrice(ctx, pair)
	}
	return svc.spotPrice(ctx, pair)
}

func (svc *SymbolService) spotPrice(ctx context.Context, pair exchange.TradingPair) (decimal.Decimal, error) {
	prices, err := svc.spot.NewListPricesService().Symbol(pair.ToString()).Do(ctx)
	if err != nil {
		return decimal.Zero, convertErr(pair, err)
	}
	if len(prices) == 0 {
		return decimal.Zero, fmt.Errorf("%w: %s", exchange.ErrSymbolNotFound, pair.ToString())
	}
	return parsePrice(pair, prices[0].Price)
}

func (svc *SymbolService) futuresPrice(ctx context.Context, pair exchange.TradingPair) (decimal.Decimal, error) {
	prices, err := svc.futures.NewListPricesService().Symbol(pair.ToString()).Do(ctx)
	if err != nil {
		return decimal.Zero, convertErr(pair, err)
	}
	if len(prices) == 0 {
		return decimal.Zero, fmt.Errorf("%w: %s", exchange.ErrSymbolNotFound, pair.ToString())
	}
	return parsePrice(pair, prices[0].Price)
}

func parsePrice(pair exchange.TradingPair, s string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(s)
	if err != nil {
		slog.Error("fail to parse price", "symbol", pair.ToString(), "price", s, "error", err)
		return decimal.Zero, err
	}
	return price, nil
}

func convertErr(pair exchange.TradingPair, err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) && apiErr.Code == codeInvalidSymbol {
		return fmt.Errorf("%w: %s", exchange.ErrSymbolNotFound, pair.ToString())
	}
	return err
}
