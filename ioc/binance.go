package ioc

import (
	binancesvc "github.com/KNICEX/listing-agent/internal/service/exchange/binance"
	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/spf13/viper"
)

type binanceConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ApiKey    string `mapstructure:"api_key"`
	ApiSecret string `mapstructure:"api_secret"`
}

func loadBinanceConfig() binanceConfig {
	var cfg binanceConfig
	if err := viper.UnmarshalKey("cex.binance", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func InitBinanceCli() *binance.Client {
	cfg := loadBinanceConfig()
	return binance.NewClient(cfg.ApiKey, cfg.ApiSecret)
}

func InitBinanceFuturesCli() *futures.Client {
	cfg := loadBinanceConfig()
	return binance.NewFuturesClient(cfg.ApiKey, cfg.ApiSecret)
}

// InitPriceProbe 未启用时返回 nil, 上币记录不带价格
func InitPriceProbe() *binancesvc.SymbolService {
	if !loadBinanceConfig().Enabled {
		return nil
	}
	return binancesvc.NewSymbolService(InitBinanceCli(), InitBinanceFuturesCli())
}
