package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/KNICEX/listing-agent/internal/service/exchange"
	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initSymbolService(t *testing.T) *SymbolService {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/ticker/price", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("symbol") {
		case "EXTUSDT":
			_, _ = w.Write([]byte(`{"symbol":"EXTUSDT","price":"0.51230000"}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
		}
	})
	mux.HandleFunc("/fapi/v2/ticker/price", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("symbol") {
		case "EXTUSDT":
			_, _ = w.Write([]byte(`{"symbol":"EXTUSDT","price":"0.5130","time":1730419200000}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
		}
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	spot := binance.NewClient("", "")
	spot.BaseURL = server.URL
	futuresCli := binance.NewFuturesClient("", "")
	futuresCli.BaseURL = server.URL
	return NewSymbolService(spot, futuresCli)
}

func TestSymbolService_PriceUSDT(t *testing.T) {
	svc := initSymbolService(t)
	ctx := context.Background()

	price, err := svc.PriceUSDT(ctx, "EXT", exchange.MarketSpot)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.5123").Equal(price))

	price, err = svc.PriceUSDT(ctx, "EXT", exchange.MarketFutures)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.513").Equal(price))
}

func TestSymbolService_PriceUSDT_NotListed(t *testing.T) {
	svc := initSymbolService(t)

	_, err := svc.PriceUSDT(context.Background(), "NEWCOIN", exchange.MarketUnknown)
	assert.ErrorIs(t, err, exchange.ErrSymbolNotFound)

	_, err = svc.PriceUSDT(context.Background(), "NEWCOIN", exchange.MarketFutures)
	assert.ErrorIs(t, err, exchange.ErrSymbolNotFound)
}
