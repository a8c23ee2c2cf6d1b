package ioc

import (
	"net/http"
	"time"

	"github.com/spf13/viper"
)

func InitHTTPServer(handler http.Handler) *http.Server {
	type Config struct {
		Addr string `mapstructure:"addr"`
	}

	cfg := Config{Addr: ":8000"}
	if err := viper.UnmarshalKey("http", &cfg); err != nil {
		panic(err)
	}
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
