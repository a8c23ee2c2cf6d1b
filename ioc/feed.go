package ioc

import (
	"time"

	"github.com/KNICEX/listing-agent/internal/service/feed"
	"github.com/spf13/viper"
)

func InitFeed() *feed.RelayTransport {
	type Config struct {
		URL          string        `mapstructure:"url"`
		Token        string        `mapstructure:"token"`
		DialTimeout  time.Duration `mapstructure:"dial_timeout"`
		PingInterval time.Duration `mapstructure:"ping_interval"`
	}

	var cfg Config
	if err := viper.UnmarshalKey("feed", &cfg); err != nil {
		panic(err)
	}
	if cfg.URL == "" {
		panic("no feed url set")
	}

	var opts []feed.Option
	if cfg.DialTimeout > 0 {
		opts = append(opts, feed.WithDialTimeout(cfg.DialTimeout))
	}
	if cfg.PingInterval > 0 {
		opts = append(opts, feed.WithPingInterval(cfg.PingInterval))
	}
	return feed.NewRelayTransport(cfg.URL, cfg.Token, opts...)
}
