package ioc

import (
	"time"

	"github.com/KNICEX/listing-agent/internal/service/subscription"
	"github.com/spf13/viper"
)

func InitSubscriptionOptions() []subscription.Option {
	type Config struct {
		Ordered        bool          `mapstructure:"ordered"`
		QueueSize      int           `mapstructure:"queue_size"`
		EnqueueTimeout time.Duration `mapstructure:"enqueue_timeout"`
		UnitTimeout    time.Duration `mapstructure:"unit_timeout"`
	}

	var cfg Config
	if err := viper.UnmarshalKey("listener", &cfg); err != nil {
		panic(err)
	}

	var opts []subscription.Option
	if cfg.Ordered {
		opts = append(opts, subscription.WithOrderedDispatch(cfg.QueueSize),
			subscription.WithEnqueueTimeout(cfg.EnqueueTimeout))
	}
	if cfg.UnitTimeout > 0 {
		opts = append(opts, subscription.WithUnitTimeout(cfg.UnitTimeout))
	}
	return opts
}
