package ioc

import (
	"context"
	"time"

	"github.com/KNICEX/listing-agent/internal/service/notification/redisstream"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

// InitRedisNotifier 未启用时返回 nil
func InitRedisNotifier() *redisstream.Notifier {
	type Config struct {
		Enabled  bool   `mapstructure:"enabled"`
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
		Prefix   string `mapstructure:"prefix"`
		MaxLen   int64  `mapstructure:"max_len"`
	}

	cfg := Config{Addr: "127.0.0.1:6379", Prefix: "listing", MaxLen: 10000}
	if err := viper.UnmarshalKey("redis", &cfg); err != nil {
		panic(err)
	}
	if !cfg.Enabled {
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		panic(err)
	}
	return redisstream.New(rdb, cfg.Prefix, cfg.MaxLen)
}
