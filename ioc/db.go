package ioc

import (
	"fmt"

	"github.com/KNICEX/listing-agent/internal/repo"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB() *gorm.DB {
	type Config struct {
		Driver string `mapstructure:"driver"`
		DSN    string `mapstructure:"dsn"`
		Debug  bool   `mapstructure:"debug"`
	}

	cfg := Config{Driver: "sqlite", DSN: "./data/listings.db"}
	if err := viper.UnmarshalKey("db", &cfg); err != nil {
		panic(err)
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite", "":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		panic(fmt.Errorf("unsupported db driver %q", cfg.Driver))
	}

	logLevel := logger.Warn
	if cfg.Debug {
		logLevel = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logLevel)})
	if err != nil {
		panic(err)
	}
	if err := repo.InitTables(db); err != nil {
		panic(err)
	}
	return db
}
