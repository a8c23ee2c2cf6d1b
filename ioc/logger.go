package ioc

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/viper"
)

// InitLogger 设置默认 slog, 颜色只在终端输出时启用
func InitLogger() *slog.Logger {
	type Config struct {
		Level  string `mapstructure:"level"`
		Color  *bool  `mapstructure:"color"`
		Format string `mapstructure:"format"` // text / json
	}

	var cfg Config
	if err := viper.UnmarshalKey("log", &cfg); err != nil {
		panic(err)
	}

	logger := slog.New(newLogHandler(os.Stdout, cfg.Level, cfg.Format, cfg.Color))
	slog.SetDefault(logger)
	return logger
}

func newLogHandler(w io.Writer, level, format string, color *bool) slog.Handler {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}

	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	}

	colored := false
	if f, ok := w.(*os.File); ok {
		colored = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	if color != nil {
		colored = *color
	}
	return tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		TimeFormat: time.DateTime,
		NoColor:    !colored,
	})
}
