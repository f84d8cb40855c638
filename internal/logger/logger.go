package logger

import (
	"log/slog"
	"os"

	"lab-dashboard/internal/config"
)

var Logger *slog.Logger

// InitLogger sets up JSON logging; gin debug mode also enables debug level and source locations
func InitLogger(cfg *config.Config) {
	debug := cfg.GinMode == "debug"

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	})
	Logger = slog.New(handler).With("service", "lab-dashboard")
	slog.SetDefault(Logger)

	Logger.Debug("Structured logging initialized", "level", level.String())
}

// get falls back to the slog default so packages can log before InitLogger runs (tests, CLI)
func get() *slog.Logger {
	if Logger != nil {
		return Logger
	}
	return slog.Default()
}

func Info(msg string, args ...any) {
	get().Info(msg, args...)
}

func Error(msg string, args ...any) {
	get().Error(msg, args...)
}

func Debug(msg string, args ...any) {
	get().Debug(msg, args...)
}

func Warn(msg string, args ...any) {
	get().Warn(msg, args...)
}
