package obs

import (
	"net/http"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogConfig struct {
	Level  string
	Pretty bool
	App    string
	Env    string
	Ver    string
}

// logLevel is shared by every logger built here so the level can be changed
// at runtime through LevelHandler.
var logLevel = zap.NewAtomicLevel()

// NewLogger builds the process logger. An unknown level falls back to info.
func NewLogger(c LogConfig) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if c.Pretty {
		cfg = zap.NewDevelopmentConfig()
	}
	lvl, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	logLevel.SetLevel(lvl)
	cfg.Level = logLevel
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	fields := []zap.Field{zap.String("service", c.App), zap.String("env", c.Env)}
	if c.Ver != "" {
		fields = append(fields, zap.String("version", c.Ver))
	}
	return cfg.Build(zap.Fields(fields...))
}

// LevelHandler reports the current level on GET and changes it on PUT with a
// body like {"level":"debug"}.
func LevelHandler() http.Handler { return logLevel }
