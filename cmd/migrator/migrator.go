package main

import (
	"context"
	"flag"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	common "github.com/NordCoder/Heartbeat/internal/config/common"
	"github.com/NordCoder/Heartbeat/internal/obs"
	pg "github.com/NordCoder/Heartbeat/internal/repository/postgres"
	"github.com/NordCoder/Heartbeat/migrations"
)

type migratorConfig struct {
	App common.App `mapstructure:"app"`
	Log common.Log `mapstructure:"log"`
	DB  pg.Config  `mapstructure:"db"`
}

// gooseLogger routes goose output through zap.
type gooseLogger struct{ s *zap.SugaredLogger }

func (g gooseLogger) Printf(format string, v ...any) { g.s.Infof(format, v...) }
func (g gooseLogger) Fatalf(format string, v ...any) { g.s.Fatalf(format, v...) }

func main() {
	cfgPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to yaml config")
	command := flag.String("command", "up", "goose command: up, down, status, version")
	flag.Parse()

	var cfg migratorConfig
	if err := common.NewViper(*cfgPath, "migrator").Unmarshal(&cfg); err != nil {
		panic(err)
	}
	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig(cfg.App))
	if err != nil {
		panic(err)
	}
	defer func() { _ = l.Sync() }()

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(gooseLogger{s: l.Sugar()})
	if err := goose.SetDialect("postgres"); err != nil {
		l.Fatal("set dialect", zap.Error(err))
	}
	db, err := goose.OpenDBWithDriver("pgx", cfg.DB.DSN)
	if err != nil {
		l.Fatal("open db", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := goose.RunContext(ctx, *command, db, "."); err != nil {
		l.Fatal("migrate", zap.String("command", *command), zap.Error(err))
	}
	l.Info("migrations done", zap.String("command", *command))
}
