package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/alcms-dev/alcms-server/internal/app"
	"github.com/alcms-dev/alcms-server/internal/config"
	log "github.com/sirupsen/logrus"
)

func main() {
	var cfg config.AppConfig
	flag.StringVar(&cfg.ConfigPath, "config", "", "path to config.yaml (defaults to $ALCMS_CONFIG or ./config.yaml)")
	flag.BoolVar(&cfg.MigrateOnly, "migrate", false, "run database migrations and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MigrateOnly {
		if err := app.Migrate(ctx, cfg); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}
	if err := app.RunServer(ctx, cfg); err != nil {
		log.Fatalf("server: %v", err)
	}
	log.Info("server stopped")
}
