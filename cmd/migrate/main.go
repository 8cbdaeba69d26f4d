package main

import (
	"context"
	"fmt"
	"os"

	"github.com/instanti8/engine/pkg/config"
	"github.com/instanti8/engine/pkg/database"
	"github.com/instanti8/engine/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	cfg := config.MustLoad()
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	db, err := database.Open(context.Background(), database.Options{Driver: cfg.DatabaseDriver, DSN: cfg.DatabaseURL, Verbose: true})
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	if err := runMigrations(db, cfg.DatabaseDriver); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}

	fmt.Fprintln(os.Stdout, "migrations completed")
}
