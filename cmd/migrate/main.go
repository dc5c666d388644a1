package main

import (
	"context"
	"fmt"
	"os"

	"github.com/learnhub/engine/pkg/config"
	"github.com/learnhub/engine/pkg/database"
	"github.com/learnhub/engine/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	cfg := config.MustLoad()
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	db, err := database.OpenPostgres(context.Background(), cfg.DatabaseURL, database.Options{
		TablePrefix: cfg.DatabasePrefix,
		Verbose:     true,
	})
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	if err := runMigrations(db); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}

	log.Info("migrations completed", zap.String("table_prefix", cfg.DatabasePrefix))
	fmt.Fprintln(os.Stdout, "migrations completed")
}
