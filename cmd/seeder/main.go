// cmd/seeder/main.go
package main

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/unclebandit/activity-sim/internal/config"
	"github.com/unclebandit/activity-sim/internal/db"
	"github.com/unclebandit/activity-sim/internal/logging"
)

var seedFiles = []string{
	"personas.sql",
	"content.sql",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dir := os.Getenv("SEED_DIR")
	if dir == "" {
		dir = "seed"
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.DB, logger)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer conn.Close()

	if err := db.Migrate(ctx, conn); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}
	logger.Info("schema applied")

	for _, name := range seedFiles {
		file := filepath.Join(dir, name)
		content, err := os.ReadFile(file)
		if err != nil {
			logger.Fatal("failed to read seed file", zap.String("file", file), zap.Error(err))
		}
		if _, err := conn.ExecContext(ctx, string(content)); err != nil {
			logger.Fatal("failed to execute seed file", zap.String("file", file), zap.Error(err))
		}
		logger.Info("seeded", zap.String("file", file))
	}

	logger.Info("database seeding completed")
}
