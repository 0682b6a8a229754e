package main

import (
	"context"
	"os"
	"time"

	mongoMigration "cowork/internal/migrations/mongo"
	"cowork/pkg/config"
)

const JobName = "mongo-migration"

func main() {
	cfg := config.Load(JobName)
	if !cfg.UsesMongo() {
		cfg.Log.Info("Storage driver is not mongo, nothing to migrate", "storage_driver", cfg.StorageDriver)
		return
	}

	if err := migrateMongo(cfg); err != nil {
		cfg.Log.Error("Migration failed", "error", err)
		os.Exit(1)
	}
	cfg.Log.Info("Migration completed successfully")
}

func migrateMongo(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Mongo migration job")
	return mongoMigration.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName, cfg.Log)
}
