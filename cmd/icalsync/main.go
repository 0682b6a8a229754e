package main

import (
	"context"

	"cowork/pkg/app"
	"cowork/pkg/config"
)

const ServiceName = "icalsync"

// The standalone sync worker runs the scheduler without the HTTP API. Run it
// instead of enabling the in-process scheduler of the bookings service.
func main() {
	cfg := config.Load(ServiceName)

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}

	cfg.LogConfiguration()

	cfg.Log.Info("Starting iCal sync worker")
	components, err := app.Build(cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize services", "error", err)
	}

	scheduler := components.Scheduler(cfg)
	worker := app.NewApplication(cfg)
	worker.AddWorker(func(ctx context.Context) {
		if err := scheduler.Start(ctx); err != nil {
			cfg.Log.Error("Failed to start sync scheduler", "error", err)
			return
		}
		<-ctx.Done()
		scheduler.Stop()
	})
	worker.OnStop(func() { components.Close(cfg) })
	worker.RunWorkers()
}
