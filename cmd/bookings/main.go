package main

import (
	"context"

	"cowork/pkg/app"
	"cowork/pkg/config"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}

	cfg.LogConfiguration()

	cfg.Log.Info("Starting Bookings service")
	components, err := app.Build(cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize services", "error", err)
	}

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(components.Handlers(cfg)...)
	serverApp.AddWorker(components.Dispatcher.Run)

	if cfg.SchedulerEnabled {
		scheduler := components.Scheduler(cfg)
		serverApp.AddWorker(func(ctx context.Context) {
			if err := scheduler.Start(ctx); err != nil {
				cfg.Log.Error("Failed to start sync scheduler", "error", err)
				return
			}
			<-ctx.Done()
			scheduler.Stop()
		})
	}

	serverApp.OnStop(func() { components.Close(cfg) })
	serverApp.Run()
}
