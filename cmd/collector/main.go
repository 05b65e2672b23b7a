package main

import (
	"context"
	"flag"
	"os"
	"time"

	"livewall/configs"
	"livewall/internal/app"
	"livewall/internal/collector"
	"livewall/pkg/telemetry"
	utils "livewall/pkg/utils"

	"github.com/joho/godotenv"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	once := flag.Bool("once", false, "Run a single collection cycle and exit")
	flag.Parse()

	appConfig, err := configs.LoadConfig()
	if err != nil {
		utils.GetLogger().Fatalf("Failed to load configuration: %v", err)
	}
	utils.Init(appConfig.LogLevel)

	if err := appConfig.Validate(); err != nil {
		utils.Logger.Fatalf("Configuration validation failed: %v", err)
	}

	ctx := collector.SetupSignalHandler(nil)

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    appConfig.Telemetry.ServiceName + "-collector",
		ServiceVersion: version,
		UseStdout:      appConfig.Telemetry.UseStdout,
	})
	if err != nil {
		utils.Logger.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownTracing(shutdownCtx)
	}()

	store := app.NewStore(appConfig)
	if err := store.Init(); err != nil {
		utils.Logger.Fatalf("Failed to initialize records: %v", err)
	}
	utils.WithField("snapshot", appConfig.SnapshotPath()).Info("Starting collector")

	c := app.NewCollector(appConfig, store)
	if !*once {
		c.Run(ctx)
		return
	}

	if _, err := c.RunOnce(ctx); err != nil {
		utils.WithField("error", err.Error()).Error("Collection cycle failed")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		shutdownTracing(shutdownCtx)
		cancel()
		os.Exit(1)
	}
}
