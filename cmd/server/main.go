package main

import (
	"context"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"livewall/configs"
	"livewall/internal/app"
	"livewall/internal/audit"
	"livewall/internal/collector"
	"livewall/internal/live"
	"livewall/internal/security"
	"livewall/internal/stream"
	"livewall/pkg/telemetry"
	utils "livewall/pkg/utils"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	appConfig, err := configs.LoadConfig()
	if err != nil {
		utils.GetLogger().Fatalf("Failed to load configuration: %v", err)
	}
	utils.Init(appConfig.LogLevel)
	utils.Logger.Info("Starting livewall server...")

	if err := appConfig.Validate(); err != nil {
		utils.Logger.Fatalf("Configuration validation failed: %v", err)
	}

	ctx := collector.SetupSignalHandler(nil)

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    appConfig.Telemetry.ServiceName,
		ServiceVersion: version,
		UseStdout:      appConfig.Telemetry.UseStdout,
	})
	if err != nil {
		utils.Logger.Fatalf("Failed to initialize tracing: %v", err)
	}

	store := app.NewStore(appConfig)
	if err := store.Init(); err != nil {
		utils.Logger.Fatalf("Failed to initialize records: %v", err)
	}

	streamService := stream.NewStreamService(store, audit.NewAuditLogger(nil), stream.ServiceOptions{
		RespectBlacklistForFeatured: appConfig.Featured.RespectsBlacklist,
	})
	hub := live.NewHub(streamService, appConfig.Live.PushInterval)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = utils.CustomHTTPErrorHandler

	securityConfig := security.DefaultSecurityConfig()
	securityConfig.AllowedOrigins = appConfig.Server.AllowedOrigins
	security.SetupSecurityMiddleware(e, securityConfig)
	e.Use(security.LoggingMiddleware)

	stream.NewHandler(streamService, version).RegisterRoutes(e, security.TimeoutMiddleware(appConfig.Server.RequestTimeout))
	hub.RegisterRoutes(e)
	e.File("/", filepath.Join(appConfig.Server.StaticDir, "index.html"))
	e.Static("/static", appConfig.Server.StaticDir)

	for _, route := range e.Routes() {
		utils.Logger.Debugf("Registered route: %s %s", route.Method, route.Path)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()

	if appConfig.Collector.Enabled {
		c := app.NewCollector(appConfig, store)
		c.OnPersist(func(collector.CycleResult) { hub.Refresh() })
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Run(ctx)
		}()
	} else {
		utils.Logger.Info("Collector disabled, serving existing snapshot only")
	}

	go func() {
		addr := appConfig.GetServerAddress()
		utils.Logger.Infof("HTTP server listening on %s", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			utils.Logger.Errorf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()
	utils.Logger.Info("Shutdown signal received, starting graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		utils.Logger.Errorf("HTTP server shutdown error: %v", err)
	}
	// the collector finishes its in-flight requests before returning
	wg.Wait()
	if err := shutdownTracing(shutdownCtx); err != nil {
		utils.Logger.Errorf("Tracer shutdown error: %v", err)
	}
	utils.Logger.Info("Server shutdown complete")
}
