package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/i474232898/weather-proxy/internal/api/http"
	"github.com/i474232898/weather-proxy/internal/config"
	"github.com/i474232898/weather-proxy/internal/scheduler"
	"github.com/i474232898/weather-proxy/internal/store"
	"github.com/i474232898/weather-proxy/internal/weather"
	"github.com/i474232898/weather-proxy/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Per-attempt timeouts are applied by the records client.
	httpClient := &http.Client{}

	records := providers.NewRecordsClient(httpClient, cfg.UpstreamBaseURL, providers.RecordsOptions{
		MaxRetries:     cfg.MaxRetries,
		AttemptTimeout: cfg.RequestTimeout,
		BaseDelay:      cfg.RetryBaseDelay,
		Limit:          cfg.UpstreamLimit,
		RPS:            cfg.UpstreamRPS,
	})

	// Redis when reachable, in-process otherwise; decided on first use.
	cache := store.NewTieredStore(cfg.RedisURL)
	defer cache.Close()

	service := weather.NewService(cache, records, cfg.CacheTTL)

	// Optional cache warm-up.
	sched := scheduler.New(cfg.WarmCities, cfg.WarmDays, cfg.WarmInterval, service)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := httpapi.NewApp(cfg.CORS, true)
	httpapi.RegisterRoutes(app, service, cache)

	go func() {
		log.Printf("INFO: listening on :%s (upstream %s)", cfg.Port, cfg.UpstreamBaseURL)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
