package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"vidfetch/internal/artifact"
	"vidfetch/internal/config"
	"vidfetch/internal/extract"
	vhttp "vidfetch/internal/http"
	"vidfetch/internal/metrics"
	"vidfetch/internal/registry"
	"vidfetch/internal/scheduler"
)

func main() {
	// Optional .env for local development; ignored when absent.
	_ = godotenv.Load()

	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg := config.Load(*configPath)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if err := os.MkdirAll(cfg.Downloads.TempDir(), 0o755); err != nil {
		log.Fatalf("failed to create downloads directory: %v", err)
	}

	// Clear scratch left behind by a previous process before workers
	// start writing.
	if n := artifact.SweepTemp(cfg.Downloads.TempDir(), 0); n > 0 {
		metrics.RecordTempSwept(n)
		logger.Info("swept stale temp files", "count", n)
	}

	reg := registry.New()
	ext := extract.NewClient(time.Duration(cfg.Ytdlp.ProgressIntervalMs) * time.Millisecond)
	res := &artifact.Resolver{
		Root:           cfg.Downloads.Dir,
		MinBytes:       cfg.Downloads.MinArtifactBytes,
		SettleDelay:    time.Duration(cfg.Downloads.SettleDelayMs) * time.Millisecond,
		RenameAttempts: uint64(cfg.Downloads.RenameAttempts),
		RenameBackoff:  time.Duration(cfg.Downloads.RenameBackoffMs) * time.Millisecond,
		Logger:         logger,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.New(cfg, reg, ext, res, logger)
	sched.Start(ctx)

	if cfg.Retention.Enabled {
		go sweepLoop(ctx, cfg, logger)
	}

	srv := vhttp.NewServer(cfg, reg, sched, logger)
	logger.Info("listening", "host", cfg.Server.Host, "port", cfg.Server.Port)
	if err := srv.Listen(); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

// sweepLoop periodically removes aged temp files that crashed jobs
// left behind.
func sweepLoop(ctx context.Context, cfg *config.Config, logger *slog.Logger) {
	interval := time.Duration(cfg.Retention.SweepIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}
	maxAge := time.Duration(cfg.Retention.TempMaxAgeMinutes) * time.Minute

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := artifact.SweepTemp(cfg.Downloads.TempDir(), maxAge); n > 0 {
				metrics.RecordTempSwept(n)
				logger.Info("swept temp files", "count", n)
			}
		}
	}
}
