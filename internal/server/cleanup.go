package server

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"github.com/JairVaz13/api2-estadia/internal/videos"
)

// CleanupConfig configures the orphaned video sweeper. An upload that dies
// between storing the bytes and writing its catalog row, or a delete whose
// object removal failed, leaves a video object nothing points at.
type CleanupConfig struct {
	Enabled  bool
	Interval time.Duration
	// MaxAge protects uploads still in flight.
	MaxAge time.Duration
}

// StartCleanupJob sweeps orphaned video objects every Interval until ctx ends.
func StartCleanupJob(ctx context.Context, cfg CleanupConfig, catalog videos.Catalog, objects ObjectStore) {
	if !cfg.Enabled {
		log.Printf("service=cleanup msg=%q", "disabled")
		return
	}

	log.Printf("service=cleanup msg=%q interval=%s max_age=%s",
		"starting", cfg.Interval, cfg.MaxAge)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	// Run immediately on start
	runCleanup(ctx, cfg, catalog, objects, time.Now())

	for {
		select {
		case <-ctx.Done():
			log.Printf("service=cleanup msg=%q", "shutting_down")
			return
		case now := <-ticker.C:
			runCleanup(ctx, cfg, catalog, objects, now)
		}
	}
}

// runCleanup removes video objects older than MaxAge that no catalog entry
// references, and returns how many it removed.
func runCleanup(ctx context.Context, cfg CleanupConfig, catalog videos.Catalog, objects ObjectStore, now time.Time) int {
	start := time.Now()
	cutoff := now.Add(-cfg.MaxAge)

	list, err := objects.List(ctx, videoPrefix)
	if err != nil {
		log.Printf("service=cleanup msg=%q err=%v", "list_failed", err)
		return 0
	}

	deleted := 0
	for _, obj := range list {
		if !obj.LastModified.Before(cutoff) || strings.Contains(strings.TrimPrefix(obj.Key, videoPrefix), "/") {
			continue
		}

		referenced, err := catalog.ReferencesObject(ctx, obj.Key)
		if err != nil {
			// catalog unavailable: stop rather than delete live videos
			log.Printf("service=cleanup msg=%q key=%q err=%v", "lookup_failed", obj.Key, err)
			break
		}
		if referenced {
			continue
		}

		log.Printf("service=cleanup msg=%q key=%q age=%s", "deleting_orphan", obj.Key, now.Sub(obj.LastModified))
		if err := objects.Remove(ctx, obj.Key); err != nil {
			log.Printf("service=cleanup msg=%q key=%q err=%v", "remove_failed", obj.Key, err)
			continue
		}
		GetMetrics().RecordDelete("orphan")
		deleted++
	}

	log.Printf("service=cleanup msg=%q deleted=%d duration_ms=%d",
		"cleanup_complete", deleted, time.Since(start).Milliseconds())
	return deleted
}

// GetCleanupConfigFromEnv reads ESTADIA_CLEANUP_* settings.
func GetCleanupConfigFromEnv() CleanupConfig {
	cfg := CleanupConfig{
		Enabled:  os.Getenv("ESTADIA_CLEANUP_ENABLED") == "true",
		Interval: time.Hour,
		MaxAge:   24 * time.Hour,
	}
	if v := os.Getenv("ESTADIA_CLEANUP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Interval = d
		}
	}
	if v := os.Getenv("ESTADIA_CLEANUP_MAX_AGE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.MaxAge = d
		}
	}
	return cfg
}
