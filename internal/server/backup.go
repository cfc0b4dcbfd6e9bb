// backup.go - Scheduled snapshots of the news table into object storage.
//
// Videos and images already live in the object store; the news CSV is the
// only state kept on local disk, so it is copied next to them on a timer
// with a count based retention policy.
package server

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/JairVaz13/api2-estadia/internal/news"
)

const backupPrefix = "backups/"

// BackupConfig contains configuration for news snapshots.
type BackupConfig struct {
	Enabled  bool          // Enable scheduled snapshots
	Interval time.Duration // Snapshot interval (e.g., 24h for daily)
	Retain   int           // Number of snapshots to keep, newest first
}

// BackupManager handles scheduled news snapshots.
type BackupManager struct {
	config   BackupConfig
	news     news.Store
	objects  ObjectStore
	stopChan chan struct{}
	now      func() time.Time
}

// NewBackupManager creates a new backup manager instance.
func NewBackupManager(config BackupConfig, store news.Store, objects ObjectStore) *BackupManager {
	return &BackupManager{
		config:   config,
		news:     store,
		objects:  objects,
		stopChan: make(chan struct{}),
		now:      time.Now,
	}
}

// Start begins the snapshot scheduler.
func (bm *BackupManager) Start() {
	if !bm.config.Enabled {
		Info("news backups disabled", nil)
		return
	}

	Info("news backup scheduler started", map[string]any{
		"interval": bm.config.Interval.String(),
		"retain":   bm.config.Retain,
	})

	ticker := time.NewTicker(bm.config.Interval)
	go func() {
		bm.runOnce()
		for {
			select {
			case <-ticker.C:
				bm.runOnce()
			case <-bm.stopChan:
				ticker.Stop()
				Info("backup scheduler stopped", nil)
				return
			}
		}
	}()
}

// Stop halts the snapshot scheduler.
func (bm *BackupManager) Stop() {
	close(bm.stopChan)
}

func (bm *BackupManager) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if _, err := bm.performBackup(ctx); err != nil {
		Error("news backup failed", map[string]any{"error": err.Error()}, err)
		return
	}
	if _, err := bm.cleanupOldBackups(ctx); err != nil {
		Warn("failed to cleanup old backups", map[string]any{"error": err.Error()})
	}
}

// performBackup writes the current news list as one CSV object.
func (bm *BackupManager) performBackup(ctx context.Context) (ObjectInfo, error) {
	startTime := time.Now()

	records, err := bm.news.ListAll()
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("read news: %w", err)
	}

	var buf bytes.Buffer
	if err := news.WriteCSV(&buf, records); err != nil {
		return ObjectInfo{}, fmt.Errorf("encode news: %w", err)
	}

	key := backupPrefix + "news-" + bm.now().UTC().Format("20060102-150405") + ".csv"
	info, err := bm.objects.Put(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), "text/csv")
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("store %s: %w", key, err)
	}

	Info("news backup completed", map[string]any{
		"key":         key,
		"records":     len(records),
		"size_bytes":  buf.Len(),
		"duration_ms": time.Since(startTime).Milliseconds(),
	})
	return info, nil
}

// cleanupOldBackups removes all but the newest Retain snapshots and reports
// how many it removed.
func (bm *BackupManager) cleanupOldBackups(ctx context.Context) (int, error) {
	if bm.config.Retain <= 0 {
		return 0, nil
	}

	backups, err := bm.ListBackups(ctx)
	if err != nil {
		return 0, err
	}
	if len(backups) <= bm.config.Retain {
		return 0, nil
	}

	removed := 0
	for _, b := range backups[bm.config.Retain:] {
		if err := bm.objects.Remove(ctx, b.Key); err != nil {
			Warn("failed to remove old backup", map[string]any{
				"key":   b.Key,
				"error": err.Error(),
			})
			continue
		}
		removed++
		Info("removed old backup", map[string]any{"key": b.Key})
	}
	return removed, nil
}

// ListBackups returns the stored snapshots sorted newest first.
func (bm *BackupManager) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objs, err := bm.objects.List(ctx, backupPrefix)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}

	var backups []BackupInfo
	for _, o := range objs {
		name := strings.TrimPrefix(o.Key, backupPrefix)
		if !strings.HasPrefix(name, "news-") || !strings.HasSuffix(name, ".csv") {
			continue
		}
		backups = append(backups, BackupInfo{
			Key:       o.Key,
			Size:      o.Size,
			Timestamp: o.LastModified,
		})
	}

	// Keys embed the timestamp, so they break ties between equal mtimes.
	sort.Slice(backups, func(i, j int) bool {
		if !backups[i].Timestamp.Equal(backups[j].Timestamp) {
			return backups[i].Timestamp.After(backups[j].Timestamp)
		}
		return backups[i].Key > backups[j].Key
	})

	return backups, nil
}

// BackupInfo contains metadata about a stored snapshot.
type BackupInfo struct {
	Key       string    `json:"key"`
	Size      int64     `json:"size_bytes"`
	Timestamp time.Time `json:"timestamp"`
}

// LoadBackupConfig loads backup configuration from environment variables.
func LoadBackupConfig() BackupConfig {
	cfg := BackupConfig{
		Enabled:  os.Getenv("ESTADIA_BACKUP_ENABLED") == "true",
		Interval: 24 * time.Hour, // Default: daily
		Retain:   7,
	}
	if v := os.Getenv("ESTADIA_BACKUP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Interval = d
		}
	}
	if v := os.Getenv("ESTADIA_BACKUP_RETAIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Retain = n
		}
	}
	return cfg
}
