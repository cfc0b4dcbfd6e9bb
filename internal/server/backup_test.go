package server

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/JairVaz13/api2-estadia/internal/news"
)

func newTestBackupManager(retain int, store news.Store, objects ObjectStore) *BackupManager {
	bm := NewBackupManager(BackupConfig{Enabled: true, Interval: time.Hour, Retain: retain}, store, objects)
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	bm.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return bm
}

func TestPerformBackup(t *testing.T) {
	ctx := context.Background()
	objects := newFakeObjects()
	store := news.NewMemoryStore(firstNews, secondNews)
	bm := newTestBackupManager(7, store, objects)

	info, err := bm.performBackup(ctx)
	if err != nil {
		t.Fatalf("performBackup: %v", err)
	}
	if info.Key != "backups/news-20250301-120100.csv" {
		t.Errorf("key = %q", info.Key)
	}

	rc, _, err := objects.Get(ctx, info.Key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)

	want := "title,description,date\n" +
		firstNews.Title + "," + firstNews.Description + "," + firstNews.Date + "\n" +
		secondNews.Title + "," + secondNews.Description + "," + secondNews.Date + "\n"
	if string(data) != want {
		t.Errorf("snapshot = %q, want %q", data, want)
	}
}

func TestPerformBackup_NewsError(t *testing.T) {
	bm := newTestBackupManager(7, brokenNews{}, newFakeObjects())
	if _, err := bm.performBackup(context.Background()); !errors.Is(err, errDisk) {
		t.Fatalf("err = %v, want errDisk", err)
	}
}

func TestPerformBackup_StoreError(t *testing.T) {
	objects := newFakeObjects()
	objects.putErr = errors.New("bucket gone")
	bm := newTestBackupManager(7, news.NewMemoryStore(), objects)
	if _, err := bm.performBackup(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestCleanupOldBackups(t *testing.T) {
	ctx := context.Background()
	objects := newFakeObjects()
	bm := newTestBackupManager(2, news.NewMemoryStore(firstNews), objects)

	var keys []string
	for range 4 {
		info, err := bm.performBackup(ctx)
		if err != nil {
			t.Fatalf("performBackup: %v", err)
		}
		keys = append(keys, info.Key)
	}
	// unrelated objects under the prefix are left alone
	if _, err := objects.Put(ctx, "backups/notes.txt", strings.NewReader("n"), 1, "text/plain"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	removed, err := bm.cleanupOldBackups(ctx)
	if err != nil {
		t.Fatalf("cleanupOldBackups: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}

	backups, err := bm.ListBackups(ctx)
	if err != nil {
		t.Fatalf("ListBackups: %v", err)
	}
	if len(backups) != 2 || backups[0].Key != keys[3] || backups[1].Key != keys[2] {
		t.Fatalf("kept %+v, want %s and %s", backups, keys[3], keys[2])
	}
	if objects.has(keys[0]) || objects.has(keys[1]) {
		t.Error("old snapshots still stored")
	}
	if !objects.has("backups/notes.txt") {
		t.Error("unrelated object removed")
	}
}

func TestCleanupOldBackups_RetainZeroKeepsAll(t *testing.T) {
	ctx := context.Background()
	objects := newFakeObjects()
	bm := newTestBackupManager(0, news.NewMemoryStore(), objects)
	for range 3 {
		if _, err := bm.performBackup(ctx); err != nil {
			t.Fatalf("performBackup: %v", err)
		}
	}
	if n, err := bm.cleanupOldBackups(ctx); err != nil || n != 0 {
		t.Fatalf("removed %d, err %v", n, err)
	}
}

func TestLoadBackupConfig(t *testing.T) {
	t.Setenv("ESTADIA_BACKUP_ENABLED", "")
	t.Setenv("ESTADIA_BACKUP_INTERVAL", "")
	t.Setenv("ESTADIA_BACKUP_RETAIN", "")
	cfg := LoadBackupConfig()
	if cfg.Enabled || cfg.Interval != 24*time.Hour || cfg.Retain != 7 {
		t.Fatalf("defaults = %+v", cfg)
	}

	t.Setenv("ESTADIA_BACKUP_ENABLED", "true")
	t.Setenv("ESTADIA_BACKUP_INTERVAL", "6h")
	t.Setenv("ESTADIA_BACKUP_RETAIN", "3")
	cfg = LoadBackupConfig()
	if !cfg.Enabled || cfg.Interval != 6*time.Hour || cfg.Retain != 3 {
		t.Fatalf("cfg = %+v", cfg)
	}

	t.Setenv("ESTADIA_BACKUP_INTERVAL", "soon")
	t.Setenv("ESTADIA_BACKUP_RETAIN", "-1")
	cfg = LoadBackupConfig()
	if cfg.Interval != 24*time.Hour || cfg.Retain != 7 {
		t.Fatalf("invalid values not ignored: %+v", cfg)
	}
}
