package db

import (
	"strings"
	"testing"
)

func TestRunMigrations_NilConn(t *testing.T) {
	if err := RunMigrations(nil); err == nil {
		t.Fatal("expected error for nil connection")
	}
}

func TestMigrationNames(t *testing.T) {
	names, err := MigrationNames()
	if err != nil {
		t.Fatalf("MigrationNames: %v", err)
	}
	if len(names) == 0 || len(names)%2 != 0 {
		t.Fatalf("expected paired up/down migrations, got %v", names)
	}
	for _, n := range names {
		if !strings.HasSuffix(n, ".up.sql") && !strings.HasSuffix(n, ".down.sql") {
			t.Errorf("unexpected migration file %q", n)
		}
	}
}

func TestMigrationCreatesVideosTable(t *testing.T) {
	up, err := migrationsFS.ReadFile("migrations/000001_create_videos.up.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	sql := string(up)
	for _, col := range []string{"id", "title", "description", "video_url", "object_key", "created_at"} {
		if !strings.Contains(sql, col) {
			t.Errorf("videos table is missing column %q", col)
		}
	}
}
