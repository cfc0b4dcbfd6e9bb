package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/JairVaz13/api2-estadia/internal/db"
	"github.com/JairVaz13/api2-estadia/internal/news"
	"github.com/JairVaz13/api2-estadia/internal/server"
	"github.com/JairVaz13/api2-estadia/internal/videos"
)

func main() {
	if err := server.ValidateAllConfiguration(); err != nil {
		log.Printf("service=backend msg=%q err=%v", "invalid_configuration", err)
		os.Exit(1)
	}
	server.WarnOnOptionalMissingConfig()

	addr := getenvDefault("ESTADIA_ADDR", ":8000")

	build := server.BuildInfo{
		Version: getenvDefault("ESTADIA_VERSION", "dev"),
		Commit:  getenvDefault("ESTADIA_COMMIT", "unknown"),
	}

	// News feed
	newsPath := getenvDefault("ESTADIA_NEWS_FILE", "news.csv")
	newsStore, err := news.NewCSVStore(newsPath)
	if err != nil {
		log.Printf("service=backend msg=%q path=%s err=%v", "news_open_failed", newsPath, err)
		os.Exit(1)
	}

	// Video catalog
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	catalog, closeCatalog, err := openCatalog(ctx)
	cancel()
	if err != nil {
		log.Printf("service=backend msg=%q err=%v", "catalog_open_failed", err)
		os.Exit(1)
	}
	defer closeCatalog()

	// Object storage
	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	objects, err := server.NewMinioObjectStore(ctx, server.MinioConfig{
		Endpoint:  getenvDefault("ESTADIA_S3_ENDPOINT", "localhost:9000"),
		AccessKey: os.Getenv("ESTADIA_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("ESTADIA_S3_SECRET_KEY"),
		Bucket:    getenvDefault("ESTADIA_BUCKET", "estadia"),
	})
	cancel()
	if err != nil {
		log.Printf("service=backend msg=%q err=%v", "object_store_failed", err)
		os.Exit(1)
	}

	maxUpload, err := getenvInt64("ESTADIA_MAX_UPLOAD_BYTES", 0)
	if err != nil {
		log.Printf("service=backend msg=%q err=%v", "bad_config", err)
		os.Exit(1)
	}
	rateLimit, err := getenvInt64("ESTADIA_RATE_LIMIT", 300)
	if err != nil {
		log.Printf("service=backend msg=%q err=%v", "bad_config", err)
		os.Exit(1)
	}

	srv := server.New(server.Config{
		Addr:           addr,
		BaseURL:        getenvDefault("ESTADIA_BASE_URL", "http://localhost:8000"),
		Build:          build,
		News:           newsStore,
		Videos:         catalog,
		Objects:        objects,
		MaxUploadBytes: maxUpload,
		RateLimit:      int(rateLimit),
	})

	// Orphaned video sweeper
	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	defer stopCleanup()
	go server.StartCleanupJob(cleanupCtx, server.GetCleanupConfigFromEnv(), catalog, objects)

	// News snapshots
	backups := server.NewBackupManager(server.LoadBackupConfig(), newsStore, objects)
	backups.Start()
	defer backups.Stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("service=backend msg=%q addr=%s version=%s commit=%s news=%s",
			"starting", addr, build.Version, build.Commit, newsStore.Path())
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("service=backend msg=%q signal=%s", "shutting_down", sig.String())
		stopCleanup()
		// In-flight uploads get 5 seconds to finish.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("service=backend msg=%q err=%v", "shutdown_error", err)
			os.Exit(1)
		}
		log.Printf("service=backend msg=%q", "shutdown_complete")
	case err := <-errCh:
		if err != nil {
			log.Printf("service=backend msg=%q err=%v", "server_error", err)
			os.Exit(1)
		}
	}
}

// openCatalog picks the SQLite catalog when ESTADIA_SQLITE_PATH is set and
// PostgreSQL (migrated to the latest schema) otherwise.
func openCatalog(ctx context.Context) (videos.Catalog, func(), error) {
	if path := os.Getenv("ESTADIA_SQLITE_PATH"); path != "" {
		c, err := videos.OpenSQLite(path)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("service=backend msg=%q path=%s", "catalog_sqlite", path)
		return c, func() { _ = c.Close() }, nil
	}

	conn, err := db.Open(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		return nil, nil, err
	}

	log.Printf("service=backend msg=%q", "running_migrations")
	if err := db.RunMigrations(conn); err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	log.Printf("service=backend msg=%q", "migrations_complete")

	return videos.NewPostgresCatalog(conn), func() { _ = conn.Close() }, nil
}

// getenvDefault reads an environment variable and returns a default value if not set.
func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

// getenvInt64 is getenvDefault for integer settings.
func getenvInt64(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
