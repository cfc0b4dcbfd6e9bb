// Package server implements the Estadia HTTP API: the news feed backed by
// a news.Store, video uploads with their catalog, image uploads, and the
// static URLs the uploads are served from. Media bytes live behind the
// ObjectStore interface (MinIO in production). The package also carries
// the middleware, health probes and metrics used by cmd/backend.
package server
