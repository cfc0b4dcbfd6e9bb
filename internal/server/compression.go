// compression.go - gzip for JSON responses. Media streams are sent as-is.
package server

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
)

// compressionResponseWriter wraps http.ResponseWriter to compress responses.
type compressionResponseWriter struct {
	http.ResponseWriter
	writer io.Writer
}

func (crw *compressionResponseWriter) Write(b []byte) (int, error) {
	return crw.writer.Write(b)
}

// CompressionMiddleware gzips responses for clients that accept it.
func CompressionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !acceptsCompression(r) || shouldSkipCompression(r) {
			next.ServeHTTP(w, r)
			return
		}

		gz := gzip.NewWriter(w)
		defer gz.Close()

		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		w.Header().Del("Content-Length")

		next.ServeHTTP(&compressionResponseWriter{ResponseWriter: w, writer: gz}, r)
	})
}

// acceptsCompression checks if the client accepts gzip encoding.
func acceptsCompression(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")
}

// shouldSkipCompression is true for media bodies (already compressed video
// and image formats), uploads, and bodiless requests.
func shouldSkipCompression(r *http.Request) bool {
	path := r.URL.Path

	if r.Method == http.MethodHead || r.Method == http.MethodOptions {
		return true
	}
	if strings.HasPrefix(path, "/static/") || strings.HasPrefix(path, "/upload_") {
		return true
	}
	for _, prefix := range []string{"/videos/", "/images/"} {
		if strings.HasPrefix(path, prefix) && len(path) > len(prefix) && r.Method == http.MethodGet {
			return true
		}
	}
	return false
}
