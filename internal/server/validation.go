// validation.go - Upload validation and filename sanitization
package server

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// MediaKind is the category of an uploaded file.
type MediaKind string

const (
	MediaVideo MediaKind = "video"
	MediaImage MediaKind = "image"
)

// allowedMimeTypes lists the content types accepted per media kind.
var allowedMimeTypes = map[MediaKind]map[string]bool{
	MediaVideo: {
		"video/mp4":        true,
		"video/mpeg":       true,
		"video/ogg":        true,
		"video/webm":       true,
		"video/quicktime":  true,
		"video/x-msvideo":  true,
		"video/x-matroska": true,
	},
	MediaImage: {
		"image/jpeg": true,
		"image/png":  true,
		"image/gif":  true,
		"image/webp": true,
		"image/bmp":  true,
		"image/avif": true,
	},
}

// extensionMimeTypes backs up mime.TypeByExtension, whose table depends on
// the host system.
var extensionMimeTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".ogv":  "video/ogg",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".avif": "image/avif",
}

// baseMimeType strips parameters such as charset and lowercases.
func baseMimeType(ct string) string {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}

// mimeTypeForExtension returns the content type implied by filename's
// extension, or "" when unknown.
func mimeTypeForExtension(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return ""
	}
	if ct, ok := extensionMimeTypes[ext]; ok {
		return ct
	}
	return baseMimeType(mime.TypeByExtension(ext))
}

// ResolveUploadType checks an upload against kind and returns the content
// type to store it with. The client type wins when given; otherwise it is
// derived from the extension. application/octet-stream from the client
// falls back to the extension.
func ResolveUploadType(kind MediaKind, filename, clientContentType string) (string, error) {
	allowed, ok := allowedMimeTypes[kind]
	if !ok {
		return "", fmt.Errorf("unknown media kind: %s", kind)
	}

	extType := mimeTypeForExtension(filename)
	ct := baseMimeType(clientContentType)
	if ct == "" || ct == "application/octet-stream" {
		ct = extType
	}
	if ct == "" {
		return "", fmt.Errorf("file must have an extension or content type")
	}
	if !allowed[ct] {
		return "", fmt.Errorf("%s uploads do not accept %s", kind, ct)
	}
	if extType != "" && !isMimeTypeCompatible(extType, ct) {
		return "", fmt.Errorf("MIME type mismatch: extension suggests %s but got %s", extType, ct)
	}
	return ct, nil
}

// isMimeTypeCompatible treats types with the same major part as compatible.
func isMimeTypeCompatible(expected, actual string) bool {
	expMajor, _, ok1 := strings.Cut(expected, "/")
	actMajor, _, ok2 := strings.Cut(actual, "/")
	return ok1 && ok2 && expMajor == actMajor
}

// SanitizeFilename turns a client supplied name into a single safe path
// segment usable as an object key suffix.
func SanitizeFilename(filename string) string {
	// Clients on Windows may send full paths.
	filename = strings.ReplaceAll(filename, "\\", "/")
	if i := strings.LastIndex(filename, "/"); i >= 0 {
		filename = filename[i+1:]
	}

	filename = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == 0x7f:
			return -1
		case strings.ContainsRune(`<>:"|?*`, r):
			return '_'
		}
		return r
	}, filename)

	filename = strings.Trim(filename, " .")

	if len(filename) > 255 {
		ext := filepath.Ext(filename)
		if len(ext) > 16 {
			ext = ""
		}
		cut := 255 - len(ext)
		// never split a multi-byte rune
		for cut > 0 && !utf8.RuneStart(filename[cut]) {
			cut--
		}
		filename = filename[:cut] + ext
	}

	if filename == "" {
		filename = "unnamed"
	}
	return filename
}
