package server

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Parts of a multipart upload beyond this are spooled to disk.
const multipartMemory = 32 << 20

// upload is a parsed multipart upload, ready to be stored.
type upload struct {
	file        multipart.File
	name        string
	size        int64
	contentType string
	form        *multipart.Form
}

func (u *upload) close() {
	_ = u.file.Close()
	_ = u.form.RemoveAll()
}

// readUpload parses the multipart body of r and validates its "file" part
// as kind. On failure it has already written the response.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, kind MediaKind) (*upload, bool) {
	if s.maxUpload > 0 {
		if r.ContentLength > s.maxUpload {
			writeDetail(w, http.StatusRequestEntityTooLarge, "file too large")
			return nil, false
		}
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, http.StatusRequestEntityTooLarge, "file too large")
			return nil, false
		}
		writeDetail(w, http.StatusBadRequest, "bad multipart")
		return nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		_ = r.MultipartForm.RemoveAll()
		writeDetail(w, http.StatusBadRequest, "missing file")
		return nil, false
	}

	name := SanitizeFilename(header.Filename)
	ct, err := ResolveUploadType(kind, name, header.Header.Get("Content-Type"))
	if err != nil {
		_ = file.Close()
		_ = r.MultipartForm.RemoveAll()
		writeDetail(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	return &upload{
		file:        file,
		name:        name,
		size:        header.Size,
		contentType: ct,
		form:        r.MultipartForm,
	}, true
}

// putUpload stores u under prefix and records the upload metrics.
func (s *Server) putUpload(ctx context.Context, prefix string, kind MediaKind, u *upload) (ObjectInfo, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	info, err := s.objects.Put(ctx, prefix+u.name, u.file, u.size, u.contentType)
	if err != nil {
		GetMetrics().RecordUploadError()
		return ObjectInfo{}, err
	}
	GetMetrics().RecordUpload(string(kind), u.size, time.Since(start))
	return info, nil
}

// publicURL is the address a stored object is served from.
func (s *Server) publicURL(prefix, name string) string {
	return s.baseURL + "/static/" + prefix + url.PathEscape(name)
}

// objectName extracts a single path segment after prefix. Anything that
// would not survive SanitizeFilename is rejected.
func objectName(path, prefix string) (string, bool) {
	name := strings.TrimPrefix(path, prefix)
	if name == "" || name != SanitizeFilename(name) {
		return "", false
	}
	return name, true
}

// serveObject streams the object at key. Seekable bodies go through
// http.ServeContent so clients can request byte ranges.
func (s *Server) serveObject(w http.ResponseWriter, r *http.Request, key string) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w, http.MethodGet, http.MethodHead)
		return
	}

	body, info, err := s.objects.Get(r.Context(), key)
	if errors.Is(err, ErrObjectNotFound) {
		writeDetail(w, http.StatusNotFound, "file not found")
		return
	}
	if err != nil {
		GetMetrics().RecordStreamError()
		logf(r, "msg=get_object_failed key=%q err=%v", key, err)
		writeDetail(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer body.Close()

	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}

	if rs, ok := body.(io.ReadSeeker); ok {
		name := key[strings.LastIndex(key, "/")+1:]
		http.ServeContent(w, r, name, info.LastModified, rs)
		GetMetrics().RecordStream(info.Size)
		return
	}

	if info.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	n, err := io.Copy(w, body)
	if err != nil {
		GetMetrics().RecordStreamError()
		logf(r, "msg=stream_failed key=%q bytes=%d err=%v", key, n, err)
		return
	}
	GetMetrics().RecordStream(n)
}

// handleStatic serves /static/videos/{name} and /static/images/{name}.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/static/")
	for _, prefix := range []string{videoPrefix, imagePrefix} {
		if name, ok := objectName(rest, prefix); ok {
			s.serveObject(w, r, prefix+name)
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "file not found")
}
