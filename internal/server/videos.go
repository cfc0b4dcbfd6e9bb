package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JairVaz13/api2-estadia/internal/videos"
)

const (
	defaultVideoPage = 3
	maxVideoPage     = 100
)

type uploadVideoResp struct {
	Success          bool   `json:"success"`
	VideoURL         string `json:"videoUrl"`
	VideoTitle       string `json:"videoTitle"`
	VideoDescription string `json:"videoDescription"`
	VideoID          string `json:"videoId"`
}

type deleteVideoResp struct {
	Success bool   `json:"success"`
	VideoID string `json:"videoId"`
}

// handleUploadVideo handles POST /upload_video. The form carries the video
// in "file" plus "title" and "description". The bytes go to object storage
// first; the catalog row is only written once they are stored.
func (s *Server) handleUploadVideo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	up, ok := s.readUpload(w, r, MediaVideo)
	if !ok {
		return
	}
	defer up.close()

	title := strings.TrimSpace(r.FormValue("title"))
	description := strings.TrimSpace(r.FormValue("description"))
	if title == "" || description == "" {
		writeDetail(w, http.StatusBadRequest, "title and description are required")
		return
	}

	info, err := s.putUpload(r.Context(), videoPrefix, MediaVideo, up)
	if err != nil {
		logf(r, "msg=put_video_failed name=%q err=%v", up.name, err)
		s.audit(r, AuditActionVideoUpload, videoPrefix+up.name, nil, err)
		writeDetail(w, http.StatusInternalServerError, "error uploading video")
		return
	}

	v := videos.New(title, description, s.publicURL(videoPrefix, up.name), info.Key)
	if err := s.videos.Insert(r.Context(), v); err != nil {
		logf(r, "msg=catalog_insert_failed id=%s err=%v", v.ID, err)
		// Keep storage consistent with the catalog.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 10*time.Second)
		defer cancel()
		s.removeUnreferencedVideo(ctx, r, info.Key)
		s.audit(r, AuditActionVideoUpload, info.Key, nil, err)
		writeDetail(w, http.StatusInternalServerError, "error uploading video")
		return
	}

	logf(r, "msg=video_uploaded id=%s key=%q bytes=%d", v.ID, info.Key, up.size)
	s.audit(r, AuditActionVideoUpload, v.ID.String(), map[string]any{"object_key": info.Key, "bytes": up.size}, nil)
	writeJSON(w, http.StatusOK, uploadVideoResp{
		Success:          true,
		VideoURL:         v.VideoURL,
		VideoTitle:       v.Title,
		VideoDescription: v.Description,
		VideoID:          v.ID.String(),
	})
}

// handleListVideos handles GET /videos?skip=&limit=.
func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	q := r.URL.Query()
	skip, err := queryInt(q.Get("skip"), 0)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "skip must be a non-negative integer")
		return
	}
	limit, err := queryInt(q.Get("limit"), defaultVideoPage)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	limit = min(limit, maxVideoPage)

	list, err := s.videos.List(r.Context(), skip, limit)
	if err != nil {
		logf(r, "msg=catalog_list_failed err=%v", err)
		writeDetail(w, http.StatusInternalServerError, "error fetching videos")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleDeleteVideo handles DELETE /delete_video/{id}.
func (s *Server) handleDeleteVideo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, http.MethodDelete)
		return
	}

	id, err := uuid.Parse(strings.TrimPrefix(r.URL.Path, "/delete_video/"))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid video id")
		return
	}

	v, err := s.videos.Get(r.Context(), id)
	if err == nil {
		err = s.videos.Delete(r.Context(), id)
	}
	if errors.Is(err, videos.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "video not found")
		return
	}
	if err != nil {
		logf(r, "msg=catalog_delete_failed id=%s err=%v", id, err)
		s.audit(r, AuditActionVideoDelete, id.String(), nil, err)
		writeDetail(w, http.StatusInternalServerError, "error deleting video")
		return
	}
	GetMetrics().RecordDelete(string(MediaVideo))

	// The row is gone either way; a leftover object is only logged.
	s.removeUnreferencedVideo(r.Context(), r, v.ObjectKey)

	s.audit(r, AuditActionVideoDelete, id.String(), map[string]any{"object_key": v.ObjectKey}, nil)
	writeJSON(w, http.StatusOK, deleteVideoResp{Success: true, VideoID: id.String()})
}

// removeUnreferencedVideo removes the object at key unless a catalog row
// still points at it. Uploads with the same name share one object. When the
// lookup fails the object is kept and left to the orphan sweeper.
func (s *Server) removeUnreferencedVideo(ctx context.Context, r *http.Request, key string) {
	referenced, err := s.videos.ReferencesObject(ctx, key)
	if err != nil {
		logf(r, "msg=reference_lookup_failed key=%q err=%v", key, err)
		return
	}
	if referenced {
		logf(r, "msg=object_still_referenced key=%q", key)
		return
	}
	if err := s.objects.Remove(ctx, key); err != nil && !errors.Is(err, ErrObjectNotFound) {
		logf(r, "msg=orphan_object key=%q err=%v", key, err)
	}
}

// handleVideoFile handles GET /videos/{name}.
func (s *Server) handleVideoFile(w http.ResponseWriter, r *http.Request) {
	name, ok := objectName(r.URL.Path, "/videos/")
	if !ok {
		writeDetail(w, http.StatusNotFound, "video not found")
		return
	}
	s.serveObject(w, r, videoPrefix+name)
}

// queryInt parses a non-negative integer query value, returning def when
// the value is absent.
func queryInt(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
