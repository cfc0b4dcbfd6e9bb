package server

import (
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"
)

type uploadImageResp struct {
	Success   bool   `json:"success"`
	ImageURL  string `json:"imageUrl"`
	ImageName string `json:"imageName"`
}

type deleteImageResp struct {
	Success   bool   `json:"success"`
	ImageName string `json:"imageName"`
}

// imageEntry is one row of GET /images.
type imageEntry struct {
	Name         string    `json:"name"`
	URL          string    `json:"url"`
	SizeBytes    int64     `json:"size_bytes"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// handleUploadImage handles POST /upload_image.
func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	up, ok := s.readUpload(w, r, MediaImage)
	if !ok {
		return
	}
	defer up.close()

	info, err := s.putUpload(r.Context(), imagePrefix, MediaImage, up)
	if err != nil {
		logf(r, "msg=put_image_failed name=%q err=%v", up.name, err)
		s.audit(r, AuditActionImageUpload, imagePrefix+up.name, nil, err)
		writeDetail(w, http.StatusInternalServerError, "error uploading image")
		return
	}

	logf(r, "msg=image_uploaded key=%q bytes=%d", info.Key, up.size)
	s.audit(r, AuditActionImageUpload, info.Key, map[string]any{"bytes": up.size}, nil)
	writeJSON(w, http.StatusOK, uploadImageResp{
		Success:   true,
		ImageURL:  s.publicURL(imagePrefix, up.name),
		ImageName: up.name,
	})
}

// handleListImages handles GET /images, newest first.
func (s *Server) handleListImages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	objs, err := s.objects.List(r.Context(), imagePrefix)
	if err != nil {
		logf(r, "msg=list_images_failed err=%v", err)
		writeDetail(w, http.StatusInternalServerError, "error listing images")
		return
	}

	out := make([]imageEntry, 0, len(objs))
	for _, o := range objs {
		name := strings.TrimPrefix(o.Key, imagePrefix)
		if name == "" || strings.Contains(name, "/") {
			continue
		}
		out = append(out, imageEntry{
			Name:         name,
			URL:          s.publicURL(imagePrefix, name),
			SizeBytes:    o.Size,
			ContentType:  o.ContentType,
			LastModified: o.LastModified,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].LastModified.Equal(out[j].LastModified) {
			return out[i].LastModified.After(out[j].LastModified)
		}
		return out[i].Name < out[j].Name
	})
	writeJSON(w, http.StatusOK, out)
}

// handleImageItem serves GET/HEAD and DELETE on /images/{name}.
func (s *Server) handleImageItem(w http.ResponseWriter, r *http.Request) {
	name, ok := objectName(r.URL.Path, "/images/")
	if !ok {
		writeDetail(w, http.StatusNotFound, "image not found")
		return
	}

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		s.serveObject(w, r, imagePrefix+name)
	case http.MethodDelete:
		err := s.objects.Remove(r.Context(), imagePrefix+name)
		if errors.Is(err, ErrObjectNotFound) {
			writeDetail(w, http.StatusNotFound, "image not found")
			return
		}
		if err != nil {
			logf(r, "msg=delete_image_failed name=%q err=%v", name, err)
			s.audit(r, AuditActionImageDelete, imagePrefix+name, nil, err)
			writeDetail(w, http.StatusInternalServerError, "error deleting image")
			return
		}
		GetMetrics().RecordDelete(string(MediaImage))
		s.audit(r, AuditActionImageDelete, imagePrefix+name, nil, nil)
		writeJSON(w, http.StatusOK, deleteImageResp{Success: true, ImageName: name})
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodHead, http.MethodDelete)
	}
}
