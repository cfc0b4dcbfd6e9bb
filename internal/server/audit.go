package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// AuditAction is a content mutation recorded in the audit trail.
type AuditAction string

const (
	AuditActionNewsCreate  AuditAction = "news_create"
	AuditActionNewsReplace AuditAction = "news_replace"
	AuditActionNewsRemove  AuditAction = "news_remove"
	AuditActionVideoUpload AuditAction = "video_upload"
	AuditActionVideoDelete AuditAction = "video_delete"
	AuditActionImageUpload AuditAction = "image_upload"
	AuditActionImageDelete AuditAction = "image_delete"
)

// AuditEvent is one entry of the audit trail.
type AuditEvent struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Action    AuditAction    `json:"action"`
	RequestID string         `json:"request_id,omitempty"`
	IPAddress string         `json:"ip_address"`
	UserAgent string         `json:"user_agent,omitempty"`
	Resource  string         `json:"resource,omitempty"` // news index, video id, object key
	Details   map[string]any `json:"details,omitempty"`
	Success   bool           `json:"success"`
	ErrorMsg  string         `json:"error_message,omitempty"`
}

// fields flattens the event for the leveled logger.
func (e AuditEvent) fields() map[string]any {
	f := map[string]any{
		"audit_id":   e.ID,
		"action":     string(e.Action),
		"ip_address": e.IPAddress,
		"success":    e.Success,
	}
	if e.RequestID != "" {
		f["request_id"] = e.RequestID
	}
	if e.UserAgent != "" {
		f["user_agent"] = e.UserAgent
	}
	if e.Resource != "" {
		f["resource"] = e.Resource
	}
	if e.ErrorMsg != "" {
		f["error_message"] = e.ErrorMsg
	}
	for k, v := range e.Details {
		f[k] = v
	}
	return f
}

// audit records action on resource. Failures are logged at warn level.
func (s *Server) audit(r *http.Request, action AuditAction, resource string, details map[string]any, err error) {
	e := AuditEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Action:    action,
		RequestID: RequestIDFromContext(r.Context()),
		IPAddress: getClientIP(r),
		UserAgent: r.UserAgent(),
		Resource:  resource,
		Details:   details,
		Success:   err == nil,
	}
	if err != nil {
		e.ErrorMsg = err.Error()
		s.auditLog.Warn("audit", e.fields())
		return
	}
	s.auditLog.Info("audit", e.fields())
}
