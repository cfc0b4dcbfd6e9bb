package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func auditEntries(t *testing.T, buf *bytes.Buffer) []LogEntry {
	t.Helper()
	var out []LogEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e LogEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		out = append(out, e)
	}
	return out
}

func TestAudit_RecordsMutations(t *testing.T) {
	var buf bytes.Buffer
	env := newTestEnv(t, func(c *Config) { c.AuditLog = NewLogger(&buf, LogLevelInfo, true) })

	env.doJSON(t, http.MethodPost, "/news", firstNews)
	env.doJSON(t, http.MethodGet, "/news", nil)
	env.doJSON(t, http.MethodDelete, "/news/0", nil)
	uploadImage(t, env, "a.png", "image/png")
	env.do(httptest.NewRequest(http.MethodDelete, "/images/a.png", nil))

	entries := auditEntries(t, &buf)
	want := []AuditAction{AuditActionNewsCreate, AuditActionNewsRemove, AuditActionImageUpload, AuditActionImageDelete}
	if len(entries) != len(want) {
		t.Fatalf("got %d audit entries, want %d: %s", len(entries), len(want), buf.String())
	}
	for i, e := range entries {
		if e.Message != "audit" || e.Level != LogLevelInfo {
			t.Errorf("entry %d = %s/%s", i, e.Level, e.Message)
		}
		if got := e.Fields["action"]; got != string(want[i]) {
			t.Errorf("entry %d action = %v, want %s", i, got, want[i])
		}
		if e.Fields["request_id"] == nil || e.Fields["audit_id"] == nil {
			t.Errorf("entry %d missing ids: %v", i, e.Fields)
		}
	}
	if entries[1].Fields["resource"] != "0" || entries[1].Fields["title"] != "T1" {
		t.Errorf("news remove entry = %v", entries[1].Fields)
	}
	if entries[2].Fields["resource"] != "images/a.png" {
		t.Errorf("image upload resource = %v", entries[2].Fields["resource"])
	}
}

func TestAudit_FailuresAreWarnings(t *testing.T) {
	var buf bytes.Buffer
	env := newTestEnv(t, func(c *Config) { c.AuditLog = NewLogger(&buf, LogLevelInfo, true) })

	env.doJSON(t, http.MethodDelete, "/news/3", nil)

	entries := auditEntries(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("got %d entries: %s", len(entries), buf.String())
	}
	e := entries[0]
	if e.Level != LogLevelWarn || e.Fields["success"] != false || e.Fields["error_message"] == nil {
		t.Errorf("failed remove entry = %+v", e)
	}
	if _, ok := e.Fields["title"]; ok {
		t.Errorf("failed remove should carry no title: %v", e.Fields)
	}
}
