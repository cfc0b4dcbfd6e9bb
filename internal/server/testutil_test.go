package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JairVaz13/api2-estadia/internal/news"
	"github.com/JairVaz13/api2-estadia/internal/videos"
)

const testBaseURL = "http://media.test"

// fakeObjects is an in-memory ObjectStore.
type fakeObjects struct {
	mu      sync.Mutex
	objects map[string]fakeObject
	tick    int

	putErr  error
	pingErr error
}

type fakeObject struct {
	data []byte
	info ObjectInfo
}

type readSeekNopCloser struct {
	*bytes.Reader
}

func (readSeekNopCloser) Close() error { return nil }

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: make(map[string]fakeObject)}
}

func (f *fakeObjects) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (ObjectInfo, error) {
	if f.putErr != nil {
		return ObjectInfo{}, f.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return ObjectInfo{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	// each put is one second newer than the last
	f.tick++
	info := ObjectInfo{
		Key:          key,
		Size:         int64(len(data)),
		ContentType:  contentType,
		LastModified: time.Date(2025, 1, 1, 0, 0, f.tick, 0, time.UTC),
	}
	f.objects[key] = fakeObject{data: data, info: info}
	return info, nil
}

func (f *fakeObjects) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[key]
	if !ok {
		return nil, ObjectInfo{}, ErrObjectNotFound
	}
	return readSeekNopCloser{bytes.NewReader(obj.data)}, obj.info, nil
}

func (f *fakeObjects) Remove(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[key]; !ok {
		return ErrObjectNotFound
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeObjects) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []ObjectInfo{}
	for k, o := range f.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, o.info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (f *fakeObjects) Ping(ctx context.Context) error {
	return f.pingErr
}

func (f *fakeObjects) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

// failingCatalog wraps a real catalog and fails selected calls.
type failingCatalog struct {
	videos.Catalog
	insertErr error
	listErr   error
	pingErr   error
	refErr    error
}

func (c *failingCatalog) Insert(ctx context.Context, v videos.Video) error {
	if c.insertErr != nil {
		return c.insertErr
	}
	return c.Catalog.Insert(ctx, v)
}

func (c *failingCatalog) List(ctx context.Context, skip, limit int) ([]videos.Video, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	return c.Catalog.List(ctx, skip, limit)
}

func (c *failingCatalog) ReferencesObject(ctx context.Context, key string) (bool, error) {
	if c.refErr != nil {
		return false, c.refErr
	}
	return c.Catalog.ReferencesObject(ctx, key)
}

func (c *failingCatalog) Ping(ctx context.Context) error {
	if c.pingErr != nil {
		return c.pingErr
	}
	return c.Catalog.Ping(ctx)
}

// brokenNews fails every call with an I/O style error.
type brokenNews struct{}

var errDisk = errors.New("read news.csv: input/output error")

func (brokenNews) ListAll() ([]news.Record, error) { return nil, errDisk }
func (brokenNews) GetAt(int) (news.Record, error) { return news.Record{}, errDisk }
func (brokenNews) Append(news.Record) (news.Record, error) { return news.Record{}, errDisk }
func (brokenNews) ReplaceAt(int, news.Record) (news.Record, error) { return news.Record{}, errDisk }
func (brokenNews) RemoveAt(int) (news.Record, error) { return news.Record{}, errDisk }

type testEnv struct {
	srv     *Server
	handler http.Handler
	news    news.Store
	catalog *failingCatalog
	objects *fakeObjects
}

type envOption func(*Config)

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	sqlite, err := videos.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	env := &testEnv{
		news:    news.NewMemoryStore(),
		catalog: &failingCatalog{Catalog: sqlite},
		objects: newFakeObjects(),
	}
	cfg := Config{
		Addr:    "127.0.0.1:0",
		BaseURL: testBaseURL + "/",
		Build:   BuildInfo{Version: "test", Commit: "abc123"},
		News:    env.news,
		Videos:  env.catalog,
		Objects: env.objects,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	env.news = cfg.News

	env.srv = New(cfg)
	env.handler = env.srv.Handler()
	t.Cleanup(func() { _ = env.srv.Shutdown(context.Background()) })
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) doJSON(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.do(req)
}

// multipartRequest builds a POST with the given form fields and, when
// filename is non-empty, a "file" part.
func multipartRequest(t *testing.T, target string, fields map[string]string, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if filename != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		if contentType != "" {
			h.Set("Content-Type", contentType)
		}
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("CreatePart: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectDetail(t *testing.T, rec *httptest.ResponseRecorder, status int, detail string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %q)", rec.Code, status, rec.Body.String())
	}
	got := decodeBody[map[string]string](t, rec)
	if detail != "" && got["detail"] != detail {
		t.Errorf("detail = %q, want %q", got["detail"], detail)
	}
}
