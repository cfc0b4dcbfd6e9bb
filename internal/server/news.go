package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/JairVaz13/api2-estadia/internal/news"
)

const maxNewsBody = 64 << 10

// newsRequest is the body of POST /news and PUT /news/{index}.
type newsRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

func (req newsRequest) record() (news.Record, error) {
	rec := news.Record{
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Date:        strings.TrimSpace(req.Date),
	}
	switch {
	case rec.Title == "":
		return rec, errors.New("title is required")
	case rec.Description == "":
		return rec, errors.New("description is required")
	case rec.Date == "":
		return rec, errors.New("date is required")
	}
	return rec, nil
}

// handleNewsCollection serves GET and POST on /news.
func (s *Server) handleNewsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		records, err := s.news.ListAll()
		GetMetrics().RecordNewsOp("list", err != nil)
		if err != nil {
			s.newsError(w, r, "list", err)
			return
		}
		writeJSON(w, http.StatusOK, records)

	case http.MethodPost:
		rec, ok := decodeNews(w, r)
		if !ok {
			return
		}
		stored, err := s.news.Append(rec)
		GetMetrics().RecordNewsOp("append", err != nil)
		s.audit(r, AuditActionNewsCreate, "", map[string]any{"title": rec.Title}, err)
		if err != nil {
			s.newsError(w, r, "append", err)
			return
		}
		writeJSON(w, http.StatusOK, stored)

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// handleNewsItem serves GET, PUT and DELETE on /news/{index}.
func (s *Server) handleNewsItem(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodPut, http.MethodDelete:
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/news/")
	index, err := strconv.Atoi(raw)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "index must be an integer")
		return
	}

	var (
		op  string
		rec news.Record
	)
	switch r.Method {
	case http.MethodGet:
		op = "get"
		rec, err = s.news.GetAt(index)
	case http.MethodPut:
		in, ok := decodeNews(w, r)
		if !ok {
			return
		}
		op = "replace"
		rec, err = s.news.ReplaceAt(index, in)
	case http.MethodDelete:
		op = "remove"
		rec, err = s.news.RemoveAt(index)
	}

	// An index out of range is a client mistake, not a store failure.
	GetMetrics().RecordNewsOp(op, err != nil && !errors.Is(err, news.ErrNotFound))
	var details map[string]any
	if err == nil {
		details = map[string]any{"title": rec.Title}
	}
	switch op {
	case "replace":
		s.audit(r, AuditActionNewsReplace, raw, details, err)
	case "remove":
		s.audit(r, AuditActionNewsRemove, raw, details, err)
	}
	if err != nil {
		s.newsError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func decodeNews(w http.ResponseWriter, r *http.Request) (news.Record, bool) {
	var req newsRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxNewsBody))
	if err := dec.Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body")
		return news.Record{}, false
	}
	rec, err := req.record()
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return news.Record{}, false
	}
	return rec, true
}

func (s *Server) newsError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, news.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "news not found")
		return
	}
	logf(r, "msg=news_%s_failed err=%v", op, err)
	writeDetail(w, http.StatusInternalServerError, "internal error")
}
