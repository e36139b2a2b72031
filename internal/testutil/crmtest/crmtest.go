// Package crmtest provides an in-process fake of the CRM lead history API
// for tests.
package crmtest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Message is a stored lead message.
type Message struct {
	ID           int64
	Content      string
	Sender       string
	ReceivedDate time.Time
	IsFromLead   bool
}

// Event is a stored timeline event.
type Event struct {
	Type        string
	Title       string
	Description string
	Date        time.Time
	IsFromLead  bool
	Metadata    map[string]any
}

// Lead is a lead with its history.
type Lead struct {
	ID       int64
	Name     string
	Email    string
	Status   string
	Messages []Message
	Events   []Event

	// Analysis is returned verbatim as the analyze response's data
	// object. Nil produces a success response without data.
	Analysis map[string]any
}

// Request is a recorded API request.
type Request struct {
	Method    string
	Path      string
	Query     url.Values
	Body      map[string]any
	RequestID string
}

type failure struct {
	status int
	body   string
}

// Server is a fake CRM server. Routes are addressed by the last path
// segment: "messages", "timeline", "analyze", "save-filter-preset",
// "delete-filter-preset" and "save-filters".
type Server struct {
	*httptest.Server

	// PageSize is the number of messages per page. Defaults to 20.
	PageSize int

	// TimelineAsArray serves the timeline as a bare event array.
	TimelineAsArray bool

	mu       sync.Mutex
	leads    map[string]*Lead
	failures map[string]failure
	gates    map[string]chan struct{}
	requests []Request
	presets  map[string]map[string]string
	filters  map[string]string
}

// New starts a fake server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		PageSize: 20,
		leads:    make(map[string]*Lead),
		failures: make(map[string]failure),
		gates:    make(map[string]chan struct{}),
		presets:  make(map[string]map[string]string),
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(s.record)
	r.Use(s.inject)

	r.Route("/history/api", func(r chi.Router) {
		r.Get("/leads/{leadID}/messages", s.handleMessages)
		r.Get("/leads/{leadID}/timeline", s.handleTimeline)
		r.Post("/leads/{leadID}/analyze", s.handleAnalyze)
		r.Post("/save-filter-preset", s.handleSavePreset)
		r.Post("/delete-filter-preset", s.handleDeletePreset)
		r.Post("/save-filters", s.handleSaveFilters)
	})
	return r
}

// AddLead registers a lead. Messages and events may be in any order.
func (s *Server) AddLead(l Lead) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead := l
	s.leads[strconv.FormatInt(l.ID, 10)] = &lead
}

// Fail makes a route answer with the given status and raw body until
// Recover is called.
func (s *Server) Fail(route string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = failure{status: status, body: body}
}

// Recover clears an injected failure.
func (s *Server) Recover(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, route)
}

// Hold blocks requests to a route until the returned release func is
// called or the client gives up.
func (s *Server) Hold(route string) (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gates[route] = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.gates[route] == gate {
				delete(s.gates, route)
			}
			s.mu.Unlock()
			close(gate)
		})
	}
}

// Requests returns the requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// RequestsTo returns the recorded requests for one route.
func (s *Server) RequestsTo(route string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if path.Base(r.Path) == route {
			out = append(out, r)
		}
	}
	return out
}

// Presets returns the saved filter presets by name.
func (s *Server) Presets() map[string]map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]map[string]string, len(s.presets))
	for k, v := range s.presets {
		out[k] = v
	}
	return out
}

// SavedFilters returns the last filters stored via save-filters.
func (s *Server) SavedFilters() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := Request{
			Method:    r.Method,
			Path:      r.URL.Path,
			Query:     r.URL.Query(),
			RequestID: r.Header.Get("X-Request-ID"),
		}
		if r.Body != nil && r.Method == http.MethodPost {
			data, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(data, &req.Body)
			r.Body = io.NopCloser(strings.NewReader(string(data)))
		}
		s.mu.Lock()
		s.requests = append(s.requests, req)
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := path.Base(r.URL.Path)
		s.mu.Lock()
		f, failing := s.failures[route]
		gate := s.gates[route]
		s.mu.Unlock()

		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}
		if failing {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.status)
			_, _ = io.WriteString(w, f.body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) lead(r *http.Request) *Lead {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.leads[chi.URLParam(r, "leadID")]
	if l == nil {
		return nil
	}
	cp := *l
	return &cp
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	l := s.lead(r)
	if l == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Lead not found"})
		return
	}

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	msgs := filterMessages(l.Messages, q)
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].ReceivedDate.After(msgs[j].ReceivedDate)
	})

	size := s.PageSize
	if size <= 0 {
		size = 20
	}
	totalPages := (len(msgs) + size - 1) / size
	start := min((page-1)*size, len(msgs))
	end := min(start+size, len(msgs))

	out := make([]map[string]any, 0, end-start)
	for _, m := range msgs[start:end] {
		out = append(out, map[string]any{
			"id":            m.ID,
			"content":       m.Content,
			"sender":        m.Sender,
			"received_date": m.ReceivedDate.UTC().Format(time.RFC3339),
			"is_from_lead":  m.IsFromLead,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"messages":     out,
		"has_next":     page < totalPages,
		"has_prev":     page > 1,
		"total_pages":  totalPages,
		"current_page": page,
	})
}

func filterMessages(msgs []Message, q url.Values) []Message {
	query := strings.ToLower(q.Get("query"))
	var from, to time.Time
	if q.Get("type") == "date" {
		from, _ = time.Parse(time.DateOnly, q.Get("date_from"))
		to, _ = time.Parse(time.DateOnly, q.Get("date_to"))
		if !to.IsZero() {
			to = to.AddDate(0, 0, 1)
		}
	}

	var out []Message
	for _, m := range msgs {
		if query != "" && !strings.Contains(strings.ToLower(m.Content), query) {
			continue
		}
		if !from.IsZero() && m.ReceivedDate.Before(from) {
			continue
		}
		if !to.IsZero() && !m.ReceivedDate.Before(to) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	l := s.lead(r)
	if l == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"success": false,
			"error":   "Lead not found",
			"code":    "LEAD_NOT_FOUND",
		})
		return
	}

	events := append([]Event(nil), l.Events...)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Date.After(events[j].Date)
	})
	out := make([]map[string]any, 0, len(events))
	for _, e := range events {
		out = append(out, map[string]any{
			"type":         e.Type,
			"date":         e.Date.UTC().Format(time.DateTime),
			"timestamp":    e.Date.Unix(),
			"title":        e.Title,
			"description":  e.Description,
			"is_from_lead": e.IsFromLead,
			"metadata":     e.Metadata,
		})
	}

	if s.TimelineAsArray {
		writeJSON(w, http.StatusOK, out)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"timeline": out,
		"lead": map[string]any{
			"id":     l.ID,
			"name":   l.Name,
			"email":  l.Email,
			"status": l.Status,
		},
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	l := s.lead(r)
	if l == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Lead not found"})
		return
	}
	if l.Analysis == nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": l.Analysis})
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *Server) handleSavePreset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name    string            `json:"name"`
		Filters map[string]string `json:"filters"`
	}
	if err := decodeBody(r, &body); err != nil || body.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "preset name is required"})
		return
	}
	s.mu.Lock()
	s.presets[body.Name] = body.Filters
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleDeletePreset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid request"})
		return
	}
	s.mu.Lock()
	_, ok := s.presets[body.Name]
	delete(s.presets, body.Name)
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "preset not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleSaveFilters(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	if err := decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid filters"})
		return
	}
	s.mu.Lock()
	s.filters = body
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
