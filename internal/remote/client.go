// Package remote provides an HTTP client for the CRM lead history API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wesm/leadhistory/internal/history"
	"golang.org/x/time/rate"
)

var (
	// ErrNotFound matches an APIError with status 404.
	ErrNotFound = errors.New("not found")

	// ErrMalformedPayload is returned when a response body does not have
	// the documented shape.
	ErrMalformedPayload = history.ErrMalformedPayload
)

// Client provides access to a CRM server's lead history API.
// It implements history.Backend.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

var _ history.Backend = (*Client)(nil)

// Config holds configuration for creating a client.
type Config struct {
	URL           string
	APIKey        string
	AllowInsecure bool
	Timeout       time.Duration

	// RateLimitQPS caps outgoing requests per second. Zero disables pacing.
	RateLimitQPS float64

	Logger *slog.Logger
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("remote URL is required")
	}

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	// Enforce HTTPS unless AllowInsecure is set
	if parsedURL.Scheme == "http" && !cfg.AllowInsecure {
		return nil, fmt.Errorf("HTTPS required for remote connections\n\n" +
			"Options:\n" +
			"  1. Use HTTPS: [remote] url = \"https://crm.example.com\"\n" +
			"  2. For trusted networks: add 'allow_insecure = true' to [remote] in config.toml")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("URL scheme must be http or https, got: %s", parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return nil, fmt.Errorf("remote URL must include a host (e.g., https://crm.example.com)")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c := &Client{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
	if cfg.RateLimitQPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitQPS), 1)
	}
	return c, nil
}

// Close is a no-op for HTTP client.
func (c *Client) Close() error {
	return nil
}

// doRequest performs an HTTP request. A JSON body is encoded when body
// is non-nil.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	requestID := uuid.NewString()
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	c.logger.Debug("api request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start))

	return resp, nil
}

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int
	Message    string // server-supplied message, empty if the body had none
	Code       string
	Body       string // raw body when it was not a JSON error
}

func (e *APIError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
	case e.Body != "":
		return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("API error (%d)", e.StatusCode)
}

// HTTPStatus returns the response status code.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// ServerMessage returns the message the server supplied for display.
func (e *APIError) ServerMessage() string { return e.Message }

// Is reports a 404 as ErrNotFound.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// errorBody is the union of the error shapes the API returns.
type errorBody struct {
	Success *bool           `json:"success"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details"`
	Code    string          `json:"code"`
}

func (b errorBody) message() string {
	if b.Error != "" {
		return b.Error
	}
	return b.Message
}

// handleErrorResponse reads an error response and returns an *APIError.
func handleErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.message() != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: eb.message(), Code: eb.Code}
	}

	return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

func leadPath(leadID, suffix string) string {
	return "/history/api/leads/" + url.PathEscape(leadID) + "/" + suffix
}

// messagesQuery encodes the page and filter as query parameters. The
// search type is sent only alongside a search, and a date range only
// when both ends are set.
func messagesQuery(page int, f history.SearchFilter) url.Values {
	q := url.Values{}
	q.Set("page", fmt.Sprint(page))
	if f.Query != "" {
		q.Set("query", f.Query)
	}
	dated := f.Type == history.SearchDate && f.HasDateRange()
	if dated {
		q.Set("date_from", f.DateFrom.Format(time.DateOnly))
		q.Set("date_to", f.DateTo.Format(time.DateOnly))
	}
	if f.Query != "" || dated {
		q.Set("type", string(f.Type))
	}
	if len(f.MessageTypes) > 0 {
		q.Set("message_types", strings.Join(f.MessageTypes, ","))
	}
	if f.Period != "" {
		q.Set("period", f.Period)
	}
	if f.Importance != "" {
		q.Set("importance", f.Importance)
	}
	return q
}

// ListMessages fetches one page of a lead's messages.
func (c *Client) ListMessages(ctx context.Context, leadID string, page int, f history.SearchFilter) (*history.MessagePage, error) {
	if page < 1 {
		page = 1
	}
	path := leadPath(leadID, "messages") + "?" + messagesQuery(page, f).Encode()
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp)
	}

	var mr messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return nil, fmt.Errorf("decode messages response: %w", err)
	}
	return mr.toPage(page)
}

// GetTimeline fetches the lead's timeline and, when present, lead details.
func (c *Client) GetTimeline(ctx context.Context, leadID string) (*history.Timeline, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, leadPath(leadID, "timeline"), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read timeline response: %w", err)
	}
	return decodeTimeline(resp.StatusCode, body)
}

// AnalyzeLead runs the behavior analysis for a lead.
func (c *Client) AnalyzeLead(ctx context.Context, leadID string) (*history.Analysis, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, leadPath(leadID, "analyze"), struct{}{})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp)
	}

	var ar analysisResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, fmt.Errorf("decode analysis response: %w", err)
	}
	if ar.Success != nil && !*ar.Success && ar.message() != "" {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: ar.message(), Code: ar.Code}
	}
	if ar.Data == nil {
		return nil, history.ErrNoAnalysisData
	}
	return ar.Data.toAnalysis(), nil
}

// SaveFilterPreset stores a named filter preset on the server.
func (c *Client) SaveFilterPreset(ctx context.Context, p history.FilterPreset) error {
	return c.post(ctx, "/history/api/save-filter-preset", p)
}

// DeleteFilterPreset removes a named filter preset.
func (c *Client) DeleteFilterPreset(ctx context.Context, name string) error {
	return c.post(ctx, "/history/api/delete-filter-preset", map[string]string{"name": name})
}

// SaveFilters stores the current list-filter form values.
func (c *Client) SaveFilters(ctx context.Context, filters map[string]string) error {
	return c.post(ctx, "/history/api/save-filters", filters)
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	resp, err := c.doRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return handleErrorResponse(resp)
	}

	var eb errorBody
	data, _ := io.ReadAll(resp.Body)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &eb); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if eb.Success != nil && !*eb.Success {
		return &APIError{StatusCode: resp.StatusCode, Message: eb.message(), Code: eb.Code}
	}
	return nil
}
