// Package breedclient is an HTTP client for the breed identification API.
package breedclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/okian/breedid/internal/domain/catalog"
	"github.com/okian/breedid/internal/domain/types"
	"github.com/okian/breedid/pkg/logger"
)

const defaultTimeout = 30 * time.Second

// Client talks to a running breed identification server.
type Client struct {
	baseURL string
	http    *http.Client
	logger  logger.Logger
}

// New creates a client for baseURL, e.g. "http://localhost:9080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  logger.Get(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil, "")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer c.closeBody(ctx, resp)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

// SearchBreeds calls GET /breeds.
func (c *Client) SearchBreeds(ctx context.Context, term, use string) (types.BreedList, error) {
	q := url.Values{}
	if term != "" {
		q.Set("q", term)
	}
	if use != "" {
		q.Set("use", use)
	}
	path := "/breeds"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out types.BreedList
	err := c.getJSON(ctx, path, &out)
	return out, err
}

// Uses calls GET /breeds/uses.
func (c *Client) Uses(ctx context.Context) ([]string, error) {
	var out struct {
		Uses []string `json:"uses"`
	}
	err := c.getJSON(ctx, "/breeds/uses", &out)
	return out.Uses, err
}

// Breed calls GET /breeds/{id}.
func (c *Client) Breed(ctx context.Context, id string) (catalog.BreedRecord, error) {
	var out catalog.BreedRecord
	err := c.getJSON(ctx, "/breeds/"+url.PathEscape(id), &out)
	return out, err
}

// CreateSession calls POST /sessions.
func (c *Client) CreateSession(ctx context.Context) (types.SessionView, error) {
	var out types.SessionView
	err := c.sendJSON(ctx, http.MethodPost, "/sessions", nil, "", &out)
	return out, err
}

// Session calls GET /sessions/{id}.
func (c *Client) Session(ctx context.Context, id string) (types.SessionView, error) {
	var out types.SessionView
	err := c.getJSON(ctx, sessionPath(id, ""), &out)
	return out, err
}

// DeleteSession calls DELETE /sessions/{id}.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.sendJSON(ctx, http.MethodDelete, sessionPath(id, ""), nil, "", nil)
}

// UploadImage streams an image as the multipart "image" field.
func (c *Client) UploadImage(ctx context.Context, id, filename, mediaType string, data io.Reader, source string) (types.SubmitResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filename))
	h.Set("Content-Type", mediaType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return types.SubmitResult{}, fmt.Errorf("failed to create multipart part: %w", err)
	}
	if _, err := io.Copy(part, data); err != nil {
		return types.SubmitResult{}, fmt.Errorf("failed to copy image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return types.SubmitResult{}, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	path := sessionPath(id, "/image")
	if source != "" {
		path += "?source=" + url.QueryEscape(source)
	}
	var out types.SubmitResult
	err = c.sendJSON(ctx, http.MethodPut, path, &body, mw.FormDataContentType(), &out)
	return out, err
}

// Identify calls POST /sessions/{id}/identify.
func (c *Client) Identify(ctx context.Context, id string, wait bool) (types.IdentifyResult, error) {
	path := sessionPath(id, "/identify")
	if wait {
		path += "?wait=true"
	}
	var out types.IdentifyResult
	err := c.sendJSON(ctx, http.MethodPost, path, nil, "", &out)
	return out, err
}

// Reset calls POST /sessions/{id}/reset.
func (c *Client) Reset(ctx context.Context, id string) (types.SessionView, error) {
	var out types.SessionView
	err := c.sendJSON(ctx, http.MethodPost, sessionPath(id, "/reset"), nil, "", &out)
	return out, err
}

// Report fetches the plain-text report.
func (c *Client) Report(ctx context.Context, id string) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, sessionPath(id, "/report"), nil, "")
	if err != nil {
		return "", err
	}
	defer c.closeBody(ctx, resp)

	if err := checkStatus(resp); err != nil {
		return "", err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read report: %w", err)
	}
	return string(data), nil
}

func sessionPath(id, suffix string) string {
	return "/sessions/" + url.PathEscape(id) + suffix
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.sendJSON(ctx, http.MethodGet, path, nil, "", out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	resp, err := c.do(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	defer c.closeBody(ctx, resp)

	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	c.logger.Debug(ctx, "request completed",
		logger.String("method", method),
		logger.String("path", path),
		logger.Int("status", resp.StatusCode))
	return resp, nil
}

func (c *Client) closeBody(ctx context.Context, resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		c.logger.Error(ctx, "failed to close response body", logger.Error(err))
	}
}

// checkStatus turns a non-2xx response into an *APIError.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	apiErr := &APIError{Status: resp.StatusCode, Code: "http_error", Message: http.StatusText(resp.StatusCode)}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(data, apiErr)
	apiErr.Status = resp.StatusCode
	return apiErr
}
