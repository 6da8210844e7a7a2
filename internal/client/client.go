// Package client talks to the remote dubbing service: it creates jobs and
// fetches their status. It knows nothing about polling; that is the track
// package's concern.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dubwatch/dubwatch/internal/job"
)

// APIError is a non-2xx response from the dubbing service. Body is best
// effort: if reading the response body fails it is left empty rather than
// masking the status code.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("dubbing service returned %d", e.StatusCode)
	}
	return fmt.Sprintf("dubbing service returned %d: %s", e.StatusCode, e.Body)
}

// Client is an HTTP client for the dubbing service.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client for the service at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// BaseURL returns the service base address the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Submit serialises the request as a multipart form and creates a job.
// The trim window fields are only written when a window is present, and the
// raw form strings are sent unchanged. Returns the job id assigned by the
// service.
func (c *Client) Submit(ctx context.Context, r *job.Request) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", r.FileName)
	if err != nil {
		return "", fmt.Errorf("build multipart form: %w", err)
	}
	if _, err := fw.Write(r.File); err != nil {
		return "", fmt.Errorf("write file part: %w", err)
	}

	if _, _, ok := r.TrimWindow(); ok {
		if err := mw.WriteField("start_time", r.StartTime); err != nil {
			return "", fmt.Errorf("write start_time: %w", err)
		}
		if err := mw.WriteField("end_time", r.EndTime); err != nil {
			return "", fmt.Errorf("write end_time: %w", err)
		}
	}
	if r.Language != "" {
		if err := mw.WriteField("language", r.Language); err != nil {
			return "", fmt.Errorf("write language: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jobs", &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{StatusCode: resp.StatusCode, Body: readBody(resp.Body)}
	}

	var created struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode create response: %w", err)
	}
	if created.JobID == "" {
		return "", fmt.Errorf("create response missing job_id")
	}
	return created.JobID, nil
}

// Fetch retrieves the current status snapshot for a job.
func (c *Client) Fetch(ctx context.Context, id string) (*job.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jobs/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch job %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: readBody(resp.Body)}
	}

	snap := &job.Snapshot{}
	if err := json.NewDecoder(resp.Body).Decode(snap); err != nil {
		return nil, fmt.Errorf("decode status for job %s: %w", id, err)
	}
	return snap, nil
}

// readBody reads an error response body, falling back to "" on failure.
func readBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
