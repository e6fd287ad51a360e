package loadtest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/okian/fitrep/internal/domain/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrRejected is returned when the service keeps refusing a batch.
var ErrRejected = errors.New("batch rejected by service")

// Cohort is the subset of cohort stats the run verifies.
type Cohort struct {
	Grade     string  `json:"grade"`
	Members   int     `json:"members"`
	Scored    int     `json:"scored"`
	Mean      float64 `json:"average"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	RVAverage float64 `json:"rvAverage"`
	RVHigh    float64 `json:"rvHigh"`
	RVLow     float64 `json:"rvLow"`
}

// Client talks to the fitrep HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return resp.StatusCode, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/healthz", "", nil, nil)
	return err
}

// Submit queues one extract and returns the job id. Backpressure responses
// are retried with a linear backoff.
func (c *Client) Submit(ctx context.Context, source, text string) (string, error) {
	path := "/imports?source=" + url.QueryEscape(source)
	for attempt := 1; ; attempt++ {
		var st model.JobStatus
		code, err := c.do(ctx, http.MethodPost, path, "text/plain", strings.NewReader(text), &st)
		if err == nil {
			return st.ID, nil
		}
		if code != http.StatusTooManyRequests {
			return "", err
		}
		if attempt == maxSubmitAttempts {
			return "", fmt.Errorf("%w: %s", ErrRejected, source)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}
}

// Wait polls a job until it reaches a terminal state.
func (c *Client) Wait(ctx context.Context, id string) (model.JobStatus, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		var st model.JobStatus
		if _, err := c.do(ctx, http.MethodGet, "/imports/"+id, "", nil, &st); err != nil {
			return st, err
		}
		if st.Done() {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return st, fmt.Errorf("job %s: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Cohorts fetches GET /cohorts.
func (c *Client) Cohorts(ctx context.Context) ([]Cohort, error) {
	var out []Cohort
	_, err := c.do(ctx, http.MethodGet, "/cohorts", "", nil, &out)
	return out, err
}
