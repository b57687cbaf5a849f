// Package judge talks to the remote content and judge service: it loads
// problem definitions, runs code against fixed test cases or custom stdin,
// and submits code for scoring.
package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/felixgeelhaar/codelab/internal/domain"
)

// maxBodyBytes bounds how much of a judge answer is read
const maxBodyBytes = 8 << 20

// Request is the code sent for execution
type Request struct {
	SourceCode string `json:"sourceCode"`
	LanguageID int    `json:"languageId"`
}

type customRequest struct {
	Request
	Input string `json:"input"`
}

// Config holds client settings
type Config struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Resilience ResilienceConfig
	Logger     *slog.Logger
}

// Client is an HTTP/JSON judge client
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	resilience *resilience
	logger     *slog.Logger
}

// New creates a judge client
func New(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Resilience.Logger == nil {
		cfg.Resilience.Logger = logger
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = newJudgeHTTPClient(cfg.Timeout)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: httpClient,
		resilience: newResilience(cfg.Resilience),
		logger:     logger,
	}
}

// newJudgeHTTPClient creates an HTTP client with timeouts sized for
// compile-and-run round trips
func newJudgeHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   4,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// Problem loads a problem definition. The read is retried with backoff.
func (c *Client) Problem(ctx context.Context, key domain.ProblemKey) (*domain.ProblemDefinition, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, "problem", true, http.MethodGet, c.problemURL(key, ""), nil)
	if err != nil {
		return nil, err
	}
	if resp.status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", domain.ErrProblemNotFound, key)
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	problem, err := decodeProblem(resp.body, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	return problem, nil
}

// Run executes code against the problem's fixed test cases. The results
// are ordered and index-aligned with the problem's test cases.
func (c *Client) Run(ctx context.Context, key domain.ProblemKey, req Request) ([]domain.CaseResult, error) {
	resp, err := c.post(ctx, "run", key, req)
	if err != nil {
		return nil, err
	}
	results, err := decodeRunResults(resp.body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	return results, nil
}

// RunCustom executes code against custom stdin
func (c *Client) RunCustom(ctx context.Context, key domain.ProblemKey, req Request, input string) (*domain.CustomRunResult, error) {
	resp, err := c.post(ctx, "run-custom", key, customRequest{Request: req, Input: input})
	if err != nil {
		return nil, err
	}
	result, err := decodeCustomResult(resp.body, input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	return result, nil
}

// Submit sends code for authoritative scoring. It is never retried.
func (c *Client) Submit(ctx context.Context, key domain.ProblemKey, req Request) (*domain.SubmitResult, error) {
	resp, err := c.post(ctx, "submit", key, req)
	if err != nil {
		return nil, err
	}
	result, err := decodeSubmitResult(resp.body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	return result, nil
}

// Close releases resources held by the client
func (c *Client) Close() error {
	return c.resilience.close()
}

// post sends payload to the problem action named name
func (c *Client) post(ctx context.Context, name string, key domain.ProblemKey, payload any) (*response, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	endpoint := c.problemURL(key, name)
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	resp, err := c.do(ctx, name, false, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}
	if resp.status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", domain.ErrProblemNotFound, key)
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// do performs one request through the resilience wrappers. Every failure
// that is not a well-formed HTTP answer is wrapped as ErrTransport.
func (c *Client) do(ctx context.Context, name string, idempotent bool, method, endpoint string, body []byte) (*response, error) {
	start := time.Now()
	resp, err := c.resilience.execute(ctx, name, idempotent, func(ctx context.Context) (*response, error) {
		return c.roundTrip(ctx, method, endpoint, body)
	})
	if err != nil {
		c.logger.Warn("judge request failed",
			"op", name,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrTransport, name, err)
	}

	c.logger.Debug("judge request",
		"op", name,
		"status", resp.status,
		"duration_ms", time.Since(start).Milliseconds())
	return resp, nil
}

func (c *Client) roundTrip(ctx context.Context, method, endpoint string, body []byte) (*response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500 {
		return nil, &statusError{code: httpResp.StatusCode, body: truncate(string(data), 200)}
	}
	return &response{status: httpResp.StatusCode, body: data}, nil
}

func (c *Client) problemURL(key domain.ProblemKey, action string) string {
	u := c.baseURL + "/courses/" + url.PathEscape(key.CourseID) + "/problems/" + url.PathEscape(key.ProblemID)
	if action != "" {
		u += "/" + action
	}
	return u
}

// checkStatus converts remaining non-2xx answers into errors
func checkStatus(resp *response) error {
	if resp.status >= 200 && resp.status < 300 {
		return nil
	}
	err := &statusError{code: resp.status, body: truncate(string(resp.body), 200)}
	if resp.status == http.StatusBadRequest || resp.status == http.StatusUnprocessableEntity {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrTransport, err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
