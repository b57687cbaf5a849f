package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/felixgeelhaar/codelab/internal/assessment"
	"github.com/felixgeelhaar/codelab/internal/config"
	"github.com/felixgeelhaar/codelab/internal/domain"
)

var httpClient = &http.Client{Timeout: 2 * time.Minute}

// daemonAddr is the daemon base URL from CODELAB_ADDR or the config file
func daemonAddr() string {
	if addr := os.Getenv("CODELAB_ADDR"); addr != "" {
		return strings.TrimRight(addr, "/")
	}
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		cfg = config.DefaultLocalConfig()
	}
	return fmt.Sprintf("http://%s:%d", cfg.Daemon.Bind, cfg.Daemon.Port)
}

// apiError is the daemon's error body
type apiError struct {
	Message string           `json:"error"`
	Status  int              `json:"status"`
	Details string           `json:"details"`
	View    *assessment.View `json:"view"`
}

func (e *apiError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

// call sends a JSON request to the daemon and decodes the answer into out
func call(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, daemonAddr()+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("daemon not reachable (run 'codelab start'): %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &apiError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = resp.Status
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// callView performs a problem action and prints the resulting view. A
// failed action still prints the state the daemon reported.
func callView(method string, key domain.ProblemKey, action string, body any) error {
	path := problemPath(key)
	if action != "" {
		path += "/" + action
	}

	var view assessment.View
	err := call(method, path, body, &view)
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.View != nil {
		printView(os.Stdout, apiErr.View, false)
		return err
	}
	if err != nil {
		return err
	}
	printView(os.Stdout, &view, action == "open" || action == "language")
	return nil
}

func problemPath(key domain.ProblemKey) string {
	return "/v1/problems/" + url.PathEscape(key.CourseID) + "/" + url.PathEscape(key.ProblemID)
}

// parseKey parses "course/problem"
func parseKey(s string) (domain.ProblemKey, error) {
	course, problem, ok := strings.Cut(s, "/")
	key := domain.ProblemKey{CourseID: course, ProblemID: problem}
	if !ok {
		return key, fmt.Errorf("expected course/problem, got %q", s)
	}
	return key, key.Validate()
}

// resolveKey takes the problem from args when the first one looks like
// course/problem and falls back to the current problem otherwise.
func resolveKey(args []string, positional int) (domain.ProblemKey, []string, error) {
	if len(args) > positional && strings.Contains(args[0], "/") {
		key, err := parseKey(args[0])
		return key, args[1:], err
	}
	key, err := loadCurrent()
	return key, args, err
}

func currentPath() (string, error) {
	dir, err := config.CodelabDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, currentFile), nil
}

func saveCurrent(key domain.ProblemKey) error {
	path, err := currentPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(key.String()+"\n"), 0644)
}

func loadCurrent() (domain.ProblemKey, error) {
	path, err := currentPath()
	if err != nil {
		return domain.ProblemKey{}, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return domain.ProblemKey{}, fmt.Errorf("no current problem (run 'codelab open <course/problem>')")
	}
	if err != nil {
		return domain.ProblemKey{}, fmt.Errorf("read current problem: %w", err)
	}
	return parseKey(strings.TrimSpace(string(data)))
}
