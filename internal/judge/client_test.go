package judge

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/codelab/internal/domain"
)

var testKey = domain.ProblemKey{CourseID: "algo-101", ProblemID: "two-sum"}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	res := DefaultResilienceConfig()
	res.RetryDelay = 10 * time.Millisecond
	res.RatePerSecond = 100

	c := New(Config{
		BaseURL:    srv.URL + "/",
		Token:      "secret",
		Timeout:    5 * time.Second,
		Resilience: res,
	})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClient_Problem(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/courses/algo-101/problems/two-sum", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"title": "Two Sum", "testCases": [{"input": "1 2", "expectedOutput": "3"}]}`)
	}))

	p, err := c.Problem(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, "two-sum", p.ID)
	assert.Equal(t, "algo-101", p.CourseID)
	assert.Equal(t, "Two Sum", p.Title)
	require.Len(t, p.TestCases, 1)
}

func TestClient_ProblemNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "no such problem"}`, http.StatusNotFound)
	}))

	_, err := c.Problem(context.Background(), testKey)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProblemNotFound)
}

func TestClient_ProblemRetriesUnavailable(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"title": "Two Sum", "testCases": []}`)
	}))

	p, err := c.Problem(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, "Two Sum", p.Title)
	assert.Equal(t, int32(2), hits.Load())
}

func TestClient_Run(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/courses/algo-101/problems/two-sum/run", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "print(3)", body["sourceCode"])
		assert.EqualValues(t, 71, body["languageId"])
		assert.NotContains(t, body, "input")

		_, _ = io.WriteString(w, `{"results": [
			{"status": "Accepted", "actualOutput": "3"},
			{"status": "Wrong Answer", "actualOutput": "3"}
		]}`)
	}))

	results, err := c.Run(context.Background(), testKey, Request{SourceCode: "print(3)", LanguageID: 71})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Passed())
	assert.False(t, results[1].Passed())
}

func TestClient_RunServerErrorIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := c.Run(context.Background(), testKey, Request{SourceCode: "x", LanguageID: 71})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Equal(t, int32(1), hits.Load())
}

func TestClient_RunCustom(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/courses/algo-101/problems/two-sum/run-custom", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "5 7", body["input"])
		assert.Equal(t, "code", body["sourceCode"])

		_, _ = io.WriteString(w, `{"stdout": "12", "status": "Accepted", "time": "0.02"}`)
	}))

	res, err := c.RunCustom(context.Background(), testKey, Request{SourceCode: "code", LanguageID: 63}, "5 7")
	require.NoError(t, err)
	assert.Equal(t, "12", res.ActualOutput)
	assert.Equal(t, "5 7", res.Input)
	assert.True(t, res.Passed())
}

func TestClient_Submit(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/courses/algo-101/problems/two-sum/submit", r.URL.Path)
		_, _ = io.WriteString(w, `{"status": "Wrong Answer", "totalTestCases": 10, "passedCount": 7}`)
	}))

	res, err := c.Submit(context.Background(), testKey, Request{SourceCode: "code", LanguageID: 71})
	require.NoError(t, err)
	assert.Equal(t, 10, res.TotalTestCases)
	assert.Equal(t, 7, res.PassedCount)
	assert.Equal(t, 3, res.FailedCount)
	assert.False(t, res.FullyAccepted())
	assert.Equal(t, int32(1), hits.Load())
}

func TestClient_BadRequestIsValidation(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "unsupported language"}`, http.StatusBadRequest)
	}))

	_, err := c.Submit(context.Background(), testKey, Request{SourceCode: "code", LanguageID: 999})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestClient_MalformedBodyIsTransport(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html>gateway</html>`)
	}))

	_, err := c.Run(context.Background(), testKey, Request{SourceCode: "code", LanguageID: 71})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestClient_EmptyKey(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))

	_, err := c.Run(context.Background(), domain.ProblemKey{CourseID: "c"}, Request{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = c.Problem(context.Background(), domain.ProblemKey{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestClient_PathEscaping(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/courses/a%2Fb/problems/p%20q", r.URL.EscapedPath())
		_, _ = io.WriteString(w, `{"title": "x"}`)
	}))

	_, err := c.Problem(context.Background(), domain.ProblemKey{CourseID: "a/b", ProblemID: "p q"})
	require.NoError(t, err)
}
