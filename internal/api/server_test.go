package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/codecatalog/harvester/internal/catalog"
	"github.com/codecatalog/harvester/internal/config"
	"github.com/codecatalog/harvester/internal/harvester"
)

type fakeRunner struct {
	mu      sync.Mutex
	opts    []harvester.Options
	result  catalog.Result
	release chan struct{}
}

func (f *fakeRunner) Run(_ context.Context, opts harvester.Options) catalog.Result {
	f.mu.Lock()
	f.opts = append(f.opts, opts)
	f.mu.Unlock()
	if f.release != nil {
		<-f.release
	}
	return f.result
}

func (f *fakeRunner) lastOpts() (harvester.Options, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.opts) == 0 {
		return harvester.Options{}, false
	}
	return f.opts[len(f.opts)-1], true
}

type fakeReader struct {
	problems map[string]catalog.Problem
	tags     []catalog.Tag
}

func (f *fakeReader) GetProblem(_ context.Context, slug string) (catalog.Problem, error) {
	p, ok := f.problems[slug]
	if !ok {
		return catalog.Problem{}, catalog.ErrNotFound
	}
	return p, nil
}

func (f *fakeReader) ListProblems(_ context.Context, _, _ int) ([]catalog.Problem, error) {
	out := make([]catalog.Problem, 0, len(f.problems))
	for _, p := range f.problems {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeReader) ListTags(_ context.Context) ([]catalog.Tag, error) {
	return f.tags, nil
}

func testServerConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{Port: 8080},
		Harvest: config.HarvestConfig{
			Limit:      200,
			DelayMinMs: 0,
			DelayMaxMs: 0,
		},
	}
}

func newTestServer(t *testing.T, runner Runner, reader Reader, cfg config.Config) *Server {
	t.Helper()
	return NewServer(runner, reader, cfg, zap.NewNop())
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeRunner{}, &fakeReader{}, testServerConfig())

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, path)
	}
}

// TestStartHarvestRunsAsynchronously triggers a run over HTTP and polls the
// registry endpoint until the run completes.
func TestStartHarvestRunsAsynchronously(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{result: catalog.Result{
		Success:      true,
		Total:        2,
		SuccessCount: 2,
		Message:      "harvest complete: 2 succeeded, 0 failed",
	}}
	srv := newTestServer(t, runner, &fakeReader{}, testServerConfig())

	body := strings.NewReader(`{"limit": 5, "fetch_details": true}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/harvests", body)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var accepted map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	runID := accepted["run_id"]
	require.NotEmpty(t, runID)

	require.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, "/v1/harvests/"+runID, nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			return false
		}
		var state RunState
		if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
			return false
		}
		return state.Status == RunStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	opts, ok := runner.lastOpts()
	require.True(t, ok)
	require.Equal(t, 5, opts.Limit)
	require.True(t, opts.FetchDetails)
}

func TestStartHarvestUsesConfigDefaults(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{result: catalog.Result{Success: true}}
	srv := newTestServer(t, runner, &fakeReader{}, testServerConfig())

	req := httptest.NewRequest(http.MethodPost, "/v1/harvests", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		_, ok := runner.lastOpts()
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	opts, _ := runner.lastOpts()
	require.Equal(t, 200, opts.Limit)
	require.False(t, opts.FetchDetails)
}

func TestStartHarvestRejectsBadRequests(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeRunner{}, &fakeReader{}, testServerConfig())

	req := httptest.NewRequest(http.MethodPost, "/v1/harvests", strings.NewReader(`{"limit": 0}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/harvests", strings.NewReader(`{not json`))
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetHarvestUnknownRun(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeRunner{}, &fakeReader{}, testServerConfig())

	req := httptest.NewRequest(http.MethodGet, "/v1/harvests/not-a-run", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetProblem(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{problems: map[string]catalog.Problem{
		"two-sum": {ProblemID: 1, Title: "Two Sum", Slug: "two-sum", Difficulty: catalog.DifficultyEasy},
	}}
	srv := newTestServer(t, &fakeRunner{}, reader, testServerConfig())

	req := httptest.NewRequest(http.MethodGet, "/v1/problems/two-sum", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		Problem catalog.Problem `json:"problem"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, int64(1), payload.Problem.ProblemID)

	req = httptest.NewRequest(http.MethodGet, "/v1/problems/missing", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListProblemsValidatesPaging(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeRunner{}, &fakeReader{}, testServerConfig())

	req := httptest.NewRequest(http.MethodGet, "/v1/problems?limit=500", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/problems", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"problems":[]`)
}

func TestListTags(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{tags: []catalog.Tag{{Slug: "array", Name: "数组"}}}
	srv := newTestServer(t, &fakeRunner{}, reader, testServerConfig())

	req := httptest.NewRequest(http.MethodGet, "/v1/tags", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"array"`)
}

// TestAPIKeyMiddleware verifies requests without the configured key are
// rejected and requests carrying it pass.
func TestAPIKeyMiddleware(t *testing.T) {
	t.Parallel()

	cfg := testServerConfig()
	cfg.Auth = config.AuthConfig{Enabled: true, APIKey: "sekrit"}
	srv := newTestServer(t, &fakeRunner{}, &fakeReader{}, cfg)

	req := httptest.NewRequest(http.MethodGet, "/v1/tags", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/tags", nil)
	req.Header.Set("X-API-Key", "sekrit")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDHeaderPropagates(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeRunner{}, &fakeReader{}, testServerConfig())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
