package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/minsuoh/hipass-capture/internal/artifact"
	"github.com/minsuoh/hipass-capture/internal/capture"
	"github.com/minsuoh/hipass-capture/internal/jobs"
	"github.com/minsuoh/hipass-capture/internal/pipeline"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubRunner struct {
	busy     bool
	outcomes []capture.Outcome
	err      error

	ranDays int
	ranDate string
}

func (s *stubRunner) RunRange(ctx context.Context, days int, progress capture.ProgressFunc) ([]capture.Outcome, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.ranDays = days
	if progress != nil {
		progress(len(s.outcomes), days, "2026-08-30")
	}
	return s.outcomes, nil
}

func (s *stubRunner) RunDate(ctx context.Context, date capture.Date) ([]capture.Outcome, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.ranDate = date.Display()
	return s.outcomes, nil
}

func (s *stubRunner) Busy() bool { return s.busy }

type fixture struct {
	runner   *stubRunner
	registry *jobs.Registry
	router   *gin.Engine
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	store, err := artifact.NewStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	runner := &stubRunner{}
	registry := jobs.NewRegistry()
	srv := New(runner, registry, store, opts, zap.NewNop())
	return &fixture{runner: runner, registry: registry, router: srv.Router()}
}

func (f *fixture) do(method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	f.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	f := newFixture(t, Options{})

	w := f.do(http.MethodGet, "/health")

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["busy"])
}

func TestListScreenshots(t *testing.T) {
	f := newFixture(t, Options{Days: 3})

	w := f.do(http.MethodGet, "/api/screenshots")

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Screenshots []artifact.Entry  `json:"screenshots"`
		Outcomes    []capture.Outcome `json:"outcomes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Screenshots, 3)
	assert.Empty(t, body.Outcomes)
}

func TestRefresh(t *testing.T) {
	t.Run("starts a background job", func(t *testing.T) {
		f := newFixture(t, Options{Days: 2})
		f.runner.outcomes = []capture.Outcome{
			{Date: "2026-08-30", Status: capture.StatusSuccess},
			{Date: "2026-08-29", Status: capture.StatusEmpty},
		}

		w := f.do(http.MethodPost, "/api/refresh")

		require.Equal(t, http.StatusAccepted, w.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		id := body["job_id"]
		require.NotEmpty(t, id)

		require.Eventually(t, func() bool {
			job, ok := f.registry.Get(id)
			return ok && job.Finished
		}, 5*time.Second, 10*time.Millisecond)

		assert.Equal(t, 2, f.runner.ranDays)
		assert.Len(t, f.registry.Outcomes(), 2)
	})

	t.Run("refuses while a run is in flight", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.runner.busy = true

		w := f.do(http.MethodPost, "/api/refresh")

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestStatus(t *testing.T) {
	f := newFixture(t, Options{})
	id := f.registry.Create(7)
	f.registry.Progress(id, 3, 7, "2026-08-28")

	t.Run("known job", func(t *testing.T) {
		w := f.do(http.MethodGet, "/api/status/"+id)

		require.Equal(t, http.StatusOK, w.Code)
		var job jobs.Job
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
		assert.Equal(t, 3, job.Done)
		assert.Equal(t, "2026-08-28", job.CurrentDate)
	})

	t.Run("unknown job", func(t *testing.T) {
		w := f.do(http.MethodGet, "/api/status/nope")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCaptureDate(t *testing.T) {
	t.Run("runs the requested date", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.runner.outcomes = []capture.Outcome{{Date: "2026-08-30", Status: capture.StatusSuccess}}

		w := f.do(http.MethodPost, "/api/capture/2026-08-30")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2026-08-30", f.runner.ranDate)
	})

	t.Run("rejects malformed dates", func(t *testing.T) {
		f := newFixture(t, Options{})
		w := f.do(http.MethodPost, "/api/capture/30-08-2026")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("refuses while busy", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.runner.err = pipeline.ErrBusy

		w := f.do(http.MethodPost, "/api/capture/2026-08-30")
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestLogs(t *testing.T) {
	t.Run("disabled without a log file", func(t *testing.T) {
		f := newFixture(t, Options{})
		w := f.do(http.MethodGet, "/api/logs")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("returns the tail of the log file", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "app.log")
		require.NoError(t, os.WriteFile(logFile, []byte("first\nsecond\nthird\n"), 0o644))

		f := newFixture(t, Options{LogFilePath: logFile})
		w := f.do(http.MethodGet, "/api/logs")

		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Lines []string `json:"lines"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, []string{"first", "second", "third"}, body.Lines)
	})
}
