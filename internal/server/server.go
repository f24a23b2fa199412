// Package server exposes the capture pipeline over HTTP: health, artifact
// listing, on-demand batch refreshes with job tracking, and single date
// captures.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/minsuoh/hipass-capture/internal/artifact"
	"github.com/minsuoh/hipass-capture/internal/capture"
	"github.com/minsuoh/hipass-capture/internal/jobs"
	"github.com/minsuoh/hipass-capture/internal/pipeline"
)

// Runner is the slice of the pipeline the HTTP layer drives.
type Runner interface {
	RunRange(ctx context.Context, days int, progress capture.ProgressFunc) ([]capture.Outcome, error)
	RunDate(ctx context.Context, date capture.Date) ([]capture.Outcome, error)
	Busy() bool
}

// Server wires the HTTP API to the runner, job registry, and artifact store.
type Server struct {
	runner   Runner
	registry *jobs.Registry
	store    *artifact.Store

	days        int
	listWindow  int
	logFilePath string
	log         *zap.Logger
}

// Options carries the server's tunables.
type Options struct {
	// Days is the default refresh window.
	Days int
	// LogFilePath is tailed by the logs endpoint; empty disables it.
	LogFilePath string
}

func New(runner Runner, registry *jobs.Registry, store *artifact.Store, opts Options, log *zap.Logger) *Server {
	if opts.Days <= 0 {
		opts.Days = 7
	}
	return &Server{
		runner:      runner,
		registry:    registry,
		store:       store,
		days:        opts.Days,
		listWindow:  opts.Days,
		logFilePath: opts.LogFilePath,
		log:         log.Named("server"),
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.health)
	r.GET("/api/screenshots", s.listScreenshots)
	r.POST("/api/refresh", s.refresh)
	r.GET("/api/status/:id", s.status)
	r.POST("/api/capture/:date", s.captureDate)
	r.GET("/api/logs", s.logs)
	r.Static("/screenshots", s.store.Dir())
	return r
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "busy": s.runner.Busy()})
}

func (s *Server) listScreenshots(c *gin.Context) {
	entries := s.store.ListWindow(time.Now(), s.listWindow)
	c.JSON(http.StatusOK, gin.H{
		"screenshots": entries,
		"outcomes":    s.registry.Outcomes(),
	})
}

// refresh starts a background batch over the default window and returns a
// job id the caller can poll. One batch at a time.
func (s *Server) refresh(c *gin.Context) {
	if s.runner.Busy() {
		c.JSON(http.StatusConflict, gin.H{"error": pipeline.ErrBusy.Error()})
		return
	}

	id := s.registry.Create(s.days)
	go func() {
		// The batch outlives the HTTP request on purpose.
		outcomes, err := s.runner.RunRange(context.Background(), s.days, func(done, total int, date string) {
			s.registry.Progress(id, done, total, date)
		})
		if err != nil {
			s.log.Warn("background refresh refused", zap.String("job_id", id), zap.Error(err))
		} else {
			s.registry.SetOutcomes(outcomes)
		}
		s.registry.Finish(id)
	}()

	c.JSON(http.StatusAccepted, gin.H{"job_id": id})
}

func (s *Server) status(c *gin.Context) {
	job, ok := s.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown job id"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// captureDate runs one date synchronously and returns its outcome.
func (s *Server) captureDate(c *gin.Context) {
	date, err := capture.ParseDate(c.Param("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	outcomes, err := s.runner.RunDate(c.Request.Context(), date)
	if err != nil {
		if errors.Is(err, pipeline.ErrBusy) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcomes": outcomes})
}

const logTailLines = 200

func (s *Server) logs(c *gin.Context) {
	if s.logFilePath == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "file logging is disabled"})
		return
	}
	data, err := os.ReadFile(s.logFilePath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > logTailLines {
		lines = lines[len(lines)-logTailLines:]
	}
	c.JSON(http.StatusOK, gin.H{"lines": lines})
}
