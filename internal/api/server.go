// Package api exposes the HTTP surface: job submission, status polling, PDF
// export and email capture.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/clauseguard/clauseguard/internal/config"
	"github.com/clauseguard/clauseguard/internal/model"
	"github.com/clauseguard/clauseguard/internal/queue"
	"github.com/clauseguard/clauseguard/internal/validate"
)

// AnalysisJobs is the analysis repository surface the API consumes.
type AnalysisJobs interface {
	Create(ctx context.Context, job *model.AnalysisJob) error
	Get(ctx context.Context, jobID string) (*model.AnalysisJob, error)
	SetUserEmail(ctx context.Context, jobID, email string) error
}

// GenerationJobs is the generation repository surface the API consumes.
type GenerationJobs interface {
	Create(ctx context.Context, job *model.GenerationJob) error
	Get(ctx context.Context, jobID string) (*model.GenerationJob, error)
}

// UsageLog records audit events; failures are logged, never surfaced.
type UsageLog interface {
	Record(ctx context.Context, ev model.UsageEvent) error
}

// Uploads stores uploaded contract files.
type Uploads interface {
	Upload(ctx context.Context, objectKey string, data []byte, contentType string) error
}

// Enqueuer hands accepted jobs to the work queue.
type Enqueuer interface {
	EnqueueAnalysis(ctx context.Context, payload queue.AnalysisPayload) error
	EnqueueGeneration(ctx context.Context, payload queue.GenerationPayload) error
}

// Server wires the HTTP routes to their collaborators.
type Server struct {
	cfg         *config.Config
	analyses    AnalysisJobs
	generations GenerationJobs
	usage       UsageLog
	uploads     Uploads
	enqueuer    Enqueuer
	validator   *validate.Validator
	logger      *zap.Logger
	server      *http.Server
	once        sync.Once
}

// New constructs a Server.
func New(cfg *config.Config, analyses AnalysisJobs, generations GenerationJobs, usage UsageLog, uploads Uploads, enqueuer Enqueuer, logger *zap.Logger) *Server {
	return &Server{
		cfg:         cfg,
		analyses:    analyses,
		generations: generations,
		usage:       usage,
		uploads:     uploads,
		enqueuer:    enqueuer,
		validator: &validate.Validator{
			MaxFileSize:  cfg.MaxFileSize,
			AllowedTypes: cfg.AllowedTypes,
		},
		logger: logger,
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}))
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Route("/contracts", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/analyze/{jobId}", s.handleAnalysisStatus)
		r.Post("/generate", s.handleGenerate)
		r.Get("/generate/{jobId}", s.handleGenerationStatus)
		r.Post("/{jobId}/export", s.handleExport)
		r.Post("/{jobId}/email", s.handleEmail)
	})
	return r
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.server = &http.Server{
			Addr:    s.cfg.Address,
			Handler: s.Router(),
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	s.logger.Info("api listening", zap.String("address", s.cfg.Address))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("latency", time.Since(start)))
	})
}

type errorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	label := "Error"
	if status >= http.StatusInternalServerError {
		label = "Internal Server Error"
	}
	respondJSON(w, status, errorResponse{Error: label, Message: msg, StatusCode: status})
}
