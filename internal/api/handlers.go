package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clauseguard/clauseguard/internal/model"
	"github.com/clauseguard/clauseguard/internal/queue"
	"github.com/clauseguard/clauseguard/internal/report"
	"github.com/clauseguard/clauseguard/internal/repository"
	"github.com/clauseguard/clauseguard/internal/validate"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type submitResponse struct {
	JobID   string          `json:"jobId"`
	Status  model.JobStatus `json:"status"`
	Message string          `json:"message"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.ContentLength > s.cfg.MaxFileSize {
		respondError(w, http.StatusBadRequest,
			fmt.Sprintf("File size exceeds %dMB limit", s.cfg.MaxFileSize/(1<<20)))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize+1024)
	file, header, err := r.FormFile("contract")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, http.StatusBadRequest,
				fmt.Sprintf("File size exceeds %dMB limit", s.cfg.MaxFileSize/(1<<20)))
			return
		}
		respondError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	if err := s.validator.File(header.Filename, mimeType, header.Size); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !validate.ScanClean(data) {
		respondError(w, http.StatusBadRequest, "File failed security scan")
		return
	}

	jobID := uuid.NewString()
	objectKey := fmt.Sprintf("uploads/%s/%s", jobID, filepath.Base(header.Filename))
	if err := s.uploads.Upload(ctx, objectKey, data, mimeType); err != nil {
		s.logger.Error("store upload failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to store file")
		return
	}
	job := &model.AnalysisJob{
		JobID:         jobID,
		FileName:      header.Filename,
		FileType:      mimeType,
		FileSizeBytes: header.Size,
		ObjectKey:     objectKey,
		IPAddress:     clientIP(r),
	}
	if err := s.analyses.Create(ctx, job); err != nil {
		s.logger.Error("create analysis job failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to store job record")
		return
	}
	if err := s.enqueuer.EnqueueAnalysis(ctx, queue.AnalysisPayload{
		JobID:         jobID,
		ObjectKey:     objectKey,
		FileName:      header.Filename,
		FileType:      mimeType,
		FileSizeBytes: header.Size,
		IPAddress:     job.IPAddress,
	}); err != nil {
		s.logger.Error("enqueue analysis failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to queue job")
		return
	}
	s.recordEvent(r, model.EventContractUpload, jobID, "",
		map[string]any{"fileName": header.Filename, "fileSize": header.Size})

	s.logger.Info("analysis job created", zap.String("job_id", jobID), zap.String("file_name", header.Filename))
	respondJSON(w, http.StatusAccepted, submitResponse{
		JobID:   jobID,
		Status:  model.StatusPending,
		Message: "Contract uploaded successfully and is being analyzed",
	})
}

func (s *Server) handleAnalysisStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	job, err := s.analyses.Get(r.Context(), jobID)
	if err != nil {
		s.respondLookupError(w, err)
		return
	}
	resp := map[string]any{
		"jobId":    job.JobID,
		"status":   job.Status,
		"fileName": job.FileName,
	}
	switch job.Status {
	case model.StatusCompleted:
		resp["summary"] = job.Summary
		resp["riskClauses"] = job.RiskClauses
		resp["completedAt"] = job.CompletedAt
	case model.StatusFailed:
		resp["errorMessage"] = job.ErrorMessage
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	templateType, _ := body["templateType"].(string)
	if templateType == "" {
		respondError(w, http.StatusBadRequest, "Template type is required")
		return
	}
	delete(body, "templateType")

	jobID := uuid.NewString()
	job := &model.GenerationJob{
		JobID:        jobID,
		TemplateType: templateType,
		InputData:    body,
		IPAddress:    clientIP(r),
	}
	if err := s.generations.Create(ctx, job); err != nil {
		s.logger.Error("create generation job failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to store job record")
		return
	}
	if err := s.enqueuer.EnqueueGeneration(ctx, queue.GenerationPayload{
		JobID:        jobID,
		TemplateType: templateType,
		InputData:    body,
		IPAddress:    job.IPAddress,
	}); err != nil {
		s.logger.Error("enqueue generation failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to queue job")
		return
	}
	s.recordEvent(r, model.EventContractGeneration, jobID, "",
		map[string]any{"templateType": templateType})

	s.logger.Info("generation job created", zap.String("job_id", jobID), zap.String("template_type", templateType))
	respondJSON(w, http.StatusAccepted, submitResponse{
		JobID:   jobID,
		Status:  model.StatusPending,
		Message: "Contract generation started",
	})
}

func (s *Server) handleGenerationStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	job, err := s.generations.Get(r.Context(), jobID)
	if err != nil {
		s.respondLookupError(w, err)
		return
	}
	resp := map[string]any{
		"jobId":        job.JobID,
		"status":       job.Status,
		"templateType": job.TemplateType,
	}
	switch job.Status {
	case model.StatusCompleted:
		resp["generatedText"] = job.GeneratedText
		resp["completedAt"] = job.CompletedAt
	case model.StatusFailed:
		resp["errorMessage"] = job.ErrorMessage
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	job, err := s.analyses.Get(r.Context(), jobID)
	if err != nil {
		s.respondLookupError(w, err)
		return
	}
	if job.Status != model.StatusCompleted {
		respondError(w, http.StatusBadRequest, "Analysis not completed yet")
		return
	}
	if len(job.Summary) == 0 || job.RiskClauses == nil {
		respondError(w, http.StatusBadRequest, "Analysis results not available")
		return
	}
	pdfBytes, err := report.Render(job.FileName, job.Summary, job.RiskClauses)
	if err != nil {
		s.logger.Error("render report failed", zap.String("job_id", jobID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to render report")
		return
	}
	s.recordEvent(r, model.EventPDFExport, jobID, "", nil)

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "analysis-"+jobID+".pdf"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdfBytes)
}

func (s *Server) handleEmail(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || !emailPattern.MatchString(body.Email) {
		respondError(w, http.StatusBadRequest, "Valid email is required")
		return
	}
	if err := s.analyses.SetUserEmail(r.Context(), jobID, body.Email); err != nil {
		s.respondLookupError(w, err)
		return
	}
	s.recordEvent(r, model.EventEmailCapture, jobID, body.Email, nil)

	s.logger.Info("email captured", zap.String("job_id", jobID))
	respondJSON(w, http.StatusOK, map[string]string{"message": "Email captured successfully"})
}

func (s *Server) respondLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Job not found")
		return
	}
	s.logger.Error("job lookup failed", zap.Error(err))
	respondError(w, http.StatusInternalServerError, "An unexpected error occurred")
}

// recordEvent appends an audit event; failures only log.
func (s *Server) recordEvent(r *http.Request, eventType, jobID, userEmail string, metadata map[string]any) {
	ev := model.UsageEvent{
		EventType: eventType,
		JobID:     jobID,
		IPAddress: clientIP(r),
		UserEmail: userEmail,
		CreatedAt: time.Now().UTC(),
	}
	if metadata != nil {
		if data, err := json.Marshal(metadata); err == nil {
			ev.Metadata = data
		}
	}
	if err := s.usage.Record(r.Context(), ev); err != nil {
		s.logger.Warn("record usage event failed", zap.String("event", eventType), zap.Error(err))
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
