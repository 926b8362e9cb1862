package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clauseguard/clauseguard/internal/api"
	"github.com/clauseguard/clauseguard/internal/config"
	"github.com/clauseguard/clauseguard/internal/model"
	"github.com/clauseguard/clauseguard/internal/queue"
	"github.com/clauseguard/clauseguard/internal/repository"
)

type fakeAnalyses struct {
	jobs   map[string]*model.AnalysisJob
	emails map[string]string
}

func newFakeAnalyses() *fakeAnalyses {
	return &fakeAnalyses{jobs: map[string]*model.AnalysisJob{}, emails: map[string]string{}}
}

func (f *fakeAnalyses) Create(_ context.Context, job *model.AnalysisJob) error {
	job.Status = model.StatusPending
	f.jobs[job.JobID] = job
	return nil
}

func (f *fakeAnalyses) Get(_ context.Context, jobID string) (*model.AnalysisJob, error) {
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return job, nil
}

func (f *fakeAnalyses) SetUserEmail(_ context.Context, jobID, email string) error {
	if _, ok := f.jobs[jobID]; !ok {
		return repository.ErrNotFound
	}
	f.emails[jobID] = email
	return nil
}

type fakeGenerations struct {
	jobs map[string]*model.GenerationJob
}

func newFakeGenerations() *fakeGenerations {
	return &fakeGenerations{jobs: map[string]*model.GenerationJob{}}
}

func (f *fakeGenerations) Create(_ context.Context, job *model.GenerationJob) error {
	job.Status = model.StatusPending
	f.jobs[job.JobID] = job
	return nil
}

func (f *fakeGenerations) Get(_ context.Context, jobID string) (*model.GenerationJob, error) {
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return job, nil
}

type fakeUsage struct {
	events []model.UsageEvent
}

func (f *fakeUsage) Record(_ context.Context, ev model.UsageEvent) error {
	f.events = append(f.events, ev)
	return nil
}

type fakeUploads struct {
	objects map[string][]byte
}

func (f *fakeUploads) Upload(_ context.Context, objectKey string, data []byte, _ string) error {
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[objectKey] = data
	return nil
}

type fakeEnqueuer struct {
	analysis   []queue.AnalysisPayload
	generation []queue.GenerationPayload
}

func (f *fakeEnqueuer) EnqueueAnalysis(_ context.Context, payload queue.AnalysisPayload) error {
	f.analysis = append(f.analysis, payload)
	return nil
}

func (f *fakeEnqueuer) EnqueueGeneration(_ context.Context, payload queue.GenerationPayload) error {
	f.generation = append(f.generation, payload)
	return nil
}

type testEnv struct {
	analyses    *fakeAnalyses
	generations *fakeGenerations
	usage       *fakeUsage
	uploads     *fakeUploads
	enqueuer    *fakeEnqueuer
	router      http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.Config{
		MaxFileSize: 10 << 20,
		AllowedTypes: []string{
			"application/pdf",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"application/msword",
			"text/plain",
		},
	}
	env := &testEnv{
		analyses:    newFakeAnalyses(),
		generations: newFakeGenerations(),
		usage:       &fakeUsage{},
		uploads:     &fakeUploads{},
		enqueuer:    &fakeEnqueuer{},
	}
	srv := api.New(cfg, env.analyses, env.generations, env.usage, env.uploads, env.enqueuer, zap.NewNop())
	env.router = srv.Router()
	return env
}

func multipartUpload(t *testing.T, fieldName, fileName, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, fieldName, fileName))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func decodeBody(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	return body
}

func TestAnalyzeUploadAccepted(t *testing.T) {
	env := newTestEnv(t)
	contract := strings.Repeat("The contractor agrees to deliver weekly. ", 20)
	body, contentType := multipartUpload(t, "contract", "agreement.txt", "text/plain", []byte(contract))

	req := httptest.NewRequest(http.MethodPost, "/contracts/analyze", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusAccepted, resp.Code)
	payload := decodeBody(t, resp)
	jobID, _ := payload["jobId"].(string)
	require.NotEmpty(t, jobID)
	assert.Equal(t, "pending", payload["status"])

	job, ok := env.analyses.jobs[jobID]
	require.True(t, ok)
	assert.Equal(t, model.StatusPending, job.Status)
	assert.Equal(t, "agreement.txt", job.FileName)

	require.Len(t, env.enqueuer.analysis, 1)
	assert.Equal(t, jobID, env.enqueuer.analysis[0].JobID)
	assert.Equal(t, job.ObjectKey, env.enqueuer.analysis[0].ObjectKey)

	require.Len(t, env.usage.events, 1)
	assert.Equal(t, model.EventContractUpload, env.usage.events[0].EventType)
}

func TestAnalyzeUploadMissingFile(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/contracts/analyze", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=none")
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, decodeBody(t, resp)["message"], "No file uploaded")
}

func TestAnalyzeUploadTooLarge(t *testing.T) {
	env := newTestEnv(t)
	oversized := bytes.Repeat([]byte("a"), 15<<20)
	body, contentType := multipartUpload(t, "contract", "big.txt", "text/plain", oversized)

	req := httptest.NewRequest(http.MethodPost, "/contracts/analyze", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, decodeBody(t, resp)["message"], "10MB limit")
	assert.Empty(t, env.analyses.jobs)
	assert.Empty(t, env.enqueuer.analysis)
}

func TestAnalyzeUploadRejectsInvalidType(t *testing.T) {
	env := newTestEnv(t)
	body, contentType := multipartUpload(t, "contract", "image.png", "image/png", []byte("not a contract"))

	req := httptest.NewRequest(http.MethodPost, "/contracts/analyze", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, decodeBody(t, resp)["message"], "invalid file type")
	assert.Empty(t, env.analyses.jobs)
}

func TestAnalysisStatusNotFound(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/contracts/analyze/unknown", nil)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "Job not found", decodeBody(t, resp)["message"])
}

func TestAnalysisStatusPendingHidesResults(t *testing.T) {
	env := newTestEnv(t)
	env.analyses.jobs["j1"] = &model.AnalysisJob{
		JobID:    "j1",
		FileName: "a.pdf",
		Status:   model.StatusPending,
	}
	req := httptest.NewRequest(http.MethodGet, "/contracts/analyze/j1", nil)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	payload := decodeBody(t, resp)
	assert.Equal(t, "pending", payload["status"])
	assert.NotContains(t, payload, "summary")
	assert.NotContains(t, payload, "riskClauses")
	assert.NotContains(t, payload, "errorMessage")
}

func TestAnalysisStatusCompletedIncludesResults(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()
	env.analyses.jobs["j1"] = &model.AnalysisJob{
		JobID:       "j1",
		FileName:    "a.pdf",
		Status:      model.StatusCompleted,
		Summary:     []string{"one", "two"},
		RiskClauses: []model.RiskClause{{Text: "clause", RiskLevel: model.RiskHigh, Explanation: "why"}},
		CompletedAt: &now,
	}
	req := httptest.NewRequest(http.MethodGet, "/contracts/analyze/j1", nil)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	payload := decodeBody(t, resp)
	assert.Equal(t, "completed", payload["status"])
	assert.Len(t, payload["summary"], 2)
	assert.Contains(t, payload, "completedAt")
}

func TestAnalysisStatusFailedIncludesError(t *testing.T) {
	env := newTestEnv(t)
	msg := "insufficient text extracted from file"
	env.analyses.jobs["j1"] = &model.AnalysisJob{
		JobID:        "j1",
		Status:       model.StatusFailed,
		ErrorMessage: &msg,
	}
	req := httptest.NewRequest(http.MethodGet, "/contracts/analyze/j1", nil)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)

	payload := decodeBody(t, resp)
	assert.Equal(t, "failed", payload["status"])
	assert.Equal(t, msg, payload["errorMessage"])
	assert.NotContains(t, payload, "summary")
}

func TestGenerateRequiresTemplateType(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/contracts/generate",
		strings.NewReader(`{"clientName":"Acme"}`))
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "Template type is required", decodeBody(t, resp)["message"])
	assert.Empty(t, env.generations.jobs)
}

func TestGenerateAccepted(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/contracts/generate",
		strings.NewReader(`{"templateType":"freelance","clientName":"Acme"}`))
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusAccepted, resp.Code)
	payload := decodeBody(t, resp)
	jobID, _ := payload["jobId"].(string)
	require.NotEmpty(t, jobID)

	job := env.generations.jobs[jobID]
	require.NotNil(t, job)
	assert.Equal(t, "freelance", job.TemplateType)
	assert.Equal(t, "Acme", job.InputData["clientName"])

	require.Len(t, env.enqueuer.generation, 1)
	assert.Equal(t, jobID, env.enqueuer.generation[0].JobID)
}

func TestExportRequiresCompletedJob(t *testing.T) {
	env := newTestEnv(t)
	env.analyses.jobs["j1"] = &model.AnalysisJob{JobID: "j1", Status: model.StatusPending}

	req := httptest.NewRequest(http.MethodPost, "/contracts/j1/export", nil)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "Analysis not completed yet", decodeBody(t, resp)["message"])
}

func TestExportCompletedJobReturnsPDF(t *testing.T) {
	env := newTestEnv(t)
	env.analyses.jobs["j1"] = &model.AnalysisJob{
		JobID:       "j1",
		FileName:    "agreement.pdf",
		Status:      model.StatusCompleted,
		Summary:     []string{"one"},
		RiskClauses: []model.RiskClause{{Text: "clause", RiskLevel: model.RiskLow, Explanation: "fine"}},
	}
	req := httptest.NewRequest(http.MethodPost, "/contracts/j1/export", nil)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/pdf", resp.Header().Get("Content-Type"))
	assert.Contains(t, resp.Header().Get("Content-Disposition"), "analysis-j1.pdf")
	assert.True(t, bytes.HasPrefix(resp.Body.Bytes(), []byte("%PDF")))
}

func TestExportUnknownJob(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/contracts/missing/export", nil)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestEmailCapture(t *testing.T) {
	env := newTestEnv(t)
	env.analyses.jobs["j1"] = &model.AnalysisJob{JobID: "j1", Status: model.StatusCompleted}

	req := httptest.NewRequest(http.MethodPost, "/contracts/j1/email",
		strings.NewReader(`{"email":"dev@example.com"}`))
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "dev@example.com", env.analyses.emails["j1"])
}

func TestEmailCaptureRejectsInvalidAddress(t *testing.T) {
	env := newTestEnv(t)
	env.analyses.jobs["j1"] = &model.AnalysisJob{JobID: "j1"}

	for _, email := range []string{"", "not-an-email", "missing@dot", "a b@example.com"} {
		req := httptest.NewRequest(http.MethodPost, "/contracts/j1/email",
			strings.NewReader(fmt.Sprintf(`{"email":%q}`, email)))
		resp := httptest.NewRecorder()
		env.router.ServeHTTP(resp, req)
		assert.Equal(t, http.StatusBadRequest, resp.Code, "email %q", email)
	}
	assert.Empty(t, env.analyses.emails)
}

func TestEmailCaptureUnknownJob(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/contracts/missing/email",
		strings.NewReader(`{"email":"dev@example.com"}`))
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusNotFound, resp.Code)
}
