// Package model contains simple struct definitions shared across packages.
package model

import (
	"encoding/json"
	"time"
)

// JobStatus describes the lifecycle of an analysis or generation job.
// Transitions only move forward: pending -> processing -> completed|failed.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// RiskLevel classifies a flagged clause.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// NormalizeRiskLevel maps unknown or empty upstream values to RiskMedium so a
// clause is never left without a level.
func NormalizeRiskLevel(v string) RiskLevel {
	switch RiskLevel(v) {
	case RiskLow, RiskMedium, RiskHigh:
		return RiskLevel(v)
	default:
		return RiskMedium
	}
}

// RiskClause is one flagged clause in an analysis result.
type RiskClause struct {
	Text        string    `json:"text"`
	RiskLevel   RiskLevel `json:"riskLevel"`
	Explanation string    `json:"explanation"`
	Section     string    `json:"section,omitempty"`
}

// AnalysisJob is a row in the contract_analyses table.
type AnalysisJob struct {
	JobID         string       `json:"jobId"`
	FileName      string       `json:"fileName"`
	FileType      string       `json:"fileType"`
	FileSizeBytes int64        `json:"fileSizeBytes"`
	ObjectKey     string       `json:"-"`
	ExtractedText string       `json:"-"`
	Status        JobStatus    `json:"status"`
	Summary       []string     `json:"summary,omitempty"`
	RiskClauses   []RiskClause `json:"riskClauses,omitempty"`
	ErrorMessage  *string      `json:"errorMessage,omitempty"`
	IPAddress     string       `json:"-"`
	UserEmail     *string      `json:"-"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
	CompletedAt   *time.Time   `json:"completedAt,omitempty"`
}

// GenerationJob is a row in the generated_contracts table.
type GenerationJob struct {
	JobID         string         `json:"jobId"`
	TemplateType  string         `json:"templateType"`
	InputData     map[string]any `json:"-"`
	GeneratedText string         `json:"generatedText,omitempty"`
	Status        JobStatus      `json:"status"`
	ErrorMessage  *string        `json:"errorMessage,omitempty"`
	IPAddress     string         `json:"-"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	CompletedAt   *time.Time     `json:"completedAt,omitempty"`
}

// Usage event types recorded alongside the job lifecycle.
const (
	EventContractUpload     = "contract_upload"
	EventContractGeneration = "contract_generation"
	EventPDFExport          = "pdf_export"
	EventEmailCapture       = "email_capture"
)

// UsageEvent is an observability-only audit record; the core logic never
// reads it back.
type UsageEvent struct {
	EventType string          `json:"eventType"`
	JobID     string          `json:"jobId,omitempty"`
	IPAddress string          `json:"ipAddress,omitempty"`
	UserEmail string          `json:"userEmail,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}
