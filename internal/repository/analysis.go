// Package repository wraps all SQL used by the API and worker. Status
// transitions are single guarded UPDATEs so redelivered queue messages can
// repeat them safely and terminal rows are never rewritten.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clauseguard/clauseguard/internal/model"
)

// ErrNotFound is returned when no job exists for the identifier.
var ErrNotFound = errors.New("job not found")

// db is the slice of pgxpool.Pool the repositories use.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AnalysisRepository persists contract analysis jobs.
type AnalysisRepository struct {
	pool db
}

// NewAnalysisRepository constructs a repository.
func NewAnalysisRepository(pool *pgxpool.Pool) *AnalysisRepository {
	return &AnalysisRepository{pool: pool}
}

// Create inserts a pending analysis job before any work is queued.
func (r *AnalysisRepository) Create(ctx context.Context, job *model.AnalysisJob) error {
	now := time.Now().UTC()
	job.Status = model.StatusPending
	job.CreatedAt = now
	job.UpdatedAt = now
	_, err := r.pool.Exec(ctx, `
		INSERT INTO contract_analyses (job_id, file_name, file_type, file_size_bytes, object_key, status, ip_address, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, job.JobID, job.FileName, job.FileType, job.FileSizeBytes, job.ObjectKey, job.Status, job.IPAddress, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert analysis job: %w", err)
	}
	return nil
}

// Get returns an analysis job by id.
func (r *AnalysisRepository) Get(ctx context.Context, jobID string) (*model.AnalysisJob, error) {
	var (
		job         model.AnalysisJob
		summary     []byte
		riskClauses []byte
		extracted   sql.NullString
		errorMsg    sql.NullString
		userEmail   sql.NullString
		ipAddress   sql.NullString
		completedAt sql.NullTime
	)
	row := r.pool.QueryRow(ctx, `
		SELECT job_id, file_name, file_type, file_size_bytes, object_key, extracted_text, status,
		       summary, risk_clauses, error_message, ip_address, user_email, created_at, updated_at, completed_at
		FROM contract_analyses WHERE job_id=$1
	`, jobID)
	err := row.Scan(&job.JobID, &job.FileName, &job.FileType, &job.FileSizeBytes, &job.ObjectKey,
		&extracted, &job.Status, &summary, &riskClauses, &errorMsg, &ipAddress, &userEmail,
		&job.CreatedAt, &job.UpdatedAt, &completedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select analysis job: %w", err)
	}
	job.ExtractedText = extracted.String
	job.IPAddress = ipAddress.String
	if errorMsg.Valid {
		msg := errorMsg.String
		job.ErrorMessage = &msg
	}
	if userEmail.Valid {
		email := userEmail.String
		job.UserEmail = &email
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	if len(summary) > 0 {
		if err := json.Unmarshal(summary, &job.Summary); err != nil {
			return nil, fmt.Errorf("decode summary: %w", err)
		}
	}
	if len(riskClauses) > 0 {
		if err := json.Unmarshal(riskClauses, &job.RiskClauses); err != nil {
			return nil, fmt.Errorf("decode risk clauses: %w", err)
		}
	}
	return &job, nil
}

// MarkProcessing moves a job into processing. Repeating the transition, or
// applying it to a job that already reached a terminal state, is a no-op.
func (r *AnalysisRepository) MarkProcessing(ctx context.Context, jobID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE contract_analyses SET status=$1, updated_at=$2
		WHERE job_id=$3 AND status IN ($4,$5)
	`, model.StatusProcessing, time.Now().UTC(), jobID, model.StatusPending, model.StatusProcessing)
	if err != nil {
		return fmt.Errorf("mark analysis processing: %w", err)
	}
	return nil
}

// SaveExtractedText stores the extracted contract text before the LLM call.
func (r *AnalysisRepository) SaveExtractedText(ctx context.Context, jobID, text string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE contract_analyses SET extracted_text=$1, updated_at=$2 WHERE job_id=$3
	`, text, time.Now().UTC(), jobID)
	if err != nil {
		return fmt.Errorf("save extracted text: %w", err)
	}
	return nil
}

// MarkCompleted stores the analysis result and the completion timestamp.
// Already-terminal rows are left untouched.
func (r *AnalysisRepository) MarkCompleted(ctx context.Context, jobID string, summary []string, clauses []model.RiskClause) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	clausesJSON, err := json.Marshal(clauses)
	if err != nil {
		return fmt.Errorf("encode risk clauses: %w", err)
	}
	now := time.Now().UTC()
	_, err = r.pool.Exec(ctx, `
		UPDATE contract_analyses
		SET status=$1, summary=$2, risk_clauses=$3, completed_at=$4, updated_at=$4
		WHERE job_id=$5 AND status NOT IN ($6,$7)
	`, model.StatusCompleted, string(summaryJSON), string(clausesJSON), now, jobID,
		model.StatusCompleted, model.StatusFailed)
	if err != nil {
		return fmt.Errorf("mark analysis completed: %w", err)
	}
	return nil
}

// MarkFailed records the failure message and the completion timestamp.
// Already-terminal rows are left untouched.
func (r *AnalysisRepository) MarkFailed(ctx context.Context, jobID, msg string) error {
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		UPDATE contract_analyses
		SET status=$1, error_message=$2, completed_at=$3, updated_at=$3
		WHERE job_id=$4 AND status NOT IN ($5,$6)
	`, model.StatusFailed, msg, now, jobID, model.StatusCompleted, model.StatusFailed)
	if err != nil {
		return fmt.Errorf("mark analysis failed: %w", err)
	}
	return nil
}

// SetUserEmail captures the requester's email after completion; it does not
// affect the job lifecycle.
func (r *AnalysisRepository) SetUserEmail(ctx context.Context, jobID, email string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE contract_analyses SET user_email=$1, updated_at=$2 WHERE job_id=$3
	`, email, time.Now().UTC(), jobID)
	if err != nil {
		return fmt.Errorf("set user email: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
