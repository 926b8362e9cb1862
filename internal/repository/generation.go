package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clauseguard/clauseguard/internal/model"
)

// GenerationRepository persists contract generation jobs.
type GenerationRepository struct {
	pool db
}

// NewGenerationRepository constructs a repository.
func NewGenerationRepository(pool *pgxpool.Pool) *GenerationRepository {
	return &GenerationRepository{pool: pool}
}

// Create inserts a pending generation job.
func (r *GenerationRepository) Create(ctx context.Context, job *model.GenerationJob) error {
	inputJSON, err := json.Marshal(job.InputData)
	if err != nil {
		return fmt.Errorf("encode input data: %w", err)
	}
	now := time.Now().UTC()
	job.Status = model.StatusPending
	job.CreatedAt = now
	job.UpdatedAt = now
	_, err = r.pool.Exec(ctx, `
		INSERT INTO generated_contracts (job_id, template_type, input_data, status, ip_address, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, job.JobID, job.TemplateType, string(inputJSON), job.Status, job.IPAddress, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert generation job: %w", err)
	}
	return nil
}

// Get returns a generation job by id.
func (r *GenerationRepository) Get(ctx context.Context, jobID string) (*model.GenerationJob, error) {
	var (
		job         model.GenerationJob
		inputData   []byte
		generated   sql.NullString
		errorMsg    sql.NullString
		ipAddress   sql.NullString
		completedAt sql.NullTime
	)
	row := r.pool.QueryRow(ctx, `
		SELECT job_id, template_type, input_data, generated_text, status, error_message, ip_address, created_at, updated_at, completed_at
		FROM generated_contracts WHERE job_id=$1
	`, jobID)
	err := row.Scan(&job.JobID, &job.TemplateType, &inputData, &generated, &job.Status,
		&errorMsg, &ipAddress, &job.CreatedAt, &job.UpdatedAt, &completedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select generation job: %w", err)
	}
	job.GeneratedText = generated.String
	job.IPAddress = ipAddress.String
	if errorMsg.Valid {
		msg := errorMsg.String
		job.ErrorMessage = &msg
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	if len(inputData) > 0 {
		if err := json.Unmarshal(inputData, &job.InputData); err != nil {
			return nil, fmt.Errorf("decode input data: %w", err)
		}
	}
	return &job, nil
}

// MarkProcessing moves a job into processing; idempotent like the analysis
// counterpart.
func (r *GenerationRepository) MarkProcessing(ctx context.Context, jobID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE generated_contracts SET status=$1, updated_at=$2
		WHERE job_id=$3 AND status IN ($4,$5)
	`, model.StatusProcessing, time.Now().UTC(), jobID, model.StatusPending, model.StatusProcessing)
	if err != nil {
		return fmt.Errorf("mark generation processing: %w", err)
	}
	return nil
}

// MarkCompleted stores the generated text and completion timestamp.
func (r *GenerationRepository) MarkCompleted(ctx context.Context, jobID, generatedText string) error {
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		UPDATE generated_contracts
		SET status=$1, generated_text=$2, completed_at=$3, updated_at=$3
		WHERE job_id=$4 AND status NOT IN ($5,$6)
	`, model.StatusCompleted, generatedText, now, jobID, model.StatusCompleted, model.StatusFailed)
	if err != nil {
		return fmt.Errorf("mark generation completed: %w", err)
	}
	return nil
}

// MarkFailed records the failure message.
func (r *GenerationRepository) MarkFailed(ctx context.Context, jobID, msg string) error {
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		UPDATE generated_contracts
		SET status=$1, error_message=$2, completed_at=$3, updated_at=$3
		WHERE job_id=$4 AND status NOT IN ($5,$6)
	`, model.StatusFailed, msg, now, jobID, model.StatusCompleted, model.StatusFailed)
	if err != nil {
		return fmt.Errorf("mark generation failed: %w", err)
	}
	return nil
}
