package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clauseguard/clauseguard/internal/model"
)

// UsageRepository appends audit events. Writes are best-effort: callers log
// failures instead of aborting the request.
type UsageRepository struct {
	pool db
}

// NewUsageRepository constructs a repository.
func NewUsageRepository(pool *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{pool: pool}
}

// Record appends one usage event.
func (r *UsageRepository) Record(ctx context.Context, ev model.UsageEvent) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	var metadata *string
	if len(ev.Metadata) > 0 {
		s := string(ev.Metadata)
		metadata = &s
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO usage_events (event_type, job_id, ip_address, user_email, metadata, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, ev.EventType, ev.JobID, ev.IPAddress, ev.UserEmail, metadata, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert usage event: %w", err)
	}
	return nil
}
