// Package worker drives queued jobs through the record state machine:
// processing, then completed or failed. Every transition is persisted before
// the next step runs, so a redelivered message resumes cleanly.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/clauseguard/clauseguard/internal/extract"
	"github.com/clauseguard/clauseguard/internal/llm"
	"github.com/clauseguard/clauseguard/internal/model"
	"github.com/clauseguard/clauseguard/internal/queue"
)

// Analysis jobs with less extracted text than this fail before any
// completion call is made.
const minViableTextLength = 50

// AnalysisStore is the slice of the analysis repository the worker needs.
type AnalysisStore interface {
	MarkProcessing(ctx context.Context, jobID string) error
	SaveExtractedText(ctx context.Context, jobID, text string) error
	MarkCompleted(ctx context.Context, jobID string, summary []string, clauses []model.RiskClause) error
	MarkFailed(ctx context.Context, jobID, msg string) error
}

// GenerationStore is the slice of the generation repository the worker needs.
type GenerationStore interface {
	MarkProcessing(ctx context.Context, jobID string) error
	MarkCompleted(ctx context.Context, jobID, generatedText string) error
	MarkFailed(ctx context.Context, jobID, msg string) error
}

// ObjectStore downloads uploaded contract files.
type ObjectStore interface {
	Download(ctx context.Context, objectKey string) ([]byte, error)
}

// Completer is the LLM client surface the worker consumes.
type Completer interface {
	AnalyzeContract(ctx context.Context, contractText string) (*llm.Analysis, error)
	GenerateContract(ctx context.Context, templateData map[string]any) (string, error)
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	analyses    AnalysisStore
	generations GenerationStore
	store       ObjectStore
	completer   Completer
	logger      *zap.Logger
}

// NewProcessor constructs a worker processor.
func NewProcessor(analyses AnalysisStore, generations GenerationStore, store ObjectStore, completer Completer, logger *zap.Logger) *Processor {
	return &Processor{
		analyses:    analyses,
		generations: generations,
		store:       store,
		completer:   completer,
		logger:      logger,
	}
}

// Handler registers the job handlers.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskContractAnalyze, p.handleAnalyze)
	mux.HandleFunc(queue.TaskContractGenerate, p.handleGenerate)
	return mux
}

func (p *Processor) handleAnalyze(ctx context.Context, task *asynq.Task) error {
	var payload queue.AnalysisPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	log := p.logger.With(zap.String("job_id", payload.JobID))

	// fail writes the terminal state, then re-raises. Domain and
	// content-shape failures skip the queue-level retry: re-running them
	// would reproduce the same outcome.
	fail := func(err error, terminal bool) error {
		log.Error("analysis job failed", zap.Error(err))
		if markErr := p.analyses.MarkFailed(ctx, payload.JobID, err.Error()); markErr != nil {
			log.Error("failed to persist job failure", zap.Error(markErr))
		}
		if terminal {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	if err := p.analyses.MarkProcessing(ctx, payload.JobID); err != nil {
		return fail(err, false)
	}
	data, err := p.store.Download(ctx, payload.ObjectKey)
	if err != nil {
		return fail(fmt.Errorf("download upload: %w", err), false)
	}
	text, err := extract.Text(data, payload.FileType)
	if err != nil {
		return fail(fmt.Errorf("extract text: %w", err), true)
	}
	if len(strings.TrimSpace(text)) < minViableTextLength {
		return fail(errors.New("insufficient text extracted from file"), true)
	}
	if err := p.analyses.SaveExtractedText(ctx, payload.JobID, text); err != nil {
		return fail(err, false)
	}
	analysis, err := p.completer.AnalyzeContract(ctx, text)
	if err != nil {
		var parseErr *llm.ParseError
		return fail(fmt.Errorf("analyze contract: %w", err), errors.As(err, &parseErr))
	}
	if err := p.analyses.MarkCompleted(ctx, payload.JobID, analysis.Summary, analysis.RiskClauses); err != nil {
		return fail(err, false)
	}
	log.Info("analysis job completed",
		zap.Int("summary_items", len(analysis.Summary)),
		zap.Int("risk_clauses", len(analysis.RiskClauses)))
	return nil
}

func (p *Processor) handleGenerate(ctx context.Context, task *asynq.Task) error {
	var payload queue.GenerationPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	log := p.logger.With(zap.String("job_id", payload.JobID))

	fail := func(err error) error {
		log.Error("generation job failed", zap.Error(err))
		if markErr := p.generations.MarkFailed(ctx, payload.JobID, err.Error()); markErr != nil {
			log.Error("failed to persist job failure", zap.Error(markErr))
		}
		return err
	}

	if err := p.generations.MarkProcessing(ctx, payload.JobID); err != nil {
		return fail(err)
	}
	input := map[string]any{"templateType": payload.TemplateType}
	for k, v := range payload.InputData {
		input[k] = v
	}
	generated, err := p.completer.GenerateContract(ctx, input)
	if err != nil {
		return fail(fmt.Errorf("generate contract: %w", err))
	}
	if err := p.generations.MarkCompleted(ctx, payload.JobID, generated); err != nil {
		return fail(err)
	}
	log.Info("generation job completed", zap.String("template_type", payload.TemplateType))
	return nil
}
