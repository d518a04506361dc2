package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/resume-optimizer/internal/types"
)

// SaveOptimization inserts o and fills in its ID and CreatedAt.
func (db *DB) SaveOptimization(ctx context.Context, o *Optimization) error {
	result, err := json.Marshal(o.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	resumePII, err := json.Marshal(nonNilCounts(o.ResumePII))
	if err != nil {
		return fmt.Errorf("failed to marshal resume pii counts: %w", err)
	}
	jobPII, err := json.Marshal(nonNilCounts(o.JobPII))
	if err != nil {
		return fmt.Errorf("failed to marshal job pii counts: %w", err)
	}

	err = db.pool.QueryRow(ctx,
		`INSERT INTO optimizations (request_id, masked_resume, masked_job, result, match_score,
		     attempt_count, resume_pii, job_pii, embedding_model, generation_model, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id, created_at`,
		o.RequestID, string(o.MaskedResume), string(o.MaskedJob), result, float64(o.Result.Score),
		o.Result.AttemptCount, resumePII, jobPII, o.EmbeddingModel, o.GenerationModel, o.DurationMs,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save optimization: %w", err)
	}
	return nil
}

// GetOptimization loads an optimization by id. It returns nil, nil when none exists.
func (db *DB) GetOptimization(ctx context.Context, id uuid.UUID) (*Optimization, error) {
	var (
		o                         Optimization
		maskedResume, maskedJob   string
		result, resumePII, jobPII []byte
	)
	err := db.pool.QueryRow(ctx,
		`SELECT id, request_id, masked_resume, masked_job, result, resume_pii, job_pii,
		        embedding_model, generation_model, duration_ms, created_at
		 FROM optimizations WHERE id = $1`,
		id,
	).Scan(&o.ID, &o.RequestID, &maskedResume, &maskedJob, &result, &resumePII, &jobPII,
		&o.EmbeddingModel, &o.GenerationModel, &o.DurationMs, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get optimization %s: %w", id, err)
	}

	o.MaskedResume = types.MaskedText(maskedResume)
	o.MaskedJob = types.MaskedText(maskedJob)
	if err := json.Unmarshal(result, &o.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	if err := json.Unmarshal(resumePII, &o.ResumePII); err != nil {
		return nil, fmt.Errorf("failed to unmarshal resume pii counts: %w", err)
	}
	if err := json.Unmarshal(jobPII, &o.JobPII); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job pii counts: %w", err)
	}
	return &o, nil
}
