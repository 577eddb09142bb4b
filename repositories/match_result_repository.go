package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/pfc-club/petanque-platform/models"
)

var (
	ErrMatchResultNotFound = errors.New("match result not found")
	ErrMatchResultConflict = errors.New("match already has a submitted result")
)

type MatchResultRepository interface {
	Create(ctx context.Context, exec SQLExecutor, result *models.MatchResult) error
	GetByMatch(ctx context.Context, exec SQLExecutor, matchID int) (*models.MatchResult, error)
	SetValidated(ctx context.Context, exec SQLExecutor, id int, validatedByID int) error
	SetEvidenceKey(ctx context.Context, exec SQLExecutor, id int, key string) error
	DeleteByMatch(ctx context.Context, exec SQLExecutor, matchID int) error
}

type postgresMatchResultRepository struct {
	db *sql.DB
}

func NewPostgresMatchResultRepository(db *sql.DB) MatchResultRepository {
	return &postgresMatchResultRepository{db: db}
}

func (r *postgresMatchResultRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresMatchResultRepository) Create(ctx context.Context, exec SQLExecutor, result *models.MatchResult) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO match_results (match_id, submitted_by_id, evidence_key, notes)
		VALUES ($1, $2, $3, $4)
		RETURNING id, submitted_at`

	err := executor.QueryRowContext(ctx, query,
		result.MatchID, result.SubmittedByID, result.EvidenceKey, result.Notes,
	).Scan(&result.ID, &result.SubmittedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" && pqErr.Constraint == "match_results_match_id_key" {
				return ErrMatchResultConflict
			}
		}
		return fmt.Errorf("failed to create match result: %w", err)
	}
	return nil
}

func (r *postgresMatchResultRepository) GetByMatch(ctx context.Context, exec SQLExecutor, matchID int) (*models.MatchResult, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, match_id, submitted_by_id, validated_by_id, evidence_key, notes, submitted_at, validated_at
		FROM match_results
		WHERE match_id = $1`

	var res models.MatchResult
	err := executor.QueryRowContext(ctx, query, matchID).Scan(
		&res.ID, &res.MatchID, &res.SubmittedByID, &res.ValidatedByID,
		&res.EvidenceKey, &res.Notes, &res.SubmittedAt, &res.ValidatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchResultNotFound
		}
		return nil, err
	}
	return &res, nil
}

func (r *postgresMatchResultRepository) SetValidated(ctx context.Context, exec SQLExecutor, id int, validatedByID int) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE match_results
		SET validated_by_id = $1, validated_at = NOW()
		WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, validatedByID, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMatchResultNotFound)
}

func (r *postgresMatchResultRepository) SetEvidenceKey(ctx context.Context, exec SQLExecutor, id int, key string) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE match_results
		SET evidence_key = $1
		WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, key, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMatchResultNotFound)
}

func (r *postgresMatchResultRepository) DeleteByMatch(ctx context.Context, exec SQLExecutor, matchID int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `DELETE FROM match_results WHERE match_id = $1`, matchID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMatchResultNotFound)
}
