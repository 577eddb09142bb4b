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
	ErrActivationConflict = errors.New("team has already activated this match")
	ErrActivationNotFound = errors.New("match activation not found")
)

type MatchActivationRepository interface {
	Create(ctx context.Context, exec SQLExecutor, activation *models.MatchActivation) error
	// ListByMatch возвращает активации по возрастанию activated_at:
	// первая запись всегда инициатор.
	ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.MatchActivation, error)
	CreatePlayers(ctx context.Context, exec SQLExecutor, players []*models.MatchPlayer) error
	ListPlayersByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.MatchPlayer, error)
}

type postgresMatchActivationRepository struct {
	db *sql.DB
}

func NewPostgresMatchActivationRepository(db *sql.DB) MatchActivationRepository {
	return &postgresMatchActivationRepository{db: db}
}

func (r *postgresMatchActivationRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresMatchActivationRepository) Create(ctx context.Context, exec SQLExecutor, activation *models.MatchActivation) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO match_activations (match_id, team_id, pin_used, is_initiator)
		VALUES ($1, $2, $3, $4)
		RETURNING id, activated_at`

	err := executor.QueryRowContext(ctx, query,
		activation.MatchID, activation.TeamID, activation.PinUsed, activation.IsInitiator,
	).Scan(&activation.ID, &activation.ActivatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" && pqErr.Constraint == "match_activations_match_id_team_id_key" {
				return ErrActivationConflict
			}
		}
		return fmt.Errorf("failed to create match activation: %w", err)
	}
	return nil
}

func (r *postgresMatchActivationRepository) ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.MatchActivation, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, match_id, team_id, pin_used, is_initiator, activated_at
		FROM match_activations
		WHERE match_id = $1
		ORDER BY activated_at ASC, id ASC`

	rows, err := executor.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	activations := make([]*models.MatchActivation, 0, 2)
	for rows.Next() {
		var a models.MatchActivation
		if scanErr := rows.Scan(&a.ID, &a.MatchID, &a.TeamID, &a.PinUsed, &a.IsInitiator, &a.ActivatedAt); scanErr != nil {
			return nil, scanErr
		}
		activations = append(activations, &a)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return activations, nil
}

func (r *postgresMatchActivationRepository) CreatePlayers(ctx context.Context, exec SQLExecutor, players []*models.MatchPlayer) error {
	if len(players) == 0 {
		return nil
	}
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO match_players (match_id, player_id, team_id)
		VALUES ($1, $2, $3)
		RETURNING id`

	for _, mp := range players {
		if err := executor.QueryRowContext(ctx, query, mp.MatchID, mp.PlayerID, mp.TeamID).Scan(&mp.ID); err != nil {
			return fmt.Errorf("failed to create match player (player %d): %w", mp.PlayerID, err)
		}
	}
	return nil
}

func (r *postgresMatchActivationRepository) ListPlayersByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.MatchPlayer, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, match_id, player_id, team_id
		FROM match_players
		WHERE match_id = $1
		ORDER BY id ASC`

	rows, err := executor.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	players := make([]*models.MatchPlayer, 0)
	for rows.Next() {
		var mp models.MatchPlayer
		if scanErr := rows.Scan(&mp.ID, &mp.MatchID, &mp.PlayerID, &mp.TeamID); scanErr != nil {
			return nil, scanErr
		}
		players = append(players, &mp)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return players, nil
}
