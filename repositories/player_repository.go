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
	ErrPlayerNotFound    = errors.New("player not found")
	ErrPlayerTeamInvalid = errors.New("player team conflict or invalid")
)

type PlayerRepository interface {
	Create(ctx context.Context, exec SQLExecutor, player *models.Player) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Player, error)
	GetByIDs(ctx context.Context, exec SQLExecutor, ids []int) ([]*models.Player, error)
	ListByTeam(ctx context.Context, exec SQLExecutor, teamID int) ([]*models.Player, error)
	Update(ctx context.Context, exec SQLExecutor, player *models.Player) error
	// Reassign переводит игрока в другую команду. keepOriginal=true сохраняет
	// прежнюю команду в original_team_id (mêlée-драфт), false очищает её
	// (восстановление после турнира).
	Reassign(ctx context.Context, exec SQLExecutor, playerID, teamID int, keepOriginal bool) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresPlayerRepository struct {
	db *sql.DB
}

func NewPostgresPlayerRepository(db *sql.DB) PlayerRepository {
	return &postgresPlayerRepository{db: db}
}

func (r *postgresPlayerRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const playerColumns = `id, name, team_id, is_captain, rating, original_team_id, created_at`

func (r *postgresPlayerRepository) scanPlayer(rowScanner interface{ Scan(...interface{}) error }) (*models.Player, error) {
	var p models.Player
	err := rowScanner.Scan(&p.ID, &p.Name, &p.TeamID, &p.IsCaptain, &p.Rating, &p.OriginalTeamID, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *postgresPlayerRepository) Create(ctx context.Context, exec SQLExecutor, player *models.Player) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO players (name, team_id, is_captain, rating)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		player.Name, player.TeamID, player.IsCaptain, player.Rating,
	).Scan(&player.ID, &player.CreatedAt)
	return r.handlePlayerError(err)
}

func (r *postgresPlayerRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Player, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + playerColumns + ` FROM players WHERE id = $1`
	return r.scanPlayer(executor.QueryRowContext(ctx, query, id))
}

func (r *postgresPlayerRepository) GetByIDs(ctx context.Context, exec SQLExecutor, ids []int) ([]*models.Player, error) {
	if len(ids) == 0 {
		return []*models.Player{}, nil
	}
	executor := r.getExecutor(exec)
	query := `SELECT ` + playerColumns + ` FROM players WHERE id = ANY($1) ORDER BY id ASC`
	return r.queryPlayers(ctx, executor, query, pq.Array(ids))
}

func (r *postgresPlayerRepository) ListByTeam(ctx context.Context, exec SQLExecutor, teamID int) ([]*models.Player, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + playerColumns + ` FROM players WHERE team_id = $1 ORDER BY id ASC`
	return r.queryPlayers(ctx, executor, query, teamID)
}

func (r *postgresPlayerRepository) queryPlayers(ctx context.Context, executor SQLExecutor, query string, args ...interface{}) ([]*models.Player, error) {
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	players := make([]*models.Player, 0)
	for rows.Next() {
		p, scanErr := r.scanPlayer(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		players = append(players, p)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return players, nil
}

func (r *postgresPlayerRepository) Update(ctx context.Context, exec SQLExecutor, player *models.Player) error {
	executor := r.getExecutor(exec)
	query := `UPDATE players SET name = $1, is_captain = $2, rating = $3 WHERE id = $4`
	result, err := executor.ExecContext(ctx, query, player.Name, player.IsCaptain, player.Rating, player.ID)
	if err != nil {
		return r.handlePlayerError(err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) Reassign(ctx context.Context, exec SQLExecutor, playerID, teamID int, keepOriginal bool) error {
	executor := r.getExecutor(exec)
	var query string
	if keepOriginal {
		// original_team_id выставляется только при первом переводе,
		// чтобы не потерять исходную команду при повторных перетасовках.
		query = `
			UPDATE players
			SET original_team_id = COALESCE(original_team_id, team_id), team_id = $1
			WHERE id = $2`
	} else {
		query = `UPDATE players SET team_id = $1, original_team_id = NULL WHERE id = $2`
	}
	result, err := executor.ExecContext(ctx, query, teamID, playerID)
	if err != nil {
		return r.handlePlayerError(err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `DELETE FROM players WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) handlePlayerError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		if pqErr.Code == "23503" { // foreign_key_violation
			return ErrPlayerTeamInvalid
		}
	}
	return fmt.Errorf("player repository: %w", err)
}
