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
	ErrStageNotFound = errors.New("stage not found")
	ErrRoundNotFound = errors.New("round not found")
	ErrRoundConflict = errors.New("round number already exists for this tournament")
)

type RoundRepository interface {
	CreateStage(ctx context.Context, exec SQLExecutor, stage *models.Stage) error
	GetStageByID(ctx context.Context, exec SQLExecutor, id int) (*models.Stage, error)
	ListStagesByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Stage, error)
	SetStageComplete(ctx context.Context, exec SQLExecutor, id int, complete bool) error

	CreateRound(ctx context.Context, exec SQLExecutor, round *models.Round) error
	GetRoundByID(ctx context.Context, exec SQLExecutor, id int) (*models.Round, error)
	GetLatestRound(ctx context.Context, exec SQLExecutor, tournamentID int) (*models.Round, error)
	ListRoundsByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Round, error)
	SetRoundCompleted(ctx context.Context, exec SQLExecutor, id int, completed bool) error
}

type postgresRoundRepository struct {
	db *sql.DB
}

func NewPostgresRoundRepository(db *sql.DB) RoundRepository {
	return &postgresRoundRepository{db: db}
}

func (r *postgresRoundRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresRoundRepository) CreateStage(ctx context.Context, exec SQLExecutor, stage *models.Stage) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO stages (tournament_id, stage_number, name, format, num_rounds, matches_per_team)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := executor.QueryRowContext(ctx, query,
		stage.TournamentID, stage.StageNumber, stage.Name, stage.Format, stage.NumRounds, stage.MatchesPerTeam,
	).Scan(&stage.ID)
	if err != nil {
		return fmt.Errorf("failed to create stage: %w", err)
	}
	return nil
}

func (r *postgresRoundRepository) scanStage(rowScanner interface{ Scan(...interface{}) error }) (*models.Stage, error) {
	var s models.Stage
	err := rowScanner.Scan(&s.ID, &s.TournamentID, &s.StageNumber, &s.Name, &s.Format, &s.NumRounds, &s.MatchesPerTeam, &s.IsComplete)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStageNotFound
		}
		return nil, err
	}
	return &s, nil
}

const stageColumns = `id, tournament_id, stage_number, name, format, num_rounds, matches_per_team, is_complete`

func (r *postgresRoundRepository) GetStageByID(ctx context.Context, exec SQLExecutor, id int) (*models.Stage, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + stageColumns + ` FROM stages WHERE id = $1`
	return r.scanStage(executor.QueryRowContext(ctx, query, id))
}

func (r *postgresRoundRepository) ListStagesByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Stage, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + stageColumns + ` FROM stages WHERE tournament_id = $1 ORDER BY stage_number ASC`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stages := make([]*models.Stage, 0)
	for rows.Next() {
		s, scanErr := r.scanStage(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		stages = append(stages, s)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return stages, nil
}

func (r *postgresRoundRepository) SetStageComplete(ctx context.Context, exec SQLExecutor, id int, complete bool) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `UPDATE stages SET is_complete = $1 WHERE id = $2`, complete, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrStageNotFound)
}

const roundColumns = `id, tournament_id, stage_id, number, is_completed, created_at`

func (r *postgresRoundRepository) scanRound(rowScanner interface{ Scan(...interface{}) error }) (*models.Round, error) {
	var rd models.Round
	err := rowScanner.Scan(&rd.ID, &rd.TournamentID, &rd.StageID, &rd.Number, &rd.IsCompleted, &rd.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoundNotFound
		}
		return nil, err
	}
	return &rd, nil
}

func (r *postgresRoundRepository) CreateRound(ctx context.Context, exec SQLExecutor, round *models.Round) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO rounds (tournament_id, stage_id, number)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query, round.TournamentID, round.StageID, round.Number).
		Scan(&round.ID, &round.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" && pqErr.Constraint == "rounds_tournament_id_number_key" {
				return ErrRoundConflict
			}
		}
		return fmt.Errorf("failed to create round: %w", err)
	}
	return nil
}

func (r *postgresRoundRepository) GetRoundByID(ctx context.Context, exec SQLExecutor, id int) (*models.Round, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE id = $1`
	return r.scanRound(executor.QueryRowContext(ctx, query, id))
}

func (r *postgresRoundRepository) GetLatestRound(ctx context.Context, exec SQLExecutor, tournamentID int) (*models.Round, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE tournament_id = $1 ORDER BY number DESC LIMIT 1`
	return r.scanRound(executor.QueryRowContext(ctx, query, tournamentID))
}

func (r *postgresRoundRepository) ListRoundsByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Round, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE tournament_id = $1 ORDER BY number ASC`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rounds := make([]*models.Round, 0)
	for rows.Next() {
		rd, scanErr := r.scanRound(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		rounds = append(rounds, rd)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return rounds, nil
}

func (r *postgresRoundRepository) SetRoundCompleted(ctx context.Context, exec SQLExecutor, id int, completed bool) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `UPDATE rounds SET is_completed = $1 WHERE id = $2`, completed, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrRoundNotFound)
}
