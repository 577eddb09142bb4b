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
	ErrTournamentNotFound      = errors.New("tournament not found")
	ErrTournamentNameConflict  = errors.New("tournament name already exists")
	ErrTournamentCourtConflict = errors.New("court is already assigned to this tournament")
)

type TournamentRepository interface {
	Create(ctx context.Context, exec SQLExecutor, tournament *models.Tournament) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	List(ctx context.Context, exec SQLExecutor, activeOnly bool) ([]*models.Tournament, error)
	Update(ctx context.Context, exec SQLExecutor, tournament *models.Tournament) error
	SetCurrentRound(ctx context.Context, exec SQLExecutor, id, roundNumber int) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error

	// ListCourtIDs возвращает площадки, закреплённые за турниром.
	// Пустой срез означает отсутствие ограничения.
	ListCourtIDs(ctx context.Context, exec SQLExecutor, tournamentID int) ([]int, error)
	AddCourt(ctx context.Context, exec SQLExecutor, tournamentID, courtID int) error
	RemoveCourt(ctx context.Context, exec SQLExecutor, tournamentID, courtID int) error
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const tournamentColumns = `id, name, description, format, start_date, end_date,
	is_active, is_archived, current_round_number, created_at, updated_at`

func (r *postgresTournamentRepository) scanTournament(rowScanner interface{ Scan(...interface{}) error }) (*models.Tournament, error) {
	var t models.Tournament
	err := rowScanner.Scan(
		&t.ID, &t.Name, &t.Description, &t.Format, &t.StartDate, &t.EndDate,
		&t.IsActive, &t.IsArchived, &t.CurrentRoundNumber, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *postgresTournamentRepository) Create(ctx context.Context, exec SQLExecutor, tournament *models.Tournament) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO tournaments (name, description, format, start_date, end_date, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, current_round_number, created_at, updated_at`

	err := executor.QueryRowContext(ctx, query,
		tournament.Name, tournament.Description, tournament.Format,
		tournament.StartDate, tournament.EndDate, tournament.IsActive,
	).Scan(&tournament.ID, &tournament.CurrentRoundNumber, &tournament.CreatedAt, &tournament.UpdatedAt)
	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE id = $1`
	return r.scanTournament(executor.QueryRowContext(ctx, query, id))
}

func (r *postgresTournamentRepository) List(ctx context.Context, exec SQLExecutor, activeOnly bool) ([]*models.Tournament, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + tournamentColumns + ` FROM tournaments`
	args := []interface{}{}
	if activeOnly {
		query += ` WHERE is_active = TRUE AND is_archived = FALSE`
	}
	query += ` ORDER BY start_date DESC, id DESC`

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tournaments := make([]*models.Tournament, 0)
	for rows.Next() {
		t, scanErr := r.scanTournament(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		tournaments = append(tournaments, t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) Update(ctx context.Context, exec SQLExecutor, tournament *models.Tournament) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE tournaments SET
			name = $1, description = $2, format = $3, start_date = $4, end_date = $5,
			is_active = $6, is_archived = $7, updated_at = NOW()
		WHERE id = $8`

	result, err := executor.ExecContext(ctx, query,
		tournament.Name, tournament.Description, tournament.Format,
		tournament.StartDate, tournament.EndDate,
		tournament.IsActive, tournament.IsArchived, tournament.ID,
	)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) SetCurrentRound(ctx context.Context, exec SQLExecutor, id, roundNumber int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournaments SET current_round_number = $1, updated_at = NOW() WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, roundNumber, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `DELETE FROM tournaments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) ListCourtIDs(ctx context.Context, exec SQLExecutor, tournamentID int) ([]int, error) {
	executor := r.getExecutor(exec)
	query := `SELECT court_id FROM tournament_courts WHERE tournament_id = $1 ORDER BY court_id ASC`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, scanErr
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *postgresTournamentRepository) AddCourt(ctx context.Context, exec SQLExecutor, tournamentID, courtID int) error {
	executor := r.getExecutor(exec)
	query := `INSERT INTO tournament_courts (tournament_id, court_id) VALUES ($1, $2)`
	_, err := executor.ExecContext(ctx, query, tournamentID, courtID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" {
				return ErrTournamentCourtConflict
			}
			if pqErr.Code == "23503" {
				return ErrCourtNotFound
			}
		}
		return fmt.Errorf("failed to assign court to tournament: %w", err)
	}
	return nil
}

func (r *postgresTournamentRepository) RemoveCourt(ctx context.Context, exec SQLExecutor, tournamentID, courtID int) error {
	executor := r.getExecutor(exec)
	query := `DELETE FROM tournament_courts WHERE tournament_id = $1 AND court_id = $2`
	result, err := executor.ExecContext(ctx, query, tournamentID, courtID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrCourtNotFound)
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		if pqErr.Code == "23505" && pqErr.Constraint == "tournaments_name_key" {
			return ErrTournamentNameConflict
		}
	}
	return fmt.Errorf("tournament repository: %w", err)
}
