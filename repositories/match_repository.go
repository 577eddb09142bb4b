package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/pfc-club/petanque-platform/models"
)

var (
	ErrMatchNotFound          = errors.New("match not found")
	ErrMatchTeamInvalid       = errors.New("match team conflict or invalid")
	ErrMatchTournamentInvalid = errors.New("match tournament conflict or invalid")
	ErrMatchCourtInvalid      = errors.New("match court conflict or invalid")
	ErrMatchSameTeams         = errors.New("match teams must differ")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	// GetByIDForUpdate блокирует строку матча до конца транзакции. Все
	// переходы состояния обязаны читать матч через этот метод.
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, status *models.MatchStatus) ([]*models.Match, error)
	ListByRound(ctx context.Context, exec SQLExecutor, roundID int) ([]*models.Match, error)
	// ListWaitingForCourt возвращает матчи pending_verification с
	// waiting_for_court по возрастанию created_at, блокируя строки.
	ListWaitingForCourt(ctx context.Context, exec SQLExecutor) ([]*models.Match, error)
	// CourtIDsHeldByActive возвращает площадки, занятые другими активными
	// матчами (исключая excludeMatchID).
	CourtIDsHeldByActive(ctx context.Context, exec SQLExecutor, excludeMatchID int) (map[int]bool, error)
	Update(ctx context.Context, exec SQLExecutor, match *models.Match) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `id, tournament_id, stage_id, round_id, team1_id, team2_id,
	team1_score, team2_score, status, court_id, proposed_court_id, waiting_for_court,
	scheduled_time, start_time, end_time, duration_seconds, winner_id, loser_id,
	created_at, updated_at`

func (r *postgresMatchRepository) scanMatch(rowScanner interface{ Scan(...interface{}) error }) (*models.Match, error) {
	var m models.Match
	err := rowScanner.Scan(
		&m.ID, &m.TournamentID, &m.StageID, &m.RoundID, &m.Team1ID, &m.Team2ID,
		&m.Team1Score, &m.Team2Score, &m.Status, &m.CourtID, &m.ProposedCourtID, &m.WaitingForCourt,
		&m.ScheduledTime, &m.StartTime, &m.EndTime, &m.DurationSeconds, &m.WinnerID, &m.LoserID,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	if match.Team1ID == match.Team2ID {
		return ErrMatchSameTeams
	}
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO matches
			(tournament_id, stage_id, round_id, team1_id, team2_id, status, scheduled_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err := executor.QueryRowContext(ctx, query,
		match.TournamentID, match.StageID, match.RoundID,
		match.Team1ID, match.Team2ID, match.Status, match.ScheduledTime,
	).Scan(&match.ID, &match.CreatedAt, &match.UpdatedAt)
	return r.handleMatchError(err)
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	return r.scanMatch(executor.QueryRowContext(ctx, query, id))
}

func (r *postgresMatchRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1 FOR UPDATE`
	return r.scanMatch(executor.QueryRowContext(ctx, query, id))
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, statusFilter *models.MatchStatus) ([]*models.Match, error) {
	executor := r.getExecutor(exec)

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + matchColumns + ` FROM matches WHERE tournament_id = $1`)
	args := []interface{}{tournamentID}
	placeholderIndex := 2

	if statusFilter != nil {
		queryBuilder.WriteString(" AND status = $")
		queryBuilder.WriteString(strconv.Itoa(placeholderIndex))
		args = append(args, *statusFilter)
		placeholderIndex++
	}
	queryBuilder.WriteString(" ORDER BY created_at DESC, id DESC")

	return r.queryMatches(ctx, executor, queryBuilder.String(), args...)
}

func (r *postgresMatchRepository) ListByRound(ctx context.Context, exec SQLExecutor, roundID int) ([]*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + matchColumns + ` FROM matches WHERE round_id = $1 ORDER BY id ASC`
	return r.queryMatches(ctx, executor, query, roundID)
}

func (r *postgresMatchRepository) ListWaitingForCourt(ctx context.Context, exec SQLExecutor) ([]*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT ` + matchColumns + `
		FROM matches
		WHERE status = $1 AND waiting_for_court = TRUE
		ORDER BY created_at ASC, id ASC
		FOR UPDATE`
	return r.queryMatches(ctx, executor, query, models.MatchStatusPendingVerification)
}

func (r *postgresMatchRepository) CourtIDsHeldByActive(ctx context.Context, exec SQLExecutor, excludeMatchID int) (map[int]bool, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT court_id FROM matches
		WHERE status = $1 AND court_id IS NOT NULL AND id <> $2`
	rows, err := executor.QueryContext(ctx, query, models.MatchStatusActive, excludeMatchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	held := make(map[int]bool)
	for rows.Next() {
		var courtID int
		if scanErr := rows.Scan(&courtID); scanErr != nil {
			return nil, scanErr
		}
		held[courtID] = true
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return held, nil
}

func (r *postgresMatchRepository) queryMatches(ctx context.Context, executor SQLExecutor, query string, args ...interface{}) ([]*models.Match, error) {
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m, scanErr := r.scanMatch(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		matches = append(matches, m)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return matches, nil
}

func (r *postgresMatchRepository) Update(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE matches SET
			team1_score = $1, team2_score = $2, status = $3,
			court_id = $4, proposed_court_id = $5, waiting_for_court = $6,
			start_time = $7, end_time = $8, duration_seconds = $9,
			winner_id = $10, loser_id = $11, updated_at = NOW()
		WHERE id = $12`

	result, err := executor.ExecContext(ctx, query,
		match.Team1Score, match.Team2Score, match.Status,
		match.CourtID, match.ProposedCourtID, match.WaitingForCourt,
		match.StartTime, match.EndTime, match.DurationSeconds,
		match.WinnerID, match.LoserID, match.ID,
	)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		if pqErr.Code == "23503" { // foreign_key_violation
			switch pqErr.Constraint {
			case "matches_tournament_id_fkey":
				return ErrMatchTournamentInvalid
			case "matches_team1_id_fkey", "matches_team2_id_fkey":
				return ErrMatchTeamInvalid
			case "matches_court_id_fkey", "matches_proposed_court_id_fkey":
				return ErrMatchCourtInvalid
			}
		}
		if pqErr.Code == "23514" && pqErr.Constraint == "chk_match_teams_differ" {
			return ErrMatchSameTeams
		}
	}
	return fmt.Errorf("match repository: %w", err)
}
