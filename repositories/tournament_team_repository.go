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
	ErrTournamentTeamNotFound = errors.New("tournament team not found")
	ErrTournamentTeamConflict = errors.New("team is already registered for this tournament")
)

type TournamentTeamRepository interface {
	Create(ctx context.Context, exec SQLExecutor, tt *models.TournamentTeam) error
	GetByTournamentAndTeam(ctx context.Context, exec SQLExecutor, tournamentID, teamID int) (*models.TournamentTeam, error)
	// ListByTournament возвращает участия с загруженной картой OpponentsPlayed.
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, activeOnly bool) ([]*models.TournamentTeam, error)
	UpdateStats(ctx context.Context, exec SQLExecutor, tt *models.TournamentTeam) error
	// AddOpponents регистрирует сыгранную встречу в обе стороны.
	AddOpponents(ctx context.Context, exec SQLExecutor, tournamentID, team1ID, team2ID int) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error
	DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error
}

type postgresTournamentTeamRepository struct {
	db *sql.DB
}

func NewPostgresTournamentTeamRepository(db *sql.DB) TournamentTeamRepository {
	return &postgresTournamentTeamRepository{db: db}
}

func (r *postgresTournamentTeamRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const tournamentTeamColumns = `id, tournament_id, team_id, is_active, current_stage_number,
	seeding_position, swiss_points, buchholz_score, received_bye_in_round, created_at`

func (r *postgresTournamentTeamRepository) scanTournamentTeam(rowScanner interface{ Scan(...interface{}) error }) (*models.TournamentTeam, error) {
	var tt models.TournamentTeam
	err := rowScanner.Scan(
		&tt.ID, &tt.TournamentID, &tt.TeamID, &tt.IsActive, &tt.CurrentStageNumber,
		&tt.SeedingPosition, &tt.SwissPoints, &tt.BuchholzScore, &tt.ReceivedByeInRound, &tt.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentTeamNotFound
		}
		return nil, err
	}
	return &tt, nil
}

func (r *postgresTournamentTeamRepository) Create(ctx context.Context, exec SQLExecutor, tt *models.TournamentTeam) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO tournament_teams (tournament_id, team_id, is_active, current_stage_number, seeding_position)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, swiss_points, buchholz_score, created_at`

	err := executor.QueryRowContext(ctx, query,
		tt.TournamentID, tt.TeamID, tt.IsActive, tt.CurrentStageNumber, tt.SeedingPosition,
	).Scan(&tt.ID, &tt.SwissPoints, &tt.BuchholzScore, &tt.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" && pqErr.Constraint == "tournament_teams_tournament_id_team_id_key" {
				return ErrTournamentTeamConflict
			}
			if pqErr.Code == "23503" {
				return ErrTeamNotFound
			}
		}
		return fmt.Errorf("failed to create tournament team: %w", err)
	}
	return nil
}

func (r *postgresTournamentTeamRepository) GetByTournamentAndTeam(ctx context.Context, exec SQLExecutor, tournamentID, teamID int) (*models.TournamentTeam, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + tournamentTeamColumns + ` FROM tournament_teams WHERE tournament_id = $1 AND team_id = $2`
	tt, err := r.scanTournamentTeam(executor.QueryRowContext(ctx, query, tournamentID, teamID))
	if err != nil {
		return nil, err
	}
	if err := r.loadOpponents(ctx, executor, []*models.TournamentTeam{tt}); err != nil {
		return nil, err
	}
	return tt, nil
}

func (r *postgresTournamentTeamRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, activeOnly bool) ([]*models.TournamentTeam, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + tournamentTeamColumns + ` FROM tournament_teams WHERE tournament_id = $1`
	if activeOnly {
		query += ` AND is_active = TRUE`
	}
	query += ` ORDER BY swiss_points DESC, buchholz_score DESC, seeding_position ASC NULLS LAST, id ASC`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teams := make([]*models.TournamentTeam, 0)
	for rows.Next() {
		tt, scanErr := r.scanTournamentTeam(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		teams = append(teams, tt)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadOpponents(ctx, executor, teams); err != nil {
		return nil, err
	}
	return teams, nil
}

// loadOpponents заполняет OpponentsPlayed одним запросом на весь список.
func (r *postgresTournamentTeamRepository) loadOpponents(ctx context.Context, executor SQLExecutor, teams []*models.TournamentTeam) error {
	if len(teams) == 0 {
		return nil
	}
	ids := make([]int, 0, len(teams))
	byID := make(map[int]*models.TournamentTeam, len(teams))
	for _, tt := range teams {
		ids = append(ids, tt.ID)
		byID[tt.ID] = tt
		tt.OpponentsPlayed = make(map[int]int)
	}

	query := `
		SELECT tournament_team_id, opponent_team_id, COUNT(*)
		FROM tournament_team_opponents
		WHERE tournament_team_id = ANY($1)
		GROUP BY tournament_team_id, opponent_team_id`

	rows, err := executor.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load opponents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ttID, opponentID, meetings int
		if scanErr := rows.Scan(&ttID, &opponentID, &meetings); scanErr != nil {
			return scanErr
		}
		if tt, ok := byID[ttID]; ok {
			tt.OpponentsPlayed[opponentID] = meetings
		}
	}
	return rows.Err()
}

func (r *postgresTournamentTeamRepository) UpdateStats(ctx context.Context, exec SQLExecutor, tt *models.TournamentTeam) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE tournament_teams SET
			is_active = $1, current_stage_number = $2, seeding_position = $3,
			swiss_points = $4, buchholz_score = $5, received_bye_in_round = $6
		WHERE id = $7`

	result, err := executor.ExecContext(ctx, query,
		tt.IsActive, tt.CurrentStageNumber, tt.SeedingPosition,
		tt.SwissPoints, tt.BuchholzScore, tt.ReceivedByeInRound, tt.ID,
	)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrTournamentTeamNotFound)
}

func (r *postgresTournamentTeamRepository) AddOpponents(ctx context.Context, exec SQLExecutor, tournamentID, team1ID, team2ID int) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO tournament_team_opponents (tournament_team_id, opponent_team_id)
		SELECT tt.id, $3 FROM tournament_teams tt WHERE tt.tournament_id = $1 AND tt.team_id = $2`

	if _, err := executor.ExecContext(ctx, query, tournamentID, team1ID, team2ID); err != nil {
		return fmt.Errorf("failed to record opponent for team %d: %w", team1ID, err)
	}
	if _, err := executor.ExecContext(ctx, query, tournamentID, team2ID, team1ID); err != nil {
		return fmt.Errorf("failed to record opponent for team %d: %w", team2ID, err)
	}
	return nil
}

func (r *postgresTournamentTeamRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `DELETE FROM tournament_teams WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrTournamentTeamNotFound)
}

func (r *postgresTournamentTeamRepository) DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx, `DELETE FROM tournament_teams WHERE tournament_id = $1`, tournamentID)
	return err
}
