package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/pfc-club/petanque-platform/live"
	"github.com/pfc-club/petanque-platform/models"
	"github.com/pfc-club/petanque-platform/pairing"
	"github.com/pfc-club/petanque-platform/repositories"
)

// TournamentService управляет турнирами, регистрацией команд и
// генерацией туров по выбранному формату.
type TournamentService interface {
	CreateTournament(ctx context.Context, tournament *models.Tournament) (*models.Tournament, error)
	GetTournament(ctx context.Context, id int) (*models.Tournament, error)
	ListTournaments(ctx context.Context, activeOnly bool) ([]*models.Tournament, error)
	UpdateTournament(ctx context.Context, tournament *models.Tournament) (*models.Tournament, error)
	ArchiveTournament(ctx context.Context, id int) error
	DeleteTournament(ctx context.Context, id int) error

	RegisterTeam(ctx context.Context, tournamentID, teamID int, seeding *int) (*models.TournamentTeam, error)
	WithdrawTeam(ctx context.Context, tournamentID, teamID int) error

	AssignCourt(ctx context.Context, tournamentID, courtID int) error
	UnassignCourt(ctx context.Context, tournamentID, courtID int) error

	CreateStage(ctx context.Context, stage *models.Stage) (*models.Stage, error)
	ListStages(ctx context.Context, tournamentID int) ([]*models.Stage, error)

	// GenerateRound создаёт следующий тур: пары по формату турнира (или
	// текущего этапа), bye при нечётном числе команд, матчи в pending.
	GenerateRound(ctx context.Context, tournamentID int) (*models.Round, []*models.Match, error)
	ListRounds(ctx context.Context, tournamentID int) ([]*models.Round, error)

	// Standings возвращает таблицу турнира в каноническом порядке
	// с подгруженными составами команд.
	Standings(ctx context.Context, tournamentID int) ([]*models.TournamentTeam, error)
}

type tournamentService struct {
	txRunner           repositories.TxRunner
	tournamentRepo     repositories.TournamentRepository
	tournamentTeamRepo repositories.TournamentTeamRepository
	teamRepo           repositories.TeamRepository
	playerRepo         repositories.PlayerRepository
	roundRepo          repositories.RoundRepository
	matchRepo          repositories.MatchRepository
	hub                *live.Hub
	log                *slog.Logger
}

func NewTournamentService(
	txRunner repositories.TxRunner,
	tournamentRepo repositories.TournamentRepository,
	tournamentTeamRepo repositories.TournamentTeamRepository,
	teamRepo repositories.TeamRepository,
	playerRepo repositories.PlayerRepository,
	roundRepo repositories.RoundRepository,
	matchRepo repositories.MatchRepository,
	hub *live.Hub,
	log *slog.Logger,
) TournamentService {
	return &tournamentService{
		txRunner:           txRunner,
		tournamentRepo:     tournamentRepo,
		tournamentTeamRepo: tournamentTeamRepo,
		teamRepo:           teamRepo,
		playerRepo:         playerRepo,
		roundRepo:          roundRepo,
		matchRepo:          matchRepo,
		hub:                hub,
		log:                log,
	}
}

func (s *tournamentService) CreateTournament(ctx context.Context, tournament *models.Tournament) (*models.Tournament, error) {
	if tournament.Name == "" {
		return nil, fmt.Errorf("%w: tournament name is required", ErrValidationFailed)
	}
	if !tournament.Format.Valid() {
		return nil, fmt.Errorf("%w: unknown tournament format %q", ErrValidationFailed, tournament.Format)
	}
	if !tournament.EndDate.IsZero() && tournament.EndDate.Before(tournament.StartDate) {
		return nil, fmt.Errorf("%w: end date must be after start date", ErrValidationFailed)
	}
	if err := s.tournamentRepo.Create(ctx, nil, tournament); err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}
	return tournament, nil
}

func (s *tournamentService) GetTournament(ctx context.Context, id int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	return tournament, nil
}

func (s *tournamentService) ListTournaments(ctx context.Context, activeOnly bool) ([]*models.Tournament, error) {
	tournaments, err := s.tournamentRepo.List(ctx, nil, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	return tournaments, nil
}

func (s *tournamentService) UpdateTournament(ctx context.Context, tournament *models.Tournament) (*models.Tournament, error) {
	if !tournament.Format.Valid() {
		return nil, fmt.Errorf("%w: unknown tournament format %q", ErrValidationFailed, tournament.Format)
	}
	if err := s.tournamentRepo.Update(ctx, nil, tournament); err != nil {
		return nil, mapTournamentRepoError(err)
	}
	s.hub.BroadcastToRoom(strconv.Itoa(tournament.ID), live.EventTournamentUpdated, tournament)
	return tournament, nil
}

func (s *tournamentService) ArchiveTournament(ctx context.Context, id int) error {
	tournament, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		return mapTournamentRepoError(err)
	}
	tournament.IsActive = false
	tournament.IsArchived = true
	if err := s.tournamentRepo.Update(ctx, nil, tournament); err != nil {
		return mapTournamentRepoError(err)
	}
	s.hub.BroadcastToRoom(strconv.Itoa(id), live.EventTournamentUpdated, tournament)
	return nil
}

func (s *tournamentService) DeleteTournament(ctx context.Context, id int) error {
	return s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.tournamentTeamRepo.DeleteByTournament(ctx, exec, id); err != nil {
			return fmt.Errorf("failed to delete tournament registrations: %w", err)
		}
		if err := s.tournamentRepo.Delete(ctx, exec, id); err != nil {
			return mapTournamentRepoError(err)
		}
		return nil
	})
}

func (s *tournamentService) RegisterTeam(ctx context.Context, tournamentID, teamID int, seeding *int) (*models.TournamentTeam, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	if tournament.IsArchived {
		return nil, ErrTournamentArchived
	}
	if tournament.CurrentRoundNumber > 0 {
		return nil, fmt.Errorf("%w: registration is closed once rounds have started", ErrValidationFailed)
	}
	if _, err := s.teamRepo.GetByID(ctx, nil, teamID); err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to load team %d: %w", teamID, err)
	}

	tt := &models.TournamentTeam{
		TournamentID:    tournamentID,
		TeamID:          teamID,
		IsActive:        true,
		SeedingPosition: seeding,
	}
	if err := s.tournamentTeamRepo.Create(ctx, nil, tt); err != nil {
		if errors.Is(err, repositories.ErrTournamentTeamConflict) {
			return nil, ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("failed to register team: %w", err)
	}
	s.log.Info("team registered", "tournament_id", tournamentID, "team_id", teamID)
	return tt, nil
}

func (s *tournamentService) WithdrawTeam(ctx context.Context, tournamentID, teamID int) error {
	tt, err := s.tournamentTeamRepo.GetByTournamentAndTeam(ctx, nil, tournamentID, teamID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentTeamNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load registration: %w", err)
	}
	// После первого тура команду не удаляем, а деактивируем: история
	// матчей и очки соперников должны сохраниться.
	tournament, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		return mapTournamentRepoError(err)
	}
	if tournament.CurrentRoundNumber > 0 {
		tt.IsActive = false
		return s.tournamentTeamRepo.UpdateStats(ctx, nil, tt)
	}
	return s.tournamentTeamRepo.Delete(ctx, nil, tt.ID)
}

func (s *tournamentService) AssignCourt(ctx context.Context, tournamentID, courtID int) error {
	if err := s.tournamentRepo.AddCourt(ctx, nil, tournamentID, courtID); err != nil {
		return fmt.Errorf("failed to assign court %d to tournament %d: %w", courtID, tournamentID, err)
	}
	return nil
}

func (s *tournamentService) UnassignCourt(ctx context.Context, tournamentID, courtID int) error {
	if err := s.tournamentRepo.RemoveCourt(ctx, nil, tournamentID, courtID); err != nil {
		return fmt.Errorf("failed to unassign court %d from tournament %d: %w", courtID, tournamentID, err)
	}
	return nil
}

func (s *tournamentService) CreateStage(ctx context.Context, stage *models.Stage) (*models.Stage, error) {
	if !stage.Format.Valid() {
		return nil, fmt.Errorf("%w: unknown stage format %q", ErrValidationFailed, stage.Format)
	}
	if stage.NumRounds <= 0 {
		return nil, fmt.Errorf("%w: stage must have at least one round", ErrValidationFailed)
	}
	if err := s.roundRepo.CreateStage(ctx, nil, stage); err != nil {
		return nil, fmt.Errorf("failed to create stage: %w", err)
	}
	return stage, nil
}

func (s *tournamentService) ListStages(ctx context.Context, tournamentID int) ([]*models.Stage, error) {
	stages, err := s.roundRepo.ListStagesByTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stages: %w", err)
	}
	return stages, nil
}

func (s *tournamentService) ListRounds(ctx context.Context, tournamentID int) ([]*models.Round, error) {
	rounds, err := s.roundRepo.ListRoundsByTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rounds: %w", err)
	}
	return rounds, nil
}

func (s *tournamentService) GenerateRound(ctx context.Context, tournamentID int) (*models.Round, []*models.Match, error) {
	var round *models.Round
	var matches []*models.Match
	err := s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		tournament, err := s.tournamentRepo.GetByID(ctx, exec, tournamentID)
		if err != nil {
			return mapTournamentRepoError(err)
		}
		if tournament.IsArchived {
			return ErrTournamentArchived
		}
		if !tournament.IsActive {
			return ErrTournamentNotActive
		}

		latest, err := s.roundRepo.GetLatestRound(ctx, exec, tournamentID)
		if err != nil && !errors.Is(err, repositories.ErrRoundNotFound) {
			return fmt.Errorf("failed to load latest round: %w", err)
		}
		if latest != nil && !latest.IsCompleted {
			return ErrRoundNotComplete
		}
		roundNumber := tournament.CurrentRoundNumber + 1

		stage, err := s.currentStage(ctx, exec, tournament)
		if err != nil {
			return err
		}
		format := tournament.Format
		if stage != nil {
			format = stage.Format
		}

		standings, err := s.tournamentTeamRepo.ListByTournament(ctx, exec, tournamentID, true)
		if err != nil {
			return fmt.Errorf("failed to list tournament teams: %w", err)
		}
		entries := toEntries(standings)

		plan, err := s.buildPlan(ctx, exec, tournament, stage, format, entries, roundNumber)
		if err != nil {
			return err
		}

		round = &models.Round{TournamentID: tournamentID, Number: roundNumber}
		if stage != nil {
			round.StageID = &stage.ID
		}
		if err := s.roundRepo.CreateRound(ctx, exec, round); err != nil {
			if errors.Is(err, repositories.ErrRoundConflict) {
				return ErrRoundConflict
			}
			return fmt.Errorf("failed to create round: %w", err)
		}

		matches = make([]*models.Match, 0, len(plan.Pairings))
		for _, p := range plan.Pairings {
			match := &models.Match{
				TournamentID: tournamentID,
				RoundID:      &round.ID,
				Team1ID:      p.Team1ID,
				Team2ID:      p.Team2ID,
				Status:       models.MatchStatusPending,
			}
			if stage != nil {
				match.StageID = &stage.ID
			}
			if err := s.matchRepo.Create(ctx, exec, match); err != nil {
				return fmt.Errorf("failed to create match %d vs %d: %w", p.Team1ID, p.Team2ID, err)
			}
			matches = append(matches, match)
		}

		if plan.ByeTeamID != nil {
			if err := s.applyBye(ctx, exec, standings, *plan.ByeTeamID, roundNumber); err != nil {
				return err
			}
		}
		if err := s.persistBuchholz(ctx, exec, standings, entries); err != nil {
			return err
		}

		if err := s.tournamentRepo.SetCurrentRound(ctx, exec, tournamentID, roundNumber); err != nil {
			return fmt.Errorf("failed to advance round counter: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, translateTxError(err)
	}

	s.log.Info("round generated", "tournament_id", tournamentID,
		"round", round.Number, "matches", len(matches))
	s.hub.BroadcastToRoom(strconv.Itoa(tournamentID), live.EventRoundGenerated, round)
	return round, matches, nil
}

// currentStage возвращает незавершённый этап с наименьшим номером,
// либо nil для одноэтапного турнира.
func (s *tournamentService) currentStage(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament) (*models.Stage, error) {
	stages, err := s.roundRepo.ListStagesByTournament(ctx, exec, tournament.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stages: %w", err)
	}
	for _, stage := range stages {
		if !stage.IsComplete {
			return stage, nil
		}
	}
	return nil, nil
}

func (s *tournamentService) buildPlan(
	ctx context.Context,
	exec repositories.SQLExecutor,
	tournament *models.Tournament,
	stage *models.Stage,
	format models.TournamentFormat,
	entries []pairing.Entry,
	roundNumber int,
) (pairing.RoundPlan, error) {
	stageRound := roundNumber
	if stage != nil {
		rounds, err := s.roundRepo.ListRoundsByTournament(ctx, exec, tournament.ID)
		if err != nil {
			return pairing.RoundPlan{}, fmt.Errorf("failed to list rounds: %w", err)
		}
		stageRound = 1
		for _, r := range rounds {
			if r.StageID != nil && *r.StageID == stage.ID {
				stageRound++
			}
		}
	}

	switch format {
	case models.FormatSwiss:
		plan, err := pairing.NextSwissRound(entries, roundNumber)
		if err != nil {
			return pairing.RoundPlan{}, mapPairingError(err)
		}
		return plan, nil

	case models.FormatRoundRobin:
		// Круговой формат требует стабильного порядка между турами,
		// иначе расписание circle method рассыпается.
		stable := make([]pairing.Entry, len(entries))
		copy(stable, entries)
		sort.Slice(stable, func(i, j int) bool { return stable[i].TournamentTeamID < stable[j].TournamentTeamID })

		var plans []pairing.RoundPlan
		var err error
		if stage != nil && stage.MatchesPerTeam != nil {
			plans, err = pairing.PartialRoundRobin(stable, *stage.MatchesPerTeam)
		} else {
			numRounds := 0
			if stage != nil {
				numRounds = stage.NumRounds
			}
			plans, err = pairing.RoundRobinSchedule(stable, numRounds)
		}
		if err != nil {
			return pairing.RoundPlan{}, mapPairingError(err)
		}
		if stageRound > len(plans) {
			return pairing.RoundPlan{}, mapPairingError(pairing.ErrInvalidRoundCount)
		}
		plan := plans[stageRound-1]
		plan.Number = roundNumber
		return plan, nil

	case models.FormatKnockout:
		return s.buildKnockoutPlan(ctx, exec, tournament, entries, roundNumber, stageRound)

	default:
		return pairing.RoundPlan{}, fmt.Errorf("%w: unknown format %q", ErrValidationFailed, format)
	}
}

// buildKnockoutPlan собирает первый тур по посеву, а последующие из
// победителей предыдущего тура; проигравшие выбывают из таблицы.
func (s *tournamentService) buildKnockoutPlan(
	ctx context.Context,
	exec repositories.SQLExecutor,
	tournament *models.Tournament,
	entries []pairing.Entry,
	roundNumber, stageRound int,
) (pairing.RoundPlan, error) {
	if stageRound == 1 {
		plan, _, err := pairing.FirstKnockoutRound(entries, roundNumber)
		if err != nil {
			return pairing.RoundPlan{}, mapPairingError(err)
		}
		return plan, nil
	}

	latest, err := s.roundRepo.GetLatestRound(ctx, exec, tournament.ID)
	if err != nil {
		return pairing.RoundPlan{}, fmt.Errorf("failed to load previous round: %w", err)
	}
	previous, err := s.matchRepo.ListByRound(ctx, exec, latest.ID)
	if err != nil {
		return pairing.RoundPlan{}, fmt.Errorf("failed to list previous round matches: %w", err)
	}

	var winners []int
	for _, m := range previous {
		if m.Status != models.MatchStatusCompleted || m.WinnerID == nil {
			continue
		}
		winners = append(winners, *m.WinnerID)
		// Проигравший выбывает.
		if m.LoserID != nil {
			if tt, err := s.tournamentTeamRepo.GetByTournamentAndTeam(ctx, exec, tournament.ID, *m.LoserID); err == nil {
				tt.IsActive = false
				if err := s.tournamentTeamRepo.UpdateStats(ctx, exec, tt); err != nil {
					return pairing.RoundPlan{}, fmt.Errorf("failed to eliminate loser: %w", err)
				}
			}
		}
	}
	plan, err := pairing.NextKnockoutRound(winners, roundNumber)
	if err != nil {
		return pairing.RoundPlan{}, mapPairingError(err)
	}
	return plan, nil
}

func (s *tournamentService) applyBye(ctx context.Context, exec repositories.SQLExecutor, standings []*models.TournamentTeam, byeTeamID, roundNumber int) error {
	for _, tt := range standings {
		if tt.TeamID != byeTeamID {
			continue
		}
		tt.SwissPoints += pointsForWin
		tt.ReceivedByeInRound = &roundNumber
		if err := s.tournamentTeamRepo.UpdateStats(ctx, exec, tt); err != nil {
			return fmt.Errorf("failed to apply bye to team %d: %w", byeTeamID, err)
		}
		return nil
	}
	return fmt.Errorf("%w: bye team %d not registered", ErrValidationFailed, byeTeamID)
}

// persistBuchholz сохраняет коэффициенты, пересчитанные на момент
// генерации тура, чтобы таблица и генератор видели одни и те же числа.
func (s *tournamentService) persistBuchholz(ctx context.Context, exec repositories.SQLExecutor, standings []*models.TournamentTeam, entries []pairing.Entry) error {
	fresh := pairing.ComputeBuchholz(entries)
	byTeam := make(map[int]float64, len(fresh))
	for _, e := range fresh {
		byTeam[e.TeamID] = e.Buchholz
	}
	for _, tt := range standings {
		score, ok := byTeam[tt.TeamID]
		if !ok || tt.BuchholzScore == score {
			continue
		}
		// Строку перечитываем: снимок в standings сделан до выбываний
		// этого же раунда, и запись из него вернула бы их обратно.
		current, err := s.tournamentTeamRepo.GetByTournamentAndTeam(ctx, exec, tt.TournamentID, tt.TeamID)
		if err != nil {
			return fmt.Errorf("failed to reload standing for team %d: %w", tt.TeamID, err)
		}
		current.BuchholzScore = score
		if err := s.tournamentTeamRepo.UpdateStats(ctx, exec, current); err != nil {
			return fmt.Errorf("failed to persist buchholz for team %d: %w", tt.TeamID, err)
		}
	}
	return nil
}

func (s *tournamentService) Standings(ctx context.Context, tournamentID int) ([]*models.TournamentTeam, error) {
	standings, err := s.tournamentTeamRepo.ListByTournament(ctx, nil, tournamentID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list standings: %w", err)
	}

	// Составы подгружаем параллельно: таблицу смотрят чаще всего.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, tt := range standings {
		tt := tt
		g.Go(func() error {
			team, err := s.teamRepo.GetByID(gctx, nil, tt.TeamID)
			if err != nil {
				return fmt.Errorf("failed to load team %d: %w", tt.TeamID, err)
			}
			players, err := s.playerRepo.ListByTeam(gctx, nil, tt.TeamID)
			if err != nil {
				return fmt.Errorf("failed to load players for team %d: %w", tt.TeamID, err)
			}
			for _, p := range players {
				team.Players = append(team.Players, *p)
			}
			tt.Team = team
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return standings, nil
}

func toEntries(standings []*models.TournamentTeam) []pairing.Entry {
	entries := make([]pairing.Entry, 0, len(standings))
	for _, tt := range standings {
		entry := pairing.Entry{
			TournamentTeamID: tt.ID,
			TeamID:           tt.TeamID,
			Points:           tt.SwissPoints,
			Buchholz:         tt.BuchholzScore,
			ReceivedBye:      tt.ReceivedByeInRound != nil,
			Opponents:        tt.OpponentsPlayed,
		}
		if tt.SeedingPosition != nil {
			entry.Seeding = *tt.SeedingPosition
		}
		entries = append(entries, entry)
	}
	return entries
}

func mapPairingError(err error) error {
	switch {
	case errors.Is(err, pairing.ErrNotEnoughTeams):
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	case errors.Is(err, pairing.ErrInvalidRoundCount):
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	default:
		return err
	}
}

func mapTournamentRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	default:
		return err
	}
}
