package services

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/pfc-club/petanque-platform/live"
	"github.com/pfc-club/petanque-platform/models"
	"github.com/pfc-club/petanque-platform/repositories"
	"github.com/pfc-club/petanque-platform/storage"
)

const maxPetanqueScore = 13

// Очки швейцарской системы: победа и bye стоят одинаково.
const (
	pointsForWin  = 3
	pointsForLoss = 0
)

// ActivationInput описывает PIN-подтверждённое действие команды над матчем.
// ProposedCourtID содержит пожелание команды по площадке; арбитраж учитывает его,
// если площадка свободна и доступна турниру.
type ActivationInput struct {
	TeamID          int
	PIN             string
	PlayerIDs       []int
	ProposedCourtID *int
}

// ResultInput содержит счёт, поданный командой на подтверждение сопернику.
type ResultInput struct {
	TeamID     int
	PIN        string
	Team1Score int
	Team2Score int
	Notes      *string
}

// MatchService проводит матч через весь жизненный цикл:
// pending -> pending_verification -> active -> waiting_validation -> completed.
// Каждый переход выполняется в одной транзакции с блокировкой строки матча.
type MatchService interface {
	GetMatch(ctx context.Context, id int) (*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID int, status *models.MatchStatus) ([]*models.Match, error)

	// Initiate: первая команда вводит PIN и заявляет состав.
	Initiate(ctx context.Context, matchID int, input ActivationInput) (*models.Match, error)
	// ValidateAndActivate: вторая команда подтверждает матч. При наличии
	// свободной площадки матч стартует, иначе встаёт в очередь. Повторная
	// активация уже активировавшей командой ничего не меняет и не считается
	// ошибкой.
	ValidateAndActivate(ctx context.Context, matchID int, input ActivationInput) (*models.Match, error)
	// SubmitResult переводит активный матч в ожидание подтверждения счёта.
	SubmitResult(ctx context.Context, matchID int, input ResultInput) (*models.Match, error)
	// ConfirmResult: согласие соперника завершает матч, несогласие
	// возвращает его в active для повторной подачи.
	ConfirmResult(ctx context.Context, matchID int, teamID int, pin string, agree bool) (*models.Match, error)
	// AttachEvidence прикладывает фото финального счёта к поданному результату.
	AttachEvidence(ctx context.Context, matchID int, teamID int, pin string, filename, contentType string, data []byte) (*models.MatchResult, error)
	GetResult(ctx context.Context, matchID int) (*models.MatchResult, error)
	// CancelMatch снимает матч административно, освобождая площадку.
	CancelMatch(ctx context.Context, matchID int) (*models.Match, error)
}

type matchService struct {
	txRunner           repositories.TxRunner
	matchRepo          repositories.MatchRepository
	teamRepo           repositories.TeamRepository
	activationRepo     repositories.MatchActivationRepository
	resultRepo         repositories.MatchResultRepository
	tournamentTeamRepo repositories.TournamentTeamRepository
	roundRepo          repositories.RoundRepository
	courts             CourtService
	uploader           storage.FileUploader
	hub                *live.Hub
	log                *slog.Logger
}

func NewMatchService(
	txRunner repositories.TxRunner,
	matchRepo repositories.MatchRepository,
	teamRepo repositories.TeamRepository,
	activationRepo repositories.MatchActivationRepository,
	resultRepo repositories.MatchResultRepository,
	tournamentTeamRepo repositories.TournamentTeamRepository,
	roundRepo repositories.RoundRepository,
	courts CourtService,
	uploader storage.FileUploader,
	hub *live.Hub,
	log *slog.Logger,
) MatchService {
	return &matchService{
		txRunner:           txRunner,
		matchRepo:          matchRepo,
		teamRepo:           teamRepo,
		activationRepo:     activationRepo,
		resultRepo:         resultRepo,
		tournamentTeamRepo: tournamentTeamRepo,
		roundRepo:          roundRepo,
		courts:             courts,
		uploader:           uploader,
		hub:                hub,
		log:                log,
	}
}

func (s *matchService) GetMatch(ctx context.Context, id int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, mapMatchRepoError(err)
	}
	return match, nil
}

func (s *matchService) ListByTournament(ctx context.Context, tournamentID int, status *models.MatchStatus) ([]*models.Match, error) {
	matches, err := s.matchRepo.ListByTournament(ctx, nil, tournamentID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches for tournament %d: %w", tournamentID, err)
	}
	if matches == nil {
		matches = []*models.Match{}
	}
	return matches, nil
}

func (s *matchService) Initiate(ctx context.Context, matchID int, input ActivationInput) (*models.Match, error) {
	var updated *models.Match
	err := s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err := s.matchRepo.GetByIDForUpdate(ctx, exec, matchID)
		if err != nil {
			return mapMatchRepoError(err)
		}
		if match.Status != models.MatchStatusPending {
			return fmt.Errorf("%w: match %d is %s, initiation requires pending", ErrInvalidStateTransition, matchID, match.Status)
		}
		if err := s.verifyTeamPIN(ctx, exec, match, input.TeamID, input.PIN); err != nil {
			return err
		}

		activations, err := s.activationRepo.ListByMatch(ctx, exec, matchID)
		if err != nil {
			return fmt.Errorf("failed to list activations: %w", err)
		}
		if len(activations) != 0 {
			return fmt.Errorf("%w: match %d already initiated", ErrInvalidStateTransition, matchID)
		}

		if err := s.recordActivation(ctx, exec, match, input, true); err != nil {
			return err
		}

		if input.ProposedCourtID != nil {
			match.ProposedCourtID = input.ProposedCourtID
		}
		match.Status = models.MatchStatusPendingVerification
		if err := s.matchRepo.Update(ctx, exec, match); err != nil {
			return fmt.Errorf("failed to update match %d: %w", matchID, err)
		}
		updated = match
		return nil
	})
	if err != nil {
		return nil, translateTxError(err)
	}

	s.log.Info("match initiated", "match_id", matchID, "team_id", input.TeamID)
	s.broadcastMatch(updated)
	return updated, nil
}

func (s *matchService) ValidateAndActivate(ctx context.Context, matchID int, input ActivationInput) (*models.Match, error) {
	var updated *models.Match
	var startedCourt *models.Court
	var repeated bool
	err := s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err := s.matchRepo.GetByIDForUpdate(ctx, exec, matchID)
		if err != nil {
			return mapMatchRepoError(err)
		}
		if err := s.verifyTeamPIN(ctx, exec, match, input.TeamID, input.PIN); err != nil {
			return err
		}

		activations, err := s.activationRepo.ListByMatch(ctx, exec, matchID)
		if err != nil {
			return fmt.Errorf("failed to list activations: %w", err)
		}
		for _, a := range activations {
			if a.TeamID == input.TeamID {
				// Команда уже активировала этот матч, повтор ничего не меняет.
				repeated = true
				updated = match
				return nil
			}
		}

		if match.Status != models.MatchStatusPendingVerification {
			return fmt.Errorf("%w: match %d is %s, validation requires pending_verification", ErrInvalidStateTransition, matchID, match.Status)
		}
		if len(activations) != 1 {
			return fmt.Errorf("%w: match %d expects exactly one prior activation", ErrInvalidStateTransition, matchID)
		}

		if err := s.recordActivation(ctx, exec, match, input, false); err != nil {
			return err
		}

		court, err := s.courts.AssignCourtInTx(ctx, exec, match)
		if err != nil {
			return err
		}
		if court != nil {
			now := time.Now()
			match.Status = models.MatchStatusActive
			match.CourtID = &court.ID
			match.WaitingForCourt = false
			match.StartTime = &now
			startedCourt = court
		} else {
			// Свободных площадок нет: матч полностью активирован и ждёт
			// освобождения площадки в порядке очереди.
			match.WaitingForCourt = true
		}
		if err := s.matchRepo.Update(ctx, exec, match); err != nil {
			return fmt.Errorf("failed to update match %d: %w", matchID, err)
		}
		updated = match
		return nil
	})
	if err != nil {
		return nil, translateTxError(err)
	}

	if repeated {
		s.log.Info("duplicate activation ignored", "match_id", matchID, "team_id", input.TeamID)
		return updated, nil
	}

	if startedCourt != nil {
		s.log.Info("match activated", "match_id", matchID, "court_id", startedCourt.ID)
		s.hub.BroadcastToRoom(strconv.Itoa(updated.TournamentID), live.EventCourtUpdated, startedCourt)
	} else {
		s.log.Info("match queued for court", "match_id", matchID)
	}
	s.broadcastMatch(updated)
	return updated, nil
}

func (s *matchService) SubmitResult(ctx context.Context, matchID int, input ResultInput) (*models.Match, error) {
	if err := validateScore(input.Team1Score, input.Team2Score); err != nil {
		return nil, err
	}

	var updated *models.Match
	err := s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err := s.matchRepo.GetByIDForUpdate(ctx, exec, matchID)
		if err != nil {
			return mapMatchRepoError(err)
		}
		if match.Status != models.MatchStatusActive {
			return fmt.Errorf("%w: match %d is %s, result submission requires active", ErrInvalidStateTransition, matchID, match.Status)
		}
		if err := s.verifyTeamPIN(ctx, exec, match, input.TeamID, input.PIN); err != nil {
			return err
		}

		result := &models.MatchResult{
			MatchID:       matchID,
			SubmittedByID: input.TeamID,
			Notes:         input.Notes,
		}
		if err := s.resultRepo.Create(ctx, exec, result); err != nil {
			if errors.Is(err, repositories.ErrMatchResultConflict) {
				return fmt.Errorf("%w: result already submitted for match %d", ErrInvalidStateTransition, matchID)
			}
			return fmt.Errorf("failed to create match result: %w", err)
		}

		match.Team1Score = &input.Team1Score
		match.Team2Score = &input.Team2Score
		match.Status = models.MatchStatusWaitingValidation
		if err := s.matchRepo.Update(ctx, exec, match); err != nil {
			return fmt.Errorf("failed to update match %d: %w", matchID, err)
		}
		updated = match
		return nil
	})
	if err != nil {
		return nil, translateTxError(err)
	}

	s.log.Info("result submitted", "match_id", matchID, "team_id", input.TeamID,
		"score", fmt.Sprintf("%d:%d", input.Team1Score, input.Team2Score))
	s.broadcastMatch(updated)
	return updated, nil
}

func (s *matchService) ConfirmResult(ctx context.Context, matchID int, teamID int, pin string, agree bool) (*models.Match, error) {
	var updated *models.Match
	var freedCourt *int
	err := s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err := s.matchRepo.GetByIDForUpdate(ctx, exec, matchID)
		if err != nil {
			return mapMatchRepoError(err)
		}
		if match.Status != models.MatchStatusWaitingValidation {
			return fmt.Errorf("%w: match %d is %s, confirmation requires waiting_validation", ErrInvalidStateTransition, matchID, match.Status)
		}
		if err := s.verifyTeamPIN(ctx, exec, match, teamID, pin); err != nil {
			return err
		}

		result, err := s.resultRepo.GetByMatch(ctx, exec, matchID)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchResultNotFound) {
				return ErrResultNotFound
			}
			return fmt.Errorf("failed to load match result: %w", err)
		}
		if result.SubmittedByID == teamID {
			return fmt.Errorf("%w: the submitting team cannot confirm its own result", ErrInvalidStateTransition)
		}

		if !agree {
			// Несогласие: откат в active, счёт подаётся заново.
			if err := s.resultRepo.DeleteByMatch(ctx, exec, matchID); err != nil {
				return fmt.Errorf("failed to discard disputed result: %w", err)
			}
			match.Team1Score = nil
			match.Team2Score = nil
			match.Status = models.MatchStatusActive
			if err := s.matchRepo.Update(ctx, exec, match); err != nil {
				return fmt.Errorf("failed to update match %d: %w", matchID, err)
			}
			updated = match
			return nil
		}

		if err := s.resultRepo.SetValidated(ctx, exec, result.ID, teamID); err != nil {
			return fmt.Errorf("failed to validate result: %w", err)
		}
		if err := s.completeMatch(ctx, exec, match); err != nil {
			return err
		}
		freedCourt = match.CourtID
		updated = match
		return nil
	})
	if err != nil {
		return nil, translateTxError(err)
	}

	if agree {
		s.log.Info("match completed", "match_id", matchID, "winner_id", derefInt(updated.WinnerID),
			"court_id", derefInt(freedCourt))
		s.hub.BroadcastToRoom(strconv.Itoa(updated.TournamentID), live.EventStandingsUpdated, nil)
	} else {
		s.log.Info("result disputed", "match_id", matchID, "team_id", teamID)
	}
	s.broadcastMatch(updated)
	return updated, nil
}

// completeMatch фиксирует победителя, начисляет очки обеим командам,
// отмечает сыгранную пару и освобождает площадку. Счёт уже записан в матч
// на этапе SubmitResult.
func (s *matchService) completeMatch(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	if match.Team1Score == nil || match.Team2Score == nil {
		return fmt.Errorf("%w: match %d has no submitted score", ErrInvalidStateTransition, match.ID)
	}

	now := time.Now()
	match.Status = models.MatchStatusCompleted
	match.EndTime = &now
	if match.StartTime != nil {
		seconds := int64(now.Sub(*match.StartTime).Seconds())
		match.DurationSeconds = &seconds
	}
	if *match.Team1Score > *match.Team2Score {
		match.WinnerID = &match.Team1ID
		match.LoserID = &match.Team2ID
	} else {
		match.WinnerID = &match.Team2ID
		match.LoserID = &match.Team1ID
	}

	courtID := match.CourtID
	if err := s.matchRepo.Update(ctx, exec, match); err != nil {
		return fmt.Errorf("failed to update match %d: %w", match.ID, err)
	}

	if err := s.applyStandings(ctx, exec, match); err != nil {
		return err
	}
	if err := s.checkRoundCompletion(ctx, exec, match); err != nil {
		return err
	}

	if courtID != nil {
		if err := s.courts.ReleaseCourtInTx(ctx, exec, *courtID); err != nil {
			return err
		}
	}
	return nil
}

func (s *matchService) applyStandings(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	winner, err := s.tournamentTeamRepo.GetByTournamentAndTeam(ctx, exec, match.TournamentID, *match.WinnerID)
	if err != nil {
		return fmt.Errorf("failed to load winner standing: %w", err)
	}
	loser, err := s.tournamentTeamRepo.GetByTournamentAndTeam(ctx, exec, match.TournamentID, *match.LoserID)
	if err != nil {
		return fmt.Errorf("failed to load loser standing: %w", err)
	}

	winner.SwissPoints += pointsForWin
	loser.SwissPoints += pointsForLoss
	if err := s.tournamentTeamRepo.UpdateStats(ctx, exec, winner); err != nil {
		return fmt.Errorf("failed to update winner stats: %w", err)
	}
	if err := s.tournamentTeamRepo.UpdateStats(ctx, exec, loser); err != nil {
		return fmt.Errorf("failed to update loser stats: %w", err)
	}
	if err := s.tournamentTeamRepo.AddOpponents(ctx, exec, match.TournamentID, match.Team1ID, match.Team2ID); err != nil {
		return fmt.Errorf("failed to record opponents: %w", err)
	}
	return nil
}

// checkRoundCompletion помечает тур завершённым, когда все его матчи
// достигли терминального статуса.
func (s *matchService) checkRoundCompletion(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	if match.RoundID == nil {
		return nil
	}
	matches, err := s.matchRepo.ListByRound(ctx, exec, *match.RoundID)
	if err != nil {
		return fmt.Errorf("failed to list round matches: %w", err)
	}
	for _, m := range matches {
		if !m.Status.Terminal() {
			return nil
		}
	}
	if err := s.roundRepo.SetRoundCompleted(ctx, exec, *match.RoundID, true); err != nil {
		return fmt.Errorf("failed to complete round: %w", err)
	}
	return nil
}

func (s *matchService) AttachEvidence(ctx context.Context, matchID int, teamID int, pin string, filename, contentType string, data []byte) (*models.MatchResult, error) {
	if s.uploader == nil {
		return nil, fmt.Errorf("%w: evidence storage is not configured", ErrValidationFailed)
	}
	var result *models.MatchResult
	err := s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err := s.matchRepo.GetByIDForUpdate(ctx, exec, matchID)
		if err != nil {
			return mapMatchRepoError(err)
		}
		if err := s.verifyTeamPIN(ctx, exec, match, teamID, pin); err != nil {
			return err
		}
		result, err = s.resultRepo.GetByMatch(ctx, exec, matchID)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchResultNotFound) {
				return ErrResultNotFound
			}
			return fmt.Errorf("failed to load match result: %w", err)
		}

		uploaded, err := s.uploader.Upload(ctx, storage.EvidenceKey(matchID, filename), contentType, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to upload evidence: %w", err)
		}
		result.EvidenceKey = &uploaded.Key
		if err := s.resultRepo.SetEvidenceKey(ctx, exec, result.ID, uploaded.Key); err != nil {
			return fmt.Errorf("failed to store evidence key: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, translateTxError(err)
	}
	s.populateEvidenceURL(result)
	return result, nil
}

func (s *matchService) GetResult(ctx context.Context, matchID int) (*models.MatchResult, error) {
	result, err := s.resultRepo.GetByMatch(ctx, nil, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchResultNotFound) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("failed to load match result: %w", err)
	}
	s.populateEvidenceURL(result)
	return result, nil
}

func (s *matchService) CancelMatch(ctx context.Context, matchID int) (*models.Match, error) {
	var updated *models.Match
	var freedCourt *int
	err := s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err := s.matchRepo.GetByIDForUpdate(ctx, exec, matchID)
		if err != nil {
			return mapMatchRepoError(err)
		}
		if !match.Status.CanTransitionTo(models.MatchStatusCancelled) {
			return fmt.Errorf("%w: match %d is already %s", ErrInvalidStateTransition, matchID, match.Status)
		}
		freedCourt = match.CourtID
		match.Status = models.MatchStatusCancelled
		match.WaitingForCourt = false
		match.CourtID = nil
		if err := s.matchRepo.Update(ctx, exec, match); err != nil {
			return fmt.Errorf("failed to cancel match %d: %w", matchID, err)
		}
		if freedCourt != nil {
			if err := s.courts.ReleaseCourtInTx(ctx, exec, *freedCourt); err != nil {
				return err
			}
		}
		updated = match
		return nil
	})
	if err != nil {
		return nil, translateTxError(err)
	}

	s.log.Info("match cancelled", "match_id", matchID)
	s.broadcastMatch(updated)
	return updated, nil
}

// verifyTeamPIN проверяет, что команда играет в матче и PIN верен.
// Сравнение PIN выполняется за постоянное время.
func (s *matchService) verifyTeamPIN(ctx context.Context, exec repositories.SQLExecutor, match *models.Match, teamID int, pin string) error {
	if !match.HasTeam(teamID) {
		return fmt.Errorf("%w: team %d, match %d", ErrTeamNotInMatch, teamID, match.ID)
	}
	team, err := s.teamRepo.GetByID(ctx, exec, teamID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return ErrTeamNotFound
		}
		return fmt.Errorf("failed to load team %d: %w", teamID, err)
	}
	if subtle.ConstantTimeCompare([]byte(team.PIN), []byte(pin)) != 1 {
		return ErrInvalidPIN
	}
	return nil
}

func (s *matchService) recordActivation(ctx context.Context, exec repositories.SQLExecutor, match *models.Match, input ActivationInput, initiator bool) error {
	activation := &models.MatchActivation{
		MatchID:     match.ID,
		TeamID:      input.TeamID,
		PinUsed:     input.PIN,
		IsInitiator: initiator,
	}
	if err := s.activationRepo.Create(ctx, exec, activation); err != nil {
		if errors.Is(err, repositories.ErrActivationConflict) {
			return fmt.Errorf("%w: team %d already activated match %d", ErrInvalidStateTransition, input.TeamID, match.ID)
		}
		return fmt.Errorf("failed to create activation: %w", err)
	}

	if len(input.PlayerIDs) == 0 {
		return nil
	}
	players := make([]*models.MatchPlayer, 0, len(input.PlayerIDs))
	for _, playerID := range input.PlayerIDs {
		players = append(players, &models.MatchPlayer{
			MatchID:  match.ID,
			PlayerID: playerID,
			TeamID:   input.TeamID,
		})
	}
	if err := s.activationRepo.CreatePlayers(ctx, exec, players); err != nil {
		return fmt.Errorf("failed to record match roster: %w", err)
	}
	return nil
}

func (s *matchService) populateEvidenceURL(result *models.MatchResult) {
	if result.EvidenceKey != nil && s.uploader != nil {
		url := s.uploader.GetPublicURL(*result.EvidenceKey)
		result.EvidenceURL = &url
	}
}

func (s *matchService) broadcastMatch(match *models.Match) {
	if match == nil {
		return
	}
	s.hub.BroadcastToRoom(strconv.Itoa(match.TournamentID), live.EventMatchUpdated, match)
}

// validateScore пропускает любой счёт в пределах петанка без ничьей.
// Победитель не обязан добирать до 13: партию можно сдать досрочно.
func validateScore(score1, score2 int) error {
	if score1 < 0 || score2 < 0 || score1 > maxPetanqueScore || score2 > maxPetanqueScore {
		return fmt.Errorf("%w: scores must be between 0 and %d", ErrInvalidScore, maxPetanqueScore)
	}
	if score1 == score2 {
		return fmt.Errorf("%w: draws are not possible", ErrInvalidScore)
	}
	return nil
}

func translateTxError(err error) error {
	if errors.Is(err, repositories.ErrSerializationConflict) {
		return fmt.Errorf("%w: %v", ErrConcurrencyConflict, err)
	}
	return err
}

func mapMatchRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrMatchNotFound):
		return ErrMatchNotFound
	default:
		return err
	}
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
