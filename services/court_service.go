package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/pfc-club/petanque-platform/live"
	"github.com/pfc-club/petanque-platform/models"
	"github.com/pfc-club/petanque-platform/repositories"
)

// CourtService управляет площадками и их распределением между матчами.
// Арбитраж всегда выполняется внутри транзакции: свободные площадки
// блокируются FOR UPDATE, поэтому две активации не получат одну площадку.
type CourtService interface {
	CreateCourt(ctx context.Context, court *models.Court) (*models.Court, error)
	GetCourt(ctx context.Context, id int) (*models.Court, error)
	ListCourts(ctx context.Context) ([]*models.Court, error)
	UpdateCourt(ctx context.Context, court *models.Court) (*models.Court, error)
	// SetCourtState переводит площадку между free и disabled. Занятую
	// площадку нельзя отключить, пока матч на ней не завершён.
	SetCourtState(ctx context.Context, id int, state models.CourtState) error
	DeleteCourt(ctx context.Context, id int) error

	// AssignCourtInTx подбирает свободную площадку для матча в рамках чужой
	// транзакции. Возвращает nil без ошибки, если свободных площадок нет.
	AssignCourtInTx(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) (*models.Court, error)
	// ReleaseCourtInTx освобождает площадку и сразу отдаёт её самому
	// старому ожидающему матчу, которому она подходит.
	ReleaseCourtInTx(ctx context.Context, exec repositories.SQLExecutor, courtID int) error

	// BackfillWaiting выполняет страховочный проход: раздаёт свободные площадки
	// матчам, ожидающим в очереди. Запускается периодически планировщиком.
	BackfillWaiting(ctx context.Context) (int, error)
}

type courtService struct {
	txRunner       repositories.TxRunner
	courtRepo      repositories.CourtRepository
	matchRepo      repositories.MatchRepository
	tournamentRepo repositories.TournamentRepository
	activationRepo repositories.MatchActivationRepository
	hub            *live.Hub
	log            *slog.Logger
}

func NewCourtService(
	txRunner repositories.TxRunner,
	courtRepo repositories.CourtRepository,
	matchRepo repositories.MatchRepository,
	tournamentRepo repositories.TournamentRepository,
	activationRepo repositories.MatchActivationRepository,
	hub *live.Hub,
	log *slog.Logger,
) CourtService {
	return &courtService{
		txRunner:       txRunner,
		courtRepo:      courtRepo,
		matchRepo:      matchRepo,
		tournamentRepo: tournamentRepo,
		activationRepo: activationRepo,
		hub:            hub,
		log:            log,
	}
}

func (s *courtService) CreateCourt(ctx context.Context, court *models.Court) (*models.Court, error) {
	if court.Number <= 0 {
		return nil, ErrCourtNumberRequired
	}
	if court.State == "" {
		court.State = models.CourtStateFree
	}
	if !court.State.Valid() {
		return nil, fmt.Errorf("%w: unknown court state %q", ErrValidationFailed, court.State)
	}
	if err := s.courtRepo.Create(ctx, nil, court); err != nil {
		return nil, mapCourtRepoError(err)
	}
	return court, nil
}

func (s *courtService) GetCourt(ctx context.Context, id int) (*models.Court, error) {
	court, err := s.courtRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, mapCourtRepoError(err)
	}
	return court, nil
}

func (s *courtService) ListCourts(ctx context.Context) ([]*models.Court, error) {
	courts, err := s.courtRepo.List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list courts: %w", err)
	}
	return courts, nil
}

func (s *courtService) UpdateCourt(ctx context.Context, court *models.Court) (*models.Court, error) {
	if court.Number <= 0 {
		return nil, ErrCourtNumberRequired
	}
	if err := s.courtRepo.Update(ctx, nil, court); err != nil {
		return nil, mapCourtRepoError(err)
	}
	return court, nil
}

func (s *courtService) SetCourtState(ctx context.Context, id int, state models.CourtState) error {
	if !state.Valid() {
		return fmt.Errorf("%w: unknown court state %q", ErrValidationFailed, state)
	}
	return s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		court, err := s.courtRepo.GetByID(ctx, exec, id)
		if err != nil {
			return mapCourtRepoError(err)
		}
		if court.State == models.CourtStateOccupied && state != models.CourtStateOccupied {
			// Матч на площадке ещё идёт, ручной перевод запрещён.
			return ErrCourtOccupied
		}
		if err := s.courtRepo.UpdateState(ctx, exec, id, state); err != nil {
			return mapCourtRepoError(err)
		}
		// Освободившаяся площадка может сразу пригодиться очереди.
		if state == models.CourtStateFree {
			if _, err := s.promoteWaiting(ctx, exec, map[int]bool{id: true}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *courtService) DeleteCourt(ctx context.Context, id int) error {
	if err := s.courtRepo.Delete(ctx, nil, id); err != nil {
		return mapCourtRepoError(err)
	}
	return nil
}

func (s *courtService) AssignCourtInTx(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) (*models.Court, error) {
	if match.CourtID != nil {
		// Площадка уже выдана, повторный арбитраж ничего не меняет.
		court, err := s.courtRepo.GetByID(ctx, exec, *match.CourtID)
		if err != nil {
			return nil, mapCourtRepoError(err)
		}
		return court, nil
	}

	free, err := s.courtRepo.ListAssignableForUpdate(ctx, exec)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignable courts: %w", err)
	}
	if len(free) == 0 {
		return nil, nil
	}

	// Площадки, записанные в активных матчах, не раздаём даже если их
	// состояние в таблице courts разошлось с действительностью.
	held, err := s.matchRepo.CourtIDsHeldByActive(ctx, exec, match.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list held courts: %w", err)
	}

	allowed, err := s.allowedCourtSet(ctx, exec, match.TournamentID)
	if err != nil {
		return nil, err
	}

	// Сначала пожелание команды, затем площадки турнира по номерам,
	// и только потом любая свободная площадка общего парка.
	var proposed, reserved, general *models.Court
	for _, court := range free {
		if held[court.ID] {
			continue
		}
		if match.ProposedCourtID != nil && court.ID == *match.ProposedCourtID {
			proposed = court
			break
		}
		if allowed != nil && allowed[court.ID] {
			if reserved == nil {
				reserved = court
			}
			continue
		}
		if general == nil {
			general = court
		}
	}
	chosen := proposed
	if chosen == nil {
		chosen = reserved
	}
	if chosen == nil {
		chosen = general
	}
	if chosen == nil {
		return nil, nil
	}
	if err := s.courtRepo.UpdateState(ctx, exec, chosen.ID, models.CourtStateOccupied); err != nil {
		return nil, mapCourtRepoError(err)
	}
	return chosen, nil
}

func (s *courtService) ReleaseCourtInTx(ctx context.Context, exec repositories.SQLExecutor, courtID int) error {
	if err := s.courtRepo.UpdateState(ctx, exec, courtID, models.CourtStateFree); err != nil {
		return mapCourtRepoError(err)
	}
	_, err := s.promoteWaiting(ctx, exec, map[int]bool{courtID: true})
	return err
}

func (s *courtService) BackfillWaiting(ctx context.Context) (int, error) {
	promoted := 0
	err := s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		n, err := s.promoteWaiting(ctx, exec, nil)
		promoted = n
		return err
	})
	if err != nil {
		return 0, err
	}
	return promoted, nil
}

// promoteWaiting раздаёт свободные площадки ожидающим матчам в порядке
// постановки в очередь. Непустой recentlyFreed ограничивает раздачу
// площадками, освобождёнными в этой же транзакции: одно освобождение
// запускает не больше одного матча, остальную очередь разбирает
// страховочный проход. Возвращает число запущенных матчей.
func (s *courtService) promoteWaiting(ctx context.Context, exec repositories.SQLExecutor, recentlyFreed map[int]bool) (int, error) {
	waiting, err := s.matchRepo.ListWaitingForCourt(ctx, exec)
	if err != nil {
		return 0, fmt.Errorf("failed to list matches waiting for court: %w", err)
	}
	if len(waiting) == 0 {
		return 0, nil
	}

	free, err := s.courtRepo.ListAssignableForUpdate(ctx, exec)
	if err != nil {
		return 0, fmt.Errorf("failed to list assignable courts: %w", err)
	}
	if len(free) == 0 {
		return 0, nil
	}

	held, err := s.matchRepo.CourtIDsHeldByActive(ctx, exec, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to list held courts: %w", err)
	}
	taken := make(map[int]bool, len(held))
	for id := range held {
		if !recentlyFreed[id] {
			taken[id] = true
		}
	}

	allowedByTournament := make(map[int]map[int]bool)
	promoted := 0
	for _, match := range waiting {
		activations, err := s.activationRepo.ListByMatch(ctx, exec, match.ID)
		if err != nil {
			return promoted, fmt.Errorf("failed to list activations for match %d: %w", match.ID, err)
		}
		if len(activations) < 2 {
			// Матч попал в очередь не до конца активированным, пропускаем.
			continue
		}

		allowed, ok := allowedByTournament[match.TournamentID]
		if !ok {
			allowed, err = s.allowedCourtSet(ctx, exec, match.TournamentID)
			if err != nil {
				return promoted, err
			}
			allowedByTournament[match.TournamentID] = allowed
		}

		var court *models.Court
		for _, candidate := range free {
			if taken[candidate.ID] {
				continue
			}
			if recentlyFreed != nil && !recentlyFreed[candidate.ID] {
				continue
			}
			if allowed != nil && !allowed[candidate.ID] {
				continue
			}
			court = candidate
			break
		}
		if court == nil {
			continue
		}

		if err := s.courtRepo.UpdateState(ctx, exec, court.ID, models.CourtStateOccupied); err != nil {
			return promoted, mapCourtRepoError(err)
		}
		taken[court.ID] = true

		now := time.Now()
		match.CourtID = &court.ID
		match.WaitingForCourt = false
		match.Status = models.MatchStatusActive
		match.StartTime = &now
		if err := s.matchRepo.Update(ctx, exec, match); err != nil {
			return promoted, fmt.Errorf("failed to start waiting match %d: %w", match.ID, err)
		}
		promoted++

		s.log.Info("match promoted from court queue",
			"match_id", match.ID, "court_id", court.ID, "tournament_id", match.TournamentID)
		s.hub.BroadcastToRoom(strconv.Itoa(match.TournamentID), live.EventMatchUpdated, match)
		s.hub.BroadcastToRoom(strconv.Itoa(match.TournamentID), live.EventCourtUpdated, court)
	}
	return promoted, nil
}

// allowedCourtSet возвращает множество площадок, закреплённых за турниром,
// либо nil, если турнир не ограничивает площадки.
func (s *courtService) allowedCourtSet(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (map[int]bool, error) {
	ids, err := s.tournamentRepo.ListCourtIDs(ctx, exec, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournament courts: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	set := make(map[int]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

func mapCourtRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrCourtNotFound):
		return ErrCourtNotFound
	case errors.Is(err, repositories.ErrCourtNumberConflict):
		return ErrCourtNumberConflict
	case errors.Is(err, repositories.ErrCourtReferenced):
		return fmt.Errorf("%w: court is referenced by matches", ErrValidationFailed)
	default:
		return err
	}
}
