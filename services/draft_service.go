package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pfc-club/petanque-platform/models"
	"github.com/pfc-club/petanque-platform/pairing"
	"github.com/pfc-club/petanque-platform/repositories"
)

// DraftMethod задаёт способ формирования mêlée-составов.
type DraftMethod string

const (
	DraftMethodBalance DraftMethod = "balance"
	DraftMethodSnake   DraftMethod = "snake"
)

func (m DraftMethod) Valid() bool {
	return m == DraftMethodBalance || m == DraftMethodSnake
}

// DraftInput описывает запрос на жеребьёвку составов. Число команд
// выводится из размера пула: len(PlayerIDs) / TeamSize.
type DraftInput struct {
	Method     DraftMethod
	TeamSize   int
	PlayerIDs  []int
	NamePrefix string
}

// DraftResult содержит созданные временные команды и игроков, не
// поместившихся в составы при неровном делении пула.
type DraftResult struct {
	Teams             []*models.Team `json:"teams"`
	LeftoverPlayerIDs []int          `json:"leftover_player_ids"`
}

// DraftService формирует временные mêlée-составы из общего пула игроков
// и восстанавливает исходные команды после турнира. Игрок помнит свою
// исходную команду в OriginalTeamID на время жеребьёвки.
type DraftService interface {
	// PerformDraft создаёт len(PlayerIDs)/TeamSize временных команд и
	// распределяет по ним игроков выбранным методом. Остаток пула не
	// распределяется и возвращается в LeftoverPlayerIDs. Вся жеребьёвка
	// выполняется одной транзакцией.
	PerformDraft(ctx context.Context, input DraftInput) (*DraftResult, error)
	// TeardownDraft возвращает игроков в исходные команды и удаляет
	// временные составы.
	TeardownDraft(ctx context.Context) error
}

type draftService struct {
	txRunner   repositories.TxRunner
	teamRepo   repositories.TeamRepository
	playerRepo repositories.PlayerRepository
	log        *slog.Logger
}

func NewDraftService(
	txRunner repositories.TxRunner,
	teamRepo repositories.TeamRepository,
	playerRepo repositories.PlayerRepository,
	log *slog.Logger,
) DraftService {
	return &draftService{
		txRunner:   txRunner,
		teamRepo:   teamRepo,
		playerRepo: playerRepo,
		log:        log,
	}
}

func (s *draftService) PerformDraft(ctx context.Context, input DraftInput) (*DraftResult, error) {
	if !input.Method.Valid() {
		return nil, fmt.Errorf("%w: unknown draft method %q", ErrValidationFailed, input.Method)
	}
	if input.TeamSize < 1 {
		return nil, fmt.Errorf("%w: team size must be at least one", ErrValidationFailed)
	}
	if len(input.PlayerIDs)/input.TeamSize < 2 {
		return nil, ErrNotEnoughPlayers
	}
	prefix := input.NamePrefix
	if prefix == "" {
		prefix = "Mêlée"
	}

	result := &DraftResult{LeftoverPlayerIDs: []int{}}
	err := s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		existing, err := s.teamRepo.List(ctx, exec, true)
		if err != nil {
			return fmt.Errorf("failed to list drafted teams: %w", err)
		}
		if len(existing) > 0 {
			return ErrDraftAlreadyPerformed
		}

		players, err := s.playerRepo.GetByIDs(ctx, exec, input.PlayerIDs)
		if err != nil {
			return fmt.Errorf("failed to load draft pool: %w", err)
		}
		if len(players) != len(input.PlayerIDs) {
			return fmt.Errorf("%w: some players in the pool do not exist", ErrValidationFailed)
		}

		pool := make([]pairing.DraftPlayer, len(players))
		for i, p := range players {
			pool[i] = pairing.DraftPlayer{PlayerID: p.ID, Rating: p.Rating}
		}
		draftable, leftover, numTeams := pairing.SplitPool(pool, input.TeamSize)
		result.LeftoverPlayerIDs = make([]int, 0, len(leftover))
		for _, p := range leftover {
			result.LeftoverPlayerIDs = append(result.LeftoverPlayerIDs, p.PlayerID)
		}

		var buckets [][]int
		switch input.Method {
		case DraftMethodBalance:
			buckets, err = pairing.BalanceDraft(draftable, numTeams)
		case DraftMethodSnake:
			buckets, err = pairing.SnakeDraft(draftable, numTeams)
		}
		if err != nil {
			if errors.Is(err, pairing.ErrNotEnoughTeams) {
				return ErrNotEnoughPlayers
			}
			return err
		}

		result.Teams = make([]*models.Team, 0, numTeams)
		for i, bucket := range buckets {
			pin, err := GeneratePIN()
			if err != nil {
				return err
			}
			team := &models.Team{
				Name:      fmt.Sprintf("%s %d", prefix, i+1),
				PIN:       pin,
				IsDrafted: true,
			}
			if err := s.teamRepo.Create(ctx, exec, team); err != nil {
				return mapTeamRepoError(err)
			}
			for _, playerID := range bucket {
				if err := s.playerRepo.Reassign(ctx, exec, playerID, team.ID, true); err != nil {
					return fmt.Errorf("failed to assign player %d to %s: %w", playerID, team.Name, err)
				}
			}
			result.Teams = append(result.Teams, team)
		}
		return nil
	})
	if err != nil {
		return nil, translateTxError(err)
	}

	s.log.Info("draft performed", "method", string(input.Method),
		"teams", len(result.Teams), "players", len(input.PlayerIDs),
		"leftover", len(result.LeftoverPlayerIDs))
	return result, nil
}

func (s *draftService) TeardownDraft(ctx context.Context) error {
	var restored int
	err := s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		drafted, err := s.teamRepo.List(ctx, exec, true)
		if err != nil {
			return fmt.Errorf("failed to list drafted teams: %w", err)
		}
		if len(drafted) == 0 {
			return ErrDraftNotPerformed
		}

		for _, team := range drafted {
			players, err := s.playerRepo.ListByTeam(ctx, exec, team.ID)
			if err != nil {
				return fmt.Errorf("failed to list players of %s: %w", team.Name, err)
			}
			for _, p := range players {
				if p.OriginalTeamID == nil {
					// Игрок был создан уже внутри временной команды,
					// возвращать его некуда.
					continue
				}
				if err := s.playerRepo.Reassign(ctx, exec, p.ID, *p.OriginalTeamID, false); err != nil {
					return fmt.Errorf("failed to restore player %d: %w", p.ID, err)
				}
				restored++
			}
			if err := s.teamRepo.Delete(ctx, exec, team.ID); err != nil {
				return mapTeamRepoError(err)
			}
		}
		return nil
	})
	if err != nil {
		return translateTxError(err)
	}

	s.log.Info("draft torn down", "players_restored", restored)
	return nil
}
