package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/pfc-club/petanque-platform/models"
	"github.com/pfc-club/petanque-platform/repositories"
)

const pinLength = 6

// TeamService управляет командами, игроками и командными PIN.
type TeamService interface {
	CreateTeam(ctx context.Context, name string) (*models.Team, error)
	GetTeam(ctx context.Context, id int) (*models.Team, error)
	ListTeams(ctx context.Context) ([]*models.Team, error)
	RenameTeam(ctx context.Context, id int, name string) error
	// RegeneratePIN выдаёт команде новый PIN (старый перестаёт действовать
	// немедленно) и возвращает его единственный раз.
	RegeneratePIN(ctx context.Context, id int) (string, error)
	DeleteTeam(ctx context.Context, id int) error

	AddPlayer(ctx context.Context, player *models.Player) (*models.Player, error)
	UpdatePlayer(ctx context.Context, player *models.Player) (*models.Player, error)
	RemovePlayer(ctx context.Context, id int) error
}

type teamService struct {
	txRunner   repositories.TxRunner
	teamRepo   repositories.TeamRepository
	playerRepo repositories.PlayerRepository
	log        *slog.Logger
}

func NewTeamService(
	txRunner repositories.TxRunner,
	teamRepo repositories.TeamRepository,
	playerRepo repositories.PlayerRepository,
	log *slog.Logger,
) TeamService {
	return &teamService{
		txRunner:   txRunner,
		teamRepo:   teamRepo,
		playerRepo: playerRepo,
		log:        log,
	}
}

func (s *teamService) CreateTeam(ctx context.Context, name string) (*models.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrTeamNameRequired
	}

	team := &models.Team{Name: name}
	// Коллизия PIN крайне маловероятна, но уникальный индекс её ловит;
	// в этом случае просто генерируем заново.
	for attempt := 0; attempt < 5; attempt++ {
		pin, err := GeneratePIN()
		if err != nil {
			return nil, err
		}
		team.PIN = pin
		err = s.teamRepo.Create(ctx, nil, team)
		if err == nil {
			s.log.Info("team created", "team_id", team.ID, "name", team.Name)
			return team, nil
		}
		if errors.Is(err, repositories.ErrTeamPINConflict) {
			continue
		}
		return nil, mapTeamRepoError(err)
	}
	return nil, fmt.Errorf("failed to generate a unique team PIN")
}

func (s *teamService) GetTeam(ctx context.Context, id int) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, mapTeamRepoError(err)
	}
	players, err := s.playerRepo.ListByTeam(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load players for team %d: %w", id, err)
	}
	for _, p := range players {
		team.Players = append(team.Players, *p)
	}
	return team, nil
}

func (s *teamService) ListTeams(ctx context.Context) ([]*models.Team, error) {
	teams, err := s.teamRepo.List(ctx, nil, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	return teams, nil
}

func (s *teamService) RenameTeam(ctx context.Context, id int, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrTeamNameRequired
	}
	if err := s.teamRepo.UpdateName(ctx, nil, id, name); err != nil {
		return mapTeamRepoError(err)
	}
	return nil
}

func (s *teamService) RegeneratePIN(ctx context.Context, id int) (string, error) {
	var pin string
	err := s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		if _, err := s.teamRepo.GetByID(ctx, exec, id); err != nil {
			return mapTeamRepoError(err)
		}
		for attempt := 0; attempt < 5; attempt++ {
			candidate, err := GeneratePIN()
			if err != nil {
				return err
			}
			err = s.teamRepo.UpdatePIN(ctx, exec, id, candidate)
			if err == nil {
				pin = candidate
				return nil
			}
			if !errors.Is(err, repositories.ErrTeamPINConflict) {
				return mapTeamRepoError(err)
			}
		}
		return fmt.Errorf("failed to generate a unique team PIN")
	})
	if err != nil {
		return "", err
	}
	s.log.Info("team PIN regenerated", "team_id", id)
	return pin, nil
}

func (s *teamService) DeleteTeam(ctx context.Context, id int) error {
	if err := s.teamRepo.Delete(ctx, nil, id); err != nil {
		return mapTeamRepoError(err)
	}
	return nil
}

func (s *teamService) AddPlayer(ctx context.Context, player *models.Player) (*models.Player, error) {
	if strings.TrimSpace(player.Name) == "" {
		return nil, fmt.Errorf("%w: player name is required", ErrValidationFailed)
	}
	if player.Rating < 0 {
		return nil, fmt.Errorf("%w: rating cannot be negative", ErrValidationFailed)
	}
	if err := s.playerRepo.Create(ctx, nil, player); err != nil {
		if errors.Is(err, repositories.ErrPlayerTeamInvalid) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to create player: %w", err)
	}
	return player, nil
}

func (s *teamService) UpdatePlayer(ctx context.Context, player *models.Player) (*models.Player, error) {
	if strings.TrimSpace(player.Name) == "" {
		return nil, fmt.Errorf("%w: player name is required", ErrValidationFailed)
	}
	if err := s.playerRepo.Update(ctx, nil, player); err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to update player: %w", err)
	}
	return player, nil
}

func (s *teamService) RemovePlayer(ctx context.Context, id int) error {
	if err := s.playerRepo.Delete(ctx, nil, id); err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return ErrPlayerNotFound
		}
		return fmt.Errorf("failed to delete player: %w", err)
	}
	return nil
}

// GeneratePIN возвращает криптографически случайный шестизначный PIN.
func GeneratePIN() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < pinLength; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("failed to generate PIN: %w", err)
	}
	return fmt.Sprintf("%0*d", pinLength, n), nil
}

func mapTeamRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrTeamNotFound):
		return ErrTeamNotFound
	case errors.Is(err, repositories.ErrTeamNameConflict):
		return ErrTeamNameConflict
	default:
		return err
	}
}
