package services

import (
	"context"
	"errors"
	"testing"

	"github.com/pfc-club/petanque-platform/models"
)

type courtFixture struct {
	courts      *memCourtRepo
	matches     *memMatchRepo
	tournaments *memTournamentRepo
	activations *memActivationRepo
	service     CourtService
}

func newCourtFixture(t *testing.T) *courtFixture {
	t.Helper()
	f := &courtFixture{
		courts:      newMemCourtRepo(),
		matches:     newMemMatchRepo(),
		tournaments: newMemTournamentRepo(),
		activations: newMemActivationRepo(),
	}
	f.service = NewCourtService(fakeTxRunner{}, f.courts, f.matches, f.tournaments,
		f.activations, testHub(), testLogger())
	return f
}

// queuedMatch кладёт в репозиторий полностью активированный матч,
// ожидающий площадку.
func (f *courtFixture) queuedMatch(t *testing.T, tournamentID int) *models.Match {
	t.Helper()
	ctx := context.Background()
	match := f.matches.add(&models.Match{
		TournamentID:    tournamentID,
		Team1ID:         1,
		Team2ID:         2,
		Status:          models.MatchStatusPendingVerification,
		WaitingForCourt: true,
	})
	for _, teamID := range []int{match.Team1ID, match.Team2ID} {
		err := f.activations.Create(ctx, nil, &models.MatchActivation{MatchID: match.ID, TeamID: teamID})
		if err != nil {
			t.Fatalf("activation: %v", err)
		}
	}
	return match
}

func TestAssignCourtPicksLowestFreeNumber(t *testing.T) {
	f := newCourtFixture(t)
	f.courts.add(models.CourtStateOccupied)
	second := f.courts.add(models.CourtStateFree)
	f.courts.add(models.CourtStateFree)

	tournament := f.tournaments.add(&models.Tournament{Name: "Open", IsActive: true})
	match := f.matches.add(&models.Match{TournamentID: tournament.ID, Team1ID: 1, Team2ID: 2})

	court, err := f.service.AssignCourtInTx(context.Background(), nil, match)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if court == nil || court.ID != second.ID {
		t.Fatalf("court = %v, want lowest free court %d", court, second.ID)
	}
	stored, _ := f.courts.GetByID(context.Background(), nil, second.ID)
	if stored.State != models.CourtStateOccupied {
		t.Fatalf("state = %s, want occupied", stored.State)
	}
}

func TestAssignCourtReturnsNilWhenNoneFree(t *testing.T) {
	f := newCourtFixture(t)
	f.courts.add(models.CourtStateOccupied)
	f.courts.add(models.CourtStateDisabled)

	match := f.matches.add(&models.Match{TournamentID: 1, Team1ID: 1, Team2ID: 2})
	court, err := f.service.AssignCourtInTx(context.Background(), nil, match)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if court != nil {
		t.Fatalf("court = %v, want nil", court)
	}
}

func TestAssignCourtSkipsCourtHeldByActiveMatch(t *testing.T) {
	f := newCourtFixture(t)
	// Площадка числится free, но активный матч её держит: данные разошлись.
	stale := f.courts.add(models.CourtStateFree)
	clean := f.courts.add(models.CourtStateFree)
	f.matches.add(&models.Match{
		TournamentID: 1, Team1ID: 5, Team2ID: 6,
		Status: models.MatchStatusActive, CourtID: &stale.ID,
	})

	match := f.matches.add(&models.Match{TournamentID: 1, Team1ID: 1, Team2ID: 2})
	court, err := f.service.AssignCourtInTx(context.Background(), nil, match)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if court == nil || court.ID != clean.ID {
		t.Fatalf("court = %v, want %d (held court must be skipped)", court, clean.ID)
	}
}

func TestAssignCourtPrefersProposedCourt(t *testing.T) {
	f := newCourtFixture(t)
	f.courts.add(models.CourtStateFree)
	wanted := f.courts.add(models.CourtStateFree)

	match := f.matches.add(&models.Match{
		TournamentID: 1, Team1ID: 1, Team2ID: 2,
		ProposedCourtID: &wanted.ID,
	})
	court, err := f.service.AssignCourtInTx(context.Background(), nil, match)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if court == nil || court.ID != wanted.ID {
		t.Fatalf("court = %v, want proposed court %d", court, wanted.ID)
	}
}

func TestAssignCourtHonoursTournamentRestriction(t *testing.T) {
	f := newCourtFixture(t)
	f.courts.add(models.CourtStateFree)
	reserved := f.courts.add(models.CourtStateFree)

	tournament := f.tournaments.add(&models.Tournament{Name: "Reserved", IsActive: true})
	if err := f.tournaments.AddCourt(context.Background(), nil, tournament.ID, reserved.ID); err != nil {
		t.Fatalf("add court: %v", err)
	}

	match := f.matches.add(&models.Match{TournamentID: tournament.ID, Team1ID: 1, Team2ID: 2})
	court, err := f.service.AssignCourtInTx(context.Background(), nil, match)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if court == nil || court.ID != reserved.ID {
		t.Fatalf("court = %v, want reserved court %d", court, reserved.ID)
	}
}

func TestAssignCourtFallsBackToGeneralCourtWhenReservedBusy(t *testing.T) {
	f := newCourtFixture(t)
	general := f.courts.add(models.CourtStateFree)
	reserved := f.courts.add(models.CourtStateOccupied)

	tournament := f.tournaments.add(&models.Tournament{Name: "Reserved", IsActive: true})
	if err := f.tournaments.AddCourt(context.Background(), nil, tournament.ID, reserved.ID); err != nil {
		t.Fatalf("add court: %v", err)
	}

	// Закреплённая площадка занята, но матч не должен ждать:
	// подходит любая свободная площадка общего парка.
	match := f.matches.add(&models.Match{TournamentID: tournament.ID, Team1ID: 1, Team2ID: 2})
	court, err := f.service.AssignCourtInTx(context.Background(), nil, match)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if court == nil || court.ID != general.ID {
		t.Fatalf("court = %v, want general court %d", court, general.ID)
	}
}

func TestAssignCourtKeepsExistingCourt(t *testing.T) {
	f := newCourtFixture(t)
	mine := f.courts.add(models.CourtStateOccupied)
	spare := f.courts.add(models.CourtStateFree)

	match := f.matches.add(&models.Match{
		TournamentID: 1, Team1ID: 1, Team2ID: 2,
		Status: models.MatchStatusActive, CourtID: &mine.ID,
	})
	court, err := f.service.AssignCourtInTx(context.Background(), nil, match)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if court == nil || court.ID != mine.ID {
		t.Fatalf("court = %v, want already assigned court %d", court, mine.ID)
	}
	untouched, _ := f.courts.GetByID(context.Background(), nil, spare.ID)
	if untouched.State != models.CourtStateFree {
		t.Fatalf("spare court state = %s, want free", untouched.State)
	}
}

func TestReleaseCourtPromotesOldestWaitingMatch(t *testing.T) {
	f := newCourtFixture(t)
	court := f.courts.add(models.CourtStateOccupied)
	tournament := f.tournaments.add(&models.Tournament{Name: "Open", IsActive: true})

	first := f.queuedMatch(t, tournament.ID)
	second := f.queuedMatch(t, tournament.ID)

	if err := f.service.ReleaseCourtInTx(context.Background(), nil, court.ID); err != nil {
		t.Fatalf("release: %v", err)
	}

	promoted, _ := f.matches.GetByID(context.Background(), nil, first.ID)
	if promoted.Status != models.MatchStatusActive {
		t.Fatalf("oldest waiting match status = %s, want active", promoted.Status)
	}
	if promoted.CourtID == nil || *promoted.CourtID != court.ID {
		t.Fatalf("court_id = %v, want %d", promoted.CourtID, court.ID)
	}
	still, _ := f.matches.GetByID(context.Background(), nil, second.ID)
	if !still.WaitingForCourt {
		t.Fatal("second match must stay in the queue")
	}
}

func TestReleaseCourtStartsAtMostOneMatch(t *testing.T) {
	f := newCourtFixture(t)
	court := f.courts.add(models.CourtStateOccupied)
	idle := f.courts.add(models.CourtStateFree)
	tournament := f.tournaments.add(&models.Tournament{Name: "Open", IsActive: true})

	first := f.queuedMatch(t, tournament.ID)
	second := f.queuedMatch(t, tournament.ID)

	if err := f.service.ReleaseCourtInTx(context.Background(), nil, court.ID); err != nil {
		t.Fatalf("release: %v", err)
	}

	// Освобождение отдаёт только свою площадку: вторая свободная площадка
	// остаётся страховочному проходу.
	promoted, _ := f.matches.GetByID(context.Background(), nil, first.ID)
	if promoted.CourtID == nil || *promoted.CourtID != court.ID {
		t.Fatalf("court_id = %v, want freed court %d", promoted.CourtID, court.ID)
	}
	still, _ := f.matches.GetByID(context.Background(), nil, second.ID)
	if !still.WaitingForCourt {
		t.Fatal("second match must stay in the queue")
	}
	spare, _ := f.courts.GetByID(context.Background(), nil, idle.ID)
	if spare.State != models.CourtStateFree {
		t.Fatalf("idle court state = %s, want free", spare.State)
	}
}

func TestPromoteSkipsPartiallyActivatedMatch(t *testing.T) {
	f := newCourtFixture(t)
	court := f.courts.add(models.CourtStateOccupied)
	tournament := f.tournaments.add(&models.Tournament{Name: "Open", IsActive: true})

	// Матч в очереди, но активирован только одной командой.
	half := f.matches.add(&models.Match{
		TournamentID: tournament.ID, Team1ID: 1, Team2ID: 2,
		Status: models.MatchStatusPendingVerification, WaitingForCourt: true,
	})
	err := f.activations.Create(context.Background(), nil, &models.MatchActivation{MatchID: half.ID, TeamID: 1})
	if err != nil {
		t.Fatalf("activation: %v", err)
	}
	full := f.queuedMatch(t, tournament.ID)

	if err := f.service.ReleaseCourtInTx(context.Background(), nil, court.ID); err != nil {
		t.Fatalf("release: %v", err)
	}

	skipped, _ := f.matches.GetByID(context.Background(), nil, half.ID)
	if skipped.Status != models.MatchStatusPendingVerification {
		t.Fatalf("half-activated match must not start, got %s", skipped.Status)
	}
	promoted, _ := f.matches.GetByID(context.Background(), nil, full.ID)
	if promoted.Status != models.MatchStatusActive {
		t.Fatalf("fully activated match status = %s, want active", promoted.Status)
	}
}

func TestBackfillWaitingFillsAllFreeCourts(t *testing.T) {
	f := newCourtFixture(t)
	f.courts.add(models.CourtStateFree)
	f.courts.add(models.CourtStateFree)
	tournament := f.tournaments.add(&models.Tournament{Name: "Open", IsActive: true})

	f.queuedMatch(t, tournament.ID)
	f.queuedMatch(t, tournament.ID)
	f.queuedMatch(t, tournament.ID)

	promoted, err := f.service.BackfillWaiting(context.Background())
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if promoted != 2 {
		t.Fatalf("promoted = %d, want 2 (one per free court)", promoted)
	}

	waiting, _ := f.matches.ListWaitingForCourt(context.Background(), nil)
	if len(waiting) != 1 {
		t.Fatalf("queue length = %d, want 1", len(waiting))
	}
}

func TestSetCourtStateRefusesToDisableOccupied(t *testing.T) {
	f := newCourtFixture(t)
	court := f.courts.add(models.CourtStateOccupied)

	err := f.service.SetCourtState(context.Background(), court.ID, models.CourtStateDisabled)
	if !errors.Is(err, ErrCourtOccupied) {
		t.Fatalf("err = %v, want ErrCourtOccupied", err)
	}
}

func TestCreateCourtRejectsDuplicateNumber(t *testing.T) {
	f := newCourtFixture(t)
	existing := f.courts.add(models.CourtStateFree)

	_, err := f.service.CreateCourt(context.Background(), &models.Court{Number: existing.Number})
	if !errors.Is(err, ErrCourtNumberConflict) {
		t.Fatalf("err = %v, want ErrCourtNumberConflict", err)
	}
}
