package services

import (
	"context"
	"errors"
	"testing"

	"github.com/pfc-club/petanque-platform/models"
)

const (
	team1PIN = "111111"
	team2PIN = "222222"
)

// matchFixture собирает матч двух команд с полным набором in-memory
// зависимостей. Одна свободная площадка, стандартный турнир.
type matchFixture struct {
	teams           *memTeamRepo
	matches         *memMatchRepo
	courts          *memCourtRepo
	activations     *memActivationRepo
	results         *memResultRepo
	tournaments     *memTournamentRepo
	tournamentTeams *memTournamentTeamRepo
	rounds          *memRoundRepo

	match   *models.Match
	team1   *models.Team
	team2   *models.Team
	service MatchService
	courtSv CourtService
}

func newMatchFixture(t *testing.T) *matchFixture {
	t.Helper()

	f := &matchFixture{
		teams:           newMemTeamRepo(),
		matches:         newMemMatchRepo(),
		courts:          newMemCourtRepo(),
		activations:     newMemActivationRepo(),
		results:         newMemResultRepo(),
		tournaments:     newMemTournamentRepo(),
		tournamentTeams: newMemTournamentTeamRepo(),
		rounds:          newMemRoundRepo(),
	}

	f.team1 = f.teams.add(&models.Team{Name: "Les Boulistes", PIN: team1PIN})
	f.team2 = f.teams.add(&models.Team{Name: "Carreau Club", PIN: team2PIN})
	tournament := f.tournaments.add(&models.Tournament{
		Name:     "Open de Printemps",
		Format:   models.FormatSwiss,
		IsActive: true,
	})
	f.tournamentTeams.add(&models.TournamentTeam{
		TournamentID: tournament.ID, TeamID: f.team1.ID, IsActive: true,
	})
	f.tournamentTeams.add(&models.TournamentTeam{
		TournamentID: tournament.ID, TeamID: f.team2.ID, IsActive: true,
	})
	f.courts.add(models.CourtStateFree)

	round := &models.Round{TournamentID: tournament.ID, Number: 1}
	if err := f.rounds.CreateRound(context.Background(), nil, round); err != nil {
		t.Fatalf("create round: %v", err)
	}
	f.match = f.matches.add(&models.Match{
		TournamentID: tournament.ID,
		RoundID:      &round.ID,
		Team1ID:      f.team1.ID,
		Team2ID:      f.team2.ID,
		Status:       models.MatchStatusPending,
	})

	hub := testHub()
	log := testLogger()
	f.courtSv = NewCourtService(fakeTxRunner{}, f.courts, f.matches, f.tournaments, f.activations, hub, log)
	f.service = NewMatchService(fakeTxRunner{}, f.matches, f.teams, f.activations, f.results,
		f.tournamentTeams, f.rounds, f.courtSv, nil, hub, log)
	return f
}

// runToActive проводит матч через обе активации.
func (f *matchFixture) runToActive(t *testing.T) *models.Match {
	t.Helper()
	ctx := context.Background()
	if _, err := f.service.Initiate(ctx, f.match.ID, ActivationInput{TeamID: f.team1.ID, PIN: team1PIN}); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	match, err := f.service.ValidateAndActivate(ctx, f.match.ID, ActivationInput{TeamID: f.team2.ID, PIN: team2PIN})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	return match
}

func TestInitiateMovesMatchToPendingVerification(t *testing.T) {
	f := newMatchFixture(t)

	match, err := f.service.Initiate(context.Background(), f.match.ID, ActivationInput{
		TeamID:    f.team1.ID,
		PIN:       team1PIN,
		PlayerIDs: []int{10, 11},
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if match.Status != models.MatchStatusPendingVerification {
		t.Fatalf("status = %s, want pending_verification", match.Status)
	}

	players, _ := f.activations.ListPlayersByMatch(context.Background(), nil, f.match.ID)
	if len(players) != 2 {
		t.Fatalf("roster size = %d, want 2", len(players))
	}
}

func TestInitiateRejectsWrongPIN(t *testing.T) {
	f := newMatchFixture(t)

	_, err := f.service.Initiate(context.Background(), f.match.ID, ActivationInput{TeamID: f.team1.ID, PIN: "000000"})
	if !errors.Is(err, ErrInvalidPIN) {
		t.Fatalf("err = %v, want ErrInvalidPIN", err)
	}
	match, _ := f.matches.GetByID(context.Background(), nil, f.match.ID)
	if match.Status != models.MatchStatusPending {
		t.Fatalf("failed PIN must not advance the match, got %s", match.Status)
	}
}

func TestInitiateRejectsForeignTeam(t *testing.T) {
	f := newMatchFixture(t)
	outsider := f.teams.add(&models.Team{Name: "Outsiders", PIN: "999999"})

	_, err := f.service.Initiate(context.Background(), f.match.ID, ActivationInput{TeamID: outsider.ID, PIN: "999999"})
	if !errors.Is(err, ErrTeamNotInMatch) {
		t.Fatalf("err = %v, want ErrTeamNotInMatch", err)
	}
}

func TestRepeatedActivationIsIdempotent(t *testing.T) {
	f := newMatchFixture(t)
	ctx := context.Background()

	if _, err := f.service.Initiate(ctx, f.match.ID, ActivationInput{TeamID: f.team1.ID, PIN: team1PIN}); err != nil {
		t.Fatalf("initiate: %v", err)
	}

	// Повторная активация инициатором ничего не меняет и не даёт ошибки.
	match, err := f.service.ValidateAndActivate(ctx, f.match.ID, ActivationInput{TeamID: f.team1.ID, PIN: team1PIN})
	if err != nil {
		t.Fatalf("repeat by initiator: %v", err)
	}
	if match.Status != models.MatchStatusPendingVerification {
		t.Fatalf("status = %s, want pending_verification", match.Status)
	}
	activations, _ := f.activations.ListByMatch(ctx, nil, f.match.ID)
	if len(activations) != 1 {
		t.Fatalf("activations = %d, want 1", len(activations))
	}

	if _, err := f.service.ValidateAndActivate(ctx, f.match.ID, ActivationInput{TeamID: f.team2.ID, PIN: team2PIN}); err != nil {
		t.Fatalf("validate: %v", err)
	}

	// Повтор после старта матча тоже ничего не меняет.
	match, err = f.service.ValidateAndActivate(ctx, f.match.ID, ActivationInput{TeamID: f.team2.ID, PIN: team2PIN})
	if err != nil {
		t.Fatalf("repeat after activation: %v", err)
	}
	if match.Status != models.MatchStatusActive {
		t.Fatalf("status = %s, want active", match.Status)
	}
}

func TestValidateActivatesAndAssignsCourt(t *testing.T) {
	f := newMatchFixture(t)
	match := f.runToActive(t)

	if match.Status != models.MatchStatusActive {
		t.Fatalf("status = %s, want active", match.Status)
	}
	if match.CourtID == nil {
		t.Fatal("active match must hold a court")
	}
	if match.StartTime == nil {
		t.Fatal("active match must have a start time")
	}
	court, _ := f.courts.GetByID(context.Background(), nil, *match.CourtID)
	if court.State != models.CourtStateOccupied {
		t.Fatalf("court state = %s, want occupied", court.State)
	}
}

func TestValidateQueuesWhenNoCourtFree(t *testing.T) {
	f := newMatchFixture(t)
	ctx := context.Background()
	// Единственную площадку выключаем.
	f.courts.courts[1].State = models.CourtStateDisabled

	if _, err := f.service.Initiate(ctx, f.match.ID, ActivationInput{TeamID: f.team1.ID, PIN: team1PIN}); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	match, err := f.service.ValidateAndActivate(ctx, f.match.ID, ActivationInput{TeamID: f.team2.ID, PIN: team2PIN})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if match.Status != models.MatchStatusPendingVerification {
		t.Fatalf("status = %s, want pending_verification while queued", match.Status)
	}
	if !match.WaitingForCourt {
		t.Fatal("queued match must be flagged waiting_for_court")
	}
	if match.CourtID != nil {
		t.Fatal("queued match must not hold a court")
	}
}

func TestQueuedMatchStartsWhenCourtFreed(t *testing.T) {
	f := newMatchFixture(t)
	ctx := context.Background()
	f.courts.courts[1].State = models.CourtStateDisabled

	if _, err := f.service.Initiate(ctx, f.match.ID, ActivationInput{TeamID: f.team1.ID, PIN: team1PIN}); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := f.service.ValidateAndActivate(ctx, f.match.ID, ActivationInput{TeamID: f.team2.ID, PIN: team2PIN}); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if err := f.courtSv.SetCourtState(ctx, 1, models.CourtStateFree); err != nil {
		t.Fatalf("free court: %v", err)
	}

	match, _ := f.matches.GetByID(ctx, nil, f.match.ID)
	if match.Status != models.MatchStatusActive {
		t.Fatalf("status = %s, want active after court freed", match.Status)
	}
	if match.CourtID == nil || *match.CourtID != 1 {
		t.Fatalf("court_id = %v, want 1", match.CourtID)
	}
}

func TestSubmitResultValidation(t *testing.T) {
	f := newMatchFixture(t)
	f.runToActive(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		s1, s2 int
	}{
		{"draw", 13, 13},
		{"negative", -1, 13},
		{"above maximum", 14, 7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.SubmitResult(ctx, f.match.ID, ResultInput{
				TeamID: f.team1.ID, PIN: team1PIN, Team1Score: tc.s1, Team2Score: tc.s2,
			})
			if !errors.Is(err, ErrInvalidScore) {
				t.Fatalf("err = %v, want ErrInvalidScore", err)
			}
		})
	}
}

func TestSubmitResultAcceptsConcededScore(t *testing.T) {
	f := newMatchFixture(t)
	f.runToActive(t)

	// Партию можно сдать до 13: счёт 12:10 легален.
	match, err := f.service.SubmitResult(context.Background(), f.match.ID, ResultInput{
		TeamID: f.team1.ID, PIN: team1PIN, Team1Score: 12, Team2Score: 10,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if match.Status != models.MatchStatusWaitingValidation {
		t.Fatalf("status = %s, want waiting_validation", match.Status)
	}
}

func TestSubmitResultMovesToWaitingValidation(t *testing.T) {
	f := newMatchFixture(t)
	f.runToActive(t)

	match, err := f.service.SubmitResult(context.Background(), f.match.ID, ResultInput{
		TeamID: f.team1.ID, PIN: team1PIN, Team1Score: 13, Team2Score: 7,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if match.Status != models.MatchStatusWaitingValidation {
		t.Fatalf("status = %s, want waiting_validation", match.Status)
	}
	if match.Team1Score == nil || *match.Team1Score != 13 {
		t.Fatalf("team1 score = %v, want 13", match.Team1Score)
	}
}

func TestConfirmResultRejectsSubmitter(t *testing.T) {
	f := newMatchFixture(t)
	f.runToActive(t)
	ctx := context.Background()

	if _, err := f.service.SubmitResult(ctx, f.match.ID, ResultInput{
		TeamID: f.team1.ID, PIN: team1PIN, Team1Score: 13, Team2Score: 7,
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	_, err := f.service.ConfirmResult(ctx, f.match.ID, f.team1.ID, team1PIN, true)
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("submitter confirming own result: err = %v, want ErrInvalidStateTransition", err)
	}
}

func TestConfirmResultCompletesMatch(t *testing.T) {
	f := newMatchFixture(t)
	f.runToActive(t)
	ctx := context.Background()

	if _, err := f.service.SubmitResult(ctx, f.match.ID, ResultInput{
		TeamID: f.team1.ID, PIN: team1PIN, Team1Score: 13, Team2Score: 7,
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	match, err := f.service.ConfirmResult(ctx, f.match.ID, f.team2.ID, team2PIN, true)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if match.Status != models.MatchStatusCompleted {
		t.Fatalf("status = %s, want completed", match.Status)
	}
	if match.WinnerID == nil || *match.WinnerID != f.team1.ID {
		t.Fatalf("winner = %v, want team %d", match.WinnerID, f.team1.ID)
	}
	if match.EndTime == nil {
		t.Fatal("completed match must have an end time")
	}

	// Победителю +3, проигравшему 0, пара отмечена сыгранной.
	winner, _ := f.tournamentTeams.GetByTournamentAndTeam(ctx, nil, match.TournamentID, f.team1.ID)
	loser, _ := f.tournamentTeams.GetByTournamentAndTeam(ctx, nil, match.TournamentID, f.team2.ID)
	if winner.SwissPoints != 3 || loser.SwissPoints != 0 {
		t.Fatalf("points = %d/%d, want 3/0", winner.SwissPoints, loser.SwissPoints)
	}
	if winner.OpponentsPlayed[f.team2.ID] != 1 {
		t.Fatalf("opponents_played = %v, want one meeting with team %d", winner.OpponentsPlayed, f.team2.ID)
	}

	// Площадка освобождена, тур с единственным матчем закрыт.
	court, _ := f.courts.GetByID(ctx, nil, 1)
	if court.State != models.CourtStateFree {
		t.Fatalf("court state = %s, want free", court.State)
	}
	round, _ := f.rounds.GetRoundByID(ctx, nil, *match.RoundID)
	if !round.IsCompleted {
		t.Fatal("round with all matches finished must be completed")
	}
}

func TestConfirmResultDisagreementRevertsToActive(t *testing.T) {
	f := newMatchFixture(t)
	f.runToActive(t)
	ctx := context.Background()

	if _, err := f.service.SubmitResult(ctx, f.match.ID, ResultInput{
		TeamID: f.team1.ID, PIN: team1PIN, Team1Score: 13, Team2Score: 7,
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	match, err := f.service.ConfirmResult(ctx, f.match.ID, f.team2.ID, team2PIN, false)
	if err != nil {
		t.Fatalf("dispute: %v", err)
	}

	if match.Status != models.MatchStatusActive {
		t.Fatalf("status = %s, want active after dispute", match.Status)
	}
	if match.Team1Score != nil || match.Team2Score != nil {
		t.Fatal("disputed score must be cleared")
	}
	if _, err := f.service.GetResult(ctx, f.match.ID); !errors.Is(err, ErrResultNotFound) {
		t.Fatalf("disputed result must be removed, err = %v", err)
	}

	// Повторная подача возможна.
	if _, err := f.service.SubmitResult(ctx, f.match.ID, ResultInput{
		TeamID: f.team2.ID, PIN: team2PIN, Team1Score: 11, Team2Score: 13,
	}); err != nil {
		t.Fatalf("resubmit after dispute: %v", err)
	}
}

func TestCancelMatchFreesCourt(t *testing.T) {
	f := newMatchFixture(t)
	f.runToActive(t)
	ctx := context.Background()

	match, err := f.service.CancelMatch(ctx, f.match.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if match.Status != models.MatchStatusCancelled {
		t.Fatalf("status = %s, want cancelled", match.Status)
	}
	court, _ := f.courts.GetByID(ctx, nil, 1)
	if court.State != models.CourtStateFree {
		t.Fatalf("court state = %s, want free after cancel", court.State)
	}

	if _, err := f.service.CancelMatch(ctx, f.match.ID); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("cancelling a cancelled match: err = %v, want ErrInvalidStateTransition", err)
	}
}

func TestSubmitResultRequiresActiveMatch(t *testing.T) {
	f := newMatchFixture(t)

	_, err := f.service.SubmitResult(context.Background(), f.match.ID, ResultInput{
		TeamID: f.team1.ID, PIN: team1PIN, Team1Score: 13, Team2Score: 5,
	})
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("err = %v, want ErrInvalidStateTransition", err)
	}
}
