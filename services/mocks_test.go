package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/pfc-club/petanque-platform/live"
	"github.com/pfc-club/petanque-platform/models"
	"github.com/pfc-club/petanque-platform/repositories"
)

// fakeTxRunner выполняет fn без настоящей транзакции: in-memory моки
// и так последовательны.
type fakeTxRunner struct{}

func (fakeTxRunner) RunInTx(_ context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testHub() *live.Hub {
	return live.NewHub(testLogger())
}

type memTeamRepo struct {
	teams  map[int]*models.Team
	nextID int
}

func newMemTeamRepo() *memTeamRepo {
	return &memTeamRepo{teams: map[int]*models.Team{}, nextID: 1}
}

func (r *memTeamRepo) add(team *models.Team) *models.Team {
	team.ID = r.nextID
	r.nextID++
	r.teams[team.ID] = team
	return team
}

func (r *memTeamRepo) Create(_ context.Context, _ repositories.SQLExecutor, team *models.Team) error {
	for _, existing := range r.teams {
		if existing.PIN == team.PIN {
			return repositories.ErrTeamPINConflict
		}
		if existing.Name == team.Name {
			return repositories.ErrTeamNameConflict
		}
	}
	r.add(team)
	return nil
}

func (r *memTeamRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Team, error) {
	team, ok := r.teams[id]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	copied := *team
	return &copied, nil
}

func (r *memTeamRepo) List(_ context.Context, _ repositories.SQLExecutor, draftedOnly bool) ([]*models.Team, error) {
	var out []*models.Team
	for _, team := range r.teams {
		if draftedOnly && !team.IsDrafted {
			continue
		}
		copied := *team
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memTeamRepo) UpdateName(_ context.Context, _ repositories.SQLExecutor, id int, name string) error {
	team, ok := r.teams[id]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	team.Name = name
	return nil
}

func (r *memTeamRepo) UpdatePIN(_ context.Context, _ repositories.SQLExecutor, id int, pin string) error {
	team, ok := r.teams[id]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	team.PIN = pin
	return nil
}

func (r *memTeamRepo) Delete(_ context.Context, _ repositories.SQLExecutor, id int) error {
	if _, ok := r.teams[id]; !ok {
		return repositories.ErrTeamNotFound
	}
	delete(r.teams, id)
	return nil
}

type memPlayerRepo struct {
	players map[int]*models.Player
	nextID  int
}

func newMemPlayerRepo() *memPlayerRepo {
	return &memPlayerRepo{players: map[int]*models.Player{}, nextID: 1}
}

func (r *memPlayerRepo) add(p *models.Player) *models.Player {
	p.ID = r.nextID
	r.nextID++
	r.players[p.ID] = p
	return p
}

func (r *memPlayerRepo) Create(_ context.Context, _ repositories.SQLExecutor, p *models.Player) error {
	r.add(p)
	return nil
}

func (r *memPlayerRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Player, error) {
	p, ok := r.players[id]
	if !ok {
		return nil, repositories.ErrPlayerNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *memPlayerRepo) GetByIDs(_ context.Context, _ repositories.SQLExecutor, ids []int) ([]*models.Player, error) {
	var out []*models.Player
	for _, id := range ids {
		if p, ok := r.players[id]; ok {
			copied := *p
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memPlayerRepo) ListByTeam(_ context.Context, _ repositories.SQLExecutor, teamID int) ([]*models.Player, error) {
	var out []*models.Player
	for _, p := range r.players {
		if p.TeamID == teamID {
			copied := *p
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memPlayerRepo) Update(_ context.Context, _ repositories.SQLExecutor, p *models.Player) error {
	if _, ok := r.players[p.ID]; !ok {
		return repositories.ErrPlayerNotFound
	}
	copied := *p
	r.players[p.ID] = &copied
	return nil
}

func (r *memPlayerRepo) Reassign(_ context.Context, _ repositories.SQLExecutor, playerID, teamID int, keepOriginal bool) error {
	p, ok := r.players[playerID]
	if !ok {
		return repositories.ErrPlayerNotFound
	}
	if keepOriginal {
		if p.OriginalTeamID == nil {
			original := p.TeamID
			p.OriginalTeamID = &original
		}
	} else {
		p.OriginalTeamID = nil
	}
	p.TeamID = teamID
	return nil
}

func (r *memPlayerRepo) Delete(_ context.Context, _ repositories.SQLExecutor, id int) error {
	if _, ok := r.players[id]; !ok {
		return repositories.ErrPlayerNotFound
	}
	delete(r.players, id)
	return nil
}

type memCourtRepo struct {
	courts map[int]*models.Court
	nextID int
}

func newMemCourtRepo() *memCourtRepo {
	return &memCourtRepo{courts: map[int]*models.Court{}, nextID: 1}
}

func (r *memCourtRepo) add(state models.CourtState) *models.Court {
	court := &models.Court{ID: r.nextID, Number: r.nextID, State: state}
	r.nextID++
	r.courts[court.ID] = court
	return court
}

func (r *memCourtRepo) Create(_ context.Context, _ repositories.SQLExecutor, court *models.Court) error {
	for _, existing := range r.courts {
		if existing.Number == court.Number {
			return repositories.ErrCourtNumberConflict
		}
	}
	court.ID = r.nextID
	r.nextID++
	r.courts[court.ID] = court
	return nil
}

func (r *memCourtRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Court, error) {
	court, ok := r.courts[id]
	if !ok {
		return nil, repositories.ErrCourtNotFound
	}
	copied := *court
	return &copied, nil
}

func (r *memCourtRepo) List(_ context.Context, _ repositories.SQLExecutor) ([]*models.Court, error) {
	var out []*models.Court
	for _, court := range r.courts {
		copied := *court
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (r *memCourtRepo) ListAssignableForUpdate(_ context.Context, _ repositories.SQLExecutor) ([]*models.Court, error) {
	var out []*models.Court
	for _, court := range r.courts {
		if court.State == models.CourtStateFree {
			copied := *court
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (r *memCourtRepo) UpdateState(_ context.Context, _ repositories.SQLExecutor, id int, state models.CourtState) error {
	court, ok := r.courts[id]
	if !ok {
		return repositories.ErrCourtNotFound
	}
	court.State = state
	return nil
}

func (r *memCourtRepo) Update(_ context.Context, _ repositories.SQLExecutor, court *models.Court) error {
	if _, ok := r.courts[court.ID]; !ok {
		return repositories.ErrCourtNotFound
	}
	copied := *court
	r.courts[court.ID] = &copied
	return nil
}

func (r *memCourtRepo) Delete(_ context.Context, _ repositories.SQLExecutor, id int) error {
	if _, ok := r.courts[id]; !ok {
		return repositories.ErrCourtNotFound
	}
	delete(r.courts, id)
	return nil
}

type memMatchRepo struct {
	matches map[int]*models.Match
	nextID  int
}

func newMemMatchRepo() *memMatchRepo {
	return &memMatchRepo{matches: map[int]*models.Match{}, nextID: 1}
}

func (r *memMatchRepo) add(match *models.Match) *models.Match {
	match.ID = r.nextID
	r.nextID++
	match.CreatedAt = time.Now()
	r.matches[match.ID] = match
	return match
}

func (r *memMatchRepo) Create(_ context.Context, _ repositories.SQLExecutor, match *models.Match) error {
	if match.Team1ID == match.Team2ID {
		return repositories.ErrMatchSameTeams
	}
	r.add(match)
	return nil
}

func (r *memMatchRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Match, error) {
	match, ok := r.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	copied := *match
	return &copied, nil
}

func (r *memMatchRepo) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	return r.GetByID(ctx, exec, id)
}

func (r *memMatchRepo) ListByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int, status *models.MatchStatus) ([]*models.Match, error) {
	var out []*models.Match
	for _, match := range r.matches {
		if match.TournamentID != tournamentID {
			continue
		}
		if status != nil && match.Status != *status {
			continue
		}
		copied := *match
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memMatchRepo) ListByRound(_ context.Context, _ repositories.SQLExecutor, roundID int) ([]*models.Match, error) {
	var out []*models.Match
	for _, match := range r.matches {
		if match.RoundID != nil && *match.RoundID == roundID {
			copied := *match
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memMatchRepo) ListWaitingForCourt(_ context.Context, _ repositories.SQLExecutor) ([]*models.Match, error) {
	var out []*models.Match
	for _, match := range r.matches {
		if match.Status == models.MatchStatusPendingVerification && match.WaitingForCourt {
			copied := *match
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memMatchRepo) CourtIDsHeldByActive(_ context.Context, _ repositories.SQLExecutor, excludeMatchID int) (map[int]bool, error) {
	held := map[int]bool{}
	for _, match := range r.matches {
		if match.ID == excludeMatchID || match.Status != models.MatchStatusActive || match.CourtID == nil {
			continue
		}
		held[*match.CourtID] = true
	}
	return held, nil
}

func (r *memMatchRepo) Update(_ context.Context, _ repositories.SQLExecutor, match *models.Match) error {
	stored, ok := r.matches[match.ID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	copied := *match
	copied.CreatedAt = stored.CreatedAt
	r.matches[match.ID] = &copied
	return nil
}

type memActivationRepo struct {
	activations []*models.MatchActivation
	players     []*models.MatchPlayer
	nextID      int
}

func newMemActivationRepo() *memActivationRepo {
	return &memActivationRepo{nextID: 1}
}

func (r *memActivationRepo) Create(_ context.Context, _ repositories.SQLExecutor, activation *models.MatchActivation) error {
	for _, existing := range r.activations {
		if existing.MatchID == activation.MatchID && existing.TeamID == activation.TeamID {
			return repositories.ErrActivationConflict
		}
	}
	activation.ID = r.nextID
	r.nextID++
	activation.ActivatedAt = time.Now()
	r.activations = append(r.activations, activation)
	return nil
}

func (r *memActivationRepo) ListByMatch(_ context.Context, _ repositories.SQLExecutor, matchID int) ([]*models.MatchActivation, error) {
	var out []*models.MatchActivation
	for _, a := range r.activations {
		if a.MatchID == matchID {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memActivationRepo) CreatePlayers(_ context.Context, _ repositories.SQLExecutor, players []*models.MatchPlayer) error {
	r.players = append(r.players, players...)
	return nil
}

func (r *memActivationRepo) ListPlayersByMatch(_ context.Context, _ repositories.SQLExecutor, matchID int) ([]*models.MatchPlayer, error) {
	var out []*models.MatchPlayer
	for _, p := range r.players {
		if p.MatchID == matchID {
			copied := *p
			out = append(out, &copied)
		}
	}
	return out, nil
}

type memResultRepo struct {
	results map[int]*models.MatchResult
	nextID  int
}

func newMemResultRepo() *memResultRepo {
	return &memResultRepo{results: map[int]*models.MatchResult{}, nextID: 1}
}

func (r *memResultRepo) Create(_ context.Context, _ repositories.SQLExecutor, result *models.MatchResult) error {
	if _, ok := r.results[result.MatchID]; ok {
		return repositories.ErrMatchResultConflict
	}
	result.ID = r.nextID
	r.nextID++
	result.SubmittedAt = time.Now()
	r.results[result.MatchID] = result
	return nil
}

func (r *memResultRepo) GetByMatch(_ context.Context, _ repositories.SQLExecutor, matchID int) (*models.MatchResult, error) {
	result, ok := r.results[matchID]
	if !ok {
		return nil, repositories.ErrMatchResultNotFound
	}
	copied := *result
	return &copied, nil
}

func (r *memResultRepo) SetValidated(_ context.Context, _ repositories.SQLExecutor, id int, validatedByID int) error {
	for _, result := range r.results {
		if result.ID == id {
			now := time.Now()
			result.ValidatedByID = &validatedByID
			result.ValidatedAt = &now
			return nil
		}
	}
	return repositories.ErrMatchResultNotFound
}

func (r *memResultRepo) SetEvidenceKey(_ context.Context, _ repositories.SQLExecutor, id int, key string) error {
	for _, result := range r.results {
		if result.ID == id {
			result.EvidenceKey = &key
			return nil
		}
	}
	return repositories.ErrMatchResultNotFound
}

func (r *memResultRepo) DeleteByMatch(_ context.Context, _ repositories.SQLExecutor, matchID int) error {
	if _, ok := r.results[matchID]; !ok {
		return repositories.ErrMatchResultNotFound
	}
	delete(r.results, matchID)
	return nil
}

type memTournamentRepo struct {
	tournaments map[int]*models.Tournament
	courtIDs    map[int][]int
	nextID      int
}

func newMemTournamentRepo() *memTournamentRepo {
	return &memTournamentRepo{
		tournaments: map[int]*models.Tournament{},
		courtIDs:    map[int][]int{},
		nextID:      1,
	}
}

func (r *memTournamentRepo) add(t *models.Tournament) *models.Tournament {
	t.ID = r.nextID
	r.nextID++
	r.tournaments[t.ID] = t
	return t
}

func (r *memTournamentRepo) Create(_ context.Context, _ repositories.SQLExecutor, t *models.Tournament) error {
	r.add(t)
	return nil
}

func (r *memTournamentRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Tournament, error) {
	t, ok := r.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *memTournamentRepo) List(_ context.Context, _ repositories.SQLExecutor, activeOnly bool) ([]*models.Tournament, error) {
	var out []*models.Tournament
	for _, t := range r.tournaments {
		if activeOnly && !t.IsActive {
			continue
		}
		copied := *t
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memTournamentRepo) Update(_ context.Context, _ repositories.SQLExecutor, t *models.Tournament) error {
	if _, ok := r.tournaments[t.ID]; !ok {
		return repositories.ErrTournamentNotFound
	}
	copied := *t
	r.tournaments[t.ID] = &copied
	return nil
}

func (r *memTournamentRepo) SetCurrentRound(_ context.Context, _ repositories.SQLExecutor, id, roundNumber int) error {
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.CurrentRoundNumber = roundNumber
	return nil
}

func (r *memTournamentRepo) Delete(_ context.Context, _ repositories.SQLExecutor, id int) error {
	if _, ok := r.tournaments[id]; !ok {
		return repositories.ErrTournamentNotFound
	}
	delete(r.tournaments, id)
	return nil
}

func (r *memTournamentRepo) ListCourtIDs(_ context.Context, _ repositories.SQLExecutor, tournamentID int) ([]int, error) {
	return r.courtIDs[tournamentID], nil
}

func (r *memTournamentRepo) AddCourt(_ context.Context, _ repositories.SQLExecutor, tournamentID, courtID int) error {
	r.courtIDs[tournamentID] = append(r.courtIDs[tournamentID], courtID)
	return nil
}

func (r *memTournamentRepo) RemoveCourt(_ context.Context, _ repositories.SQLExecutor, tournamentID, courtID int) error {
	ids := r.courtIDs[tournamentID]
	for i, id := range ids {
		if id == courtID {
			r.courtIDs[tournamentID] = append(ids[:i], ids[i+1:]...)
			return nil
		}
	}
	return repositories.ErrTournamentNotFound
}

type memTournamentTeamRepo struct {
	entries map[int]*models.TournamentTeam
	nextID  int
}

func newMemTournamentTeamRepo() *memTournamentTeamRepo {
	return &memTournamentTeamRepo{entries: map[int]*models.TournamentTeam{}, nextID: 1}
}

func (r *memTournamentTeamRepo) add(tt *models.TournamentTeam) *models.TournamentTeam {
	tt.ID = r.nextID
	r.nextID++
	if tt.OpponentsPlayed == nil {
		tt.OpponentsPlayed = map[int]int{}
	}
	r.entries[tt.ID] = tt
	return tt
}

func (r *memTournamentTeamRepo) Create(_ context.Context, _ repositories.SQLExecutor, tt *models.TournamentTeam) error {
	for _, existing := range r.entries {
		if existing.TournamentID == tt.TournamentID && existing.TeamID == tt.TeamID {
			return repositories.ErrTournamentTeamConflict
		}
	}
	r.add(tt)
	return nil
}

func (r *memTournamentTeamRepo) GetByTournamentAndTeam(_ context.Context, _ repositories.SQLExecutor, tournamentID, teamID int) (*models.TournamentTeam, error) {
	for _, tt := range r.entries {
		if tt.TournamentID == tournamentID && tt.TeamID == teamID {
			copied := *tt
			return &copied, nil
		}
	}
	return nil, repositories.ErrTournamentTeamNotFound
}

func (r *memTournamentTeamRepo) ListByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int, activeOnly bool) ([]*models.TournamentTeam, error) {
	var out []*models.TournamentTeam
	for _, tt := range r.entries {
		if tt.TournamentID != tournamentID {
			continue
		}
		if activeOnly && !tt.IsActive {
			continue
		}
		copied := *tt
		copied.OpponentsPlayed = map[int]int{}
		for k, v := range tt.OpponentsPlayed {
			copied.OpponentsPlayed[k] = v
		}
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.SwissPoints != b.SwissPoints {
			return a.SwissPoints > b.SwissPoints
		}
		if a.BuchholzScore != b.BuchholzScore {
			return a.BuchholzScore > b.BuchholzScore
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (r *memTournamentTeamRepo) UpdateStats(_ context.Context, _ repositories.SQLExecutor, tt *models.TournamentTeam) error {
	stored, ok := r.entries[tt.ID]
	if !ok {
		return repositories.ErrTournamentTeamNotFound
	}
	stored.IsActive = tt.IsActive
	stored.SwissPoints = tt.SwissPoints
	stored.BuchholzScore = tt.BuchholzScore
	stored.ReceivedByeInRound = tt.ReceivedByeInRound
	stored.CurrentStageNumber = tt.CurrentStageNumber
	return nil
}

func (r *memTournamentTeamRepo) AddOpponents(_ context.Context, _ repositories.SQLExecutor, tournamentID, team1ID, team2ID int) error {
	for _, tt := range r.entries {
		if tt.TournamentID != tournamentID {
			continue
		}
		if tt.TeamID == team1ID {
			tt.OpponentsPlayed[team2ID]++
		}
		if tt.TeamID == team2ID {
			tt.OpponentsPlayed[team1ID]++
		}
	}
	return nil
}

func (r *memTournamentTeamRepo) Delete(_ context.Context, _ repositories.SQLExecutor, id int) error {
	if _, ok := r.entries[id]; !ok {
		return repositories.ErrTournamentTeamNotFound
	}
	delete(r.entries, id)
	return nil
}

func (r *memTournamentTeamRepo) DeleteByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) error {
	for id, tt := range r.entries {
		if tt.TournamentID == tournamentID {
			delete(r.entries, id)
		}
	}
	return nil
}

type memRoundRepo struct {
	stages     map[int]*models.Stage
	rounds     map[int]*models.Round
	nextStage  int
	nextRound  int
	byCreation []int
}

func newMemRoundRepo() *memRoundRepo {
	return &memRoundRepo{
		stages:    map[int]*models.Stage{},
		rounds:    map[int]*models.Round{},
		nextStage: 1,
		nextRound: 1,
	}
}

func (r *memRoundRepo) CreateStage(_ context.Context, _ repositories.SQLExecutor, stage *models.Stage) error {
	stage.ID = r.nextStage
	r.nextStage++
	r.stages[stage.ID] = stage
	return nil
}

func (r *memRoundRepo) GetStageByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Stage, error) {
	stage, ok := r.stages[id]
	if !ok {
		return nil, repositories.ErrStageNotFound
	}
	copied := *stage
	return &copied, nil
}

func (r *memRoundRepo) ListStagesByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) ([]*models.Stage, error) {
	var out []*models.Stage
	for _, stage := range r.stages {
		if stage.TournamentID == tournamentID {
			copied := *stage
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StageNumber < out[j].StageNumber })
	return out, nil
}

func (r *memRoundRepo) SetStageComplete(_ context.Context, _ repositories.SQLExecutor, id int, complete bool) error {
	stage, ok := r.stages[id]
	if !ok {
		return repositories.ErrStageNotFound
	}
	stage.IsComplete = complete
	return nil
}

func (r *memRoundRepo) CreateRound(_ context.Context, _ repositories.SQLExecutor, round *models.Round) error {
	for _, existing := range r.rounds {
		if existing.TournamentID == round.TournamentID && existing.Number == round.Number {
			return repositories.ErrRoundConflict
		}
	}
	round.ID = r.nextRound
	r.nextRound++
	round.CreatedAt = time.Now()
	r.rounds[round.ID] = round
	r.byCreation = append(r.byCreation, round.ID)
	return nil
}

func (r *memRoundRepo) GetRoundByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Round, error) {
	round, ok := r.rounds[id]
	if !ok {
		return nil, repositories.ErrRoundNotFound
	}
	copied := *round
	return &copied, nil
}

func (r *memRoundRepo) GetLatestRound(_ context.Context, _ repositories.SQLExecutor, tournamentID int) (*models.Round, error) {
	var latest *models.Round
	for _, round := range r.rounds {
		if round.TournamentID != tournamentID {
			continue
		}
		if latest == nil || round.Number > latest.Number {
			latest = round
		}
	}
	if latest == nil {
		return nil, repositories.ErrRoundNotFound
	}
	copied := *latest
	return &copied, nil
}

func (r *memRoundRepo) ListRoundsByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) ([]*models.Round, error) {
	var out []*models.Round
	for _, round := range r.rounds {
		if round.TournamentID == tournamentID {
			copied := *round
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (r *memRoundRepo) SetRoundCompleted(_ context.Context, _ repositories.SQLExecutor, id int, completed bool) error {
	round, ok := r.rounds[id]
	if !ok {
		return repositories.ErrRoundNotFound
	}
	round.IsCompleted = completed
	return nil
}
