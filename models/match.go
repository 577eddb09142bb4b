package models

import "time"

// MatchStatus представляет статусы матча, соответствующие ENUM в БД.
type MatchStatus string

const (
	MatchStatusPending             MatchStatus = "pending"
	MatchStatusPendingVerification MatchStatus = "pending_verification"
	MatchStatusActive              MatchStatus = "active"
	MatchStatusWaitingValidation   MatchStatus = "waiting_validation"
	MatchStatusCompleted           MatchStatus = "completed"
	MatchStatusCancelled           MatchStatus = "cancelled"
)

// matchTransitions задаёт закрытую таблицу допустимых переходов. Любой переход,
// которого здесь нет, отклоняется на границе сервиса.
var matchTransitions = map[MatchStatus][]MatchStatus{
	MatchStatusPending:             {MatchStatusPendingVerification, MatchStatusCancelled},
	MatchStatusPendingVerification: {MatchStatusActive, MatchStatusPendingVerification, MatchStatusCancelled},
	MatchStatusActive:              {MatchStatusWaitingValidation, MatchStatusCancelled},
	MatchStatusWaitingValidation:   {MatchStatusCompleted, MatchStatusActive, MatchStatusCancelled},
	MatchStatusCompleted:           {},
	MatchStatusCancelled:           {},
}

// CanTransitionTo сообщает, допустим ли переход из s в next.
func (s MatchStatus) CanTransitionTo(next MatchStatus) bool {
	for _, allowed := range matchTransitions[s] {
		if next == allowed {
			return true
		}
	}
	return false
}

func (s MatchStatus) Terminal() bool {
	return s == MatchStatusCompleted || s == MatchStatusCancelled
}

// Match представляет одну встречу двух команд.
type Match struct {
	ID           int  `json:"id" db:"id"`
	TournamentID int  `json:"tournament_id" db:"tournament_id"`
	StageID      *int `json:"stage_id,omitempty" db:"stage_id"`
	RoundID      *int `json:"round_id,omitempty" db:"round_id"`
	Team1ID      int  `json:"team1_id" db:"team1_id"`
	Team2ID      int  `json:"team2_id" db:"team2_id"`

	Team1Score *int        `json:"team1_score,omitempty" db:"team1_score"`
	Team2Score *int        `json:"team2_score,omitempty" db:"team2_score"`
	Status     MatchStatus `json:"status" db:"status"`

	CourtID *int `json:"court_id,omitempty" db:"court_id"`
	// ProposedCourtID хранит площадку, предложенную первой активировавшей командой,
	// когда свободных площадок не было.
	ProposedCourtID *int `json:"proposed_court_id,omitempty" db:"proposed_court_id"`
	WaitingForCourt bool `json:"waiting_for_court" db:"waiting_for_court"`

	ScheduledTime   *time.Time `json:"scheduled_time,omitempty" db:"scheduled_time"`
	StartTime       *time.Time `json:"start_time,omitempty" db:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty" db:"end_time"`
	DurationSeconds *int64     `json:"duration_seconds,omitempty" db:"duration_seconds"`

	WinnerID *int `json:"winner_id,omitempty" db:"winner_id"`
	LoserID  *int `json:"loser_id,omitempty" db:"loser_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasTeam сообщает, участвует ли команда в матче.
func (m *Match) HasTeam(teamID int) bool {
	return m.Team1ID == teamID || m.Team2ID == teamID
}

// OpponentOf возвращает id соперника для teamID. Вызывающий обязан
// предварительно проверить HasTeam.
func (m *Match) OpponentOf(teamID int) int {
	if m.Team1ID == teamID {
		return m.Team2ID
	}
	return m.Team1ID
}

// MatchActivation фиксирует факт активации или валидации матча командой.
// На пару (match, team) допускается не более одной записи; первая запись
// для матча всегда имеет IsInitiator=true.
type MatchActivation struct {
	ID          int       `json:"id" db:"id"`
	MatchID     int       `json:"match_id" db:"match_id"`
	TeamID      int       `json:"team_id" db:"team_id"`
	PinUsed     string    `json:"-" db:"pin_used"`
	IsInitiator bool      `json:"is_initiator" db:"is_initiator"`
	ActivatedAt time.Time `json:"activated_at" db:"activated_at"`
}

// MatchPlayer фиксирует игрока, заявленного командой на матч.
type MatchPlayer struct {
	ID       int `json:"id" db:"id"`
	MatchID  int `json:"match_id" db:"match_id"`
	PlayerID int `json:"player_id" db:"player_id"`
	TeamID   int `json:"team_id" db:"team_id"`
}

// MatchResult хранит поданный счёт, ожидающий подтверждения соперником.
// Команда не может подтвердить собственную подачу.
type MatchResult struct {
	ID            int     `json:"id" db:"id"`
	MatchID       int     `json:"match_id" db:"match_id"`
	SubmittedByID int     `json:"submitted_by_id" db:"submitted_by_id"`
	ValidatedByID *int    `json:"validated_by_id,omitempty" db:"validated_by_id"`
	EvidenceKey   *string `json:"-" db:"evidence_key"`
	EvidenceURL   *string `json:"evidence_url,omitempty" db:"-"`
	Notes         *string `json:"notes,omitempty" db:"notes"`

	SubmittedAt time.Time  `json:"submitted_at" db:"submitted_at"`
	ValidatedAt *time.Time `json:"validated_at,omitempty" db:"validated_at"`
}
