package models

import "time"

// TournamentFormat задаёт формат розыгрыша турнира или этапа.
type TournamentFormat string

const (
	FormatSwiss      TournamentFormat = "swiss"
	FormatRoundRobin TournamentFormat = "round_robin"
	FormatKnockout   TournamentFormat = "knockout"
)

func (f TournamentFormat) Valid() bool {
	switch f {
	case FormatSwiss, FormatRoundRobin, FormatKnockout:
		return true
	}
	return false
}

// Tournament представляет турнир.
type Tournament struct {
	ID                 int              `json:"id" db:"id"`
	Name               string           `json:"name" db:"name"`
	Description        *string          `json:"description,omitempty" db:"description"`
	Format             TournamentFormat `json:"format" db:"format"`
	StartDate          time.Time        `json:"start_date" db:"start_date"`
	EndDate            time.Time        `json:"end_date" db:"end_date"`
	IsActive           bool             `json:"is_active" db:"is_active"`
	IsArchived         bool             `json:"is_archived" db:"is_archived"`
	CurrentRoundNumber int              `json:"current_round_number" db:"current_round_number"`
	CreatedAt          time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at" db:"updated_at"`

	// Опциональные связанные сущности (не мапятся напрямую)
	Teams  []TournamentTeam `json:"teams,omitempty" db:"-"`
	Stages []Stage          `json:"stages,omitempty" db:"-"`
}

// TournamentTeam представляет участие команды в турнире со швейцарской статистикой.
type TournamentTeam struct {
	ID           int `json:"id" db:"id"`
	TournamentID int `json:"tournament_id" db:"tournament_id"`
	TeamID       int `json:"team_id" db:"team_id"`

	IsActive           bool `json:"is_active" db:"is_active"`
	CurrentStageNumber int  `json:"current_stage_number" db:"current_stage_number"`
	SeedingPosition    *int `json:"seeding_position,omitempty" db:"seeding_position"`

	SwissPoints        int     `json:"swiss_points" db:"swiss_points"`
	BuchholzScore      float64 `json:"buchholz_score" db:"buchholz_score"`
	ReceivedByeInRound *int    `json:"received_bye_in_round,omitempty" db:"received_bye_in_round"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// OpponentsPlayed: team id соперника -> число сыгранных встреч.
	// Загружается репозиторием отдельно от основной строки.
	OpponentsPlayed map[int]int `json:"opponents_played,omitempty" db:"-"`
	Team            *Team       `json:"team,omitempty" db:"-"`
}

// Stage представляет этап многоэтапного турнира со своим форматом и числом туров.
type Stage struct {
	ID           int              `json:"id" db:"id"`
	TournamentID int              `json:"tournament_id" db:"tournament_id"`
	StageNumber  int              `json:"stage_number" db:"stage_number"`
	Name         string           `json:"name" db:"name"`
	Format       TournamentFormat `json:"format" db:"format"`
	NumRounds    int              `json:"num_rounds" db:"num_rounds"`
	// MatchesPerTeam задаёт неполный круговой формат: каждая команда играет
	// ровно столько матчей вместо полного круга.
	MatchesPerTeam *int `json:"matches_per_team,omitempty" db:"matches_per_team"`
	IsComplete     bool `json:"is_complete" db:"is_complete"`
}

// Round представляет тур: набор матчей, сгенерированных вместе.
type Round struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	StageID      *int      `json:"stage_id,omitempty" db:"stage_id"`
	Number       int       `json:"number" db:"number"`
	IsCompleted  bool      `json:"is_completed" db:"is_completed"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// TournamentCourt закрепляет площадку за турниром. Если за турниром
// закреплена хотя бы одна площадка, арбитраж предпочитает их общим.
type TournamentCourt struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	CourtID      int       `json:"court_id" db:"court_id"`
	AssignedAt   time.Time `json:"assigned_at" db:"assigned_at"`
}
