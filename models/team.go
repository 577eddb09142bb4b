package models

import "time"

// Team представляет команду. PIN это шестизначный секрет, которым команда
// подтверждает действия от своего имени (активация матча, отправка счёта).
type Team struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	PIN       string    `json:"-" db:"pin"`
	IsDrafted bool      `json:"is_drafted" db:"is_drafted"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	Players []Player `json:"players,omitempty" db:"-"`
}

// Player принадлежит ровно одной команде; переназначение команды является штатной
// операция (используется при формировании mêlée-составов).
type Player struct {
	ID        int     `json:"id" db:"id"`
	Name      string  `json:"name" db:"name"`
	TeamID    int     `json:"team_id" db:"team_id"`
	IsCaptain bool    `json:"is_captain" db:"is_captain"`
	Rating    float64 `json:"rating" db:"rating"`
	// OriginalTeamID хранит команду, из которой игрок был временно
	// переведён в mêlée-состав, для последующего восстановления.
	OriginalTeamID *int      `json:"original_team_id,omitempty" db:"original_team_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
