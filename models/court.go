package models

import "time"

// CourtState описывает состояние площадки.
// "occupied" означает, что площадка занята активным матчем,
// "disabled" означает выведенную из эксплуатации площадку, она не участвует в распределении.
type CourtState string

const (
	CourtStateFree     CourtState = "free"
	CourtStateOccupied CourtState = "occupied"
	CourtStateDisabled CourtState = "disabled"
)

// Court представляет физическую площадку для игры.
type Court struct {
	ID        int        `json:"id" db:"id"`
	Number    int        `json:"number" db:"number"`
	Name      *string    `json:"name,omitempty" db:"name"`
	Location  *string    `json:"location,omitempty" db:"location"`
	State     CourtState `json:"state" db:"state"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

func (s CourtState) Valid() bool {
	switch s {
	case CourtStateFree, CourtStateOccupied, CourtStateDisabled:
		return true
	}
	return false
}
