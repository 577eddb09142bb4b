package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден (универсальная)
	ErrNotFound = errors.New("requested resource not found")

	// Ошибки валидации и бизнес-правил
	ErrValidationFailed        = errors.New("validation failed")
	ErrInvalidPIN              = errors.New("invalid team PIN for this match")
	ErrInvalidStateTransition  = errors.New("operation not allowed in the current match state")
	ErrInvalidScore            = errors.New("invalid score submitted")
	ErrTeamNotInMatch          = errors.New("team does not play in this match")
	ErrTeamNameRequired        = errors.New("team name is required")
	ErrCourtNumberRequired     = errors.New("court number must be positive")
	ErrTournamentNotActive     = errors.New("tournament is not active")
	ErrTournamentArchived      = errors.New("tournament is archived")
	ErrRoundNotComplete        = errors.New("current round still has unfinished matches")
	ErrDraftAlreadyPerformed   = errors.New("draft has already been performed for this pool")
	ErrDraftNotPerformed       = errors.New("no draft to tear down")
	ErrNotEnoughPlayers        = errors.New("not enough players for the requested team size")
	ErrCourtOccupied           = errors.New("court is occupied")

	// Ошибки конфликтов
	ErrTeamNameConflict    = errors.New("team name is already in use")
	ErrCourtNumberConflict = errors.New("court number is already in use")
	ErrRoundConflict       = errors.New("round with this number already exists")
	ErrAlreadyRegistered   = errors.New("team is already registered for this tournament")
	ErrConcurrencyConflict = errors.New("concurrent update detected, retry the operation")

	// Ошибки, специфичные для сущностей (дают больше контекста, чем ErrNotFound)
	ErrTeamNotFound       = errors.New("team not found")
	ErrPlayerNotFound     = errors.New("player not found")
	ErrCourtNotFound      = errors.New("court not found")
	ErrMatchNotFound      = errors.New("match not found")
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrRoundNotFound      = errors.New("round not found")
	ErrStageNotFound      = errors.New("stage not found")
	ErrResultNotFound     = errors.New("match result not found")
)
