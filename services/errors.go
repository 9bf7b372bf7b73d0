package services

import (
	"errors"
	"fmt"
)

// ErrorKind buckets every expected failure so handlers can pick an HTTP
// status and clients can render a precise message. Anything outside these
// kinds is an infrastructure fault.
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindStateConflict  ErrorKind = "state_conflict"
	KindNotFound       ErrorKind = "not_found"
	KindForbidden      ErrorKind = "forbidden"
	KindInfrastructure ErrorKind = "infrastructure"
)

// GameError is a stable, recoverable-by-caller error. Sentinels below are
// compared with errors.Is, so service code returns them directly.
type GameError struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
}

func (e *GameError) Error() string {
	return e.Message
}

var (
	// validation
	ErrInvalidPosition = &GameError{KindValidation, "invalid_position", "position must be a letter A-H followed by a digit 1-8"}
	ErrMissingFields   = &GameError{KindValidation, "missing_fields", "required fields are missing"}

	// state conflicts
	ErrAlreadyShot       = &GameError{KindStateConflict, "already_shot", "this position has already been shot"}
	ErrNotYourTurn       = &GameError{KindStateConflict, "not_your_turn", "it is not your turn"}
	ErrGameNotActive     = &GameError{KindStateConflict, "game_not_active", "the game is not active"}
	ErrGameNotWaiting    = &GameError{KindStateConflict, "game_not_waiting", "the game is no longer waiting for players"}
	ErrGameFull          = &GameError{KindStateConflict, "game_full", "the game already has 2 players"}
	ErrAlreadyJoined     = &GameError{KindStateConflict, "already_joined", "you are already in this game"}
	ErrAlreadyInGame     = &GameError{KindStateConflict, "already_in_game", "you are already in an active game"}
	ErrHasWaitingGame    = &GameError{KindStateConflict, "has_waiting_game", "you already have a game waiting for an opponent"}
	ErrEmailTaken        = &GameError{KindStateConflict, "email_taken", "an account with that email or username already exists"}

	// not found
	ErrGameNotFound   = &GameError{KindNotFound, "game_not_found", "game not found"}
	ErrPlayerNotFound = &GameError{KindNotFound, "player_not_found", "player not found in this game"}
	ErrUserNotFound   = &GameError{KindNotFound, "user_not_found", "user not found"}

	// forbidden
	ErrNotCreator       = &GameError{KindForbidden, "not_creator", "only the game creator can cancel it"}
	ErrNotParticipant   = &GameError{KindForbidden, "not_participant", "you are not a participant of this game"}
	ErrInvalidCreds     = &GameError{KindForbidden, "invalid_credentials", "invalid credentials"}
)

var errInternal = &GameError{KindInfrastructure, "internal", "internal error"}

// infraErr wraps an unexpected persistence/runtime failure. The cause stays
// on the chain for logging; callers only ever see it after the enclosing
// transaction rolled back, so no move is half-applied.
func infraErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, errInternal, err)
}

// KindOf extracts the kind of an error, defaulting to infrastructure for
// anything that is not a GameError.
func KindOf(err error) ErrorKind {
	var ge *GameError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindInfrastructure
}

// AsGameError returns the GameError on the chain, or a generic internal one.
func AsGameError(err error) *GameError {
	var ge *GameError
	if errors.As(err, &ge) {
		return ge
	}
	return &GameError{KindInfrastructure, "internal", "internal error"}
}
