package services

import (
	"errors"
	"fmt"

	"github.com/Dosada05/tabletennis-bracket/brackets"
	"github.com/Dosada05/tabletennis-bracket/repositories"
)

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	ErrForbiddenOperation = errors.New("operation not allowed for the current user")
	ErrNotAssignedReferee = errors.New("match is assigned to another referee")
)

// handleRepositoryError turns repository not-found sentinels into the typed
// NotFoundError and wraps everything else with context.
func handleRepositoryError(err error, entity string, id int) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, repositories.ErrTournamentNotFound),
		errors.Is(err, repositories.ErrParticipantNotFound),
		errors.Is(err, repositories.ErrSlotNotFound),
		errors.Is(err, repositories.ErrMatchNotFound),
		errors.Is(err, repositories.ErrResultNotFound):
		return &brackets.NotFoundError{Entity: entity, ID: id}
	case errors.Is(err, repositories.ErrInvalidParticipantRef):
		return &brackets.ValidationError{Reason: fmt.Sprintf("%s %d references an unknown participant", entity, id)}
	case errors.Is(err, repositories.ErrSlotPositionConflict),
		errors.Is(err, repositories.ErrMatchSlotConflict),
		errors.Is(err, repositories.ErrResultMatchConflict):
		return &brackets.StateConflictError{Op: entity, Reason: err.Error()}
	}
	return fmt.Errorf("%s %d: %w", entity, id, err)
}

func conflict(op, format string, args ...any) error {
	return &brackets.StateConflictError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

func invalid(format string, args ...any) error {
	return &brackets.ValidationError{Reason: fmt.Sprintf(format, args...)}
}
