package services

import (
	"github.com/Dosada05/tabletennis-bracket/models"
)

var allowedTransitions = map[models.TournamentStatus][]models.TournamentStatus{
	models.StatusSoon:         {models.StatusRegistration, models.StatusActive, models.StatusCanceled},
	models.StatusRegistration: {models.StatusActive, models.StatusCanceled},
	models.StatusActive:       {models.StatusCompleted, models.StatusCanceled},
	models.StatusCompleted:    {},
	models.StatusCanceled:     {},
}

func isValidStatusTransition(current, next models.TournamentStatus) bool {
	if current == next {
		return true
	}
	for _, allowedNextStatus := range allowedTransitions[current] {
		if next == allowedNextStatus {
			return true
		}
	}
	return false
}

// manualStatus reports whether an organizer may set the status directly.
// active and completed are reached only through Build and advancement.
func manualStatus(status models.TournamentStatus) bool {
	switch status {
	case models.StatusSoon, models.StatusRegistration, models.StatusCanceled:
		return true
	}
	return false
}
