package models

import "time"

// TournamentStatus представляет статусы турнира, соответствующие ENUM в БД.
type TournamentStatus string

const (
	StatusSoon         TournamentStatus = "soon"
	StatusRegistration TournamentStatus = "registration"
	StatusActive       TournamentStatus = "active"
	StatusCompleted    TournamentStatus = "completed"
	StatusCanceled     TournamentStatus = "canceled"
)

// Tournament holds the configuration of one single-elimination event.
type Tournament struct {
	ID              int              `json:"id" db:"id"`
	Name            string           `json:"name" db:"name"`
	OrganizerID     int              `json:"organizer_id" db:"organizer_id"`
	Status          TournamentStatus `json:"status" db:"status"`
	BestOfSets      int              `json:"best_of_sets" db:"best_of_sets"`
	BestOfSetsFinal int              `json:"best_of_sets_final" db:"best_of_sets_final"`
	RefereeIDs      []int            `json:"referee_ids" db:"-"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty" db:"completed_at"`
	StandingsURL    *string          `json:"standings_url,omitempty" db:"standings_url"`
}

// HasReferee reports whether userID is registered as a referee of the tournament.
func (t *Tournament) HasReferee(userID int) bool {
	for _, id := range t.RefereeIDs {
		if id == userID {
			return true
		}
	}
	return false
}
