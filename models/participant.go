package models

import "time"

// Participant is a roster entry taking part in a tournament bracket.
type Participant struct {
	ID           int        `json:"id" db:"id"`
	TournamentID int        `json:"tournament_id" db:"tournament_id"`
	Name         string     `json:"name" db:"name"`
	BirthDate    *time.Time `json:"birth_date,omitempty" db:"birth_date"`
	AgeCategory  string     `json:"age_category" db:"age_category"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}
