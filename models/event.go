package models

import "time"

// MatchStateEvent is published after every accepted score submission, BYE
// resolution, live point change and confirmation.
type MatchStateEvent struct {
	EventID             string      `json:"event_id"`
	TournamentID        int         `json:"tournament_id"`
	MatchID             int         `json:"match_id"`
	OccupantA           Occupant    `json:"occupant_a"`
	OccupantB           Occupant    `json:"occupant_b"`
	SetsWonA            int         `json:"sets_won_a"`
	SetsWonB            int         `json:"sets_won_b"`
	CurrentSet          int         `json:"current_set"`
	CurrentSetPoints    SetScore    `json:"current_set_points"`
	Status              MatchStatus `json:"status"`
	PendingConfirmation bool        `json:"pending_confirmation"`
	WinnerID            *int        `json:"winner_id,omitempty"`
	OccurredAt          time.Time   `json:"occurred_at"`
}
