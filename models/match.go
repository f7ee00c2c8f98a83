package models

import "time"

type MatchStatus string

const (
	MatchPending    MatchStatus = "pending"
	MatchInProgress MatchStatus = "in_progress"
	MatchFinished   MatchStatus = "finished"
)

// Match is the playable entity of a bracket slot.
type Match struct {
	ID                  int         `json:"id" db:"id"`
	TournamentID        int         `json:"tournament_id" db:"tournament_id"`
	SlotID              int         `json:"slot_id" db:"slot_id"`
	Round               int         `json:"round" db:"round"`
	Position            int         `json:"position" db:"position"`
	Stage               SlotStage   `json:"stage" db:"stage"`
	Player1             Occupant    `json:"player1" db:"-"`
	Player2             Occupant    `json:"player2" db:"-"`
	RefereeID           *int        `json:"referee_id,omitempty" db:"referee_id"`
	Status              MatchStatus `json:"status" db:"status"`
	PendingConfirmation bool        `json:"pending_confirmation" db:"pending_confirmation"`
	Finalized           bool        `json:"finalized" db:"finalized"`
	WinnerID            *int        `json:"winner_id,omitempty" db:"winner_id"`
	StartedAt           *time.Time  `json:"started_at,omitempty" db:"started_at"`
	FinishedAt          *time.Time  `json:"finished_at,omitempty" db:"finished_at"`
	CreatedAt           time.Time   `json:"created_at" db:"created_at"`
}

func (m *Match) IsFinished() bool { return m.Status == MatchFinished }

// HasBye reports whether either side of the match is a BYE marker.
func (m *Match) HasBye() bool { return m.Player1.IsBye() || m.Player2.IsBye() }

// Side returns the participant id of side 1 or 2, if that side is a participant.
func (m *Match) Side(side int) (int, bool) {
	o := m.Player1
	if side == 2 {
		o = m.Player2
	}
	if !o.IsParticipant() {
		return 0, false
	}
	return *o.ParticipantID, true
}
