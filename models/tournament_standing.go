package models

// StandingLabel names the finishing position class of a participant.
type StandingLabel string

const (
	StandingChampion   StandingLabel = "champion"
	StandingRunnerUp   StandingLabel = "runner_up"
	StandingThird      StandingLabel = "third"
	StandingFourth     StandingLabel = "fourth"
	StandingEliminated StandingLabel = "eliminated"
)

type TournamentStanding struct {
	Place           int           `json:"place"`
	ParticipantID   int           `json:"participant_id"`
	Label           StandingLabel `json:"label"`
	EliminatedRound *int          `json:"eliminated_round,omitempty"`

	// Optional linked data, populated by service
	Participant *Participant `json:"participant,omitempty"`
}
