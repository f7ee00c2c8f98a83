package brackets

import (
	"context"

	"github.com/Dosada05/tabletennis-bracket/models"
)

// ManualEntry pre-fills one half of a first-round slot. A zero entry leaves
// the half to automatic assignment.
type ManualEntry struct {
	ParticipantID *int `json:"participant_id,omitempty"`
	Bye           bool `json:"bye,omitempty"`
}

func (e ManualEntry) IsSet() bool { return e.Bye || e.ParticipantID != nil }

// ManualPairing is the caller's choice for one first-round position.
type ManualPairing struct {
	Slot1 ManualEntry `json:"slot1"`
	Slot2 ManualEntry `json:"slot2"`
}

type GenerateBracketParams struct {
	TournamentID int
	Participants []*models.Participant
	// Manual maps first-round positions (1-based) to pre-filled halves.
	Manual map[int]ManualPairing
}

// Bracket is the full shape of a built bracket: sizing plus every slot of
// every round. Slots of rounds after the first are empty.
type Bracket struct {
	Size            int                   `json:"size"`
	Byes            int                   `json:"byes"`
	Rounds          int                   `json:"rounds"`
	FirstRoundSlots int                   `json:"first_round_slots"`
	Slots           []*models.BracketSlot `json:"slots"`
}

// RoundSlots returns the slots of one round in position order.
func (b *Bracket) RoundSlots(round int) []*models.BracketSlot {
	var out []*models.BracketSlot
	for _, s := range b.Slots {
		if s.Round == round {
			out = append(out, s)
		}
	}
	return out
}

type BracketGenerator interface {
	GenerateBracket(ctx context.Context, params GenerateBracketParams) (*Bracket, error)

	GetName() string
}
