package brackets

import (
	"github.com/Dosada05/tabletennis-bracket/models"
)

// NextSlot maps a finished slot to its destination: ceil(position/2) in the
// next round, half 1 for odd positions and half 2 for even ones.
func NextSlot(round, position int) (destRound, destPosition, half int) {
	destRound = round + 1
	destPosition = (position + 1) / 2
	half = 2
	if position%2 == 1 {
		half = 1
	}
	return destRound, destPosition, half
}

// MaxNormalRound is the final's round number.
func MaxNormalRound(slots []*models.BracketSlot) int {
	max := 0
	for _, s := range slots {
		if s.Stage != models.StageThirdPlace && s.Round > max {
			max = s.Round
		}
	}
	return max
}

func normalSlots(slots []*models.BracketSlot, round int) []*models.BracketSlot {
	var out []*models.BracketSlot
	for _, s := range slots {
		if s.Round == round && s.Stage != models.StageThirdPlace {
			out = append(out, s)
		}
	}
	return out
}

// IsRoundComplete reports whether every normal slot of the round has a
// winner. Third-place slots never block a round.
func IsRoundComplete(slots []*models.BracketSlot, round int) bool {
	rs := normalSlots(slots, round)
	if len(rs) == 0 {
		return false
	}
	for _, s := range rs {
		if !s.HasWinner() {
			return false
		}
	}
	return true
}

// FindSlot returns the slot at (round, position) of the given stage, or nil.
func FindSlot(slots []*models.BracketSlot, round, position int, stage models.SlotStage) *models.BracketSlot {
	for _, s := range slots {
		if s.Round == round && s.Position == position && s.Stage == stage {
			return s
		}
	}
	return nil
}

// ThirdPlaceSlot returns the tournament's third-place slot, or nil.
func ThirdPlaceSlot(slots []*models.BracketSlot) *models.BracketSlot {
	for _, s := range slots {
		if s.Stage == models.StageThirdPlace {
			return s
		}
	}
	return nil
}

// PlaceWinner writes winnerID into a destination half. Placing the same
// participant again is a no-op; a different occupant already there is a
// structural error.
func PlaceWinner(dest *models.BracketSlot, half, winnerID int) (bool, error) {
	cur := dest.Occupant(half)
	if cur.Is(winnerID) {
		return false, nil
	}
	if !cur.IsEmpty() {
		return false, structuralf("slot r%d p%d half %d already holds another occupant", dest.Round, dest.Position, half)
	}
	dest.SetOccupant(half, models.ParticipantOccupant(winnerID))
	return true, nil
}

// SemifinalLosers returns the two semifinal losers, ordered by semifinal
// position, when the semifinal round is complete with two real losers.
func SemifinalLosers(slots []*models.BracketSlot) (int, int, bool) {
	semis := MaxNormalRound(slots) - 1
	if semis < 1 {
		return 0, 0, false
	}
	rs := normalSlots(slots, semis)
	if len(rs) != 2 || !IsRoundComplete(slots, semis) {
		return 0, 0, false
	}
	first, second := rs[0], rs[1]
	if second.Position < first.Position {
		first, second = second, first
	}
	a, okA := first.Loser()
	b, okB := second.Loser()
	if !okA || !okB {
		return 0, 0, false
	}
	return a, b, true
}

// NewThirdPlaceSlot builds the third-place slot in the semifinal round, placed
// after the two semifinal positions.
func NewThirdPlaceSlot(tournamentID, semifinalRound, loserA, loserB int) *models.BracketSlot {
	return &models.BracketSlot{
		TournamentID: tournamentID,
		Round:        semifinalRound,
		Position:     3,
		Stage:        models.StageThirdPlace,
		Slot1:        models.ParticipantOccupant(loserA),
		Slot2:        models.ParticipantOccupant(loserB),
		Status:       models.SlotPending,
	}
}

// IsComplete is the terminal check: the final has a winner and the
// third-place slot, if any, has one too.
func IsComplete(slots []*models.BracketSlot) bool {
	final := normalSlots(slots, MaxNormalRound(slots))
	if len(final) != 1 || !final[0].HasWinner() || final[0].Status != models.SlotFinished {
		return false
	}
	if tp := ThirdPlaceSlot(slots); tp != nil {
		return tp.HasWinner() && tp.Status == models.SlotFinished
	}
	return true
}
