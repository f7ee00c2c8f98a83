package brackets

import (
	"time"

	"github.com/Dosada05/tabletennis-bracket/models"
)

// NewMatch creates the match of a slot, copying its occupants. The match
// starts pending; Activate or ResolveBye moves it on.
func NewMatch(slot *models.BracketSlot) *models.Match {
	return &models.Match{
		TournamentID: slot.TournamentID,
		SlotID:       slot.ID,
		Round:        slot.Round,
		Position:     slot.Position,
		Stage:        slot.Stage,
		Player1:      slot.Slot1,
		Player2:      slot.Slot2,
		Status:       models.MatchPending,
	}
}

// Activate moves a pending match with two known participants to in_progress.
func Activate(m *models.Match, now time.Time) error {
	if m.Status != models.MatchPending {
		return conflictf("activate", "match %d is %s", m.ID, m.Status)
	}
	if !m.Player1.IsParticipant() || !m.Player2.IsParticipant() {
		return conflictf("activate", "match %d needs two participants", m.ID)
	}
	m.Status = models.MatchInProgress
	m.StartedAt = &now
	return nil
}

// CanScore gates every score mutation. Scoring a match under confirmation is
// only allowed as an override.
func CanScore(m *models.Match, override bool) error {
	switch m.Status {
	case models.MatchFinished:
		return conflictf("score", "match %d is already finished", m.ID)
	case models.MatchPending:
		return conflictf("score", "match %d has not started", m.ID)
	}
	if m.HasBye() {
		return conflictf("score", "match %d is a BYE match", m.ID)
	}
	if m.PendingConfirmation && !override {
		return conflictf("score", "match %d is awaiting confirmation", m.ID)
	}
	return nil
}

// ResolveBye finishes a match against a BYE: the real side wins with
// sets-to-win against 0 and no set is played.
func ResolveBye(m *models.Match, r *models.Result, bestOf int, now time.Time) error {
	if m.IsFinished() {
		return conflictf("resolve_bye", "match %d is already finished", m.ID)
	}
	var side int
	switch {
	case m.Player1.IsBye() && m.Player2.IsBye():
		return structuralf("match %d has a BYE on both sides", m.ID)
	case m.Player1.IsParticipant() && m.Player2.IsBye():
		side = 1
	case m.Player2.IsParticipant() && m.Player1.IsBye():
		side = 2
	default:
		return conflictf("resolve_bye", "match %d is not a participant against a BYE", m.ID)
	}
	finishWith(m, r, bestOf, side, now)
	m.PendingConfirmation = false
	m.Finalized = true
	return nil
}

// DeclareWinner finishes a two-participant match directly, without sets
// (walkover or organizer decision).
func DeclareWinner(m *models.Match, r *models.Result, bestOf, side int, now time.Time) error {
	if m.IsFinished() {
		return conflictf("declare_winner", "match %d is already finished", m.ID)
	}
	if side != 1 && side != 2 {
		return validationf("winner side must be 1 or 2 (got %d)", side)
	}
	if !m.Player1.IsParticipant() || !m.Player2.IsParticipant() {
		return conflictf("declare_winner", "match %d needs two participants", m.ID)
	}
	if m.StartedAt == nil {
		m.StartedAt = &now
	}
	finishWith(m, r, bestOf, side, now)
	m.PendingConfirmation = false
	m.Finalized = true
	return nil
}

func finishWith(m *models.Match, r *models.Result, bestOf, side int, now time.Time) {
	stw := SetsToWin(bestOf)
	r.Sets = [models.MaxSets]models.SetScore{}
	r.Walkover = true
	if side == 1 {
		r.SetsWonP1, r.SetsWonP2 = stw, 0
	} else {
		r.SetsWonP1, r.SetsWonP2 = 0, stw
	}
	Recompute(r, bestOf)

	id, _ := m.Side(side)
	m.WinnerID = &id
	m.Status = models.MatchFinished
	m.FinishedAt = &now
}

// Confirm is confirm_and_close: the provisional winner becomes final.
func Confirm(m *models.Match, now time.Time) error {
	if m.IsFinished() {
		return conflictf("confirm", "match %d is already finished", m.ID)
	}
	if !m.PendingConfirmation || m.WinnerID == nil {
		return conflictf("confirm", "match %d has no result awaiting confirmation", m.ID)
	}
	m.Status = models.MatchFinished
	m.PendingConfirmation = false
	m.Finalized = true
	m.FinishedAt = &now
	return nil
}

// SyncSlot mirrors a match's status and winner onto its slot.
func SyncSlot(slot *models.BracketSlot, m *models.Match) {
	switch m.Status {
	case models.MatchFinished:
		slot.Status = models.SlotFinished
		slot.WinnerID = m.WinnerID
	case models.MatchInProgress:
		slot.Status = models.SlotInProgress
	default:
		slot.Status = models.SlotPending
	}
}
