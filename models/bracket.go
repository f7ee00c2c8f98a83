package models

import "time"

// OccupantKind says what sits in one half of a bracket slot.
type OccupantKind string

const (
	OccupantEmpty       OccupantKind = "empty"
	OccupantParticipant OccupantKind = "participant"
	OccupantBye         OccupantKind = "bye"
)

// Occupant is one half of a slot: a participant, a BYE marker, or nothing yet.
type Occupant struct {
	Kind          OccupantKind `json:"kind"`
	ParticipantID *int         `json:"participant_id,omitempty"`
}

func EmptyOccupant() Occupant { return Occupant{Kind: OccupantEmpty} }

func ByeOccupant() Occupant { return Occupant{Kind: OccupantBye} }

func ParticipantOccupant(id int) Occupant {
	return Occupant{Kind: OccupantParticipant, ParticipantID: &id}
}

func (o Occupant) IsEmpty() bool { return o.Kind == "" || o.Kind == OccupantEmpty }

func (o Occupant) IsBye() bool { return o.Kind == OccupantBye }

func (o Occupant) IsParticipant() bool {
	return o.Kind == OccupantParticipant && o.ParticipantID != nil
}

// Is reports whether the occupant is the participant with the given id.
func (o Occupant) Is(participantID int) bool {
	return o.IsParticipant() && *o.ParticipantID == participantID
}

// SlotStage distinguishes regular bracket slots from the third-place slot.
type SlotStage string

const (
	StageNormal     SlotStage = "normal"
	StageThirdPlace SlotStage = "third_place"
)

type SlotStatus string

const (
	SlotPending    SlotStatus = "pending"
	SlotInProgress SlotStatus = "in_progress"
	SlotFinished   SlotStatus = "finished"
)

// BracketSlot is one (round, position) cell of a tournament bracket.
type BracketSlot struct {
	ID           int        `json:"id" db:"id"`
	TournamentID int        `json:"tournament_id" db:"tournament_id"`
	Round        int        `json:"round" db:"round"`
	Position     int        `json:"position" db:"position"`
	Stage        SlotStage  `json:"stage" db:"stage"`
	Slot1        Occupant   `json:"slot1" db:"-"`
	Slot2        Occupant   `json:"slot2" db:"-"`
	WinnerID     *int       `json:"winner_id,omitempty" db:"winner_id"`
	Status       SlotStatus `json:"status" db:"status"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// Occupant returns the occupant of half 1 or 2.
func (s *BracketSlot) Occupant(half int) Occupant {
	if half == 1 {
		return s.Slot1
	}
	return s.Slot2
}

// SetOccupant replaces the occupant of half 1 or 2.
func (s *BracketSlot) SetOccupant(half int, o Occupant) {
	if half == 1 {
		s.Slot1 = o
		return
	}
	s.Slot2 = o
}

// Filled reports whether both halves are known (participant or BYE).
func (s *BracketSlot) Filled() bool {
	return !s.Slot1.IsEmpty() && !s.Slot2.IsEmpty()
}

func (s *BracketSlot) HasWinner() bool { return s.WinnerID != nil }

// Loser returns the occupant that did not win. ok is false until the slot has
// a winner or when the losing side is a BYE.
func (s *BracketSlot) Loser() (id int, ok bool) {
	if s.WinnerID == nil {
		return 0, false
	}
	switch {
	case s.Slot1.Is(*s.WinnerID) && s.Slot2.IsParticipant():
		return *s.Slot2.ParticipantID, true
	case s.Slot2.Is(*s.WinnerID) && s.Slot1.IsParticipant():
		return *s.Slot1.ParticipantID, true
	}
	return 0, false
}
