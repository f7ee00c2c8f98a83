package brackets

import (
	"errors"
	"testing"
	"time"

	"github.com/Dosada05/tabletennis-bracket/models"
)

func TestActivateNeedsTwoParticipants(t *testing.T) {
	slot := &models.BracketSlot{Slot1: models.ParticipantOccupant(1), Slot2: models.EmptyOccupant()}
	m := NewMatch(slot)
	if err := Activate(m, time.Now()); !errors.Is(err, ErrStateConflict) {
		t.Fatalf("err = %v, want state conflict", err)
	}
	if m.Status != models.MatchPending {
		t.Fatalf("status = %s", m.Status)
	}
	slot.Slot2 = models.ParticipantOccupant(2)
	m = NewMatch(slot)
	if err := Activate(m, time.Now()); err != nil {
		t.Fatal(err)
	}
	if m.Status != models.MatchInProgress || m.StartedAt == nil {
		t.Fatalf("match not in progress: %+v", m)
	}
	if err := Activate(m, time.Now()); !errors.Is(err, ErrStateConflict) {
		t.Fatal("second activate accepted")
	}
}

func TestScoringPendingMatchRejected(t *testing.T) {
	m := NewMatch(&models.BracketSlot{Slot1: models.ParticipantOccupant(1), Slot2: models.ParticipantOccupant(2)})
	r := &models.Result{}
	if _, err := RecordSet(m, r, 3, 1, 11, 2, false); !errors.Is(err, ErrStateConflict) {
		t.Fatalf("err = %v, want state conflict", err)
	}
}

func TestResolveBye(t *testing.T) {
	tests := []struct {
		name       string
		s1, s2     models.Occupant
		wantWinner int
		wantWon    [2]int
	}{
		{"bye second", models.ParticipantOccupant(4), models.ByeOccupant(), 4, [2]int{3, 0}},
		{"bye first", models.ByeOccupant(), models.ParticipantOccupant(9), 9, [2]int{0, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMatch(&models.BracketSlot{Slot1: tt.s1, Slot2: tt.s2})
			r := &models.Result{}
			if err := ResolveBye(m, r, 5, time.Now()); err != nil {
				t.Fatalf("ResolveBye: %v", err)
			}
			if m.Status != models.MatchFinished || !m.Finalized || m.PendingConfirmation {
				t.Fatalf("match = %+v", m)
			}
			if m.WinnerID == nil || *m.WinnerID != tt.wantWinner {
				t.Fatalf("winner = %v, want %d", m.WinnerID, tt.wantWinner)
			}
			if r.SetsWonP1 != tt.wantWon[0] || r.SetsWonP2 != tt.wantWon[1] {
				t.Fatalf("sets won = %d-%d, want %v", r.SetsWonP1, r.SetsWonP2, tt.wantWon)
			}
			if _, err := RecordSet(m, r, 5, 1, 11, 3, true); !errors.Is(err, ErrStateConflict) {
				t.Fatal("BYE match accepted scoring")
			}
		})
	}
}

func TestResolveByeRejectsDoubleBye(t *testing.T) {
	m := NewMatch(&models.BracketSlot{Slot1: models.ByeOccupant(), Slot2: models.ByeOccupant()})
	if err := ResolveBye(m, &models.Result{}, 3, time.Now()); !errors.Is(err, ErrStructural) {
		t.Fatalf("err = %v, want structural", err)
	}
	m = NewMatch(&models.BracketSlot{Slot1: models.ParticipantOccupant(1), Slot2: models.ParticipantOccupant(2)})
	if err := ResolveBye(m, &models.Result{}, 3, time.Now()); !errors.Is(err, ErrStateConflict) {
		t.Fatalf("err = %v, want state conflict", err)
	}
}

func TestConfirmRequiresPendingConfirmation(t *testing.T) {
	m, _ := liveMatch(1, 2)
	if err := Confirm(m, time.Now()); !errors.Is(err, ErrStateConflict) {
		t.Fatalf("err = %v, want state conflict", err)
	}
}

func TestDeclareWinner(t *testing.T) {
	m, r := liveMatch(5, 6)
	RecordSet(m, r, 5, 1, 11, 3, false)
	if err := DeclareWinner(m, r, 5, 3, time.Now()); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad side err = %v", err)
	}
	if err := DeclareWinner(m, r, 5, 2, time.Now()); err != nil {
		t.Fatal(err)
	}
	if *m.WinnerID != 6 || r.SetsWonP2 != 3 || r.SetsWonP1 != 0 || !r.Walkover {
		t.Fatalf("match %+v result %+v", m, r)
	}
	if r.Sets[0] != (models.SetScore{}) {
		t.Fatal("sets not cleared")
	}
	if got := Summary(r, 5); got != "Walkover 0-3" {
		t.Fatalf("Summary = %q", got)
	}
}

func TestSyncSlot(t *testing.T) {
	slot := &models.BracketSlot{Slot1: models.ParticipantOccupant(1), Slot2: models.ByeOccupant()}
	m := NewMatch(slot)
	SyncSlot(slot, m)
	if slot.Status != models.SlotPending {
		t.Fatalf("slot status = %s", slot.Status)
	}
	if err := ResolveBye(m, &models.Result{}, 3, time.Now()); err != nil {
		t.Fatal(err)
	}
	SyncSlot(slot, m)
	if slot.Status != models.SlotFinished || slot.WinnerID == nil || *slot.WinnerID != 1 {
		t.Fatalf("slot = %+v", slot)
	}
}
