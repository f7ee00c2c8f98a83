package brackets

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/Dosada05/tabletennis-bracket/models"
)

func roster(n int) []*models.Participant {
	ps := make([]*models.Participant, n)
	for i := range ps {
		ps[i] = &models.Participant{ID: i + 1, Name: "player"}
	}
	return ps
}

func intPtr(v int) *int { return &v }

func generate(t *testing.T, seed uint64, params GenerateBracketParams) (*Bracket, error) {
	t.Helper()
	g := NewSingleEliminationGenerator(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
	return g.GenerateBracket(context.Background(), params)
}

func TestSizing(t *testing.T) {
	tests := []struct {
		n                                 int
		size, byes, rounds, firstRoundCnt int
	}{
		{1, 2, 1, 1, 1},
		{2, 2, 0, 1, 1},
		{3, 4, 1, 2, 2},
		{4, 4, 0, 2, 2},
		{5, 8, 3, 3, 4},
		{6, 8, 2, 3, 4},
		{8, 8, 0, 3, 4},
		{9, 16, 7, 4, 8},
		{17, 32, 15, 5, 16},
	}
	for _, tt := range tests {
		size, byes, rounds, first := Sizing(tt.n)
		if size != tt.size || byes != tt.byes || rounds != tt.rounds || first != tt.firstRoundCnt {
			t.Errorf("Sizing(%d) = %d,%d,%d,%d want %d,%d,%d,%d", tt.n, size, byes, rounds, first,
				tt.size, tt.byes, tt.rounds, tt.firstRoundCnt)
		}
	}
}

func checkBracket(t *testing.T, n int, b *Bracket) {
	t.Helper()
	size, byes, rounds, first := Sizing(n)
	if b.Size != size || b.Byes != byes || b.Rounds != rounds || b.FirstRoundSlots != first {
		t.Fatalf("n=%d: bracket %d/%d/%d/%d", n, b.Size, b.Byes, b.Rounds, b.FirstRoundSlots)
	}
	seen := make(map[int]bool)
	gotByes := 0
	for _, s := range b.RoundSlots(1) {
		if s.Slot1.IsBye() && s.Slot2.IsBye() {
			t.Fatalf("n=%d: position %d holds two BYEs", n, s.Position)
		}
		for _, o := range []models.Occupant{s.Slot1, s.Slot2} {
			switch {
			case o.IsBye():
				gotByes++
			case o.IsParticipant():
				if seen[*o.ParticipantID] {
					t.Fatalf("n=%d: participant %d placed twice", n, *o.ParticipantID)
				}
				seen[*o.ParticipantID] = true
			default:
				t.Fatalf("n=%d: position %d has an empty half", n, s.Position)
			}
		}
	}
	if len(seen) != n || gotByes != byes {
		t.Fatalf("n=%d: %d participants and %d byes placed", n, len(seen), gotByes)
	}
	for r := 2; r <= rounds; r++ {
		rs := b.RoundSlots(r)
		if len(rs) != first>>(r-1) {
			t.Fatalf("n=%d: round %d has %d slots", n, r, len(rs))
		}
		for _, s := range rs {
			if !s.Slot1.IsEmpty() || !s.Slot2.IsEmpty() || s.Status != models.SlotPending {
				t.Fatalf("n=%d: round %d slot not empty: %+v", n, r, s)
			}
		}
	}
}

func TestGenerateBracketNoByeVersusBye(t *testing.T) {
	for n := 1; n <= 33; n++ {
		for seed := uint64(0); seed < 25; seed++ {
			b, err := generate(t, seed, GenerateBracketParams{TournamentID: 1, Participants: roster(n)})
			if err != nil {
				t.Fatalf("n=%d seed=%d: %v", n, seed, err)
			}
			checkBracket(t, n, b)
		}
	}
}

func TestGenerateBracketSixParticipants(t *testing.T) {
	b, err := generate(t, 42, GenerateBracketParams{TournamentID: 1, Participants: roster(6)})
	if err != nil {
		t.Fatal(err)
	}
	if b.Size != 8 || b.Byes != 2 || len(b.RoundSlots(1)) != 4 {
		t.Fatalf("bracket = %+v", b)
	}
	withBye := 0
	for _, s := range b.RoundSlots(1) {
		if s.Slot1.IsBye() || s.Slot2.IsBye() {
			withBye++
		}
	}
	if withBye != 2 {
		t.Fatalf("%d slots with a BYE, want 2", withBye)
	}
	if len(b.Slots) != 4+2+1 {
		t.Fatalf("%d slots total, want 7", len(b.Slots))
	}
}

func TestGenerateBracketRejectsEmptyRoster(t *testing.T) {
	_, err := generate(t, 1, GenerateBracketParams{})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestGenerateBracketManualAssignments(t *testing.T) {
	manual := map[int]ManualPairing{
		1: {Slot1: ManualEntry{ParticipantID: intPtr(3)}, Slot2: ManualEntry{Bye: true}},
		3: {Slot1: ManualEntry{ParticipantID: intPtr(5)}},
	}
	for seed := uint64(0); seed < 20; seed++ {
		b, err := generate(t, seed, GenerateBracketParams{Participants: roster(6), Manual: manual})
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		checkBracket(t, 6, b)
		first := b.RoundSlots(1)
		if !first[0].Slot1.Is(3) || !first[0].Slot2.IsBye() {
			t.Fatalf("position 1 = %+v", first[0])
		}
		if !first[2].Slot1.Is(5) {
			t.Fatalf("position 3 = %+v", first[2])
		}
	}
}

func TestGenerateBracketManualErrors(t *testing.T) {
	tests := []struct {
		name   string
		manual map[int]ManualPairing
		want   error
	}{
		{"duplicate participant", map[int]ManualPairing{
			1: {Slot1: ManualEntry{ParticipantID: intPtr(2)}},
			2: {Slot2: ManualEntry{ParticipantID: intPtr(2)}},
		}, ErrStructural},
		{"unknown participant", map[int]ManualPairing{
			1: {Slot1: ManualEntry{ParticipantID: intPtr(99)}},
		}, ErrNotFound},
		{"double bye", map[int]ManualPairing{
			2: {Slot1: ManualEntry{Bye: true}, Slot2: ManualEntry{Bye: true}},
		}, ErrStructural},
		{"too many byes", map[int]ManualPairing{
			1: {Slot1: ManualEntry{Bye: true}},
			2: {Slot1: ManualEntry{Bye: true}},
			3: {Slot1: ManualEntry{Bye: true}},
		}, ErrStructural},
		{"position out of range", map[int]ManualPairing{
			5: {Slot1: ManualEntry{ParticipantID: intPtr(1)}},
		}, ErrValidation},
		{"bye and participant", map[int]ManualPairing{
			1: {Slot1: ManualEntry{ParticipantID: intPtr(1), Bye: true}},
		}, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := generate(t, 1, GenerateBracketParams{Participants: roster(6), Manual: tt.manual})
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGenerateBracketDuplicateRosterEntry(t *testing.T) {
	ps := roster(3)
	ps[2].ID = 1
	if _, err := generate(t, 1, GenerateBracketParams{Participants: ps}); !errors.Is(err, ErrStructural) {
		t.Fatalf("err = %v, want structural", err)
	}
}

func TestGenerateBracketManualByesForceRepair(t *testing.T) {
	// Five players in a bracket of eight: two of the three BYEs are fixed in
	// the last two positions, so an automatic BYE drawn late must be moved.
	manual := map[int]ManualPairing{
		3: {Slot2: ManualEntry{Bye: true}},
		4: {Slot2: ManualEntry{Bye: true}},
	}
	for seed := uint64(0); seed < 50; seed++ {
		b, err := generate(t, seed, GenerateBracketParams{Participants: roster(5), Manual: manual})
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		checkBracket(t, 5, b)
		first := b.RoundSlots(1)
		if !first[2].Slot2.IsBye() || !first[3].Slot2.IsBye() {
			t.Fatalf("seed %d: manual BYEs moved", seed)
		}
	}
}
