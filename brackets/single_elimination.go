package brackets

import (
	"context"
	"math/rand/v2"
	"sort"

	"github.com/Dosada05/tabletennis-bracket/models"
)

// Sizing returns the bracket size (next power of two, at least 2), the number
// of BYEs, the number of rounds and the number of first-round slots.
func Sizing(n int) (size, byes, rounds, firstRound int) {
	size = 2
	for size < n {
		size <<= 1
	}
	rounds = 0
	for s := size; s > 1; s >>= 1 {
		rounds++
	}
	if n <= 1 {
		rounds = 1
	}
	byes = size - n
	if byes < 0 {
		byes = 0
	}
	return size, byes, rounds, size / 2
}

type poolEntry struct {
	participantID int
	bye           bool
}

func (e poolEntry) occupant() models.Occupant {
	if e.bye {
		return models.ByeOccupant()
	}
	return models.ParticipantOccupant(e.participantID)
}

type SingleEliminationGenerator struct {
	rng *rand.Rand
}

// NewSingleEliminationGenerator uses rng for the fairness shuffle; nil uses
// the global source.
func NewSingleEliminationGenerator(rng *rand.Rand) BracketGenerator {
	return &SingleEliminationGenerator{rng: rng}
}

func (g *SingleEliminationGenerator) GetName() string {
	return "SingleElimination"
}

func (g *SingleEliminationGenerator) shuffle(pool []poolEntry) {
	swap := func(i, j int) { pool[i], pool[j] = pool[j], pool[i] }
	if g.rng != nil {
		g.rng.Shuffle(len(pool), swap)
		return
	}
	rand.Shuffle(len(pool), swap)
}

func (g *SingleEliminationGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) (*Bracket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := len(params.Participants)
	if n < 1 {
		return nil, validationf("at least one participant is required to build a bracket")
	}

	known := make(map[int]bool, n)
	for _, p := range params.Participants {
		if p == nil {
			return nil, validationf("participant list contains an empty entry")
		}
		if known[p.ID] {
			return nil, structuralf("participant %d is listed twice", p.ID)
		}
		known[p.ID] = true
	}

	size, byes, rounds, firstRound := Sizing(n)

	// halves[(position-1)*2 + (half-1)]
	halves := make([]models.Occupant, 2*firstRound)
	for i := range halves {
		halves[i] = models.EmptyOccupant()
	}
	auto := make([]bool, len(halves))

	used, manualByes, err := applyManual(params.Manual, firstRound, known, halves)
	if err != nil {
		return nil, err
	}
	if manualByes > byes {
		return nil, structuralf("%d BYEs assigned manually but the bracket needs only %d", manualByes, byes)
	}

	pool := make([]poolEntry, 0, n-len(used)+byes-manualByes)
	for _, p := range params.Participants {
		if _, taken := used[p.ID]; !taken {
			pool = append(pool, poolEntry{participantID: p.ID})
		}
	}
	for i := 0; i < byes-manualByes; i++ {
		pool = append(pool, poolEntry{bye: true})
	}
	g.shuffle(pool)

	k := 0
	for idx := range halves {
		if !halves[idx].IsEmpty() {
			continue
		}
		if k >= len(pool) {
			return nil, structuralf("not enough entries to fill position %d", idx/2+1)
		}
		if pool[k].bye && halves[idx^1].IsBye() {
			if j := nextParticipant(pool, k+1); j >= 0 {
				pool[k], pool[j] = pool[j], pool[k]
			} else if !repairBackward(halves, auto, idx, &pool[k]) {
				return nil, structuralf("position %d would hold two BYEs and no participant can be swapped in", idx/2+1)
			}
		}
		halves[idx] = pool[k].occupant()
		auto[idx] = true
		k++
	}
	if k != len(pool) {
		return nil, structuralf("%d entries left unplaced", len(pool)-k)
	}

	slots := make([]*models.BracketSlot, 0, size)
	for pos := 1; pos <= firstRound; pos++ {
		slots = append(slots, &models.BracketSlot{
			TournamentID: params.TournamentID,
			Round:        1,
			Position:     pos,
			Stage:        models.StageNormal,
			Slot1:        halves[(pos-1)*2],
			Slot2:        halves[(pos-1)*2+1],
			Status:       models.SlotPending,
		})
	}
	for round := 2; round <= rounds; round++ {
		count := firstRound >> (round - 1)
		for pos := 1; pos <= count; pos++ {
			slots = append(slots, &models.BracketSlot{
				TournamentID: params.TournamentID,
				Round:        round,
				Position:     pos,
				Stage:        models.StageNormal,
				Slot1:        models.EmptyOccupant(),
				Slot2:        models.EmptyOccupant(),
				Status:       models.SlotPending,
			})
		}
	}

	return &Bracket{
		Size:            size,
		Byes:            byes,
		Rounds:          rounds,
		FirstRoundSlots: firstRound,
		Slots:           slots,
	}, nil
}

func applyManual(manual map[int]ManualPairing, firstRound int, known map[int]bool, halves []models.Occupant) (map[int]int, int, error) {
	used := make(map[int]int)
	byes := 0

	positions := make([]int, 0, len(manual))
	for pos := range manual {
		positions = append(positions, pos)
	}
	sort.Ints(positions)

	for _, pos := range positions {
		if pos < 1 || pos > firstRound {
			return nil, 0, validationf("manual position %d outside 1..%d", pos, firstRound)
		}
		pairing := manual[pos]
		for half, entry := range []ManualEntry{pairing.Slot1, pairing.Slot2} {
			if !entry.IsSet() {
				continue
			}
			idx := (pos-1)*2 + half
			if entry.Bye {
				if entry.ParticipantID != nil {
					return nil, 0, validationf("position %d half %d is both a BYE and a participant", pos, half+1)
				}
				halves[idx] = models.ByeOccupant()
				byes++
				continue
			}
			id := *entry.ParticipantID
			if !known[id] {
				return nil, 0, &NotFoundError{Entity: "participant", ID: id}
			}
			if prev, dup := used[id]; dup {
				return nil, 0, structuralf("participant %d assigned to positions %d and %d", id, prev, pos)
			}
			used[id] = pos
			halves[idx] = models.ParticipantOccupant(id)
		}
		if pairing.Slot1.Bye && pairing.Slot2.Bye {
			return nil, 0, structuralf("position %d assigned a BYE on both sides", pos)
		}
	}
	return used, byes, nil
}

func nextParticipant(pool []poolEntry, from int) int {
	for j := from; j < len(pool); j++ {
		if !pool[j].bye {
			return j
		}
	}
	return -1
}

// repairBackward handles a BYE that would face a BYE when only BYEs remain:
// an automatically placed participant from an earlier slot whose other side
// is a participant takes this half, and the BYE goes there instead.
func repairBackward(halves []models.Occupant, auto []bool, idx int, entry *poolEntry) bool {
	for prev := 0; prev < idx; prev++ {
		if !auto[prev] || !halves[prev].IsParticipant() || !halves[prev^1].IsParticipant() {
			continue
		}
		*entry = poolEntry{participantID: *halves[prev].ParticipantID}
		halves[prev] = models.ByeOccupant()
		return true
	}
	return false
}
