package brackets

import (
	"fmt"
	"math"
	"strings"

	"github.com/Dosada05/tabletennis-bracket/models"
)

// SetsToWin is the number of sets needed to take a best-of-n match.
func SetsToWin(bestOf int) int { return bestOf/2 + 1 }

// ValidateBestOf accepts the supported odd match lengths 1, 3, 5, 7 and 9.
func ValidateBestOf(bestOf int) error {
	if bestOf < 1 || bestOf > models.MaxSets || bestOf%2 == 0 {
		return validationf("best of sets must be one of 1, 3, 5, 7, 9 (got %d)", bestOf)
	}
	return nil
}

// BestOfFor resolves the match length for a round: the final (the highest
// normal round) uses the final setting.
func BestOfFor(t *models.Tournament, round, maxNormalRound int) int {
	if round == maxNormalRound && t.BestOfSetsFinal > 0 {
		return t.BestOfSetsFinal
	}
	return t.BestOfSets
}

// Coefficient is won/lost, or won when nothing was lost, rounded to 3 decimals.
func Coefficient(won, lost int) float64 {
	if lost > 0 {
		return round3(float64(won) / float64(lost))
	}
	return float64(won)
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

// Recompute derives the sets-won counters and coefficients from the raw sets
// in 1..bestOf. Walkover results keep their synthesized counters.
func Recompute(r *models.Result, bestOf int) {
	if r.Walkover {
		r.CoefP1 = Coefficient(r.SetsWonP1, r.SetsWonP2)
		r.CoefP2 = Coefficient(r.SetsWonP2, r.SetsWonP1)
		return
	}
	won1, won2 := 0, 0
	for i := 0; i < bestOf && i < models.MaxSets; i++ {
		s := r.Sets[i]
		switch SetWinner(s.P1, s.P2) {
		case 1:
			won1++
		case 2:
			won2++
		}
	}
	r.SetsWonP1, r.SetsWonP2 = won1, won2
	r.CoefP1 = Coefficient(won1, won2)
	r.CoefP2 = Coefficient(won2, won1)
}

// IsSetSaved reports whether set index (1-based) holds a locked score.
func IsSetSaved(r *models.Result, index int) bool {
	s := r.Set(index)
	return s.P1 != 0 && s.P2 != 0
}

// SavedSets lists the set indexes the boundary must treat as read-only.
func SavedSets(r *models.Result, bestOf int) []int {
	var saved []int
	for i := 1; i <= bestOf && i <= models.MaxSets; i++ {
		if IsSetSaved(r, i) {
			saved = append(saved, i)
		}
	}
	return saved
}

// CompletedSets lists the set indexes that have a winner.
func CompletedSets(r *models.Result, bestOf int) []int {
	var done []int
	for i := 1; i <= bestOf && i <= models.MaxSets; i++ {
		s := r.Set(i)
		if HasSetWinner(s.P1, s.P2) {
			done = append(done, i)
		}
	}
	return done
}

// CurrentSet is the first set without a winner, or 0 once the match is decided.
func CurrentSet(r *models.Result, bestOf int) int {
	stw := SetsToWin(bestOf)
	if r.SetsWonP1 >= stw || r.SetsWonP2 >= stw {
		return 0
	}
	for i := 1; i <= bestOf && i <= models.MaxSets; i++ {
		s := r.Set(i)
		if !HasSetWinner(s.P1, s.P2) {
			return i
		}
	}
	return 0
}

// Summary renders the finished sets, e.g. "Set 1: 11-5 | Set 2: 9-11".
func Summary(r *models.Result, bestOf int) string {
	if r.Walkover {
		return fmt.Sprintf("Walkover %d-%d", r.SetsWonP1, r.SetsWonP2)
	}
	parts := make([]string, 0, bestOf)
	for _, i := range CompletedSets(r, bestOf) {
		s := r.Set(i)
		parts = append(parts, fmt.Sprintf("Set %d: %d-%d", i, s.P1, s.P2))
	}
	if len(parts) == 0 {
		return "No sets played"
	}
	return strings.Join(parts, " | ")
}

// Decision is the outcome of a completion check.
type Decision struct {
	Decided bool
	Winner  int // side 1 or 2 when Decided
}

// Decide is the try_close check: a side reaching sets-to-win provisionally
// wins. Equal counts at the threshold are inconsistent and reported.
func Decide(r *models.Result, bestOf int) (Decision, error) {
	stw := SetsToWin(bestOf)
	reached1, reached2 := r.SetsWonP1 >= stw, r.SetsWonP2 >= stw
	switch {
	case reached1 && reached2:
		return Decision{}, structuralf("both sides reached %d sets (%d-%d)", stw, r.SetsWonP1, r.SetsWonP2)
	case reached1:
		return Decision{Decided: true, Winner: 1}, nil
	case reached2:
		return Decision{Decided: true, Winner: 2}, nil
	}
	return Decision{}, nil
}

// RecordSet is the single-set score submission. On success the result is
// recomputed and the match carries the provisional decision. On error
// neither match nor result is changed.
func RecordSet(m *models.Match, r *models.Result, bestOf, index, a, b int, override bool) (Decision, error) {
	if err := CanScore(m, override); err != nil {
		return Decision{}, err
	}
	if index < 1 || index > bestOf {
		return Decision{}, validationf("set index %d outside 1..%d", index, bestOf)
	}
	if IsSetSaved(r, index) && !override {
		return Decision{}, conflictf("record_set", "set %d is already saved", index)
	}
	if err := checkSubmittedSet(a, b); err != nil {
		return Decision{}, err
	}

	next := *r
	next.Sets[index-1] = models.SetScore{P1: a, P2: b}
	Recompute(&next, bestOf)
	d, err := Decide(&next, bestOf)
	if err != nil {
		return Decision{}, err
	}
	*r = next
	applyDecision(m, d)
	return d, nil
}

// ApplySets is the batch form: every given set (index i+1) replaces the
// stored one under RecordSet's rules, and the final state must not be a tie
// at one set short of winning.
func ApplySets(m *models.Match, r *models.Result, bestOf int, sets []models.SetScore, override bool) (Decision, error) {
	if err := CanScore(m, override); err != nil {
		return Decision{}, err
	}
	if len(sets) > bestOf {
		return Decision{}, validationf("%d sets submitted for a best of %d", len(sets), bestOf)
	}

	next := *r
	for i, s := range sets {
		index := i + 1
		cur := r.Set(index)
		if cur == s {
			continue
		}
		if IsSetSaved(r, index) && !override {
			return Decision{}, conflictf("submit_sets", "set %d is already saved", index)
		}
		if err := checkSubmittedSet(s.P1, s.P2); err != nil {
			return Decision{}, fmt.Errorf("set %d: %w", index, err)
		}
		next.Sets[i] = s
	}
	Recompute(&next, bestOf)

	stw := SetsToWin(bestOf)
	if next.SetsWonP1 == next.SetsWonP2 && next.SetsWonP1 == stw-1 && stw > 1 {
		return Decision{}, validationf("sets tied %d-%d: the deciding set result is required", next.SetsWonP1, next.SetsWonP2)
	}
	d, err := Decide(&next, bestOf)
	if err != nil {
		return Decision{}, err
	}
	*r = next
	applyDecision(m, d)
	return d, nil
}

func checkSubmittedSet(a, b int) error {
	if err := ValidateSet(a, b); err != nil {
		return err
	}
	if (a != 0 || b != 0) && !HasSetWinner(a, b) {
		return validationf("set %d-%d has no winner yet", a, b)
	}
	return nil
}

func applyDecision(m *models.Match, d Decision) {
	if !d.Decided {
		m.PendingConfirmation = false
		m.WinnerID = nil
		return
	}
	id, ok := m.Side(d.Winner)
	if !ok {
		return
	}
	m.PendingConfirmation = true
	m.WinnerID = &id
}
