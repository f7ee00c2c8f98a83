package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Dosada05/tabletennis-bracket/brackets"
	"github.com/Dosada05/tabletennis-bracket/models"
	"github.com/Dosada05/tabletennis-bracket/repositories"
	"go.uber.org/zap"
)

// AdvanceReport counts what one advancement pass changed.
type AdvanceReport struct {
	TournamentID      int  `json:"tournament_id"`
	WinnersPlaced     int  `json:"winners_placed"`
	MatchesCreated    int  `json:"matches_created"`
	ByesResolved      int  `json:"byes_resolved"`
	MatchesActivated  int  `json:"matches_activated"`
	SlotsSynced       int  `json:"slots_synced"`
	ThirdPlaceCreated bool `json:"third_place_created"`
	Completed         bool `json:"completed"`
}

// Changed reports whether the pass wrote anything.
func (r *AdvanceReport) Changed() bool {
	return r.WinnersPlaced > 0 || r.MatchesCreated > 0 || r.ByesResolved > 0 ||
		r.MatchesActivated > 0 || r.SlotsSynced > 0 || r.ThirdPlaceCreated || r.Completed
}

// AdvancementEngine moves winners through the bracket. OnMatchFinished is the
// incremental path for one slot; ResyncAll walks the whole bracket. Both are
// idempotent and share the same placement steps.
type AdvancementEngine interface {
	OnMatchFinished(ctx context.Context, tournamentID, slotID int) (*AdvanceReport, error)
	ResyncAll(ctx context.Context, tournamentID int) (*AdvanceReport, error)
}

// Finalizer is run once a tournament reaches its terminal state.
type Finalizer interface {
	Finalize(ctx context.Context, tournamentID int) error
}

type advancementEngine struct {
	store     repositories.Store
	notifier  Notifier
	finalizer Finalizer
	log       *zap.Logger
	now       func() time.Time
}

func NewAdvancementEngine(store repositories.Store, notifier Notifier, finalizer Finalizer, log *zap.Logger) AdvancementEngine {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &advancementEngine{
		store:     store,
		notifier:  notifier,
		finalizer: finalizer,
		log:       log,
		now:       time.Now,
	}
}

func (e *advancementEngine) OnMatchFinished(ctx context.Context, tournamentID, slotID int) (*AdvanceReport, error) {
	var adv *advancer
	err := e.store.InTx(ctx, func(tx repositories.Tx) error {
		st, err := loadBracketState(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		slot := st.slotByID(slotID)
		if slot == nil {
			return &brackets.NotFoundError{Entity: "bracket slot", ID: slotID}
		}
		m := st.matchBySlot[slot.ID]
		if m == nil || !m.IsFinished() {
			return conflict("advance", "slot %d has no finished match", slotID)
		}

		adv = newAdvancer(ctx, tx, st, e.now(), e.log)
		if err := adv.syncSlot(slot); err != nil {
			return err
		}
		if err := adv.advanceFrom(slot); err != nil {
			return err
		}
		if err := adv.ensureThirdPlace(); err != nil {
			return err
		}
		return adv.checkComplete()
	})
	if err != nil {
		return nil, err
	}
	e.after(ctx, adv, "match_finished")
	return adv.report, nil
}

func (e *advancementEngine) ResyncAll(ctx context.Context, tournamentID int) (*AdvanceReport, error) {
	var adv *advancer
	err := e.store.InTx(ctx, func(tx repositories.Tx) error {
		st, err := loadBracketState(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		if len(st.slots) == 0 {
			return conflict("resync", "tournament %d has no bracket", tournamentID)
		}
		adv = newAdvancer(ctx, tx, st, e.now(), e.log)
		return adv.resync()
	})
	if err != nil {
		return nil, err
	}
	e.after(ctx, adv, "resync")
	return adv.report, nil
}

// after publishes the pass's changes and finalizes a completed tournament.
// Neither can fail the pass.
func (e *advancementEngine) after(ctx context.Context, adv *advancer, reason string) {
	if !adv.report.Changed() {
		return
	}
	e.log.Info("bracket advanced",
		zap.Int("tournament_id", adv.report.TournamentID),
		zap.String("reason", reason),
		zap.Int("winners_placed", adv.report.WinnersPlaced),
		zap.Int("matches_created", adv.report.MatchesCreated),
		zap.Int("byes_resolved", adv.report.ByesResolved),
		zap.Bool("third_place_created", adv.report.ThirdPlaceCreated),
		zap.Bool("completed", adv.report.Completed),
	)
	adv.notify(ctx, e.notifier, reason)

	if adv.report.Completed && e.finalizer != nil {
		if err := e.finalizer.Finalize(ctx, adv.report.TournamentID); err != nil {
			e.log.Error("tournament finalization failed",
				zap.Int("tournament_id", adv.report.TournamentID), zap.Error(err))
		}
	}
}

// bracketState is a tournament's bracket loaded inside a transaction that
// holds the tournament row lock.
type bracketState struct {
	tournament  *models.Tournament
	slots       []*models.BracketSlot
	matchBySlot map[int]*models.Match
	results     map[int]*models.Result // by match id
	maxRound    int
}

func loadBracketState(ctx context.Context, tx repositories.Tx, tournamentID int) (*bracketState, error) {
	t, err := tx.Tournaments().GetForUpdate(ctx, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err, "tournament", tournamentID)
	}
	slots, err := tx.Slots().ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots of tournament %d: %w", tournamentID, err)
	}
	matches, err := tx.Matches().ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches of tournament %d: %w", tournamentID, err)
	}
	results, err := tx.Results().ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list results of tournament %d: %w", tournamentID, err)
	}

	st := &bracketState{
		tournament:  t,
		slots:       slots,
		matchBySlot: make(map[int]*models.Match, len(matches)),
		results:     make(map[int]*models.Result, len(results)),
		maxRound:    brackets.MaxNormalRound(slots),
	}
	for _, m := range matches {
		st.matchBySlot[m.SlotID] = m
	}
	for _, r := range results {
		st.results[r.MatchID] = r
	}
	return st, nil
}

func (st *bracketState) slotByID(id int) *models.BracketSlot {
	for _, s := range st.slots {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (st *bracketState) bestOf(round int) int {
	return brackets.BestOfFor(st.tournament, round, st.maxRound)
}

// advancer applies placement steps to a loaded bracket within one
// transaction. Every step checks before it writes, so repeating a step is a
// no-op.
type advancer struct {
	ctx     context.Context
	tx      repositories.Tx
	st      *bracketState
	now     time.Time
	log     *zap.Logger
	report  *AdvanceReport
	touched []int // match ids, in order of first change
}

func newAdvancer(ctx context.Context, tx repositories.Tx, st *bracketState, now time.Time, log *zap.Logger) *advancer {
	return &advancer{
		ctx:    ctx,
		tx:     tx,
		st:     st,
		now:    now,
		log:    log,
		report: &AdvanceReport{TournamentID: st.tournament.ID},
	}
}

func (a *advancer) touch(matchID int) {
	for _, id := range a.touched {
		if id == matchID {
			return
		}
	}
	a.touched = append(a.touched, matchID)
}

// syncSlot mirrors the slot's match onto the slot.
func (a *advancer) syncSlot(slot *models.BracketSlot) error {
	m := a.st.matchBySlot[slot.ID]
	if m == nil {
		return nil
	}
	before := *slot
	brackets.SyncSlot(slot, m)
	if before.Status == slot.Status && sameWinner(before.WinnerID, slot.WinnerID) {
		return nil
	}
	if err := a.tx.Slots().Update(a.ctx, slot); err != nil {
		return handleRepositoryError(err, "bracket slot", slot.ID)
	}
	a.report.SlotsSynced++
	return nil
}

// advanceFrom places a decided slot's winner into its destination and
// materialises the destination's match once both halves are known.
func (a *advancer) advanceFrom(slot *models.BracketSlot) error {
	if !slot.HasWinner() || slot.Stage == models.StageThirdPlace || slot.Round >= a.st.maxRound {
		return nil
	}
	round, pos, half := brackets.NextSlot(slot.Round, slot.Position)
	dest := brackets.FindSlot(a.st.slots, round, pos, models.StageNormal)
	if dest == nil {
		return &brackets.StructuralError{Reason: fmt.Sprintf("destination slot r%d p%d of slot %d is missing", round, pos, slot.ID)}
	}
	placed, err := brackets.PlaceWinner(dest, half, *slot.WinnerID)
	if err != nil {
		return err
	}
	if placed {
		if err := a.tx.Slots().Update(a.ctx, dest); err != nil {
			return handleRepositoryError(err, "bracket slot", dest.ID)
		}
		a.report.WinnersPlaced++
		a.log.Debug("winner placed",
			zap.Int("tournament_id", a.st.tournament.ID),
			zap.Int("participant_id", *slot.WinnerID),
			zap.Int("round", round), zap.Int("position", pos), zap.Int("half", half),
		)
	}
	return a.materialise(dest)
}

// materialise creates the match of a filled slot. A match against a BYE is
// resolved on the spot and its winner advanced.
func (a *advancer) materialise(slot *models.BracketSlot) error {
	if a.st.matchBySlot[slot.ID] != nil || !slot.Filled() {
		return nil
	}
	bestOf := a.st.bestOf(slot.Round)
	m := brackets.NewMatch(slot)
	r := &models.Result{}

	bye := m.HasBye()
	if bye {
		if err := brackets.ResolveBye(m, r, bestOf, a.now); err != nil {
			return err
		}
	} else if err := brackets.Activate(m, a.now); err != nil {
		return err
	}

	if err := a.tx.Matches().Create(a.ctx, m); err != nil {
		return handleRepositoryError(err, "match", slot.ID)
	}
	r.MatchID = m.ID
	if err := a.tx.Results().Save(a.ctx, r); err != nil {
		return handleRepositoryError(err, "result", m.ID)
	}
	a.st.matchBySlot[slot.ID] = m
	a.st.results[m.ID] = r
	a.report.MatchesCreated++
	if bye {
		a.report.ByesResolved++
	}
	a.touch(m.ID)

	if err := a.syncSlot(slot); err != nil {
		return err
	}
	return a.advanceFrom(slot)
}

// repairMatch moves a stale match forward: an unresolved BYE match is
// resolved and a pending match with two participants is activated.
func (a *advancer) repairMatch(slot *models.BracketSlot) error {
	m := a.st.matchBySlot[slot.ID]
	if m == nil || m.Status != models.MatchPending {
		return nil
	}
	r := a.st.results[m.ID]
	if r == nil {
		r = &models.Result{MatchID: m.ID}
		a.st.results[m.ID] = r
	}
	switch {
	case m.HasBye():
		if err := brackets.ResolveBye(m, r, a.st.bestOf(slot.Round), a.now); err != nil {
			return err
		}
		if err := a.tx.Results().Save(a.ctx, r); err != nil {
			return handleRepositoryError(err, "result", m.ID)
		}
		a.report.ByesResolved++
	case m.Player1.IsParticipant() && m.Player2.IsParticipant():
		if err := brackets.Activate(m, a.now); err != nil {
			return err
		}
		a.report.MatchesActivated++
	default:
		return nil
	}
	if err := a.tx.Matches().Update(a.ctx, m); err != nil {
		return handleRepositoryError(err, "match", m.ID)
	}
	a.touch(m.ID)
	return nil
}

// ensureThirdPlace creates the third-place slot and match once both
// semifinals have real losers. It runs at most once per tournament because
// the existence check happens under the tournament lock.
func (a *advancer) ensureThirdPlace() error {
	if brackets.ThirdPlaceSlot(a.st.slots) != nil {
		return nil
	}
	loserA, loserB, ok := brackets.SemifinalLosers(a.st.slots)
	if !ok {
		return nil
	}
	slot := brackets.NewThirdPlaceSlot(a.st.tournament.ID, a.st.maxRound-1, loserA, loserB)
	if err := a.tx.Slots().Create(a.ctx, slot); err != nil {
		return handleRepositoryError(err, "bracket slot", 0)
	}
	a.st.slots = append(a.st.slots, slot)
	a.report.ThirdPlaceCreated = true
	a.log.Info("third place match created",
		zap.Int("tournament_id", a.st.tournament.ID),
		zap.Int("participant_a", loserA),
		zap.Int("participant_b", loserB),
	)
	return a.materialise(slot)
}

// checkComplete closes an active tournament whose terminal condition holds.
func (a *advancer) checkComplete() error {
	t := a.st.tournament
	if t.Status != models.StatusActive || !brackets.IsComplete(a.st.slots) {
		return nil
	}
	now := a.now
	if err := a.tx.Tournaments().UpdateStatus(a.ctx, t.ID, models.StatusCompleted, &now); err != nil {
		return handleRepositoryError(err, "tournament", t.ID)
	}
	t.Status = models.StatusCompleted
	t.CompletedAt = &now
	a.report.Completed = true
	return nil
}

// resync walks the bracket round by round and applies every step.
func (a *advancer) resync() error {
	for round := 1; round <= a.st.maxRound; round++ {
		for _, slot := range a.roundSlots(round) {
			if err := a.materialise(slot); err != nil {
				return err
			}
			if err := a.repairMatch(slot); err != nil {
				return err
			}
			if err := a.syncSlot(slot); err != nil {
				return err
			}
			if err := a.advanceFrom(slot); err != nil {
				return err
			}
		}
	}
	if err := a.ensureThirdPlace(); err != nil {
		return err
	}
	if tp := brackets.ThirdPlaceSlot(a.st.slots); tp != nil {
		if err := a.materialise(tp); err != nil {
			return err
		}
		if err := a.repairMatch(tp); err != nil {
			return err
		}
		if err := a.syncSlot(tp); err != nil {
			return err
		}
	}
	return a.checkComplete()
}

func (a *advancer) roundSlots(round int) []*models.BracketSlot {
	var out []*models.BracketSlot
	for _, s := range a.st.slots {
		if s.Round == round && s.Stage == models.StageNormal {
			out = append(out, s)
		}
	}
	return out
}

// notify publishes the touched matches and, when the bracket changed, a
// bracket update.
func (a *advancer) notify(ctx context.Context, n Notifier, reason string) {
	for _, id := range a.touched {
		var m *models.Match
		for _, cand := range a.st.matchBySlot {
			if cand.ID == id {
				m = cand
				break
			}
		}
		if m == nil {
			continue
		}
		n.MatchChanged(ctx, matchEvent(m, a.st.results[id], a.st.bestOf(m.Round), models.SetScore{}, a.now))
	}
	n.BracketChanged(ctx, BracketUpdate{
		TournamentID: a.st.tournament.ID,
		Reason:       reason,
		Report:       a.report,
	})
}

func sameWinner(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
