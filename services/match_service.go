package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/tabletennis-bracket/brackets"
	"github.com/Dosada05/tabletennis-bracket/livescore"
	"github.com/Dosada05/tabletennis-bracket/locks"
	"github.com/Dosada05/tabletennis-bracket/models"
	"github.com/Dosada05/tabletennis-bracket/repositories"
	"go.uber.org/zap"
)

// MatchView is a match with its score sheet and the derived values the
// scoring UI needs.
type MatchView struct {
	Match            *models.Match     `json:"match"`
	Result           *models.Result    `json:"result"`
	Sets             []models.SetScore `json:"sets"`
	BestOf           int               `json:"best_of"`
	SetsToWin        int               `json:"sets_to_win"`
	CurrentSet       int               `json:"current_set"`
	CurrentSetPoints models.SetScore   `json:"current_set_points"`
	SavedSets        []int             `json:"saved_sets"`
	CompletedSets    []int             `json:"completed_sets"`
	Summary          string            `json:"summary"`
	Advance          *AdvanceReport    `json:"advance,omitempty"`
}

type MatchService interface {
	GetMatch(ctx context.Context, matchID int) (*MatchView, error)
	RecordSet(ctx context.Context, actor models.Actor, matchID, setIndex, pointsA, pointsB int, override bool) (*MatchView, error)
	SubmitSets(ctx context.Context, actor models.Actor, matchID int, sets []models.SetScore, override bool) (*MatchView, error)
	AdjustLivePoints(ctx context.Context, actor models.Actor, matchID, side, delta int) (*MatchView, error)
	Confirm(ctx context.Context, actor models.Actor, matchID int) (*MatchView, error)
	DeclareWinner(ctx context.Context, actor models.Actor, matchID, side int) (*MatchView, error)
	AssignReferee(ctx context.Context, actor models.Actor, matchID, refereeID int) (*MatchView, error)
	AssignReferees(ctx context.Context, actor models.Actor, tournamentID int, assignments []RefereeAssignment) ([]*MatchView, error)
	AssignedMatches(ctx context.Context, actor models.Actor, includeFinished bool) ([]*MatchView, error)
}

// RefereeAssignment puts one referee on one match.
type RefereeAssignment struct {
	MatchID   int `json:"match_id"`
	RefereeID int `json:"referee_id"`
}

type matchService struct {
	store    repositories.Store
	engine   AdvancementEngine
	locker   locks.Locker
	live     livescore.Store
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time
}

func NewMatchService(
	store repositories.Store,
	engine AdvancementEngine,
	locker locks.Locker,
	live livescore.Store,
	notifier Notifier,
	log *zap.Logger,
) MatchService {
	if locker == nil {
		locker = locks.NoopLocker{}
	}
	if live == nil {
		live = livescore.NewMemoryStore()
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &matchService{
		store:    store,
		engine:   engine,
		locker:   locker,
		live:     live,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// matchContext is a match with everything needed to score it.
type matchContext struct {
	tournament *models.Tournament
	match      *models.Match
	result     *models.Result
	bestOf     int
}

func loadMatchContext(ctx context.Context, tx repositories.Tx, matchID int, forUpdate bool) (*matchContext, error) {
	m, err := tx.Matches().GetByID(ctx, matchID)
	if err != nil {
		return nil, handleRepositoryError(err, "match", matchID)
	}
	var t *models.Tournament
	if forUpdate {
		t, err = tx.Tournaments().GetForUpdate(ctx, m.TournamentID)
	} else {
		t, err = tx.Tournaments().GetByID(ctx, m.TournamentID)
	}
	if err != nil {
		return nil, handleRepositoryError(err, "tournament", m.TournamentID)
	}
	if forUpdate {
		// re-read under the tournament lock
		if m, err = tx.Matches().GetByID(ctx, matchID); err != nil {
			return nil, handleRepositoryError(err, "match", matchID)
		}
	}
	slots, err := tx.Slots().ListByTournament(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots of tournament %d: %w", t.ID, err)
	}
	r, err := loadResult(ctx, tx, matchID)
	if err != nil {
		return nil, err
	}
	return &matchContext{
		tournament: t,
		match:      m,
		result:     r,
		bestOf:     brackets.BestOfFor(t, m.Round, brackets.MaxNormalRound(slots)),
	}, nil
}

// loadResult returns an empty result for a match nobody has scored yet.
func loadResult(ctx context.Context, tx repositories.Tx, matchID int) (*models.Result, error) {
	r, err := tx.Results().GetByMatch(ctx, matchID)
	if errors.Is(err, repositories.ErrResultNotFound) {
		return &models.Result{MatchID: matchID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load result of match %d: %w", matchID, err)
	}
	return r, nil
}

func (mc *matchContext) view(live models.SetScore) *MatchView {
	r := mc.result
	v := &MatchView{
		Match:         mc.match,
		Result:        r,
		BestOf:        mc.bestOf,
		SetsToWin:     brackets.SetsToWin(mc.bestOf),
		CurrentSet:    brackets.CurrentSet(r, mc.bestOf),
		SavedSets:     brackets.SavedSets(r, mc.bestOf),
		CompletedSets: brackets.CompletedSets(r, mc.bestOf),
		Summary:       brackets.Summary(r, mc.bestOf),
		Sets:          make([]models.SetScore, 0, mc.bestOf),
	}
	for i := 1; i <= mc.bestOf; i++ {
		v.Sets = append(v.Sets, r.Set(i))
	}
	if v.CurrentSet > 0 && mc.match.Status == models.MatchInProgress {
		v.CurrentSetPoints = live
	}
	return v
}

// canManage reports whether the actor organizes the tournament.
func canManage(actor models.Actor, t *models.Tournament) bool {
	if actor.Role == models.RoleAdmin {
		return true
	}
	return actor.Role == models.RoleOrganizer && t.OrganizerID == actor.UserID
}

func authorizeManage(actor models.Actor, t *models.Tournament) error {
	if !canManage(actor, t) {
		return fmt.Errorf("%w: user %d does not organize tournament %d", ErrForbiddenOperation, actor.UserID, t.ID)
	}
	return nil
}

// authorizeScoring admits the organizer and the tournament's referees. Once a
// referee is assigned to the match, other referees are turned away.
// Overrides are reserved for the organizer.
func authorizeScoring(actor models.Actor, mc *matchContext, override bool) error {
	if canManage(actor, mc.tournament) {
		return nil
	}
	if override {
		return fmt.Errorf("%w: only the organizer can override saved sets", ErrForbiddenOperation)
	}
	if actor.Role != models.RoleReferee || !mc.tournament.HasReferee(actor.UserID) {
		return fmt.Errorf("%w: user %d is not a referee of tournament %d", ErrForbiddenOperation, actor.UserID, mc.tournament.ID)
	}
	if ref := mc.match.RefereeID; ref != nil && *ref != actor.UserID {
		return fmt.Errorf("%w: match %d", ErrNotAssignedReferee, mc.match.ID)
	}
	return nil
}

// requireActive rejects match mutations outside an active tournament.
func requireActive(op string, t *models.Tournament) error {
	if t.Status != models.StatusActive {
		return conflict(op, "tournament %d is %s", t.ID, t.Status)
	}
	return nil
}

// checkRefereeAssignment validates putting refereeID on m.
func checkRefereeAssignment(t *models.Tournament, m *models.Match, refereeID int) error {
	if !t.HasReferee(refereeID) {
		return invalid("user %d is not a referee of tournament %d", refereeID, t.ID)
	}
	if m.IsFinished() {
		return conflict("assign_referee", "match %d is already finished", m.ID)
	}
	return nil
}

func (s *matchService) lockMatch(ctx context.Context, matchID int) (locks.Release, error) {
	release, err := s.locker.Acquire(ctx, locks.MatchKey(matchID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock match %d: %w", matchID, err)
	}
	return release, nil
}

func (s *matchService) livePoints(ctx context.Context, matchID int) models.SetScore {
	p, err := s.live.Get(ctx, matchID)
	if err != nil {
		s.log.Warn("live score unavailable", zap.Int("match_id", matchID), zap.Error(err))
		return models.SetScore{}
	}
	return p
}

func (s *matchService) resetLive(ctx context.Context, matchID int) {
	if err := s.live.Reset(ctx, matchID); err != nil {
		s.log.Warn("failed to reset live score", zap.Int("match_id", matchID), zap.Error(err))
	}
}

func (s *matchService) publish(ctx context.Context, mc *matchContext, live models.SetScore) {
	s.notifier.MatchChanged(ctx, matchEvent(mc.match, mc.result, mc.bestOf, live, s.now()))
}

func (s *matchService) GetMatch(ctx context.Context, matchID int) (*MatchView, error) {
	mc, err := loadMatchContext(ctx, s.store.View(), matchID, false)
	if err != nil {
		return nil, err
	}
	return mc.view(s.livePoints(ctx, matchID)), nil
}

// score runs one score mutation under the match lease and the tournament
// lock, persists match and result, then resets live points and notifies.
func (s *matchService) score(ctx context.Context, actor models.Actor, matchID int, override bool,
	apply func(mc *matchContext) (brackets.Decision, error)) (*MatchView, error) {

	release, err := s.lockMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	defer release()

	var mc *matchContext
	err = s.store.InTx(ctx, func(tx repositories.Tx) error {
		var err error
		if mc, err = loadMatchContext(ctx, tx, matchID, true); err != nil {
			return err
		}
		if err := authorizeScoring(actor, mc, override); err != nil {
			return err
		}
		if err := requireActive("score", mc.tournament); err != nil {
			return err
		}
		d, err := apply(mc)
		if err != nil {
			return err
		}
		if err := tx.Results().Save(ctx, mc.result); err != nil {
			return handleRepositoryError(err, "result", matchID)
		}
		if err := tx.Matches().Update(ctx, mc.match); err != nil {
			return handleRepositoryError(err, "match", matchID)
		}
		if d.Decided {
			s.log.Info("match awaiting confirmation",
				zap.Int("match_id", matchID),
				zap.Int("winner_side", d.Winner),
				zap.Int("sets_won_p1", mc.result.SetsWonP1),
				zap.Int("sets_won_p2", mc.result.SetsWonP2),
			)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.resetLive(ctx, matchID)
	s.publish(ctx, mc, models.SetScore{})
	return mc.view(models.SetScore{}), nil
}

func (s *matchService) RecordSet(ctx context.Context, actor models.Actor, matchID, setIndex, pointsA, pointsB int, override bool) (*MatchView, error) {
	return s.score(ctx, actor, matchID, override, func(mc *matchContext) (brackets.Decision, error) {
		return brackets.RecordSet(mc.match, mc.result, mc.bestOf, setIndex, pointsA, pointsB, override)
	})
}

func (s *matchService) SubmitSets(ctx context.Context, actor models.Actor, matchID int, sets []models.SetScore, override bool) (*MatchView, error) {
	if len(sets) == 0 {
		return nil, invalid("at least one set is required")
	}
	return s.score(ctx, actor, matchID, override, func(mc *matchContext) (brackets.Decision, error) {
		return brackets.ApplySets(mc.match, mc.result, mc.bestOf, sets, override)
	})
}

func (s *matchService) AdjustLivePoints(ctx context.Context, actor models.Actor, matchID, side, delta int) (*MatchView, error) {
	if side != 1 && side != 2 {
		return nil, invalid("side must be 1 or 2 (got %d)", side)
	}
	if delta == 0 {
		return nil, invalid("delta must not be zero")
	}
	mc, err := loadMatchContext(ctx, s.store.View(), matchID, false)
	if err != nil {
		return nil, err
	}
	if err := authorizeScoring(actor, mc, false); err != nil {
		return nil, err
	}
	if err := requireActive("live_points", mc.tournament); err != nil {
		return nil, err
	}
	if err := brackets.CanScore(mc.match, false); err != nil {
		return nil, err
	}
	if brackets.CurrentSet(mc.result, mc.bestOf) == 0 {
		return nil, conflict("live_points", "match %d has no set in play", matchID)
	}

	points, err := s.live.Update(ctx, matchID, func(cur models.SetScore) (models.SetScore, error) {
		next := cur
		if side == 1 {
			next.P1 = max(next.P1+delta, 0)
		} else {
			next.P2 = max(next.P2+delta, 0)
		}
		if err := brackets.ValidateSet(next.P1, next.P2); err != nil {
			return cur, err
		}
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, mc, points)
	return mc.view(points), nil
}

func (s *matchService) Confirm(ctx context.Context, actor models.Actor, matchID int) (*MatchView, error) {
	release, err := s.lockMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	defer release()

	var mc *matchContext
	err = s.store.InTx(ctx, func(tx repositories.Tx) error {
		var err error
		if mc, err = loadMatchContext(ctx, tx, matchID, true); err != nil {
			return err
		}
		if err := authorizeManage(actor, mc.tournament); err != nil {
			return err
		}
		if err := requireActive("confirm", mc.tournament); err != nil {
			return err
		}
		if err := brackets.Confirm(mc.match, s.now()); err != nil {
			return err
		}
		if err := tx.Matches().Update(ctx, mc.match); err != nil {
			return handleRepositoryError(err, "match", matchID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("match confirmed", zap.Int("match_id", matchID), zap.Intp("winner_id", mc.match.WinnerID))
	return s.finished(ctx, mc), nil
}

func (s *matchService) DeclareWinner(ctx context.Context, actor models.Actor, matchID, side int) (*MatchView, error) {
	release, err := s.lockMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	defer release()

	var mc *matchContext
	err = s.store.InTx(ctx, func(tx repositories.Tx) error {
		var err error
		if mc, err = loadMatchContext(ctx, tx, matchID, true); err != nil {
			return err
		}
		if err := authorizeManage(actor, mc.tournament); err != nil {
			return err
		}
		if err := requireActive("declare_winner", mc.tournament); err != nil {
			return err
		}
		if err := brackets.DeclareWinner(mc.match, mc.result, mc.bestOf, side, s.now()); err != nil {
			return err
		}
		if err := tx.Results().Save(ctx, mc.result); err != nil {
			return handleRepositoryError(err, "result", matchID)
		}
		if err := tx.Matches().Update(ctx, mc.match); err != nil {
			return handleRepositoryError(err, "match", matchID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("match winner declared", zap.Int("match_id", matchID), zap.Int("side", side))
	return s.finished(ctx, mc), nil
}

// finished runs the post-commit steps of a match that just became final.
// Advancement failures are logged and left for the resync job.
func (s *matchService) finished(ctx context.Context, mc *matchContext) *MatchView {
	s.resetLive(ctx, mc.match.ID)
	s.publish(ctx, mc, models.SetScore{})

	view := mc.view(models.SetScore{})
	if s.engine == nil {
		return view
	}
	report, err := s.engine.OnMatchFinished(ctx, mc.tournament.ID, mc.match.SlotID)
	if err != nil {
		s.log.Error("advancement failed, left for resync",
			zap.Int("tournament_id", mc.tournament.ID),
			zap.Int("match_id", mc.match.ID),
			zap.Error(err),
		)
		return view
	}
	view.Advance = report
	return view
}

func (s *matchService) AssignReferee(ctx context.Context, actor models.Actor, matchID, refereeID int) (*MatchView, error) {
	var mc *matchContext
	err := s.store.InTx(ctx, func(tx repositories.Tx) error {
		var err error
		if mc, err = loadMatchContext(ctx, tx, matchID, true); err != nil {
			return err
		}
		if err := authorizeManage(actor, mc.tournament); err != nil {
			return err
		}
		if err := requireActive("assign_referee", mc.tournament); err != nil {
			return err
		}
		if err := checkRefereeAssignment(mc.tournament, mc.match, refereeID); err != nil {
			return err
		}
		mc.match.RefereeID = &refereeID
		if err := tx.Matches().Update(ctx, mc.match); err != nil {
			return handleRepositoryError(err, "match", matchID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	live := s.livePoints(ctx, matchID)
	s.publish(ctx, mc, live)
	return mc.view(live), nil
}

// AssignReferees applies a batch of assignments in one transaction. Either
// all of them are stored or none is.
func (s *matchService) AssignReferees(ctx context.Context, actor models.Actor, tournamentID int, assignments []RefereeAssignment) ([]*MatchView, error) {
	if len(assignments) == 0 {
		return nil, invalid("at least one assignment is required")
	}
	seen := make(map[int]bool, len(assignments))
	for _, a := range assignments {
		if seen[a.MatchID] {
			return nil, invalid("match %d is assigned twice", a.MatchID)
		}
		seen[a.MatchID] = true
	}

	var contexts []*matchContext
	err := s.store.InTx(ctx, func(tx repositories.Tx) error {
		t, err := tx.Tournaments().GetForUpdate(ctx, tournamentID)
		if err != nil {
			return handleRepositoryError(err, "tournament", tournamentID)
		}
		if err := authorizeManage(actor, t); err != nil {
			return err
		}
		if err := requireActive("assign_referees", t); err != nil {
			return err
		}
		slots, err := tx.Slots().ListByTournament(ctx, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to list slots of tournament %d: %w", tournamentID, err)
		}
		maxRound := brackets.MaxNormalRound(slots)

		contexts = make([]*matchContext, 0, len(assignments))
		for _, a := range assignments {
			m, err := tx.Matches().GetByID(ctx, a.MatchID)
			if err != nil {
				return handleRepositoryError(err, "match", a.MatchID)
			}
			if m.TournamentID != tournamentID {
				return &brackets.NotFoundError{Entity: "match", ID: a.MatchID}
			}
			if err := checkRefereeAssignment(t, m, a.RefereeID); err != nil {
				return err
			}
			refereeID := a.RefereeID
			m.RefereeID = &refereeID
			if err := tx.Matches().Update(ctx, m); err != nil {
				return handleRepositoryError(err, "match", m.ID)
			}
			r, err := loadResult(ctx, tx, m.ID)
			if err != nil {
				return err
			}
			contexts = append(contexts, &matchContext{
				tournament: t,
				match:      m,
				result:     r,
				bestOf:     brackets.BestOfFor(t, m.Round, maxRound),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("referees assigned", zap.Int("tournament_id", tournamentID), zap.Int("matches", len(contexts)))
	views := make([]*MatchView, 0, len(contexts))
	for _, mc := range contexts {
		live := s.livePoints(ctx, mc.match.ID)
		s.publish(ctx, mc, live)
		views = append(views, mc.view(live))
	}
	return views, nil
}

// AssignedMatches lists the matches the actor referees, unfinished ones only
// unless includeFinished is set.
func (s *matchService) AssignedMatches(ctx context.Context, actor models.Actor, includeFinished bool) ([]*MatchView, error) {
	view := s.store.View()
	matches, err := view.Matches().ListByReferee(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches of referee %d: %w", actor.UserID, err)
	}

	type tournamentInfo struct {
		t        *models.Tournament
		maxRound int
	}
	tournaments := make(map[int]tournamentInfo)
	views := make([]*MatchView, 0, len(matches))
	for _, m := range matches {
		if m.IsFinished() && !includeFinished {
			continue
		}
		info, ok := tournaments[m.TournamentID]
		if !ok {
			t, err := view.Tournaments().GetByID(ctx, m.TournamentID)
			if err != nil {
				return nil, handleRepositoryError(err, "tournament", m.TournamentID)
			}
			slots, err := view.Slots().ListByTournament(ctx, m.TournamentID)
			if err != nil {
				return nil, fmt.Errorf("failed to list slots of tournament %d: %w", m.TournamentID, err)
			}
			info = tournamentInfo{t: t, maxRound: brackets.MaxNormalRound(slots)}
			tournaments[m.TournamentID] = info
		}
		r, err := loadResult(ctx, view, m.ID)
		if err != nil {
			return nil, err
		}
		mc := &matchContext{
			tournament: info.t,
			match:      m,
			result:     r,
			bestOf:     brackets.BestOfFor(info.t, m.Round, info.maxRound),
		}
		views = append(views, mc.view(s.livePoints(ctx, m.ID)))
	}
	return views, nil
}
