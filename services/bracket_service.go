package services

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/Dosada05/tabletennis-bracket/brackets"
	"github.com/Dosada05/tabletennis-bracket/models"
	"github.com/Dosada05/tabletennis-bracket/repositories"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type CreateTournamentInput struct {
	Name            string `json:"name"`
	BestOfSets      int    `json:"best_of_sets"`
	BestOfSetsFinal int    `json:"best_of_sets_final"`
	RefereeIDs      []int  `json:"referee_ids"`
}

type ParticipantInput struct {
	Name        string     `json:"name"`
	BirthDate   *time.Time `json:"birth_date,omitempty"`
	AgeCategory string     `json:"age_category"`
}

// BuildResult describes a freshly built bracket.
type BuildResult struct {
	TournamentID    int                   `json:"tournament_id"`
	Size            int                   `json:"size"`
	Byes            int                   `json:"byes"`
	Rounds          int                   `json:"rounds"`
	FirstRoundSlots int                   `json:"first_round_slots"`
	Slots           []*models.BracketSlot `json:"slots"`
	Advance         *AdvanceReport        `json:"advance"`
}

// SlotView is one bracket cell as observers see it.
type SlotView struct {
	Slot         *models.BracketSlot `json:"slot"`
	Match        *models.Match       `json:"match,omitempty"`
	Result       *models.Result      `json:"result,omitempty"`
	Participant1 *string             `json:"participant1,omitempty"`
	Participant2 *string             `json:"participant2,omitempty"`
	BestOf       int                 `json:"best_of"`
	CurrentSet   int                 `json:"current_set"`
	Summary      string              `json:"summary"`
}

type RoundView struct {
	Round int        `json:"round"`
	Slots []SlotView `json:"slots"`
}

type BracketView struct {
	Tournament   *models.Tournament    `json:"tournament"`
	Participants []*models.Participant `json:"participants"`
	Rounds       []RoundView           `json:"rounds"`
	ThirdPlace   *SlotView             `json:"third_place,omitempty"`
	Complete     bool                  `json:"complete"`
}

type BracketService interface {
	CreateTournament(ctx context.Context, actor models.Actor, input CreateTournamentInput) (*models.Tournament, error)
	GetTournament(ctx context.Context, tournamentID int) (*models.Tournament, error)
	ChangeStatus(ctx context.Context, actor models.Actor, tournamentID int, status models.TournamentStatus) (*models.Tournament, error)
	RegisterParticipants(ctx context.Context, actor models.Actor, tournamentID int, inputs []ParticipantInput) ([]*models.Participant, error)
	Build(ctx context.Context, actor models.Actor, tournamentID int, manual map[int]brackets.ManualPairing) (*BuildResult, error)
	GetBracket(ctx context.Context, tournamentID int) (*BracketView, error)
	Resync(ctx context.Context, actor models.Actor, tournamentID int) (*AdvanceReport, error)
}

type bracketService struct {
	store     repositories.Store
	engine    AdvancementEngine
	generator brackets.BracketGenerator
	notifier  Notifier
	finalizer Finalizer
	log       *zap.Logger
	now       func() time.Time
}

// NewBracketService builds brackets with rng. A nil rng uses the global
// random source.
func NewBracketService(
	store repositories.Store,
	engine AdvancementEngine,
	rng *rand.Rand,
	notifier Notifier,
	finalizer Finalizer,
	log *zap.Logger,
) BracketService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &bracketService{
		store:     store,
		engine:    engine,
		generator: brackets.NewSingleEliminationGenerator(rng),
		notifier:  notifier,
		finalizer: finalizer,
		log:       log,
		now:       time.Now,
	}
}

func validateBestOf(bestOf, final int) error {
	if err := brackets.ValidateBestOf(bestOf); err != nil {
		return err
	}
	if final != 0 {
		if err := brackets.ValidateBestOf(final); err != nil {
			return fmt.Errorf("final: %w", err)
		}
	}
	return nil
}

func (s *bracketService) CreateTournament(ctx context.Context, actor models.Actor, input CreateTournamentInput) (*models.Tournament, error) {
	if !actor.IsOrganizer() {
		return nil, fmt.Errorf("%w: only organizers create tournaments", ErrForbiddenOperation)
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, invalid("tournament name is required")
	}
	if input.BestOfSets == 0 {
		input.BestOfSets = 5
	}
	if err := validateBestOf(input.BestOfSets, input.BestOfSetsFinal); err != nil {
		return nil, err
	}

	t := &models.Tournament{
		Name:            name,
		OrganizerID:     actor.UserID,
		Status:          models.StatusRegistration,
		BestOfSets:      input.BestOfSets,
		BestOfSetsFinal: input.BestOfSetsFinal,
		RefereeIDs:      dedupe(input.RefereeIDs),
	}
	err := s.store.InTx(ctx, func(tx repositories.Tx) error {
		return tx.Tournaments().Create(ctx, t)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}
	s.log.Info("tournament created", zap.Int("tournament_id", t.ID), zap.Int("organizer_id", t.OrganizerID))
	return t, nil
}

func (s *bracketService) GetTournament(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	t, err := s.store.View().Tournaments().GetByID(ctx, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err, "tournament", tournamentID)
	}
	return t, nil
}

func (s *bracketService) ChangeStatus(ctx context.Context, actor models.Actor, tournamentID int, status models.TournamentStatus) (*models.Tournament, error) {
	if !manualStatus(status) {
		return nil, invalid("status %q cannot be set directly", status)
	}
	var t *models.Tournament
	err := s.store.InTx(ctx, func(tx repositories.Tx) error {
		var err error
		t, err = tx.Tournaments().GetForUpdate(ctx, tournamentID)
		if err != nil {
			return handleRepositoryError(err, "tournament", tournamentID)
		}
		if err := authorizeManage(actor, t); err != nil {
			return err
		}
		if !isValidStatusTransition(t.Status, status) {
			return conflict("change_status", "cannot move tournament %d from %s to %s", tournamentID, t.Status, status)
		}
		if t.Status == status {
			return nil
		}
		if err := tx.Tournaments().UpdateStatus(ctx, tournamentID, status, nil); err != nil {
			return handleRepositoryError(err, "tournament", tournamentID)
		}
		t.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("tournament status changed", zap.Int("tournament_id", tournamentID), zap.String("status", string(status)))
	return t, nil
}

func (s *bracketService) RegisterParticipants(ctx context.Context, actor models.Actor, tournamentID int, inputs []ParticipantInput) ([]*models.Participant, error) {
	if len(inputs) == 0 {
		return nil, invalid("at least one participant is required")
	}
	created := make([]*models.Participant, 0, len(inputs))
	err := s.store.InTx(ctx, func(tx repositories.Tx) error {
		t, err := tx.Tournaments().GetForUpdate(ctx, tournamentID)
		if err != nil {
			return handleRepositoryError(err, "tournament", tournamentID)
		}
		if err := authorizeManage(actor, t); err != nil {
			return err
		}
		if !bracketBuildable(t.Status) {
			return conflict("register_participants", "tournament %d is %s", tournamentID, t.Status)
		}
		for i, in := range inputs {
			name := strings.TrimSpace(in.Name)
			if name == "" {
				return invalid("participant %d: name is required", i+1)
			}
			p := &models.Participant{
				TournamentID: tournamentID,
				Name:         name,
				BirthDate:    in.BirthDate,
				AgeCategory:  strings.TrimSpace(in.AgeCategory),
			}
			if err := tx.Participants().Create(ctx, p); err != nil {
				return handleRepositoryError(err, "participant", i+1)
			}
			created = append(created, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func bracketBuildable(status models.TournamentStatus) bool {
	return status == models.StatusSoon || status == models.StatusRegistration
}

// Build runs the bracket builder, persists every slot, materialises the
// first round and advances BYE winners. The tournament becomes active.
func (s *bracketService) Build(ctx context.Context, actor models.Actor, tournamentID int, manual map[int]brackets.ManualPairing) (*BuildResult, error) {
	var (
		result *BuildResult
		adv    *advancer
	)
	err := s.store.InTx(ctx, func(tx repositories.Tx) error {
		t, err := tx.Tournaments().GetForUpdate(ctx, tournamentID)
		if err != nil {
			return handleRepositoryError(err, "tournament", tournamentID)
		}
		if err := authorizeManage(actor, t); err != nil {
			return err
		}
		if !bracketBuildable(t.Status) || !isValidStatusTransition(t.Status, models.StatusActive) {
			return conflict("build", "tournament %d is %s", tournamentID, t.Status)
		}
		existing, err := tx.Slots().ListByTournament(ctx, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to check existing bracket: %w", err)
		}
		if len(existing) > 0 {
			return conflict("build", "tournament %d already has a bracket", tournamentID)
		}

		participants, err := tx.Participants().ListByTournament(ctx, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to list participants of tournament %d: %w", tournamentID, err)
		}
		bracket, err := s.generator.GenerateBracket(ctx, brackets.GenerateBracketParams{
			TournamentID: tournamentID,
			Participants: participants,
			Manual:       manual,
		})
		if err != nil {
			return err
		}
		for _, slot := range bracket.Slots {
			if err := tx.Slots().Create(ctx, slot); err != nil {
				return handleRepositoryError(err, "bracket slot", slot.Position)
			}
		}

		if err := tx.Tournaments().UpdateStatus(ctx, tournamentID, models.StatusActive, nil); err != nil {
			return handleRepositoryError(err, "tournament", tournamentID)
		}
		t.Status = models.StatusActive

		st := &bracketState{
			tournament:  t,
			slots:       bracket.Slots,
			matchBySlot: make(map[int]*models.Match),
			results:     make(map[int]*models.Result),
			maxRound:    bracket.Rounds,
		}
		adv = newAdvancer(ctx, tx, st, s.now(), s.log)
		for _, slot := range bracket.RoundSlots(1) {
			if err := adv.materialise(slot); err != nil {
				return err
			}
		}
		if err := adv.ensureThirdPlace(); err != nil {
			return err
		}
		if err := adv.checkComplete(); err != nil {
			return err
		}

		result = &BuildResult{
			TournamentID:    tournamentID,
			Size:            bracket.Size,
			Byes:            bracket.Byes,
			Rounds:          bracket.Rounds,
			FirstRoundSlots: bracket.FirstRoundSlots,
			Slots:           st.slots,
			Advance:         adv.report,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("bracket built",
		zap.Int("tournament_id", tournamentID),
		zap.String("generator", s.generator.GetName()),
		zap.Int("size", result.Size),
		zap.Int("byes", result.Byes),
		zap.Int("rounds", result.Rounds),
	)
	adv.notify(ctx, s.notifier, "bracket_built")
	if adv.report.Completed && s.finalizer != nil {
		if err := s.finalizer.Finalize(ctx, tournamentID); err != nil {
			s.log.Error("tournament finalization failed", zap.Int("tournament_id", tournamentID), zap.Error(err))
		}
	}
	return result, nil
}

// GetBracket loads the bracket read model. The four tables are read
// concurrently.
func (s *bracketService) GetBracket(ctx context.Context, tournamentID int) (*BracketView, error) {
	view := s.store.View()
	t, err := view.Tournaments().GetByID(ctx, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err, "tournament", tournamentID)
	}

	var (
		slots        []*models.BracketSlot
		matches      []*models.Match
		results      []*models.Result
		participants []*models.Participant
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		slots, err = view.Slots().ListByTournament(gCtx, tournamentID)
		return err
	})
	g.Go(func() error {
		var err error
		matches, err = view.Matches().ListByTournament(gCtx, tournamentID)
		return err
	})
	g.Go(func() error {
		var err error
		results, err = view.Results().ListByTournament(gCtx, tournamentID)
		return err
	})
	g.Go(func() error {
		var err error
		participants, err = view.Participants().ListByTournament(gCtx, tournamentID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load bracket of tournament %d: %w", tournamentID, err)
	}

	names := make(map[int]string, len(participants))
	for _, p := range participants {
		names[p.ID] = p.Name
	}
	matchBySlot := make(map[int]*models.Match, len(matches))
	for _, m := range matches {
		matchBySlot[m.SlotID] = m
	}
	resultByMatch := make(map[int]*models.Result, len(results))
	for _, r := range results {
		resultByMatch[r.MatchID] = r
	}

	maxRound := brackets.MaxNormalRound(slots)
	out := &BracketView{
		Tournament:   t,
		Participants: participants,
		Rounds:       make([]RoundView, 0, maxRound),
		Complete:     len(slots) > 0 && brackets.IsComplete(slots),
	}
	for round := 1; round <= maxRound; round++ {
		out.Rounds = append(out.Rounds, RoundView{Round: round, Slots: []SlotView{}})
	}
	for _, slot := range slots {
		sv := SlotView{
			Slot:         slot,
			Match:        matchBySlot[slot.ID],
			Participant1: occupantName(slot.Slot1, names),
			Participant2: occupantName(slot.Slot2, names),
			BestOf:       brackets.BestOfFor(t, slot.Round, maxRound),
		}
		if sv.Match != nil {
			sv.Result = resultByMatch[sv.Match.ID]
		}
		if sv.Result != nil {
			sv.CurrentSet = brackets.CurrentSet(sv.Result, sv.BestOf)
			sv.Summary = brackets.Summary(sv.Result, sv.BestOf)
		}
		if slot.Stage == models.StageThirdPlace {
			tp := sv
			out.ThirdPlace = &tp
			continue
		}
		if slot.Round >= 1 && slot.Round <= maxRound {
			out.Rounds[slot.Round-1].Slots = append(out.Rounds[slot.Round-1].Slots, sv)
		}
	}
	return out, nil
}

// Resync runs a full advancement pass on behalf of the organizer.
func (s *bracketService) Resync(ctx context.Context, actor models.Actor, tournamentID int) (*AdvanceReport, error) {
	t, err := s.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if err := authorizeManage(actor, t); err != nil {
		return nil, err
	}
	report, err := s.engine.ResyncAll(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	s.log.Info("bracket resynced",
		zap.Int("tournament_id", tournamentID),
		zap.Int("user_id", actor.UserID),
		zap.Bool("changed", report.Changed()),
	)
	return report, nil
}

func occupantName(o models.Occupant, names map[int]string) *string {
	var name string
	switch {
	case o.IsBye():
		name = "BYE"
	case o.IsParticipant():
		n, ok := names[*o.ParticipantID]
		if !ok {
			n = fmt.Sprintf("Participant %d", *o.ParticipantID)
		}
		name = n
	default:
		return nil
	}
	return &name
}

func dedupe(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
