package services

import (
	"context"
	"fmt"

	"github.com/Dosada05/tabletennis-bracket/brackets"
	"github.com/Dosada05/tabletennis-bracket/models"
	"github.com/Dosada05/tabletennis-bracket/repositories"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// StandingOutput is one row of the final ranking.
type StandingOutput struct {
	Place           int                  `json:"place"`
	ParticipantID   int                  `json:"participant_id"`
	Name            string               `json:"name"`
	AgeCategory     string               `json:"age_category,omitempty"`
	Label           models.StandingLabel `json:"label"`
	EliminatedRound *int                 `json:"eliminated_round,omitempty"`
}

type RoundProgress struct {
	Round    int `json:"round"`
	Slots    int `json:"slots"`
	Matches  int `json:"matches"`
	Finished int `json:"finished"`
}

// TournamentProgress summarises how far a bracket has been played.
type TournamentProgress struct {
	TournamentID    int                     `json:"tournament_id"`
	Status          models.TournamentStatus `json:"status"`
	Rounds          []RoundProgress         `json:"rounds"`
	MatchesTotal    int                     `json:"matches_total"`
	MatchesFinished int                     `json:"matches_finished"`
	ThirdPlace      bool                    `json:"third_place"`
	Complete        bool                    `json:"complete"`
}

// Archiver stores a standings document and returns where it can be fetched.
type Archiver interface {
	Archive(ctx context.Context, tournamentID int, doc interface{}) (string, error)
}

type StandingsService interface {
	GenerateFinalStandings(ctx context.Context, tournamentID int) ([]StandingOutput, error)
	TournamentStatus(ctx context.Context, tournamentID int) (*TournamentProgress, error)
	Finalizer
}

type standingsService struct {
	store    repositories.Store
	archiver Archiver
	notifier Notifier
	log      *zap.Logger
}

// NewStandingsService returns the standings service. archiver may be nil, in
// which case Finalize only publishes.
func NewStandingsService(store repositories.Store, archiver Archiver, notifier Notifier, log *zap.Logger) StandingsService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &standingsService{store: store, archiver: archiver, notifier: notifier, log: log}
}

func (s *standingsService) GenerateFinalStandings(ctx context.Context, tournamentID int) ([]StandingOutput, error) {
	view := s.store.View()
	if _, err := view.Tournaments().GetByID(ctx, tournamentID); err != nil {
		return nil, handleRepositoryError(err, "tournament", tournamentID)
	}

	var (
		slots        []*models.BracketSlot
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
		participants, err = view.Participants().ListByTournament(gCtx, tournamentID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load tournament %d: %w", tournamentID, err)
	}
	if len(slots) == 0 {
		return nil, conflict("standings", "tournament %d has no bracket", tournamentID)
	}

	standings, err := brackets.GenerateStandings(slots)
	if err != nil {
		return nil, err
	}
	byID := make(map[int]*models.Participant, len(participants))
	for _, p := range participants {
		byID[p.ID] = p
	}
	out := make([]StandingOutput, 0, len(standings))
	for _, st := range standings {
		row := StandingOutput{
			Place:           st.Place,
			ParticipantID:   st.ParticipantID,
			Label:           st.Label,
			EliminatedRound: st.EliminatedRound,
		}
		if p, ok := byID[st.ParticipantID]; ok {
			row.Name = p.Name
			row.AgeCategory = p.AgeCategory
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *standingsService) TournamentStatus(ctx context.Context, tournamentID int) (*TournamentProgress, error) {
	view := s.store.View()
	t, err := view.Tournaments().GetByID(ctx, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err, "tournament", tournamentID)
	}
	slots, err := view.Slots().ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots of tournament %d: %w", tournamentID, err)
	}
	matches, err := view.Matches().ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches of tournament %d: %w", tournamentID, err)
	}

	maxRound := brackets.MaxNormalRound(slots)
	progress := &TournamentProgress{
		TournamentID: tournamentID,
		Status:       t.Status,
		Rounds:       make([]RoundProgress, maxRound),
		ThirdPlace:   brackets.ThirdPlaceSlot(slots) != nil,
		Complete:     len(slots) > 0 && brackets.IsComplete(slots),
	}
	for i := range progress.Rounds {
		progress.Rounds[i].Round = i + 1
	}
	for _, slot := range slots {
		if slot.Stage == models.StageNormal && slot.Round >= 1 && slot.Round <= maxRound {
			progress.Rounds[slot.Round-1].Slots++
		}
	}
	for _, m := range matches {
		progress.MatchesTotal++
		if m.IsFinished() {
			progress.MatchesFinished++
		}
		if m.Stage != models.StageNormal || m.Round < 1 || m.Round > maxRound {
			continue
		}
		rp := &progress.Rounds[m.Round-1]
		rp.Matches++
		if m.IsFinished() {
			rp.Finished++
		}
	}
	return progress, nil
}

// Finalize publishes the final standings of a completed tournament and
// archives them when an archiver is configured. Running it again re-archives
// the same document.
func (s *standingsService) Finalize(ctx context.Context, tournamentID int) error {
	standings, err := s.GenerateFinalStandings(ctx, tournamentID)
	if err != nil {
		return err
	}
	s.notifier.BracketChanged(ctx, BracketUpdate{
		TournamentID: tournamentID,
		Reason:       "completed",
		Standings:    standings,
	})
	if s.archiver == nil {
		return nil
	}

	doc := struct {
		TournamentID int              `json:"tournament_id"`
		Standings    []StandingOutput `json:"standings"`
	}{tournamentID, standings}
	url, err := s.archiver.Archive(ctx, tournamentID, doc)
	if err != nil {
		return fmt.Errorf("failed to archive standings of tournament %d: %w", tournamentID, err)
	}
	err = s.store.InTx(ctx, func(tx repositories.Tx) error {
		return tx.Tournaments().UpdateStandingsURL(ctx, tournamentID, url)
	})
	if err != nil {
		return handleRepositoryError(err, "tournament", tournamentID)
	}
	s.log.Info("tournament finalized", zap.Int("tournament_id", tournamentID), zap.String("standings_url", url))
	return nil
}
