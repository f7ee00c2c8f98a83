package services

import (
	"context"
	"time"

	"github.com/Dosada05/tabletennis-bracket/brackets"
	"github.com/Dosada05/tabletennis-bracket/events"
	"github.com/Dosada05/tabletennis-bracket/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BracketUpdate is the payload of a BRACKET_UPDATED message.
type BracketUpdate struct {
	TournamentID int              `json:"tournament_id"`
	Reason       string           `json:"reason"`
	Report       *AdvanceReport   `json:"report,omitempty"`
	Standings    []StandingOutput `json:"standings,omitempty"`
}

// Notifier tells observers about state changes. It is called after commit
// and must never fail the operation that triggered it.
type Notifier interface {
	MatchChanged(ctx context.Context, evt models.MatchStateEvent)
	BracketChanged(ctx context.Context, update BracketUpdate)
}

type eventNotifier struct {
	pub events.Publisher
	log *zap.Logger
}

func NewNotifier(pub events.Publisher, log *zap.Logger) Notifier {
	return &eventNotifier{pub: pub, log: log}
}

func (n *eventNotifier) MatchChanged(ctx context.Context, evt models.MatchStateEvent) {
	n.publish(ctx, brackets.MessageMatchUpdated, evt.TournamentID, evt)
}

func (n *eventNotifier) BracketChanged(ctx context.Context, update BracketUpdate) {
	n.publish(ctx, brackets.MessageBracketUpdated, update.TournamentID, update)
}

func (n *eventNotifier) publish(ctx context.Context, msgType string, tournamentID int, payload interface{}) {
	defer func() {
		if p := recover(); p != nil {
			n.log.Error("notification panicked", zap.String("type", msgType), zap.Any("panic", p))
		}
	}()
	env, err := events.NewEnvelope(msgType, tournamentID, payload)
	if err != nil {
		n.log.Warn("notification dropped", zap.String("type", msgType), zap.Error(err))
		return
	}
	if err := n.pub.Publish(ctx, env); err != nil {
		n.log.Warn("notification delivery failed",
			zap.String("type", msgType),
			zap.Int("tournament_id", tournamentID),
			zap.Error(err),
		)
	}
}

type nopNotifier struct{}

func (nopNotifier) MatchChanged(context.Context, models.MatchStateEvent) {}
func (nopNotifier) BracketChanged(context.Context, BracketUpdate)        {}

// matchEvent snapshots a match for observers. live is the point pair of the
// set in play, if any.
func matchEvent(m *models.Match, r *models.Result, bestOf int, live models.SetScore, now time.Time) models.MatchStateEvent {
	evt := models.MatchStateEvent{
		EventID:             uuid.NewString(),
		TournamentID:        m.TournamentID,
		MatchID:             m.ID,
		OccupantA:           m.Player1,
		OccupantB:           m.Player2,
		Status:              m.Status,
		PendingConfirmation: m.PendingConfirmation,
		WinnerID:            m.WinnerID,
		OccurredAt:          now,
	}
	if r != nil {
		evt.SetsWonA = r.SetsWonP1
		evt.SetsWonB = r.SetsWonP2
		evt.CurrentSet = brackets.CurrentSet(r, bestOf)
	}
	if evt.CurrentSet > 0 && m.Status == models.MatchInProgress {
		evt.CurrentSetPoints = live
	}
	return evt
}
