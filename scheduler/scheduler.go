package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Dosada05/tabletennis-bracket/locks"
	"github.com/Dosada05/tabletennis-bracket/models"
	"github.com/Dosada05/tabletennis-bracket/repositories"
	"github.com/Dosada05/tabletennis-bracket/services"
)

// ResyncScheduler periodically runs a full advancement pass over every active
// tournament. Only one instance works on a tournament at a time: the
// resync lease is taken without waiting and a busy tournament is skipped.
type ResyncScheduler struct {
	cron   *cron.Cron
	spec   string
	store  repositories.Store
	engine services.AdvancementEngine
	locker locks.Locker
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewResyncScheduler(spec string, store repositories.Store, engine services.AdvancementEngine, locker locks.Locker, log *zap.Logger) *ResyncScheduler {
	if locker == nil {
		locker = locks.NoopLocker{}
	}
	cl := cronLogger{log: log.Named("cron")}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return &ResyncScheduler{
		cron:   c,
		spec:   spec,
		store:  store,
		engine: engine,
		locker: locker,
		log:    log,
	}
}

// Start schedules the resync job. Jobs run with ctx until Stop is called.
func (s *ResyncScheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	if _, err := s.cron.AddFunc(s.spec, func() { s.RunNow(s.ctx) }); err != nil {
		s.cancel()
		return fmt.Errorf("invalid resync schedule %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.log.Info("resync scheduler started", zap.String("schedule", s.spec))
	return nil
}

// Stop waits for a running job to finish.
func (s *ResyncScheduler) Stop() {
	done := s.cron.Stop()
	if s.cancel != nil {
		s.cancel()
	}
	<-done.Done()
	s.log.Info("resync scheduler stopped")
}

// RunNow resyncs every active tournament once and returns how many were
// processed.
func (s *ResyncScheduler) RunNow(ctx context.Context) int {
	tournaments, err := s.store.View().Tournaments().ListByStatus(ctx, models.StatusActive)
	if err != nil {
		s.log.Error("failed to list active tournaments", zap.Error(err))
		return 0
	}
	processed := 0
	for _, t := range tournaments {
		if ctx.Err() != nil {
			break
		}
		if s.resyncOne(ctx, t.ID) {
			processed++
		}
	}
	return processed
}

func (s *ResyncScheduler) resyncOne(ctx context.Context, tournamentID int) bool {
	release, ok, err := s.locker.TryAcquire(ctx, locks.ResyncKey(tournamentID))
	if err != nil {
		s.log.Warn("resync lease unavailable", zap.Int("tournament_id", tournamentID), zap.Error(err))
		return false
	}
	if !ok {
		s.log.Debug("resync already running elsewhere", zap.Int("tournament_id", tournamentID))
		return false
	}
	defer release()

	report, err := s.engine.ResyncAll(ctx, tournamentID)
	if err != nil {
		s.log.Error("resync failed", zap.Int("tournament_id", tournamentID), zap.Error(err))
		return false
	}
	if report.Changed() {
		s.log.Info("resync repaired bracket",
			zap.Int("tournament_id", tournamentID),
			zap.Int("winners_placed", report.WinnersPlaced),
			zap.Int("matches_created", report.MatchesCreated),
			zap.Int("byes_resolved", report.ByesResolved),
			zap.Int("matches_activated", report.MatchesActivated),
		)
	}
	return true
}

// cronLogger routes cron's own messages to zap.
type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
