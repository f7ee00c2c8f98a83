package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Dosada05/tabletennis-bracket/models"
)

var (
	ErrTournamentNotFound  = errors.New("tournament not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrSlotNotFound        = errors.New("bracket slot not found")
	ErrMatchNotFound       = errors.New("match not found")
	ErrResultNotFound      = errors.New("result not found")

	ErrSlotPositionConflict  = errors.New("bracket slot already exists at this round and position")
	ErrMatchSlotConflict     = errors.New("bracket slot already has a match")
	ErrResultMatchConflict   = errors.New("match already has a result")
	ErrInvalidTournamentRef  = errors.New("invalid tournament reference")
	ErrInvalidParticipantRef = errors.New("invalid participant reference")
)

type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type TournamentRepository interface {
	Create(ctx context.Context, t *models.Tournament) error
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	// GetForUpdate loads the tournament and holds its row lock until the
	// transaction ends. Every bracket mutation starts with it.
	GetForUpdate(ctx context.Context, id int) (*models.Tournament, error)
	ListByStatus(ctx context.Context, status models.TournamentStatus) ([]*models.Tournament, error)
	UpdateStatus(ctx context.Context, id int, status models.TournamentStatus, completedAt *time.Time) error
	UpdateStandingsURL(ctx context.Context, id int, url string) error
}

type ParticipantRepository interface {
	Create(ctx context.Context, p *models.Participant) error
	GetByID(ctx context.Context, id int) (*models.Participant, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Participant, error)
}

type SlotRepository interface {
	Create(ctx context.Context, s *models.BracketSlot) error
	GetByID(ctx context.Context, id int) (*models.BracketSlot, error)
	// ListByTournament orders by round, then normal before third_place, then position.
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.BracketSlot, error)
	Update(ctx context.Context, s *models.BracketSlot) error
}

type MatchRepository interface {
	Create(ctx context.Context, m *models.Match) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	GetBySlot(ctx context.Context, slotID int) (*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error)
	// ListByReferee orders by tournament, then as ListByTournament does.
	ListByReferee(ctx context.Context, refereeID int) ([]*models.Match, error)
	Update(ctx context.Context, m *models.Match) error
}

type ResultRepository interface {
	// Save inserts the result of a match or replaces it.
	Save(ctx context.Context, r *models.Result) error
	GetByMatch(ctx context.Context, matchID int) (*models.Result, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Result, error)
}

// Tx is a unit of work over all bracket tables.
type Tx interface {
	Tournaments() TournamentRepository
	Participants() ParticipantRepository
	Slots() SlotRepository
	Matches() MatchRepository
	Results() ResultRepository
}

// Store runs units of work. InTx commits when fn returns nil and rolls back
// otherwise; View reads outside any transaction.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	View() Tx
}
