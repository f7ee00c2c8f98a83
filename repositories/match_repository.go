package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/tabletennis-bracket/models"
)

type postgresMatchRepository struct {
	exec SQLExecutor
}

const matchColumns = `
	id, tournament_id, slot_id, round, position, stage,
	p1_kind, p1_participant_id, p2_kind, p2_participant_id,
	referee_id, status, pending_confirmation, finalized, winner_id,
	started_at, finished_at, created_at`

func (r *postgresMatchRepository) Create(ctx context.Context, m *models.Match) error {
	query := `
		INSERT INTO matches
			(tournament_id, slot_id, round, position, stage, p1_kind, p1_participant_id,
			 p2_kind, p2_participant_id, referee_id, status, pending_confirmation, finalized,
			 winner_id, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at`

	k1, p1 := occupantColumns(m.Player1)
	k2, p2 := occupantColumns(m.Player2)
	err := r.exec.QueryRowContext(ctx, query,
		m.TournamentID, m.SlotID, m.Round, m.Position, m.Stage, k1, p1, k2, p2,
		nullableInt(m.RefereeID), m.Status, m.PendingConfirmation, m.Finalized,
		nullableInt(m.WinnerID), m.StartedAt, m.FinishedAt,
	).Scan(&m.ID, &m.CreatedAt)
	return handleConstraintError(err)
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	return r.getOne(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, id)
}

func (r *postgresMatchRepository) GetBySlot(ctx context.Context, slotID int) (*models.Match, error) {
	return r.getOne(ctx, `SELECT `+matchColumns+` FROM matches WHERE slot_id = $1`, slotID)
}

func (r *postgresMatchRepository) getOne(ctx context.Context, query string, arg int) (*models.Match, error) {
	m, err := scanMatch(r.exec.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match (%d): %w", arg, err)
	}
	return m, nil
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + `
		FROM matches
		WHERE tournament_id = $1
		ORDER BY round ASC, (stage = 'third_place') ASC, position ASC`

	rows, err := r.exec.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for tournament %d: %w", tournamentID, err)
	}
	return collectMatches(rows)
}

func (r *postgresMatchRepository) ListByReferee(ctx context.Context, refereeID int) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + `
		FROM matches
		WHERE referee_id = $1
		ORDER BY tournament_id ASC, round ASC, (stage = 'third_place') ASC, position ASC`

	rows, err := r.exec.QueryContext(ctx, query, refereeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for referee %d: %w", refereeID, err)
	}
	return collectMatches(rows)
}

func collectMatches(rows *sql.Rows) ([]*models.Match, error) {
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m, scanErr := scanMatch(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) Update(ctx context.Context, m *models.Match) error {
	query := `
		UPDATE matches
		SET p1_kind = $1, p1_participant_id = $2, p2_kind = $3, p2_participant_id = $4,
		    referee_id = $5, status = $6, pending_confirmation = $7, finalized = $8,
		    winner_id = $9, started_at = $10, finished_at = $11
		WHERE id = $12`

	k1, p1 := occupantColumns(m.Player1)
	k2, p2 := occupantColumns(m.Player2)
	result, err := r.exec.ExecContext(ctx, query, k1, p1, k2, p2,
		nullableInt(m.RefereeID), m.Status, m.PendingConfirmation, m.Finalized,
		nullableInt(m.WinnerID), m.StartedAt, m.FinishedAt, m.ID)
	if err != nil {
		return fmt.Errorf("Update: failed to execute query for match %d: %w", m.ID, handleConstraintError(err))
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func scanMatch(row rowScanner) (*models.Match, error) {
	var (
		m                 models.Match
		k1, k2            string
		p1, p2            sql.NullInt64
		referee, winner   sql.NullInt64
		started, finished sql.NullTime
	)
	err := row.Scan(&m.ID, &m.TournamentID, &m.SlotID, &m.Round, &m.Position, &m.Stage,
		&k1, &p1, &k2, &p2, &referee, &m.Status, &m.PendingConfirmation, &m.Finalized, &winner,
		&started, &finished, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.Player1 = occupantFromColumns(k1, p1)
	m.Player2 = occupantFromColumns(k2, p2)
	m.RefereeID = intFromNull(referee)
	m.WinnerID = intFromNull(winner)
	m.StartedAt = timeFromNull(started)
	m.FinishedAt = timeFromNull(finished)
	return &m, nil
}
