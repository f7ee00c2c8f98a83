package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/tabletennis-bracket/models"
)

type postgresSlotRepository struct {
	exec SQLExecutor
}

const slotColumns = `
	id, tournament_id, round, position, stage,
	slot1_kind, slot1_participant_id, slot2_kind, slot2_participant_id,
	winner_id, status, created_at`

func (r *postgresSlotRepository) Create(ctx context.Context, s *models.BracketSlot) error {
	query := `
		INSERT INTO bracket_slots
			(tournament_id, round, position, stage, slot1_kind, slot1_participant_id,
			 slot2_kind, slot2_participant_id, winner_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`

	k1, p1 := occupantColumns(s.Slot1)
	k2, p2 := occupantColumns(s.Slot2)
	err := r.exec.QueryRowContext(ctx, query,
		s.TournamentID, s.Round, s.Position, s.Stage, k1, p1, k2, p2, nullableInt(s.WinnerID), s.Status,
	).Scan(&s.ID, &s.CreatedAt)
	return handleConstraintError(err)
}

func (r *postgresSlotRepository) GetByID(ctx context.Context, id int) (*models.BracketSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM bracket_slots WHERE id = $1`
	s, err := scanSlot(r.exec.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, fmt.Errorf("failed to scan bracket slot by id %d: %w", id, err)
	}
	return s, nil
}

func (r *postgresSlotRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.BracketSlot, error) {
	query := `SELECT ` + slotColumns + `
		FROM bracket_slots
		WHERE tournament_id = $1
		ORDER BY round ASC, (stage = 'third_place') ASC, position ASC`

	rows, err := r.exec.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bracket slots for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	slots := make([]*models.BracketSlot, 0)
	for rows.Next() {
		s, scanErr := scanSlot(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan bracket slot row: %w", scanErr)
		}
		slots = append(slots, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during bracket slot rows iteration: %w", err)
	}
	return slots, nil
}

func (r *postgresSlotRepository) Update(ctx context.Context, s *models.BracketSlot) error {
	query := `
		UPDATE bracket_slots
		SET slot1_kind = $1, slot1_participant_id = $2, slot2_kind = $3, slot2_participant_id = $4,
		    winner_id = $5, status = $6
		WHERE id = $7`

	k1, p1 := occupantColumns(s.Slot1)
	k2, p2 := occupantColumns(s.Slot2)
	result, err := r.exec.ExecContext(ctx, query, k1, p1, k2, p2, nullableInt(s.WinnerID), s.Status, s.ID)
	if err != nil {
		return fmt.Errorf("Update: failed to execute query for bracket slot %d: %w", s.ID, handleConstraintError(err))
	}
	return checkAffectedRows(result, ErrSlotNotFound)
}

func scanSlot(row rowScanner) (*models.BracketSlot, error) {
	var (
		s      models.BracketSlot
		k1, k2 string
		p1, p2 sql.NullInt64
		winner sql.NullInt64
	)
	err := row.Scan(&s.ID, &s.TournamentID, &s.Round, &s.Position, &s.Stage,
		&k1, &p1, &k2, &p2, &winner, &s.Status, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	s.Slot1 = occupantFromColumns(k1, p1)
	s.Slot2 = occupantFromColumns(k2, p2)
	s.WinnerID = intFromNull(winner)
	return &s, nil
}
