package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/tabletennis-bracket/models"
)

type postgresParticipantRepository struct {
	exec SQLExecutor
}

func (r *postgresParticipantRepository) Create(ctx context.Context, p *models.Participant) error {
	query := `
		INSERT INTO participants (tournament_id, name, birth_date, age_category)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	var birth sql.NullTime
	if p.BirthDate != nil {
		birth = sql.NullTime{Time: *p.BirthDate, Valid: true}
	}
	err := r.exec.QueryRowContext(ctx, query, p.TournamentID, p.Name, birth, p.AgeCategory).Scan(&p.ID, &p.CreatedAt)
	return handleConstraintError(err)
}

func (r *postgresParticipantRepository) GetByID(ctx context.Context, id int) (*models.Participant, error) {
	query := `
		SELECT id, tournament_id, name, birth_date, age_category, created_at
		FROM participants
		WHERE id = $1`

	p, err := scanParticipant(r.exec.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to scan participant by id %d: %w", id, err)
	}
	return p, nil
}

func (r *postgresParticipantRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Participant, error) {
	query := `
		SELECT id, tournament_id, name, birth_date, age_category, created_at
		FROM participants
		WHERE tournament_id = $1
		ORDER BY id ASC`

	rows, err := r.exec.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	participants := make([]*models.Participant, 0)
	for rows.Next() {
		p, scanErr := scanParticipant(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan participant row: %w", scanErr)
		}
		participants = append(participants, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during participant rows iteration: %w", err)
	}
	return participants, nil
}

func scanParticipant(row rowScanner) (*models.Participant, error) {
	var (
		p     models.Participant
		birth sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.TournamentID, &p.Name, &birth, &p.AgeCategory, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.BirthDate = timeFromNull(birth)
	return &p, nil
}
