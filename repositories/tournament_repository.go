package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/tabletennis-bracket/models"
	"github.com/lib/pq"
)

type postgresTournamentRepository struct {
	exec SQLExecutor
}

const tournamentColumns = `
	t.id, t.name, t.organizer_id, t.status, t.best_of_sets, t.best_of_sets_final,
	t.created_at, t.completed_at, t.standings_url,
	COALESCE(ARRAY(SELECT tr.user_id FROM tournament_referees tr WHERE tr.tournament_id = t.id ORDER BY tr.user_id), '{}')`

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	query := `
		INSERT INTO tournaments (name, organizer_id, status, best_of_sets, best_of_sets_final)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.exec.QueryRowContext(ctx, query,
		t.Name, t.OrganizerID, t.Status, t.BestOfSets, t.BestOfSetsFinal,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return handleConstraintError(err)
	}

	for _, refereeID := range t.RefereeIDs {
		if _, err := r.exec.ExecContext(ctx,
			`INSERT INTO tournament_referees (tournament_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			t.ID, refereeID,
		); err != nil {
			return fmt.Errorf("failed to add referee %d to tournament %d: %w", refereeID, t.ID, handleConstraintError(err))
		}
	}
	return nil
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments t WHERE t.id = $1`
	return r.get(ctx, query, id)
}

func (r *postgresTournamentRepository) GetForUpdate(ctx context.Context, id int) (*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments t WHERE t.id = $1 FOR UPDATE OF t`
	return r.get(ctx, query, id)
}

func (r *postgresTournamentRepository) get(ctx context.Context, query string, id int) (*models.Tournament, error) {
	t, err := scanTournament(r.exec.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament by id %d: %w", id, err)
	}
	return t, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTournament(row rowScanner) (*models.Tournament, error) {
	var (
		t           models.Tournament
		completedAt sql.NullTime
		url         sql.NullString
		referees    pq.Int64Array
	)
	err := row.Scan(
		&t.ID, &t.Name, &t.OrganizerID, &t.Status, &t.BestOfSets, &t.BestOfSetsFinal,
		&t.CreatedAt, &completedAt, &url, &referees,
	)
	if err != nil {
		return nil, err
	}
	t.CompletedAt = timeFromNull(completedAt)
	if url.Valid {
		t.StandingsURL = &url.String
	}
	t.RefereeIDs = make([]int, 0, len(referees))
	for _, id := range referees {
		t.RefereeIDs = append(t.RefereeIDs, int(id))
	}
	return &t, nil
}

func (r *postgresTournamentRepository) ListByStatus(ctx context.Context, status models.TournamentStatus) ([]*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments t WHERE t.status = $1 ORDER BY t.id`
	rows, err := r.exec.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query tournaments with status %s: %w", status, err)
	}
	defer rows.Close()

	tournaments := make([]*models.Tournament, 0)
	for rows.Next() {
		t, scanErr := scanTournament(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan tournament row: %w", scanErr)
		}
		tournaments = append(tournaments, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during tournament rows iteration: %w", err)
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, id int, status models.TournamentStatus, completedAt *time.Time) error {
	query := `UPDATE tournaments SET status = $1, completed_at = $2 WHERE id = $3`
	var completed sql.NullTime
	if completedAt != nil {
		completed = sql.NullTime{Time: *completedAt, Valid: true}
	}
	result, err := r.exec.ExecContext(ctx, query, status, completed, id)
	if err != nil {
		return fmt.Errorf("UpdateStatus: failed to execute query for tournament %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateStandingsURL(ctx context.Context, id int, url string) error {
	result, err := r.exec.ExecContext(ctx, `UPDATE tournaments SET standings_url = $1 WHERE id = $2`, url, id)
	if err != nil {
		return fmt.Errorf("UpdateStandingsURL: failed to execute query for tournament %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}
