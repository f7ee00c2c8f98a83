package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/tabletennis-bracket/models"
	"github.com/lib/pq"
)

type postgresResultRepository struct {
	exec SQLExecutor
}

// Sets are stored flattened as p1, p2 pairs in one integer array.
func flattenSets(sets [models.MaxSets]models.SetScore) pq.Int64Array {
	flat := make(pq.Int64Array, 0, 2*models.MaxSets)
	for _, s := range sets {
		flat = append(flat, int64(s.P1), int64(s.P2))
	}
	return flat
}

func unflattenSets(flat pq.Int64Array) [models.MaxSets]models.SetScore {
	var sets [models.MaxSets]models.SetScore
	for i := 0; i+1 < len(flat) && i/2 < models.MaxSets; i += 2 {
		sets[i/2] = models.SetScore{P1: int(flat[i]), P2: int(flat[i+1])}
	}
	return sets
}

func (r *postgresResultRepository) Save(ctx context.Context, res *models.Result) error {
	query := `
		INSERT INTO results (match_id, sets, sets_won_p1, sets_won_p2, coef_p1, coef_p2, walkover, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (match_id) DO UPDATE
		SET sets = EXCLUDED.sets, sets_won_p1 = EXCLUDED.sets_won_p1, sets_won_p2 = EXCLUDED.sets_won_p2,
		    coef_p1 = EXCLUDED.coef_p1, coef_p2 = EXCLUDED.coef_p2, walkover = EXCLUDED.walkover,
		    updated_at = NOW()
		RETURNING id, updated_at`

	err := r.exec.QueryRowContext(ctx, query,
		res.MatchID, flattenSets(res.Sets), res.SetsWonP1, res.SetsWonP2, res.CoefP1, res.CoefP2, res.Walkover,
	).Scan(&res.ID, &res.UpdatedAt)
	return handleConstraintError(err)
}

func (r *postgresResultRepository) GetByMatch(ctx context.Context, matchID int) (*models.Result, error) {
	query := `
		SELECT id, match_id, sets, sets_won_p1, sets_won_p2, coef_p1, coef_p2, walkover, updated_at
		FROM results
		WHERE match_id = $1`

	res, err := scanResult(r.exec.QueryRowContext(ctx, query, matchID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("failed to scan result for match %d: %w", matchID, err)
	}
	return res, nil
}

func (r *postgresResultRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Result, error) {
	query := `
		SELECT r.id, r.match_id, r.sets, r.sets_won_p1, r.sets_won_p2, r.coef_p1, r.coef_p2, r.walkover, r.updated_at
		FROM results r
		JOIN matches m ON m.id = r.match_id
		WHERE m.tournament_id = $1
		ORDER BY r.match_id`

	rows, err := r.exec.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	results := make([]*models.Result, 0)
	for rows.Next() {
		res, scanErr := scanResult(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", scanErr)
		}
		results = append(results, res)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during result rows iteration: %w", err)
	}
	return results, nil
}

func scanResult(row rowScanner) (*models.Result, error) {
	var (
		res  models.Result
		flat pq.Int64Array
	)
	err := row.Scan(&res.ID, &res.MatchID, &flat, &res.SetsWonP1, &res.SetsWonP2,
		&res.CoefP1, &res.CoefP2, &res.Walkover, &res.UpdatedAt)
	if err != nil {
		return nil, err
	}
	res.Sets = unflattenSets(flat)
	return &res, nil
}
