package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/tabletennis-bracket/models"
	"github.com/lib/pq"
)

func checkAffectedRows(result sql.Result, notFoundError error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return notFoundError
	}
	return nil
}

// handleConstraintError maps the constraint names of the bracket schema to
// repository sentinels.
func handleConstraintError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	// "23503": foreign_key_violation, "23505": unique_violation
	switch pqErr.Constraint {
	case "bracket_slots_tournament_round_position_key":
		return ErrSlotPositionConflict
	case "matches_slot_id_key":
		return ErrMatchSlotConflict
	case "results_match_id_key":
		return ErrResultMatchConflict
	case "results_match_id_fkey":
		return ErrMatchNotFound
	case "matches_slot_id_fkey":
		return ErrSlotNotFound
	case "participants_tournament_id_fkey", "bracket_slots_tournament_id_fkey",
		"matches_tournament_id_fkey", "tournament_referees_tournament_id_fkey":
		return ErrInvalidTournamentRef
	case "bracket_slots_slot1_participant_id_fkey", "bracket_slots_slot2_participant_id_fkey",
		"bracket_slots_winner_id_fkey", "matches_p1_participant_id_fkey",
		"matches_p2_participant_id_fkey", "matches_winner_id_fkey":
		return ErrInvalidParticipantRef
	}
	return err
}

// occupantColumns splits an occupant into its kind and nullable participant id.
func occupantColumns(o models.Occupant) (string, sql.NullInt64) {
	kind := o.Kind
	if kind == "" {
		kind = models.OccupantEmpty
	}
	if o.ParticipantID == nil {
		return string(kind), sql.NullInt64{}
	}
	return string(kind), sql.NullInt64{Int64: int64(*o.ParticipantID), Valid: true}
}

func occupantFromColumns(kind string, id sql.NullInt64) models.Occupant {
	o := models.Occupant{Kind: models.OccupantKind(kind)}
	if id.Valid {
		v := int(id.Int64)
		o.ParticipantID = &v
	}
	return o
}

func nullableInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intFromNull(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func timeFromNull(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
