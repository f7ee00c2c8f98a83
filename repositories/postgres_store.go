package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

type postgresStore struct {
	db  *sql.DB
	log *zap.Logger
}

func NewPostgresStore(db *sql.DB, log *zap.Logger) Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &postgresStore{db: db, log: log}
}

func (s *postgresStore) View() Tx { return postgresTx{exec: s.db} }

func (s *postgresStore) InTx(ctx context.Context, fn func(tx Tx) error) (txErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.log.Error("rollback failed", zap.Error(rbErr), zap.NamedError("cause", txErr))
				txErr = fmt.Errorf("transaction processing error: %w (rollback also failed: %v)", txErr, rbErr)
			}
		} else if cErr := tx.Commit(); cErr != nil {
			txErr = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()

	txErr = fn(postgresTx{exec: tx})
	return txErr
}

type postgresTx struct {
	exec SQLExecutor
}

func (t postgresTx) Tournaments() TournamentRepository {
	return &postgresTournamentRepository{exec: t.exec}
}

func (t postgresTx) Participants() ParticipantRepository {
	return &postgresParticipantRepository{exec: t.exec}
}

func (t postgresTx) Slots() SlotRepository { return &postgresSlotRepository{exec: t.exec} }

func (t postgresTx) Matches() MatchRepository { return &postgresMatchRepository{exec: t.exec} }

func (t postgresTx) Results() ResultRepository { return &postgresResultRepository{exec: t.exec} }
