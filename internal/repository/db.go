package repository

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxManager opens the serializable transactions every balance-changing
// operation runs inside of.
type TxManager struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewTxManager(pool *pgxpool.Pool, logger *slog.Logger) *TxManager {
	return &TxManager{
		pool:   pool,
		logger: logger,
	}
}

// RunSerializable runs fn inside a single serializable transaction. Any error
// from fn, or from commit, rolls the whole unit back; a serialization or
// deadlock abort is surfaced as ErrSerializationConflict.
func (m *TxManager) RunSerializable(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		m.logger.Error("Failed to begin transaction", slog.Any("err", err))
		return err
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
			m.logger.Error("Failed to rollback transaction", slog.Any("err", err))
		}
	}()

	if err := fn(tx); err != nil {
		if IsSerializationFailure(err) {
			return ErrSerializationConflict
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if IsSerializationFailure(err) {
			return ErrSerializationConflict
		}
		m.logger.Error("Failed to commit transaction", slog.Any("err", err))
		return err
	}
	return nil
}
