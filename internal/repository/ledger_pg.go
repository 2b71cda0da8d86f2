package repository

import (
	"context"
	"log/slog"

	"creditledger/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// LedgerPGRepository owns ledger entries. Entries are write-once except for
// the single status finalization, which happens in the same transaction that
// created them.
type LedgerPGRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewLedgerPGRepository(pool *pgxpool.Pool, logger *slog.Logger) *LedgerPGRepository {
	return &LedgerPGRepository{
		pool:   pool,
		logger: logger,
	}
}

const ledgerColumns = `id, sender_wallet_id, receiver_wallet_id, amount, kind, status,
		COALESCE(description, ''), COALESCE(idempotency_key, ''), created_at, updated_at`

func scanEntry(row pgx.Row) (models.LedgerEntry, error) {
	var e models.LedgerEntry
	err := row.Scan(&e.ID, &e.SenderWalletID, &e.ReceiverWalletID, &e.Amount, &e.Kind,
		&e.Status, &e.Description, &e.IdempotencyKey, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

// FindByIdempotencyKey returns the entry previously recorded under key; the
// bool reports whether one exists.
func (r *LedgerPGRepository) FindByIdempotencyKey(ctx context.Context, key string) (models.LedgerEntry, bool, error) {
	entry, err := scanEntry(r.pool.QueryRow(ctx,
		"SELECT "+ledgerColumns+" FROM ledger_entries WHERE idempotency_key = $1", key))
	if err == pgx.ErrNoRows {
		return models.LedgerEntry{}, false, nil
	}
	if err != nil {
		r.logger.Error("Failed to look up idempotency key",
			slog.String("idempotency_key", key),
			slog.Any("err", err),
		)
		return models.LedgerEntry{}, false, err
	}
	return entry, true, nil
}

type CreateEntryParams struct {
	SenderWalletID   uuid.UUID
	ReceiverWalletID uuid.UUID
	Amount           decimal.Decimal
	Kind             models.LedgerKind
	Description      string
	IdempotencyKey   string
}

// Create inserts a PENDING entry inside tx. A reused idempotency key trips
// the unique index and surfaces as ErrDuplicateRequest.
func (r *LedgerPGRepository) Create(ctx context.Context, tx pgx.Tx, p CreateEntryParams) (models.LedgerEntry, error) {
	var key any
	if p.IdempotencyKey != "" {
		key = p.IdempotencyKey
	}
	entry, err := scanEntry(tx.QueryRow(ctx, `
		INSERT INTO ledger_entries (id, sender_wallet_id, receiver_wallet_id, amount, kind, status, description, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)
		RETURNING `+ledgerColumns,
		uuid.New(), p.SenderWalletID, p.ReceiverWalletID, p.Amount, p.Kind, models.StatusPending, p.Description, key))
	if err != nil {
		if isUniqueViolation(err) {
			return models.LedgerEntry{}, ErrDuplicateRequest
		}
		r.logger.Error("Failed to create ledger entry",
			slog.String("sender_wallet_id", p.SenderWalletID.String()),
			slog.String("receiver_wallet_id", p.ReceiverWalletID.String()),
			slog.Any("err", err),
		)
		return models.LedgerEntry{}, err
	}
	return entry, nil
}

// Finalize transitions the entry's status inside tx, normally PENDING to
// COMPLETED.
func (r *LedgerPGRepository) Finalize(ctx context.Context, tx pgx.Tx, entryID uuid.UUID, status models.LedgerStatus) (models.LedgerEntry, error) {
	entry, err := scanEntry(tx.QueryRow(ctx, `
		UPDATE ledger_entries SET status = $1, updated_at = NOW() WHERE id = $2
		RETURNING `+ledgerColumns,
		status, entryID))
	if err != nil {
		r.logger.Error("Failed to finalize ledger entry",
			slog.String("entry_id", entryID.String()),
			slog.String("status", string(status)),
			slog.Any("err", err),
		)
		return models.LedgerEntry{}, err
	}
	return entry, nil
}

// History returns the account's ledger entries newest first, joined with the
// counter-party emails and the asset-type name for display.
func (r *LedgerPGRepository) History(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]models.HistoryItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT le.id, le.sender_wallet_id, le.receiver_wallet_id, le.amount, le.kind, le.status,
			COALESCE(le.description, ''), COALESCE(le.idempotency_key, ''), le.created_at, le.updated_at,
			sa.email AS sender_email,
			ra.email AS receiver_email,
			at.name AS asset_type
		FROM ledger_entries le
		JOIN wallets sw ON sw.id = le.sender_wallet_id
		JOIN wallets rw ON rw.id = le.receiver_wallet_id
		JOIN accounts sa ON sa.id = sw.account_id
		JOIN accounts ra ON ra.id = rw.account_id
		JOIN asset_types at ON at.id = sw.asset_type_id
		WHERE sw.account_id = $1 OR rw.account_id = $1
		ORDER BY le.created_at DESC, le.id DESC
		LIMIT $2 OFFSET $3`,
		accountID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to query history",
			slog.String("account_id", accountID.String()),
			slog.Any("err", err),
		)
		return nil, err
	}
	defer rows.Close()

	var items []models.HistoryItem
	for rows.Next() {
		var it models.HistoryItem
		err := rows.Scan(&it.ID, &it.SenderWalletID, &it.ReceiverWalletID, &it.Amount, &it.Kind,
			&it.Status, &it.Description, &it.IdempotencyKey, &it.CreatedAt, &it.UpdatedAt,
			&it.SenderEmail, &it.ReceiverEmail, &it.AssetType)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
