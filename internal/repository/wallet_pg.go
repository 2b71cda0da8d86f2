package repository

import (
	"context"
	"log/slog"
	"sort"

	"creditledger/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// WalletPGRepository owns wallet rows. Balances are mutated only through
// Credit/Debit, only inside a caller-held transaction, only after the rows
// were fetched through LockWallets.
type WalletPGRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewWalletPGRepository(pool *pgxpool.Pool, logger *slog.Logger) *WalletPGRepository {
	return &WalletPGRepository{
		pool:   pool,
		logger: logger,
	}
}

const walletColumns = "id, account_id, asset_type_id, balance, created_at, updated_at"

// GetOrCreate returns the wallet for (account, asset type), creating it with
// a zero balance on first use. The insert is unique-constrained on the pair,
// so two concurrent first uses resolve to the same single row.
func (r *WalletPGRepository) GetOrCreate(ctx context.Context, accountID, assetTypeID uuid.UUID) (models.Wallet, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO wallets (id, account_id, asset_type_id, balance) VALUES ($1, $2, $3, 0)
		ON CONFLICT (account_id, asset_type_id) DO NOTHING`,
		uuid.New(), accountID, assetTypeID)
	if err != nil {
		r.logger.Error("Failed to upsert wallet",
			slog.String("account_id", accountID.String()),
			slog.String("asset_type_id", assetTypeID.String()),
			slog.Any("err", err),
		)
		return models.Wallet{}, err
	}

	var w models.Wallet
	err = r.pool.QueryRow(ctx,
		"SELECT "+walletColumns+" FROM wallets WHERE account_id = $1 AND asset_type_id = $2",
		accountID, assetTypeID,
	).Scan(&w.ID, &w.AccountID, &w.AssetTypeID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to select wallet after upsert",
			slog.String("account_id", accountID.String()),
			slog.String("asset_type_id", assetTypeID.String()),
			slog.Any("err", err),
		)
		return models.Wallet{}, err
	}
	return w, nil
}

func (r *WalletPGRepository) GetByID(ctx context.Context, walletID uuid.UUID) (models.Wallet, error) {
	var w models.Wallet
	err := r.pool.QueryRow(ctx,
		"SELECT "+walletColumns+" FROM wallets WHERE id = $1", walletID,
	).Scan(&w.ID, &w.AccountID, &w.AssetTypeID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if err == pgx.ErrNoRows {
		return models.Wallet{}, ErrWalletNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get wallet",
			slog.String("wallet_id", walletID.String()),
			slog.Any("err", err),
		)
		return models.Wallet{}, err
	}
	return w, nil
}

// LockWallets fetches the given wallets FOR UPDATE inside tx, acquiring the
// row locks in ascending id order. Every transfer locks through here, so two
// transfers sharing wallets always take them in the same relative order and
// cannot deadlock on each other. The returned slice is in lock order.
func (r *WalletPGRepository) LockWallets(ctx context.Context, tx pgx.Tx, walletIDs ...uuid.UUID) ([]models.Wallet, error) {
	ids := make([]uuid.UUID, len(walletIDs))
	copy(ids, walletIDs)
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	wallets := make([]models.Wallet, 0, len(ids))
	for _, id := range ids {
		var w models.Wallet
		err := tx.QueryRow(ctx,
			"SELECT "+walletColumns+" FROM wallets WHERE id = $1 FOR UPDATE", id,
		).Scan(&w.ID, &w.AccountID, &w.AssetTypeID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
		if err == pgx.ErrNoRows {
			return nil, ErrWalletNotFound
		}
		if err != nil {
			r.logger.Error("Failed to lock wallet",
				slog.String("wallet_id", id.String()),
				slog.Any("err", err),
			)
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, nil
}

// Credit adds amount to the wallet's balance inside tx.
func (r *WalletPGRepository) Credit(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount decimal.Decimal) error {
	ct, err := tx.Exec(ctx,
		"UPDATE wallets SET balance = balance + $1, updated_at = NOW() WHERE id = $2",
		amount, walletID)
	if err != nil {
		r.logger.Error("Failed to credit wallet",
			slog.String("wallet_id", walletID.String()),
			slog.Any("amount", amount),
			slog.Any("err", err),
		)
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrWalletNotFound
	}
	return nil
}

// Debit subtracts amount from the wallet's balance inside tx. The update is
// guarded so a balance can never go negative, even if the caller's own check
// raced a concurrent debit.
func (r *WalletPGRepository) Debit(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount decimal.Decimal) error {
	ct, err := tx.Exec(ctx,
		"UPDATE wallets SET balance = balance - $1, updated_at = NOW() WHERE id = $2 AND balance >= $1",
		amount, walletID)
	if err != nil {
		r.logger.Error("Failed to debit wallet",
			slog.String("wallet_id", walletID.String()),
			slog.Any("amount", amount),
			slog.Any("err", err),
		)
		return err
	}
	if ct.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM wallets WHERE id = $1)", walletID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrWalletNotFound
		}
		return ErrInsufficientBalance
	}
	return nil
}
