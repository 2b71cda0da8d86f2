package repository

import (
	"context"
	"log/slog"

	"creditledger/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AccountPGRepository is the account directory.
type AccountPGRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewAccountPGRepository(pool *pgxpool.Pool, logger *slog.Logger) *AccountPGRepository {
	return &AccountPGRepository{
		pool:   pool,
		logger: logger,
	}
}

const accountColumns = "id, email, display_name, created_at"

func (r *AccountPGRepository) GetByID(ctx context.Context, id uuid.UUID) (models.Account, error) {
	var a models.Account
	err := r.pool.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = $1", id,
	).Scan(&a.ID, &a.Email, &a.DisplayName, &a.CreatedAt)
	if err == pgx.ErrNoRows {
		return models.Account{}, ErrAccountNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get account",
			slog.String("account_id", id.String()),
			slog.Any("err", err),
		)
		return models.Account{}, err
	}
	return a, nil
}

func (r *AccountPGRepository) GetByEmail(ctx context.Context, email string) (models.Account, error) {
	var a models.Account
	err := r.pool.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE email = $1", email,
	).Scan(&a.ID, &a.Email, &a.DisplayName, &a.CreatedAt)
	if err == pgx.ErrNoRows {
		return models.Account{}, ErrAccountNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get account by email",
			slog.String("email", email),
			slog.Any("err", err),
		)
		return models.Account{}, err
	}
	return a, nil
}

func (r *AccountPGRepository) List(ctx context.Context) ([]models.Account, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+accountColumns+" FROM accounts ORDER BY created_at")
	if err != nil {
		r.logger.Error("Failed to list accounts", slog.Any("err", err))
		return nil, err
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.Email, &a.DisplayName, &a.CreatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// Create inserts an account, returning the existing row if the email is
// already registered. Used by setup and seeding only.
func (r *AccountPGRepository) Create(ctx context.Context, email, displayName string) (models.Account, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (id, email, display_name) VALUES ($1, $2, $3)
		ON CONFLICT (email) DO NOTHING`,
		uuid.New(), email, displayName)
	if err != nil {
		r.logger.Error("Failed to create account",
			slog.String("email", email),
			slog.Any("err", err),
		)
		return models.Account{}, err
	}
	return r.GetByEmail(ctx, email)
}
