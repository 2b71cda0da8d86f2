package repository

import (
	"context"
	"log/slog"

	"creditledger/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AssetPGRepository is the asset registry. Asset types are created during
// setup and read-only afterwards.
type AssetPGRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewAssetPGRepository(pool *pgxpool.Pool, logger *slog.Logger) *AssetPGRepository {
	return &AssetPGRepository{
		pool:   pool,
		logger: logger,
	}
}

func (r *AssetPGRepository) ResolveByName(ctx context.Context, name string) (models.AssetType, error) {
	var at models.AssetType
	err := r.pool.QueryRow(ctx,
		"SELECT id, name, COALESCE(description, '') FROM asset_types WHERE name = $1", name,
	).Scan(&at.ID, &at.Name, &at.Description)
	if err == pgx.ErrNoRows {
		return models.AssetType{}, ErrAssetNotFound
	}
	if err != nil {
		r.logger.Error("Failed to resolve asset type",
			slog.String("name", name),
			slog.Any("err", err),
		)
		return models.AssetType{}, err
	}
	return at, nil
}

// Create inserts an asset type, returning the existing row unchanged if the
// name is already registered. Used by setup and seeding only.
func (r *AssetPGRepository) Create(ctx context.Context, name, description string) (models.AssetType, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO asset_types (id, name, description) VALUES ($1, $2, $3)
		ON CONFLICT (name) DO NOTHING`,
		uuid.New(), name, description)
	if err != nil {
		r.logger.Error("Failed to create asset type",
			slog.String("name", name),
			slog.Any("err", err),
		)
		return models.AssetType{}, err
	}
	return r.ResolveByName(ctx, name)
}
