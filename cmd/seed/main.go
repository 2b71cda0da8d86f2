package main

import (
	"context"
	"log"
	"os"
	"time"

	"creditledger/internal/config"
	"creditledger/internal/logging"
	"creditledger/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Seeds the schema, the treasury account with its initial GOLD float, and a
// couple of demo user accounts. Idempotent, safe to re-run.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	logger := logging.SetupLogger()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		logger.Error("failed to connect to database", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, repository.Schema); err != nil {
		logger.Error("failed to apply schema", "err", err)
		os.Exit(1)
	}

	accounts := repository.NewAccountPGRepository(pool, logger)
	assets := repository.NewAssetPGRepository(pool, logger)
	wallets := repository.NewWalletPGRepository(pool, logger)

	treasury, err := accounts.Create(ctx, cfg.TreasuryEmail, "Treasury")
	if err != nil {
		logger.Error("failed to seed treasury account", "err", err)
		os.Exit(1)
	}

	gold, err := assets.Create(ctx, "GOLD", "Primary spendable credit")
	if err != nil {
		logger.Error("failed to seed asset type", "err", err)
		os.Exit(1)
	}

	wallet, err := wallets.GetOrCreate(ctx, treasury.ID, gold.ID)
	if err != nil {
		logger.Error("failed to create treasury wallet", "err", err)
		os.Exit(1)
	}

	// Initial float for an empty database only; balances of a live system
	// belong to the transfer engine.
	if wallet.Balance.IsZero() {
		float := decimal.NewFromInt(1_000_000)
		_, err := pool.Exec(ctx,
			"UPDATE wallets SET balance = $1, updated_at = NOW() WHERE id = $2 AND balance = 0",
			float, wallet.ID)
		if err != nil {
			logger.Error("failed to fund treasury wallet", "err", err)
			os.Exit(1)
		}
		logger.Info("funded treasury wallet", "asset", gold.Name, "balance", float)
	}

	for _, u := range []struct{ email, name string }{
		{"alice@example.com", "Alice"},
		{"bob@example.com", "Bob"},
	} {
		if _, err := accounts.Create(ctx, u.email, u.name); err != nil {
			logger.Error("failed to seed account", "email", u.email, "err", err)
			os.Exit(1)
		}
	}

	logger.Info("seed complete", "treasury", treasury.Email)
}
