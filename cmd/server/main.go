package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"creditledger/internal/config"
	"creditledger/internal/handlers"
	"creditledger/internal/logging"
	"creditledger/internal/repository"
	"creditledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	logger := logging.SetupLogger()

	gin.SetMode(gin.ReleaseMode)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	poolConfig, err := pgxpool.ParseConfig(cfg.DBURL)
	if err != nil {
		logger.Error("failed to parse db config", "err", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = int32(cfg.DBMaxConns)
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("failed to connect to database", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	assets := repository.NewAssetPGRepository(pool, logger)
	accounts := repository.NewAccountPGRepository(pool, logger)
	wallets := repository.NewWalletPGRepository(pool, logger)
	ledger := repository.NewLedgerPGRepository(pool, logger)
	txm := repository.NewTxManager(pool, logger)

	// Fail fast when the treasury is missing; every money movement needs it.
	if _, err := accounts.GetByEmail(ctx, cfg.TreasuryEmail); err != nil {
		logger.Error("treasury account not found, run the seed binary first",
			"treasury_email", cfg.TreasuryEmail, "err", err)
		os.Exit(1)
	}

	engine := service.NewTransferEngine(assets, accounts, wallets, ledger, txm, cfg.TreasuryEmail, logger)
	handler := handlers.NewCreditHTTPHandler(engine)

	r := gin.Default()
	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		logger.Info("Starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil {
			logger.Error("Server failed", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Error("Server forced to shutdown", "err", err)
	}
	logger.Info("Server exiting")
}
