package test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"creditledger/internal/models"
	"creditledger/internal/repository"
	"creditledger/internal/service"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

const treasuryEmail = "treasury@system.local"

type engineMocks struct {
	assets   *MockAssetRegistry
	accounts *MockAccountDirectory
	wallets  *MockWalletStore
	ledger   *MockLedgerStore
	tx       *MockTxRunner
}

func newEngine(ctrl *gomock.Controller) (*service.TransferEngine, engineMocks) {
	m := engineMocks{
		assets:   NewMockAssetRegistry(ctrl),
		accounts: NewMockAccountDirectory(ctrl),
		wallets:  NewMockWalletStore(ctrl),
		ledger:   NewMockLedgerStore(ctrl),
		tx:       NewMockTxRunner(ctrl),
	}
	engine := service.NewTransferEngine(m.assets, m.accounts, m.wallets, m.ledger, m.tx, treasuryEmail, testLogger)
	return engine, m
}

func TestTopUp_InvalidAmount_NoStorageAccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	engine, _ := newEngine(ctrl)

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-1)} {
		_, err := engine.TopUp(context.Background(), service.TransferParams{
			AccountID: uuid.New(),
			AssetType: "GOLD",
			Amount:    amount,
		})
		assert.ErrorIs(t, err, repository.ErrInvalidAmount)
	}
}

func TestTopUp_DuplicateKey_Rejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	engine, m := newEngine(ctrl)

	prior := models.LedgerEntry{ID: uuid.New(), Status: models.StatusCompleted}
	m.ledger.EXPECT().
		FindByIdempotencyKey(gomock.Any(), "key-1").
		Return(prior, true, nil)

	_, err := engine.TopUp(context.Background(), service.TransferParams{
		AccountID:      uuid.New(),
		AssetType:      "GOLD",
		Amount:         decimal.NewFromInt(10),
		IdempotencyKey: "key-1",
	})
	assert.ErrorIs(t, err, repository.ErrDuplicateRequest)
}

func TestIssueBonus_DuplicateKey_ReturnsPrior(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	engine, m := newEngine(ctrl)

	prior := models.LedgerEntry{ID: uuid.New(), Status: models.StatusCompleted}
	m.ledger.EXPECT().
		FindByIdempotencyKey(gomock.Any(), "key-2").
		Return(prior, true, nil)

	entry, err := engine.IssueBonus(context.Background(), service.TransferParams{
		AccountID:      uuid.New(),
		AssetType:      "GOLD",
		Amount:         decimal.NewFromInt(10),
		IdempotencyKey: "key-2",
	})
	assert.NoError(t, err)
	assert.Equal(t, prior.ID, entry.ID)
}

func TestTopUp_TreasuryNotConfigured(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	engine, m := newEngine(ctrl)

	m.assets.EXPECT().
		ResolveByName(gomock.Any(), "GOLD").
		Return(models.AssetType{ID: uuid.New(), Name: "GOLD"}, nil)
	m.accounts.EXPECT().
		GetByEmail(gomock.Any(), treasuryEmail).
		Return(models.Account{}, repository.ErrAccountNotFound)

	_, err := engine.TopUp(context.Background(), service.TransferParams{
		AccountID: uuid.New(),
		AssetType: "GOLD",
		Amount:    decimal.NewFromInt(10),
	})
	assert.ErrorIs(t, err, repository.ErrTreasuryNotConfigured)
}

func TestSpend_HappyPath(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	engine, m := newEngine(ctrl)

	asset := models.AssetType{ID: uuid.New(), Name: "GOLD"}
	treasury := models.Account{ID: uuid.New(), Email: treasuryEmail}
	user := models.Account{ID: uuid.New(), Email: "usera@example.com"}
	senderWallet := models.Wallet{ID: uuid.New(), AccountID: user.ID, AssetTypeID: asset.ID, Balance: decimal.NewFromInt(100)}
	receiverWallet := models.Wallet{ID: uuid.New(), AccountID: treasury.ID, AssetTypeID: asset.ID}
	amount := decimal.NewFromInt(60)

	m.assets.EXPECT().ResolveByName(gomock.Any(), "GOLD").Return(asset, nil)
	m.accounts.EXPECT().GetByEmail(gomock.Any(), treasuryEmail).Return(treasury, nil)
	m.accounts.EXPECT().GetByID(gomock.Any(), user.ID).Return(user, nil)
	m.wallets.EXPECT().GetOrCreate(gomock.Any(), user.ID, asset.ID).Return(senderWallet, nil)
	m.wallets.EXPECT().GetOrCreate(gomock.Any(), treasury.ID, asset.ID).Return(receiverWallet, nil)

	m.tx.EXPECT().
		RunSerializable(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fn func(pgx.Tx) error) error {
			return fn(nil)
		})
	m.wallets.EXPECT().
		LockWallets(gomock.Any(), gomock.Nil(), senderWallet.ID, receiverWallet.ID).
		Return([]models.Wallet{senderWallet, receiverWallet}, nil)
	pending := models.LedgerEntry{ID: uuid.New(), Status: models.StatusPending, Kind: models.KindWithdrawal, Amount: amount}
	m.ledger.EXPECT().
		Create(gomock.Any(), gomock.Nil(), repository.CreateEntryParams{
			SenderWalletID:   senderWallet.ID,
			ReceiverWalletID: receiverWallet.ID,
			Amount:           amount,
			Kind:             models.KindWithdrawal,
			Description:      "item",
		}).
		Return(pending, nil)
	debit := m.wallets.EXPECT().
		Debit(gomock.Any(), gomock.Nil(), senderWallet.ID, amount).
		Return(nil)
	m.wallets.EXPECT().
		Credit(gomock.Any(), gomock.Nil(), receiverWallet.ID, amount).
		Return(nil).
		After(debit)
	completed := pending
	completed.Status = models.StatusCompleted
	m.ledger.EXPECT().
		Finalize(gomock.Any(), gomock.Nil(), pending.ID, models.StatusCompleted).
		Return(completed, nil)

	entry, err := engine.Spend(context.Background(), service.TransferParams{
		AccountID:   user.ID,
		AssetType:   "GOLD",
		Amount:      amount,
		Description: "item",
	})
	assert.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, entry.Status)
	assert.Equal(t, pending.ID, entry.ID)
}

func TestSpend_InsufficientAtLockTime(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	engine, m := newEngine(ctrl)

	asset := models.AssetType{ID: uuid.New(), Name: "GOLD"}
	treasury := models.Account{ID: uuid.New(), Email: treasuryEmail}
	user := models.Account{ID: uuid.New()}
	senderWallet := models.Wallet{ID: uuid.New(), AccountID: user.ID, Balance: decimal.NewFromInt(10)}
	receiverWallet := models.Wallet{ID: uuid.New(), AccountID: treasury.ID}

	m.assets.EXPECT().ResolveByName(gomock.Any(), "GOLD").Return(asset, nil)
	m.accounts.EXPECT().GetByEmail(gomock.Any(), treasuryEmail).Return(treasury, nil)
	m.accounts.EXPECT().GetByID(gomock.Any(), user.ID).Return(user, nil)
	m.wallets.EXPECT().GetOrCreate(gomock.Any(), user.ID, asset.ID).Return(senderWallet, nil)
	m.wallets.EXPECT().GetOrCreate(gomock.Any(), treasury.ID, asset.ID).Return(receiverWallet, nil)
	m.tx.EXPECT().
		RunSerializable(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fn func(pgx.Tx) error) error {
			return fn(nil)
		})
	m.wallets.EXPECT().
		LockWallets(gomock.Any(), gomock.Nil(), senderWallet.ID, receiverWallet.ID).
		Return([]models.Wallet{senderWallet, receiverWallet}, nil)
	// No Create, Debit, Credit or Finalize past this point.

	_, err := engine.Spend(context.Background(), service.TransferParams{
		AccountID: user.ID,
		AssetType: "GOLD",
		Amount:    decimal.NewFromInt(60),
	})
	assert.ErrorIs(t, err, repository.ErrInsufficientBalance)
}

func TestSpend_SerializationConflictNotRetried(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	engine, m := newEngine(ctrl)

	asset := models.AssetType{ID: uuid.New(), Name: "GOLD"}
	treasury := models.Account{ID: uuid.New(), Email: treasuryEmail}
	user := models.Account{ID: uuid.New()}

	m.assets.EXPECT().ResolveByName(gomock.Any(), "GOLD").Return(asset, nil)
	m.accounts.EXPECT().GetByEmail(gomock.Any(), treasuryEmail).Return(treasury, nil)
	m.accounts.EXPECT().GetByID(gomock.Any(), user.ID).Return(user, nil)
	m.wallets.EXPECT().GetOrCreate(gomock.Any(), user.ID, asset.ID).Return(models.Wallet{ID: uuid.New()}, nil)
	m.wallets.EXPECT().GetOrCreate(gomock.Any(), treasury.ID, asset.ID).Return(models.Wallet{ID: uuid.New()}, nil)
	m.tx.EXPECT().
		RunSerializable(gomock.Any(), gomock.Any()).
		Return(repository.ErrSerializationConflict).
		Times(1)

	_, err := engine.Spend(context.Background(), service.TransferParams{
		AccountID: user.ID,
		AssetType: "GOLD",
		Amount:    decimal.NewFromInt(5),
	})
	assert.ErrorIs(t, err, repository.ErrSerializationConflict)
}

func TestSpend_DuplicateKeyRaceResolvesToPrior(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	engine, m := newEngine(ctrl)

	asset := models.AssetType{ID: uuid.New(), Name: "GOLD"}
	treasury := models.Account{ID: uuid.New(), Email: treasuryEmail}
	user := models.Account{ID: uuid.New()}
	prior := models.LedgerEntry{ID: uuid.New(), Status: models.StatusCompleted}

	// The key is new at lookup time, but another request commits it first;
	// the unique index fires inside the transaction and the engine falls
	// back to the prior entry.
	m.ledger.EXPECT().
		FindByIdempotencyKey(gomock.Any(), "key-3").
		Return(models.LedgerEntry{}, false, nil)
	m.assets.EXPECT().ResolveByName(gomock.Any(), "GOLD").Return(asset, nil)
	m.accounts.EXPECT().GetByEmail(gomock.Any(), treasuryEmail).Return(treasury, nil)
	m.accounts.EXPECT().GetByID(gomock.Any(), user.ID).Return(user, nil)
	m.wallets.EXPECT().GetOrCreate(gomock.Any(), user.ID, asset.ID).Return(models.Wallet{ID: uuid.New()}, nil)
	m.wallets.EXPECT().GetOrCreate(gomock.Any(), treasury.ID, asset.ID).Return(models.Wallet{ID: uuid.New()}, nil)
	m.tx.EXPECT().
		RunSerializable(gomock.Any(), gomock.Any()).
		Return(repository.ErrDuplicateRequest)
	m.ledger.EXPECT().
		FindByIdempotencyKey(gomock.Any(), "key-3").
		Return(prior, true, nil)

	entry, err := engine.Spend(context.Background(), service.TransferParams{
		AccountID:      user.ID,
		AssetType:      "GOLD",
		Amount:         decimal.NewFromInt(5),
		IdempotencyKey: "key-3",
	})
	assert.NoError(t, err)
	assert.Equal(t, prior.ID, entry.ID)
}
