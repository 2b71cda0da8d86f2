package service

import (
	"context"
	"errors"
	"log/slog"

	"creditledger/internal/models"
	"creditledger/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=transfer.go -destination=../../test/mock_stores.go -package=test

type AssetRegistry interface {
	ResolveByName(ctx context.Context, name string) (models.AssetType, error)
}

type AccountDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (models.Account, error)
	GetByEmail(ctx context.Context, email string) (models.Account, error)
	List(ctx context.Context) ([]models.Account, error)
}

type WalletStore interface {
	GetOrCreate(ctx context.Context, accountID, assetTypeID uuid.UUID) (models.Wallet, error)
	LockWallets(ctx context.Context, tx pgx.Tx, walletIDs ...uuid.UUID) ([]models.Wallet, error)
	Credit(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount decimal.Decimal) error
	Debit(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount decimal.Decimal) error
}

type LedgerStore interface {
	FindByIdempotencyKey(ctx context.Context, key string) (models.LedgerEntry, bool, error)
	Create(ctx context.Context, tx pgx.Tx, p repository.CreateEntryParams) (models.LedgerEntry, error)
	Finalize(ctx context.Context, tx pgx.Tx, entryID uuid.UUID, status models.LedgerStatus) (models.LedgerEntry, error)
	History(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]models.HistoryItem, error)
}

type TxRunner interface {
	RunSerializable(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// TransferParams is the caller-supplied input common to all three movement
// operations.
type TransferParams struct {
	AccountID      uuid.UUID
	AssetType      string
	Amount         decimal.Decimal
	Description    string
	IdempotencyKey string
}

// duplicatePolicy decides what an operation does when its idempotency key
// was already used.
type duplicatePolicy int

const (
	rejectDuplicate duplicatePolicy = iota
	returnPrior
)

// operation specializes the shared transfer algorithm: who sends, who
// receives, which ledger kind is recorded and how a reused idempotency key
// is handled.
type operation struct {
	name             string
	kind             models.LedgerKind
	treasuryIsSender bool
	onDuplicate      duplicatePolicy
}

var (
	opTopUp      = operation{name: "topUp", kind: models.KindDeposit, treasuryIsSender: true, onDuplicate: rejectDuplicate}
	opIssueBonus = operation{name: "issueBonus", kind: models.KindDeposit, treasuryIsSender: true, onDuplicate: returnPrior}
	opSpend      = operation{name: "spend", kind: models.KindWithdrawal, treasuryIsSender: false, onDuplicate: returnPrior}
)

// TransferEngine applies atomic double-entry transfers between wallets. The
// treasury account is an injected configuration value resolved through the
// directory, not a well-known key baked into queries.
type TransferEngine struct {
	assets        AssetRegistry
	accounts      AccountDirectory
	wallets       WalletStore
	ledger        LedgerStore
	tx            TxRunner
	treasuryEmail string
	logger        *slog.Logger
}

func NewTransferEngine(
	assets AssetRegistry,
	accounts AccountDirectory,
	wallets WalletStore,
	ledger LedgerStore,
	tx TxRunner,
	treasuryEmail string,
	logger *slog.Logger,
) *TransferEngine {
	return &TransferEngine{
		assets:        assets,
		accounts:      accounts,
		wallets:       wallets,
		ledger:        ledger,
		tx:            tx,
		treasuryEmail: treasuryEmail,
		logger:        logger,
	}
}

// TopUp moves externally funded credits from the treasury to the user's
// wallet. A reused idempotency key is rejected.
func (e *TransferEngine) TopUp(ctx context.Context, p TransferParams) (*models.LedgerEntry, error) {
	return e.execute(ctx, opTopUp, p)
}

// IssueBonus credits a user from the treasury. A reused idempotency key
// returns the original entry without moving anything again.
func (e *TransferEngine) IssueBonus(ctx context.Context, p TransferParams) (*models.LedgerEntry, error) {
	return e.execute(ctx, opIssueBonus, p)
}

// Spend debits the user's wallet in favor of the treasury. A reused
// idempotency key returns the original entry without moving anything again.
func (e *TransferEngine) Spend(ctx context.Context, p TransferParams) (*models.LedgerEntry, error) {
	return e.execute(ctx, opSpend, p)
}

func (e *TransferEngine) execute(ctx context.Context, op operation, p TransferParams) (*models.LedgerEntry, error) {
	if !p.Amount.IsPositive() {
		return nil, repository.ErrInvalidAmount
	}

	if p.IdempotencyKey != "" {
		prior, found, err := e.ledger.FindByIdempotencyKey(ctx, p.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if found {
			if op.onDuplicate == rejectDuplicate {
				e.logger.Warn("Rejected duplicate request",
					slog.String("operation", op.name),
					slog.String("idempotency_key", p.IdempotencyKey),
				)
				return nil, repository.ErrDuplicateRequest
			}
			return &prior, nil
		}
	}

	asset, err := e.assets.ResolveByName(ctx, p.AssetType)
	if err != nil {
		return nil, err
	}

	treasury, err := e.accounts.GetByEmail(ctx, e.treasuryEmail)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			e.logger.Error("Treasury account missing",
				slog.String("operation", op.name),
				slog.String("treasury_email", e.treasuryEmail),
			)
			return nil, repository.ErrTreasuryNotConfigured
		}
		return nil, err
	}

	user, err := e.accounts.GetByID(ctx, p.AccountID)
	if err != nil {
		return nil, err
	}

	senderAccount, receiverAccount := treasury, user
	if !op.treasuryIsSender {
		senderAccount, receiverAccount = user, treasury
	}

	sender, err := e.wallets.GetOrCreate(ctx, senderAccount.ID, asset.ID)
	if err != nil {
		return nil, err
	}
	receiver, err := e.wallets.GetOrCreate(ctx, receiverAccount.ID, asset.ID)
	if err != nil {
		return nil, err
	}

	var entry models.LedgerEntry
	err = e.tx.RunSerializable(ctx, func(tx pgx.Tx) error {
		locked, err := e.wallets.LockWallets(ctx, tx, sender.ID, receiver.ID)
		if err != nil {
			return err
		}
		for _, w := range locked {
			if w.ID == sender.ID && w.Balance.LessThan(p.Amount) {
				return repository.ErrInsufficientBalance
			}
		}

		entry, err = e.ledger.Create(ctx, tx, repository.CreateEntryParams{
			SenderWalletID:   sender.ID,
			ReceiverWalletID: receiver.ID,
			Amount:           p.Amount,
			Kind:             op.kind,
			Description:      p.Description,
			IdempotencyKey:   p.IdempotencyKey,
		})
		if err != nil {
			return err
		}
		if err := e.wallets.Debit(ctx, tx, sender.ID, p.Amount); err != nil {
			return err
		}
		if err := e.wallets.Credit(ctx, tx, receiver.ID, p.Amount); err != nil {
			return err
		}
		entry, err = e.ledger.Finalize(ctx, tx, entry.ID, models.StatusCompleted)
		return err
	})
	if err != nil {
		// Two requests with the same new key can race past the lookup; the
		// unique index serializes them, so resolve the loser by policy.
		if errors.Is(err, repository.ErrDuplicateRequest) && op.onDuplicate == returnPrior {
			prior, found, lookupErr := e.ledger.FindByIdempotencyKey(ctx, p.IdempotencyKey)
			if lookupErr == nil && found {
				return &prior, nil
			}
		}
		if errors.Is(err, repository.ErrInsufficientBalance) {
			e.logger.Warn("Transfer failed: insufficient balance",
				slog.String("operation", op.name),
				slog.String("account_id", p.AccountID.String()),
				slog.Any("amount", p.Amount),
			)
			return nil, err
		}
		e.logger.Error("Transfer failed",
			slog.String("operation", op.name),
			slog.String("account_id", p.AccountID.String()),
			slog.Any("amount", p.Amount),
			slog.Any("err", err),
		)
		return nil, err
	}

	return &entry, nil
}

// History lists the account's ledger entries newest first.
func (e *TransferEngine) History(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]models.HistoryItem, error) {
	if _, err := e.accounts.GetByID(ctx, accountID); err != nil {
		return nil, err
	}
	return e.ledger.History(ctx, accountID, limit, offset)
}

// Accounts lists every account, for the request layer's directory view.
func (e *TransferEngine) Accounts(ctx context.Context) ([]models.Account, error) {
	return e.accounts.List(ctx)
}
