package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LedgerKind string

const (
	KindDeposit    LedgerKind = "DEPOSIT"
	KindWithdrawal LedgerKind = "WITHDRAWAL"
	KindTransfer   LedgerKind = "TRANSFER"
)

type LedgerStatus string

const (
	StatusPending   LedgerStatus = "PENDING"
	StatusCompleted LedgerStatus = "COMPLETED"
	StatusFailed    LedgerStatus = "FAILED"
	StatusReversed  LedgerStatus = "REVERSED"
)

type Account struct {
	ID          uuid.UUID `db:"id" json:"accountId"`
	Email       string    `db:"email" json:"email"`
	DisplayName string    `db:"display_name" json:"displayName"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

type AssetType struct {
	ID          uuid.UUID `db:"id" json:"assetTypeId"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description,omitempty"`
}

type Wallet struct {
	ID          uuid.UUID       `db:"id" json:"walletId"`
	AccountID   uuid.UUID       `db:"account_id" json:"accountId"`
	AssetTypeID uuid.UUID       `db:"asset_type_id" json:"assetTypeId"`
	Balance     decimal.Decimal `db:"balance" json:"balance"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updatedAt"`
}

type LedgerEntry struct {
	ID               uuid.UUID       `db:"id" json:"entryId"`
	SenderWalletID   uuid.UUID       `db:"sender_wallet_id" json:"senderWalletId"`
	ReceiverWalletID uuid.UUID       `db:"receiver_wallet_id" json:"receiverWalletId"`
	Amount           decimal.Decimal `db:"amount" json:"amount"`
	Kind             LedgerKind      `db:"kind" json:"kind"`
	Status           LedgerStatus    `db:"status" json:"status"`
	Description      string          `db:"description" json:"description,omitempty"`
	IdempotencyKey   string          `db:"idempotency_key" json:"idempotencyKey,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updatedAt"`
}

// HistoryItem is a ledger entry joined with the display fields the request
// layer needs to render it.
type HistoryItem struct {
	LedgerEntry
	SenderEmail   string `db:"sender_email" json:"senderEmail"`
	ReceiverEmail string `db:"receiver_email" json:"receiverEmail"`
	AssetType     string `db:"asset_type" json:"assetType"`
}
