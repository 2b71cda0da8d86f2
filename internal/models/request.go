package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransferRequest struct {
	AccountID      uuid.UUID       `json:"accountId" binding:"required"`
	AssetType      string          `json:"assetType" binding:"required"`
	Amount         decimal.Decimal `json:"amount" binding:"required"`
	Description    string          `json:"description"`
	IdempotencyKey string          `json:"idempotencyKey"`
}
