package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"creditledger/internal/models"
	"creditledger/internal/repository"
	"creditledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

//go:generate mockgen -source=http_handlers.go -destination=../../test/mock_credit_service.go -package=test CreditService

type CreditService interface {
	TopUp(ctx context.Context, p service.TransferParams) (*models.LedgerEntry, error)
	IssueBonus(ctx context.Context, p service.TransferParams) (*models.LedgerEntry, error)
	Spend(ctx context.Context, p service.TransferParams) (*models.LedgerEntry, error)
	History(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]models.HistoryItem, error)
	Accounts(ctx context.Context) ([]models.Account, error)
}

type CreditHTTPHandler struct {
	service CreditService
}

func NewCreditHTTPHandler(service CreditService) *CreditHTTPHandler {
	return &CreditHTTPHandler{service: service}
}

func (h *CreditHTTPHandler) RegisterRoutes(r *gin.Engine) {
	v1 := r.Group("/api/v1")
	{
		v1.POST("/credits/topup", h.HandleTopUp)
		v1.POST("/credits/bonus", h.HandleIssueBonus)
		v1.POST("/credits/spend", h.HandleSpend)
		v1.GET("/accounts", h.HandleListAccounts)
		v1.GET("/accounts/:account_id/history", h.HandleHistory)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrInvalidAmount),
		errors.Is(err, repository.ErrAssetNotFound):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, repository.ErrDuplicateRequest),
		errors.Is(err, repository.ErrSerializationConflict):
		return http.StatusConflict
	case errors.Is(err, repository.ErrTreasuryNotConfigured),
		errors.Is(err, repository.ErrWalletNotFound):
		return http.StatusInternalServerError
	default:
		return http.StatusServiceUnavailable
	}
}

type transferFunc func(ctx context.Context, p service.TransferParams) (*models.LedgerEntry, error)

func (h *CreditHTTPHandler) handleTransfer(c *gin.Context, fn transferFunc) {
	var req models.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	entry, err := fn(c.Request.Context(), service.TransferParams{
		AccountID:      req.AccountID,
		AssetType:      req.AssetType,
		Amount:         req.Amount,
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *CreditHTTPHandler) HandleTopUp(c *gin.Context) {
	h.handleTransfer(c, h.service.TopUp)
}

func (h *CreditHTTPHandler) HandleIssueBonus(c *gin.Context) {
	h.handleTransfer(c, h.service.IssueBonus)
}

func (h *CreditHTTPHandler) HandleSpend(c *gin.Context) {
	h.handleTransfer(c, h.service.Spend)
}

func (h *CreditHTTPHandler) HandleHistory(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("account_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account_id"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}

	items, err := h.service.History(c.Request.Context(), accountID, limit, offset)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": items})
}

func (h *CreditHTTPHandler) HandleListAccounts(c *gin.Context) {
	accounts, err := h.service.Accounts(c.Request.Context())
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}
