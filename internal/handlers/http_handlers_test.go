package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"creditledger/internal/models"
	"creditledger/internal/repository"
	"creditledger/internal/service"
	"creditledger/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func setupIntegrationRouter(t *testing.T) (*gin.Engine, models.Account, func()) {
	pool, teardown := testutil.SetupTestDB(t)
	ctx := context.Background()

	assets := repository.NewAssetPGRepository(pool, testLogger)
	accounts := repository.NewAccountPGRepository(pool, testLogger)
	wallets := repository.NewWalletPGRepository(pool, testLogger)
	ledger := repository.NewLedgerPGRepository(pool, testLogger)
	txm := repository.NewTxManager(pool, testLogger)

	user, err := accounts.Create(ctx, "usera@example.com", "User A")
	assert.NoError(t, err)
	asset, err := assets.Create(ctx, "GOLD", "gold credits")
	assert.NoError(t, err)
	treasury, err := accounts.GetByEmail(ctx, testutil.TreasuryEmail)
	assert.NoError(t, err)
	treasuryWallet, err := wallets.GetOrCreate(ctx, treasury.ID, asset.ID)
	assert.NoError(t, err)
	_, err = pool.Exec(ctx, "UPDATE wallets SET balance = 1000000 WHERE id = $1", treasuryWallet.ID)
	assert.NoError(t, err)

	engine := service.NewTransferEngine(assets, accounts, wallets, ledger, txm, testutil.TreasuryEmail, testLogger)
	handler := NewCreditHTTPHandler(engine)
	r := gin.Default()
	handler.RegisterRoutes(r)
	return r, user, teardown
}

func doPost(r *gin.Engine, path string, payload map[string]interface{}) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	req, _ := http.NewRequest("POST", path, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIntegration_TopUpSpendHistory(t *testing.T) {
	r, user, teardown := setupIntegrationRouter(t)
	defer teardown()

	// Top-up.
	w := doPost(r, "/api/v1/credits/topup", map[string]interface{}{
		"accountId": user.ID,
		"assetType": "GOLD",
		"amount":    "100.50",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	var entry models.LedgerEntry
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &entry))
	assert.Equal(t, models.StatusCompleted, entry.Status)
	assert.Equal(t, models.KindDeposit, entry.Kind)

	// Spend part of it.
	w = doPost(r, "/api/v1/credits/spend", map[string]interface{}{
		"accountId":   user.ID,
		"assetType":   "GOLD",
		"amount":      "50.25",
		"description": "item",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	// Spending more than the remainder fails and changes nothing.
	w = doPost(r, "/api/v1/credits/spend", map[string]interface{}{
		"accountId": user.ID,
		"assetType": "GOLD",
		"amount":    "100",
	})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	// History shows both completed movements, newest first.
	req, _ := http.NewRequest("GET", "/api/v1/accounts/"+user.ID.String()+"/history", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		History []models.HistoryItem `json:"history"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.History, 2)
	assert.Equal(t, models.KindWithdrawal, resp.History[0].Kind)
	assert.Equal(t, "GOLD", resp.History[0].AssetType)
}

func TestIntegration_TopUpIdempotencyKeyReuse(t *testing.T) {
	r, user, teardown := setupIntegrationRouter(t)
	defer teardown()

	payload := map[string]interface{}{
		"accountId":      user.ID,
		"assetType":      "GOLD",
		"amount":         "10",
		"idempotencyKey": "topup-1",
	}
	w := doPost(r, "/api/v1/credits/topup", payload)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doPost(r, "/api/v1/credits/topup", payload)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestIntegration_UnknownAsset(t *testing.T) {
	r, user, teardown := setupIntegrationRouter(t)
	defer teardown()

	w := doPost(r, "/api/v1/credits/topup", map[string]interface{}{
		"accountId": user.ID,
		"assetType": "SILVER",
		"amount":    "10",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
