package wallet

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/okeowo1014/leisuretimezapi/internal/auth"
	"github.com/okeowo1014/leisuretimezapi/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type Handler struct {
	repo Repository
}

func NewHandler(db *sqlx.DB) *Handler {
	return &Handler{repo: NewRepository(db)}
}

type WithdrawRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

type TransferRequest struct {
	RecipientWalletID string          `json:"recipient_wallet_id" binding:"required"`
	Amount            decimal.Decimal `json:"amount" binding:"required"`
}

// EnsureWallet godoc
// @Summary      Create or fetch wallet
// @Description  Idempotently creates the caller's wallet.
// @Tags         wallet
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  Wallet
// @Failure      500  {object}  api.ErrorResponse
// @Router       /wallet [post]
func (h *Handler) EnsureWallet(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	w, err := h.repo.EnsureWallet(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create wallet"})
		return
	}

	c.JSON(http.StatusOK, w)
}

// GetBalance godoc
// @Summary      Wallet balance
// @Tags         wallet
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  Wallet
// @Failure      404  {object}  api.ErrorResponse
// @Router       /wallet [get]
func (h *Handler) GetBalance(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	w, err := h.repo.GetByUserID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrWalletNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "wallet not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load wallet"})
		return
	}

	c.JSON(http.StatusOK, w)
}

// Withdraw godoc
// @Summary      Withdraw funds
// @Tags         wallet
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      WithdrawRequest  true  "Withdrawal"
// @Success      200      {object}  Transaction
// @Failure      400      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Router       /wallet/withdraw [post]
func (h *Handler) Withdraw(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount is required"})
		return
	}

	w, err := h.repo.GetByUserID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "wallet not found"})
		return
	}

	txn, err := h.repo.Withdraw(c.Request.Context(), w.ID, req.Amount)
	if err != nil {
		metrics.RecordWalletTransaction(string(TypeWithdrawal), "failed")
		switch {
		case errors.Is(err, ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be at least 1.00"})
		case errors.Is(err, ErrInsufficientFunds):
			c.JSON(http.StatusBadRequest, gin.H{"error": "insufficient wallet balance"})
		case errors.Is(err, ErrWalletInactive):
			c.JSON(http.StatusBadRequest, gin.H{"error": "wallet is inactive"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to withdraw"})
		}
		return
	}

	metrics.RecordWalletTransaction(string(TypeWithdrawal), "completed")
	c.JSON(http.StatusOK, txn)
}

// Transfer godoc
// @Summary      Transfer funds to another wallet
// @Tags         wallet
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      TransferRequest  true  "Transfer"
// @Success      200      {object}  Transaction
// @Failure      400      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Router       /wallet/transfer [post]
func (h *Handler) Transfer(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipient_wallet_id and amount are required"})
		return
	}

	recipientID, err := uuid.Parse(req.RecipientWalletID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipient wallet id"})
		return
	}

	w, err := h.repo.GetByUserID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "wallet not found"})
		return
	}

	txn, err := h.repo.Transfer(c.Request.Context(), w.ID, recipientID, req.Amount)
	if err != nil {
		metrics.RecordWalletTransaction(string(TypeTransfer), "failed")
		switch {
		case errors.Is(err, ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be at least 1.00"})
		case errors.Is(err, ErrInsufficientFunds):
			c.JSON(http.StatusBadRequest, gin.H{"error": "insufficient wallet balance"})
		case errors.Is(err, ErrSameWallet):
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot transfer to your own wallet"})
		case errors.Is(err, ErrWalletInactive):
			c.JSON(http.StatusBadRequest, gin.H{"error": "wallet is inactive"})
		case errors.Is(err, ErrWalletNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "recipient wallet not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to transfer"})
		}
		return
	}

	metrics.RecordWalletTransaction(string(TypeTransfer), "completed")
	c.JSON(http.StatusOK, txn)
}

// Deactivate godoc
// @Summary      Deactivate a user's wallet (admin)
// @Description  Flags the wallet inactive; the ledger history is kept.
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        userID  path      int  true  "User id"
// @Success      200     {object}  api.MessageResponse
// @Failure      404     {object}  api.ErrorResponse
// @Router       /admin/wallets/{userID} [delete]
func (h *Handler) Deactivate(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	if err := h.repo.Deactivate(c.Request.Context(), userID); err != nil {
		if errors.Is(err, ErrWalletNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "wallet not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to deactivate wallet"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "wallet deactivated"})
}

// ListTransactions godoc
// @Summary      Wallet transaction history
// @Tags         wallet
// @Security     BearerAuth
// @Produce      json
// @Param        type    query     string  false  "Transaction type filter"
// @Param        limit   query     int     false  "Page size"
// @Param        offset  query     int     false  "Page offset"
// @Success      200     {array}   Transaction
// @Failure      404     {object}  api.ErrorResponse
// @Router       /wallet/transactions [get]
func (h *Handler) ListTransactions(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	w, err := h.repo.GetByUserID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "wallet not found"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	txType := c.Query("type")

	txs, err := h.repo.GetTransactions(c.Request.Context(), w.ID, txType, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load transactions"})
		return
	}

	c.JSON(http.StatusOK, txs)
}
