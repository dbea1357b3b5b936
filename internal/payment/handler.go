package payment

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/okeowo1014/leisuretimezapi/internal/auth"
	"github.com/okeowo1014/leisuretimezapi/internal/booking"
	"github.com/okeowo1014/leisuretimezapi/internal/metrics"
	"github.com/okeowo1014/leisuretimezapi/internal/wallet"
)

type Handler struct {
	orchestrator *Orchestrator
}

func NewHandler(orchestrator *Orchestrator) *Handler {
	return &Handler{orchestrator: orchestrator}
}

type ConfirmRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Mode       string `json:"mode" binding:"required,oneof=wallet stripe split"`
}

type DepositRequest struct {
	Amount          decimal.Decimal `json:"amount" binding:"required"`
	SuccessURL      string          `json:"success_url"`
	CancelURL       string          `json:"cancel_url"`
	PaymentMethodID string          `json:"payment_method_id"`
}

// Pay godoc
// @Summary      Pay for a booking
// @Description  Settles from the wallet, redirects to checkout, or splits across both.
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Param        bookingID  path      string  true  "Booking id"
// @Param        mode       path      string  true  "wallet | stripe | split"
// @Success      200        {object}  InitiateResult
// @Failure      400        {object}  api.ErrorResponse
// @Failure      404        {object}  api.ErrorResponse
// @Failure      409        {object}  api.ErrorResponse
// @Router       /bookings/{bookingID}/pay/{mode} [post]
func (h *Handler) Pay(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	mode := c.Param("mode")
	result, err := h.orchestrator.Initiate(c.Request.Context(), userID, c.Param("bookingID"), mode)
	if err != nil {
		metrics.RecordPayment(mode, "failed")
		switch {
		case errors.Is(err, ErrUnknownMode):
			c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be wallet, stripe or split"})
		case errors.Is(err, booking.ErrBookingNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
		case errors.Is(err, booking.ErrInvalidState):
			c.JSON(http.StatusConflict, gin.H{"error": "booking is not awaiting payment"})
		case errors.Is(err, wallet.ErrInsufficientFunds):
			c.JSON(http.StatusBadRequest, gin.H{"error": "insufficient wallet balance"})
		case errors.Is(err, wallet.ErrWalletNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "wallet not found"})
		case errors.Is(err, ErrGateway):
			c.JSON(http.StatusBadGateway, gin.H{"error": "payment provider is unavailable, please retry"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to initiate payment"})
		}
		return
	}

	metrics.RecordPayment(mode, result.Status)
	c.JSON(http.StatusOK, result)
}

// Confirm godoc
// @Summary      Confirm a booking payment
// @Description  Verifies the ledger and gateway state, then settles. Safe to retry.
// @Tags         payments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      ConfirmRequest  true  "Identifier and mode"
// @Success      200      {object}  booking.Booking
// @Failure      400      {object}  api.ErrorResponse
// @Failure      402      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Router       /payments/confirm [post]
func (h *Handler) Confirm(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identifier and mode are required"})
		return
	}

	b, err := h.orchestrator.Confirm(c.Request.Context(), userID, req.Identifier, req.Mode)
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrBookingNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
		case errors.Is(err, ErrPaymentNotVerified):
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "payment has not completed"})
		case errors.Is(err, ErrGateway):
			c.JSON(http.StatusBadGateway, gin.H{"error": "payment provider is unavailable, please retry"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to confirm payment"})
		}
		return
	}

	c.JSON(http.StatusOK, b)
}

// Deposit godoc
// @Summary      Deposit into the wallet
// @Description  Opens a checkout session, or charges a stored payment method directly.
// @Tags         wallet
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      DepositRequest  true  "Deposit"
// @Success      200      {object}  DepositResult
// @Failure      400      {object}  api.ErrorResponse
// @Failure      402      {object}  api.ErrorResponse
// @Router       /wallet/deposit [post]
func (h *Handler) Deposit(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount is required"})
		return
	}

	email, _ := auth.GetUserEmail(c)
	result, err := h.orchestrator.Deposit(c.Request.Context(), userID, email, req.Amount, req.SuccessURL, req.CancelURL, req.PaymentMethodID)
	if err != nil {
		metrics.RecordWalletTransaction(string(wallet.TypeDeposit), "failed")
		switch {
		case errors.Is(err, wallet.ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be at least 1.00"})
		case errors.Is(err, ErrChargeFailed):
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "card charge did not succeed"})
		case errors.Is(err, ErrGateway):
			c.JSON(http.StatusBadGateway, gin.H{"error": "payment provider is unavailable, please retry"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start deposit"})
		}
		return
	}

	metrics.RecordWalletTransaction(string(wallet.TypeDeposit), result.Status)
	c.JSON(http.StatusOK, result)
}
