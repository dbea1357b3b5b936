package promo

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type Handler struct {
	repo Repository
}

func NewHandler(db *sqlx.DB) *Handler {
	return &Handler{repo: NewRepository(db)}
}

type CreatePromoRequest struct {
	Code           string          `json:"code" binding:"required"`
	DiscountType   string          `json:"discount_type" binding:"required,oneof=percentage fixed"`
	DiscountValue  decimal.Decimal `json:"discount_value" binding:"required"`
	MinOrderAmount decimal.Decimal `json:"min_order_amount"`
	MaxUses        int             `json:"max_uses" binding:"min=0"`
	ValidFrom      time.Time       `json:"valid_from" binding:"required"`
	ValidTo        time.Time       `json:"valid_to" binding:"required"`
}

// Create godoc
// @Summary      Create a promo code (admin)
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      CreatePromoRequest  true  "Promo code"
// @Success      201      {object}  PromoCode
// @Failure      400      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Router       /admin/promos [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreatePromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code, discount_type, discount_value and validity window are required"})
		return
	}
	if !req.DiscountValue.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "discount_value must be positive"})
		return
	}
	if !req.ValidTo.After(req.ValidFrom) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "valid_to must be after valid_from"})
		return
	}

	created, err := h.repo.Create(c.Request.Context(), &PromoCode{
		Code:           req.Code,
		DiscountType:   req.DiscountType,
		DiscountValue:  req.DiscountValue,
		MinOrderAmount: req.MinOrderAmount,
		MaxUses:        req.MaxUses,
		ValidFrom:      req.ValidFrom,
		ValidTo:        req.ValidTo,
		IsActive:       true,
	})
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == "23505" {
			c.JSON(http.StatusConflict, gin.H{"error": "promo code already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create promo code"})
		return
	}

	c.JSON(http.StatusCreated, created)
}

// List godoc
// @Summary      List promo codes (admin)
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  PromoCode
// @Router       /admin/promos [get]
func (h *Handler) List(c *gin.Context) {
	codes, err := h.repo.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load promo codes"})
		return
	}
	c.JSON(http.StatusOK, codes)
}

// Deactivate godoc
// @Summary      Deactivate a promo code (admin)
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        id  path      int  true  "Promo id"
// @Success      200  {object}  api.MessageResponse
// @Failure      404  {object}  api.ErrorResponse
// @Router       /admin/promos/{id} [delete]
func (h *Handler) Deactivate(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid promo id"})
		return
	}

	if err := h.repo.Deactivate(c.Request.Context(), id); err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "promo code not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to deactivate promo code"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "promo code deactivated"})
}
