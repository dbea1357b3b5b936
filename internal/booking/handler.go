package booking

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/okeowo1014/leisuretimezapi/internal/auth"
	"github.com/okeowo1014/leisuretimezapi/internal/catalog"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type CreateBookingRequest struct {
	PackageID string `json:"package_id" binding:"required"`
	DateFrom  string `json:"date_from" binding:"required"`
	DateTo    string `json:"date_to" binding:"required"`
	Adult     int    `json:"adult" binding:"required,min=1"`
	Children  int    `json:"children" binding:"min=0"`
}

type ApplyPromoRequest struct {
	Code string `json:"code" binding:"required"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason"`
}

func parseDateRange(from, to string) (time.Time, time.Time, error) {
	dateFrom, err := time.Parse("2006-01-02", from)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	dateTo, err := time.Parse("2006-01-02", to)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if dateTo.Before(dateFrom) {
		return time.Time{}, time.Time{}, errors.New("date_to before date_from")
	}
	return dateFrom, dateTo, nil
}

// Create godoc
// @Summary      Create a booking
// @Tags         bookings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      CreateBookingRequest  true  "Booking"
// @Success      201      {object}  Booking
// @Failure      400      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Router       /bookings [post]
func (h *Handler) Create(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "package_id, date_from, date_to and adult are required"})
		return
	}

	dateFrom, dateTo, err := parseDateRange(req.DateFrom, req.DateTo)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "dates must be YYYY-MM-DD with date_to on or after date_from"})
		return
	}

	b, err := h.service.Create(c.Request.Context(), userID, CreateInput{
		PackageID: req.PackageID,
		DateFrom:  dateFrom,
		DateTo:    dateTo,
		Adult:     req.Adult,
		Children:  req.Children,
	})
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrPackageNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "package not found"})
		case errors.Is(err, catalog.ErrPricingNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"error": "no price available for the requested guest counts"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create booking"})
		}
		return
	}

	c.JSON(http.StatusCreated, b)
}

// List godoc
// @Summary      List the caller's bookings
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  Booking
// @Router       /bookings [get]
func (h *Handler) List(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	bookings, err := h.service.repo.ListByCustomer(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load bookings"})
		return
	}

	c.JSON(http.StatusOK, bookings)
}

// Get godoc
// @Summary      Fetch one booking
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        bookingID  path      string  true  "Booking id"
// @Success      200        {object}  Booking
// @Failure      404        {object}  api.ErrorResponse
// @Router       /bookings/{bookingID} [get]
func (h *Handler) Get(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	b, err := h.service.repo.GetForCustomer(c.Request.Context(), c.Param("bookingID"), userID)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load booking"})
		return
	}

	c.JSON(http.StatusOK, b)
}

// Modify godoc
// @Summary      Modify a pending booking
// @Tags         bookings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        bookingID  path      string                true  "Booking id"
// @Param        request    body      CreateBookingRequest  true  "New dates and guests"
// @Success      200        {object}  Booking
// @Failure      400        {object}  api.ErrorResponse
// @Failure      404        {object}  api.ErrorResponse
// @Failure      409        {object}  api.ErrorResponse
// @Router       /bookings/{bookingID} [put]
func (h *Handler) Modify(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date_from, date_to and adult are required"})
		return
	}

	dateFrom, dateTo, err := parseDateRange(req.DateFrom, req.DateTo)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "dates must be YYYY-MM-DD with date_to on or after date_from"})
		return
	}

	b, err := h.service.Modify(c.Request.Context(), userID, c.Param("bookingID"), CreateInput{
		DateFrom: dateFrom,
		DateTo:   dateTo,
		Adult:    req.Adult,
		Children: req.Children,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrBookingNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
		case errors.Is(err, ErrInvalidState):
			c.JSON(http.StatusConflict, gin.H{"error": "only pending bookings can be modified"})
		case errors.Is(err, catalog.ErrPricingNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"error": "no price available for the requested guest counts"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to modify booking"})
		}
		return
	}

	c.JSON(http.StatusOK, b)
}

// ApplyPromo godoc
// @Summary      Apply a promo code
// @Tags         bookings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        bookingID  path      string             true  "Booking id"
// @Param        request    body      ApplyPromoRequest  true  "Promo code"
// @Success      200        {object}  Booking
// @Failure      400        {object}  api.ErrorResponse
// @Failure      404        {object}  api.ErrorResponse
// @Failure      409        {object}  api.ErrorResponse
// @Router       /bookings/{bookingID}/promo [post]
func (h *Handler) ApplyPromo(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req ApplyPromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code is required"})
		return
	}

	b, err := h.service.ApplyPromo(c.Request.Context(), userID, c.Param("bookingID"), req.Code)
	if err != nil {
		switch {
		case errors.Is(err, ErrBookingNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
		case errors.Is(err, ErrPromoInvalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": "promo code is invalid or expired"})
		case errors.Is(err, ErrPromoNotEligible):
			c.JSON(http.StatusBadRequest, gin.H{"error": "booking does not meet the promo minimum order amount"})
		case errors.Is(err, ErrPromoNotApplicable):
			c.JSON(http.StatusConflict, gin.H{"error": "promo cannot be applied to this booking"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to apply promo"})
		}
		return
	}

	c.JSON(http.StatusOK, b)
}

// RemovePromo godoc
// @Summary      Remove the applied promo code
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        bookingID  path      string  true  "Booking id"
// @Success      200        {object}  Booking
// @Failure      404        {object}  api.ErrorResponse
// @Failure      409        {object}  api.ErrorResponse
// @Router       /bookings/{bookingID}/promo [delete]
func (h *Handler) RemovePromo(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	b, err := h.service.RemovePromo(c.Request.Context(), userID, c.Param("bookingID"))
	if err != nil {
		switch {
		case errors.Is(err, ErrBookingNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
		case errors.Is(err, ErrPromoNotApplicable):
			c.JSON(http.StatusConflict, gin.H{"error": "no promo to remove on this booking"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove promo"})
		}
		return
	}

	c.JSON(http.StatusOK, b)
}

// Cancel godoc
// @Summary      Cancel a booking
// @Description  Refunds the wallet-paid portion according to the cancellation policy.
// @Tags         bookings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        bookingID  path      string                true  "Booking id"
// @Param        request    body      CancelBookingRequest  false  "Cancellation reason"
// @Success      200        {object}  Booking
// @Failure      404        {object}  api.ErrorResponse
// @Failure      409        {object}  api.ErrorResponse
// @Router       /bookings/{bookingID}/cancel [post]
func (h *Handler) Cancel(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req CancelBookingRequest
	_ = c.ShouldBindJSON(&req)

	b, err := h.service.Cancel(c.Request.Context(), userID, c.Param("bookingID"), req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, ErrBookingNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
		case errors.Is(err, ErrInvalidState):
			c.JSON(http.StatusConflict, gin.H{"error": "booking is already cancelled"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel booking"})
		}
		return
	}

	c.JSON(http.StatusOK, b)
}

// ListAll godoc
// @Summary      List all bookings (admin)
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  Booking
// @Router       /admin/bookings [get]
func (h *Handler) ListAll(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	bookings, err := h.service.repo.ListAll(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load bookings"})
		return
	}

	c.JSON(http.StatusOK, bookings)
}
