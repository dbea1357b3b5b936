package webhook

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v79"
	stripewebhook "github.com/stripe/stripe-go/v79/webhook"

	"github.com/okeowo1014/leisuretimezapi/internal/logger"
	"github.com/okeowo1014/leisuretimezapi/internal/payment"
)

const maxBodyBytes = 65536

type Handler struct {
	reconciler *Reconciler
	secret     string
}

func NewHandler(reconciler *Reconciler, secret string) *Handler {
	return &Handler{reconciler: reconciler, secret: secret}
}

// Handle godoc
// @Summary      Stripe webhook endpoint
// @Description  Verifies the event signature, then applies it idempotently.
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Success      200  {object}  api.MessageResponse
// @Failure      400  {object}  api.ErrorResponse
// @Router       /webhooks/stripe [post]
func (h *Handler) Handle(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	event, err := stripewebhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), h.secret)
	if err != nil {
		logger.Error("webhook signature verification failed", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	ev, ok, err := normalize(event)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event payload"})
		return
	}
	if !ok {
		// Event types we do not reconcile are acknowledged so the gateway
		// stops redelivering them.
		c.JSON(http.StatusOK, gin.H{"message": "ignored"})
		return
	}

	if err := h.reconciler.Process(c.Request.Context(), ev); err != nil {
		logger.Error("webhook processing failed", "event_id", ev.ID, "type", ev.Type, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "event processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "processed"})
}

// normalize maps a verified Stripe event onto the reconciler's event model.
func normalize(event stripe.Event) (Event, bool, error) {
	ev := Event{ID: event.ID}

	switch string(event.Type) {
	case "checkout.session.completed", "checkout.session.expired":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return Event{}, false, err
		}
		ev.SessionID = sess.ID
		ev.SessionType = sess.Metadata[payment.MetaType]
		if string(event.Type) == "checkout.session.completed" {
			ev.Type = EventCheckoutCompleted
		} else {
			ev.Type = EventCheckoutExpired
		}
		return ev, true, nil

	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return Event{}, false, err
		}
		ev.Reference = intent.ID
		if string(event.Type) == "payment_intent.succeeded" {
			ev.Type = EventPaymentSucceeded
		} else {
			ev.Type = EventPaymentFailed
		}
		return ev, true, nil

	default:
		return Event{}, false, nil
	}
}
