package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/okeowo1014/leisuretimezapi/internal/auth"
	"github.com/okeowo1014/leisuretimezapi/internal/booking"
	"github.com/okeowo1014/leisuretimezapi/internal/catalog"
	"github.com/okeowo1014/leisuretimezapi/internal/config"
	"github.com/okeowo1014/leisuretimezapi/internal/invoice"
	"github.com/okeowo1014/leisuretimezapi/internal/payment"
	"github.com/okeowo1014/leisuretimezapi/internal/promo"
	"github.com/okeowo1014/leisuretimezapi/internal/wallet"
	"github.com/okeowo1014/leisuretimezapi/internal/webhook"
)

type Server struct {
	router *gin.Engine
	http   *http.Server
	db     *sqlx.DB
	config *config.Config
}

func New(db *sqlx.DB, cfg *config.Config) *Server {
	router := gin.Default()
	router.Use(corsMiddleware())
	router.Use(MetricsMiddleware())
	router.Use(RequestLoggingMiddleware())
	router.Use(RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst))

	walletRepo := wallet.NewRepository(db)
	bookingRepo := booking.NewRepository(db)
	packageRepo := catalog.NewRepository(db)
	promoRepo := promo.NewRepository(db)
	invoiceRepo := invoice.NewRepository(db)

	walletHandler := wallet.NewHandler(db)
	promoHandler := promo.NewHandler(db)

	bookingService := booking.NewService(
		bookingRepo, packageRepo, promoRepo, invoiceRepo, walletRepo,
		decimal.NewFromFloat(cfg.AdminFeePercent),
	)
	bookingHandler := booking.NewHandler(bookingService)

	gateway := payment.NewStripeGateway(cfg.StripeSecretKey, cfg.Currency)
	orchestrator := payment.NewOrchestrator(gateway, bookingRepo, walletRepo, bookingService, cfg.SiteURL)
	paymentHandler := payment.NewHandler(orchestrator)

	reconciler := webhook.NewReconciler(webhook.NewRepository(db), walletRepo, orchestrator)
	webhookHandler := webhook.NewHandler(reconciler, cfg.StripeWebhookSecret)

	router.GET("/health", Health)
	router.GET("/metrics", Metrics())
	router.POST("/webhooks/stripe", webhookHandler.Handle)

	authMiddleware := auth.AuthMiddleware(cfg.JWTSecret)
	protected := router.Group("/")
	protected.Use(authMiddleware)
	{
		protected.POST("/wallet", walletHandler.EnsureWallet)
		protected.GET("/wallet", walletHandler.GetBalance)
		protected.POST("/wallet/deposit", paymentHandler.Deposit)
		protected.POST("/wallet/withdraw", walletHandler.Withdraw)
		protected.POST("/wallet/transfer", walletHandler.Transfer)
		protected.GET("/wallet/transactions", walletHandler.ListTransactions)

		protected.POST("/bookings", bookingHandler.Create)
		protected.GET("/bookings", bookingHandler.List)
		protected.GET("/bookings/:bookingID", bookingHandler.Get)
		protected.PUT("/bookings/:bookingID", bookingHandler.Modify)
		protected.POST("/bookings/:bookingID/cancel", bookingHandler.Cancel)
		protected.POST("/bookings/:bookingID/promo", bookingHandler.ApplyPromo)
		protected.DELETE("/bookings/:bookingID/promo", bookingHandler.RemovePromo)

		protected.POST("/bookings/:bookingID/pay/:mode", paymentHandler.Pay)
		protected.POST("/payments/confirm", paymentHandler.Confirm)
	}

	adminMiddleware := auth.RequireRole("admin")
	admin := router.Group("/admin")
	admin.Use(authMiddleware, adminMiddleware)
	{
		admin.GET("/bookings", bookingHandler.ListAll)
		admin.POST("/promos", promoHandler.Create)
		admin.GET("/promos", promoHandler.List)
		admin.DELETE("/promos/:id", promoHandler.Deactivate)
		admin.DELETE("/wallets/:userID", walletHandler.Deactivate)
	}

	return &Server{
		router: router,
		db:     db,
		config: cfg,
	}
}

func (s *Server) Start(port string) error {
	s.http = &http.Server{
		Addr:    ":" + port,
		Handler: s.router,
	}
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
