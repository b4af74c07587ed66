// internal/router/router.go
package router

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/songgate/internal/config"
	"github.com/javajoker/songgate/internal/handlers"
	"github.com/javajoker/songgate/internal/middleware"
	"github.com/javajoker/songgate/internal/reporting"
	"github.com/javajoker/songgate/internal/services"
	"github.com/javajoker/songgate/internal/store"
	"github.com/javajoker/songgate/internal/utils"
)

// Version is reported by the health check.
const Version = "1.0.0"

// Services is the service graph behind the HTTP API.
type Services struct {
	Notifications *services.NotificationService
	Ledger        *services.LedgerService
	Listings      *services.ListingService
	Registry      *services.RegistryService
	Access        *services.AccessService
	Reports       *services.ReportService
	Auth          *services.AuthService
	Storage       *services.StorageService
	Stripe        *services.StripeRail
}

// NewServices wires every service from cfg over st. The payment rail comes
// from PAYMENT_RAIL and the reporter from REPORT_URL; without a URL the
// built-in report service is called in process.
func NewServices(cfg *config.Config, st store.Store, logger *logrus.Logger) (*Services, error) {
	svc := &Services{}
	svc.Notifications = services.NewNotificationService(st, logger)
	svc.Ledger = services.NewLedgerService(st, svc.Notifications)

	storage, err := services.NewStorageService(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	svc.Storage = storage

	var rail services.PaymentRail
	switch cfg.Payment.Rail {
	case config.RailStripe:
		svc.Stripe = services.NewStripeRail(cfg, logger)
		rail = svc.Stripe
	default:
		rail = services.NewLedgerRail(svc.Ledger)
	}

	svc.Reports = services.NewReportService(st, svc.Notifications, logger)
	var reporter services.Reporter = services.NewLocalReporter(svc.Reports)
	if cfg.Report.URL != "" {
		reporter = reporting.NewClient(cfg.Report.URL, cfg.Report.Token, cfg.Report.Timeout, logger)
	}

	escrow := services.NewEscrowService(rail, reporter, cfg.Report.Timeout, logger)
	svc.Registry = services.NewRegistryService(st, escrow, services.NewReceiptService(st), svc.Notifications, logger)

	var presigner services.ContentPresigner
	if storage.IsConfigured() {
		presigner = storage
	}
	svc.Access = services.NewAccessService(st, presigner, cfg.AWS.PresignTTL, logger)
	svc.Listings = services.NewListingService(st, svc.Notifications, cfg.Payment.CommissionRate, logger)
	svc.Auth = services.NewAuthService(st, cfg, logger)

	logger.WithFields(logrus.Fields{
		"rail":     rail.Name(),
		"reporter": fmt.Sprintf("%T", reporter),
		"storage":  storage.IsConfigured(),
	}).Info("services initialized")
	return svc, nil
}

func Initialize(cfg *config.Config, st store.Store, logger *logrus.Logger) (*gin.Engine, error) {
	svc, err := NewServices(cfg, st, logger)
	if err != nil {
		return nil, err
	}
	return Setup(cfg, st, svc, logger), nil
}

// Setup registers middleware and routes for an already wired service graph.
func Setup(cfg *config.Config, st store.Store, svc *Services, logger *logrus.Logger) *gin.Engine {
	authHandler := handlers.NewAuthHandler(svc.Auth)
	listingHandler := handlers.NewListingHandler(svc.Listings, svc.Registry, svc.Notifications, svc.Storage)
	purchaseHandler := handlers.NewPurchaseHandler(svc.Registry, svc.Access)
	paymentHandler := handlers.NewPaymentHandler(svc.Listings, svc.Stripe)
	ledgerHandler := handlers.NewLedgerHandler(svc.Ledger)
	verificationHandler := handlers.NewVerificationHandler(svc.Registry)
	reportHandler := handlers.NewReportHandler(svc.Reports)

	utils.SetJWTSecret(cfg.JWT.SecretKey)

	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	r.Use(middleware.I18nMiddleware(cfg.I18n.DefaultLocale))
	r.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	r.Use(middleware.AuditLogMiddleware(st, logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": Version,
		})
	})

	v1 := r.Group("/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.GET("/me", middleware.AuthRequired(), authHandler.GetProfile)
			auth.PUT("/me", middleware.AuthRequired(), authHandler.UpdateProfile)
		}

		listings := v1.Group("/listings")
		{
			listings.GET("/:id", listingHandler.GetListing)
			listings.GET("/:id/events", listingHandler.ListEvents)
			listings.GET("/:id/buyers/:account", purchaseHandler.IsOnList)

			protected := listings.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.POST("", listingHandler.Publish)
				protected.POST("/cover", listingHandler.UploadCover)
				protected.GET("/mine", listingHandler.ListMine)
				protected.PUT("/:id/price", listingHandler.UpdatePrice)
				protected.PUT("/:id/commission", listingHandler.SetCommission)
				protected.PUT("/:id/report-account", listingHandler.SetReportAccount)
				protected.GET("/:id/transactions", listingHandler.ListTransactions)

				protected.POST("/:id/payment-intent", paymentHandler.CreatePaymentIntent)
				protected.POST("/:id/intents", purchaseHandler.PostIntent)
				protected.GET("/:id/intents/:account/key", purchaseHandler.GetPendingKey)
				protected.POST("/:id/intents/:account/confirm", purchaseHandler.ConfirmBuyer)
				protected.GET("/:id/delivery", purchaseHandler.RetrieveDelivery)
				protected.GET("/:id/access", purchaseHandler.ResolveAccess)
			}
		}

		ledger := v1.Group("/ledger")
		{
			ledger.GET("/supply", ledgerHandler.Supply)
			ledger.GET("/balances/:account", ledgerHandler.Balance)
			ledger.GET("/allowances/:owner/:spender", ledgerHandler.Allowance)

			protected := ledger.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.POST("/transfer", ledgerHandler.Transfer)
				protected.POST("/approve", ledgerHandler.Approve)
				protected.POST("/transfer-from", ledgerHandler.TransferFrom)
			}
		}

		v1.GET("/verify/:code", verificationHandler.VerifyReceipt)

		v1.POST("/reports", middleware.ReportTokenRequired(cfg.Report.Token), reportHandler.Insert)
	}

	return r
}
