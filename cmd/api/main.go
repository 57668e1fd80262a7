package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vendsur/caja-api/internal/application/service"
	"github.com/vendsur/caja-api/internal/application/worker"
	"github.com/vendsur/caja-api/internal/config"
	"github.com/vendsur/caja-api/internal/infrastructure/database"
	infragateway "github.com/vendsur/caja-api/internal/infrastructure/gateway"
	"github.com/vendsur/caja-api/internal/infrastructure/repository"
	"github.com/vendsur/caja-api/internal/presentation/http/handler"
	"github.com/vendsur/caja-api/internal/presentation/http/routes"
	"github.com/vendsur/caja-api/pkg/fiscal"
	"github.com/vendsur/caja-api/pkg/notify"
	"github.com/vendsur/caja-api/pkg/utils"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run auto-migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize JWT manager
	jwtManager := utils.NewJWTManager(
		cfg.JWT.Secret,
		cfg.JWT.ExpiryHours,
		cfg.JWT.RefreshExpiryHours,
	)

	// Initialize repositories
	productRepo := repository.NewProductRepository(db)
	pendingRepo := repository.NewPendingTransactionRepository(db)
	docRepo := repository.NewFiscalDocumentRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	taskRepo := repository.NewReconciliationTaskRepository(db)
	idempotencyRepo := repository.NewIdempotencyRepository(db)

	// Initialize external gateway adapters
	webpayClient := infragateway.NewWebpayClient(&cfg.Webpay)
	taxClient := infragateway.NewTaxAuthorityClient(&cfg.TaxAuthority)

	// Initialize operator notifications
	notifier := notify.NewNotifier(notify.Config{
		SMTPHost:      cfg.Email.SMTPHost,
		SMTPPort:      cfg.Email.SMTPPort,
		SMTPUsername:  cfg.Email.SMTPUsername,
		SMTPPassword:  cfg.Email.SMTPPassword,
		FromName:      cfg.Email.FromName,
		FromEmail:     cfg.Email.FromEmail,
		OperatorInbox: cfg.Email.OperatorInbox,
	})

	// Initialize services
	builder := fiscal.NewBuilder(cfg.Checkout.TaxRateBP)
	authService := service.NewAuthService(cfg.Operator, jwtManager)
	checkoutService := service.NewCheckoutService(productRepo, pendingRepo, webpayClient, builder, cfg.Checkout.PendingTTL)
	reconciliationService := service.NewReconciliationService(
		pendingRepo, docRepo, ledgerRepo, taskRepo,
		webpayClient, taxClient, builder, notifier,
		service.RetryPolicy{
			MaxAttempts:     cfg.Reconciler.SubmitMaxAttempts,
			BackoffBase:     cfg.Reconciler.SubmitBackoffBase,
			CorrectionLimit: cfg.Reconciler.CorrectionAttempts,
		},
	)
	documentService := service.NewDocumentService(docRepo, ledgerRepo)
	productService := service.NewProductService(productRepo)

	// Initialize handlers
	handlers := &routes.Handlers{
		Auth:           handler.NewAuthHandler(authService),
		Checkout:       handler.NewCheckoutHandler(checkoutService, reconciliationService),
		Document:       handler.NewDocumentHandler(documentService),
		Product:        handler.NewProductHandler(productService),
		Reconciliation: handler.NewReconciliationHandler(reconciliationService),
	}

	// Setup routes
	router := routes.Setup(handlers, &routes.Deps{
		JWTManager:      jwtManager,
		Cfg:             cfg,
		IdempotencyRepo: idempotencyRepo,
	})

	// Start the background reconciler
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reconciler := worker.NewReconciler(
		reconciliationService, docRepo, taskRepo, pendingRepo, idempotencyRepo,
		cfg.Reconciler.PollInterval,
	)
	go reconciler.Run(ctx)

	port := cfg.App.Port
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Printf("Starting %s server on port %s...", cfg.App.Name, port)
		log.Printf("Environment: %s", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Forced shutdown: %v", err)
		os.Exit(1)
	}
}
