package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/random"

	"otomart/internal/caching"
	"otomart/internal/config"
	"otomart/internal/handlers"
	"otomart/internal/jobs/background"
	"otomart/internal/middleware"
	"otomart/internal/repositories"
	"otomart/internal/services"
	"otomart/pkg/database"
)

const version = "1.0.0"

func main() {
	ctx := context.Background()

	// Database connection
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}
	pool, err := database.NewPool(ctx, databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// JWT configuration
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = random.String(32) // Generate random secret for development
		log.Printf("WARNING: JWT_SECRET not set, using a generated secret")
	}

	// Redis configuration
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisPassword := os.Getenv("REDIS_PASSWORD")
	redisDB := 0
	if redisDBStr := os.Getenv("REDIS_DB"); redisDBStr != "" {
		if db, err := strconv.Atoi(redisDBStr); err == nil {
			redisDB = db
		}
	}
	redisClient := caching.NewRedisClient(redisAddr, redisPassword, redisDB)
	cacheSvc := caching.NewRedisCacheService(redisClient)

	// MinIO configuration
	minioEndpoint := os.Getenv("MINIO_ENDPOINT")
	if minioEndpoint == "" {
		minioEndpoint = "localhost:9000"
	}
	minioAccessKey := os.Getenv("MINIO_ACCESS_KEY")
	if minioAccessKey == "" {
		minioAccessKey = "minioadmin"
	}
	minioSecretKey := os.Getenv("MINIO_SECRET_KEY")
	if minioSecretKey == "" {
		minioSecretKey = "minioadmin"
	}
	useSSL := os.Getenv("MINIO_USE_SSL") == "true"

	proofStorage, err := services.NewProofStorageService(minioEndpoint, minioAccessKey, minioSecretKey, useSSL)
	if err != nil {
		log.Fatalf("Failed to initialize proof storage: %v", err)
	}
	if err := proofStorage.EnsureBucketExists(ctx); err != nil {
		log.Fatalf("Failed to ensure proof bucket: %v", err)
	}

	// Billing policy
	policy := config.LoadBillingPolicy()

	// Create repositories
	tenantRepo := repositories.NewTenantRepo(pool)
	planRepo := repositories.NewPlanRepo(pool)
	invoiceRepo := repositories.NewInvoiceRepo(pool)
	approvalRepo := repositories.NewApprovalRepo(pool)
	paymentMethodRepo := repositories.NewPaymentMethodRepo(pool)
	usageRepo := repositories.NewUsageRepo(pool)

	// Create services
	planSvc := services.NewPlanService(planRepo, cacheSvc)
	subscriptionSvc := services.NewSubscriptionService(pool, tenantRepo, cacheSvc, policy)
	invoiceSvc := services.NewInvoiceService(pool, invoiceRepo, planSvc, subscriptionSvc, policy)
	approvalSvc := services.NewApprovalService(pool, approvalRepo, planSvc, invoiceSvc, subscriptionSvc)
	quotaSvc := services.NewQuotaService(pool, tenantRepo, planRepo, usageRepo)
	paymentMethodSvc := services.NewPaymentMethodService(paymentMethodRepo)

	if err := planSvc.SeedDefaults(ctx); err != nil {
		log.Fatalf("Failed to seed plan catalog: %v", err)
	}

	// Lifecycle scheduler
	scheduler, err := background.NewLifecycleScheduler(pool, tenantRepo, invoiceRepo, invoiceSvc, subscriptionSvc, policy)
	if err != nil {
		log.Fatalf("Failed to create lifecycle scheduler: %v", err)
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Stop(); err != nil {
			log.Printf("Failed to stop lifecycle scheduler: %v", err)
		}
	}()

	// Create handlers
	billingHandlers := handlers.NewBillingHandlers(
		invoiceSvc,
		subscriptionSvc,
		planSvc,
		approvalSvc,
		paymentMethodSvc,
		quotaSvc,
		proofStorage,
		usageRepo,
		cacheSvc,
		policy,
	)
	superadminHandlers := handlers.NewSuperadminHandlers(
		invoiceSvc,
		subscriptionSvc,
		planSvc,
		approvalSvc,
		paymentMethodSvc,
		proofStorage,
		scheduler,
		policy,
	)
	healthHandlers := handlers.NewHealthHandlers(pool, redisClient)

	// Create Echo instance
	e := echo.New()

	// Global middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.RemoveTrailingSlash())

	// Health endpoints (no auth required)
	e.GET("/health", healthHandlers.HealthCheck)
	e.GET("/health/ready", healthHandlers.ReadinessCheck)
	e.GET("/health/live", healthHandlers.LivenessCheck)

	// API routes
	v1 := e.Group("/v1")
	v1.Use(middleware.JWTMiddleware(jwtSecret))

	// Tenant-facing billing routes
	billing := v1.Group("/billing")
	billing.POST("/subscribe", billingHandlers.Subscribe)
	billing.GET("/invoices", billingHandlers.ListInvoices)
	billing.GET("/invoices/:id", billingHandlers.GetInvoice)
	billing.POST("/invoices/:id/payment-proof", billingHandlers.UploadPaymentProof)
	billing.GET("/profile", billingHandlers.GetProfile)
	billing.GET("/plans", billingHandlers.ListPlans)
	billing.GET("/payment-methods", billingHandlers.ListPaymentMethods)
	billing.GET("/quota/:resource", billingHandlers.CheckQuota)
	billing.POST("/approvals", billingHandlers.RequestApproval)
	billing.GET("/approvals", billingHandlers.ListApprovals)

	// Operator console routes
	superadmin := v1.Group("/superadmin")
	superadmin.Use(middleware.RequireSuperadmin())
	superadmin.PATCH("/invoices/:id/verify", superadminHandlers.VerifyInvoice)
	superadmin.GET("/invoices/:id/payment-proof", superadminHandlers.GetInvoiceProof)
	superadmin.GET("/approvals", superadminHandlers.ListApprovals)
	superadmin.PATCH("/approvals/:id", superadminHandlers.DecideApproval)
	superadmin.GET("/plans", superadminHandlers.ListPlans)
	superadmin.PATCH("/plans/:id", superadminHandlers.UpdatePlan)
	superadmin.POST("/tenants", superadminHandlers.CreateTenant)
	superadmin.GET("/tenants", superadminHandlers.ListTenants)
	superadmin.PATCH("/tenants/:id", superadminHandlers.UpdateTenant)
	superadmin.DELETE("/tenants/:id", superadminHandlers.PurgeTenant)
	superadmin.POST("/lifecycle/run", superadminHandlers.RunLifecycle)
	superadmin.POST("/payment-methods", superadminHandlers.CreatePaymentMethod)
	superadmin.GET("/payment-methods", superadminHandlers.ListPaymentMethods)
	superadmin.PATCH("/payment-methods/:id", superadminHandlers.UpdatePaymentMethod)
	superadmin.DELETE("/payment-methods/:id", superadminHandlers.DeletePaymentMethod)

	// Start server
	portStr := os.Getenv("PORT")
	if portStr == "" {
		portStr = "8080"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		log.Fatalf("Invalid port %s: %v", portStr, err)
	}

	log.Printf("Otomart billing server v%s starting on port %d", version, port)
	e.Logger.Fatal(e.Start(fmt.Sprintf(":%d", port)))
}
