package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"schoolpay_echo/internal/handlers"
	authMiddleware "schoolpay_echo/internal/middleware"
	"schoolpay_echo/internal/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// Initialize Firebase
	credPath := os.Getenv("FIREBASE_CREDENTIALS_PATH")
	if credPath == "" {
		credPath = "./firebase-service-account.json"
	}

	authClient, err := services.InitFirebase(credPath)
	if err != nil {
		log.Printf("Warning: Firebase initialization failed: %v", err)
		log.Println("Authenticated endpoints will reject requests until valid credentials are provided")
	}

	// Initialize Database
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	db, err := services.InitDB(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := services.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Initialize Redis (optional; settings and bank list fall back to the DB)
	var cache *services.RedisCache
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cache, err = services.NewRedisCache(redisURL)
		if err != nil {
			log.Printf("Warning: Redis initialization failed: %v", err)
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	// Initialize services
	gateway := services.NewPaystackService()
	settings := services.NewSettingsService(db, cache)
	payments := services.NewPaymentService(db, gateway, settings)
	email := services.NewEmailService()

	// Create Echo instance
	e := echo.New()
	e.HTTPErrorHandler = authMiddleware.CustomErrorHandler
	e.Validator = handlers.NewRequestValidator()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Initialize handlers
	paymentHandler := handlers.NewPaymentHandler(db, payments, email)
	webhookHandler := handlers.NewWebhookHandler(db, gateway, payments, email)
	bankHandler := handlers.NewBankHandler(gateway, settings, cache)
	obligationHandler := handlers.NewObligationHandler(db)

	// Webhook route: unauthenticated, the signature is its authentication
	e.POST("/webhooks/paystack", webhookHandler.HandlePaystackWebhook)

	// Protected API routes
	api := e.Group("/api")
	api.Use(authMiddleware.RequireAuth(authClient))

	api.POST("/payments/initiate", paymentHandler.InitiatePayment)
	api.GET("/payments/verify/:reference", paymentHandler.VerifyPayment)
	api.POST("/payments/manual", paymentHandler.RecordManualPayment)
	api.GET("/payments", paymentHandler.ListPayments)

	api.POST("/obligations", obligationHandler.CreateObligation)
	api.GET("/obligations", obligationHandler.ListObligations)
	api.GET("/obligations/:id", obligationHandler.GetObligation)

	api.GET("/banks", bankHandler.ListBanks)
	api.GET("/banks/resolve", bankHandler.ResolveAccount)
	api.POST("/onboarding/subaccount", bankHandler.CreateSubaccount)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	e.Logger.Fatal(e.Start(":" + port))
}
