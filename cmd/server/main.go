package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/lillerent/backend/docs"
	"github.com/lillerent/backend/internal/database"
	"github.com/lillerent/backend/internal/gateway"
	mW "github.com/lillerent/backend/internal/middleware"
	"github.com/lillerent/backend/internal/services"
)

// @title LilleRent Backend API
// @version 1.0
// @description Rental marketplace backend: listings, tenant leads and the payment-gated wallet
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env
	viper.ReadInConfig()        // read .env file

	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	viper.BindEnv("stripe.secret_key", "STRIPE_SECRET_KEY")
	viper.BindEnv("stripe.webhook_secret", "STRIPE_WEBHOOK_SECRET")
	viper.BindEnv("web.base_url", "WEB_BASE_URL")

	viper.SetDefault("jwt.expiry_hours", 72)
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)
	viper.SetDefault("web.base_url", "http://localhost:8080")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "LilleRent Backend API"
	docs.SwaggerInfo.Description = "Rental marketplace backend: listings, tenant leads and the payment-gated wallet"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	db := database.InitDatabase()
	defer db.Close()

	if err := database.EnsureSchema(db); err != nil {
		log.Fatalf("Failed to ensure database schema: %v", err)
	}

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	stripeGateway := gateway.NewStripeGateway(
		viper.GetString("stripe.secret_key"),
		viper.GetString("stripe.webhook_secret"),
	)

	authService := services.NewAuthService(db, redisClient)
	walletService := services.NewWalletService(db, stripeGateway)
	leadService := services.NewLeadService(db)
	listingService := services.NewListingService(db)
	reviewService := services.NewReviewService(db)

	// Initialize auth middleware with Redis
	mW.InitAuthMiddleware(redisClient)

	// Setup router
	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Stripe-Signature"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// Static file server for listing images
	r.Handle("/static/listing-images/*", http.StripPrefix("/static/listing-images/",
		mW.StaticFileServer("./static/listing-images")))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)
		r.Post("/leads", leadService.CreateLead)

		// The webhook must see the raw request body for signature
		// verification, and is authenticated by the signature itself.
		r.Post("/payments/stripe/webhook", walletService.StripeWebhook)

		// Public listing feed; a token, when present, widens GetListing
		// visibility to owners and admins.
		r.Group(func(r chi.Router) {
			r.Use(mW.OptionalAuth)
			r.Get("/listings", listingService.ListPublicListings)
			r.Get("/listings/{id}", listingService.GetListing)
		})

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/auth/me", authService.Me)
			r.Patch("/auth/me", authService.UpdateMe)

			r.Post("/wallet/deposit", walletService.CreateDeposit)
			r.Get("/wallet/deposit/qr", walletService.DepositQR)
			r.Get("/wallet/deposit/confirm", walletService.ConfirmDeposit)
			r.Post("/wallet/reconcile", walletService.ReconcileDeposits)
			r.Get("/wallet/payments", walletService.ListPayments)

			r.Get("/leads", leadService.ListLeads)
			r.Post("/leads/{id}/unlock", leadService.UnlockLead)

			r.Get("/listings/mine", listingService.ListMyListings)
			r.Post("/listings", listingService.CreateListing)
			r.Put("/listings/{id}", listingService.UpdateListing)
			r.Delete("/listings/{id}", listingService.DeleteListing)
			r.Post("/listings/{id}/promote", listingService.PromoteListing)

			// Admin moderation queue
			r.Group(func(r chi.Router) {
				r.Use(mW.AdminOnly)
				r.Get("/admin/review/summary", reviewService.Summary)
				r.Get("/admin/review/leads", reviewService.ListLeadsForReview)
				r.Patch("/admin/review/leads/{id}", reviewService.ReviewLead)
				r.Get("/admin/review/listings", reviewService.ListListingsForReview)
				r.Patch("/admin/review/listings/{id}", reviewService.ReviewListing)
			})
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
