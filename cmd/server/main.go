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

	_ "github.com/salon64/BB-M7011E/docs"
	"github.com/salon64/BB-M7011E/internal/database"
	"github.com/salon64/BB-M7011E/internal/handlers"
	"github.com/salon64/BB-M7011E/internal/ledger"
	mW "github.com/salon64/BB-M7011E/internal/middleware"
	"github.com/salon64/BB-M7011E/internal/services"
)

// @title Campus Kiosk Payments API
// @version 1.0
// @description Stored-value payments backend for the campus kiosk
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

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
	viper.BindEnv("terminal.key_hash", "TERMINAL_KEY_HASH")
	viper.BindEnv("reconciler.interval", "RECONCILER_INTERVAL")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Storage
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Ledger engine over the durable store; everything that moves money goes
	// through it.
	store := ledger.NewPostgres(db)
	engine := ledger.NewEngine(store)

	viper.SetDefault("reconciler.interval", 5*time.Minute)
	reconciler := ledger.NewReconciler(store, viper.GetDuration("reconciler.interval"))
	reconcilerCtx, stopReconciler := context.WithCancel(context.Background())
	defer stopReconciler()
	go reconciler.Run(reconcilerCtx)

	// Services
	paymentService := services.NewPaymentService(db, redisClient, engine)
	accountService := services.NewAccountService(db, engine)
	catalogService := services.NewCatalogService(db)
	topupService := services.NewTopupService(redisClient, engine)
	topupHandler := handlers.NewTopupHandler(topupService)

	// Setup router
	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Terminal-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		// Public catalog reads (kiosk display)
		r.Get("/items", catalogService.ListItems)
		r.Get("/items/{itemId}", catalogService.GetItem)

		// Kiosk terminal endpoints (card-reader bridge)
		r.Group(func(r chi.Router) {
			r.Use(mW.TerminalAuth)

			r.Post("/payments/debit", paymentService.Debit)
			r.Post("/topup/qr/redeem", topupHandler.RedeemQR)
			r.Get("/accounts/balance-enquiry", accountService.BalanceEnquiry)
		})

		// Staff/member endpoints (token from the identity provider)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Post("/payments/credit", paymentService.Credit)
			r.Post("/accounts", accountService.CreateAccount)
			r.Put("/accounts/{accountId}/status", accountService.SetStatus)
			r.Get("/accounts/{accountId}/history", accountService.History)

			r.Post("/items", catalogService.CreateItem)
			r.Put("/items/{itemId}", catalogService.UpdateItem)

			r.Post("/topup/qr/generate", topupHandler.GenerateQR)
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
	stopReconciler()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
