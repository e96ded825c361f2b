package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/lcollard/mergepace/internal/adapters/cache"
	adapterHTTP "github.com/lcollard/mergepace/internal/adapters/handler/http"
	"github.com/lcollard/mergepace/internal/adapters/repository"
	"github.com/lcollard/mergepace/internal/core/domain"
	"github.com/lcollard/mergepace/internal/core/services"
	"github.com/lcollard/mergepace/internal/core/workers"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	startTime := time.Now()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables.")
	}

	dbUser := os.Getenv("DB_USER")
	dbPass := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")
	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")

	serverPort := getEnv("PORT", "8080")

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("Critical: JWT_SECRET must be set")
	}
	jwtIssuer := getEnv("JWT_ISSUER", "mergepace")

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		dbUser, dbPass, dbHost, dbPort, dbName)

	log.Println("Connecting to database...")

	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		log.Fatalf("Critical: Failed to connect to database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	log.Println("Database connected successfully.")

	var progressRepo domain.ProgressRepository = repository.NewPostgresProgressRepository(db)
	userRepo := repository.NewPostgresUserRepository(db)

	var codeStore services.CodeStore = repository.NewInMemoryCodeStore()

	redisClient, err := cache.NewRedisClient(cache.Config{
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})
	if err != nil {
		log.Printf("Redis unavailable, running without cache and with in-process sync codes: %v", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
		progressRepo = repository.NewCachedProgressRepository(progressRepo, redisClient)
		codeStore = cache.NewRedisCodeStore(redisClient)
		log.Println("Redis connected successfully.")
	}

	anchor := weekAnchorFromEnv()

	streakCfg := domain.DefaultStreakConfig()
	if raw := os.Getenv("STREAK_HISTORY_CAP"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			streakCfg.HistoryCap = n
		}
	}

	streakService := services.NewStreakService(progressRepo, streakCfg)
	recalcWorker := workers.NewRecalcWorker(streakService)

	progressService := services.NewProgressService(progressRepo, anchor, recalcWorker)
	statsService := services.NewStatsService(progressRepo, progressService)
	syncService := services.NewSyncService(progressRepo, codeStore, progressService, streakService)

	authService := services.NewAuthService(userRepo)
	tokenService := services.NewTokenService(jwtSecret, jwtIssuer, 24*time.Hour, userRepo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recalcWorker.Start(ctx)

	sweepInterval := workers.DefaultSweepInterval
	if raw := os.Getenv("CONSISTENCY_SWEEP_MINUTES"); raw != "" {
		if minutes, err := strconv.Atoi(raw); err == nil && minutes > 0 {
			sweepInterval = time.Duration(minutes) * time.Minute
		}
	}
	consistencyWorker := workers.NewConsistencyWorker(progressService, progressRepo, sweepInterval)
	consistencyWorker.Start(ctx)

	router := adapterHTTP.NewRouter(adapterHTTP.RouterDependencies{
		AuthHandler:     adapterHTTP.NewAuthHandler(authService, tokenService),
		ProgressHandler: adapterHTTP.NewProgressHandler(progressService),
		StatsHandler:    adapterHTTP.NewStatsHandler(statsService),
		StreakHandler:   adapterHTTP.NewStreakHandler(streakService),
		SyncHandler:     adapterHTTP.NewSyncHandler(syncService),
		TokenService:    tokenService,
		DB:              db,
		Redis:           redisClient,
		StartTime:       startTime,
	})

	srv := &http.Server{
		Addr:         ":" + serverPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Mergepace API running on http://localhost:%s", serverPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Critical server error: %v", err)
		}
	}()

	<-ctx.Done()

	log.Println("Stop signal received. Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Forced shutdown error:", err)
	}

	log.Println("Server stopped gracefully.")
}

// weekAnchorFromEnv reads the week boundary configuration. The default is the
// Sunday 17:00 local-time boundary the tracker has always used.
func weekAnchorFromEnv() domain.Anchor {
	weekday := time.Sunday
	if raw := os.Getenv("ANCHOR_WEEKDAY"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 && n <= 6 {
			weekday = time.Weekday(n)
		}
	}

	hour := 17
	if raw := os.Getenv("ANCHOR_HOUR"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 && n <= 23 {
			hour = n
		}
	}

	return domain.NewAnchor(weekday, hour, time.Local)
}
