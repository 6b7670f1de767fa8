package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq" // PostgreSQL driver

	linkstash "github.com/zombar/linkstash"
	"github.com/zombar/linkstash/api"
	"github.com/zombar/linkstash/auth"
	"github.com/zombar/linkstash/db"
	"github.com/zombar/linkstash/gemini"
)

// loadDotenv overlays the nearest .env file onto the environment.
func loadDotenv() {
	for _, p := range []string{".env", filepath.Join("..", ".env"), filepath.Join("..", "..", ".env")} {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Overload(p)
			slog.Info("loaded env file", "path", p)
			return
		}
	}
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	// Structured logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("linkstash service initializing", "version", "1.0.0")

	loadDotenv()

	defaultPort := getEnv("PORT", "8080")
	defaultGeminiURL := getEnv("GEMINI_URL", gemini.DefaultBaseURL)
	defaultGeminiModel := getEnv("GEMINI_MODEL", gemini.DefaultModel)
	defaultFetchTimeout := getEnv("FETCH_TIMEOUT_SECONDS", "10")

	fetchTimeoutSecs, err := strconv.Atoi(defaultFetchTimeout)
	if err != nil || fetchTimeoutSecs <= 0 {
		logger.Warn("invalid FETCH_TIMEOUT_SECONDS value, using default",
			"provided", defaultFetchTimeout,
			"default", 10,
		)
		fetchTimeoutSecs = 10
	}

	// Command-line flags (override environment variables)
	port := flag.String("port", defaultPort, "Server port")
	geminiURL := flag.String("gemini-url", defaultGeminiURL, "Generative Language API base URL")
	geminiModel := flag.String("gemini-model", defaultGeminiModel, "Model to use for tags and summaries")
	flag.Parse()

	geminiKey := os.Getenv("GEMINI_API_KEY")
	if geminiKey == "" {
		logger.Warn("GEMINI_API_KEY is not set, enrichment will degrade on every save")
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Error("DATABASE_URL environment variable is required")
		os.Exit(1)
	}

	database, err := db.New(db.Config{DSN: dsn})
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	authService, err := auth.NewService(auth.Config{
		AccessSecret:  os.Getenv("JWT_ACCESS_SECRET"),
		RefreshSecret: os.Getenv("JWT_REFRESH_SECRET"),
		AccessTTL:     auth.DefaultConfig().AccessTTL,
		RefreshTTL:    auth.DefaultConfig().RefreshTTL,
	})
	if err != nil {
		logger.Error("failed to initialize auth", "error", err)
		os.Exit(1)
	}

	extractor := linkstash.NewExtractor(linkstash.ExtractorConfig{
		FetchTimeout: time.Duration(fetchTimeoutSecs) * time.Second,
	})
	enricher := linkstash.NewEnricher(gemini.NewClient(gemini.Config{
		BaseURL: *geminiURL,
		Model:   *geminiModel,
		APIKey:  geminiKey,
	}))

	var corsOrigins []string
	for _, o := range strings.Split(getEnv("CORS_ORIGIN", "http://localhost:5173"), ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			corsOrigins = append(corsOrigins, o)
		}
	}

	server, err := api.NewServer(api.Config{
		Addr:        ":" + *port,
		CORSOrigins: corsOrigins,
		Store:       database,
		Extractor:   extractor,
		Enricher:    enricher,
		Auth:        authService,
	})
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	go func() {
		logger.Info("linkstash service starting",
			"port", *port,
			"gemini_url", *geminiURL,
			"gemini_model", *geminiModel,
			"fetch_timeout_seconds", fetchTimeoutSecs,
		)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down gracefully")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := database.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("server stopped")
}
