package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hacknation/odnalezione-zguby/service-m-matcher/internal/config"
	"github.com/hacknation/odnalezione-zguby/service-m-matcher/internal/handlers"
	"github.com/hacknation/odnalezione-zguby/service-m-matcher/internal/matching"
	"github.com/hacknation/odnalezione-zguby/service-m-matcher/internal/services"
	"github.com/hacknation/odnalezione-zguby/service-m-matcher/internal/storage"
)

func main() {
	// Setup logger
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	cfg := config.Load()
	zerolog.SetGlobalLevel(parseLevel(cfg.LogLevel))

	log.Info().
		Str("host", cfg.Host).
		Str("port", cfg.Port).
		Int("workers", cfg.MatchWorkers).
		Msg("Starting Service M: Matcher")

	log.Info().Msg("Initializing Postgres storage...")
	db, err := storage.NewPostgresStorage(
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBName,
		cfg.DBSSLMode,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Postgres storage")
	}
	defer db.Close()
	reports := db.Reports()
	matches := db.Matches()
	log.Info().Msg("Postgres storage initialized")

	// Vector indexing is optional; a nil interface keeps it off
	var index matching.VectorIndex
	var qdrantIndex *storage.QdrantIndex
	if cfg.QdrantAddress != "" {
		log.Info().Str("address", cfg.QdrantAddress).Msg("Initializing Qdrant index...")
		qdrantIndex, err = storage.NewQdrantIndex(cfg.QdrantAddress, cfg.QdrantCollection, cfg.EmbeddingDimension)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Qdrant index")
		}
		defer qdrantIndex.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = qdrantIndex.EnsureCollection(ctx)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("Qdrant collection unavailable - vector indexing disabled")
		} else {
			index = qdrantIndex
			log.Info().Msg("Qdrant index initialized")
		}
	} else {
		log.Warn().Msg("QDRANT_ADDRESS not set - vector indexing disabled")
	}

	log.Info().Msg("Initializing embedding service...")
	embeddingService := services.NewEmbeddingService(cfg.EmbeddingServiceURL, cfg.EmbeddingTimeout)

	log.Info().Msg("Initializing RabbitMQ publisher...")
	publisher, err := services.NewRabbitMQPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize RabbitMQ publisher")
	}
	defer publisher.Close()
	log.Info().Msg("RabbitMQ publisher initialized successfully")

	matcher := matching.NewMatcher(reports, matches, embeddingService, index, publisher, matching.Config{
		MinScore:       cfg.MinMatchScore,
		MaxMatches:     cfg.MaxMatchesPerReport,
		CandidateLimit: cfg.CandidateLimit,
	})

	log.Info().Msg("Initializing RabbitMQ consumer...")
	consumer, err := services.NewRabbitMQConsumer(
		cfg.RabbitMQURL,
		cfg.RabbitMQExchange,
		cfg.RabbitMQQueue,
		cfg.MatchWorkers,
		matcher,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize RabbitMQ consumer")
	}

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	if err := consumer.Start(consumerCtx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start RabbitMQ consumer")
	}
	log.Info().Msg("RabbitMQ consumer initialized and started")

	checks := map[string]handlers.HealthCheck{
		"postgres":  db.HealthCheck,
		"embedding": embeddingService.HealthCheck,
		"rabbitmq": func(context.Context) error {
			if err := publisher.HealthCheck(); err != nil {
				return err
			}
			return consumer.HealthCheck()
		},
	}
	if index != nil {
		checks["qdrant"] = qdrantIndex.HealthCheck
	}
	handler := handlers.NewHandler(matcher, reports, matches, checks)

	// Setup router
	router := setupRouter(handler)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("address", srv.Addr).
			Msg("Server starting...")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	log.Info().Msg("Service M: Matcher is running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop taking deliveries, then let in-flight searches finish before the stores close
	stopConsumer()
	consumer.Close()
	matcher.Wait()

	log.Info().Msg("Server exited gracefully")
}

func parseLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return parsed
}

// setupRouter configures all routes and middleware
func setupRouter(h *handlers.Handler) *mux.Router {
	r := mux.NewRouter()

	// Middleware
	r.Use(loggingMiddleware)
	r.Use(recoveryMiddleware)

	h.Register(r)
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	log.Info().Msg("Routes configured successfully")
	return r
}

// loggingMiddleware logs all HTTP requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap ResponseWriter to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		event := log.Info()
		if r.URL.Path == "/metrics" || r.URL.Path == "/health" {
			event = log.Debug()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.statusCode).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Str("remote_addr", r.RemoteAddr).
			Msg("HTTP request")
	})
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().
					Interface("error", err).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Msg("Panic recovered")

				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
