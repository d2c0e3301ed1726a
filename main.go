package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"quest-gateway/internal/ai"
	"quest-gateway/internal/auth"
	"quest-gateway/internal/common/logging"
	"quest-gateway/internal/config"
	"quest-gateway/internal/handlers"
	"quest-gateway/internal/middleware"
	"quest-gateway/internal/ratelimit"
	"quest-gateway/internal/redis"
	"quest-gateway/internal/server"
	"quest-gateway/internal/sse"
	"quest-gateway/internal/storage"
	"quest-gateway/internal/voice"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logging.Error("invalid configuration", err)
		os.Exit(1)
	}

	logging.InitGlobalLogger()
	defer logging.MustSync()
	logger := logging.GetGlobalLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize storage", err)
		os.Exit(1)
	}
	defer store.Close()

	broadcaster := sse.NewBroadcaster()

	var limiterStore ratelimit.Store = ratelimit.NewMemoryStore()
	if cfg.RedisEnabled {
		db, _ := strconv.Atoi(cfg.RedisDB)
		poolSize, _ := strconv.Atoi(cfg.RedisPoolSize)
		redisClient, err := redis.NewClient(&redis.Config{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       db,
			PoolSize: poolSize,
		})
		if err != nil {
			logger.Error("failed to connect to redis", err)
			os.Exit(1)
		}
		defer redisClient.Close()

		limiterStore = ratelimit.NewRedisStore(redisClient)

		relay := sse.NewRelay(redisClient, broadcaster)
		go relay.Run(ctx)
		logger.Info("redis enabled", logging.String("address", cfg.RedisAddress))
	}

	limiter := ratelimit.NewLimiter(limiterStore, cfg.RateLimitEnabled)

	// Expired window entries only matter for memory growth; sweeping once a
	// minute keeps the map bounded.
	sweeper := cron.New()
	if _, err := sweeper.AddFunc("@every 1m", func() { limiter.Sweep(context.Background()) }); err != nil {
		logger.Error("failed to schedule limiter sweep", err)
		os.Exit(1)
	}
	sweeper.Start()
	defer sweeper.Stop()

	authn := auth.New(cfg.JWTSecret)
	voiceClient := voice.NewClient(cfg.HumeAPIKey, cfg.HumeSecretKey, cfg.HumeConfigID)
	chatClient := ai.NewClient(cfg.AnthropicAPIKey, cfg.ChatModel)

	h := handlers.New(store, broadcaster, limiter, authn, voiceClient, chatClient, cfg)

	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/confirmations/stream", h.StreamConfirmations).Methods("GET")
	api.HandleFunc("/confirmations", h.ListConfirmations).Methods("GET")
	api.HandleFunc("/confirmations", h.CreateConfirmation).Methods("POST")
	api.HandleFunc("/confirmations/{id}/resolve", h.ResolveConfirmation).Methods("POST")
	api.Handle("/user/facts",
		limiter.HTTPMiddleware(ratelimit.UserKey, ratelimit.Lenient)(http.HandlerFunc(h.UserFacts))).Methods("GET")
	api.HandleFunc("/voice/token", h.VoiceToken).Methods("POST")
	api.HandleFunc("/chat/completions", h.ChatCompletions).Methods("POST")

	router.HandleFunc("/health", h.Health).Methods("GET")

	srv := server.New(router, cfg.Port)
	errCh := srv.Start()
	logger.Info("server started", logging.String("port", cfg.Port))

	select {
	case err := <-errCh:
		logger.Error("server failed", err)
		os.Exit(1)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", err)
	}
}
