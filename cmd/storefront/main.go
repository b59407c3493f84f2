package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/djangify/storefront/internal/api"
	"github.com/djangify/storefront/internal/auth"
	"github.com/djangify/storefront/internal/cart"
	"github.com/djangify/storefront/internal/config"
	"github.com/djangify/storefront/internal/render"
	"github.com/djangify/storefront/internal/token"
	"github.com/djangify/storefront/pkg/logger"
)

func main() {
	cfg := config.Load()

	log := logger.New(logger.Options{
		Service: "storefront",
		Env:     cfg.AppEnv,
		Level:   cfg.LogLevel,
	})

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		log.Error("redis unreachable", "addr", cfg.RedisAddr, "error", err)
		os.Exit(1)
	}
	pingCancel()

	tokens := token.NewRedisStore(rdb)
	apiClient := api.NewClient(cfg.APIBaseURL, log)

	authed := api.NewAuthClient(apiClient, tokens, func() {
		log.Warn("session expired, re-authentication required")
	}, log)

	cartManager := cart.NewManager(apiClient, tokens, log)
	authStore := auth.NewStore(apiClient, authed, tokens, log)

	// Project state onto the in-memory sink the status endpoint reads.
	sink := render.NewMemorySink()
	binding := render.NewBinding(sink, log)
	cartManager.Subscribe(binding.ApplyCart)
	cartManager.SetErrorHandler(binding.ApplyCartError)
	authStore.Subscribe(binding.ApplyAuth)

	authStore.Hydrate(ctx)
	if snap := cartManager.Load(ctx); snap != nil {
		log.Info("cart loaded", "items", snap.ItemCount, "cart_type", snap.CartType)
	}
	if err := authStore.RefreshUser(ctx); err != nil {
		log.Warn("initial profile refresh failed", "error", err)
	}

	// Reload when another process rotates the cart token.
	watcher := cart.NewWatcher(tokens, cartManager, log)
	go watcher.Run(ctx)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/state", func(w http.ResponseWriter, req *http.Request) {
		session := authStore.Session(req.Context())
		respondJSON(w, http.StatusOK, map[string]any{
			"cart_token":    cartManager.CartToken(),
			"authenticated": session.IsAuthenticated(),
			"fields":        sink.State(),
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.StatusPort,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("status server starting", "port", cfg.StatusPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("status server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", "error", err)
	}
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
