package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tokenforge/deploy-gateway/internal/chain"
	"github.com/tokenforge/deploy-gateway/internal/config"
	"github.com/tokenforge/deploy-gateway/internal/events"
	"github.com/tokenforge/deploy-gateway/internal/executor"
	"github.com/tokenforge/deploy-gateway/internal/gateway"
	"github.com/tokenforge/deploy-gateway/internal/httpauth"
	"github.com/tokenforge/deploy-gateway/internal/ledger"
	"github.com/tokenforge/deploy-gateway/internal/server"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync() //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Redis ─────────────────────────────────────────────────────────────────
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("redis ping failed", zap.Error(err))
	}

	// ── Chain client (operator key + ABI bindings) ────────────────────────────
	onchain, err := chain.NewClient(cfg)
	if err != nil {
		log.Fatal("chain client init failed", zap.Error(err))
	}

	// ── Gateway controller ────────────────────────────────────────────────────
	exec := executor.New(onchain, onchain, log)
	notifier := events.NewRedisNotifier(rdb, log)
	gw := gateway.New(onchain.GatewayAddress(), ledger.NewRedis(rdb), exec, notifier, log)

	// ── Webhook relay (optional) ──────────────────────────────────────────────
	if cfg.Webhook.URL != "" {
		go events.Relay(ctx, rdb, events.NewSink(cfg.Webhook.URL, cfg.Webhook.Token), log)
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	r := gin.New()
	r.Use(gin.Recovery())
	server.NewHandler(gw, log).Register(r, httpauth.Middleware(rdb))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Info("HTTP server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("gateway", onchain.GatewayAddress().Hex()),
			zap.Int64("chain_id", onchain.ChainID().Int64()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	log.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	log.Info("shutdown complete")
}
