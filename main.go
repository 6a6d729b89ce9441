package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"yuno/config"
	"yuno/controllers"
	"yuno/routes"
	"yuno/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg := config.Load()
	gin.SetMode(cfg.GinMode)
	setupLogger(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := services.OpenStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open conversation store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	metrics := services.NewMetrics(prometheus.DefaultRegisterer)
	gateway := services.NewGatewayService(cfg, metrics)
	if cfg.GatewayAPIKey == "" {
		slog.Warn("AI_GATEWAY_API_KEY is not set, /chat will answer 500")
	}

	router := routes.SetupRouter(routes.Dependencies{
		Chat:          controllers.NewChatController(gateway, metrics),
		Conversations: controllers.NewConversationController(store),
		ClientKey:     cfg.ClientKey,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port, "store", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
	}
}

func setupLogger(mode string) {
	var handler slog.Handler
	if mode == gin.ReleaseMode {
		handler = slog.NewJSONHandler(os.Stdout, nil)
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	slog.SetDefault(slog.New(handler))
}
