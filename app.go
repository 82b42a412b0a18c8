package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"delivery-zoner/internal/config"
	"delivery-zoner/internal/server"
)

// App struct holds the Wails application state
type App struct {
	ctx    context.Context
	server *server.Server
}

// NewApp loads configuration and builds the server the webview talks to.
// Requests are served in-process, so no port is opened.
func NewApp() *App {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	srv, err := server.New(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	return &App{server: srv}
}

func (a *App) handler() http.Handler {
	return a.server.Handler()
}

// startup is called when the app starts
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	zap.L().Info("app: window ready", zap.String("platform", runtime.Environment(ctx).Platform))
}

// shutdown is called when the app closes
func (a *App) shutdown(ctx context.Context) {
	if a.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := a.server.Shutdown(shutdownCtx); err != nil {
			zap.L().Error("app: shutdown", zap.Error(err))
		}
	}
	_ = zap.L().Sync()
}
