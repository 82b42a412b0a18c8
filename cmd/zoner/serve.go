package main

import (
	"context"
	"fmt"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"delivery-zoner/internal/server"
)

var (
	serveAddr        string
	serveOpenBrowser bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and map UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}

		srv, err := server.New(ctx, cfg)
		if err != nil {
			return eris.Wrap(err, "create server")
		}

		actualAddr, err := srv.Start()
		if err != nil {
			return eris.Wrap(err, "start server")
		}

		if serveOpenBrowser || cfg.Server.OpenBrowser {
			// Open browser after a short delay to ensure server is ready
			go func() {
				time.Sleep(500 * time.Millisecond)
				url := fmt.Sprintf("http://%s", actualAddr)
				if err := openBrowser(url); err != nil {
					zap.L().Warn("could not open browser", zap.Error(err))
				} else {
					zap.L().Info("opened browser", zap.String("url", url))
				}
			}()
		}

		<-ctx.Done()
		zap.L().Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return eris.Wrap(err, "graceful shutdown")
		}

		zap.L().Info("server stopped")
		return nil
	},
}

func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default: // linux, freebsd, etc.
		cmd = exec.Command("xdg-open", url)
	}

	return cmd.Start()
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().BoolVar(&serveOpenBrowser, "open", false, "open the map UI in a browser")
	rootCmd.AddCommand(serveCmd)
}
