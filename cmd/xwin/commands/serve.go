package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bryanchriswhite/xwin/internal/api"
	"github.com/bryanchriswhite/xwin/internal/logger"
	"github.com/bryanchriswhite/xwin/internal/subscription"
	"github.com/bryanchriswhite/xwin/internal/window"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the xwin HTTP server",
	Long: `Start an HTTP server exposing the focused window, the open windows and a
WebSocket stream of focus changes.`,
	Example: `  # Start server on default port (8080)
  xwin serve

  # Start server on custom port
  xwin serve --port 9090

  # Start with debug logging
  xwin serve --log-level debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	configMgr, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.WithComponent("serve")

	log.Info().Str("path", configMgr.GetConfigPath()).Str("log_level", cfg.LogLevel).Msg("Configuration loaded")

	windows := window.NewPlatformAPI(window.Options{Display: cfg.Display})
	engine := subscription.NewEngine(windows, cfg.PollInterval)
	server := api.NewServer(windows, engine, Version)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start(cfg.ServerPort)
	}()

	log.Info().
		Str("backend", windows.Backend().Name()).
		Str("api", fmt.Sprintf("http://localhost:%d/api", cfg.ServerPort)).
		Msg("xwin is running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		engine.Close()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-sigChan:
	}

	log.Info().Msg("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	engine.Close()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	if err := engine.Wait(ctx); err != nil {
		log.Warn().Err(err).Msg("Pollers still running at exit")
	}
	return nil
}
