package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bryanchriswhite/xwin/internal/logger"
	"github.com/bryanchriswhite/xwin/internal/subscription"
	"github.com/bryanchriswhite/xwin/internal/window"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print focus changes as they happen",
	Long: `Poll the focused window and print one JSON record per line every time
focus moves to another window, the focused window's title changes, or focus
is lost. Runs until interrupted.`,
	Example: `  # Watch focus changes
  xwin watch

  # Poll every 250ms
  xwin watch --interval 250ms`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	api := window.NewPlatformAPI(window.Options{Display: cfg.Display})
	engine := subscription.NewEngine(api, cfg.PollInterval)
	defer engine.Close()

	encoder := json.NewEncoder(os.Stdout)
	id, err := engine.Subscribe(func(info window.WindowInfo) {
		if err := encoder.Encode(info); err != nil {
			logger.WithComponent("watch").Warn().Err(err).Msg("Failed to write record")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	logger.WithComponent("watch").Info().
		Uint32("subscription", id).
		Str("backend", api.Backend().Name()).
		Dur("interval", engine.Interval()).
		Msg("Watching focus changes")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	return nil
}
