package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/bryanchriswhite/xwin/internal/config"
	"github.com/bryanchriswhite/xwin/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set at build time with -ldflags.
var Version = "dev"

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "xwin",
		Short: "xwin - inspect the focused and open windows of the desktop",
		Long: `xwin answers two questions about the graphical session: which window is
focused, and which application windows exist. Each window is reported with its
geometry, title, owning process and memory usage.

Features:
  • Query the active window or list open windows via X11 window manager hints
  • Watch focus changes as a stream of JSON records
  • Serve the same data over HTTP and WebSocket
  • Install the GNOME Shell extension needed on some compositors`,
		SilenceUsage: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/xwin/config.yaml)")
	rootCmd.PersistentFlags().Int("port", 0, "server port (default is 8080)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Duration("interval", 0, "focus poll interval (default is 100ms)")
	rootCmd.PersistentFlags().String("display", "", "X display to connect to (default is $DISPLAY)")
	rootCmd.PersistentFlags().Bool("pretty", false, "human readable log output")

	// Bind flags to viper
	viper.BindPFlag("server_port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("poll_interval", rootCmd.PersistentFlags().Lookup("interval"))
	viper.BindPFlag("display", rootCmd.PersistentFlags().Lookup("display"))
	viper.BindPFlag("pretty", rootCmd.PersistentFlags().Lookup("pretty"))
}

func initConfig() {
	viper.SetEnvPrefix("xwin")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// loadConfig reads the config file, applies flag and environment overrides
// and configures logging.
func loadConfig() (*config.Manager, *config.Config, error) {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	err = configMgr.Override(func(c *config.Config) {
		if port := viper.GetInt("server_port"); port > 0 {
			c.ServerPort = port
		}
		if level := viper.GetString("log_level"); level != "" {
			c.LogLevel = level
		}
		if interval := viper.GetDuration("poll_interval"); interval > 0 {
			c.PollInterval = interval
		}
		if display := viper.GetString("display"); display != "" {
			c.Display = display
		}
	})
	if err != nil {
		return nil, nil, fmt.Errorf("invalid override: %w", err)
	}

	cfg := configMgr.Get()
	logger.Init(cfg.LogLevel, viper.GetBool("pretty"))
	logger.Get().Debug().Str("config", configMgr.GetConfigPath()).Str("level", cfg.LogLevel).Msg("Logging initialized")
	return configMgr, cfg, nil
}
