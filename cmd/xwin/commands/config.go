package commands

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/bryanchriswhite/xwin/internal/config"
	"github.com/bryanchriswhite/xwin/internal/logger"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage xwin configuration",
	Long:  `View and manage xwin configuration settings.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display the effective configuration: the config file with command line
flags and XWIN_* environment variables applied.`,
	Example: `  # Show configuration as YAML (default)
  xwin config show

  # Show configuration as JSON
  xwin config show --format json`,
	RunE: runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set a configuration value",
	Long:  `Set a specific configuration value and save it to the config file.`,
	Example: `  # Set server port
  xwin config set server_port 9090

  # Poll focus every 250ms
  xwin config set poll_interval 250ms`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Long:  `Display the path to the configuration file.`,
	RunE:  runConfigPath,
}

var formatFlag string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)

	configShowCmd.Flags().StringVarP(&formatFlag, "format", "f", "yaml", "output format (yaml or json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	switch formatFlag {
	case "json":
		return printJSON(os.Stdout, cfg)
	case "yaml":
		encoder := yaml.NewEncoder(os.Stdout)
		encoder.SetIndent(2)
		return encoder.Encode(cfg)
	default:
		return fmt.Errorf("unsupported format: %s (use 'yaml' or 'json')", formatFlag)
	}
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	configMgr, _, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Println(configMgr.GetConfigPath())
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cfg := configMgr.Get()
	switch key {
	case "server_port":
		port, convErr := strconv.Atoi(value)
		if convErr != nil {
			return fmt.Errorf("invalid port number: %s", value)
		}
		err = configMgr.SetPort(port)
	case "log_level":
		validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
		if !validLevels[value] {
			return fmt.Errorf("invalid log level: %s (use: trace, debug, info, warn, error)", value)
		}
		err = configMgr.SetLogLevel(value)
	case "poll_interval":
		d, parseErr := time.ParseDuration(value)
		if parseErr != nil {
			return fmt.Errorf("invalid duration: %s", value)
		}
		err = configMgr.SetPollInterval(d)
	case "display":
		cfg.Display = value
		err = configMgr.Update(cfg)
	case "extension.uuid":
		cfg.Extension.UUID = value
		err = configMgr.Update(cfg)
	case "extension.dir":
		cfg.Extension.Dir = value
		err = configMgr.Update(cfg)
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	logger.WithComponent("config").Info().Str("key", key).Str("value", value).Msg("Configuration updated")
	return nil
}
