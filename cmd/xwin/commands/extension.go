package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bryanchriswhite/xwin/internal/extension"
	"github.com/spf13/cobra"
)

const extensionTimeout = 10 * time.Second

var extensionCmd = &cobra.Command{
	Use:   "extension",
	Short: "Manage the GNOME Shell extension",
	Long: `Install, remove or inspect the GNOME Shell extension that publishes window
state on the session bus. It is only needed on compositors that do not
advertise X11 window manager hints.`,
}

var extensionInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install and enable the extension",
	Args:  cobra.NoArgs,
	RunE:  runExtensionInstall,
}

var extensionUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Disable and remove the extension",
	Args:  cobra.NoArgs,
	RunE:  runExtensionUninstall,
}

var extensionStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the extension is installed and enabled",
	Args:  cobra.NoArgs,
	RunE:  runExtensionStatus,
}

func init() {
	rootCmd.AddCommand(extensionCmd)
	extensionCmd.AddCommand(extensionInstallCmd)
	extensionCmd.AddCommand(extensionUninstallCmd)
	extensionCmd.AddCommand(extensionStatusCmd)
}

func newExtensionManager() (*extension.Manager, error) {
	_, cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return extension.NewManager(cfg.Extension), nil
}

func runExtensionInstall(cmd *cobra.Command, args []string) error {
	mgr, err := newExtensionManager()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), extensionTimeout)
	defer cancel()

	if err := mgr.Install(ctx); err != nil {
		return err
	}
	fmt.Printf("Extension installed to %s\n", mgr.Path())
	return nil
}

func runExtensionUninstall(cmd *cobra.Command, args []string) error {
	mgr, err := newExtensionManager()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), extensionTimeout)
	defer cancel()

	return mgr.Uninstall(ctx)
}

func runExtensionStatus(cmd *cobra.Command, args []string) error {
	mgr, err := newExtensionManager()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), extensionTimeout)
	defer cancel()

	st, err := mgr.Status(ctx)
	if err != nil && !errors.Is(err, extension.ErrUnavailable) {
		return err
	}
	if err := printJSON(os.Stdout, st); err != nil {
		return err
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "GNOME Shell is not reachable; only the on-disk state is shown")
	}
	return nil
}
