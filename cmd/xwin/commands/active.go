package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/bryanchriswhite/xwin/internal/window"
	"github.com/spf13/cobra"
)

var activeCmd = &cobra.Command{
	Use:   "active",
	Short: "Show the focused window",
	Long: `Show the window that currently holds input focus, as advertised by the
window manager. When nothing is focused, or the window manager does not
publish the active window, the record has id 0.`,
	Example: `  # Show the focused window
  xwin active

  # Show it as JSON
  xwin active --format json`,
	RunE: runActive,
}

var activeFormat string

func init() {
	rootCmd.AddCommand(activeCmd)

	activeCmd.Flags().StringVarP(&activeFormat, "format", "f", "text", "output format (text or json)")
}

func runActive(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	current := window.NewPlatformAPI(window.Options{Display: cfg.Display}).GetActiveWindow()

	switch activeFormat {
	case "json":
		return printJSON(os.Stdout, current)
	case "text":
		printWindow(os.Stdout, current)
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (use 'text' or 'json')", activeFormat)
	}
}

func printWindow(w io.Writer, current window.WindowInfo) {
	if !current.Valid() {
		fmt.Fprintln(w, "No window is currently focused")
		return
	}

	fmt.Fprintf(w, "ID:       0x%08x\n", current.ID)
	fmt.Fprintf(w, "Title:    %s\n", current.Title)
	fmt.Fprintf(w, "Name:     %s\n", current.Info.Name)
	fmt.Fprintf(w, "PID:      %d\n", current.Info.ProcessID)
	fmt.Fprintf(w, "Path:     %s\n", current.Info.Path)
	fmt.Fprintf(w, "Geometry: %s\n", formatGeometry(current.Position))
	fmt.Fprintf(w, "Memory:   %d pages\n", current.Usage.Memory)
}
