// ABOUTME: Cobra command tree for the clawdesk binary.
// ABOUTME: Root command holds the shared --config flag.

package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

type rootFlags struct {
	ConfigPath string
}

var rf rootFlags

// Execute runs the clawdesk CLI.
func Execute() error {
	rootCmd := &cobra.Command{
		Use:           "clawdesk",
		Short:         "Multi-tenant control plane for OpenClaw agents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&rf.ConfigPath, "config", defaultConfigPath(), "path to the config file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(healthCmd())

	return rootCmd.Execute()
}

// defaultConfigPath resolves the config location.
// Priority: CLAWDESK_CONFIG env var > XDG_CONFIG_HOME/clawdesk/config.yaml >
// ~/.config/clawdesk/config.yaml
func defaultConfigPath() string {
	if envPath := os.Getenv("CLAWDESK_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "clawdesk", "config.yaml")
}
