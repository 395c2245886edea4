// Command comet browses Gemini capsules from the terminal, serves local
// capsules and exposes pages over HTTP.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/knowfox/comet/config"
)

type rootFlags struct {
	configPath string
	dataDir    string
	tlsVersion string
	verbose    bool
}

func main() {
	var flags rootFlags

	root := &cobra.Command{
		Use:           "comet",
		Short:         "Gemini client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", defaultConfigPath(), "preferences file (JSON)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "history and identity directory, overrides data_dir (empty keeps data in memory)")
	root.PersistentFlags().StringVar(&flags.tlsVersion, "tls", "", "TLS version: TLS, TLSv1.2 or TLSv1.3, overrides tls_version")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newGetCmd(&flags),
		newServeCmd(&flags),
		newGatewayCmd(&flags),
		newHistoryCmd(&flags),
		newIdentityCmd(&flags),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "comet", "config.json")
}

// preferences loads the preferences file and applies flag overrides.
func (f *rootFlags) preferences(cmd *cobra.Command) (config.Preferences, error) {
	prefs, err := config.Load(f.configPath)
	if err != nil {
		return config.Preferences{}, err
	}
	if cmd.Flags().Changed("data-dir") {
		prefs.DataDir = f.dataDir
	}
	if cmd.Flags().Changed("tls") {
		prefs.TLSVersion = f.tlsVersion
	}
	return prefs, prefs.Validate()
}

func (f *rootFlags) logger() *slog.Logger {
	level := slog.LevelWarn
	if f.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
