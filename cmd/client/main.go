package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pscheid92/votepulse/internal/platform/config"
	"github.com/pscheid92/votepulse/internal/platform/logging"
	"github.com/pscheid92/votepulse/internal/platform/version"
	"github.com/spf13/cobra"
)

const programName = "votepulse"

var globalFlags = struct {
	server  string
	storage string
	role    string
	offline bool
	debug   bool
	timeout time.Duration
}{}

// config loaded in PersistentPreRunE, shared by every subcommand
var cfg *config.ClientConfig

func main() {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Submit and follow live vote tallies",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&globalFlags.server, "server", "", "relay WebSocket URL (overrides VOTEPULSE_SERVER_URL)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.storage, "storage", "", "local state file (overrides VOTEPULSE_STORAGE_PATH)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.role, "role", "", "submitter role recorded on new votes (overrides VOTEPULSE_ROLE)")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.offline, "offline", false, "work on the local state only")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&globalFlags.timeout, "timeout", 5*time.Second, "how long to wait for the relay")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadClient()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if globalFlags.server != "" {
			loaded.ServerURL = globalFlags.server
		}
		if globalFlags.storage != "" {
			loaded.StoragePath = globalFlags.storage
		}
		if globalFlags.role != "" {
			loaded.Role = globalFlags.role
		}
		if globalFlags.debug {
			loaded.LogLevel = "debug"
		}
		cfg = loaded

		// stdout is for command output
		logging.Logger = logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
		slog.SetDefault(logging.Logger)
		return nil
	}

	rootCmd.AddCommand(addCommand())
	rootCmd.AddCommand(dateCommand())
	rootCmd.AddCommand(currentDateCommand())
	rootCmd.AddCommand(resetCommand())
	rootCmd.AddCommand(statsCommand())
	rootCmd.AddCommand(placeCommand())
	rootCmd.AddCommand(logCommand())
	rootCmd.AddCommand(statusCommand())
	rootCmd.AddCommand(watchCommand())
	rootCmd.AddCommand(versionCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		// No config needed to print the version.
		PersistentPreRun: func(cmd *cobra.Command, args []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
		},
	}
}
