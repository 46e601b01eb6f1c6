// Command newton is the CLI for gonewton: an HTTP tool server, a terminal UI,
// and one-shot commands for stepping, evaluating and deriving expressions.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/njchilds90/gonewton/internal/config"
	"github.com/njchilds90/gonewton/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "newton",
	Short: "newton - interactive Newton's-method root finding",
	Long: `newton steps Newton's method one iteration at a time over a function
and derivative you type in, keeping the full trajectory so it can be
plotted and inspected.

Run "newton tui" for the interactive terminal, "newton serve" for the
HTTP tool server, or "newton run" to iterate to convergence in one go.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		logger, err = logging.New(cfg.Logging, verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "newton.yaml", "Path to the YAML config file")

	rootCmd.AddCommand(serveCmd, tuiCmd, runCmd, evalCmd, deriveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
