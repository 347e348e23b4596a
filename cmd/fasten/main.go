// Command fasten resolves fastener parameters, evaluates fastener scripts
// and recomputes saved documents.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chazu/fasten/pkg/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	verbose bool
	cfgPath string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "fasten",
	Short: "Parametric fastener resolution and shape caching",
	Long: `fasten sizes screws, washers, nuts and threaded rods from the holes and
faces they are attached to, snaps their lengths to catalog values and builds
one shared shape per distinct parameter set.

Scripts describe bodies and fasteners in a small Lisp:

  (body "plate" (hole "Edge1" :at (vec3 0 0 5) :diameter 6.4))
  (fastener "ISO4017" :on (ref "plate" "Edge1") :length 20)`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		cfg = c
		logger, err = cfg.Logging.Logger(verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "fasten.yaml", "config file")

	rootCmd.AddCommand(catalogCmd, resolveCmd, evalCmd, recomputeCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
