package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"volmath/pkg/config"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Loaded in PersistentPreRunE
	cfg *config.Config

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "volmath",
	Short: "Combine volumes, point sets and meshes with elementwise arithmetic",
	Long: `volmath combines two spatial data sources with an elementwise arithmetic or
logical operator, or projects a single volume along its third axis.

Sources are read from a directory of image slices, a single image, a binary
STL file, or a YAML manifest. Results are written to an output directory
together with a metadata.yaml provenance record.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cmd == configInitCmd {
			// init rewrites the file, so a broken one must not block it
			cfg = config.DefaultConfig()
		} else if cfg, err = config.LoadConfig(configPath); err != nil {
			return err
		}

		// Initialize logger
		zc := zap.NewProductionConfig()
		if verbose || cfg.Logging.Verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zc.Build()
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
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "volmath.yaml", "Configuration file (defaults apply when missing)")

	rootCmd.AddCommand(combineCmd)
	rootCmd.AddCommand(opsCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
