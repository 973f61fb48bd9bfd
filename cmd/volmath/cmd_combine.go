package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"volmath/pkg/combine"
	"volmath/pkg/models"
	"volmath/pkg/sourceio"
)

var (
	sourceAPath string
	sourceBPath string
	operation   string
	scalar      float64
	outputDir   string
)

var combineCmd = &cobra.Command{
	Use:   "combine",
	Short: "Apply an operation to source A and an optional source B",
	Long: `Apply an operation to source A, either against the scalar alone or against
scalar * B when --b is given. The z-project operations collapse the third axis
of a volume and ignore --scalar and --b.

Examples:
  volmath combine --a cells/ --op "z-project max"
  volmath combine --a nuclei/ --b membrane/ --op subtract --scalar 0.5
  volmath combine --a surface.stl --op multiply --scalar 2`,
	RunE: runCombine,
}

func init() {
	combineCmd.Flags().StringVar(&sourceAPath, "a", "", "Path of source A (required)")
	combineCmd.Flags().StringVar(&sourceBPath, "b", "", "Path of source B")
	combineCmd.Flags().StringVarP(&operation, "op", "o", "add", "Operation name (see 'volmath ops')")
	combineCmd.Flags().Float64VarP(&scalar, "scalar", "s", 1.0, "Scalar applied to B, or to A when B is absent")
	combineCmd.Flags().StringVar(&outputDir, "out", "", "Output directory (default from config)")
	_ = combineCmd.MarkFlagRequired("a")
}

// runCombine loads the sources, runs the engine and saves the result
func runCombine(cmd *cobra.Command, args []string) error {
	op, err := combine.ParseOperation(operation)
	if err != nil {
		return err
	}

	s := scalar
	if !cmd.Flags().Changed("scalar") {
		s = cfg.Engine.DefaultScalar
	}
	out := outputDir
	if out == "" {
		out = cfg.Output.Dir
	}

	a, b, err := loadSources(sourceAPath, sourceBPath)
	if err != nil {
		return err
	}

	if b != nil && !op.UsesPartner() {
		logger.Warn("ignoring source B for projection", zap.String("operation", op.String()))
	}

	res, err := combine.NewEngine(logger).Combine(a, op, s, b)
	if err != nil {
		return err
	}

	written, err := sourceio.NewWriter(cfg, logger).Save(out, res)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s result %v written to %s\n", res.Kind, res.Data.Shape(), out)
	for _, p := range written {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", p)
	}
	return nil
}

// loadSources reads A and, when pathB is set, B concurrently
func loadSources(pathA, pathB string) (*models.Source, *models.Source, error) {
	loader := sourceio.NewLoader(cfg, logger)

	var a, b *models.Source
	var g errgroup.Group
	g.Go(func() error {
		var err error
		a, err = loader.Load(pathA)
		if err != nil {
			return fmt.Errorf("source A: %w", err)
		}
		return nil
	})
	if pathB != "" {
		g.Go(func() error {
			var err error
			b, err = loader.Load(pathB)
			if err != nil {
				return fmt.Errorf("source B: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return a, b, nil
}
