package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"volmath/pkg/combine"
	"volmath/pkg/models"
)

var opsKind string

var opsCmd = &cobra.Command{
	Use:   "ops",
	Short: "List the operations available for a source kind",
	RunE:  runOps,
}

func init() {
	opsCmd.Flags().StringVarP(&opsKind, "kind", "k", "volumetric", "Kind of source A (volumetric, points, mesh)")
}

func runOps(cmd *cobra.Command, args []string) error {
	kind, err := models.ParseKind(opsKind)
	if err != nil {
		return err
	}
	for _, op := range combine.LegalOperations(kind) {
		if op.UsesPartner() {
			fmt.Fprintln(cmd.OutOrStdout(), op)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s (single source)\n", op)
		}
	}
	return nil
}
