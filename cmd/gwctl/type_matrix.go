package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/typematrix"
)

func newTypeMatrixCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "type-matrix <from-type> <to-type>",
		Short: "Classify a single PostgreSQL type transition",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			result := typematrix.Check(args[0], args[1])

			row := [][]string{{"outcome", "reason"}, {string(result.Outcome), result.Reason}}
			table, err := pterm.DefaultTable.WithHasHeader().WithData(row).Srender()
			if err != nil {
				return err
			}
			pterm.Println(table)
			return nil
		},
	}
}
