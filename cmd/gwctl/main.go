// Command gwctl is the operator-facing companion to the gateway server:
// it inspects schema bundles on disk and diagnoses a running cluster
// without going through the HTTP surface.
package main

import (
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gwctl",
	Short: "Operator CLI for the schema-deployment gateway",
}

func main() {
	rootCmd.AddCommand(newAnalyzeDepsCommand())
	rootCmd.AddCommand(newTypeMatrixCommand())
	rootCmd.AddCommand(newVerifyChecksumsCommand())
	rootCmd.AddCommand(newPingCommand())
	rootCmd.AddCommand(newListDatabasesCommand())

	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1) //revive:disable-line:deep-exit
	}
}
