// Command listeval serves ABX and MOS listening-test forms and aggregates
// the stored ratings.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "listeval",
		Short:         "Run ABX and MOS listening tests and summarise the results",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newServeCmd(), newReportCmd())
	return root
}
