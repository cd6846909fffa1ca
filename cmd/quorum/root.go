package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "quorum",
	Short: "Multi-provider AI debug-fix-retest automation",
	Long: `Quorum runs your failing tests, fans the failure out to multiple LLM
providers in parallel, resolves their proposed fixes by weighted consensus,
applies the winning fix, and retests until green or the iteration budget
runs out.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}
