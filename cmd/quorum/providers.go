package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kamilpajak/quorum/internal/provider"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List configured providers and their voting weights",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := provider.LoadConfig(configPath)
		if err != nil {
			return err
		}
		registry, err := provider.NewRegistry(cfg.Providers)
		if err != nil {
			return err
		}

		bold := color.New(color.Bold)
		dim := color.New(color.FgHiBlack)
		for _, p := range registry.All() {
			_, _ = bold.Printf("%-12s", p.ID)
			fmt.Printf(" weight=%.2f  model=%s  timeout=%s", p.Weight, p.Model, p.Timeout)
			if p.Credential() == "" {
				red := color.New(color.FgRed)
				_, _ = red.Printf("  (missing %s)", p.CredentialEnv)
			}
			fmt.Println()
		}
		_, _ = dim.Fprintf(os.Stdout, "thresholds: similarity=%.2f min_agreement=%d min_confidence=%.2f\n",
			cfg.Thresholds.Similarity, cfg.Thresholds.MinAgreement, cfg.Thresholds.MinConfidence)
		return nil
	},
}

func init() {
	providersCmd.Flags().StringVarP(&configPath, "config", "c", "", "Provider config file (YAML)")
}
