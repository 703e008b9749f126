package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"CDPShield/internal/health"
	"CDPShield/internal/model"
	"CDPShield/internal/portfolio"
)

func newAnalyzeCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Score a portfolio snapshot and print the analysis as JSON",
		Long: "Score a portfolio snapshot read from --file, or the built-in demo portfolio " +
			"when no file is given, and print the analysis result as JSON.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := loadSnapshot(file)
			if err != nil {
				return err
			}
			res, err := health.NewEngine().Analyze(cmd.Context(), snap)
			if err != nil {
				return fmt.Errorf("analyze: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "portfolio snapshot JSON file")
	return cmd
}

func loadSnapshot(file string) (*model.PortfolioSnapshot, error) {
	if file == "" {
		return portfolio.Assemble("demo", portfolio.DemoCDPs(time.Now()),
			portfolio.DemoHoldings().Data, portfolio.DemoMarketData()), nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap model.PortfolioSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", file, err)
	}
	return &snap, nil
}
