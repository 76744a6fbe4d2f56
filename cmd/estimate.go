package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shelfsight/demand-cli/internal/model"
)

var estimateJSON bool

var estimateCmd = &cobra.Command{
	Use:   "estimate <page.json>",
	Short: "Estimate demand allocation for a single keyword page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		in, err := loadPageInput(args[0])
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		snap, err := runPage(ctx, env, in)
		if err != nil {
			return err
		}

		zap.L().Info("estimate complete",
			zap.String("keyword", snap.Keyword),
			zap.String("snapshot_id", snap.ID),
			zap.Int("products", len(snap.Products)),
			zap.Int("units", snap.Totals.Units),
			zap.Float64("revenue", snap.Totals.Revenue),
			zap.String("shape", snap.Totals.Shape),
		)

		if estimateJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}

		printProducts(snap.Products)
		return nil
	},
}

func printProducts(products []model.CanonicalProduct) {
	for _, p := range products {
		rank := "-"
		if p.OrganicRank != nil {
			rank = strconv.Itoa(*p.OrganicRank)
		}
		fmt.Printf("%-4s %-12s %6d units  $%10.2f  %5.1f%%\n",
			rank, p.ASIN, p.EstimatedMonthlyUnits, p.EstimatedMonthlyRevenue, p.RevenueSharePct)
	}
}

func init() {
	estimateCmd.Flags().BoolVar(&estimateJSON, "json", false, "print full snapshot as JSON")
	rootCmd.AddCommand(estimateCmd)
}
