package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shelfsight/demand-cli/internal/model"
	"github.com/shelfsight/demand-cli/internal/profile"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Manage keyword calibration profiles",
}

var profilesImportCmd = &cobra.Command{
	Use:   "import <profiles.json>",
	Short: "Import calibration profiles from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "profiles: read %s", args[0])
		}
		var profiles []model.CalibrationProfile
		if err := json.Unmarshal(data, &profiles); err != nil {
			return eris.Wrapf(err, "profiles: parse %s", args[0])
		}

		store, err := openProfileStore(ctx, cfg.Profiles)
		if err != nil {
			return err
		}
		defer store.Close()

		imported := 0
		for _, p := range profiles {
			if p.Keyword == "" {
				zap.L().Warn("skipping profile with empty keyword")
				continue
			}
			p.Keyword = profile.NormalizeKeyword(p.Keyword)
			if err := store.Put(ctx, p); err != nil {
				return err
			}
			imported++
		}

		zap.L().Info("profiles imported",
			zap.Int("imported", imported),
			zap.Int("skipped", len(profiles)-imported),
		)
		return nil
	},
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored calibration profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, err := openProfileStore(ctx, cfg.Profiles)
		if err != nil {
			return err
		}
		defer store.Close()

		profiles, err := store.List(ctx)
		if err != nil {
			return err
		}

		for _, p := range profiles {
			fmt.Printf("%-30s units=%.2f revenue=%.2f confidence=%s category=%s\n",
				p.Keyword, p.UnitsMultiplier, p.RevenueMultiplier, p.Confidence, p.Category)
		}
		zap.L().Info("profiles listed", zap.Int("count", len(profiles)))
		return nil
	},
}

func init() {
	profilesCmd.AddCommand(profilesImportCmd)
	profilesCmd.AddCommand(profilesListCmd)
	rootCmd.AddCommand(profilesCmd)
}
