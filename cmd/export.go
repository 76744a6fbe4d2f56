package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shelfsight/demand-cli/internal/snapshot"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <snapshot-id>",
	Short: "Export a stored snapshot as an xlsx workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		snaps, err := snapshot.NewSQLite(ctx, cfg.Snapshots.Path)
		if err != nil {
			return err
		}
		defer snaps.Close()

		snap, err := snaps.Get(ctx, args[0])
		if err != nil {
			return err
		}

		out := exportOut
		if out == "" {
			out = snap.Keyword + ".xlsx"
		}

		if err := snapshot.ExportXLSX(snap, out); err != nil {
			return err
		}

		zap.L().Info("snapshot exported",
			zap.String("snapshot_id", snap.ID),
			zap.String("keyword", snap.Keyword),
			zap.String("file", out),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default <keyword>.xlsx)")
	rootCmd.AddCommand(exportCmd)
}
