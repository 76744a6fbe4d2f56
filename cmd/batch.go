package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var batchLimit int

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Estimate demand for a directory of keyword page files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		entries, err := os.ReadDir(args[0])
		if err != nil {
			return eris.Wrapf(err, "batch: read dir %s", args[0])
		}

		var paths []string
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			paths = append(paths, filepath.Join(args[0], e.Name()))
		}
		if len(paths) == 0 {
			zap.L().Info("no page files found", zap.String("dir", args[0]))
			return nil
		}
		if batchLimit > 0 && len(paths) > batchLimit {
			paths = paths[:batchLimit]
		}

		env, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		zap.L().Info("processing batch",
			zap.Int("pages", len(paths)),
			zap.Int("concurrency", cfg.Batch.MaxConcurrentKeywords),
		)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Batch.MaxConcurrentKeywords)

		var succeeded, failed atomic.Int64

		for _, path := range paths {
			g.Go(func() error {
				log := zap.L().With(zap.String("page", path))

				in, err := loadPageInput(path)
				if err != nil {
					failed.Add(1)
					log.Error("page load failed", zap.Error(err))
					return nil // don't abort batch on individual failure
				}

				snap, err := runPage(gctx, env, in)
				if err != nil {
					failed.Add(1)
					log.Error("estimate failed", zap.Error(err))
					return nil
				}

				succeeded.Add(1)
				log.Info("estimate complete",
					zap.String("keyword", snap.Keyword),
					zap.String("snapshot_id", snap.ID),
					zap.Int("units", snap.Totals.Units),
				)
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return eris.Wrap(err, "batch processing")
		}

		zap.L().Info("batch complete",
			zap.Int64("succeeded", succeeded.Load()),
			zap.Int64("failed", failed.Load()),
		)
		return nil
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of pages to process (0 = all)")
	rootCmd.AddCommand(batchCmd)
}
