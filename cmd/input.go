package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"

	"github.com/shelfsight/demand-cli/internal/config"
	"github.com/shelfsight/demand-cli/internal/engine"
	"github.com/shelfsight/demand-cli/internal/estimate"
	"github.com/shelfsight/demand-cli/internal/history"
	"github.com/shelfsight/demand-cli/internal/model"
	"github.com/shelfsight/demand-cli/internal/profile"
	"github.com/shelfsight/demand-cli/internal/snapshot"
)

// pageInput is the on-disk format the search-provider layer hands us: one
// keyword's raw page of listings plus optional search-volume bounds.
type pageInput struct {
	Keyword      string                    `json:"keyword"`
	Category     string                    `json:"category,omitempty"`
	SearchVolume *model.SearchVolumeBounds `json:"search_volume,omitempty"`
	Listings     []model.Listing           `json:"listings"`
}

func loadPageInput(path string) (*pageInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "input: read %s", path)
	}
	var in pageInput
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, eris.Wrapf(err, "input: parse %s", path)
	}
	if in.Keyword == "" {
		return nil, eris.Errorf("input: %s has no keyword", path)
	}
	return &in, nil
}

// env bundles the stores and engine a command needs, built from config.
type env struct {
	Engine    *engine.Engine
	Profiles  profile.Store
	Snapshots *snapshot.SQLiteStore
}

func initEnv(ctx context.Context, cfg *config.Config) (*env, error) {
	policy := estimate.DefaultPolicy()
	if cfg.Engine.PolicyPath != "" {
		p, err := estimate.LoadPolicy(cfg.Engine.PolicyPath)
		if err != nil {
			return nil, err
		}
		policy = p
	}

	snaps, err := snapshot.NewSQLite(ctx, cfg.Snapshots.Path)
	if err != nil {
		return nil, err
	}

	var hist history.Store
	if cfg.Engine.BlendHistory {
		hist = snaps.History()
	}

	eng, err := engine.New(policy, hist)
	if err != nil {
		snaps.Close()
		return nil, err
	}

	profiles, err := openProfileStore(ctx, cfg.Profiles)
	if err != nil {
		snaps.Close()
		return nil, err
	}

	return &env{Engine: eng, Profiles: profiles, Snapshots: snaps}, nil
}

func openProfileStore(ctx context.Context, cfg config.ProfilesConfig) (profile.Store, error) {
	switch cfg.Driver {
	case "memory":
		return profile.NewMemory(), nil
	case "sqlite", "":
		return profile.NewSQLite(ctx, cfg.Path)
	case "postgres":
		return profile.NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("config: unknown profiles driver %q", cfg.Driver)
	}
}

func (e *env) Close() {
	if e.Profiles != nil {
		_ = e.Profiles.Close()
	}
	if e.Snapshots != nil {
		_ = e.Snapshots.Close()
	}
}

// runPage executes the full flow for one page input: build, calibrate, save.
func runPage(ctx context.Context, e *env, in *pageInput) (*snapshot.Snapshot, error) {
	page, err := e.Engine.BuildPage(in.Listings, in.SearchVolume)
	if err != nil {
		return nil, err
	}

	products, meta := e.Engine.ApplyCalibration(
		ctx, page.Products, in.Keyword, in.Category, e.Profiles, in.Listings,
	)

	// Calibration rescales the products; the persisted totals follow them.
	totals := engine.Resum(products, page.Totals)

	snap := &snapshot.Snapshot{
		Keyword:    profile.NormalizeKeyword(in.Keyword),
		Totals:     totals,
		Products:   products,
		Stages:     page.Stages,
		Multiplier: &meta,
	}
	if err := e.Snapshots.Save(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}
