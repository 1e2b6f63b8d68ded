package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/hireops/internal/api"
	"github.com/jonathan/hireops/internal/auth"
	"github.com/jonathan/hireops/internal/board"
	"github.com/jonathan/hireops/internal/config"
	"github.com/jonathan/hireops/internal/logging"
	"github.com/jonathan/hireops/internal/render"
	"github.com/jonathan/hireops/internal/transition"
	"github.com/jonathan/hireops/internal/types"
)

// app bundles what every command needs.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	tokens *auth.TokenStore
	client *api.Client
}

// loadConfig merges defaults, the config file, HIREOPS_* env vars and the
// persistent flags that were set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v, err := config.NewViper(configPath)
	if err != nil {
		return nil, err
	}

	overrides := map[string]string{
		"base-url":   "api.base_url",
		"token-file": "auth.token_path",
		"log-level":  "log.level",
		"log-file":   "log.file",
	}
	for flag, key := range overrides {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			v.Set(key, f.Value.String())
		}
	}
	return config.Load(v)
}

func newApp(cmd *cobra.Command) (*app, error) {
	return newAppWith(cmd, nil)
}

// newAppWith lets a command adjust the loaded config before anything is
// built from it.
func newAppWith(cmd *cobra.Command, adjust func(*config.Config)) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if adjust != nil {
		adjust(cfg)
	}

	logger, err := logging.NewLogger(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	tokens := auth.NewTokenStore(cfg.Auth.TokenPath)
	client, err := api.New(cfg.API.BaseURL, &api.Options{
		Timeout:     cfg.API.Timeout,
		PageSize:    cfg.API.PageSize,
		StatusRoute: cfg.API.StatusRoute,
		Tokens:      tokens,
		Logger:      logger,
	})
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, tokens: tokens, client: client}, nil
}

// newBoard creates and loads a board. all shows every status as a column.
func (a *app) newBoard(cmd *cobra.Command, all bool) (*board.Board, error) {
	stages, err := a.cfg.Board.StageList()
	if err != nil {
		return nil, err
	}
	if all {
		stages = append([]types.Status(nil), types.AllStatuses...)
	}

	b := board.New(a.client, board.Options{
		Stages: stages,
		Policy: transition.Policy(a.cfg.Board.InFlightPolicy),
		Logger: a.logger,
	})
	if err := b.Init(cmd.Context()); err != nil {
		return nil, err
	}
	return b, nil
}

func (a *app) printer(cmd *cobra.Command) *render.Printer {
	return render.NewPrinter(cmd.OutOrStdout(), plainOut)
}

func (a *app) close() {
	_ = a.logger.Close()
}
