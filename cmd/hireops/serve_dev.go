package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/hireops/internal/config"
	"github.com/jonathan/hireops/internal/devserver"
	"github.com/jonathan/hireops/internal/schemas"
)

var (
	serveDevPort      int
	serveDevDBURL     string
	serveDevSeed      string
	serveDevStrict    bool
	serveDevJWTSecret string
)

var serveDevCmd = &cobra.Command{
	Use:   "serve-dev",
	Short: "Run a local HireOps API for development",
	Long: `Start a local HireOps REST backend under /api, seeded with demo data.

Data is kept in memory unless a database URL is given (--db-url,
devserver.database_url or DATABASE_URL), in which case PostgreSQL is used
and its tables are replaced with the seed on startup.`,
	Args: cobra.NoArgs,
	RunE: runServeDev,
}

func init() {
	flags := serveDevCmd.Flags()
	flags.IntVar(&serveDevPort, "port", 0, "Port to listen on (default devserver.port)")
	flags.StringVar(&serveDevDBURL, "db-url", "", "PostgreSQL connection string")
	flags.StringVar(&serveDevSeed, "seed", "", "Path to a seed JSON file (default: built-in demo data)")
	flags.BoolVar(&serveDevStrict, "strict", false, "Only allow forward, one-stage-at-a-time transitions")
	flags.StringVar(&serveDevJWTSecret, "jwt-secret", "", "Secret for signing tokens")
	rootCmd.AddCommand(serveDevCmd)
}

func runServeDev(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	dev := a.cfg.DevServer
	if serveDevPort != 0 {
		dev.Port = serveDevPort
	}
	if serveDevDBURL != "" {
		dev.DatabaseURL = serveDevDBURL
	}
	if serveDevSeed != "" {
		dev.SeedPath = serveDevSeed
	}
	if serveDevJWTSecret != "" {
		dev.JWTSecret = serveDevJWTSecret
	}

	seed := devserver.DefaultSeed()
	if dev.SeedPath != "" {
		if seed, err = schemas.ValidateSeedFile(dev.SeedPath); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := openRepository(ctx, dev)
	if err != nil {
		return err
	}
	defer repo.Close()

	srv, err := devserver.New(repo, devServerConfig(dev, a))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	if err := srv.Seed(ctx, seed); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Serving HireOps API on http://localhost:%d/api\n", dev.Port)
	return srv.ListenAndServe(ctx)
}

func openRepository(ctx context.Context, dev config.DevServerConfig) (devserver.Repository, error) {
	if dev.DatabaseURL == "" {
		return devserver.NewMemoryRepository(), nil
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	repo, err := devserver.Connect(connectCtx, dev.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func devServerConfig(dev config.DevServerConfig, a *app) devserver.Config {
	cfg := devserver.DefaultConfig()
	cfg.Port = dev.Port
	cfg.BcryptCost = dev.BcryptCost
	cfg.TokenTTL = time.Duration(dev.TokenTTLHours) * time.Hour
	cfg.StrictTransitions = serveDevStrict
	cfg.Logger = a.logger
	if dev.JWTSecret != "" {
		cfg.JWTSecret = dev.JWTSecret
	}
	return cfg
}
