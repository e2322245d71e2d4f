package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"catering-backend/internal/config"
	"catering-backend/internal/engine"
	"catering-backend/internal/logger"
	"catering-backend/internal/metadata"
	"catering-backend/internal/store"
)

const configFlag = "config"

var rootFlags = map[string]cobraflags.Flag{
	configFlag: &cobraflags.StringFlag{
		Name:  configFlag,
		Value: "",
		Usage: "Path to the config file (default: app.yaml in . or ../..)",
	},
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "catering",
		Short:         "Catering back-office server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cobraflags.RegisterMap(root, rootFlags)

	root.AddCommand(newServeCommand())
	root.AddCommand(newMigrateCommand())
	root.AddCommand(newCreateUserCommand())
	root.AddCommand(newSeedUsersCommand())
	root.AddCommand(newPruneActionsCommand())
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// runtime is what every command needs: config, a bootstrapped store and the
// catalog registry with compiled rules.
type runtime struct {
	cfg      *config.Config
	store    *store.Store
	registry *metadata.Registry
}

func openRuntime(ctx context.Context) (*runtime, error) {
	// 1. Load config
	cfg, err := config.Load(rootFlags[configFlag].GetString())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// 2. Logger
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	// 3. Connect to database
	if cfg.Database.IsSQLite() {
		if err := os.MkdirAll(cfg.Database.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	db, err := store.New(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	logger.Info("Database connected",
		zap.String("driver", db.Dialect.Name()),
		zap.String("name", cfg.Database.Name),
	)

	// 4. Identity and audit tables
	if err := db.Bootstrap(ctx); err != nil {
		db.Close()
		return nil, err
	}

	// 5. Catalog registry and validation rules
	reg := metadata.NewRegistry()
	if err := metadata.LoadCatalog(reg); err != nil {
		db.Close()
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if err := engine.CompileRules(reg); err != nil {
		db.Close()
		return nil, fmt.Errorf("compile rules: %w", err)
	}

	return &runtime{cfg: cfg, store: db, registry: reg}, nil
}

func (r *runtime) Close() {
	r.store.Close()
	_ = logger.Sync()
}
