package main

import (
	"fmt"
	"strconv"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"catering-backend/internal/audit"
	"catering-backend/internal/logger"
	"catering-backend/internal/store"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the catalog tables and junction tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := store.NewMigrator(rt.store).MigrateAll(cmd.Context(), rt.registry); err != nil {
				return fmt.Errorf("migrate catalog: %w", err)
			}
			logger.Info("Catalog migrated", zap.Int("entities", len(rt.registry.ListEntities())))
			return nil
		},
	}
}

const retentionFlag = "retention-days"

var pruneFlags = map[string]cobraflags.Flag{
	retentionFlag: &cobraflags.StringFlag{
		Name:  retentionFlag,
		Value: "90",
		Usage: "Delete action log entries older than this many days",
	},
}

func newPruneActionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune-actions",
		Short: "Delete old action log entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			days, err := strconv.Atoi(pruneFlags[retentionFlag].GetString())
			if err != nil || days < 1 {
				return fmt.Errorf("--%s must be a positive integer", retentionFlag)
			}

			rt, err := openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			removed, err := audit.NewDBRecorder(rt.store, logger.L()).Prune(cmd.Context(), days)
			if err != nil {
				return err
			}
			logger.Info("Action log pruned", zap.Int64("removed", removed), zap.Int("retention_days", days))
			return nil
		},
	}
	cobraflags.RegisterMap(cmd, pruneFlags)
	return cmd
}
