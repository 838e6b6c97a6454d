package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/stake-plus/multisig-relay/src/app"
	"github.com/stake-plus/multisig-relay/src/chain"
	"github.com/stake-plus/multisig-relay/src/data"
	"go.uber.org/zap"
)

func serveCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, notification dispatcher and reconciler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := app.New(ctx, rt.loader, rt.lg)
			if err != nil {
				rt.lg.Error("could not start relay", zap.Error(err))
				return err
			}
			defer a.Close()

			if err := a.Run(ctx); err != nil {
				rt.lg.Error("relay stopped", zap.Error(err))
				return err
			}
			rt.lg.Info("relay stopped")
			return nil
		},
	}
}

func migrateCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and seed the default networks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			drop, _ := cmd.Flags().GetBool("drop-on-failure")

			dsn := rt.loader.GetSetting("mysql_dsn", "")
			if dsn == "" {
				return errors.New("mysql_dsn is not set")
			}
			db, err := data.ConnectMySQL(dsn, rt.lg)
			if err != nil {
				return fmt.Errorf("mysql: %w", err)
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}

			if err := data.Migrate(db, rt.lg, drop); err != nil {
				return err
			}
			reg, err := chain.NewRegistry(db)
			if err != nil {
				return fmt.Errorf("seed networks: %w", err)
			}
			rt.lg.Info("schema up to date", zap.Int("networks", len(reg.All())))
			return nil
		},
	}
	cmd.Flags().Bool("drop-on-failure", false, "drop and recreate every table when auto-migrate fails")
	return cmd
}
