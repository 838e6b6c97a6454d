package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/stake-plus/multisig-relay/src/config"
	"github.com/stake-plus/multisig-relay/src/logging"
	"go.uber.org/zap"
)

const (
	configFlag   = "config"
	logLevelFlag = "log-level"
	networkFlag  = "network"
)

// runtime is filled in by the root command before any subcommand runs.
type runtime struct {
	loader *config.Loader
	lg     *zap.Logger
}

func newRootCmd() (*cobra.Command, *runtime) {
	rt := &runtime{}
	root := &cobra.Command{
		Use:           "multisig-relay",
		Short:         "Multisig proposal relay and dashboard backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString(configFlag)
			rt.loader = config.NewLoader(path)

			level, _ := cmd.Flags().GetString(logLevelFlag)
			if level == "" {
				level = rt.loader.GetSetting("log_level", "info")
			}
			lg, err := logging.New(level, rt.loader.Load().Development)
			if err != nil {
				return err
			}
			rt.lg = lg
			zap.ReplaceGlobals(lg)
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if rt.lg != nil {
				_ = rt.lg.Sync()
			}
		},
	}
	root.PersistentFlags().String(configFlag, "", "path to a config file (default ./config.yaml)")
	root.PersistentFlags().String(logLevelFlag, "", "debug|info|warn|error (overrides log_level)")

	root.AddCommand(
		serveCmd(rt),
		migrateCmd(rt),
		decodeCmd(rt),
		addressCmd(),
		amountCmd(),
		multisigCmd(),
		signCmd(rt),
	)
	return root, rt
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root, _ := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
