package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "registryctl",
		Short:         "Operate the company registry mirror",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (defaults to CONFIG_PATH env or assets/local.yaml)")

	cfgPath := func() string { return configPath }

	root.AddCommand(
		migrateCmd(cfgPath),
		sweepCmd(cfgPath),
		fetchCmd(cfgPath),
		subscribeCmd(cfgPath),
		unsubscribeCmd(cfgPath),
		userCmd(cfgPath),
	)
	return root
}
