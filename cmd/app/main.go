// File: cmd/app/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

type rootFlags struct {
	configPath string
	dev        bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "pixmanager",
		Short:         "Multi-tenant Telegram PIX bot manager",
		Version:       version + " (" + commit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLauncher(cmd.Context(), flags)
		},
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "config.yaml", "path to YAML config file")
	root.PersistentFlags().BoolVar(&flags.dev, "dev", false, "enable developer mode (console logs, unredacted secrets)")

	root.AddCommand(
		newLauncherCmd(flags),
		newWorkerCmd(flags),
		newRegistrationCmd(flags),
	)
	return root
}

func newLauncherCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "launcher",
		Short: "Start the registration service, every active worker and the OAuth callback server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLauncher(cmd.Context(), flags)
		},
	}
}

func newWorkerCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "worker <bot-token>",
		Aliases: []string{"Worker"},
		Short:   "Serve one tenant bot",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd.Context(), flags, args[0])
		},
	}
}

func newRegistrationCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "registration",
		Aliases: []string{"RegistrationService"},
		Short:   "Serve the onboarding bot",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRegistration(cmd.Context(), flags)
		},
	}
}

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
