package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/0xlemi/tunepitch/internal/config"
)

var cfg = config.DefaultConfig()

var rootCmd = &cobra.Command{
	Use:   "tunepitch",
	Short: "Instrument tuner",
	Long: `tunepitch listens to a monophonic instrument, estimates its pitch by
autocorrelation and shows the nearest note with its deviation in cents.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return cfg.Validate()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Fall back to plain lines when output is piped
		if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
			return runTUI(cmd, args)
		}
		return runListen(cmd, args)
	},
}

func init() {
	cfg.BindFlags(rootCmd.PersistentFlags())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cobra.CheckErr(rootCmd.ExecuteContext(ctx))
}
