package main

import (
	"errors"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/0xlemi/tunepitch/internal/audio"
	"github.com/0xlemi/tunepitch/internal/tuner"
	"github.com/0xlemi/tunepitch/internal/ui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive terminal tuner",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

// newSession wires the configured audio source into a tuner session
func newSession(logger *slog.Logger, opts ...tuner.Option) (*tuner.Session, error) {
	src, err := audio.NewSource(cfg.Audio, logger)
	if err != nil {
		return nil, err
	}

	opts = append([]tuner.Option{
		tuner.WithConstraints(audio.ConstraintsFrom(cfg.Audio)),
		tuner.WithReference(cfg.Tuner.Reference),
		tuner.WithLogger(logger),
	}, opts...)

	return tuner.NewSession(src, opts...), nil
}

func runTUI(cmd *cobra.Command, _ []string) error {
	logger, closeLog, err := newLogger(cfg.Log, true)
	if err != nil {
		return err
	}
	defer closeLog()

	session, err := newSession(logger)
	if err != nil {
		return err
	}
	defer session.Stop()

	model := ui.NewModel(cmd.Context(), session, cfg.Tuner.Interval, logger)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))

	// A signal cancels the context and kills the program
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
