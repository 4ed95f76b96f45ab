package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/0xlemi/tunepitch/internal/tuner"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Print detected notes as lines of text",
	Args:  cobra.NoArgs,
	RunE:  runListen,
}

func init() {
	rootCmd.AddCommand(listenCmd)
}

// lineSink prints a line whenever the shown note or its cents change, and
// one "--" line when the signal drops
type lineSink struct {
	mu   sync.Mutex
	out  io.Writer
	last tuner.Display
}

func (l *lineSink) Show(d tuner.Display) {
	l.mu.Lock()
	defer l.mu.Unlock()

	changed := d.Signal != l.last.Signal ||
		d.Note.MIDI != l.last.Note.MIDI ||
		d.Note.Cents != l.last.Note.Cents
	l.last = d
	if !changed {
		return
	}

	if !d.Signal {
		fmt.Fprintln(l.out, "--")
		return
	}
	fmt.Fprintf(l.out, "%-4s %8.2f Hz %+3d cents\n", d.Note.String(), d.Note.Frequency, d.Note.Cents)
}

func runListen(cmd *cobra.Command, _ []string) error {
	logger, closeLog, err := newLogger(cfg.Log, false)
	if err != nil {
		return err
	}
	defer closeLog()

	session, err := newSession(logger, tuner.WithSink(&lineSink{out: cmd.OutOrStdout()}))
	if err != nil {
		return err
	}
	defer session.Stop()

	if err := session.Start(cmd.Context()); err != nil {
		return err
	}

	err = tuner.Run(cmd.Context(), session, cfg.Tuner.Interval)
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
