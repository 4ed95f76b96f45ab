package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/0xlemi/tunepitch/internal/config"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze FILE.wav",
	Short: "Print the pitch of every frame of a WAV recording",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	logger, closeLog, err := newLogger(cfg.Log, false)
	if err != nil {
		return err
	}
	defer closeLog()

	cfg.Audio.Backend = config.BackendWAV
	cfg.Audio.File = args[0]
	cfg.Audio.Loop = false

	session, err := newSession(logger)
	if err != nil {
		return err
	}
	defer session.Stop()

	if err := session.Start(cmd.Context()); err != nil {
		return err
	}

	hop := cfg.Audio.Hop
	if hop <= 0 {
		hop = cfg.Audio.FrameSize
	}
	rate := session.SampleRate()
	out := cmd.OutOrStdout()

	var frames, voiced int
	for ; ; frames++ {
		if err := cmd.Context().Err(); err != nil {
			return nil
		}

		d, err := session.Cycle()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if !d.Signal {
			continue
		}

		voiced++
		at := float64(frames*hop) / rate
		fmt.Fprintf(out, "%8.3fs  %-4s %8.2f Hz %+3d cents\n", at, d.Note.String(), d.Note.Frequency, d.Note.Cents)
	}

	fmt.Fprintf(out, "%d of %d frames voiced\n", voiced, frames)
	return nil
}
