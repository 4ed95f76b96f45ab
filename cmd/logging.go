package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/0xlemi/tunepitch/internal/config"
)

// newLogger builds the process logger and makes it the slog default. With
// quiet set and no log file, logs are dropped so they cannot tear the
// terminal UI.
func newLogger(c config.Log, quiet bool) (*slog.Logger, func(), error) {
	level, err := c.SlogLevel()
	if err != nil {
		return nil, nil, err
	}

	var out io.Writer = os.Stderr
	closeFn := func() {}

	switch {
	case c.File != "":
		f, err := os.OpenFile(c.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		closeFn = func() { f.Close() }
	case quiet:
		out = io.Discard
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	return logger, closeFn, nil
}
