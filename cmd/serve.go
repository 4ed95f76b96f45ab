package main

import (
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/0xlemi/tunepitch/internal/audio"
	"github.com/0xlemi/tunepitch/internal/server"
	"github.com/0xlemi/tunepitch/internal/tuner"
)

var startListening bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the tuner over an HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&startListening, "start", true, "Start listening as soon as the server is up")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger, closeLog, err := newLogger(cfg.Log, false)
	if err != nil {
		return err
	}
	defer closeLog()

	latest := &server.LatestDisplay{}
	session, err := newSession(logger, tuner.WithSink(latest))
	if err != nil {
		return err
	}
	defer session.Stop()

	srv := server.New(session, latest, cfg.Server.AllowedOrigins, logger)

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		return srv.ListenAndServe(ctx, cfg.Server.Addr)
	})
	g.Go(func() error {
		return srv.Pump(ctx, cfg.Tuner.Interval)
	})

	if startListening {
		// Clients can retry with POST /api/start
		var acqErr *audio.AcquisitionError
		if err := session.Start(ctx); errors.As(err, &acqErr) {
			logger.Warn("could not start listening", "error", err)
		}
	}

	return g.Wait()
}
