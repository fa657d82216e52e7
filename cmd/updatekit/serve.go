package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"updatekit/internal/config"
	"updatekit/internal/debug"
	"updatekit/internal/dispatch"
	"updatekit/internal/server"
	"updatekit/internal/update"
)

type serveOptions struct {
	addr string
}

func newServeCmd(env *appEnv) *cobra.Command {
	opts := serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the update session headless behind a local HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("addr") {
				opts.addr = config.GetString(config.KeyServerAddr)
			}
			return runServe(cmd.Context(), env, opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", config.DefaultServerAddr, "Listen address (default from server.addr)")
	return cmd
}

// serveLogger writes JSON lines to w. --debug lowers the level to debug and
// keeps the debug file log alongside.
func serveLogger(w io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	out := w
	if debug.Enabled() {
		level = zerolog.DebugLevel
		out = zerolog.MultiLevelWriter(w, debugWriter{})
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// debugWriter forwards serve logs into the debug log file.
type debugWriter struct{}

func (debugWriter) Write(p []byte) (int, error) {
	l := debug.Logger()
	l.Debug().RawJSON("serve", trimNewline(p)).Send()
	return len(p), nil
}

func trimNewline(p []byte) []byte {
	if n := len(p); n > 0 && p[n-1] == '\n' {
		return p[:n-1]
	}
	return p
}

func runServe(parent context.Context, env *appEnv, opts serveOptions) error {
	lock, err := acquireSessionLock()
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := serveLogger(env.errOut)

	store, err := openHistory(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("check history unavailable")
	}

	loop := dispatch.New(log)
	fetcher := newFetcher()
	driver := env.newDriver(fetcher, log, nil)
	coordCfg := update.CoordinatorConfig{
		Installed: env.installed,
		Client:    driver,
		Fetcher:   fetcher,
		Log:       log,
	}
	srvCfg := server.Config{Log: log}
	if store != nil {
		defer func() { _ = store.Close() }()
		coordCfg.History = store
		srvCfg.History = store
	}
	coord := update.NewCoordinator(loop, coordCfg)
	srvCfg.Service = coord
	coord.AddObserver(server.NewLogObserver(log))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error { return server.Run(gctx, server.New(opts.addr, srvCfg), log) })
	coord.Start(gctx)

	err = g.Wait()
	log.Info().Msg("update session stopped")
	return err
}
