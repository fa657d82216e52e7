package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"updatekit/internal/config"
	"updatekit/internal/dispatch"
	"updatekit/internal/ui"
	"updatekit/internal/update"
)

// exitSettleTimeout bounds how long the screen waits for in-flight checks
// after the user quits.
const exitSettleTimeout = 2 * time.Second

// runTUI owns the update session for as long as the screen is open.
func runTUI(parent context.Context, env *appEnv) error {
	lock, err := acquireSessionLock()
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	log := env.log
	started := time.Now()

	store, err := openHistory(ctx)
	if err != nil {
		// The screen still works without history.
		log.Warn().Err(err).Msg("check history unavailable")
		_, _ = fmt.Fprintf(env.errOut, "Warning: check history unavailable: %v\n", err)
	}
	if store != nil {
		defer func() { _ = store.Close() }()
	}

	loop := dispatch.New(log)
	go func() { _ = loop.Run(ctx) }()

	var (
		prog            *tea.Program
		relaunchPending atomic.Bool
	)
	fetcher := newFetcher()
	driver := env.newDriver(fetcher, log, func() {
		relaunchPending.Store(true)
		prog.Quit()
	})

	coordCfg := update.CoordinatorConfig{
		Installed: env.installed,
		Client:    driver,
		Fetcher:   fetcher,
		Log:       log,
	}
	appCfg := ui.Config{
		Notes:        latestItemLoader(fetcher, driver.FeedURL()),
		OutputFormat: config.GetString(config.KeyOutputFormat),
		Log:          log,
	}
	if store != nil {
		coordCfg.History = store
		appCfg.History = store
	}
	coord := update.NewCoordinator(loop, coordCfg)
	appCfg.Service = coord

	app := ui.NewApp(appCfg)
	prog = tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	obs := ui.NewObserver(prog)
	coord.AddObserver(obs)
	coord.Start(ctx)

	_, runErr := prog.Run()
	coord.RemoveObserver(obs)
	// Give checks already in flight a moment to land so the summary shows
	// their result.
	settleCtx, settleCancel := context.WithTimeout(ctx, exitSettleTimeout)
	if err := coord.Wait(settleCtx); err != nil {
		log.Debug().Err(err).Msg("exiting with update requests still in flight")
	}
	settleCancel()
	cancel()

	printExitSummary(env.out, ExitSummary{
		Version:   Version,
		StartTime: started,
		Final:     coord.Snapshot(),
	})
	if runErr != nil && !relaunchPending.Load() {
		return fmt.Errorf("run UI: %w", runErr)
	}

	if relaunchPending.Load() {
		_ = lock.Unlock()
		return relaunchSelf()
	}
	return nil
}

// relaunchSelf starts a fresh copy of this binary with the same arguments
// and lets the current process exit.
func relaunchSelf() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	//nolint:gosec // G204: relaunching our own binary with our own arguments
	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("relaunch: %w", err)
	}
	return cmd.Process.Release()
}
