// Package update coordinates update checks.
//
// This package handles:
//   - Fetching a Sparkle-style appcast over HTTP (HTTPFetcher)
//   - Scheduling, running and persisting update checks (Driver, the portable Client)
//   - Handing found updates to an external installer command (CommandInstaller)
//   - Owning the latest known version and telling observers when it changes (Coordinator)
//
// The coordinator runs all state changes and observer callbacks on a single
// dispatch loop. Fetches and checks run on their own goroutines and post
// their results back. Nothing here cancels, times out or retries a check;
// overlapping requests all run and the last one to finish sets the latest
// version.
//
// Example usage:
//
//	loop := dispatch.New(log)
//	go loop.Run(ctx)
//
//	driver := update.NewDriver(update.DriverConfig{
//	    FeedURL:   feedURL,
//	    Installed: installed,
//	    Prefs:     config.Preferences(),
//	})
//	coord := update.NewCoordinator(loop, update.CoordinatorConfig{
//	    Installed: installed,
//	    Client:    driver,
//	})
//	coord.AddObserver(myObserver)
//	coord.Start(ctx)
//	coord.CheckForFeedForUpdate()
package update
