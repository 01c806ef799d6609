// Package coordinator runs sync cycles on a schedule.
//
// The coordinator owns the sync state for the lifetime of the process. Start
// loads it from the store, waits for the initial delay and then runs one
// cycle at a time through the sync Manager. The next cycle is scheduled only
// after the previous one returns, so cycles never overlap:
//
//	c := coordinator.New(manager, store,
//	    coordinator.WithInterval(30*time.Minute),
//	    coordinator.WithInitialDelay(5*time.Second))
//
//	go c.Start(ctx)
//	// ...
//	_ = c.Stop(shutdownCtx)
//
// A failed or panicking cycle is logged and recorded in the status. The loop
// keeps going.
//
// Stop cancels the loop, waits for an in-flight cycle to return and saves the
// state one last time. Status is safe for concurrent use and backs the
// readiness and status endpoints of the HTTP API.
package coordinator
