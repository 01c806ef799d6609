// Package sync reconciles catalog batches against the persisted sync state and
// runs complete sync cycles.
//
// # Reconciliation
//
// Reconcile is a pure function. Given a batch of catalog items and the current
// state it classifies every item as new, updated or unchanged and returns the
// records to store. The caller decides when to Apply them.
//
// Classification rules:
//
//   - An identity missing from the state is new.
//   - A known identity is updated when a count is observed and either no count
//     was stored or the observed count is strictly greater.
//   - Anything else is unchanged. A lower observed count still replaces the
//     stored one, silently.
//
// On the first run (no cycle has completed yet) the number of new-item events
// is capped, but every item is still recorded so the next cycle does not
// re-announce it.
//
// # Cycles
//
// Manager.RunCycle fetches pages, reconciles, persists the state, dispatches
// events to the notification sink and persists again. Fetch and dispatch
// failures are logged and counted in the CycleResult. Scheduling lives in the
// coordinator subpackage.
package sync
