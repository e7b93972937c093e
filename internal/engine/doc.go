// Package engine implements the favorite ("like") sync engine.
//
// A favorite moves through four states:
//
//	Unliked -> LikePending -> Liked
//	Liked -> UnlikePending -> Unliked
//
// The pending states are optimistic: observers see them before the server
// answers, and a failure rolls them back. Only Liked records are persisted.
//
// IDENTITY:
//
// A recipe can be liked before the server has given it a code. The record is
// then stored under the zero-code key and carries the code the server
// returned. Every lookup consults both candidate keys (see package
// identity), so an unlike after the code arrived finds the record and uses
// the recorded code. If no code exists anywhere the unlike is local only.
//
// CONCURRENCY:
//
// One toggle per favorite at a time. A second toggle while one is in flight
// returns ErrInFlight immediately; it is not queued or retried. Different
// favorites proceed in parallel. Each toggle runs under a deadline
// (DefaultTimeout) that is the only way it ends early; the caller's
// cancellation does not abort a toggle that has started.
//
// ERRORS:
//
// Failures come back as *SyncError with a code (UNAUTHENTICATED,
// NETWORK_FAILURE, SERVER_REJECTION, STORE_FAILURE) after the state has been
// rolled back and the Notifier told once. Nothing here is fatal; retrying the
// toggle is always safe.
package engine
