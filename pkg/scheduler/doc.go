// Package scheduler drives the single-task run: subscribe, wait for a
// usable offer, launch, stream output, and tear down.
//
// Grounded on the teacher's pkg/scheduler.Scheduler shape — a struct
// holding a zerolog.Logger, a mutex, and a channel shared with a background
// goroutine (here the wait-deadline timer's deadlineCh), with an HTTP client
// built per call — generalized from a ticker-driven reconcile loop into a
// framed-event read loop.
package scheduler
