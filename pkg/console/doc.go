// Package console streams a running task's stdout/stderr back to the caller.
//
// Two backends share one shape: Headless polls READ_FILE against the
// sandbox on the agent's filesystem; Interactive attaches to the
// container's own output stream. Both run their workers as goroutines that
// check a mutex-guarded running flag, and wait for them with a WaitGroup on
// shutdown.
package console
