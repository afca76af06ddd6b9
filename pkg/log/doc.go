/*
Package log provides structured logging for rexe using zerolog.

The log package wraps zerolog to give rexe JSON or human-readable console
output, a single global level, and helper constructors for loggers scoped to
a run's identifiers (framework, agent, offer, task). Verbose mode (the CLI's
--verbose flag) lowers the global level to Debug, which adds the debug-level
messages (leader resolution, non-terminal status updates, ignored events) to
stderr; call bodies and offer contents are not logged at any level.
Non-verbose runs only see Info and above on stderr.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: false})
	logger := log.WithComponent("scheduler")
	logger.Info().Str("framework_id", fid).Msg("subscribed")
*/
package log
