/*
Package log provides structured logging for pcsd using zerolog.

Init configures the global Logger once at startup (level, JSON vs
console output, destination writer). Everything downstream uses either
the global Logger directly or a child logger scoped with WithComponent
or WithTaskID, so a task's logs can be grepped or queried by task_id
without every call site repeating the field.

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	schedLog := log.WithComponent("scheduler")
	schedLog.Info().Msg("tick started")

	log.WithTaskID(string(id)).Warn().Msg("task defunct")

Console output with a ConsoleWriter is the default (Config.JSONOutput
false, and pcsd's --log-json flag defaults to false); JSON output is
enabled with that flag. Fatal logs then calls
os.Exit(1), so it's reserved for startup failures the daemon cannot
recover from (e.g. a dispatch bus that fails to construct) - never use
it on a path reachable after the daemon is serving tasks.
*/
package log
