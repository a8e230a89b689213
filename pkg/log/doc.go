/*
Package log provides structured logging built on zerolog.

The global Logger is configured once via Init and then accessed through
component-scoped child loggers (WithComponent, WithPool, WithService,
WithTopic) so every line carries enough context to trace a message back to
the pool or service that emitted it, without callers threading a logger
through every function signature.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	logger := log.WithPool("main")
	logger.Info().Str("service", "Consumer").Msg("service entered running state")
*/
package log
