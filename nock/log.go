package nock

import (
	"os"

	"github.com/rs/zerolog"
)

// LogFunc receives the diagnostic trace of an expectation while requests
// are matched against it. Closures are allowed.
//
// It is called with the registry lock held, so it must not call back into
// the registry (Len, Pending, Match, Add, Stop and the like). Doing so
// deadlocks the matching pass.
type LogFunc func(message string)

// defaultLogger is used by registries created without WithLogger.
var defaultLogger = zerolog.New(os.Stdout).With().Timestamp().Logger().Level(zerolog.WarnLevel)

// ZerologSink adapts a zerolog logger into a LogFunc that writes each
// diagnostic line at debug level.
//
//	nock.New("https://api.example.com").
//	    Get("/users").
//	    Log(nock.ZerologSink(logger)).
//	    Reply(http.StatusOK, "[]")
func ZerologSink(logger zerolog.Logger) LogFunc {
	return func(message string) {
		logger.Debug().Msg(message)
	}
}
