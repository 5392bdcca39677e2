package testsupport

import (
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"go.uber.org/zap/zaptest"
)

// Logger returns an ectologger that writes through the test's log.
func Logger(t testing.TB) ectologger.Logger {
	return zapadapter.NewZapEctoLogger(zaptest.NewLogger(t), nil)
}

// SilentLogger discards every message.
func SilentLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}
