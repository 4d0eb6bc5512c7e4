package transport

import (
	"os"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("pomp/transport")

var stderrFormat = logging.MustStringFormatter(
	`%{color}pomp ▶ %{time:15:04:05.000} %{level:.4s} %{message}%{color:reset}`,
)

// SetupLogging installs a stderr backend at defaultLevel, overridable by the
// POMP_LOG_LEVEL environment variable.
func SetupLogging(defaultLevel logging.Level) *logging.Logger {
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	formatted := logging.NewBackendFormatter(backend, stderrFormat)
	leveled := logging.AddModuleLevel(formatted)

	switch os.Getenv("POMP_LOG_LEVEL") {
	case "CRITICAL":
		leveled.SetLevel(logging.CRITICAL, "")
	case "ERROR":
		leveled.SetLevel(logging.ERROR, "")
	case "WARNING":
		leveled.SetLevel(logging.WARNING, "")
	case "NOTICE":
		leveled.SetLevel(logging.NOTICE, "")
	case "INFO":
		leveled.SetLevel(logging.INFO, "")
	case "DEBUG":
		leveled.SetLevel(logging.DEBUG, "")
	default:
		leveled.SetLevel(defaultLevel, "")
	}

	logging.SetBackend(leveled)
	return log
}
