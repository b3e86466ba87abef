package cli

import (
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// newLogger writes logfmt to w, keeping entries at or above min.
func newLogger(w io.Writer, min level.Option) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = log.WithPrefix(logger, "ts", log.DefaultTimestampUTC)
	logger = log.WithPrefix(logger, "caller", log.DefaultCaller)

	return level.NewFilter(logger, min)
}

// runLevel keeps the report readable unless verbose output was asked for.
func runLevel(verbose bool) level.Option {
	if verbose {
		return level.AllowDebug()
	}

	return level.AllowWarn()
}
