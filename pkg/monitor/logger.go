package monitor

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// NewLogger 按格式（logfmt/json）和级别（debug/info/warn/error）创建日志
func NewLogger(w io.Writer, format, lvl string) (log.Logger, error) {
	var logger log.Logger
	switch format {
	case "", "logfmt":
		logger = log.NewLogfmtLogger(log.NewSyncWriter(w))
	case "json":
		logger = log.NewJSONLogger(log.NewSyncWriter(w))
	default:
		return nil, errors.Newf("unsupported log format: %s", format)
	}

	var allow level.Option
	switch lvl {
	case "debug":
		allow = level.AllowDebug()
	case "", "info":
		allow = level.AllowInfo()
	case "warn":
		allow = level.AllowWarn()
	case "error":
		allow = level.AllowError()
	default:
		return nil, errors.Newf("unsupported log level: %s", lvl)
	}

	logger = level.NewFilter(logger, allow)
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
	return logger, nil
}
