package source

import (
	"github.com/arloliu/heartbeat/internal/logging"
	"github.com/arloliu/heartbeat/types"
)

type options struct {
	logger types.Logger
}

// Option configures a SubjectListener or KVWatcher.
type Option func(*options)

// WithLogger sets the adapter logger. Defaults to a no-op logger.
func WithLogger(logger types.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}
