package dmring

import "go.uber.org/zap"

// ringOptions configures ring construction across all flavors.
type ringOptions struct {
	log *zap.SugaredLogger
}

// RingOption configures a ring's ambient behavior. Unlike DoubleMappedBuffer's
// Option (which controls platform allocation), these are pure construction
// conveniences.
type RingOption func(*ringOptions)

// WithLogger attaches a logger used only for the one case the core state
// machine cannot surface through a normal error return: platform failures
// encountered while tearing down the backing DoubleMappedBuffer. If no
// logger is supplied, those failures are swallowed, per spec.
func WithLogger(log *zap.SugaredLogger) RingOption {
	return func(o *ringOptions) {
		if log != nil {
			log = log.Named("dmring")
		}
		o.log = log
	}
}

func buildRingOptions(opts []RingOption) ringOptions {
	var o ringOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
