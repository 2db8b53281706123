package sockops

import (
	"time"

	"github.com/joeycumines/logiface"
)

// opsOptions holds configuration options for Ops creation.
type opsOptions struct {
	logger        *logiface.Logger[logiface.Event]
	unmappedRates map[time.Duration]int
}

// Option configures an Ops instance.
type Option interface {
	applyOps(*opsOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyOpsFunc func(*opsOptions) error
}

func (o *optionImpl) applyOps(opts *opsOptions) error {
	return o.applyOpsFunc(opts)
}

// WithLogger sets the logger, used to report unmapped platform errors.
// A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *opsOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithUnmappedRates sets the rate limits applied to logging of unmapped
// errors, per errno. See go-catrate for the semantics of rates. A nil or
// empty map disables rate limiting.
func WithUnmappedRates(rates map[time.Duration]int) Option {
	return &optionImpl{func(opts *opsOptions) error {
		opts.unmappedRates = rates
		return nil
	}}
}

// resolveOptions applies Option instances to opsOptions.
func resolveOptions(opts []Option) (*opsOptions, error) {
	cfg := &opsOptions{
		unmappedRates: map[time.Duration]int{
			time.Second: 1,
			time.Minute: 10,
		},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyOps(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
