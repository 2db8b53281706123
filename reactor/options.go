package reactor

import (
	"errors"
	"time"

	"github.com/joeycumines/logiface"
)

// reactorOptions holds configuration options for Reactor creation.
type reactorOptions struct {
	backend       Backend
	backendName   string
	logger        *logiface.Logger[logiface.Event]
	now           func() time.Time
	initialEvents int
}

// Option configures a Reactor instance.
type Option interface {
	applyReactor(*reactorOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyReactorFunc func(*reactorOptions) error
}

func (o *optionImpl) applyReactor(opts *reactorOptions) error {
	return o.applyReactorFunc(opts)
}

// WithBackend sets the multiplexing backend. The reactor takes ownership,
// and closes it on Close. Takes precedence over WithBackendName.
func WithBackend(backend Backend) Option {
	return &optionImpl{func(opts *reactorOptions) error {
		if backend == nil {
			return errors.New("reactor: nil backend")
		}
		opts.backend = backend
		return nil
	}}
}

// WithBackendName selects a backend by name, see NewBackend. An empty name
// selects the platform default.
func WithBackendName(name string) Option {
	return &optionImpl{func(opts *reactorOptions) error {
		opts.backendName = name
		return nil
	}}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *reactorOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithClock sets the clock used for timer expiry. It must be monotonic.
// Defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return &optionImpl{func(opts *reactorOptions) error {
		if now == nil {
			return errors.New("reactor: nil clock")
		}
		opts.now = now
		return nil
	}}
}

// WithInitialEvents preallocates space for n events.
func WithInitialEvents(n int) Option {
	return &optionImpl{func(opts *reactorOptions) error {
		if n < 0 {
			return errors.New("reactor: negative initial events")
		}
		opts.initialEvents = n
		return nil
	}}
}

// resolveReactorOptions applies Option instances to reactorOptions.
func resolveReactorOptions(opts []Option) (*reactorOptions, error) {
	cfg := &reactorOptions{
		now: time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyReactor(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
