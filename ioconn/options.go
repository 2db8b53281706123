package ioconn

import (
	"errors"

	"github.com/joeycumines/logiface"
)

// connOptions holds configuration options for Conn creation.
type connOptions struct {
	logger     *logiface.Logger[logiface.Event]
	onData     func(c *Conn)
	onClose    func(c *Conn, err error)
	bufferSize int
	readChunk  int
}

// Option configures a Conn instance.
type Option interface {
	applyConn(*connOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyConnFunc func(*connOptions) error
}

func (o *optionImpl) applyConn(opts *connOptions) error {
	return o.applyConnFunc(opts)
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *connOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithDataHandler sets the function called after bytes have been appended to
// the input buffer. It may consume from the input buffer, write, or close the
// connection.
func WithDataHandler(fn func(c *Conn)) Option {
	return &optionImpl{func(opts *connOptions) error {
		opts.onData = fn
		return nil
	}}
}

// WithCloseHandler sets the function called once the connection has been
// closed due to end of stream (io.EOF) or a socket error. It is not called
// for explicit calls to Close.
func WithCloseHandler(fn func(c *Conn, err error)) Option {
	return &optionImpl{func(opts *connOptions) error {
		opts.onClose = fn
		return nil
	}}
}

// WithBufferSize sets the initial capacity of each buffer. Buffers grow on
// demand. Defaults to 0, allocating on first use.
func WithBufferSize(n int) Option {
	return &optionImpl{func(opts *connOptions) error {
		if n < 0 {
			return errors.New("ioconn: negative buffer size")
		}
		opts.bufferSize = n
		return nil
	}}
}

// WithReadChunk sets the minimum free space ensured in the input buffer
// before each receive. Defaults to 4096.
func WithReadChunk(n int) Option {
	return &optionImpl{func(opts *connOptions) error {
		if n <= 0 {
			return errors.New("ioconn: read chunk must be positive")
		}
		opts.readChunk = n
		return nil
	}}
}

// resolveConnOptions applies Option instances to connOptions.
func resolveConnOptions(opts []Option) (*connOptions, error) {
	cfg := &connOptions{
		readChunk: 4096,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyConn(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
