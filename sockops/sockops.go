package sockops

import (
	"fmt"
	"syscall"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// Handle is an OS socket descriptor.
type Handle int

// InvalidHandle is the "no socket" identity.
const InvalidHandle Handle = -1

// Valid reports whether h may refer to an open socket.
func (h Handle) Valid() bool { return h >= 0 }

// Ops is the socket operations facade. The zero value is ready to use, with
// logging disabled.
type Ops struct {
	logger  *logiface.Logger[logiface.Event]
	limiter *catrate.Limiter
}

// New constructs an Ops.
func New(opts ...Option) (*Ops, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	x := &Ops{logger: cfg.logger}
	if len(cfg.unmappedRates) != 0 {
		if x.limiter, err = newLimiter(cfg.unmappedRates); err != nil {
			return nil, err
		}
	}
	return x, nil
}

// newLimiter converts the panic catrate raises for invalid rates.
func newLimiter(rates map[time.Duration]int) (limiter *catrate.Limiter, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sockops: invalid unmapped error rates: %v", r)
		}
	}()
	return catrate.NewLimiter(rates), nil
}

// wrap converts a syscall error into an *Error.
func (x *Ops) wrap(op string, err error) error {
	errno, ok := err.(syscall.Errno)
	if !ok {
		return fmt.Errorf("sockops: %s: %w", op, err)
	}
	code := mapErrno(errno)
	if code == CodeUnmapped {
		x.logUnmapped(op, errno)
	}
	return &Error{Op: op, Code: code, Errno: errno}
}

func (x *Ops) logUnmapped(op string, errno syscall.Errno) {
	if x == nil || x.logger == nil {
		return
	}
	if _, ok := x.limiter.Allow(errno); !ok {
		return
	}
	x.logger.Warning().
		Str(`op`, op).
		Int(`errno`, int(errno)).
		Err(errno).
		Log(`unmapped socket error`)
}
