//go:build !linux && !darwin

package sockops

import (
	"syscall"
)

func mapErrno(syscall.Errno) Code { return CodeUnmapped }
