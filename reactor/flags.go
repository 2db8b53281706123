package reactor

import (
	"strconv"
	"strings"
)

// Flags is a set of readiness conditions.
type Flags uint8

const (
	// FlagRead indicates the handle is readable, or has reached end of stream
	// or an error condition that a read will report.
	FlagRead Flags = 1 << iota
	// FlagWrite indicates the handle is writable, or has an error condition
	// that a write will report.
	FlagWrite

	flagsMask = FlagRead | FlagWrite
)

// String returns a human-readable representation of the flags, e.g.
// "read|write".
func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	if f&FlagRead != 0 {
		parts = append(parts, "read")
	}
	if f&FlagWrite != 0 {
		parts = append(parts, "write")
	}
	if f&^flagsMask != 0 {
		parts = append(parts, "0x"+strconv.FormatUint(uint64(f&^flagsMask), 16))
	}
	return strings.Join(parts, "|")
}
