package ringbuffer

// IOVec is a gather/scatter view of at most two byte ranges. The first range
// is primary, the second is the continuation after the wrap boundary, and is
// empty when the view does not wrap.
type IOVec [2][]byte

// Len returns the total number of bytes described by the view.
func (v IOVec) Len() int { return len(v[0]) + len(v[1]) }

// Contiguous reports whether the view is a single range.
func (v IOVec) Contiguous() bool { return len(v[1]) == 0 }

// Limit truncates the view to at most n bytes.
func (v IOVec) Limit(n int) IOVec {
	if n < 0 {
		n = 0
	}
	if n <= len(v[0]) {
		return IOVec{v[0][:n], v[1][:0]}
	}
	if rest := n - len(v[0]); rest < len(v[1]) {
		v[1] = v[1][:rest]
	}
	return v
}
