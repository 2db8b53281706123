package ringbuffer

// transferChunk bounds the scratch space used by Transfer.
const transferChunk = 1024

// Transfer moves up to n bytes from src to dst, growing dst as required, and
// returns the number of bytes moved. Capacity for the whole move is ensured
// before anything is consumed, so on error neither buffer is modified.
func Transfer(dst, src *Buffer, n int) (int, error) {
	n = min(n, src.Len())
	if n <= 0 {
		return 0, nil
	}
	if err := dst.EnsureCapacity(n); err != nil {
		return 0, err
	}

	var scratch [transferChunk]byte
	var moved int
	for moved < n {
		k, _ := src.Read(scratch[:min(transferChunk, n-moved)])
		if k == 0 {
			break
		}
		// cannot be short, capacity was ensured above
		_, _ = dst.Write(scratch[:k])
		moved += k
	}
	return moved, nil
}

// Append moves every buffered byte from src to dst.
func Append(dst, src *Buffer) error {
	_, err := Transfer(dst, src, src.Len())
	return err
}

// Copy copies the first n buffered bytes of src into dst, without consuming
// them from src. The bytes are copied directly into dst's free space.
func Copy(dst, src *Buffer, n int) error {
	if n < 0 || n > src.Len() {
		return ErrShortMove
	}
	if err := dst.EnsureCapacity(n); err != nil {
		return err
	}
	snapshot := *src
	iov := dst.IOV(DirWrite).Limit(n)
	k := snapshot.copyOut(iov[0])
	snapshot.advanceRead(k)
	snapshot.copyOut(iov[1])
	return dst.Produced(n)
}
