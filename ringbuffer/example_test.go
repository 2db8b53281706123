package ringbuffer_test

import (
	"fmt"

	"github.com/joeycumines/go-iocore/ringbuffer"
)

func ExampleBuffer_IOV() {
	b, err := ringbuffer.New(8)
	if err != nil {
		panic(err)
	}

	_, _ = b.Write([]byte("xxxxxx"))
	_ = b.Consumed(4)
	_, _ = b.Write([]byte("abcd"))

	// the buffered bytes wrap around the end of the backing array
	iov := b.IOV(ringbuffer.DirRead)
	fmt.Printf("read: %q %q\n", iov[0], iov[1])

	// fill the free space in place, as a vectored recv would
	free := b.IOV(ringbuffer.DirWrite)
	n := copy(free[0], "ef")
	_ = b.Produced(n)

	out := make([]byte, b.Len())
	_, _ = b.Read(out)
	fmt.Printf("%s\n", out)

	//output:
	//read: "xxab" "cd"
	//xxabcdef
}

func ExampleCopy() {
	src, _ := ringbuffer.New(16)
	dst, _ := ringbuffer.New(0)
	_, _ = src.Write([]byte("hello, world"))

	if err := ringbuffer.Copy(dst, src, 5); err != nil {
		panic(err)
	}

	out := make([]byte, dst.Len())
	_, _ = dst.Read(out)
	fmt.Println(string(out), src.Len())

	//output:
	//hello 12
}
