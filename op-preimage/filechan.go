package preimage

import (
	"errors"
	"io"
	"os"
)

const (
	// GuestRFd is the file descriptor the guest reads responses from.
	GuestRFd = 3
	// GuestWFd is the file descriptor the guest writes requests to.
	GuestWFd = 4
	// MaxFd is one past the highest descriptor used by the guest channel.
	MaxFd = 5
)

// FileChannel is a bidirectional channel over a pair of files, one for each direction.
type FileChannel interface {
	io.ReadWriteCloser
	Reader() *os.File
	Writer() *os.File
}

type ReadWritePair struct {
	r *os.File
	w *os.File
}

var _ FileChannel = (*ReadWritePair)(nil)

// NewReadWritePair creates a new FileChannel that uses the given files
func NewReadWritePair(r *os.File, w *os.File) *ReadWritePair {
	return &ReadWritePair{r: r, w: w}
}

func (rw *ReadWritePair) Read(p []byte) (int, error) {
	return rw.r.Read(p)
}

func (rw *ReadWritePair) Write(p []byte) (int, error) {
	return rw.w.Write(p)
}

func (rw *ReadWritePair) Reader() *os.File {
	return rw.r
}

func (rw *ReadWritePair) Writer() *os.File {
	return rw.w
}

func (rw *ReadWritePair) Close() error {
	return errors.Join(rw.r.Close(), rw.w.Close())
}

// CreateBidirectionalChannel creates a pair of FileChannels that are connected to each other.
func CreateBidirectionalChannel() (FileChannel, FileChannel, error) {
	ar, bw, err := os.Pipe()
	if err != nil {
		return nil, nil, err
	}
	br, aw, err := os.Pipe()
	if err != nil {
		_ = ar.Close()
		_ = bw.Close()
		return nil, nil, err
	}
	return NewReadWritePair(ar, aw), NewReadWritePair(br, bw), nil
}

// HostChannel is the host end of the channel when the host runs in server mode.
// A parent process passes the host the opposite ends of the guest pipes on the same descriptors.
func HostChannel() FileChannel {
	r := os.NewFile(GuestRFd, "preimage-host-read")
	w := os.NewFile(GuestWFd, "preimage-host-write")
	return NewReadWritePair(r, w)
}
