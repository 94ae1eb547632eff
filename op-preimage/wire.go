package preimage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// RequestType is the first byte of every request frame body.
type RequestType byte

const (
	HintRequest        RequestType = 1
	GetPreimageRequest RequestType = 2
)

// Status is the first byte of every response frame body.
type Status byte

const (
	StatusOK                  Status = 0
	StatusKeyNotFound         Status = 1
	StatusProtocolError       Status = 2
	StatusVerificationFailure Status = 3
	StatusFetchFailure        Status = 4
	StatusInternalError       Status = 5
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusKeyNotFound:
		return "key-not-found"
	case StatusProtocolError:
		return "protocol-error"
	case StatusVerificationFailure:
		return "verification-failure"
	case StatusFetchFailure:
		return "fetch-failure"
	case StatusInternalError:
		return "internal-error"
	default:
		return fmt.Sprintf("status(%d)", byte(s))
	}
}

// Fatal reports whether the host closes the channel after sending this status.
func (s Status) Fatal() bool {
	return s != StatusOK && s != StatusKeyNotFound
}

const (
	// MaxRequestSize bounds the body of a request frame. Hints and keys are small.
	MaxRequestSize = 1 << 20
	// MaxResponseSize bounds the payload of a response frame.
	MaxResponseSize = 1 << 30
)

var (
	// ErrNotFound is returned when no source can produce the requested preimage.
	ErrNotFound = errors.New("preimage not found")
	// ErrProtocol is wrapped by every malformed-frame error.
	ErrProtocol = errors.New("oracle protocol error")
	// ErrVerification classifies failures to verify fetched data. Producers wrap it.
	ErrVerification = errors.New("verification failed")
	// ErrFetch classifies exhausted backend fetches. Producers wrap it.
	ErrFetch = errors.New("fetch failed")
)

// ProtocolError describes a malformed frame received from the peer.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%v: %s", ErrProtocol, e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return ErrProtocol
}

// RemoteError is returned to the guest when the host reported a fatal status.
type RemoteError struct {
	Status  Status
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("host error %s: %s", e.Status, e.Message)
}

// StatusForError maps a handler error to the status reported to the guest.
func StatusForError(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrNotFound):
		return StatusKeyNotFound
	case errors.Is(err, ErrProtocol):
		return StatusProtocolError
	case errors.Is(err, ErrVerification):
		return StatusVerificationFailure
	case errors.Is(err, ErrFetch):
		return StatusFetchFailure
	default:
		return StatusInternalError
	}
}

// writeRequest writes u32be(len(body)+1) ++ type ++ body.
func writeRequest(w io.Writer, typ RequestType, body []byte) error {
	buf := make([]byte, 5+len(body))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(body)+1))
	buf[4] = byte(typ)
	copy(buf[5:], body)
	_, err := w.Write(buf)
	return err
}

// readRequest reads one request frame. A clean EOF before the frame starts is returned as io.EOF.
func readRequest(r io.Reader) (RequestType, []byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return 0, nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 {
		return 0, nil, &ProtocolError{Reason: "empty request frame"}
	}
	if n-1 > MaxRequestSize {
		return 0, nil, &ProtocolError{Reason: fmt.Sprintf("request of %d bytes exceeds limit", n-1)}
	}
	frame := make([]byte, n)
	if _, err := io.ReadFull(r, frame); err != nil {
		return 0, nil, fmt.Errorf("reading request body: %w", eofAsUnexpected(err))
	}
	return RequestType(frame[0]), frame[1:], nil
}

// writeResponse writes u64be(len(payload)+1) ++ status ++ payload.
func writeResponse(w io.Writer, status Status, payload []byte) error {
	var head [9]byte
	binary.BigEndian.PutUint64(head[:8], uint64(len(payload)+1))
	head[8] = byte(status)
	if _, err := w.Write(head[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}

func readResponse(r io.Reader) (Status, []byte, error) {
	var head [9]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return 0, nil, fmt.Errorf("reading response header: %w", err)
	}
	n := binary.BigEndian.Uint64(head[:8])
	if n == 0 {
		return 0, nil, &ProtocolError{Reason: "empty response frame"}
	}
	if n-1 > MaxResponseSize {
		return 0, nil, &ProtocolError{Reason: fmt.Sprintf("response of %d bytes exceeds limit", n-1)}
	}
	payload := make([]byte, n-1)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, fmt.Errorf("reading response payload: %w", eofAsUnexpected(err))
	}
	return Status(head[8]), payload, nil
}

func eofAsUnexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
