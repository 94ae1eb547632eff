package preimage

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// RequestHandler serves the requests of a single guest session.
type RequestHandler interface {
	// Hint processes a hint to completion before it is acknowledged.
	Hint(ctx context.Context, hint string) error
	// GetPreimage returns the verified value for key, or an error wrapping ErrNotFound.
	GetPreimage(ctx context.Context, key Key) ([]byte, error)
}

// OracleServer is the host end of the oracle protocol. Requests are handled one at a time, in order.
type OracleServer struct {
	rw io.ReadWriter
}

func NewOracleServer(rw io.ReadWriter) *OracleServer {
	return &OracleServer{rw: rw}
}

// NextRequest reads and answers a single request.
// It returns io.EOF when the guest closed the channel between requests.
// Any other returned error is fatal for the session: the guest has already been told, where possible.
func (o *OracleServer) NextRequest(ctx context.Context, handler RequestHandler) error {
	typ, body, err := readRequest(o.rw)
	if err != nil {
		if errors.Is(err, ErrProtocol) {
			return o.fail(err)
		}
		return err
	}
	switch typ {
	case HintRequest:
		return o.respond(nil, handler.Hint(ctx, string(body)))
	case GetPreimageRequest:
		key, err := UnmarshalKey(body)
		if err != nil {
			return o.fail(&ProtocolError{Reason: err.Error()})
		}
		return o.respond(handler.GetPreimage(ctx, key))
	default:
		return o.fail(&ProtocolError{Reason: fmt.Sprintf("unknown request type %d", byte(typ))})
	}
}

func (o *OracleServer) respond(value []byte, err error) error {
	status := StatusForError(err)
	if status == StatusOK {
		if werr := writeResponse(o.rw, StatusOK, value); werr != nil {
			return fmt.Errorf("failed to write response: %w", werr)
		}
		return nil
	}
	if werr := writeResponse(o.rw, status, []byte(err.Error())); werr != nil {
		return errors.Join(err, fmt.Errorf("failed to write %s response: %w", status, werr))
	}
	if status.Fatal() {
		return err
	}
	return nil
}

func (o *OracleServer) fail(err error) error {
	return o.respond(nil, err)
}
