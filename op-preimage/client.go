package preimage

import (
	"fmt"
	"io"
)

// OracleClient is the guest end of the oracle protocol.
type OracleClient struct {
	rw io.ReadWriter
}

func NewOracleClient(rw io.ReadWriter) *OracleClient {
	return &OracleClient{rw: rw}
}

// HintString sends a hint and blocks until the host has processed it.
func (o *OracleClient) HintString(hint string) error {
	if err := writeRequest(o.rw, HintRequest, []byte(hint)); err != nil {
		return fmt.Errorf("failed to send hint: %w", err)
	}
	_, err := o.readResult()
	return err
}

// Get requests the preimage of key. A missing preimage is reported as ErrNotFound.
func (o *OracleClient) Get(key Key) ([]byte, error) {
	k := key.Marshal()
	if err := writeRequest(o.rw, GetPreimageRequest, k[:]); err != nil {
		return nil, fmt.Errorf("failed to request %s: %w", key, err)
	}
	return o.readResult()
}

func (o *OracleClient) readResult() ([]byte, error) {
	status, payload, err := readResponse(o.rw)
	if err != nil {
		return nil, err
	}
	switch status {
	case StatusOK:
		return payload, nil
	case StatusKeyNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, payload)
	default:
		return nil, &RemoteError{Status: status, Message: string(payload)}
	}
}
