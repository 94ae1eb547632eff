package preimage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

var ErrMalformedHint = errors.New("malformed hint")

// Hint is advisory information about upcoming preimage requests.
// On the wire it is the text "<name> 0x<hex payload>".
type Hint struct {
	Name    string
	Payload []byte
}

func (h Hint) String() string {
	return h.Name + " " + hexutil.Encode(h.Payload)
}

// ParseHint splits a hint string into its name and decoded payload.
func ParseHint(hint string) (Hint, error) {
	name, payload, ok := strings.Cut(hint, " ")
	if !ok || name == "" {
		return Hint{}, fmt.Errorf("%w: %q", ErrMalformedHint, hint)
	}
	data, err := hexutil.Decode(payload)
	if err != nil {
		return Hint{}, fmt.Errorf("%w: invalid payload of %q: %w", ErrMalformedHint, name, err)
	}
	return Hint{Name: name, Payload: data}, nil
}
