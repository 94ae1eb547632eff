package preimage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeyLength is the size of a key on the wire: one kind byte followed by the 32 byte digest.
const KeyLength = 1 + common.HashLength

// NamespaceSize is the size of a DA namespace embedded into DA key digests.
const NamespaceSize = 29

// KeyKind is the type of preimage a key refers to. It determines how the value is verified.
type KeyKind byte

const (
	// LocalKeyKind is a key local to the program, served from the host's boot inputs.
	LocalKeyKind KeyKind = 1
	// Keccak256KeyKind is a key whose digest is the keccak256 hash of the value.
	Keccak256KeyKind KeyKind = 2
	// GlobalGenericKeyKind is a key for arbitrary host-verified data, such as DA proof bundles.
	GlobalGenericKeyKind KeyKind = 3
	// Sha256KeyKind is a key whose digest is the sha256 hash of the value.
	Sha256KeyKind KeyKind = 4
	// BlobKeyKind is a key for a single blob field element.
	BlobKeyKind KeyKind = 5
	// PrecompileKeyKind is a key for the result of an accelerated precompile call.
	PrecompileKeyKind KeyKind = 6
	// DANamespaceKeyKind is a key for a DA blob, referenced by height, namespace and commitment.
	DANamespaceKeyKind KeyKind = 7
)

var ErrUnknownKeyKind = errors.New("unknown key kind")

func (k KeyKind) String() string {
	switch k {
	case LocalKeyKind:
		return "local"
	case Keccak256KeyKind:
		return "keccak256"
	case GlobalGenericKeyKind:
		return "global-generic"
	case Sha256KeyKind:
		return "sha256"
	case BlobKeyKind:
		return "blob"
	case PrecompileKeyKind:
		return "precompile"
	case DANamespaceKeyKind:
		return "da-namespace"
	default:
		return fmt.Sprintf("unknown(%d)", byte(k))
	}
}

func (k KeyKind) Valid() bool {
	return k >= LocalKeyKind && k <= DANamespaceKeyKind
}

// SelfVerifying reports whether values of this kind can be checked against the key digest alone.
func (k KeyKind) SelfVerifying() bool {
	return k == Keccak256KeyKind || k == Sha256KeyKind
}

// Key identifies a preimage. It is a comparable value type and may be used as a map key.
type Key struct {
	Kind   KeyKind
	Digest common.Hash
}

func LocalIndexKey(index uint64) Key {
	var digest common.Hash
	binary.BigEndian.PutUint64(digest[24:], index)
	return Key{Kind: LocalKeyKind, Digest: digest}
}

func Keccak256Key(h common.Hash) Key {
	return Key{Kind: Keccak256KeyKind, Digest: h}
}

func Sha256Key(h common.Hash) Key {
	return Key{Kind: Sha256KeyKind, Digest: h}
}

func GlobalGenericKey(h common.Hash) Key {
	return Key{Kind: GlobalGenericKeyKind, Digest: h}
}

func BlobKey(h common.Hash) Key {
	return Key{Kind: BlobKeyKind, Digest: h}
}

func PrecompileKey(h common.Hash) Key {
	return Key{Kind: PrecompileKeyKind, Digest: h}
}

// DANamespaceKey commits to the DA height, the 29 byte namespace and the blob commitment.
// The digest is keccak256(height_le64 ++ commitment ++ namespace).
func DANamespaceKey(height uint64, namespace []byte, commitment common.Hash) Key {
	return Key{Kind: DANamespaceKeyKind, Digest: crypto.Keccak256Hash(DAPointer(height, commitment), padNamespace(namespace))}
}

// DAPointer is the little-endian height followed by the blob commitment, as used in DA hints
// and as the preimage of the proof bundle key.
func DAPointer(height uint64, commitment common.Hash) []byte {
	out := binary.LittleEndian.AppendUint64(make([]byte, 0, 8+common.HashLength), height)
	return append(out, commitment[:]...)
}

func padNamespace(ns []byte) []byte {
	out := make([]byte, NamespaceSize)
	copy(out[NamespaceSize-min(len(ns), NamespaceSize):], ns)
	return out
}

// LocalIndex returns the index encoded in a local key.
func (k Key) LocalIndex() uint64 {
	return binary.BigEndian.Uint64(k.Digest[24:])
}

// Marshal encodes the key as a kind byte followed by the digest.
func (k Key) Marshal() [KeyLength]byte {
	var out [KeyLength]byte
	out[0] = byte(k.Kind)
	copy(out[1:], k.Digest[:])
	return out
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s", k.Kind, k.Digest)
}

// UnmarshalKey decodes a key from its wire encoding.
func UnmarshalKey(data []byte) (Key, error) {
	if len(data) != KeyLength {
		return Key{}, fmt.Errorf("invalid key length %d, expected %d", len(data), KeyLength)
	}
	kind := KeyKind(data[0])
	if !kind.Valid() {
		return Key{}, fmt.Errorf("%w: %d", ErrUnknownKeyKind, data[0])
	}
	return Key{Kind: kind, Digest: common.BytesToHash(data[1:])}, nil
}

// Compare orders keys by kind, then by digest.
func Compare(a, b Key) int {
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	return bytes.Compare(a.Digest[:], b.Digest[:])
}
