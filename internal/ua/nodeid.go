package ua

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidNodeID is returned when a node id string cannot be parsed.
var ErrInvalidNodeID = errors.New("invalid node id")

// IDType identifies which variant of the identifier union a NodeID holds.
type IDType uint8

const (
	IDNumeric IDType = iota
	IDString
	IDGUID
	IDByteString
)

func (t IDType) String() string {
	switch t {
	case IDNumeric:
		return "numeric"
	case IDString:
		return "string"
	case IDGUID:
		return "guid"
	case IDByteString:
		return "bytestring"
	default:
		return "unknown"
	}
}

// NodeID uniquely identifies a node. The zero value is the null id (i=0).
//
// Byte string identifiers are held as an immutable string so that NodeID
// stays comparable.
type NodeID struct {
	ns   uint16
	kind IDType
	num  uint32
	str  string
	guid uuid.UUID
}

// NullNodeID is the null node id.
var NullNodeID = NodeID{}

// NewNumericNodeID returns a numeric node id.
func NewNumericNodeID(ns uint16, id uint32) NodeID {
	return NodeID{ns: ns, kind: IDNumeric, num: id}
}

// NewStringNodeID returns a string node id.
func NewStringNodeID(ns uint16, id string) NodeID {
	return NodeID{ns: ns, kind: IDString, str: id}
}

// NewGUIDNodeID returns a GUID node id.
func NewGUIDNodeID(ns uint16, id uuid.UUID) NodeID {
	return NodeID{ns: ns, kind: IDGUID, guid: id}
}

// NewByteStringNodeID returns an opaque node id. The bytes are copied.
func NewByteStringNodeID(ns uint16, id []byte) NodeID {
	return NodeID{ns: ns, kind: IDByteString, str: string(id)}
}

// Namespace returns the namespace index.
func (n NodeID) Namespace() uint16 { return n.ns }

// WithNamespace returns a copy of n in namespace ns.
func (n NodeID) WithNamespace(ns uint16) NodeID {
	n.ns = ns
	return n
}

// Type returns the identifier type.
func (n NodeID) Type() IDType { return n.kind }

// IsNull reports whether n is the null id.
func (n NodeID) IsNull() bool { return n == NullNodeID }

// IntID returns the numeric identifier.
func (n NodeID) IntID() (uint32, bool) {
	return n.num, n.kind == IDNumeric
}

// StringID returns the string identifier.
func (n NodeID) StringID() (string, bool) {
	if n.kind != IDString {
		return "", false
	}
	return n.str, true
}

// GUIDID returns the GUID identifier.
func (n NodeID) GUIDID() (uuid.UUID, bool) {
	return n.guid, n.kind == IDGUID
}

// ByteStringID returns a copy of the opaque identifier.
func (n NodeID) ByteStringID() ([]byte, bool) {
	if n.kind != IDByteString {
		return nil, false
	}
	return []byte(n.str), true
}

// String formats n in the OPC UA text notation, e.g. "ns=1;s=temperature".
func (n NodeID) String() string {
	var b strings.Builder
	if n.ns != 0 {
		b.WriteString("ns=")
		b.WriteString(strconv.FormatUint(uint64(n.ns), 10))
		b.WriteByte(';')
	}
	switch n.kind {
	case IDNumeric:
		b.WriteString("i=")
		b.WriteString(strconv.FormatUint(uint64(n.num), 10))
	case IDString:
		b.WriteString("s=")
		b.WriteString(n.str)
	case IDGUID:
		b.WriteString("g=")
		b.WriteString(n.guid.String())
	case IDByteString:
		b.WriteString("b=")
		b.WriteString(base64.StdEncoding.EncodeToString([]byte(n.str)))
	}
	return b.String()
}

// ParseNodeID parses the OPC UA text notation. The short form "1:name" is
// accepted as a string identifier in namespace 1.
func ParseNodeID(s string) (NodeID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return NodeID{}, fmt.Errorf("%w: empty", ErrInvalidNodeID)
	}

	var ns uint16
	rest := s
	if strings.HasPrefix(rest, "ns=") {
		idx := strings.IndexByte(rest, ';')
		if idx < 0 {
			return NodeID{}, fmt.Errorf("%w: %q missing ';'", ErrInvalidNodeID, s)
		}
		v, err := strconv.ParseUint(rest[3:idx], 10, 16)
		if err != nil {
			return NodeID{}, fmt.Errorf("%w: %q bad namespace", ErrInvalidNodeID, s)
		}
		ns = uint16(v)
		rest = rest[idx+1:]
	}

	if len(rest) >= 2 && rest[1] == '=' {
		body := rest[2:]
		switch rest[0] {
		case 'i':
			v, err := strconv.ParseUint(body, 10, 32)
			if err != nil {
				return NodeID{}, fmt.Errorf("%w: %q bad numeric identifier", ErrInvalidNodeID, s)
			}
			return NewNumericNodeID(ns, uint32(v)), nil
		case 's':
			if body == "" {
				return NodeID{}, fmt.Errorf("%w: %q empty string identifier", ErrInvalidNodeID, s)
			}
			return NewStringNodeID(ns, body), nil
		case 'g':
			g, err := uuid.Parse(body)
			if err != nil {
				return NodeID{}, fmt.Errorf("%w: %q bad guid: %v", ErrInvalidNodeID, s, err)
			}
			return NewGUIDNodeID(ns, g), nil
		case 'b':
			raw, err := base64.StdEncoding.DecodeString(body)
			if err != nil {
				return NodeID{}, fmt.Errorf("%w: %q bad base64: %v", ErrInvalidNodeID, s, err)
			}
			return NewByteStringNodeID(ns, raw), nil
		}
	}

	if s == rest {
		if idx := strings.IndexByte(rest, ':'); idx > 0 {
			v, err := strconv.ParseUint(rest[:idx], 10, 16)
			if err == nil && idx+1 < len(rest) {
				return NewStringNodeID(uint16(v), rest[idx+1:]), nil
			}
		}
	}

	return NodeID{}, fmt.Errorf("%w: %q", ErrInvalidNodeID, s)
}

// MustParseNodeID is like ParseNodeID but panics on error.
func MustParseNodeID(s string) NodeID {
	id, err := ParseNodeID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// MarshalText implements encoding.TextMarshaler.
func (n NodeID) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *NodeID) UnmarshalText(text []byte) error {
	id, err := ParseNodeID(string(text))
	if err != nil {
		return err
	}
	*n = id
	return nil
}
