package ua

import (
	"fmt"
	"strings"
)

// TypeID is a built-in data type tag. Values equal the OPC UA built-in type
// ids, which are also the numeric ids of the DataType nodes in namespace 0.
type TypeID uint8

const (
	TypeNull          TypeID = 0
	TypeBoolean       TypeID = 1
	TypeSByte         TypeID = 2
	TypeByte          TypeID = 3
	TypeInt16         TypeID = 4
	TypeUInt16        TypeID = 5
	TypeInt32         TypeID = 6
	TypeUInt32        TypeID = 7
	TypeInt64         TypeID = 8
	TypeUInt64        TypeID = 9
	TypeFloat         TypeID = 10
	TypeDouble        TypeID = 11
	TypeString        TypeID = 12
	TypeDateTime      TypeID = 13
	TypeByteString    TypeID = 15
	TypeNodeID        TypeID = 17
	TypeQualifiedName TypeID = 20
	TypeLocalizedText TypeID = 21
)

var typeNames = map[TypeID]string{
	TypeBoolean:       "Boolean",
	TypeSByte:         "SByte",
	TypeByte:          "Byte",
	TypeInt16:         "Int16",
	TypeUInt16:        "UInt16",
	TypeInt32:         "Int32",
	TypeUInt32:        "UInt32",
	TypeInt64:         "Int64",
	TypeUInt64:        "UInt64",
	TypeFloat:         "Float",
	TypeDouble:        "Double",
	TypeString:        "String",
	TypeDateTime:      "DateTime",
	TypeByteString:    "ByteString",
	TypeNodeID:        "NodeId",
	TypeQualifiedName: "QualifiedName",
	TypeLocalizedText: "LocalizedText",
}

func (t TypeID) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	if t == TypeNull {
		return "Null"
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// Valid reports whether t is a supported built-in type.
func (t TypeID) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

// DataTypeNodeID returns the namespace 0 DataType node of t.
func (t TypeID) DataTypeNodeID() NodeID {
	return NewNumericNodeID(0, uint32(t))
}

// TypeFromDataType resolves a namespace 0 DataType node id to its tag.
func TypeFromDataType(id NodeID) (TypeID, bool) {
	num, ok := id.IntID()
	if !ok || id.Namespace() != 0 || num > 255 {
		return TypeNull, false
	}
	t := TypeID(num)
	return t, t.Valid()
}

// ParseTypeID parses a type name such as "Int32", case-insensitively.
func ParseTypeID(s string) (TypeID, error) {
	for t, name := range typeNames {
		if strings.EqualFold(name, s) {
			return t, nil
		}
	}
	return TypeNull, fmt.Errorf("unknown data type: %s", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t TypeID) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TypeID) UnmarshalText(text []byte) error {
	v, err := ParseTypeID(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
