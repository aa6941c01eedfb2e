package ua

import (
	"fmt"
	"strconv"
	"strings"
)

// AttributeID identifies a node attribute. Values match OPC UA.
type AttributeID uint32

const (
	AttrNodeID        AttributeID = 1
	AttrNodeClass     AttributeID = 2
	AttrBrowseName    AttributeID = 3
	AttrDisplayName   AttributeID = 4
	AttrDescription   AttributeID = 5
	AttrWriteMask     AttributeID = 6
	AttrIsAbstract    AttributeID = 8
	AttrSymmetric     AttributeID = 9
	AttrInverseName   AttributeID = 10
	AttrEventNotifier AttributeID = 12
	AttrValue         AttributeID = 13
	AttrDataType      AttributeID = 14
	AttrValueRank     AttributeID = 15
	AttrAccessLevel   AttributeID = 17
	AttrHistorizing   AttributeID = 20
	AttrExecutable    AttributeID = 21
)

var attributeNames = map[AttributeID]string{
	AttrNodeID:        "NodeId",
	AttrNodeClass:     "NodeClass",
	AttrBrowseName:    "BrowseName",
	AttrDisplayName:   "DisplayName",
	AttrDescription:   "Description",
	AttrWriteMask:     "WriteMask",
	AttrIsAbstract:    "IsAbstract",
	AttrSymmetric:     "Symmetric",
	AttrInverseName:   "InverseName",
	AttrEventNotifier: "EventNotifier",
	AttrValue:         "Value",
	AttrDataType:      "DataType",
	AttrValueRank:     "ValueRank",
	AttrAccessLevel:   "AccessLevel",
	AttrHistorizing:   "Historizing",
	AttrExecutable:    "Executable",
}

// attributeTypes is the fixed type of every attribute except Value.
var attributeTypes = map[AttributeID]TypeID{
	AttrNodeID:        TypeNodeID,
	AttrNodeClass:     TypeInt32,
	AttrBrowseName:    TypeQualifiedName,
	AttrDisplayName:   TypeLocalizedText,
	AttrDescription:   TypeLocalizedText,
	AttrWriteMask:     TypeUInt32,
	AttrIsAbstract:    TypeBoolean,
	AttrSymmetric:     TypeBoolean,
	AttrInverseName:   TypeLocalizedText,
	AttrEventNotifier: TypeByte,
	AttrDataType:      TypeNodeID,
	AttrValueRank:     TypeInt32,
	AttrAccessLevel:   TypeByte,
	AttrHistorizing:   TypeBoolean,
	AttrExecutable:    TypeBoolean,
}

func (a AttributeID) String() string {
	if name, ok := attributeNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Attribute(%d)", uint32(a))
}

// Valid reports whether a is a supported attribute.
func (a AttributeID) Valid() bool {
	_, ok := attributeNames[a]
	return ok
}

// FixedType returns the data type of a. Value has no fixed type and
// returns false.
func (a AttributeID) FixedType() (TypeID, bool) {
	t, ok := attributeTypes[a]
	return t, ok
}

// ParseAttributeID parses an attribute name such as "Value" or its numeric id.
func ParseAttributeID(s string) (AttributeID, error) {
	if n, err := strconv.ParseUint(s, 10, 32); err == nil {
		a := AttributeID(n)
		if a.Valid() {
			return a, nil
		}
		return 0, fmt.Errorf("unknown attribute id: %d", n)
	}
	for a, name := range attributeNames {
		if strings.EqualFold(name, s) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown attribute: %s", s)
}

// classAttributes lists the optional and class-specific attributes per node
// class. NodeId, NodeClass, BrowseName, DisplayName, Description and
// WriteMask apply to every class.
var classAttributes = map[NodeClass][]AttributeID{
	NodeClassObject:        {AttrEventNotifier},
	NodeClassVariable:      {AttrValue, AttrDataType, AttrValueRank, AttrAccessLevel, AttrHistorizing},
	NodeClassMethod:        {AttrExecutable},
	NodeClassObjectType:    {AttrIsAbstract},
	NodeClassVariableType:  {AttrValue, AttrDataType, AttrValueRank, AttrIsAbstract},
	NodeClassReferenceType: {AttrIsAbstract, AttrSymmetric, AttrInverseName},
	NodeClassDataType:      {AttrIsAbstract},
	NodeClassView:          {AttrEventNotifier},
}

// AppliesTo reports whether attribute a exists on nodes of class c.
func (a AttributeID) AppliesTo(c NodeClass) bool {
	switch a {
	case AttrNodeID, AttrNodeClass, AttrBrowseName, AttrDisplayName, AttrDescription, AttrWriteMask:
		return c.Valid()
	}
	for _, x := range classAttributes[c] {
		if x == a {
			return true
		}
	}
	return false
}
