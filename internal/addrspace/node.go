package addrspace

import (
	"maps"

	"uaspace/internal/ua"
)

// NodeSpec describes a node to add.
//
// BrowseName defaults to the string form of the identifier and DisplayName
// to the browse name. Attributes holds the class-specific attributes;
// identity attributes (NodeId, NodeClass) are taken from ID and Class. A
// non-null TypeDefinition adds a HasTypeDefinition reference.
type NodeSpec struct {
	ID             ua.NodeID
	Class          ua.NodeClass
	BrowseName     ua.QualifiedName
	DisplayName    ua.LocalizedText
	Description    ua.LocalizedText
	TypeDefinition ua.NodeID
	Attributes     map[ua.AttributeID]ua.Variant
}

// ObjectNode returns the NodeSpec of an Object named name.
func ObjectNode(id ua.NodeID, name string) NodeSpec {
	return NodeSpec{
		ID:          id,
		Class:       ua.NodeClassObject,
		BrowseName:  ua.NewQualifiedName(id.Namespace(), name),
		DisplayName: ua.NewLocalizedText("", name),
	}
}

// FolderNode returns the NodeSpec of a folder Object.
func FolderNode(id ua.NodeID, name string) NodeSpec {
	spec := ObjectNode(id, name)
	spec.TypeDefinition = ua.FolderType
	return spec
}

// VariableNode returns the NodeSpec of a readable and writable Variable whose
// data type is the tag of value.
func VariableNode(id ua.NodeID, name string, value ua.Variant) NodeSpec {
	return NodeSpec{
		ID:             id,
		Class:          ua.NodeClassVariable,
		BrowseName:     ua.NewQualifiedName(id.Namespace(), name),
		DisplayName:    ua.NewLocalizedText("", name),
		TypeDefinition: ua.BaseDataVariableType,
		Attributes: map[ua.AttributeID]ua.Variant{
			ua.AttrValue: value,
		},
	}
}

// NodeView is a read-only copy of a node. Mutating it does not affect the
// address space.
type NodeView struct {
	ID          ua.NodeID                     `json:"id"`
	Class       ua.NodeClass                  `json:"class"`
	BrowseName  ua.QualifiedName              `json:"browse_name"`
	DisplayName ua.LocalizedText              `json:"display_name"`
	Description ua.LocalizedText              `json:"description"`
	Attributes  map[ua.AttributeID]ua.Variant `json:"attributes,omitempty"`
}

// Attribute returns the value of attribute a.
func (v NodeView) Attribute(a ua.AttributeID) (ua.Variant, bool) {
	switch a {
	case ua.AttrNodeID:
		return ua.NewNodeIDVariant(v.ID), true
	case ua.AttrNodeClass:
		return ua.NewInt32(int32(v.Class)), true
	case ua.AttrBrowseName:
		return ua.NewQualifiedNameVariant(v.BrowseName), true
	case ua.AttrDisplayName:
		return ua.NewLocalizedTextVariant(v.DisplayName), true
	case ua.AttrDescription:
		return ua.NewLocalizedTextVariant(v.Description), true
	}
	val, ok := v.Attributes[a]
	return val, ok
}

// Value returns the Value attribute of a Variable.
func (v NodeView) Value() (ua.Variant, bool) {
	return v.Attribute(ua.AttrValue)
}

// DataType returns the declared data type of a Variable.
func (v NodeView) DataType() (ua.TypeID, bool) {
	dt, ok := v.Attributes[ua.AttrDataType]
	if !ok {
		return ua.TypeNull, false
	}
	id, _ := dt.Value.(ua.NodeID)
	return ua.TypeFromDataType(id)
}

// Spec converts the view back into a NodeSpec. References, including the
// type definition, are not part of a view.
func (v NodeView) Spec() NodeSpec {
	return NodeSpec{
		ID:          v.ID,
		Class:       v.Class,
		BrowseName:  v.BrowseName,
		DisplayName: v.DisplayName,
		Description: v.Description,
		Attributes:  cloneAttributes(v.Attributes),
	}
}

// node is the stored form. Only Space touches it, under its lock.
type node struct {
	id    ua.NodeID
	class ua.NodeClass
	seq   uint64
	attrs map[ua.AttributeID]ua.Variant
}

func (n *node) view() NodeView {
	v := NodeView{
		ID:         n.id,
		Class:      n.class,
		Attributes: make(map[ua.AttributeID]ua.Variant, len(n.attrs)),
	}
	for a, val := range n.attrs {
		switch a {
		case ua.AttrBrowseName:
			v.BrowseName = val.Value.(ua.QualifiedName)
		case ua.AttrDisplayName:
			v.DisplayName = val.Value.(ua.LocalizedText)
		case ua.AttrDescription:
			v.Description = val.Value.(ua.LocalizedText)
		default:
			v.Attributes[a] = val.Clone()
		}
	}
	return v
}

// declaredType returns the tag a Value write must carry.
func (n *node) declaredType() (ua.TypeID, bool) {
	dt, ok := n.attrs[ua.AttrDataType]
	if !ok {
		return ua.TypeNull, false
	}
	return ua.TypeFromDataType(dt.Value.(ua.NodeID))
}

func (n *node) accessLevel() ua.AccessLevel {
	al, ok := n.attrs[ua.AttrAccessLevel]
	if !ok {
		return 0
	}
	return ua.AccessLevel(al.Value.(uint8))
}

func (n *node) historizing() bool {
	h, ok := n.attrs[ua.AttrHistorizing]
	return ok && h.Value.(bool)
}

func cloneAttributes(attrs map[ua.AttributeID]ua.Variant) map[ua.AttributeID]ua.Variant {
	if attrs == nil {
		return nil
	}
	out := maps.Clone(attrs)
	for a, v := range out {
		out[a] = v.Clone()
	}
	return out
}

// classDefaults are filled in when a spec omits them.
var classDefaults = map[ua.NodeClass]map[ua.AttributeID]ua.Variant{
	ua.NodeClassObject: {
		ua.AttrEventNotifier: ua.NewByte(0),
	},
	ua.NodeClassVariable: {
		ua.AttrValueRank:   ua.NewInt32(-1),
		ua.AttrAccessLevel: ua.NewByte(uint8(ua.AccessLevelReadWrite)),
		ua.AttrHistorizing: ua.NewBoolean(false),
	},
	ua.NodeClassMethod: {
		ua.AttrExecutable: ua.NewBoolean(true),
	},
	ua.NodeClassObjectType: {
		ua.AttrIsAbstract: ua.NewBoolean(false),
	},
	ua.NodeClassVariableType: {
		ua.AttrValueRank:  ua.NewInt32(-1),
		ua.AttrIsAbstract: ua.NewBoolean(false),
	},
	ua.NodeClassReferenceType: {
		ua.AttrIsAbstract: ua.NewBoolean(false),
		ua.AttrSymmetric:  ua.NewBoolean(false),
	},
	ua.NodeClassDataType: {
		ua.AttrIsAbstract: ua.NewBoolean(false),
	},
	ua.NodeClassView: {
		ua.AttrEventNotifier: ua.NewByte(0),
	},
}

// buildNode validates spec and returns the node to store. Every failure is
// reported as ErrInvalidClass.
func buildNode(op string, spec NodeSpec) (*node, error) {
	id := spec.ID
	if id.IsNull() {
		return nil, &NodeError{Op: op, ID: id, Err: ua.ErrInvalidNodeID, Reason: "null node id"}
	}
	if !spec.Class.Valid() {
		return nil, invalidClass(op, id, "unknown class %d", uint32(spec.Class))
	}

	n := &node{id: id, class: spec.Class, attrs: make(map[ua.AttributeID]ua.Variant)}

	for a, v := range spec.Attributes {
		switch {
		case a == ua.AttrNodeID || a == ua.AttrNodeClass:
			return nil, invalidClass(op, id, "%s is derived from the node", a)
		case !a.AppliesTo(spec.Class):
			return nil, invalidClass(op, id, "%s does not apply to %s", a, spec.Class)
		}
		if fixed, ok := a.FixedType(); ok && v.Type != fixed {
			return nil, invalidClass(op, id, "%s must be %s, got %s", a, fixed, v.Type)
		}
		norm, err := v.Normalize()
		if err != nil {
			return nil, invalidClass(op, id, "%s: %v", a, err)
		}
		n.attrs[a] = norm
	}

	if spec.BrowseName.Name != "" {
		n.attrs[ua.AttrBrowseName] = ua.NewQualifiedNameVariant(spec.BrowseName)
	}
	if _, ok := n.attrs[ua.AttrBrowseName]; !ok {
		name := id.String()
		if s, ok := id.StringID(); ok {
			name = s
		}
		n.attrs[ua.AttrBrowseName] = ua.NewQualifiedNameVariant(ua.NewQualifiedName(id.Namespace(), name))
	}
	if spec.DisplayName.Text != "" {
		n.attrs[ua.AttrDisplayName] = ua.NewLocalizedTextVariant(spec.DisplayName)
	}
	if _, ok := n.attrs[ua.AttrDisplayName]; !ok {
		bn := n.attrs[ua.AttrBrowseName].Value.(ua.QualifiedName)
		n.attrs[ua.AttrDisplayName] = ua.NewLocalizedTextVariant(ua.NewLocalizedText("", bn.Name))
	}
	if spec.Description.Text != "" || spec.Description.Locale != "" {
		n.attrs[ua.AttrDescription] = ua.NewLocalizedTextVariant(spec.Description)
	}
	if _, ok := n.attrs[ua.AttrDescription]; !ok {
		n.attrs[ua.AttrDescription] = ua.NewLocalizedTextVariant(ua.LocalizedText{})
	}
	if _, ok := n.attrs[ua.AttrWriteMask]; !ok {
		n.attrs[ua.AttrWriteMask] = ua.NewUInt32(0)
	}

	if err := checkValue(op, n); err != nil {
		return nil, err
	}

	for a, v := range classDefaults[spec.Class] {
		if _, ok := n.attrs[a]; !ok {
			n.attrs[a] = v
		}
	}
	return n, nil
}

// checkValue enforces that a Variable has a value whose tag matches its
// declared data type. VariableTypes may omit the value.
func checkValue(op string, n *node) error {
	if n.class != ua.NodeClassVariable && n.class != ua.NodeClassVariableType {
		return nil
	}
	val, hasValue := n.attrs[ua.AttrValue]
	dt, hasType := n.attrs[ua.AttrDataType]

	switch {
	case !hasValue && n.class == ua.NodeClassVariable:
		return invalidClass(op, n.id, "Variable requires a Value")
	case !hasValue && hasType:
		return invalidClass(op, n.id, "DataType without a Value")
	case !hasValue:
		return nil
	}
	if val.IsNull() {
		return invalidClass(op, n.id, "Value must not be null")
	}
	if !hasType {
		n.attrs[ua.AttrDataType] = ua.NewNodeIDVariant(val.Type.DataTypeNodeID())
		return nil
	}
	declared, ok := ua.TypeFromDataType(dt.Value.(ua.NodeID))
	if !ok {
		return invalidClass(op, n.id, "unsupported DataType %s", dt.Value)
	}
	if declared != val.Type {
		return invalidClass(op, n.id, "Value is %s but DataType is %s", val.Type, declared)
	}
	return nil
}
