package addrspace

import (
	"fmt"
	"time"

	"uaspace/internal/ua"
)

type ns0Node struct {
	spec    NodeSpec
	parent  ua.NodeID
	refType ua.NodeID
}

func referenceTypeNode(id ua.NodeID, name, inverse string, abstract, symmetric bool) NodeSpec {
	attrs := map[ua.AttributeID]ua.Variant{
		ua.AttrIsAbstract: ua.NewBoolean(abstract),
		ua.AttrSymmetric:  ua.NewBoolean(symmetric),
	}
	if inverse != "" {
		attrs[ua.AttrInverseName] = ua.NewLocalizedTextVariant(ua.NewLocalizedText("", inverse))
	}
	return NodeSpec{
		ID:          id,
		Class:       ua.NodeClassReferenceType,
		BrowseName:  ua.NewQualifiedName(0, name),
		DisplayName: ua.NewLocalizedText("", name),
		Attributes:  attrs,
	}
}

func typeNode(id ua.NodeID, class ua.NodeClass, name string) NodeSpec {
	return NodeSpec{
		ID:          id,
		Class:       class,
		BrowseName:  ua.NewQualifiedName(0, name),
		DisplayName: ua.NewLocalizedText("", name),
	}
}

// minimalNodes is the folder and type skeleton of namespace 0, parents
// before children.
func minimalNodes() []ns0Node {
	return []ns0Node{
		{spec: typeNode(ua.BaseObjectType, ua.NodeClassObjectType, "BaseObjectType")},
		{spec: typeNode(ua.FolderType, ua.NodeClassObjectType, "FolderType"), parent: ua.BaseObjectType, refType: ua.HasSubtype},
		{spec: typeNode(ua.BaseDataVariableType, ua.NodeClassVariableType, "BaseDataVariableType")},

		{spec: FolderNode(ua.RootFolder, "Root")},
		{spec: FolderNode(ua.ObjectsFolder, "Objects"), parent: ua.RootFolder, refType: ua.Organizes},
		{spec: FolderNode(ua.TypesFolder, "Types"), parent: ua.RootFolder, refType: ua.Organizes},
		{spec: FolderNode(ua.ViewsFolder, "Views"), parent: ua.RootFolder, refType: ua.Organizes},
		{spec: FolderNode(ua.ObjectTypesFolder, "ObjectTypes"), parent: ua.TypesFolder, refType: ua.Organizes},
		{spec: FolderNode(ua.VariableTypesFolder, "VariableTypes"), parent: ua.TypesFolder, refType: ua.Organizes},
		{spec: FolderNode(ua.ReferenceTypesFolder, "ReferenceTypes"), parent: ua.TypesFolder, refType: ua.Organizes},

		{spec: referenceTypeNode(ua.ReferencesRefType, "References", "", true, true), parent: ua.ReferenceTypesFolder, refType: ua.Organizes},
		{spec: referenceTypeNode(ua.HierarchicalReferences, "HierarchicalReferences", "", true, false), parent: ua.ReferencesRefType, refType: ua.HasSubtype},
		{spec: referenceTypeNode(ua.NonHierarchicalReferences, "NonHierarchicalReferences", "", true, false), parent: ua.ReferencesRefType, refType: ua.HasSubtype},
		{spec: referenceTypeNode(ua.HasChild, "HasChild", "", true, false), parent: ua.HierarchicalReferences, refType: ua.HasSubtype},
		{spec: referenceTypeNode(ua.Organizes, "Organizes", "OrganizedBy", false, false), parent: ua.HierarchicalReferences, refType: ua.HasSubtype},
		{spec: referenceTypeNode(ua.Aggregates, "Aggregates", "", true, false), parent: ua.HasChild, refType: ua.HasSubtype},
		{spec: referenceTypeNode(ua.HasSubtype, "HasSubtype", "SubtypeOf", false, false), parent: ua.HasChild, refType: ua.HasSubtype},
		{spec: referenceTypeNode(ua.HasComponent, "HasComponent", "ComponentOf", false, false), parent: ua.Aggregates, refType: ua.HasSubtype},
		{spec: referenceTypeNode(ua.HasProperty, "HasProperty", "PropertyOf", false, false), parent: ua.Aggregates, refType: ua.HasSubtype},
		{spec: referenceTypeNode(ua.HasTypeDefinition, "HasTypeDefinition", "TypeDefinitionOf", false, false), parent: ua.NonHierarchicalReferences, refType: ua.HasSubtype},
	}
}

func serverNodes(start time.Time) []ns0Node {
	status := func(id ua.NodeID, name string, v ua.Variant) NodeSpec {
		spec := VariableNode(id, name, v)
		spec.Attributes[ua.AttrAccessLevel] = ua.NewByte(uint8(ua.AccessLevelCurrentRead))
		return spec
	}
	server := ObjectNode(ua.Server, "Server")
	server.TypeDefinition = ua.ServerType

	return []ns0Node{
		{spec: typeNode(ua.ServerType, ua.NodeClassObjectType, "ServerType"), parent: ua.BaseObjectType, refType: ua.HasSubtype},
		{spec: server, parent: ua.ObjectsFolder, refType: ua.Organizes},
		{spec: ObjectNode(ua.ServerStatus, "ServerStatus"), parent: ua.Server, refType: ua.HasComponent},
		{spec: status(ua.ServerStatusStartTime, "StartTime", ua.NewDateTime(start)), parent: ua.ServerStatus, refType: ua.HasComponent},
		{spec: status(ua.ServerStatusCurrentTime, "CurrentTime", ua.NewDateTime(start)), parent: ua.ServerStatus, refType: ua.HasComponent},
		{spec: status(ua.ServerStatusState, "State", ua.NewInt32(ua.ServerStateUnknown)), parent: ua.ServerStatus, refType: ua.HasComponent},
	}
}

// Bootstrap populates an empty space with the namespace 0 skeleton: the
// Root, Objects, Types and Views folders, the base types and the standard
// reference type hierarchy. Unless minimal is set it also adds the Server
// object with its ServerStatus StartTime, CurrentTime and State variables.
func Bootstrap(s *Space, minimal bool) error {
	nodes := minimalNodes()
	if !minimal {
		nodes = append(nodes, serverNodes(time.Now())...)
	}

	for _, n := range nodes {
		var err error
		if n.parent.IsNull() {
			err = s.AddNode(n.spec)
		} else {
			err = s.AddNodeUnder(n.spec, n.parent, n.refType)
		}
		if err != nil {
			return fmt.Errorf("bootstrap namespace 0: %w", err)
		}
	}
	return nil
}
