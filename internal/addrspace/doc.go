// Package addrspace implements an in-memory OPC UA address space: a node
// store, typed attribute access and a reference index with browse.
//
// # Basic Usage
//
//	s := addrspace.New()
//	if err := addrspace.Bootstrap(s, true); err != nil {
//	    log.Fatal(err)
//	}
//
//	temp := ua.NewStringNodeID(1, "temperature")
//	spec := addrspace.VariableNode(temp, "temperature", ua.NewInt32(45))
//	if err := s.AddNodeUnder(spec, ua.ObjectsFolder, ua.Organizes); err != nil {
//	    log.Fatal(err)
//	}
//
//	_ = s.WriteValue(temp, ua.NewInt32(50))
//	v, _ := s.ReadValue(temp) // Int32(50)
//
//	for r := range s.Browse(ua.ObjectsFolder, addrspace.BrowseOptions{ReferenceType: ua.Organizes}) {
//	    fmt.Println(r.NodeID)
//	}
//
// # Typing
//
// A Variable declares its DataType when it is added, defaulting to the
// type of its initial value. Writes must carry exactly that type; no
// implicit conversion between types happens, and integer values that do
// not fit the declared width fail with ErrValueOutOfRange.
//
// # Errors
//
// Operations return *NodeError, *AttrError or *RefError wrapping one of
// the sentinel errors. StatusOf maps each sentinel to one OPC UA status
// code. Broken internal invariants, such as a reference pointing at a
// node that no longer exists, panic.
//
// # Thread Safety
//
// A single RWMutex guards nodes and references. Reads and Browse
// snapshots run concurrently; adds, removes, writes and reference changes
// are exclusive, so endpoint checks and inserts are atomic. After Freeze
// every mutation fails with ErrServerNotRunning.
package addrspace
