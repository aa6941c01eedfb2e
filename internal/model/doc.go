// Package model loads information models into an address space.
//
// A model is a YAML or JSON document listing namespaces, nodes and extra
// references:
//
//	namespaces:
//	  - urn:example:plant
//	nodes:
//	  - id: ns=1;s=boiler
//	    class: Object
//	    parent: i=85            # ObjectsFolder
//	    reference_type: Organizes
//	  - id: ns=1;s=temperature
//	    class: Variable
//	    parent: ns=1;s=boiler
//	    reference_type: HasComponent
//	    data_type: Int32
//	    value: 45
//	    historizing: true
//	references:
//	  - source: ns=1;s=boiler
//	    target: i=58
//	    type: HasTypeDefinition
//
// Namespace indexes in a file are local: ns=1 is the first entry of
// namespaces, registered in the server's namespace table on load. A file
// without namespaces uses the server's indexes as they are.
//
// Apply validates the whole document before it adds anything, then adds
// nodes in document order. Nodes that already exist are skipped, which
// lets a restored snapshot take precedence over the model.
//
// The built-in Default model holds the demo temperature variable. Watcher
// applies files dropped into a directory at runtime.
package model
