// Package ua defines the value types shared by every layer of the address
// space: node identifiers, node classes, built-in data type tags, variants,
// attribute ids and status codes.
//
// # Node Identifiers
//
// A NodeID is a namespace index plus an identifier that is exactly one of
// numeric, string, GUID or byte string. NodeID values are comparable and
// can be used directly as map keys:
//
//	temp := ua.NewStringNodeID(1, "temperature")
//	objects := ua.ObjectsFolder
//
//	id, err := ua.ParseNodeID("ns=1;s=temperature")
//	fmt.Println(id == temp) // true
//
// # Variants
//
// A Variant pairs a built-in type tag with a Go value. Normalize converts
// the Go value into the exact representation of its tag and rejects values
// that do not fit:
//
//	v, err := ua.Variant{Type: ua.TypeInt32, Value: int64(50)}.Normalize()
//	// v.Value == int32(50)
//
//	_, err = ua.Variant{Type: ua.TypeByte, Value: 300}.Normalize()
//	// errors.Is(err, ua.ErrValueOutOfRange)
package ua
