// Package metadata defines the interfaces meshcore depends on for
// protocol-specific device metadata resolution — function/property
// definitions and value validation — without implementing any concrete
// protocol. This is a genuine boundary in meshcore's scope: how a
// specific device protocol describes its own functions and properties
// belongs to the protocol adapter, not the coordination plane. The
// in-memory implementation here (Static) exists only so tests and demos
// have something to resolve against, mirroring the original's
// MockProtocolSupports test fixture.
package metadata

import "fmt"

// ValueType validates a raw value against a declared type. Concrete
// protocol adapters supply real implementations (an enum type, a range
// type, a struct type); this package ships only the primitives needed
// for tests and the demo gateway.
type ValueType interface {
	Validate(value any) (any, error)
}

// PropertyMetadata describes one named, typed input or property.
type PropertyMetadata struct {
	Name string
	Type ValueType
}

// FunctionMetadata describes a function a device supports: its declared
// inputs and, optionally, its output type.
type FunctionMetadata struct {
	Name   string
	Inputs []PropertyMetadata
	Output ValueType
}

// DeviceMetadata exposes everything a Message Sender needs to validate
// an outgoing message before it is ever published: function and
// read/write property definitions.
type DeviceMetadata interface {
	Function(name string) (FunctionMetadata, bool)
	Property(name string) (PropertyMetadata, bool)
}

// ProtocolSupports resolves a protocol name to its DeviceMetadata. A
// device's product record carries the protocol name; the sender looks
// it up through this interface immediately before validating a builder.
type ProtocolSupports interface {
	Metadata(protocol string) (DeviceMetadata, error)
}

// ErrProtocolNotFound is returned by ProtocolSupports.Metadata when no
// metadata is registered for the given protocol name.
type ErrProtocolNotFound struct {
	Protocol string
}

func (e *ErrProtocolNotFound) Error() string {
	return fmt.Sprintf("metadata: protocol %q not found", e.Protocol)
}
