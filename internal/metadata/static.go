package metadata

import "fmt"

// AnyType accepts every value unchanged. It stands in for a real
// protocol's richer value types (enums, ranges, structs) in tests and
// the demo gateway.
type AnyType struct{}

// Validate implements ValueType.
func (AnyType) Validate(value any) (any, error) {
	return value, nil
}

// NumberType validates that a value is a float64 or an int, and rejects
// anything else — a minimal stand-in for a real protocol's numeric range
// type.
type NumberType struct{}

// Validate implements ValueType.
func (NumberType) Validate(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return nil, fmt.Errorf("metadata: expected a number, got %T", value)
	}
}

// StaticDeviceMetadata is an in-memory DeviceMetadata backed by plain maps.
type StaticDeviceMetadata struct {
	Functions  map[string]FunctionMetadata
	Properties map[string]PropertyMetadata
}

// Function implements DeviceMetadata.
func (m *StaticDeviceMetadata) Function(name string) (FunctionMetadata, bool) {
	fn, ok := m.Functions[name]
	return fn, ok
}

// Property implements DeviceMetadata.
func (m *StaticDeviceMetadata) Property(name string) (PropertyMetadata, bool) {
	p, ok := m.Properties[name]
	return p, ok
}

// StaticProtocolSupports is an in-memory ProtocolSupports backed by a
// map of protocol name to DeviceMetadata, directly grounded on the
// original implementation's MockProtocolSupports test fixture — the
// Go rendering of "protocol resolution isn't this library's job, but it
// still needs a working implementation to test and demo against".
type StaticProtocolSupports struct {
	protocols map[string]DeviceMetadata
}

// NewStaticProtocolSupports returns an empty registry.
func NewStaticProtocolSupports() *StaticProtocolSupports {
	return &StaticProtocolSupports{protocols: make(map[string]DeviceMetadata)}
}

// Register associates protocol with metadata, overwriting any prior
// registration for the same name.
func (s *StaticProtocolSupports) Register(protocol string, md DeviceMetadata) {
	s.protocols[protocol] = md
}

// Metadata implements ProtocolSupports.
func (s *StaticProtocolSupports) Metadata(protocol string) (DeviceMetadata, error) {
	md, ok := s.protocols[protocol]
	if !ok {
		return nil, &ErrProtocolNotFound{Protocol: protocol}
	}
	return md, nil
}
