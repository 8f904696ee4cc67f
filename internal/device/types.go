package device

import "time"

// SessionState is a device's connectivity state. A device is unknown
// before it is registered and after it is unregistered, offline immediately after
// registration or after an explicit Offline() call, and online only
// while a server and session ID are both recorded against it.
type SessionState int

const (
	// StateUnknown means the device has never been registered, or has
	// since been unregistered. Operation.State on an unknown ID reports
	// this state rather than an error (Registry.GetDevice returns
	// ErrDeviceNotFound).
	StateUnknown SessionState = iota
	// StateOffline means the device is registered but not currently
	// owned by any server process.
	StateOffline
	// StateOnline means a server process currently owns this device's
	// session.
	StateOnline
)

// String implements fmt.Stringer.
func (s SessionState) String() string {
	switch s {
	case StateOffline:
		return "offline"
	case StateOnline:
		return "online"
	default:
		return "unknown"
	}
}

// Info is the registration payload passed to Registry.RegisterDevice.
type Info struct {
	ID           string
	ProductID    string
	ProjectID    string
	ProjectName  string
	CreatorID    string
	CreatorName  string
	Name         string
	RoomID       string
	AreaID       string
	GatewayID    string
	Address      string
	Capabilities []string
	Tags         []string
}

// Device is a device's full registration record as stored in the
// coordination plane.
type Device struct {
	ID           string       `json:"id"`
	ProductID    string       `json:"product_id"`
	ProjectID    string       `json:"project_id,omitempty"`
	ProjectName  string       `json:"project_name,omitempty"`
	CreatorID    string       `json:"creator_id,omitempty"`
	CreatorName  string       `json:"creator_name,omitempty"`
	Name         string       `json:"name"`
	RoomID       string       `json:"room_id,omitempty"`
	AreaID       string       `json:"area_id,omitempty"`
	GatewayID    string       `json:"gateway_id,omitempty"`
	Address      string       `json:"address,omitempty"`
	Capabilities []string     `json:"capabilities,omitempty"`
	Tags         []string     `json:"tags,omitempty"`
	State        SessionState `json:"state"`
	ServerID     string       `json:"server_id,omitempty"`
	SessionID    string       `json:"session_id,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// DeepCopy returns a Device sharing no backing arrays with d, so a
// cached pointer can be handed to callers without risking an in-place
// mutation by the caller corrupting the cache.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}
	clone := *d
	clone.Capabilities = append([]string(nil), d.Capabilities...)
	clone.Tags = append([]string(nil), d.Tags...)
	return &clone
}
