package dispatch

import (
	"context"
	"time"
)

// Device is the narrow view of a device's session state the dispatch
// package needs to address it. device.Operation satisfies this
// interface structurally: dispatch never imports the device package, so
// device is free to import dispatch to construct Senders without a
// cyclic import — the idiomatic-Go answer to the original's cyclic
// device/context references.
type Device interface {
	// ID returns the device's identifier.
	ID() string
	// ServerID returns the server currently owning this device's
	// session, or "" if the device is not online.
	ServerID(ctx context.Context) (string, error)
	// CheckOnline reconciles and reports whether the device is online,
	// self-healing a stale session if its owning server has gone away.
	CheckOnline(ctx context.Context, timeout time.Duration) (bool, error)
}

// Interceptor lets callers observe and adjust a message before it's
// published, and its reply before it's returned to the caller —
// grounded on the original's DeviceMessageSenderInterceptor.
type Interceptor interface {
	// PreSend is called with the outbound message before publish. It
	// may return a modified message, or an error to abort the send.
	PreSend(ctx context.Context, device Device, msg Message) (Message, error)
	// AfterReply is called with a successfully decoded reply before
	// Send returns it. It may return a modified reply, or an error to
	// fail the send despite a successful round trip.
	AfterReply(ctx context.Context, device Device, msg Message, reply *Reply) (*Reply, error)
}
