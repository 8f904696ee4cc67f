package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gridwire/meshcore/internal/configstore"
	"github.com/gridwire/meshcore/internal/coordination"
	"github.com/gridwire/meshcore/internal/dispatch"
	"github.com/gridwire/meshcore/internal/metadata"
)

// sessionSnapshot is the fast-read session state stored at
// coordination.Keys{}.DeviceState — separate from the full registration
// record so a liveness check or dispatch hot path never has to decode a
// device's name, tags, and capabilities just to learn its server ID.
type sessionSnapshot struct {
	State     SessionState `json:"state"`
	ServerID  string       `json:"server_id,omitempty"`
	SessionID string       `json:"session_id,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// AuthenticationRequest carries whatever credential material a gateway
// node presents when claiming a device's session. It is intentionally
// opaque — concrete authentication backends are out of scope here, only
// the call site is preserved.
type AuthenticationRequest struct {
	Credentials map[string]any
}

// AuthenticationResponse is the result of an Authenticate call.
type AuthenticationResponse struct {
	Success bool
	Reason  string
}

// Authenticator validates an AuthenticationRequest before a device's
// session is claimed. The default is a no-op that always succeeds —
// concrete identity backends plug in by implementing this interface and
// calling Registry.SetAuthenticator.
type Authenticator interface {
	Authenticate(ctx context.Context, id string, req AuthenticationRequest) (AuthenticationResponse, error)
}

// noopAuthenticator accepts every request, the default until a real
// identity backend is wired in.
type noopAuthenticator struct{}

func (noopAuthenticator) Authenticate(context.Context, string, AuthenticationRequest) (AuthenticationResponse, error) {
	return AuthenticationResponse{Success: true}, nil
}

// Operation is a handle to a single device's session state and config.
// It satisfies the narrow Device interface the dispatch package declares
// for itself, so dispatch can address a device without importing this
// package — device imports dispatch to build senders, not the other way
// around.
type Operation struct {
	id       string
	store    coordination.Store
	registry *Registry
	config   *configstore.Composed
}

// NewOperation returns an Operation bound to a device's session state,
// reporting session-state changes to registry's cache so GetDevice stays
// consistent without a full RefreshCache.
func NewOperation(store coordination.Store, registry *Registry, config *configstore.Composed, id string) *Operation {
	return &Operation{id: id, store: store, registry: registry, config: config}
}

// Authenticate runs the registry's configured Authenticator against req.
// Call sites that never wire a real identity backend still get the
// no-op default, preserving the original's authenticate() step ahead of
// Online without requiring one here.
func (o *Operation) Authenticate(ctx context.Context, req AuthenticationRequest) (AuthenticationResponse, error) {
	return o.registry.authenticator.Authenticate(ctx, o.id, req)
}

// ID returns the device's identifier.
func (o *Operation) ID() string {
	return o.id
}

// Config returns the device's composed config view (device overrides
// shadowing product defaults).
func (o *Operation) Config() *configstore.Composed {
	return o.config
}

// Online claims this device's session for serverID/sessionID, atomically
// replacing whatever session was previously recorded. Re-claiming with a
// new sessionID from the same or a different server is how a device
// moves to a new gateway connection without an explicit Offline first.
func (o *Operation) Online(ctx context.Context, serverID, sessionID string) error {
	if serverID == "" || sessionID == "" {
		return fmt.Errorf("device %s: %w", o.id, ErrInvalidDevice)
	}
	snap := sessionSnapshot{
		State:     StateOnline,
		ServerID:  serverID,
		SessionID: sessionID,
		UpdatedAt: time.Now().UTC(),
	}
	if err := o.write(ctx, snap); err != nil {
		return err
	}
	o.registry.updateCache(o.id, func(d *Device) {
		d.State, d.ServerID, d.SessionID, d.UpdatedAt = snap.State, snap.ServerID, snap.SessionID, snap.UpdatedAt
	})
	return nil
}

// Offline unconditionally marks the device offline, clearing its server
// and session IDs.
func (o *Operation) Offline(ctx context.Context) error {
	snap := sessionSnapshot{State: StateOffline, UpdatedAt: time.Now().UTC()}
	if err := o.write(ctx, snap); err != nil {
		return err
	}
	o.registry.updateCache(o.id, func(d *Device) {
		d.State, d.ServerID, d.SessionID, d.UpdatedAt = snap.State, "", "", snap.UpdatedAt
	})
	return nil
}

// OfflineSession marks the device offline only if its current session ID
// matches sessionID. This guards against a stale gateway node tearing
// down a session a newer connection has already replaced: if the
// recorded session no longer matches, ErrSessionMismatch is returned and
// the device's state is left untouched.
func (o *Operation) OfflineSession(ctx context.Context, sessionID string) error {
	current, err := o.snapshot(ctx)
	if err != nil {
		return err
	}
	if current.State != StateOnline || current.SessionID != sessionID {
		return fmt.Errorf("device %s: %w", o.id, ErrSessionMismatch)
	}
	return o.Offline(ctx)
}

// State returns the device's current session state.
func (o *Operation) State(ctx context.Context) (SessionState, error) {
	snap, err := o.snapshot(ctx)
	if err != nil {
		return StateUnknown, err
	}
	return snap.State, nil
}

// IsOnline reports whether the device currently has an active session.
func (o *Operation) IsOnline(ctx context.Context) (bool, error) {
	state, err := o.State(ctx)
	if err != nil {
		return false, err
	}
	return state == StateOnline, nil
}

// ServerID returns the server ID currently recorded for this device's
// session, or "" if the device is not online.
func (o *Operation) ServerID(ctx context.Context) (string, error) {
	snap, err := o.snapshot(ctx)
	if err != nil {
		return "", err
	}
	return snap.ServerID, nil
}

// SessionID returns the session ID currently recorded for this device,
// or "" if the device is not online.
func (o *Operation) SessionID(ctx context.Context) (string, error) {
	snap, err := o.snapshot(ctx)
	if err != nil {
		return "", err
	}
	return snap.SessionID, nil
}

// CheckState reconciles a device that claims to be online against the
// liveness of the server process that owns its session. It publishes a
// probe to that server's alive-check topic; if nobody is subscribed
// (subscribers == 0), the owning server process is gone and the session
// is self-healed to offline, the same recovery path the coordination
// layer's pub/sub subscriber count exists to support.
func (o *Operation) CheckState(ctx context.Context, timeout time.Duration) (SessionState, error) {
	snap, err := o.snapshot(ctx)
	if err != nil {
		return StateUnknown, err
	}
	if snap.State != StateOnline {
		return snap.State, nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	subscribers, err := o.store.Publish(probeCtx, coordination.Keys{}.AliveCheck(snap.ServerID), []byte(o.id))
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return StateUnknown, fmt.Errorf("probing server %s for device %s: %w", snap.ServerID, o.id, err)
	}
	if subscribers > 0 {
		return StateOnline, nil
	}

	if err := o.Offline(ctx); err != nil {
		return StateUnknown, err
	}
	return StateOffline, nil
}

// CheckOnline reconciles and reports whether the device is currently
// online, self-healing a stale session the way CheckState does. It
// satisfies dispatch.Device's CheckOnline method structurally, letting
// dispatch address a device without importing this package.
func (o *Operation) CheckOnline(ctx context.Context, timeout time.Duration) (bool, error) {
	state, err := o.CheckState(ctx, timeout)
	if err != nil {
		return false, err
	}
	return state == StateOnline, nil
}

// Sender returns a dispatch.Sender addressing this device, validating
// messages against md (the device's resolved protocol metadata) and
// running interceptors around every send. The caller resolves md from
// the device's product's protocol — Operation itself has no opinion on
// protocols, only on session state.
func (o *Operation) Sender(md metadata.DeviceMetadata, cfg dispatch.Config, interceptors []dispatch.Interceptor) *dispatch.Sender {
	return dispatch.NewSender(o.store, o, md, cfg, interceptors)
}

func (o *Operation) snapshot(ctx context.Context) (sessionSnapshot, error) {
	raw, found, err := o.store.Get(ctx, coordination.Keys{}.DeviceState(o.id))
	if err != nil {
		return sessionSnapshot{}, fmt.Errorf("reading device %s session state: %w", o.id, err)
	}
	if !found {
		return sessionSnapshot{State: StateUnknown}, nil
	}
	var snap sessionSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return sessionSnapshot{}, fmt.Errorf("decoding device %s session state: %w", o.id, err)
	}
	return snap, nil
}

func (o *Operation) write(ctx context.Context, snap sessionSnapshot) error {
	encoded, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding device %s session state: %w", o.id, err)
	}
	if err := o.store.Set(ctx, coordination.Keys{}.DeviceState(o.id), encoded, 0); err != nil {
		return fmt.Errorf("writing device %s session state: %w", o.id, err)
	}
	return nil
}
