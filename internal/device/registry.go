package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gridwire/meshcore/internal/configstore"
	"github.com/gridwire/meshcore/internal/coordination"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides device registration and lookup with caching and
// thread safety. It wraps a Repository and adds an in-memory cache for
// fast reads — every dispatch needs to resolve a device's session state
// before it can even reach the coordination store.
//
// The cache is populated on startup via RefreshCache() and kept in sync
// by cache-invalidating CRUD operations.
//
// All public methods are thread-safe.
type Registry struct {
	repo          Repository
	store         coordination.Store
	cache         map[string]*Device
	cacheMu       sync.RWMutex
	logger        Logger
	authenticator Authenticator
}

// NewRegistry creates a new device registry. store is used directly (not
// through repo) to build Operation handles for session-state management.
func NewRegistry(repo Repository, store coordination.Store) *Registry {
	return &Registry{
		repo:          repo,
		store:         store,
		cache:         make(map[string]*Device),
		logger:        noopLogger{},
		authenticator: noopAuthenticator{},
	}
}

// SetAuthenticator sets the Authenticator every Operation built from this
// registry delegates to. Passing nil restores the no-op default.
func (r *Registry) SetAuthenticator(a Authenticator) {
	if a == nil {
		a = noopAuthenticator{}
	}
	r.authenticator = a
}

// Operation returns a handle to id's session state and config, composing
// its device-level overrides with productConfig. The registry's cache
// isn't required to contain id already — a device may be the target of
// an Operation before a RefreshCache has run.
func (r *Registry) Operation(id string, productConfig *configstore.Handle) *Operation {
	deviceConfig := configstore.NewHandle(r.store, configstore.ScopeDevice, id)
	composed := configstore.NewComposed(deviceConfig, productConfig)
	return NewOperation(r.store, r, composed, id)
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.logger = logger
}

// RefreshCache reloads all devices from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*Device, len(devices))
	for i := range devices {
		d := devices[i]
		r.cache[d.ID] = d.DeepCopy()
	}

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// GetDevice retrieves a device by ID.
// Returns ErrDeviceNotFound if the device does not exist.
// The returned device is a deep copy; callers can safely modify it.
func (r *Registry) GetDevice(ctx context.Context, id string) (*Device, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()
	if ok {
		return cached.DeepCopy(), nil
	}

	d, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[id] = d.DeepCopy()
	r.cacheMu.Unlock()

	return d, nil
}

// ListDevices retrieves all devices.
func (r *Registry) ListDevices(ctx context.Context) ([]Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	if len(r.cache) > 0 {
		devices := make([]Device, 0, len(r.cache))
		for _, d := range r.cache {
			devices = append(devices, *d.DeepCopy())
		}
		return devices, nil
	}

	return r.repo.List(ctx)
}

// RegisterDevice registers a new device. Newly registered devices start
// offline — a device only transitions to online through Operation.Online
// once a gateway node actually claims its session.
func (r *Registry) RegisterDevice(ctx context.Context, info Info) (*Device, error) {
	if info.ID == "" || info.ProductID == "" {
		return nil, ErrInvalidDevice
	}

	now := time.Now().UTC()
	d := &Device{
		ID:           info.ID,
		ProductID:    info.ProductID,
		ProjectID:    info.ProjectID,
		ProjectName:  info.ProjectName,
		CreatorID:    info.CreatorID,
		CreatorName:  info.CreatorName,
		Name:         info.Name,
		RoomID:       info.RoomID,
		AreaID:       info.AreaID,
		GatewayID:    info.GatewayID,
		Address:      info.Address,
		Capabilities: info.Capabilities,
		Tags:         info.Tags,
		State:        StateOffline,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := r.repo.Create(ctx, d); err != nil {
		return nil, err
	}

	// Write an initial offline session snapshot so Operation.State agrees
	// with the record's State field for a device that has never come
	// online — without this, a freshly registered device reads back as
	// StateUnknown at the session layer until its first Online call.
	op := NewOperation(r.store, r, nil, d.ID)
	if err := op.write(ctx, sessionSnapshot{State: StateOffline, UpdatedAt: now}); err != nil {
		return nil, fmt.Errorf("writing initial session state for device %s: %w", d.ID, err)
	}

	r.cacheMu.Lock()
	r.cache[d.ID] = d.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("device registered", "id", d.ID, "product_id", d.ProductID)
	return d.DeepCopy(), nil
}

// UnregisterDevice removes a device's registration entirely.
func (r *Registry) UnregisterDevice(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("device unregistered", "id", id)
	return nil
}

// GetDevicesByRoom retrieves all registered devices in a specific room.
func (r *Registry) GetDevicesByRoom(_ context.Context, roomID string) ([]Device, error) {
	return r.filter(func(d *Device) bool { return d.RoomID == roomID }), nil
}

// GetDevicesByArea retrieves all registered devices in a specific area.
func (r *Registry) GetDevicesByArea(_ context.Context, areaID string) ([]Device, error) {
	return r.filter(func(d *Device) bool { return d.AreaID == areaID }), nil
}

// GetDevicesByGateway retrieves all devices connected through a specific
// gateway device.
func (r *Registry) GetDevicesByGateway(_ context.Context, gatewayID string) ([]Device, error) {
	return r.filter(func(d *Device) bool { return d.GatewayID == gatewayID }), nil
}

// GetDevicesByProduct retrieves all devices of a specific product.
func (r *Registry) GetDevicesByProduct(_ context.Context, productID string) ([]Device, error) {
	return r.filter(func(d *Device) bool { return d.ProductID == productID }), nil
}

func (r *Registry) filter(pred func(*Device) bool) []Device {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	var devices []Device
	for _, d := range r.cache {
		if pred(d) {
			devices = append(devices, *d.DeepCopy())
		}
	}
	return devices
}

// updateCache atomically replaces the cached entry for id, if present,
// by applying mutate to a deep copy. Used by Operation's session-state
// transitions to keep the cache consistent with the coordination store
// without forcing a full refresh.
func (r *Registry) updateCache(id string, mutate func(*Device)) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	if cached, ok := r.cache[id]; ok {
		updated := cached.DeepCopy()
		mutate(updated)
		r.cache[id] = updated
	}
}

// Count returns the number of cached devices.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}
