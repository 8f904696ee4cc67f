package device

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gridwire/meshcore/internal/coordination"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (coordination
// store, mock, etc.) and enables unit testing without a live Redis.
type Repository interface {
	// GetByID retrieves a device by its unique identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// List retrieves all registered devices.
	List(ctx context.Context) ([]Device, error)

	// Create inserts a new device registration.
	// Returns ErrDeviceExists if a device with the same ID already exists.
	Create(ctx context.Context, d *Device) error

	// Update overwrites an existing device's registration record.
	// Returns ErrDeviceNotFound if the device does not exist.
	Update(ctx context.Context, d *Device) error

	// Delete removes a device's registration by ID.
	Delete(ctx context.Context, id string) error
}

// CoordinationRepository implements Repository directly over a
// coordination.Store, the same one device sessions and dispatch
// rendezvous are built on — a device's registration record and its
// live session state share one storage plane.
type CoordinationRepository struct {
	store coordination.Store
}

// NewCoordinationRepository returns a Repository backed by store.
func NewCoordinationRepository(store coordination.Store) *CoordinationRepository {
	return &CoordinationRepository{store: store}
}

// GetByID retrieves a device by its unique identifier.
func (r *CoordinationRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	raw, found, err := r.store.Get(ctx, coordination.Keys{}.DeviceInfo(id))
	if err != nil {
		return nil, fmt.Errorf("getting device %s: %w", id, err)
	}
	if !found {
		return nil, ErrDeviceNotFound
	}
	var d Device
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decoding device %s: %w", id, err)
	}
	return &d, nil
}

// List retrieves all registered devices, resolving IDs through the
// device:index hash — the SET-analog the coordination Store's narrow
// hash primitives stand in for, since Store has no native SCAN/SADD.
func (r *CoordinationRepository) List(ctx context.Context) ([]Device, error) {
	ids, err := r.store.HGetAll(ctx, coordination.Keys{}.DeviceIndex())
	if err != nil {
		return nil, fmt.Errorf("listing device index: %w", err)
	}
	devices := make([]Device, 0, len(ids))
	for id := range ids {
		d, err := r.GetByID(ctx, id)
		if err != nil {
			if err == ErrDeviceNotFound {
				continue
			}
			return nil, err
		}
		devices = append(devices, *d)
	}
	return devices, nil
}

// Create inserts a new device registration.
func (r *CoordinationRepository) Create(ctx context.Context, d *Device) error {
	key := coordination.Keys{}.DeviceInfo(d.ID)
	if _, found, err := r.store.Get(ctx, key); err != nil {
		return fmt.Errorf("checking device %s: %w", d.ID, err)
	} else if found {
		return ErrDeviceExists
	}
	if err := r.write(ctx, key, d); err != nil {
		return err
	}
	return r.store.HSet(ctx, coordination.Keys{}.DeviceIndex(), d.ID, "1")
}

// Update overwrites an existing device's registration record.
func (r *CoordinationRepository) Update(ctx context.Context, d *Device) error {
	key := coordination.Keys{}.DeviceInfo(d.ID)
	if _, found, err := r.store.Get(ctx, key); err != nil {
		return fmt.Errorf("checking device %s: %w", d.ID, err)
	} else if !found {
		return ErrDeviceNotFound
	}
	return r.write(ctx, key, d)
}

// Delete removes a device's registration, its session state, and all
// of its device-scoped config by ID, so a later re-registration under
// the same ID never inherits stale overrides left behind by the
// previous registration.
func (r *CoordinationRepository) Delete(ctx context.Context, id string) error {
	key := coordination.Keys{}.DeviceInfo(id)
	if _, found, err := r.store.Get(ctx, key); err != nil {
		return fmt.Errorf("checking device %s: %w", id, err)
	} else if !found {
		return ErrDeviceNotFound
	}
	if err := r.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("deleting device %s: %w", id, err)
	}
	if err := r.store.Delete(ctx, coordination.Keys{}.DeviceState(id)); err != nil {
		return fmt.Errorf("deleting device %s state: %w", id, err)
	}
	if err := r.store.Delete(ctx, coordination.Keys{}.DeviceConfig(id)); err != nil {
		return fmt.Errorf("deleting device %s config: %w", id, err)
	}
	return r.store.HDel(ctx, coordination.Keys{}.DeviceIndex(), id)
}

func (r *CoordinationRepository) write(ctx context.Context, key string, d *Device) error {
	encoded, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encoding device %s: %w", d.ID, err)
	}
	if err := r.store.Set(ctx, key, encoded, 0); err != nil {
		return fmt.Errorf("writing device %s: %w", d.ID, err)
	}
	return nil
}

var _ Repository = (*CoordinationRepository)(nil)
