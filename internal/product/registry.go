// Package product implements the Product Registry: the shared identity
// and protocol binding every device of a product inherits config and
// metadata resolution from.
package product

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gridwire/meshcore/internal/configstore"
	"github.com/gridwire/meshcore/internal/coordination"
	"github.com/gridwire/meshcore/internal/metadata"
)

// Logger is the minimal logging surface this package needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry resolves product operations over the coordination store.
// Unlike the Device Registry, it keeps no in-memory cache — product
// records are read far less often than device records (once per
// device registration or metadata lookup, not once per dispatch), so
// the extra cache-consistency bookkeeping the teacher's device.Registry
// carries isn't worth it here.
type Registry struct {
	store     coordination.Store
	protocols metadata.ProtocolSupports
	logger    Logger
}

// NewRegistry returns a Registry backed by store, resolving protocol
// metadata through protocols.
func NewRegistry(store coordination.Store, protocols metadata.ProtocolSupports) *Registry {
	return &Registry{store: store, protocols: protocols, logger: noopLogger{}}
}

// SetLogger installs a logger. Not safe to call concurrently with other
// Registry methods.
func (r *Registry) SetLogger(l Logger) {
	if l == nil {
		l = noopLogger{}
	}
	r.logger = l
}

// GetOrCreate returns an Operation for id, creating an empty record if
// one does not already exist yet — mirroring the original's
// getProduct(id), which always returns a usable operation handle rather
// than erroring on an unregistered product.
func (r *Registry) GetOrCreate(ctx context.Context, id string) (*Operation, error) {
	key := coordination.Keys{}.ProductInfo(id)
	if _, found, err := r.store.Get(ctx, key); err != nil {
		return nil, fmt.Errorf("checking product %s: %w", id, err)
	} else if !found {
		info := Info{ID: id, CreatedAt: time.Now().UTC()}
		if err := r.write(ctx, key, info); err != nil {
			return nil, err
		}
	}
	return r.operation(id, key), nil
}

// Get returns an Operation for an existing product, or ErrProductNotFound.
func (r *Registry) Get(ctx context.Context, id string) (*Operation, error) {
	key := coordination.Keys{}.ProductInfo(id)
	if _, found, err := r.store.Get(ctx, key); err != nil {
		return nil, fmt.Errorf("getting product %s: %w", id, err)
	} else if !found {
		return nil, ErrProductNotFound
	}
	return r.operation(id, key), nil
}

func (r *Registry) operation(id, key string) *Operation {
	return &Operation{
		id:        id,
		key:       key,
		store:     r.store,
		protocols: r.protocols,
		config:    configstore.NewHandle(r.store, configstore.ScopeProduct, id),
	}
}

func (r *Registry) write(ctx context.Context, key string, info Info) error {
	encoded, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encoding product info: %w", err)
	}
	if err := r.store.Set(ctx, key, encoded, 0); err != nil {
		return fmt.Errorf("writing product %s: %w", info.ID, err)
	}
	return nil
}

// Operation is a handle to a single product's registration record and
// config map.
type Operation struct {
	id        string
	key       string
	store     coordination.Store
	protocols metadata.ProtocolSupports
	config    *configstore.Handle
}

// ID returns the product's identifier.
func (o *Operation) ID() string {
	return o.id
}

// Info returns the product's registration record.
func (o *Operation) Info(ctx context.Context) (Info, error) {
	raw, found, err := o.store.Get(ctx, o.key)
	if err != nil {
		return Info{}, fmt.Errorf("getting product %s: %w", o.id, err)
	}
	if !found {
		return Info{}, ErrProductNotFound
	}
	var info Info
	if err := json.Unmarshal(raw, &info); err != nil {
		return Info{}, fmt.Errorf("decoding product %s: %w", o.id, err)
	}
	return info, nil
}

// Update overwrites the product's registration record, preserving ID
// and setting UpdatedAt.
func (o *Operation) Update(ctx context.Context, info Info) error {
	info.ID = o.id
	info.UpdatedAt = time.Now().UTC()
	encoded, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encoding product info: %w", err)
	}
	if err := o.store.Set(ctx, o.key, encoded, 0); err != nil {
		return fmt.Errorf("updating product %s: %w", o.id, err)
	}
	return nil
}

// Protocol returns the product's bound protocol name.
func (o *Operation) Protocol(ctx context.Context) (string, error) {
	info, err := o.Info(ctx)
	if err != nil {
		return "", err
	}
	return info.Protocol, nil
}

// Metadata resolves the product's protocol to its DeviceMetadata.
func (o *Operation) Metadata(ctx context.Context) (metadata.DeviceMetadata, error) {
	protocol, err := o.Protocol(ctx)
	if err != nil {
		return nil, err
	}
	return o.protocols.Metadata(protocol)
}

// Config returns the product-level config handle.
func (o *Operation) Config() *configstore.Handle {
	return o.config
}
