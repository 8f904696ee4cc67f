package configstore

import "context"

// Composed reads through a device-level Handle first, falling back to a
// product-level Handle when a key is absent at the device level — the
// inheritance invariant the original test exercises by setting
// "test_config__" only at the product level and confirming it still
// surfaces through the device operation's getAll(). Writes always go to
// the device level; there is no way to write "through" to the product
// from a Composed handle.
type Composed struct {
	device  *Handle
	product *Handle
}

// NewComposed returns a Composed handle over the given device and
// product config handles.
func NewComposed(device, product *Handle) *Composed {
	return &Composed{device: device, product: product}
}

// Get returns the device-level value for key if present, else the
// product-level value, else found=false.
func (c *Composed) Get(ctx context.Context, key string) (Value, bool, error) {
	if v, found, err := c.device.Get(ctx, key); err != nil {
		return Value{}, false, err
	} else if found {
		return v, true, nil
	}
	return c.product.Get(ctx, key)
}

// GetAll composes product-level values with device-level overrides. An
// empty keys list returns the union of every key at both levels.
func (c *Composed) GetAll(ctx context.Context, keys ...string) (map[string]any, error) {
	product, err := c.product.GetAll(ctx, keys...)
	if err != nil {
		return nil, err
	}
	device, err := c.device.GetAll(ctx, keys...)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]any, len(product)+len(device))
	for k, v := range product {
		merged[k] = v
	}
	for k, v := range device {
		merged[k] = v
	}
	return merged, nil
}

// Put stores value at the device level.
func (c *Composed) Put(ctx context.Context, key string, value any) error {
	return c.device.Put(ctx, key, value)
}

// PutAll stores every pair in values at the device level.
func (c *Composed) PutAll(ctx context.Context, values map[string]any) error {
	return c.device.PutAll(ctx, values)
}

// Remove deletes key at the device level only; a product-level value
// with the same name, if any, remains visible through Get afterwards.
func (c *Composed) Remove(ctx context.Context, key string) (Value, bool, error) {
	return c.device.Remove(ctx, key)
}
