package configstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gridwire/meshcore/internal/configstore"
	"github.com/gridwire/meshcore/internal/coordination/faketest"
)

// TestComposed_Inheritance mirrors the original implementation's
// testConfig: a device-level override shadows the product default, a
// product-only key still surfaces through the composed view, and
// put(key, nil) is rejected while putAll(nil)/putAll({}) are no-ops.
func TestComposed_Inheritance(t *testing.T) {
	store := faketest.New()
	ctx := context.Background()

	product := configstore.NewHandle(store, configstore.ScopeProduct, "prod-1")
	device := configstore.NewHandle(store, configstore.ScopeDevice, "dev-1")
	composed := configstore.NewComposed(device, product)

	if err := product.Put(ctx, "test_config", "1234"); err != nil {
		t.Fatalf("product.Put: %v", err)
	}
	if err := product.Put(ctx, "test_config__", "aaa"); err != nil {
		t.Fatalf("product.Put: %v", err)
	}

	v, found, err := composed.Get(ctx, "test_config")
	if err != nil || !found {
		t.Fatalf("composed.Get before override: found=%v err=%v", found, err)
	}
	if s, _ := v.AsString(); s != "1234" {
		t.Fatalf("composed.Get = %q, want %q", s, "1234")
	}

	if err := composed.Put(ctx, "test_config", "2345"); err != nil {
		t.Fatalf("composed.Put: %v", err)
	}
	if err := composed.Put(ctx, "test_config2", 1234.0); err != nil {
		t.Fatalf("composed.Put: %v", err)
	}

	v, _, _ = composed.Get(ctx, "test_config")
	if s, _ := v.AsString(); s != "2345" {
		t.Fatalf("composed.Get after override = %q, want %q", s, "2345")
	}

	all, err := composed.GetAll(ctx, "test_config", "test_config__", "test_config2")
	if err != nil {
		t.Fatalf("composed.GetAll: %v", err)
	}
	if all["test_config"] != "2345" {
		t.Errorf("all[test_config] = %v, want 2345", all["test_config"])
	}
	if all["test_config__"] != "aaa" {
		t.Errorf("all[test_config__] = %v, want aaa (inherited from product)", all["test_config__"])
	}
	if all["test_config2"] != 1234.0 {
		t.Errorf("all[test_config2] = %v, want 1234", all["test_config2"])
	}

	removed, found, err := composed.Remove(ctx, "test_config")
	if err != nil || !found {
		t.Fatalf("composed.Remove: found=%v err=%v", found, err)
	}
	if s, _ := removed.AsString(); s != "2345" {
		t.Fatalf("removed value = %q, want %q", s, "2345")
	}

	// The device-level override is gone, so the product-level default
	// for the same key name ("1234") surfaces through the composed view again.
	if after, found, _ := composed.Get(ctx, "test_config"); !found {
		t.Fatalf("expected product default for test_config after remove")
	} else if s, _ := after.AsString(); s != "1234" {
		t.Fatalf("composed.Get after remove = %q, want %q", s, "1234")
	}

	if err := composed.PutAll(ctx, nil); err != nil {
		t.Errorf("PutAll(nil) should be a no-op, got error: %v", err)
	}
	if err := composed.PutAll(ctx, map[string]any{}); err != nil {
		t.Errorf("PutAll({}) should be a no-op, got error: %v", err)
	}

	if err := composed.Put(ctx, "test_config", nil); !errors.Is(err, configstore.ErrIllegalArgument) {
		t.Fatalf("Put(key, nil) error = %v, want ErrIllegalArgument", err)
	}
}
