package device_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/gridwire/meshcore/internal/configstore"
	"github.com/gridwire/meshcore/internal/coordination/faketest"
	"github.com/gridwire/meshcore/internal/device"
)

func newTestRegistry(t *testing.T) (*device.Registry, *configstore.Handle) {
	t.Helper()
	store := faketest.New()
	repo := device.NewCoordinationRepository(store)
	registry := device.NewRegistry(repo, store)
	productConfig := configstore.NewHandle(store, configstore.ScopeProduct, "prod-1")
	return registry, productConfig
}

// TestRegistry_SessionLifecycle mirrors the original implementation's
// testRegistry: a freshly registered device starts offline, online()
// records server/session IDs, offline() clears them, and an
// unregistered device reports StateUnknown rather than an error.
func TestRegistry_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	registry, productConfig := newTestRegistry(t)

	d, err := registry.RegisterDevice(ctx, device.Info{ID: "dev-1", ProductID: "prod-1", Name: "Test Device"})
	if err != nil {
		t.Fatalf("RegisterDevice: %v", err)
	}
	if d.State != device.StateOffline {
		t.Fatalf("new device state = %v, want offline", d.State)
	}

	op := registry.Operation(d.ID, productConfig)

	if state, err := op.State(ctx); err != nil || state != device.StateOffline {
		t.Fatalf("State of never-connected device = %v, err=%v, want offline", state, err)
	}

	if err := op.Online(ctx, "server-01", "session-01"); err != nil {
		t.Fatalf("Online: %v", err)
	}
	state, err := op.State(ctx)
	if err != nil || state != device.StateOnline {
		t.Fatalf("State after Online = %v, err=%v, want online", state, err)
	}
	if serverID, _ := op.ServerID(ctx); serverID != "server-01" {
		t.Fatalf("ServerID = %q, want server-01", serverID)
	}
	if sessionID, _ := op.SessionID(ctx); sessionID != "session-01" {
		t.Fatalf("SessionID = %q, want session-01", sessionID)
	}
	if online, _ := op.IsOnline(ctx); !online {
		t.Fatalf("IsOnline = false, want true")
	}

	if err := op.Offline(ctx); err != nil {
		t.Fatalf("Offline: %v", err)
	}
	if online, _ := op.IsOnline(ctx); online {
		t.Fatalf("IsOnline after Offline = true, want false")
	}
	if serverID, _ := op.ServerID(ctx); serverID != "" {
		t.Fatalf("ServerID after Offline = %q, want empty", serverID)
	}

	if err := registry.UnregisterDevice(ctx, d.ID); err != nil {
		t.Fatalf("UnregisterDevice: %v", err)
	}
	if _, err := registry.GetDevice(ctx, d.ID); !errors.Is(err, device.ErrDeviceNotFound) {
		t.Fatalf("GetDevice after unregister error = %v, want ErrDeviceNotFound", err)
	}
	unknownState, err := registry.Operation(d.ID, productConfig).State(ctx)
	if err != nil || unknownState != device.StateUnknown {
		t.Fatalf("State after unregister = %v, err=%v, want unknown", unknownState, err)
	}
}

// TestRegistry_OfflineSessionMismatch ensures a stale gateway connection
// cannot tear down a session a newer connection has already replaced.
func TestRegistry_OfflineSessionMismatch(t *testing.T) {
	ctx := context.Background()
	registry, productConfig := newTestRegistry(t)
	d, _ := registry.RegisterDevice(ctx, device.Info{ID: "dev-1", ProductID: "prod-1"})
	op := registry.Operation(d.ID, productConfig)

	_ = op.Online(ctx, "server-01", "session-old")
	_ = op.Online(ctx, "server-01", "session-new")

	if err := op.OfflineSession(ctx, "session-old"); !errors.Is(err, device.ErrSessionMismatch) {
		t.Fatalf("OfflineSession(stale) error = %v, want ErrSessionMismatch", err)
	}
	if online, _ := op.IsOnline(ctx); !online {
		t.Fatalf("device went offline from a stale session tear-down")
	}

	if err := op.OfflineSession(ctx, "session-new"); err != nil {
		t.Fatalf("OfflineSession(current): %v", err)
	}
	if online, _ := op.IsOnline(ctx); online {
		t.Fatalf("IsOnline after matching OfflineSession = true, want false")
	}
}

// TestRegistry_BulkLifecycle is the Go rendering of the original's
// benchmarkTest: it registers, brings online, and unregisters a batch of
// devices, asserting correctness rather than timing it — a Go benchmark
// harness can profile throughput separately if needed.
func TestRegistry_BulkLifecycle(t *testing.T) {
	ctx := context.Background()
	registry, productConfig := newTestRegistry(t)
	const size = 200

	ids := make([]string, 0, size)
	for i := 0; i < size; i++ {
		id := fmt.Sprintf("dev-%d", i)
		if _, err := registry.RegisterDevice(ctx, device.Info{ID: id, ProductID: "prod-1"}); err != nil {
			t.Fatalf("RegisterDevice(%s): %v", id, err)
		}
		ids = append(ids, id)
	}

	if err := registry.RefreshCache(ctx); err != nil {
		t.Fatalf("RefreshCache: %v", err)
	}
	if registry.Count() != size {
		t.Fatalf("Count() = %d, want %d", registry.Count(), size)
	}

	for _, id := range ids {
		op := registry.Operation(id, productConfig)
		if err := op.Online(ctx, "server-01", "session-0"); err != nil {
			t.Fatalf("Online(%s): %v", id, err)
		}
	}

	online, err := registry.ListDevices(ctx)
	if err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	count := 0
	for _, d := range online {
		if d.State == device.StateOnline {
			count++
		}
	}
	if count != size {
		t.Fatalf("online device count = %d, want %d", count, size)
	}

	for _, id := range ids {
		if err := registry.UnregisterDevice(ctx, id); err != nil {
			t.Fatalf("UnregisterDevice(%s): %v", id, err)
		}
	}
	if registry.Count() != 0 {
		t.Fatalf("Count() after unregister-all = %d, want 0", registry.Count())
	}
}

// TestRegistry_UnregisterClearsDeviceConfig is the round-trip property
// from the spec's device lifecycle: register, set device-scoped
// overrides, unregister, register again — the second registration must
// not inherit the first's overrides.
func TestRegistry_UnregisterClearsDeviceConfig(t *testing.T) {
	ctx := context.Background()
	store := faketest.New()
	repo := device.NewCoordinationRepository(store)
	registry := device.NewRegistry(repo, store)

	if _, err := registry.RegisterDevice(ctx, device.Info{ID: "dev-1", ProductID: "prod-1"}); err != nil {
		t.Fatalf("RegisterDevice: %v", err)
	}

	deviceConfig := configstore.NewHandle(store, configstore.ScopeDevice, "dev-1")
	if err := deviceConfig.Put(ctx, "poll_interval", 5); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if v, found, err := deviceConfig.Get(ctx, "poll_interval"); err != nil || !found {
		t.Fatalf("Get before unregister: found=%v err=%v v=%v", found, err, v)
	}

	if err := registry.UnregisterDevice(ctx, "dev-1"); err != nil {
		t.Fatalf("UnregisterDevice: %v", err)
	}

	if _, found, err := deviceConfig.Get(ctx, "poll_interval"); err != nil || found {
		t.Fatalf("device config survived unregister: found=%v err=%v", found, err)
	}

	if _, err := registry.RegisterDevice(ctx, device.Info{ID: "dev-1", ProductID: "prod-1"}); err != nil {
		t.Fatalf("RegisterDevice (again): %v", err)
	}
	if _, found, err := deviceConfig.Get(ctx, "poll_interval"); err != nil || found {
		t.Fatalf("re-registered device inherited stale config: found=%v err=%v", found, err)
	}
}

func TestRegistry_FilterByRoom(t *testing.T) {
	ctx := context.Background()
	registry, _ := newTestRegistry(t)

	_, _ = registry.RegisterDevice(ctx, device.Info{ID: "d-1", ProductID: "prod-1", RoomID: "room-a"})
	_, _ = registry.RegisterDevice(ctx, device.Info{ID: "d-2", ProductID: "prod-1", RoomID: "room-b"})
	if err := registry.RefreshCache(ctx); err != nil {
		t.Fatalf("RefreshCache: %v", err)
	}

	inRoomA, err := registry.GetDevicesByRoom(ctx, "room-a")
	if err != nil {
		t.Fatalf("GetDevicesByRoom: %v", err)
	}
	if len(inRoomA) != 1 || inRoomA[0].ID != "d-1" {
		t.Fatalf("GetDevicesByRoom(room-a) = %+v, want just d-1", inRoomA)
	}
}
