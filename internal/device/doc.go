// Package device implements the Device Registry and the device session
// state machine.
//
// The Registry caches device registration records over a Repository
// backed by the coordination store. Session state — offline/online with
// the owning serverID/sessionID — is addressed separately through
// Operation handles, which also expose each device's composed config
// (device overrides shadowing product defaults) and a liveness check
// that self-heals a session if its owning server has gone away.
//
// # Usage
//
//	repo := device.NewCoordinationRepository(store)
//	registry := device.NewRegistry(repo, store)
//	registry.SetLogger(log)
//
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	d, err := registry.RegisterDevice(ctx, device.Info{ID: "d-1", ProductID: "p-1"})
//
//	op := registry.Operation(d.ID, productConfigHandle)
//	if err := op.Online(ctx, "node-001", sessionID); err != nil {
//	    return err
//	}
//
// # Thread Safety
//
// Registry is safe for concurrent use; Operation is safe for concurrent
// use because all of its state lives in the coordination store, not in
// the handle itself.
package device
