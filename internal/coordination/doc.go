// Package coordination implements meshcore's cross-node coordination
// primitives.
//
// # Architecture
//
//	┌─────────────┐     ┌──────────────┐     ┌─────────────┐
//	│ device/     │     │ coordination │     │   Redis     │
//	│ product/    │────▶│   .Store     │────▶│  (shared)   │
//	│ dispatch/   │     │  interface   │     │             │
//	└─────────────┘     └──────────────┘     └─────────────┘
//	                           ▲
//	                           │ implemented by
//	                    ┌──────┴───────┐
//	                    │ RedisStore   │  production
//	                    │ faketest.Store│ tests
//	                    └──────────────┘
//
// # Key Types
//
//   - Store: the primitive surface (pub/sub, buckets, semaphores, hashes).
//   - RedisStore: production implementation over go-redis v9.
//   - Keys: the key/topic naming schema shared by every caller.
//
// # Usage
//
//	store, err := coordination.Connect(ctx, cfg.Redis)
//	n, err := store.Publish(ctx, coordination.Keys{}.MessageAccept("node-1"), payload)
//
// # Thread Safety
//
// RedisStore is safe for concurrent use by multiple goroutines.
package coordination
