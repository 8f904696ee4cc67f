// Package api is a thin read-mostly admin surface over the device
// registry, product registry, and Message Sender: product/device/session
// listing and stats, a manual invoke endpoint that drives a real Send
// round trip, audit log queries, and a WebSocket hub broadcasting session
// transitions and completed dispatch replies.
//
// Nothing in internal/coordination, internal/device, internal/product,
// or internal/dispatch imports this package — it is a consumer of their
// public APIs, not a dependency of them, the same boundary
// cmd/gatewaydemo draws from the opposite direction.
//
// Authentication is a JWT bearer token (internal/security) on every
// route except /auth/login and the health check; WebSocket connections
// exchange a validated token for a short-lived, single-use ticket rather
// than carrying the bearer token in a URL.
package api
