// Package security provides JWT bearer-token issuance and validation for
// the admin HTTP API, plus a single-use ticket store for authenticating
// WebSocket upgrades without putting a bearer token in a URL.
//
// It is deliberately narrow: there is no user database here, only the
// mechanics of signing, validating, and exchanging tokens. Wiring a real
// identity backend behind the admin API's login endpoint is out of scope,
// matching the same boundary device.Authenticator draws around device
// session claims.
package security
