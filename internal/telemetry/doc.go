// Package telemetry records dispatch outcomes to InfluxDB.
//
// It wraps influxdb-client-go/v2 directly: one non-blocking, batched
// write per Message Sender Send call, carrying the device ID, message
// kind, outcome, subscriber count, and round-trip latency. Telemetry is
// best-effort — a disabled or unreachable InfluxDB never blocks a send,
// it only means dispatch metrics stop accumulating.
package telemetry
