package telemetry

import "errors"

// ErrDisabled indicates InfluxDB recording is disabled in configuration.
var ErrDisabled = errors.New("telemetry: disabled in configuration")

// ErrConnectionFailed indicates the initial connection attempt failed.
var ErrConnectionFailed = errors.New("telemetry: connection failed")

// ErrNotConnected indicates the client is not currently connected.
var ErrNotConnected = errors.New("telemetry: not connected")
