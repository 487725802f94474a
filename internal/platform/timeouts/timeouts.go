// Package timeouts defines shared timeout constants used across the client.
// Centralizing these values prevents drift between subsystems and makes the
// durations discoverable.
package timeouts

import "time"

// APIRequest caps the total time allowed for a single HTTP API call,
// including the body read. A hung request surfaces as a network error and
// drives the caller's rollback path.
const APIRequest = 30 * time.Second

// TokenLeeway is how long before the access token's recorded expiry a
// proactive refresh is attempted, absorbing clock skew between client
// and server.
const TokenLeeway = 30 * time.Second

// OTelShutdown limits how long telemetry shutdown may block CLI exit.
const OTelShutdown = 5 * time.Second
