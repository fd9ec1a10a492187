// Package transport abstracts the network operations used by metadata
// probes: a bounded reachability check and HTTP-style GETs. Plugins depend
// only on the Transport interface so that the HTTP implementation can be
// replaced by the scripted Fake in tests.
package transport

import (
	"context"
	"time"
)

// Transport is the capability a metadata probe needs from the network.
type Transport interface {
	// Probe reports whether a TCP connection to address can be established
	// within timeout. It never blocks longer than timeout.
	Probe(ctx context.Context, address string, timeout time.Duration) bool

	// Get fetches path and returns the response body and status code.
	// A non-nil error means no response was received.
	Get(ctx context.Context, path string) ([]byte, int, error)
}
