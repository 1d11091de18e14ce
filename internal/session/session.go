// Package session owns the per-tenant messaging session lifecycle: pairing,
// readiness, sends, inbound routing and teardown. At most one live session
// exists per tenant at any time.
package session

import (
	"context"
	"errors"
	"time"
)

// State is the lifecycle state of one tenant's session.
type State string

const (
	StateUninitialized   State = "uninitialized"
	StateAwaitingPairing State = "awaiting_pairing"
	StateActive          State = "active"
	StateDisconnected    State = "disconnected"
)

// Persisted transport status values.
const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
)

var (
	// ErrSessionNotActive is returned by Send when the tenant has no
	// Active session. The caller must reconnect.
	ErrSessionNotActive = errors.New("session not active")

	// ErrTransportFailure wraps pairing/send/teardown I/O errors.
	ErrTransportFailure = errors.New("transport failure")

	// ErrPairingTimeout is returned when the transport produces neither a
	// pairing artifact nor readiness in time.
	ErrPairingTimeout = errors.New("pairing timed out")
)

// EventKind tags transport lifecycle events.
type EventKind int

const (
	// EventPairingCode carries the out-of-band pairing artifact (QR
	// payload) the tenant operator scans.
	EventPairingCode EventKind = iota
	// EventReady signals the transport is logged in and connected.
	EventReady
	// EventMessage carries one inbound text message.
	EventMessage
	// EventClosed signals terminal transport failure or logout. The
	// session transitions to Disconnected.
	EventClosed
)

// Event is one item of a transport's lifecycle stream.
type Event struct {
	Kind EventKind
	Code string // pairing artifact, for EventPairingCode
	Peer string // sender address, for EventMessage
	Text string // message body, for EventMessage
	Err  error  // cause, for EventClosed (nil on clean logout)
}

// Transport is one tenant's messaging connection. Connect starts pairing
// or login; Events delivers lifecycle and inbound-message events until the
// transport is closed. Close releases the underlying resource and is safe
// to call more than once.
type Transport interface {
	Connect(ctx context.Context) error
	Events() <-chan Event
	SendText(ctx context.Context, recipient, text string) error
	Close() error
}

// TransportFactory creates the transport for one tenant. Swapped for a
// fake in tests.
type TransportFactory func(tenantID string) (Transport, error)

// Status is what Connect and Status report to callers.
type Status struct {
	TenantID    string    `json:"tenantId"`
	State       State     `json:"state"`
	PairingCode string    `json:"pairingCode,omitempty"`
	ChangedAt   time.Time `json:"changedAt,omitempty"`
}
