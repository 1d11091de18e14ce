package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// FallbackReply is sent when the response pipeline fails outright for an
// inbound message. The end user always gets a reply.
const FallbackReply = "Sorry, I couldn't process that right now. Please try again in a moment."

// Storage is the slice of the persistence layer the manager needs: the
// message log and the durable connected/disconnected status.
type Storage interface {
	AppendMessage(tenantID, direction, peer, body string) error
	SetSessionStatus(tenantID, status string) error
	SessionStatus(tenantID string) (string, error)
}

// Resolver turns an inbound message into reply text. Implemented by the
// response pipeline; never returns an error, only degraded text.
type Resolver interface {
	Resolve(ctx context.Context, tenantID, message string) string
}

// tenantSession is one live session record. The transport handle is owned
// here exclusively; nothing outside this package touches it.
type tenantSession struct {
	tenantID  string
	transport Transport

	mu          sync.Mutex
	state       State
	pairingCode string
	changedAt   time.Time

	cancel    context.CancelFunc
	closeOnce sync.Once

	pairingCh chan string
	readyCh   chan struct{}
	failCh    chan error
}

func (ts *tenantSession) setState(s State) {
	ts.mu.Lock()
	ts.state = s
	ts.changedAt = time.Now()
	ts.mu.Unlock()
}

func (ts *tenantSession) snapshot() (State, string, time.Time) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.state, ts.pairingCode, ts.changedAt
}

// release closes the transport exactly once, on every teardown path.
func (ts *tenantSession) release() {
	ts.closeOnce.Do(func() {
		if ts.cancel != nil {
			ts.cancel()
		}
		if err := ts.transport.Close(); err != nil {
			log.Printf("[session] close transport for %s: %v", ts.tenantID, err)
		}
	})
}

// Manager is the registry of live tenant sessions. Connect and Disconnect
// mutate the registry; Send and Status read it. Check-and-insert under one
// lock keeps the at-most-one-live-session invariant under concurrent
// connects.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*tenantSession

	factory  TransportFactory
	storage  Storage
	resolver Resolver

	pairingTimeout time.Duration
	sendTimeout    time.Duration
}

func NewManager(factory TransportFactory, storage Storage, resolver Resolver, pairingTimeout, sendTimeout time.Duration) *Manager {
	if pairingTimeout <= 0 {
		pairingTimeout = 90 * time.Second
	}
	if sendTimeout <= 0 {
		sendTimeout = 30 * time.Second
	}
	return &Manager{
		sessions:       make(map[string]*tenantSession),
		factory:        factory,
		storage:        storage,
		resolver:       resolver,
		pairingTimeout: pairingTimeout,
		sendTimeout:    sendTimeout,
	}
}

// Connect establishes (or reports) the tenant's session. For an Active
// session it is idempotent. Otherwise it creates the transport, waits for
// either a pairing artifact or readiness, and returns the resulting
// status. Readiness arriving later (operator scans the QR) flips the
// session to Active in the background.
func (m *Manager) Connect(ctx context.Context, tenantID string) (*Status, error) {
	m.mu.Lock()
	if existing, ok := m.sessions[tenantID]; ok {
		state, code, changed := existing.snapshot()
		switch state {
		case StateActive:
			m.mu.Unlock()
			return &Status{TenantID: tenantID, State: StateActive, ChangedAt: changed}, nil
		case StateAwaitingPairing, StateUninitialized:
			m.mu.Unlock()
			return &Status{TenantID: tenantID, State: state, PairingCode: code, ChangedAt: changed}, nil
		default:
			// Disconnected leftovers are replaced by a fresh session.
			delete(m.sessions, tenantID)
		}
	}

	// Placeholder registration under the lock: a concurrent Connect for
	// the same tenant sees it and cannot create a second session.
	ts := &tenantSession{
		tenantID:  tenantID,
		state:     StateUninitialized,
		changedAt: time.Now(),
		pairingCh: make(chan string, 1),
		readyCh:   make(chan struct{}, 1),
		failCh:    make(chan error, 1),
	}
	m.sessions[tenantID] = ts
	m.mu.Unlock()

	transport, err := m.factory(tenantID)
	if err != nil {
		m.remove(tenantID, ts)
		return nil, fmt.Errorf("%w: create transport for %s: %v", ErrTransportFailure, tenantID, err)
	}
	ts.transport = transport

	runCtx, cancel := context.WithCancel(context.Background())
	ts.cancel = cancel

	// AwaitingPairing is entered before the pump starts so readiness
	// arriving while transport.Connect is still in flight can only move
	// the state forward, never be overwritten.
	ts.setState(StateAwaitingPairing)
	go m.pump(runCtx, ts)

	if err := transport.Connect(runCtx); err != nil {
		m.teardown(ts, false)
		return nil, fmt.Errorf("%w: connect %s: %v", ErrTransportFailure, tenantID, err)
	}

	// Suspend until the transport produces a pairing artifact, comes up
	// directly (stored credentials), or fails.
	timer := time.NewTimer(m.pairingTimeout)
	defer timer.Stop()

	select {
	case code := <-ts.pairingCh:
		ts.mu.Lock()
		ts.pairingCode = code
		ts.mu.Unlock()
		state, _, changed := ts.snapshot()
		return &Status{TenantID: tenantID, State: state, PairingCode: code, ChangedAt: changed}, nil
	case <-ts.readyCh:
		state, _, changed := ts.snapshot()
		return &Status{TenantID: tenantID, State: state, ChangedAt: changed}, nil
	case err := <-ts.failCh:
		m.teardown(ts, true)
		return nil, fmt.Errorf("%w: pairing %s: %v", ErrTransportFailure, tenantID, err)
	case <-timer.C:
		m.teardown(ts, true)
		return nil, fmt.Errorf("%w: %s", ErrPairingTimeout, tenantID)
	case <-ctx.Done():
		m.teardown(ts, true)
		return nil, ctx.Err()
	}
}

// pump consumes the transport event stream. Inbound messages are handled
// synchronously so one tenant's messages keep their delivery order.
func (m *Manager) pump(ctx context.Context, ts *tenantSession) {
	events := ts.transport.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			switch evt.Kind {
			case EventPairingCode:
				select {
				case ts.pairingCh <- evt.Code:
				default:
				}
			case EventReady:
				ts.setState(StateActive)
				if err := m.storage.SetSessionStatus(ts.tenantID, StatusConnected); err != nil {
					log.Printf("[session] persist status for %s: %v", ts.tenantID, err)
				}
				select {
				case ts.readyCh <- struct{}{}:
				default:
				}
				log.Printf("[session] %s active", ts.tenantID)
			case EventMessage:
				m.handleInbound(ctx, ts, evt.Peer, evt.Text)
			case EventClosed:
				if evt.Err != nil {
					log.Printf("[session] %s transport closed: %v", ts.tenantID, evt.Err)
					select {
					case ts.failCh <- evt.Err:
					default:
					}
				}
				m.teardown(ts, true)
				return
			}
		}
	}
}

// handleInbound routes one message through the pipeline and sends the
// reply back. Pipeline failure degrades to FallbackReply; it never takes
// the session down.
func (m *Manager) handleInbound(ctx context.Context, ts *tenantSession, peer, text string) {
	if err := m.storage.AppendMessage(ts.tenantID, "inbound", peer, text); err != nil {
		log.Printf("[session] log inbound for %s: %v", ts.tenantID, err)
	}

	reply := m.resolveWithFallback(ctx, ts.tenantID, text)
	if reply == "" {
		return
	}

	if err := m.Send(ctx, ts.tenantID, peer, reply); err != nil {
		log.Printf("[session] reply to %s via %s: %v", peer, ts.tenantID, err)
	}
}

func (m *Manager) resolveWithFallback(ctx context.Context, tenantID, text string) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[session] pipeline panic for %s: %v", tenantID, r)
			reply = FallbackReply
		}
	}()
	if m.resolver == nil {
		return FallbackReply
	}
	return m.resolver.Resolve(ctx, tenantID, text)
}

// Send delivers text to a recipient over the tenant's Active session and
// appends an outbound log entry. A transport error fails the call but
// leaves the session Active; terminal disconnection is reported through
// the event stream and handled there.
func (m *Manager) Send(ctx context.Context, tenantID, recipient, text string) error {
	m.mu.Lock()
	ts, ok := m.sessions[tenantID]
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotActive
	}
	if state, _, _ := ts.snapshot(); state != StateActive {
		return ErrSessionNotActive
	}

	sendCtx, cancel := context.WithTimeout(ctx, m.sendTimeout)
	defer cancel()

	if err := ts.transport.SendText(sendCtx, recipient, text); err != nil {
		return fmt.Errorf("%w: send via %s: %v", ErrTransportFailure, tenantID, err)
	}

	if err := m.storage.AppendMessage(tenantID, "outbound", recipient, text); err != nil {
		log.Printf("[session] log outbound for %s: %v", tenantID, err)
	}
	return nil
}

// Disconnect tears the session down and persists the disconnected status.
// Calling it without a live session is a successful no-op.
func (m *Manager) Disconnect(tenantID string) error {
	m.mu.Lock()
	ts, ok := m.sessions[tenantID]
	if ok {
		delete(m.sessions, tenantID)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}

	ts.release()
	ts.setState(StateDisconnected)
	if err := m.storage.SetSessionStatus(tenantID, StatusDisconnected); err != nil {
		return fmt.Errorf("persist disconnect for %s: %w", tenantID, err)
	}
	log.Printf("[session] %s disconnected", tenantID)
	return nil
}

// Status reports the in-memory state when a session is registered, falling
// back to the last persisted status, then to disconnected.
func (m *Manager) Status(tenantID string) Status {
	m.mu.Lock()
	ts, ok := m.sessions[tenantID]
	m.mu.Unlock()
	if ok {
		state, code, changed := ts.snapshot()
		return Status{TenantID: tenantID, State: state, PairingCode: code, ChangedAt: changed}
	}

	// No live session: fall back to the last persisted status. A
	// connected status here means the process restarted after a
	// successful pairing; the stored credentials are still valid and the
	// next connect skips the QR flow.
	persisted, err := m.storage.SessionStatus(tenantID)
	if err == nil && persisted == StatusConnected {
		return Status{TenantID: tenantID, State: StateActive}
	}
	return Status{TenantID: tenantID, State: StateDisconnected}
}

// ActiveTenants lists tenants whose session is currently Active.
func (m *Manager) ActiveTenants() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var active []string
	for id, ts := range m.sessions {
		if state, _, _ := ts.snapshot(); state == StateActive {
			active = append(active, id)
		}
	}
	return active
}

// Shutdown disconnects every live session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.Disconnect(id); err != nil {
			log.Printf("[session] shutdown %s: %v", id, err)
		}
	}
}

// teardown releases the transport and marks the session Disconnected,
// removing it from the registry. persist controls whether the durable
// status is written (skipped when pairing never completed).
func (m *Manager) teardown(ts *tenantSession, persist bool) {
	wasActive := false
	if state, _, _ := ts.snapshot(); state == StateActive {
		wasActive = true
	}

	m.remove(ts.tenantID, ts)
	ts.release()
	ts.setState(StateDisconnected)

	if persist && wasActive {
		if err := m.storage.SetSessionStatus(ts.tenantID, StatusDisconnected); err != nil {
			log.Printf("[session] persist status for %s: %v", ts.tenantID, err)
		}
	}
}

// remove deletes the registry entry only if it still maps to this session,
// so a replacement session registered meanwhile is left alone.
func (m *Manager) remove(tenantID string, ts *tenantSession) {
	m.mu.Lock()
	if current, ok := m.sessions[tenantID]; ok && current == ts {
		delete(m.sessions, tenantID)
	}
	m.mu.Unlock()
}
