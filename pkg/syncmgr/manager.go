// Package syncmgr is the sync subsystem's central scheduler: a
// single-threaded cooperative event loop that owns every peer's state
// machine, drives the header/block download cycle, and hands downloaded
// blocks to the chainstate.
package syncmgr

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stanislav-tkach/mintlayer-core/pkg/announce"
	"github.com/stanislav-tkach/mintlayer-core/pkg/chainstate"
	"github.com/stanislav-tkach/mintlayer-core/pkg/metrics"
	"github.com/stanislav-tkach/mintlayer-core/pkg/peer"
	"github.com/stanislav-tkach/mintlayer-core/pkg/reqtrack"
	"github.com/stanislav-tkach/mintlayer-core/pkg/transport"
)

// GlobalState is the manager's own coarse-grained status, exposed for
// tests and the status endpoint.
type GlobalState int

const (
	// Syncing means at least one registered peer has an outstanding
	// header or block request.
	Syncing GlobalState = iota
	// Idle means every registered peer believes it is caught up.
	Idle
)

func (s GlobalState) String() string {
	if s == Idle {
		return "Idle"
	}
	return "Syncing"
}

// Options configures a Manager's tunables, normally sourced from
// pkg/config.
type Options struct {
	MaxRetries               int
	RequestTimeout           time.Duration
	PeerInactivityTimeout    time.Duration
	MaxHeadersPerMessage     int
	MaxInFlightBlockRequests int
	TickInterval             time.Duration
}

// DefaultOptions mirrors pkg/config.Default's sync section.
func DefaultOptions() Options {
	return Options{
		MaxRetries:               reqtrack.DefaultMaxRetries,
		RequestTimeout:           reqtrack.DefaultRequestTimeout,
		PeerInactivityTimeout:    reqtrack.DefaultPeerInactivityTimeout,
		MaxHeadersPerMessage:     transport.MaxHeaders,
		MaxInFlightBlockRequests: 16,
		TickInterval:             time.Second,
	}
}

type peerRecord struct {
	handle transport.SyncHandle
	state  *peer.State
}

type peerEvent struct {
	peerID transport.PeerID
	ev     transport.Event
	err    error
}

type registerMsg struct {
	peerID transport.PeerID
	handle transport.SyncHandle
	result chan error
}

type unregisterMsg struct {
	peerID transport.PeerID
}

// ErrAlreadyRegistered is returned by RegisterPeer for a peer id already
// known to the manager.
var ErrAlreadyRegistered = errors.New("syncmgr: peer already registered")

// ErrNotRegistered is returned by operations addressed to an unknown peer.
var ErrNotRegistered = errors.New("syncmgr: peer not registered")

// Manager is the sync scheduler. Construct with New and drive it with Run;
// RegisterPeer/UnregisterPeer may be called concurrently from any
// goroutine, they just hand off to the event loop via a channel.
type Manager struct {
	log     *zap.Logger
	chain   chainstate.Handle
	tracker *reqtrack.Tracker
	gate    *announce.Gate
	metrics *metrics.Collectors
	opts    Options

	peers map[transport.PeerID]*peerRecord

	register   chan registerMsg
	unregister chan unregisterMsg
	events     chan peerEvent

	// onMisbehave is the outbound PeerMisbehaved control event (§6): fired
	// whenever a peer is dropped for a protocol-level violation rather
	// than ordinary disconnection, so another subsystem (e.g. a ban-list
	// consumer) can act on it. May be nil.
	onMisbehave func(transport.PeerID, error)

	mu    sync.RWMutex
	state GlobalState
}

// New constructs a Manager. gate, metrics and onMisbehave may be nil (a nil
// gate skips announcement, nil metrics skips instrumentation, nil
// onMisbehave skips the PeerMisbehaved notification) so tests can omit what
// they don't exercise.
func New(log *zap.Logger, ch chainstate.Handle, gate *announce.Gate, mc *metrics.Collectors, opts Options, onMisbehave func(transport.PeerID, error)) *Manager {
	return &Manager{
		log:         log,
		chain:       ch,
		tracker:     reqtrack.New(log, opts.MaxRetries),
		gate:        gate,
		metrics:     mc,
		opts:        opts,
		peers:       map[transport.PeerID]*peerRecord{},
		register:    make(chan registerMsg),
		unregister:  make(chan unregisterMsg),
		events:      make(chan peerEvent, 256),
		onMisbehave: onMisbehave,
		state:       Idle,
	}
}

// State returns the manager's current coarse status.
func (m *Manager) State() GlobalState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) setState(s GlobalState) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	if m.metrics != nil {
		v := 0.0
		if s == Syncing {
			v = 1
		}
		m.metrics.State.Set(v)
	}
}

// RegisterPeer adds a peer and starts pumping its handle's events into the
// manager's loop. It blocks until the event loop has processed the
// registration (or ctx is done).
func (m *Manager) RegisterPeer(ctx context.Context, id transport.PeerID, handle transport.SyncHandle) error {
	result := make(chan error, 1)
	select {
	case m.register <- registerMsg{peerID: id, handle: handle, result: result}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UnregisterPeer drops a peer and discards its in-flight requests.
func (m *Manager) UnregisterPeer(ctx context.Context, id transport.PeerID) error {
	select {
	case m.unregister <- unregisterMsg{peerID: id}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the event loop until ctx is canceled. It spawns one
// goroutine per registered peer (pumping PollNextEvent) under an
// errgroup; timeout sweeps run on a ticker inside the loop itself. A pump
// whose PollNextEvent fails reports the error to the loop, which logs it,
// and exits; the loop keeps running.
func (m *Manager) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	pumps := map[transport.PeerID]context.CancelFunc{}
	var pumpsMu sync.Mutex

	startPump := func(id transport.PeerID, h transport.SyncHandle) {
		pctx, cancel := context.WithCancel(ctx)
		pumpsMu.Lock()
		pumps[id] = cancel
		pumpsMu.Unlock()
		g.Go(func() error { return m.pumpPeer(pctx, id, h) })
	}

	ticker := time.NewTicker(m.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			pumpsMu.Lock()
			for _, cancel := range pumps {
				cancel()
			}
			pumpsMu.Unlock()
			_ = g.Wait()
			return ctx.Err()

		case reg := <-m.register:
			if _, ok := m.peers[reg.peerID]; ok {
				reg.result <- ErrAlreadyRegistered
				continue
			}
			rec := &peerRecord{handle: reg.handle, state: peer.New()}
			m.peers[reg.peerID] = rec
			if m.metrics != nil {
				m.metrics.PeersTotal.Set(float64(len(m.peers)))
			}
			startPump(reg.peerID, reg.handle)
			reg.result <- nil
			if err := m.beginHeaderSync(ctx, reg.peerID); err != nil {
				m.log.Warn("syncmgr: initial header sync failed", zap.String("peer", string(reg.peerID)), zap.Error(err))
			}
			m.recomputeState()

		case unreg := <-m.unregister:
			m.dropPeer(unreg.peerID)
			pumpsMu.Lock()
			if cancel, ok := pumps[unreg.peerID]; ok {
				cancel()
				delete(pumps, unreg.peerID)
			}
			pumpsMu.Unlock()
			m.recomputeState()

		case pe := <-m.events:
			if pe.err != nil {
				m.log.Debug("syncmgr: peer pump exited", zap.String("peer", string(pe.peerID)), zap.Error(pe.err))
				continue
			}
			m.handleEvent(ctx, pe.peerID, pe.ev)
			m.recomputeState()

		case now := <-ticker.C:
			m.sweepTimeouts(ctx, now)
		}
	}
}

func (m *Manager) pumpPeer(ctx context.Context, id transport.PeerID, h transport.SyncHandle) error {
	for {
		ev, err := h.PollNextEvent(ctx)
		if err != nil {
			select {
			case m.events <- peerEvent{peerID: id, err: err}:
			case <-ctx.Done():
			}
			return nil
		}
		select {
		case m.events <- peerEvent{peerID: id, ev: ev}:
		case <-ctx.Done():
			return nil
		}
	}
}

func (m *Manager) dropPeer(id transport.PeerID) {
	m.tracker.RemovePeer(id)
	delete(m.peers, id)
	if m.metrics != nil {
		m.metrics.PeersTotal.Set(float64(len(m.peers)))
	}
}

// dropMisbehaving drops id like dropPeer, additionally firing the outbound
// PeerMisbehaved control event (§6) with reason so another subsystem (a
// ban-list/connmgr consumer) can act on the violation.
func (m *Manager) dropMisbehaving(id transport.PeerID, reason error) {
	m.dropPeer(id)
	if m.onMisbehave != nil {
		m.onMisbehave(id, reason)
	}
}

// sweepTimeouts feeds every request whose per-request timeout has elapsed
// through the same transient-error path a real transport failure would
// take, and disconnects any peer that has been inactive beyond its
// inactivity budget.
func (m *Manager) sweepTimeouts(ctx context.Context, now time.Time) {
	for _, reqID := range m.tracker.ExpiredRequests(m.opts.RequestTimeout, now) {
		action, rs, err := m.tracker.OnError(reqID, reqtrack.ErrTransient)
		if err != nil || rs == nil {
			continue
		}
		rec, ok := m.peers[rs.PeerID]
		if !ok {
			continue
		}
		switch action {
		case reqtrack.ActionResend:
			m.resend(ctx, rs.PeerID, rec, rs)
		case reqtrack.ActionDisconnect:
			m.log.Info("syncmgr: disconnecting peer after repeated timeouts", zap.String("peer", string(rs.PeerID)))
			m.dropPeer(rs.PeerID)
		}
	}

	for _, id := range m.tracker.InactivePeers(m.opts.PeerInactivityTimeout, now) {
		if _, ok := m.peers[id]; !ok {
			continue
		}
		m.log.Info("syncmgr: disconnecting inactive peer", zap.String("peer", string(id)))
		m.dropPeer(id)
	}
}

func (m *Manager) recomputeState() {
	if m.metrics != nil {
		inFlight := 0
		for id := range m.peers {
			inFlight += m.tracker.Count(id)
		}
		m.metrics.InFlightRequests.Set(float64(inFlight))
	}
	for _, rec := range m.peers {
		if rec.state.Kind() != peer.Idle && rec.state.Kind() != peer.Unknown {
			m.setState(Syncing)
			return
		}
	}
	m.setState(Idle)
	if len(m.peers) > 0 && m.gate != nil {
		m.gate.MarkInitialBlockDownloadDone()
		if m.metrics != nil {
			m.metrics.IBDDone.Set(1)
		}
	}
}
