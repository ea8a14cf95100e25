// Package syncer reconciles the local store with the sync server: it pushes
// dirty rows, applies the server's changes with last-writer-wins and clears
// the dirty flag of acknowledged rows.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/garrison/internal/client/client"
	"github.com/dmitrijs2005/garrison/internal/client/models"
	"github.com/dmitrijs2005/garrison/internal/common"
	"github.com/dmitrijs2005/garrison/internal/logging"
	"github.com/dmitrijs2005/garrison/internal/proto"
	"github.com/dmitrijs2005/garrison/internal/timex"
	"github.com/sethvargo/go-retry"
)

// Default tuning.
const (
	DefaultInterval   = 60 * time.Second
	DefaultTimeout    = 30 * time.Second
	DefaultRetries    = 3
	DefaultRetryDelay = 500 * time.Millisecond
)

// Result summarizes one successful cycle.
type Result struct {
	Pushed       int
	Acknowledged int
	Applied      int
	Stale        int
	Conflicts    int
	Cursor       int64
}

// Event is delivered to subscribers after every cycle that ran.
type Event struct {
	At     time.Time
	Result *Result
	Err    error
}

// OK reports whether the cycle succeeded.
func (e Event) OK() bool { return e.Err == nil }

// Manager runs sync cycles. At most one cycle runs at a time.
type Manager struct {
	store     Store
	extractor Extractor
	client    client.Client
	creds     CredentialProvider
	identity  DeviceIdentity
	log       logging.Logger

	timeout    time.Duration
	retries    uint64
	retryDelay time.Duration
	now        func() time.Time

	inFlight atomic.Bool

	mu   sync.Mutex
	subs []chan Event
}

// Option customizes a Manager.
type Option func(*Manager)

// WithTimeout bounds the push/pull exchange of one cycle, retries included.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithRetry sets the number of retries after a transient failure and the
// initial backoff delay, doubled on every attempt.
func WithRetry(retries uint64, delay time.Duration) Option {
	return func(m *Manager) {
		m.retries = retries
		if delay > 0 {
			m.retryDelay = delay
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager wires a Manager.
func NewManager(st Store, ex Extractor, c client.Client, creds CredentialProvider, id DeviceIdentity, l logging.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:      st,
		extractor:  ex,
		client:     c,
		creds:      creds,
		identity:   id,
		log:        l.With("module", "syncer"),
		timeout:    DefaultTimeout,
		retries:    DefaultRetries,
		retryDelay: DefaultRetryDelay,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe returns a channel receiving cycle events and a function that
// stops the subscription. Events are dropped for subscribers that are not
// keeping up.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 8)

	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, s := range m.subs {
				if s == ch {
					m.subs = append(m.subs[:i], m.subs[i+1:]...)
					break
				}
			}
			close(ch)
		})
	}
	return ch, cancel
}

func (m *Manager) emit(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		select {
		case s <- ev:
		default:
		}
	}
}

// InFlight reports whether a cycle is running.
func (m *Manager) InFlight() bool {
	return m.inFlight.Load()
}

// SyncOnce runs one push, apply, confirm cycle. A call made while another
// cycle is running returns common.ErrSyncInProgress without doing anything.
// A transport failure returns common.ErrSyncTransport and leaves every dirty
// flag untouched.
func (m *Manager) SyncOnce(ctx context.Context) (*Result, error) {
	if !m.inFlight.CompareAndSwap(false, true) {
		return nil, common.ErrSyncInProgress
	}
	defer m.inFlight.Store(false)

	res, err := m.cycle(ctx)
	m.emit(Event{At: timex.Stamp(m.now()), Result: res, Err: err})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (m *Manager) cycle(ctx context.Context) (*Result, error) {
	ops, err := m.extractor.PendingChanges(ctx)
	if err != nil {
		return nil, fmt.Errorf("extract changes: %w", err)
	}

	token, err := m.creds.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrSyncTransport, err)
	}
	deviceID, err := m.identity.DeviceID(ctx)
	if err != nil {
		return nil, fmt.Errorf("device id: %w", err)
	}
	cursor, err := m.store.Cursor(ctx)
	if err != nil {
		return nil, fmt.Errorf("read cursor: %w", err)
	}

	req := &proto.SyncRequest{DeviceID: deviceID, Cursor: cursor, Operations: ops}
	resp, err := m.push(ctx, token, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrSyncTransport, err)
	}

	applied, err := m.store.ApplyRemote(ctx, resp.Changes, resp.Cursor)
	if err != nil {
		return nil, fmt.Errorf("apply remote changes: %w", err)
	}

	acked, err := m.store.MarkSynced(ctx, Acks(ops, resp.Accepted))
	if err != nil {
		return nil, fmt.Errorf("confirm pushed changes: %w", err)
	}

	if err := m.store.SetLastSyncAt(ctx, timex.Stamp(m.now())); err != nil {
		return nil, fmt.Errorf("record sync time: %w", err)
	}

	res := &Result{
		Pushed:       len(ops),
		Acknowledged: acked,
		Applied:      applied.Applied,
		Stale:        applied.Stale,
		Conflicts:    applied.Conflicts,
		Cursor:       applied.Cursor,
	}
	m.log.Info(ctx, "sync finished",
		"pushed", res.Pushed, "acknowledged", res.Acknowledged,
		"applied", res.Applied, "stale", res.Stale, "conflicts", res.Conflicts, "cursor", res.Cursor)
	return res, nil
}

// push sends req, retrying transient failures with exponential backoff until
// the cycle timeout expires.
func (m *Manager) push(ctx context.Context, token string, req *proto.SyncRequest) (*proto.SyncResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	backoff := retry.WithMaxRetries(m.retries, retry.NewExponential(m.retryDelay))

	var resp *proto.SyncResponse
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		r, err := m.client.Sync(ctx, token, req)
		if errors.Is(err, client.ErrUnavailable) {
			m.log.Warn(ctx, "sync push failed, retrying", "error", err)
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Acks selects the acknowledged operations. A nil accepted list acknowledges
// all of them.
func Acks(ops []models.ChangeEnvelope, accepted []string) []models.Ack {
	acks := make([]models.Ack, 0, len(ops))
	if accepted == nil {
		for i := range ops {
			acks = append(acks, ops[i].Ack())
		}
		return acks
	}

	ok := make(map[string]struct{}, len(accepted))
	for _, id := range accepted {
		ok[id] = struct{}{}
	}
	for i := range ops {
		if _, found := ok[ops[i].GlobalID]; found {
			acks = append(acks, ops[i].Ack())
		}
	}
	return acks
}

// Run calls SyncOnce on every tick until ctx is done. Failures are logged and
// never stop the loop. A non-positive interval falls back to DefaultInterval.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		m.log.Warn(ctx, "invalid sync interval, using default", "interval", interval, "default", DefaultInterval)
		interval = DefaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runOnce(ctx)
		}
	}
}

func (m *Manager) runOnce(ctx context.Context) {
	defer func() {
		if p := recover(); p != nil {
			m.log.Error(ctx, "sync cycle panicked", "panic", p)
		}
	}()

	_, err := m.SyncOnce(ctx)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrSyncInProgress):
		m.log.Debug(ctx, "sync skipped, previous cycle still running")
	case errors.Is(err, common.ErrSyncTransport):
		m.log.Warn(ctx, "sync failed, will retry on next tick", "error", err)
	default:
		m.log.Error(ctx, "sync failed", "error", err)
	}
}
