package storefront

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/checkout"
	"github.com/xenking/storefront-checkout/internal/domain/coupon"
	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/payment"
	"github.com/xenking/storefront-checkout/internal/domain/submission"
	"github.com/xenking/storefront-checkout/internal/storage"
)

// ErrInvalidSessionID is returned for session ids that are not UUIDs.
var ErrInvalidSessionID = errors.New("invalid session id")

// Deps are the collaborators shared by all sessions.
type Deps struct {
	KV        storage.KV
	Catalog   Catalog
	Shipping  *ShippingTable
	Coupons   coupon.Evaluator
	Backend   order.Backend
	Intents   payment.Intents
	Processor payment.Processor
	// Archive optionally keeps order summaries beyond the latest-order slot.
	Archive order.Archive
}

func (d Deps) validate() error {
	switch {
	case d.KV == nil:
		return errors.New("storage is required")
	case d.Catalog == nil:
		return errors.New("catalog is required")
	case d.Shipping == nil:
		return errors.New("shipping table is required")
	case d.Coupons == nil:
		return errors.New("coupon evaluator is required")
	case d.Backend == nil:
		return errors.New("order backend is required")
	case d.Intents == nil, d.Processor == nil:
		return errors.New("payment processor is required")
	}
	return nil
}

// Config tunes sessions.
type Config struct {
	// AddressDebounce delays the shipping re-quote after address edits.
	AddressDebounce time.Duration
	// PersistDebounce coalesces state writes.
	PersistDebounce time.Duration
	// IdleTimeout is how long an unused session stays in memory. Its state
	// is written through before it is dropped.
	IdleTimeout time.Duration
	Submission  submission.Options
}

func (c *Config) setDefaults() {
	if c.AddressDebounce == 0 {
		c.AddressDebounce = 300 * time.Millisecond
	}
	if c.PersistDebounce == 0 {
		c.PersistDebounce = 100 * time.Millisecond
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 30 * time.Minute
	}
}

// Manager owns the live sessions, hydrating each from storage on first use.
type Manager struct {
	deps Deps
	cfg  Config

	group singleflight.Group
	now   func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewManager creates a Manager.
func NewManager(deps Deps, cfg Config) (*Manager, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return &Manager{
		deps:     deps,
		cfg:      cfg,
		now:      time.Now,
		sessions: map[string]*Session{},
	}, nil
}

// NewID returns a fresh session id.
func (m *Manager) NewID() string {
	return uuid.NewString()
}

// Session returns the live session sid, loading it from storage when it is
// not in memory yet.
func (m *Manager) Session(ctx context.Context, sid string) (*Session, error) {
	id, err := uuid.Parse(sid)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidSessionID, "%q", sid)
	}
	sid = id.String()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	s, ok := m.sessions[sid]
	if ok {
		s.touch(m.now())
	}
	m.mu.Unlock()
	if ok {
		return s, nil
	}

	v, err, _ := m.group.Do(sid, func() (any, error) {
		m.mu.Lock()
		if s, ok := m.sessions[sid]; ok {
			m.mu.Unlock()
			return s, nil
		}
		m.mu.Unlock()

		s, err := m.hydrate(context.WithoutCancel(ctx), sid)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		if m.closed {
			return nil, ErrClosed
		}
		s.touch(m.now())
		m.sessions[sid] = s
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// hydrate loads the persisted parts of a session concurrently.
func (m *Manager) hydrate(ctx context.Context, sid string) (*Session, error) {
	var (
		r  restored
		st checkout.State
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var items []cart.Item
		_, err := storage.GetJSON(gctx, m.deps.KV, storage.SessionKey(sid, storage.KeyCart), &items)
		r.items = items
		return err
	})
	g.Go(func() error {
		ok, err := storage.GetJSON(gctx, m.deps.KV, storage.SessionKey(sid, storage.KeyCheckout), &st)
		if ok {
			r.checkout = &st
		}
		return err
	})
	g.Go(func() error {
		_, err := storage.GetJSON(gctx, m.deps.KV, storage.SessionKey(sid, storage.KeySubmission), &r.submission)
		return err
	})
	g.Go(func() error {
		var sum order.Summary
		ok, err := storage.GetJSON(gctx, m.deps.KV, storage.SessionKey(sid, storage.KeyLatestOrder), &sum)
		if ok {
			r.latest = &sum
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, errors.Wrapf(err, "hydrate session %s", sid)
	}

	s, err := newSession(ctx, sid, m.deps, m.cfg, r)
	if err != nil {
		return nil, err
	}
	zctx.From(ctx).Debug("Session loaded",
		zap.String("session", sid),
		zap.Int("items", len(r.items)),
		zap.String("submission", string(s.machine.Snapshot().State)),
	)
	return s, nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Evict closes and forgets the sessions unused for longer than the idle
// timeout. A later request for one of them hydrates it again from storage.
func (m *Manager) Evict(ctx context.Context) int {
	now := m.now()
	m.mu.Lock()
	var idle []*Session
	for sid, s := range m.sessions {
		if now.Sub(s.lastUsed()) > m.cfg.IdleTimeout {
			idle = append(idle, s)
			delete(m.sessions, sid)
		}
	}
	m.mu.Unlock()

	lg := zctx.From(ctx)
	for _, s := range idle {
		if err := s.Close(ctx); err != nil {
			lg.Error("Close idle session", zap.String("session", s.ID()), zap.Error(err))
		}
	}
	if len(idle) > 0 {
		lg.Debug("Sessions evicted", zap.Int("count", len(idle)))
	}
	return len(idle)
}

// RunEviction evicts idle sessions every half idle timeout until ctx is done.
func (m *Manager) RunEviction(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.IdleTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Evict(ctx)
		}
	}
}

// Close closes every session, writing its final state.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = map[string]*Session{}
	m.mu.Unlock()

	var g errgroup.Group
	g.SetLimit(16)
	for _, s := range sessions {
		g.Go(func() error {
			return s.Close(ctx)
		})
	}
	return g.Wait()
}
