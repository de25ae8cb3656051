// Package health serves liveness and readiness endpoints.
//
// Checks run in the background and their last verdict is served, so a health
// request never waits on a dependency. A check flips to failing after
// FailureThreshold consecutive errors and back after one success.
//
// Readiness checks come in two strengths. A required check failing takes the
// service out of rotation. An optional check only marks it degraded: the
// service keeps taking traffic and reports what is impaired.
package health

import (
	"context"
	"maps"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// CheckFunc reports a problem with a dependency, or nil.
type CheckFunc func(ctx context.Context) error

// Status is the overall verdict of an endpoint.
type Status string

const (
	StatusOK        Status = "ok"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// DefaultFailureThreshold is used when a check sets none.
const DefaultFailureThreshold = 3

// CheckOption configures a check.
type CheckOption func(*check)

// FailureThreshold sets how many consecutive errors fail the check.
func FailureThreshold(n int) CheckOption {
	return func(c *check) {
		if n > 0 {
			c.threshold = n
		}
	}
}

// Optional makes a readiness check degrade the service instead of taking it
// out of rotation.
func Optional() CheckOption {
	return func(c *check) { c.optional = true }
}

type check struct {
	name      string
	timeout   time.Duration
	fn        CheckFunc
	threshold int
	optional  bool

	// fails is owned by the goroutine running the check.
	fails   int
	healthy atomic.Bool
	lastErr atomic.Pointer[string]
}

func newCheck(name string, timeout time.Duration, fn CheckFunc, opts []CheckOption) *check {
	c := &check{name: name, timeout: timeout, fn: fn, threshold: DefaultFailureThreshold}
	for _, o := range opts {
		o(c)
	}
	c.healthy.Store(true)
	return c
}

// run executes the check once. It reports whether the verdict changed.
func (c *check) run(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	was := c.healthy.Load()
	if err := c.fn(ctx); err != nil {
		msg := err.Error()
		c.lastErr.Store(&msg)
		c.fails++
		if c.fails >= c.threshold {
			c.healthy.Store(false)
		}
	} else {
		c.lastErr.Store(nil)
		c.fails = 0
		c.healthy.Store(true)
	}
	return was != c.healthy.Load()
}

func (c *check) failure() (string, bool) {
	if c.healthy.Load() {
		return "", false
	}
	if p := c.lastErr.Load(); p != nil {
		return *p, true
	}
	return "check is unhealthy", true
}

// Health holds the registered checks and the manual readiness switch.
type Health struct {
	ready atomic.Bool

	mu              sync.RWMutex
	livenessChecks  []*check
	readinessChecks []*check
	cancel          context.CancelFunc
	wg              sync.WaitGroup
}

// New returns a Health that is not ready until SetReady(true).
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a check that decides whether the process should
// be restarted.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc, opts ...CheckOption) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.livenessChecks = append(h.livenessChecks, newCheck(name, timeout, fn, opts))
}

// AddReadinessCheck registers a check that decides whether the service takes
// traffic.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc, opts ...CheckOption) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readinessChecks = append(h.readinessChecks, newCheck(name, timeout, fn, opts))
}

// Start runs every registered check now and then every interval until Stop
// or ctx is done.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	checks := slices.Concat(h.livenessChecks, h.readinessChecks)
	h.mu.Unlock()

	lg := zctx.From(ctx)
	for _, c := range checks {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				if c.run(ctx) {
					msg, failed := c.failure()
					if failed {
						lg.Warn("Health check failing", zap.String("check", c.name), zap.String("error", msg))
					} else {
						lg.Info("Health check recovered", zap.String("check", c.name))
					}
				}
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		}()
	}
}

// Stop halts the background checks and waits for them to return.
func (h *Health) Stop() {
	h.mu.Lock()
	cancel := h.cancel
	h.cancel = nil
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	h.wg.Wait()
}

// SetReady flips the manual readiness switch, e.g. off while draining.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the switch is on and no required readiness check
// is failing.
func (h *Health) IsReady() bool {
	status, _ := h.readiness()
	return status != StatusUnhealthy
}

func (h *Health) readiness() (Status, map[string]string) {
	h.mu.RLock()
	checks := slices.Clone(h.readinessChecks)
	h.mu.RUnlock()

	status := StatusOK
	failures := map[string]string{}
	if !h.ready.Load() {
		status = StatusUnhealthy
		failures["_readiness"] = "service is not ready"
	}
	for _, c := range checks {
		msg, failed := c.failure()
		if !failed {
			continue
		}
		failures[c.name] = msg
		if !c.optional {
			status = StatusUnhealthy
		} else if status == StatusOK {
			status = StatusDegraded
		}
	}
	return status, failures
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	checks := slices.Clone(h.livenessChecks)
	h.mu.RUnlock()

	status := StatusOK
	failures := map[string]string{}
	for _, c := range checks {
		if msg, failed := c.failure(); failed {
			failures[c.name] = msg
			status = StatusUnhealthy
		}
	}
	write(w, status, failures)
}

// ReadyEndpoint serves /readyz. A degraded service still answers 200.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	status, failures := h.readiness()
	write(w, status, failures)
}

func write(w http.ResponseWriter, status Status, failures map[string]string) {
	code := http.StatusOK
	if status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.Obj(func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) { e.Str(string(status)) })
		if len(failures) == 0 {
			return
		}
		e.Field("checks", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, name := range sortedKeys(failures) {
					e.Field(name, func(e *jx.Encoder) { e.Str(failures[name]) })
				}
			})
		})
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}
