package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passing() CheckFunc {
	return func(context.Context) error { return nil }
}

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func get(t *testing.T, fn http.HandlerFunc) (int, string) {
	t.Helper()
	w := httptest.NewRecorder()
	fn(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	return w.Code, w.Body.String()
}

func runN(c *check, n int) {
	for range n {
		c.run(context.Background())
	}
}

func TestLiveEndpoint(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, passing())
	h.AddLivenessCheck("db", time.Second, failing("connection refused"))

	code, body := get(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code, "checks start healthy")
	assert.JSONEq(t, `{"status":"ok"}`, body)

	runN(h.livenessChecks[1], 2)
	code, _ = get(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code, "below threshold")

	runN(h.livenessChecks[1], 1)
	code, body = get(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"db":"connection refused"}}`, body)
}

func TestReadyEndpoint(t *testing.T) {
	h := New()
	h.AddReadinessCheck("storage", time.Second, failing("dial tcp: refused"))
	h.AddReadinessCheck("woocommerce", time.Second, failing("status 502"), Optional(), FailureThreshold(1))

	code, body := get(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"_readiness":"service is not ready"}}`, body)
	assert.False(t, h.IsReady())

	h.SetReady(true)
	assert.True(t, h.IsReady())

	runN(h.readinessChecks[1], 1)
	code, body = get(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code, "optional check only degrades")
	assert.JSONEq(t, `{"status":"degraded","checks":{"woocommerce":"status 502"}}`, body)
	assert.True(t, h.IsReady())

	runN(h.readinessChecks[0], 3)
	code, body = get(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"storage":"dial tcp: refused","woocommerce":"status 502"}}`, body)
	assert.False(t, h.IsReady())
}

func TestCheckRecovers(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	c := newCheck("flaky", time.Second, func(context.Context) error {
		if fail.Load() {
			return errors.New("down")
		}
		return nil
	}, []CheckOption{FailureThreshold(2)})

	assert.False(t, c.run(context.Background()))
	assert.True(t, c.run(context.Background()), "second failure flips the verdict")
	msg, failed := c.failure()
	require.True(t, failed)
	assert.Equal(t, "down", msg)

	fail.Store(false)
	assert.True(t, c.run(context.Background()))
	_, failed = c.failure()
	assert.False(t, failed)
}

func TestCheckTimeout(t *testing.T) {
	c := newCheck("slow", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, []CheckOption{FailureThreshold(1)})

	c.run(context.Background())
	msg, failed := c.failure()
	require.True(t, failed)
	assert.Contains(t, msg, "deadline exceeded")
}

func TestStartStop(t *testing.T) {
	var calls atomic.Int32
	h := New()
	h.AddReadinessCheck("counter", time.Second, func(context.Context) error {
		calls.Add(1)
		return nil
	})

	h.Start(context.Background(), 5*time.Millisecond)
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)

	h.Stop()
	after := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, calls.Load())
	h.Stop()
}

func TestGoroutineCountCheck(t *testing.T) {
	require.NoError(t, GoroutineCountCheck(100000)(context.Background()))
	require.Error(t, GoroutineCountCheck(0)(context.Background()))
}

func TestHTTPCheck(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	t.Cleanup(srv.Close)

	check := HTTPCheck(srv.Client(), srv.URL)
	require.NoError(t, check(context.Background()))

	status.Store(http.StatusBadGateway)
	err := check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
