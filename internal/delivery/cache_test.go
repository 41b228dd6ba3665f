package delivery_test

import (
	"allocation-service/internal/cache"
	"allocation-service/internal/delivery"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock { return &fakeClock{now: time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// MockRemote
type MockRemote struct {
	GetFunc       func(ctx context.Context, key string) ([]byte, error)
	SetFunc       func(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DelPrefixFunc func(ctx context.Context, prefix string) (int, error)
}

func (m *MockRemote) Get(ctx context.Context, key string) ([]byte, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	return nil, cache.ErrMiss
}

func (m *MockRemote) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, ttl)
	}
	return nil
}

func (m *MockRemote) DelPrefix(ctx context.Context, prefix string) (int, error) {
	if m.DelPrefixFunc != nil {
		return m.DelPrefixFunc(ctx, prefix)
	}
	return 0, nil
}

func constant(v string, calls *atomic.Int32) func(context.Context) ([]byte, error) {
	return func(context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte(v), nil
	}
}

func TestCache_HitAndExpiry(t *testing.T) {
	clk := newClock()
	c := delivery.NewCache(10, nil, zap.NewNop())
	c.SetClock(clk.Now)
	ctx := context.Background()
	var calls atomic.Int32

	for i := 0; i < 2; i++ {
		b, err := c.GetOrCompute(ctx, "k", time.Minute, constant("v", &calls))
		if err != nil || string(b) != "v" {
			t.Fatalf("GetOrCompute: %s %v", b, err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one computation, got %d", calls.Load())
	}

	clk.Advance(time.Minute)
	if _, err := c.GetOrCompute(ctx, "k", time.Minute, constant("v", &calls)); err != nil {
		t.Fatalf("GetOrCompute after expiry: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expired entry must be recomputed, calls=%d", calls.Load())
	}

	st := c.Stats()
	if st.Hits != 1 || st.Misses != 2 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	c := delivery.NewCache(10, nil, zap.NewNop())
	ctx := context.Background()
	boom := errors.New("boom")

	if _, err := c.GetOrCompute(ctx, "k", time.Minute, func(context.Context) ([]byte, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("failed computation must not be stored")
	}
}

func TestCache_EvictsOldestWhenFull(t *testing.T) {
	clk := newClock()
	c := delivery.NewCache(2, nil, zap.NewNop())
	c.SetClock(clk.Now)
	ctx := context.Background()
	var calls atomic.Int32

	for _, k := range []string{"a", "b", "c"} {
		if _, err := c.GetOrCompute(ctx, k, time.Hour, constant(k, &calls)); err != nil {
			t.Fatalf("GetOrCompute(%s): %v", k, err)
		}
		clk.Advance(time.Second)
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}

	before := calls.Load()
	if _, err := c.GetOrCompute(ctx, "a", time.Hour, constant("a", &calls)); err != nil {
		t.Fatalf("GetOrCompute(a): %v", err)
	}
	if calls.Load() != before+1 {
		t.Fatalf("oldest entry should have been evicted")
	}
}

func TestCache_ConcurrentMissesShareOneComputation(t *testing.T) {
	c := delivery.NewCache(10, nil, zap.NewNop())
	release := make(chan struct{})
	var calls atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.GetOrCompute(context.Background(), "hot", time.Minute, func(context.Context) ([]byte, error) {
				calls.Add(1)
				<-release
				return []byte("x"), nil
			})
			if err != nil {
				t.Errorf("GetOrCompute: %v", err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected a single computation, got %d", calls.Load())
	}
}

func TestCache_RemoteTier(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int32

	remote := &MockRemote{
		GetFunc: func(ctx context.Context, key string) ([]byte, error) {
			return []byte("from-redis"), nil
		},
	}
	c := delivery.NewCache(10, remote, zap.NewNop())
	b, err := c.GetOrCompute(ctx, "k", time.Minute, constant("computed", &calls))
	if err != nil || string(b) != "from-redis" {
		t.Fatalf("expected remote hit, got %s %v", b, err)
	}
	if calls.Load() != 0 {
		t.Fatalf("remote hit must skip computation")
	}

	var stored atomic.Int32
	broken := &MockRemote{
		GetFunc: func(ctx context.Context, key string) ([]byte, error) { return nil, errors.New("conn refused") },
		SetFunc: func(ctx context.Context, key string, value []byte, ttl time.Duration) error {
			stored.Add(1)
			return errors.New("conn refused")
		},
	}
	c = delivery.NewCache(10, broken, zap.NewNop())
	b, err = c.GetOrCompute(ctx, "k", time.Minute, constant("computed", &calls))
	if err != nil || string(b) != "computed" {
		t.Fatalf("remote failure must not fail reads: %s %v", b, err)
	}
	if stored.Load() != 1 {
		t.Fatalf("expected write-through attempt")
	}
}

func TestCache_InvalidateAndSweep(t *testing.T) {
	clk := newClock()
	var prefixes []string
	remote := &MockRemote{
		DelPrefixFunc: func(ctx context.Context, prefix string) (int, error) {
			prefixes = append(prefixes, prefix)
			return 0, nil
		},
	}
	c := delivery.NewCache(10, remote, zap.NewNop())
	c.SetClock(clk.Now)
	ctx := context.Background()
	var calls atomic.Int32

	for _, k := range []string{"avail:p1|560001|1", "avail:p1|560001|2", "avail:p2|560001|1"} {
		if _, err := c.GetOrCompute(ctx, k, time.Minute, constant(k, &calls)); err != nil {
			t.Fatalf("GetOrCompute: %v", err)
		}
	}
	if _, err := c.GetOrCompute(ctx, "zone:560001", time.Hour, constant("z", &calls)); err != nil {
		t.Fatalf("GetOrCompute: %v", err)
	}

	if n := c.Invalidate(ctx, "avail:p1|"); n != 2 {
		t.Fatalf("expected 2 invalidated, got %d", n)
	}
	if len(prefixes) != 1 || !strings.HasPrefix(prefixes[0], "avail:p1") {
		t.Fatalf("remote invalidation not forwarded: %v", prefixes)
	}

	clk.Advance(2 * time.Minute)
	if n := c.Sweep(); n != 1 {
		t.Fatalf("expected 1 swept entry, got %d", n)
	}
	if c.Len() != 1 {
		t.Fatalf("zone entry should survive, len=%d", c.Len())
	}
}

func TestCache_CancelledCallerDoesNotFailOthers(t *testing.T) {
	c := delivery.NewCache(10, nil, zap.NewNop())
	started := make(chan struct{})
	release := make(chan struct{})
	var computeErr atomic.Value

	compute := func(ctx context.Context) ([]byte, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			computeErr.Store(err)
			return nil, err
		}
		return []byte("ok"), nil
	}

	first, cancel := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := c.GetOrCompute(first, "avail:k", time.Minute, compute)
		firstDone <- err
	}()
	<-started

	secondDone := make(chan []byte, 1)
	go func() {
		b, err := c.GetOrCompute(context.Background(), "avail:k", time.Minute, compute)
		if err != nil {
			t.Errorf("second caller: %v", err)
		}
		secondDone <- b
	}()

	cancel()
	if err := <-firstDone; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller: %v", err)
	}
	close(release)

	if b := <-secondDone; string(b) != "ok" {
		t.Fatalf("second caller got %q", b)
	}
	if v := computeErr.Load(); v != nil {
		t.Fatalf("compute saw cancellation: %v", v)
	}
	if b, err := c.GetOrCompute(context.Background(), "avail:k", time.Minute, compute); err != nil || string(b) != "ok" {
		t.Fatalf("value should be cached: %q %v", b, err)
	}
}
