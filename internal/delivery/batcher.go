package delivery

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var ErrBatchMismatch = errors.New("batch returned a different number of results")

type BatchFunc[Req, Res any] func(ctx context.Context, reqs []Req) ([]Res, error)

type outcome[Res any] struct {
	res Res
	err error
}

type call[Req, Res any] struct {
	req Req
	out chan outcome[Res]
}

// Batcher coalesces Do calls arriving within window into one BatchFunc pass.
// A pass runs early once maxSize calls are pending. If the pass fails, every
// caller in it gets the error.
type Batcher[Req, Res any] struct {
	fn      BatchFunc[Req, Res]
	window  time.Duration
	maxSize int
	timeout time.Duration

	mu      sync.Mutex
	pending []call[Req, Res]
	timer   *time.Timer

	batches atomic.Int64
}

func NewBatcher[Req, Res any](fn BatchFunc[Req, Res], window time.Duration, maxSize int, timeout time.Duration) *Batcher[Req, Res] {
	if maxSize <= 0 {
		maxSize = 1
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Batcher[Req, Res]{fn: fn, window: window, maxSize: maxSize, timeout: timeout}
}

func (b *Batcher[Req, Res]) Do(ctx context.Context, req Req) (Res, error) {
	ch := make(chan outcome[Res], 1)

	b.mu.Lock()
	b.pending = append(b.pending, call[Req, Res]{req: req, out: ch})
	if len(b.pending) >= b.maxSize {
		batch := b.takeLocked()
		b.mu.Unlock()
		go b.dispatch(batch)
	} else {
		if b.timer == nil {
			b.timer = time.AfterFunc(b.window, b.flush)
		}
		b.mu.Unlock()
	}

	select {
	case o := <-ch:
		return o.res, o.err
	case <-ctx.Done():
		var zero Res
		return zero, ctx.Err()
	}
}

// Run evaluates reqs as one pass right away; results match reqs by index.
func (b *Batcher[Req, Res]) Run(ctx context.Context, reqs []Req) ([]Res, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	b.batches.Add(1)
	res, err := b.fn(ctx, reqs)
	if err != nil {
		return nil, err
	}
	if len(res) != len(reqs) {
		return nil, ErrBatchMismatch
	}
	return res, nil
}

func (b *Batcher[Req, Res]) Batches() int64 { return b.batches.Load() }

func (b *Batcher[Req, Res]) takeLocked() []call[Req, Res] {
	batch := b.pending
	b.pending = nil
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	return batch
}

func (b *Batcher[Req, Res]) flush() {
	b.mu.Lock()
	batch := b.takeLocked()
	b.mu.Unlock()
	b.dispatch(batch)
}

// dispatch runs detached from any single caller's context so that one
// cancelled caller does not fail the others.
func (b *Batcher[Req, Res]) dispatch(batch []call[Req, Res]) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	reqs := make([]Req, len(batch))
	for i, c := range batch {
		reqs[i] = c.req
	}
	res, err := b.Run(ctx, reqs)
	for i, c := range batch {
		if err != nil {
			c.out <- outcome[Res]{err: err}
			continue
		}
		c.out <- outcome[Res]{res: res[i]}
	}
}
