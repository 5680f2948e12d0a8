package transport

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Threaded runs requests on a worker pool. Callers of Get and Post are
// suspended until their request completes.
type Threaded struct {
	exchanger
	ctx    context.Context
	cancel context.CancelFunc
	pool   *errgroup.Group

	// mu guards closed. Admissions hold it for reading; Close takes it for
	// writing so no admission starts after Close has begun waiting.
	mu      sync.RWMutex
	closed  bool
	pending sync.WaitGroup
}

// NewThreaded returns a Threaded transport with opts.Workers workers.
func NewThreaded(opts Options) *Threaded {
	opts = opts.withDefaults()

	pool := new(errgroup.Group)
	pool.SetLimit(opts.Workers)

	ctx, cancel := context.WithCancel(context.Background())
	t := &Threaded{
		exchanger: exchanger{client: opts.Client, logger: opts.Logger},
		cancel:    cancel,
		pool:      pool,
	}
	t.ctx = owned(ctx, t)
	return t
}

func (t *Threaded) Get(ctx context.Context, url string, out any) error {
	return t.await(ctx, func(ctx context.Context) error {
		return t.do(ctx, http.MethodGet, url, nil, out)
	})
}

func (t *Threaded) Post(ctx context.Context, url string, body, out any) error {
	return t.await(ctx, func(ctx context.Context) error {
		return t.do(ctx, http.MethodPost, url, body, out)
	})
}

func (t *Threaded) await(ctx context.Context, fn func(context.Context) error) error {
	if isOwnedBy(ctx, t) {
		if t.isClosed() {
			return ErrClosed
		}
		return fn(ctx)
	}
	if !t.admit() {
		return ErrClosed
	}

	done := make(chan error, 1)
	t.pool.Go(func() error {
		done <- fn(owned(ctx, t))
		return nil
	})
	t.pending.Done()
	// fn honours ctx, so this returns promptly once ctx is done.
	return <-done
}

// Go runs task on the pool without waiting for it and reports whether it was
// accepted. When every worker is busy the task waits for one in the
// background. Tasks are refused once Close has been called.
func (t *Threaded) Go(task func(ctx context.Context)) bool {
	if !t.admit() {
		return false
	}
	run := func() error {
		task(t.ctx)
		return nil
	}
	if t.pool.TryGo(run) {
		t.pending.Done()
		return true
	}
	go func() {
		defer t.pending.Done()
		t.pool.Go(run)
	}()
	return true
}

// admit registers a pending submission unless the transport is closed. The
// caller must call t.pending.Done once the work is handed to the pool.
func (t *Threaded) admit() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return false
	}
	t.pending.Add(1)
	return true
}

func (t *Threaded) isClosed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.closed
}

// Close cancels background tasks and waits for every accepted task to
// finish, including those still waiting for a worker.
func (t *Threaded) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.cancel()
	t.pending.Wait()
	return t.pool.Wait()
}
