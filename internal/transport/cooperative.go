package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
)

// Cooperative runs every request, in submission order, on one loop
// goroutine. Nothing else in the process touches the network on its behalf,
// which is what a single-threaded host needs.
type Cooperative struct {
	exchanger
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	closed bool

	stopped chan struct{}
}

// NewCooperative starts the loop goroutine. Close stops it.
func NewCooperative(opts Options) *Cooperative {
	opts = opts.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	c := &Cooperative{
		exchanger: exchanger{client: opts.Client, logger: opts.Logger},
		cancel:    cancel,
		wake:      make(chan struct{}, 1),
		stopped:   make(chan struct{}),
	}
	c.ctx = owned(ctx, c)
	go c.loop()
	return c
}

func (c *Cooperative) Get(ctx context.Context, url string, out any) error {
	return c.await(ctx, func(ctx context.Context) error {
		return c.do(ctx, http.MethodGet, url, nil, out)
	})
}

func (c *Cooperative) Post(ctx context.Context, url string, body, out any) error {
	return c.await(ctx, func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, url, body, out)
	})
}

func (c *Cooperative) await(ctx context.Context, fn func(context.Context) error) error {
	if isOwnedBy(ctx, c) {
		return fn(ctx)
	}

	done := make(chan error, 1)
	if !c.enqueue(func() { done <- fn(owned(ctx, c)) }) {
		return ErrClosed
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		// The queued request sees the same ctx and fails fast when it runs.
		return fmt.Errorf("%w: %w", ErrRequest, ctx.Err())
	case <-c.stopped:
		select {
		case err := <-done:
			return err
		default:
			return ErrClosed
		}
	}
}

// Go queues task behind every request already submitted and reports whether
// it was accepted.
func (c *Cooperative) Go(task func(ctx context.Context)) bool {
	return c.enqueue(func() { task(c.ctx) })
}

func (c *Cooperative) enqueue(task func()) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.queue = append(c.queue, task)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return true
}

func (c *Cooperative) loop() {
	defer close(c.stopped)
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.wake:
		}

		for {
			c.mu.Lock()
			if len(c.queue) == 0 {
				c.mu.Unlock()
				break
			}
			task := c.queue[0]
			c.queue[0] = nil
			c.queue = c.queue[1:]
			c.mu.Unlock()

			task()
			if c.ctx.Err() != nil {
				return
			}
		}
	}
}

// Close stops the loop. Queued tasks that have not started are dropped.
func (c *Cooperative) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.queue = nil
	c.mu.Unlock()

	c.cancel()
	<-c.stopped
	return nil
}
