// Package transport performs the JSON requests of the leaderboard client.
//
// Two implementations share the same contract. Threaded runs requests on a
// bounded worker pool and suits hosts with real threads. Cooperative funnels
// every request through a single loop goroutine and suits single-threaded
// hosts such as a browser. New picks one at build time.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// ErrRequest wraps every transport, status, and decoding failure.
var ErrRequest = errors.New("request failed")

// ErrClosed is returned for requests issued after Close.
var ErrClosed = errors.New("transport closed")

// Transport performs JSON requests against the leaderboard API.
//
// Get and Post block until the response is decoded into out or ctx is done.
// Go schedules a background task, returns immediately and reports whether
// the task was accepted; the task's context is bound to the transport and
// may be passed back to Get and Post.
type Transport interface {
	Get(ctx context.Context, url string, out any) error
	Post(ctx context.Context, url string, body, out any) error
	Go(task func(ctx context.Context)) bool
	Close() error
}

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Options configures a transport.
type Options struct {
	Client  *http.Client
	Logger  *slog.Logger
	Workers int
}

const defaultWorkers = 4

func (o Options) withDefaults() Options {
	if o.Client == nil {
		o.Client = http.DefaultClient
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
	return o
}

type exchanger struct {
	client *http.Client
	logger *slog.Logger
}

func (x exchanger) do(ctx context.Context, method, url string, body, out any) error {
	if err := x.roundTrip(ctx, method, url, body, out); err != nil {
		x.logger.Debug("request failed", "method", method, "url", url, "error", err)
		return fmt.Errorf("%w: %s %s: %w", ErrRequest, method, url, err)
	}
	return nil
}

func (x exchanger) roundTrip(ctx context.Context, method, url string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := x.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}

	data = bytes.TrimSpace(data)
	if out == nil {
		// Acknowledgements may be empty; anything else must still be JSON.
		if len(data) > 0 && !json.Valid(data) {
			return errors.New("malformed response body")
		}
		return nil
	}
	if len(data) == 0 {
		return errors.New("empty response body")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding body: %w", err)
	}
	return nil
}

type ownerKey struct{}

// owned marks ctx as running on owner's executor so nested requests run
// inline instead of queueing behind the task that issued them.
func owned(ctx context.Context, owner any) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

func isOwnedBy(ctx context.Context, owner any) bool {
	return ctx.Value(ownerKey{}) == owner
}
