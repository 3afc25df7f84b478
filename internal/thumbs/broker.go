/*
Package thumbs bridges thumbnail requests to the out-of-process thumbnail
worker.

The broker does not downsize images itself. It correlates asynchronous
worker replies back to callers through a pending-request table keyed by a
per-request token, settling each request exactly once. A fatal worker error
rejects everything in flight and latches: subsequent requests fail fast
instead of repeatedly surfacing worker failures.
*/
package thumbs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrWorkerFailed is returned once the worker has hit a fatal error.
	ErrWorkerFailed = errors.New("thumbnail worker failed")

	// ErrBrokerClosed rejects requests pending or arriving after teardown.
	ErrBrokerClosed = errors.New("thumbnail broker closed")

	// ErrRequestTimeout is returned when the worker never answers a request.
	ErrRequestTimeout = errors.New("thumbnail request timed out")
)

// DefaultRequestTimeout bounds a single thumbnail request.
const DefaultRequestTimeout = 30 * time.Second

// Request is the message sent to the worker.
type Request struct {
	ID      string `json:"id"`
	ImageID string `json:"imageId"`
	Blob    []byte `json:"blob"`
}

// Reply is the worker's answer, matched to a Request by ID.
type Reply struct {
	ID      string `json:"id"`
	Type    string `json:"type"` // "success" or "error"
	Payload []byte `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Worker abstracts the thumbnail process. Replies arrive via the callback
// passed to Start; a fatal error (crash, broken pipe) arrives via onFatal.
type Worker interface {
	Start(onReply func(Reply), onFatal func(error)) error
	Post(Request) error
	Terminate()
}

// settlement carries a resolved request back to its waiter.
type settlement struct {
	payload []byte
	err     error
}

// Broker is the promise-keyed request/response bridge to the worker.
type Broker struct {
	worker  Worker
	timeout time.Duration

	mu       sync.Mutex
	pending  map[string]chan settlement
	fatalErr error
	closed   bool
}

// NewBroker starts the worker and returns the broker.
//
// If the worker fails to start, the broker is still returned with the fatal
// error latched: requests reject immediately rather than panicking callers.
func NewBroker(w Worker, timeout time.Duration) *Broker {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	b := &Broker{
		worker:  w,
		timeout: timeout,
		pending: make(map[string]chan settlement),
	}

	if err := w.Start(b.handleReply, b.handleFatal); err != nil {
		log.Printf("Warning: thumbnail worker failed to start: %v", err)
		b.handleFatal(err)
	}

	return b
}

// RequestThumbnail sends one image to the worker and waits for its
// thumbnail. The request settles exactly once: with the thumbnail bytes, a
// worker-reported error, a timeout, or a broker-level rejection.
func (b *Broker) RequestThumbnail(ctx context.Context, imageID string, blob []byte) ([]byte, error) {
	token := uuid.NewString()
	ch := make(chan settlement, 1)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBrokerClosed
	}
	if b.fatalErr != nil {
		b.mu.Unlock()
		return nil, ErrWorkerFailed
	}
	b.pending[token] = ch
	b.mu.Unlock()

	if err := b.worker.Post(Request{ID: token, ImageID: imageID, Blob: blob}); err != nil {
		b.drop(token)
		return nil, fmt.Errorf("failed to post thumbnail request: %w", err)
	}

	select {
	case s := <-ch:
		return s.payload, s.err

	case <-ctx.Done():
		b.drop(token)
		return nil, ctx.Err()

	case <-time.After(b.timeout):
		b.drop(token)
		return nil, ErrRequestTimeout
	}
}

// Err returns the latched fatal worker error, if any.
func (b *Broker) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fatalErr
}

// Close rejects all pending requests and terminates the worker.
func (b *Broker) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	pending := b.pending
	b.pending = make(map[string]chan settlement)
	b.mu.Unlock()

	for _, ch := range pending {
		ch <- settlement{err: ErrBrokerClosed}
	}

	b.worker.Terminate()
}

// handleReply settles the matching pending request. Replies with no match
// (late answers to timed-out requests, worker noise) are logged and dropped.
func (b *Broker) handleReply(r Reply) {
	b.mu.Lock()
	ch, ok := b.pending[r.ID]
	if ok {
		delete(b.pending, r.ID)
	}
	b.mu.Unlock()

	if !ok {
		log.Printf("Warning: dropping unmatched thumbnail reply %s", r.ID)
		return
	}

	if r.Type == "success" {
		ch <- settlement{payload: r.Payload}
		return
	}
	ch <- settlement{err: fmt.Errorf("thumbnail generation failed: %s", r.Error)}
}

// handleFatal latches the error and rejects everything in flight.
func (b *Broker) handleFatal(err error) {
	b.mu.Lock()
	if b.fatalErr == nil {
		b.fatalErr = err
	}
	pending := b.pending
	b.pending = make(map[string]chan settlement)
	b.mu.Unlock()

	if len(pending) > 0 {
		log.Printf("Warning: thumbnail worker failed, rejecting %d pending requests: %v", len(pending), err)
	}
	for _, ch := range pending {
		ch <- settlement{err: ErrWorkerFailed}
	}
}

// drop removes a pending entry without settling it (timeout, cancellation).
func (b *Broker) drop(token string) {
	b.mu.Lock()
	delete(b.pending, token)
	b.mu.Unlock()
}
