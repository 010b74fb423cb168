package correlator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/AnushSomasundaram/Calendarllm/internal/sidecar/protocol"
	"go.uber.org/zap"
)

// SendFunc writes a request to the worker.
type SendFunc func(protocol.Request) error

// ReplyError is returned for requests the worker answered with an error.
type ReplyError struct {
	ID      int64
	Message string
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("worker failed request %d: %s", e.ID, e.Message)
}

type result struct {
	reply string
	err   error
}

// Handle is the caller side of a pending request.
type Handle struct {
	id   int64
	done chan struct{}
	res  result
	c    *Correlator
}

// ID returns the correlation id of the request.
func (h *Handle) ID() int64 {
	return h.id
}

// Done returns a channel that is closed once the request completed.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the request completes or ctx is done. If ctx ends
// first, the request is forgotten and ctx.Err() is returned.
func (h *Handle) Wait(ctx context.Context) (string, error) {
	select {
	case <-h.done:
		return h.res.reply, h.res.err
	case <-ctx.Done():
	}

	// a completion may have raced the cancellation
	if !h.c.forget(h.id) {
		<-h.done
		return h.res.reply, h.res.err
	}

	return "", ctx.Err()
}

func (h *Handle) complete(reply string, err error) {
	h.res = result{reply: reply, err: err}
	close(h.done)
}

// Correlator matches asynchronous replies to the requests that caused them.
type Correlator struct {
	nextID atomic.Int64

	mu      sync.Mutex
	pending map[int64]*Handle

	log *zap.Logger
}

func New(log *zap.Logger) *Correlator {
	return &Correlator{
		pending: make(map[int64]*Handle),
		log:     log.Named("correlator"),
	}
}

// Submit allocates an id for the message, registers it as pending and
// sends it. The entry exists before send is called, so a reply can never
// arrive for an unknown request. If send fails, the entry is removed and
// the error is returned.
func (c *Correlator) Submit(message string, send SendFunc) (*Handle, error) {
	h := &Handle{
		id:   c.nextID.Add(1),
		done: make(chan struct{}),
		c:    c,
	}

	c.mu.Lock()
	c.pending[h.id] = h
	c.mu.Unlock()

	if err := send(protocol.Request{ID: h.id, Message: message}); err != nil {
		c.forget(h.id)
		return nil, err
	}

	return h, nil
}

// Resolve completes the pending request matching the reply. It returns
// false if no request with that id is pending.
func (c *Correlator) Resolve(reply protocol.Reply) bool {
	h := c.take(reply.ID)
	if h == nil {
		c.log.Debug("discarding reply for unknown request", zap.Int64("id", reply.ID))
		return false
	}

	switch {
	case reply.Invalid != nil:
		h.complete("", reply.Invalid)
	case reply.Failed():
		h.complete("", &ReplyError{ID: reply.ID, Message: reply.Error})
	default:
		h.complete(reply.Result, nil)
	}

	return true
}

// FailAll fails every pending request with reason and returns the number
// of requests failed.
func (c *Correlator) FailAll(reason error) int {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[int64]*Handle)
	c.mu.Unlock()

	for _, h := range pending {
		h.complete("", reason)
	}

	if len(pending) > 0 {
		c.log.Debug("failed pending requests",
			zap.Int("count", len(pending)),
			zap.Error(reason),
		)
	}

	return len(pending)
}

// Pending returns the number of requests awaiting a reply.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.pending)
}

func (c *Correlator) take(id int64) *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.pending[id]
	if !ok {
		return nil
	}

	delete(c.pending, id)

	return h
}

func (c *Correlator) forget(id int64) bool {
	return c.take(id) != nil
}
