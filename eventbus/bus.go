package eventbus

import (
	"context"
	"sync"

	"github.com/dpup/gatehouse/errors"
	"github.com/dpup/gatehouse/logging"
	"github.com/google/uuid"
)

const (
	defaultWorkers   = 16
	defaultQueueSize = 256
)

// BusOption configures the event bus.
type BusOption func(*Bus)

// WithWorkerPool sets the number of goroutines handling messages.
func WithWorkerPool(size int) BusOption {
	return func(b *Bus) {
		if size > 0 {
			b.workers = size
		}
	}
}

// WithQueueSize sets how many messages may wait for a worker before Publish
// blocks.
func WithQueueSize(size int) BusOption {
	return func(b *Bus) {
		if size >= 0 {
			b.queueSize = size
		}
	}
}

// NewBus returns a new in-memory bus. ctx, with its logger, is passed to
// handlers.
func NewBus(ctx context.Context, opts ...BusOption) *Bus {
	b := &Bus{
		subscriberCtx: logging.With(ctx, logging.FromContext(ctx).Named("eventbus")),
		subscribers:   make(map[string][]Handler),
		workers:       defaultWorkers,
		queueSize:     defaultQueueSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.jobs = make(chan job, b.queueSize)
	for range b.workers {
		go b.worker()
	}
	return b
}

var _ EventBus = (*Bus)(nil)

type job struct {
	ctx     context.Context
	handler Handler
	msg     *Message
}

// Bus is an in-memory EventBus backed by a bounded worker pool.
type Bus struct {
	subscriberCtx context.Context

	// mu guards subscribers and closed. Publish holds a read lock while
	// queueing so Shutdown never closes jobs underneath a sender.
	mu          sync.RWMutex
	subscribers map[string][]Handler
	closed      bool

	wg        sync.WaitGroup
	jobs      chan job
	workers   int
	queueSize int
}

// Subscribe registers a handler for a topic.
func (b *Bus) Subscribe(topic string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[topic] = append(b.subscribers[topic], handler)
}

// Publish queues data for every subscriber of topic. Messages published after
// Shutdown are dropped.
//
// When the queue is full Publish blocks until a worker takes a message, and
// Subscribe and Shutdown wait behind it. Size the queue with WithQueueSize so
// bursts of events do not hold up the publishing request.
func (b *Bus) Publish(topic string, data any) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		logging.Warnw(b.subscriberCtx, "eventbus: publish after shutdown", "topic", topic)
		return
	}
	handlers := b.subscribers[topic]
	if len(handlers) == 0 {
		return
	}

	ctx := logging.With(b.subscriberCtx, logging.FromContext(b.subscriberCtx).Named(topic))
	for _, handler := range handlers {
		msg := &Message{ID: uuid.NewString(), Topic: topic, Data: data}
		b.wg.Add(1)
		b.jobs <- job{ctx: ctx, handler: handler, msg: msg}
	}
}

// Wait blocks until all queued messages are processed.
func (b *Bus) Wait(ctx context.Context) error {
	c := make(chan struct{})
	go func() {
		defer close(c)
		b.wg.Wait()
	}()
	select {
	case <-c:
		return nil
	case <-ctx.Done():
		return errors.New("eventbus: timeout waiting for handlers to finish")
	}
}

// Shutdown closes the queue and waits for workers to drain it.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.jobs)
	}
	b.mu.Unlock()
	return b.Wait(ctx)
}

func (b *Bus) worker() {
	for j := range b.jobs {
		b.execute(j.ctx, j.handler, j.msg)
	}
}

func (b *Bus) execute(ctx context.Context, handler Handler, msg *Message) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.Wrap(r, 2)
			logging.Errorw(ctx, "eventbus: recovered from panic",
				"error", r, "error.stack_trace", err.MinimalStack(0, 5))
		}
		b.wg.Done()
	}()
	if err := handler(ctx, msg); err != nil {
		logging.Errorw(ctx, "eventbus: handler error", "error", err, "message_id", msg.ID)
	}
}
