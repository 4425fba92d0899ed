// Package runloop queues callbacks into named, ordered queues and runs them
// at explicit flush points.
//
// Queues flush in the order they were declared. When a callback schedules
// work into an earlier queue, the flush restarts from that queue, so work
// in "sync" always settles before "actions", and "actions" before "destroy".
package runloop

import (
	"errors"
	"fmt"
	"log/slog"
)

const (
	Sync    = "sync"
	Actions = "actions"
	Destroy = "destroy"
)

// DefaultQueues is the queue order used when New is called without WithQueues.
var DefaultQueues = []string{Sync, Actions, Destroy}

var ErrUnknownQueue = errors.New("runloop: unknown queue")

type item struct {
	target any
	method string
	fn     func() error
}

type onceKey struct {
	target any
	method string
}

type queue struct {
	name   string
	items  []*item
	once   map[onceKey]*item
	before func()
	after  func() error
}

type Loop struct {
	order  []*queue
	queues map[string]*queue
	logger *slog.Logger

	depth    int
	flushing bool
}

type Option func(*Loop)

// WithQueues replaces the default queue order.
func WithQueues(names ...string) Option {
	return func(l *Loop) {
		l.order = l.order[:0]
		l.queues = map[string]*queue{}
		for _, name := range names {
			q := &queue{name: name}
			l.order = append(l.order, q)
			l.queues[name] = q
		}
	}
}

// WithQueueHooks runs before and after around every flush of the named queue.
// The metal package uses this to wrap the sync queue in a property change batch.
func WithQueueHooks(name string, before func(), after func() error) Option {
	return func(l *Loop) {
		if q, ok := l.queues[name]; ok {
			q.before = before
			q.after = after
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

func New(opts ...Option) *Loop {
	l := &Loop{
		queues: map[string]*queue{},
		logger: slog.Default(),
	}
	WithQueues(DefaultQueues...)(l)
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Schedule appends fn to the named queue.
func (l *Loop) Schedule(queueName string, target any, fn func() error) error {
	q, ok := l.queues[queueName]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownQueue, queueName)
	}
	q.items = append(q.items, &item{target: target, fn: fn})
	return nil
}

// ScheduleOnce schedules fn unless target+method is already pending in the
// queue, in which case the pending callback is replaced and keeps its slot.
func (l *Loop) ScheduleOnce(queueName string, target any, method string, fn func() error) error {
	q, ok := l.queues[queueName]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownQueue, queueName)
	}
	key := onceKey{target: target, method: method}
	if existing, ok := q.once[key]; ok {
		existing.fn = fn
		return nil
	}
	it := &item{target: target, method: method, fn: fn}
	if q.once == nil {
		q.once = map[onceKey]*item{}
	}
	q.once[key] = it
	q.items = append(q.items, it)
	return nil
}

// Pending is the number of callbacks waiting across all queues.
func (l *Loop) Pending() int {
	n := 0
	for _, q := range l.order {
		n += len(q.items)
	}
	return n
}

// Flush drains every queue. Errors returned by callbacks do not stop the
// flush; they are joined and returned once all queues are empty.
func (l *Loop) Flush() error {
	if l.flushing {
		return nil
	}
	l.flushing = true
	defer func() { l.flushing = false }()

	var errs []error
	for {
		q := l.firstPending()
		if q == nil {
			break
		}
		errs = append(errs, l.flushQueue(q)...)
	}
	return errors.Join(errs...)
}

func (l *Loop) firstPending() *queue {
	for _, q := range l.order {
		if len(q.items) > 0 {
			return q
		}
	}
	return nil
}

func (l *Loop) flushQueue(q *queue) (errs []error) {
	items := q.items
	q.items = nil
	q.once = nil

	l.logger.Debug("runloop: flushing queue", "queue", q.name, "items", len(items))

	if q.before != nil {
		q.before()
	}
	for _, it := range items {
		if err := it.fn(); err != nil {
			errs = append(errs, err)
		}
	}
	if q.after != nil {
		if err := q.after(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Run calls fn and flushes when the outermost Run returns.
func (l *Loop) Run(fn func() error) error {
	l.depth++
	err := fn()
	l.depth--
	if l.depth > 0 {
		return err
	}
	return errors.Join(err, l.Flush())
}

// InRun reports whether a Run call is active.
func (l *Loop) InRun() bool {
	return l.depth > 0
}
