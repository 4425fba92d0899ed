package metal

import (
	"errors"
	"fmt"
	"log/slog"

	mapset "github.com/deckarep/golang-set/v2"
)

// OnErrorFunc receives every error raised by a listener during dispatch.
// Returning the error rethrows it to the caller of the dispatching
// operation, returning nil swallows it.
type OnErrorFunc func(err error) error

// Rethrow is the default error hook.
func Rethrow(err error) error { return err }

// Scheduler is the run loop as seen by this package. *runloop.Loop
// satisfies it.
type Scheduler interface {
	Schedule(queue string, target any, fn func() error) error
	ScheduleOnce(queue string, target any, method string, fn func() error) error
}

type immediateScheduler struct{}

func (immediateScheduler) Schedule(_ string, _ any, fn func() error) error { return fn() }

func (immediateScheduler) ScheduleOnce(_ string, _ any, _ string, fn func() error) error {
	return fn()
}

// System owns the state that is process-wide in a single-threaded
// observation engine: the change batch depth, the pending observer sets,
// the error hook and the run loop. Objects belong to exactly one System.
type System struct {
	logger    *slog.Logger
	onError   OnErrorFunc
	scheduler Scheduler
	debug     bool

	changeDepth     int
	observers       *observerSet
	beforeObservers *observerSet
	willSeen        map[*Object]mapset.Set[string]
	didSeen         map[*Object]mapset.Set[string]

	paths    *pathCache
	nextGUID uint64
}

type Option func(*System)

func WithLogger(logger *slog.Logger) Option {
	return func(s *System) {
		s.logger = logger
	}
}

func WithOnError(fn OnErrorFunc) Option {
	return func(s *System) {
		s.SetOnError(fn)
	}
}

// WithScheduler routes deferred work (bindings, destroy) through a run loop.
// Without it deferred work runs immediately.
func WithScheduler(scheduler Scheduler) Option {
	return func(s *System) {
		s.scheduler = scheduler
	}
}

// WithDebug turns internal invariant violations into panics.
func WithDebug(debug bool) Option {
	return func(s *System) {
		s.debug = debug
	}
}

func WithPathCacheSize(limit int) Option {
	return func(s *System) {
		s.paths = newPathCache(limit)
	}
}

const defaultPathCacheSize = 1000

func NewSystem(opts ...Option) *System {
	s := &System{
		logger:          slog.Default(),
		onError:         Rethrow,
		scheduler:       immediateScheduler{},
		observers:       newObserverSet(),
		beforeObservers: newObserverSet(),
		paths:           newPathCache(defaultPathCacheSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Default is the System used by NewObject and NewPrototype.
var Default = NewSystem()

// Reset closes any open batch on Default and restores its error hook.
// Meant for tests.
func Reset() {
	Default.Reset()
}

// Reset closes any open batch, drops queued observers and restores the
// Rethrow error hook. The scheduler, logger, debug flag and path cache are
// kept.
func (s *System) Reset() {
	s.changeDepth = 0
	s.observers.clear()
	s.beforeObservers.clear()
	s.willSeen = nil
	s.didSeen = nil
	s.onError = Rethrow
}

func (s *System) Logger() *slog.Logger { return s.logger }

func (s *System) OnError() OnErrorFunc { return s.onError }

func (s *System) SetOnError(fn OnErrorFunc) {
	if fn == nil {
		fn = Rethrow
	}
	s.onError = fn
}

func (s *System) SetScheduler(scheduler Scheduler) {
	if scheduler == nil {
		scheduler = immediateScheduler{}
	}
	s.scheduler = scheduler
}

func (s *System) Debug() bool { return s.debug }

// NewObject creates an object whose missing keys are looked up on proto.
func (s *System) NewObject(proto *Object, props Props) *Object {
	o := s.newObject(proto, props)
	FinishChains(o)
	return o
}

// NewPrototype creates an object meant only to be inherited from. Changes on
// a prototype never notify and chains never read through it.
func (s *System) NewPrototype(proto *Object, props Props) *Object {
	o := s.newObject(proto, props)
	o.prototype = true
	return o
}

func (s *System) newObject(proto *Object, props Props) *Object {
	if proto != nil && proto.sys != s {
		s.invariant("prototype %s belongs to another system", Inspect(proto))
	}
	s.nextGUID++
	o := &Object{
		sys:   s,
		guid:  s.nextGUID,
		proto: proto,
		props: make(map[string]any, len(props)),
	}
	for _, key := range sortedKeys(props) {
		v := props[key]
		if d, ok := v.(Descriptor); ok {
			if err := DefineProperty(o, key, d, nil); err != nil {
				s.invariant("defining %q: %v", key, err)
			}
			continue
		}
		o.props[key] = v
	}
	return o
}

func (s *System) schedule(queue string, target any, fn func() error) error {
	return s.scheduler.Schedule(queue, target, fn)
}

func (s *System) handleError(err error) error {
	return s.onError(err)
}

// invariant reports a broken internal invariant. Debug systems panic,
// others log and carry on.
func (s *System) invariant(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if s.debug {
		panic(errors.New("metal: " + msg))
	}
	s.logger.Warn("metal: invariant violated", "detail", msg)
}

// NewObject creates an object on the proto's System, or Default.
func NewObject(proto *Object, props Props) *Object {
	if proto != nil {
		return proto.sys.NewObject(proto, props)
	}
	return Default.NewObject(nil, props)
}

func NewPrototype(proto *Object, props Props) *Object {
	if proto != nil {
		return proto.sys.NewPrototype(proto, props)
	}
	return Default.NewPrototype(nil, props)
}
