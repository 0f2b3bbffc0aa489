// Package trigger delivers committed document changes to handlers registered
// for path patterns, the way a hosted document database fires write triggers.
package trigger

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mmynk/tally/internal/metrics"
	"github.com/mmynk/tally/internal/storage"
)

// Kind classifies a change.
type Kind int

const (
	Created Kind = iota + 1
	Updated
	Deleted
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Event is a change delivered to a handler.
type Event struct {
	Path   string
	Params map[string]string
	Before *storage.Document
	After  *storage.Document
}

// Kind reports whether the event is a creation, update or deletion.
func (e Event) Kind() Kind {
	switch {
	case e.Before == nil:
		return Created
	case e.After == nil:
		return Deleted
	default:
		return Updated
	}
}

// HandlerFunc reacts to an event. Returning an error wrapping
// storage.ErrNotFound marks the event as moot and is not treated as a failure.
type HandlerFunc func(ctx context.Context, e Event) error

type route struct {
	name    string
	pattern pattern
	handler HandlerFunc
}

// Dispatcher routes changes to handlers asynchronously.
//
// Events for one document path run one at a time in publish order; events
// for different paths run concurrently.
type Dispatcher struct {
	ctx    context.Context
	logger *slog.Logger

	mu     sync.Mutex
	routes []route
	lanes  map[string]*lane
	wg     sync.WaitGroup
}

// lane is the queue of pending events for one document path.
type lane struct {
	queue []func()
}

// New creates a dispatcher whose handlers run with ctx.
func New(ctx context.Context, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		ctx:    ctx,
		logger: logger,
		lanes:  make(map[string]*lane),
	}
}

// Handle registers h for documents matching pattern. name labels logs and
// metrics.
func (d *Dispatcher) Handle(name, pattern string, h HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes = append(d.routes, route{name: name, pattern: parsePattern(pattern), handler: h})
}

// Publish queues c for every matching handler. It never blocks on handlers,
// so it is safe to use as a storage.Listener.
func (d *Dispatcher) Publish(c storage.Change) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, r := range d.routes {
		params, ok := r.pattern.match(c.Path)
		if !ok {
			continue
		}
		r, e := r, Event{Path: c.Path, Params: params, Before: c.Before, After: c.After}
		d.enqueueLocked(c.Path, func() { d.run(r, e) })
	}
}

// Wait blocks until every queued event, including events published by
// handlers while waiting, has been handled.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) enqueueLocked(key string, job func()) {
	d.wg.Add(1)
	l, running := d.lanes[key]
	if running {
		l.queue = append(l.queue, job)
		return
	}
	l = &lane{queue: []func(){job}}
	d.lanes[key] = l
	go d.drain(key, l)
}

func (d *Dispatcher) drain(key string, l *lane) {
	for {
		d.mu.Lock()
		if len(l.queue) == 0 {
			delete(d.lanes, key)
			d.mu.Unlock()
			return
		}
		job := l.queue[0]
		l.queue = l.queue[1:]
		d.mu.Unlock()

		job()
		d.wg.Done()
	}
}

func (d *Dispatcher) run(r route, e Event) {
	start := time.Now()
	defer func() {
		metrics.TriggerDuration.WithLabelValues(r.name).Observe(time.Since(start).Seconds())
	}()

	err := r.handler(d.ctx, e)
	switch {
	case err == nil:
		metrics.TriggerInvocations.WithLabelValues(r.name, "ok").Inc()
	case errors.Is(err, storage.ErrNotFound):
		metrics.TriggerInvocations.WithLabelValues(r.name, "aborted").Inc()
		d.logger.Debug("Trigger aborted", "route", r.name, "path", e.Path, "reason", err)
	default:
		metrics.TriggerInvocations.WithLabelValues(r.name, "error").Inc()
		d.logger.Error("Trigger failed",
			"route", r.name,
			"path", e.Path,
			"kind", e.Kind(),
			"error", err,
		)
	}
}
