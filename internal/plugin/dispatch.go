package plugin

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/ayusman/formrep/internal/store"
)

// DefaultQueueSize is the number of hook runs that may wait for a worker.
const DefaultQueueSize = 32

// ErrQueueFull is reported when a hook run is dropped because workers are busy.
var ErrQueueFull = errors.New("hook queue full")

// HookSource lists the hooks bound to an event.
type HookSource interface {
	ListForEvent(event store.HookEvent, profileID string) ([]*store.Hook, error)
}

// Event is a session event that may trigger hooks.
type Event struct {
	Kind      store.HookEvent
	ProfileID string
	SessionID string
	Reps      int
	Advisory  string
	Message   string
}

// Outcome reports the result of one hook run.
type Outcome struct {
	HookID   string
	Plugin   string
	Response *Response
	Err      error
}

type job struct {
	hook  *store.Hook
	event Event
}

// Dispatcher runs the hooks bound to session events on a fixed pool of
// workers so the frame loop never waits on a plugin.
type Dispatcher struct {
	hooks    HookSource
	manager  *Manager
	executor *Executor
	workers  int

	queue    chan job
	wg       sync.WaitGroup
	mu       sync.Mutex
	started  bool
	closed   bool
	onResult func(Outcome)
}

// NewDispatcher creates a Dispatcher. Call Start before Fire.
func NewDispatcher(hooks HookSource, manager *Manager, executor *Executor, workers int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{
		hooks:    hooks,
		manager:  manager,
		executor: executor,
		workers:  workers,
		queue:    make(chan job, DefaultQueueSize),
	}
}

// OnResult registers fn to receive every Outcome. It must be set before Start.
func (d *Dispatcher) OnResult(fn func(Outcome)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onResult = fn
}

// Start launches the workers. They run until ctx is cancelled or Close is called.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started || d.closed {
		return
	}
	d.started = true

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work(ctx)
	}
}

// Fire enqueues every enabled hook bound to ev and returns how many were
// queued. Runs that do not fit in the queue are dropped.
func (d *Dispatcher) Fire(ev Event) (int, error) {
	hooks, err := d.hooks.ListForEvent(ev.Kind, ev.ProfileID)
	if err != nil {
		return 0, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, nil
	}

	queued := 0
	for _, h := range hooks {
		select {
		case d.queue <- job{hook: h, event: ev}:
			queued++
		default:
			log.Printf("Dropping hook %s (%s/%s): %v", h.ID, h.PluginName, h.ActionName, ErrQueueFull)
		}
	}
	return queued, nil
}

// Close stops accepting events and waits for queued runs to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) work(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-d.queue:
			if !ok {
				return
			}
			d.report(d.run(ctx, j))
		}
	}
}

func (d *Dispatcher) run(ctx context.Context, j job) Outcome {
	out := Outcome{HookID: j.hook.ID, Plugin: j.hook.PluginName}

	p, err := d.manager.Resolve(j.hook.PluginName, j.hook.ActionName)
	if err != nil {
		out.Err = err
		return out
	}

	req := &Request{
		Action:    j.hook.ActionName,
		Event:     string(j.event.Kind),
		SessionID: j.event.SessionID,
		Reps:      j.event.Reps,
		Advisory:  j.event.Advisory,
		Message:   j.event.Message,
		Config:    j.hook.Config,
	}

	out.Response, out.Err = d.executor.Execute(ctx, p, req)
	return out
}

func (d *Dispatcher) report(out Outcome) {
	switch {
	case out.Err != nil:
		log.Printf("Hook %s (%s) failed: %v", out.HookID, out.Plugin, out.Err)
	case !out.Response.Success:
		log.Printf("Hook %s (%s) returned error: %s", out.HookID, out.Plugin, out.Response.Error)
	}

	d.mu.Lock()
	fn := d.onResult
	d.mu.Unlock()
	if fn != nil {
		fn(out)
	}
}
