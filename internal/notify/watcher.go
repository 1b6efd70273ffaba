// Package notify polls for unread notifications in the background and
// reports the ones it has not seen before.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/timegrave/internal/api"
	"github.com/nhle/timegrave/internal/model"
	"github.com/nhle/timegrave/internal/service"
)

// State is the current state of the watcher.
type State int

const (
	StateIdle State = iota
	StatePolling
	StateError
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateError:
		return "error"
	default:
		return "stopped"
	}
}

// Status is a snapshot of the watcher.
type Status struct {
	State    State
	LastPoll time.Time
	Err      error
}

// Result is delivered to the handler after every poll that found new
// notifications or failed.
type Result struct {
	// New holds unread notifications not reported before, in server order.
	New []model.Notification

	// Unread is the number of unread notifications in this poll.
	Unread int

	Err error

	// SessionExpired is set when the backend rejected the session. The
	// watcher stops after delivering it.
	SessionExpired bool
}

// Lister is the part of service.NotificationAPI the watcher needs.
type Lister interface {
	List(ctx context.Context, filter service.NotificationFilter) ([]model.Notification, error)
}

const (
	// DefaultInterval is used when no interval is configured.
	DefaultInterval = 60 * time.Second

	// pollTimeout is the maximum time allowed for a single poll.
	pollTimeout = 30 * time.Second

	pollLimit = 50
)

// Option customises a Watcher.
type Option func(*Watcher)

// WithInterval sets the time between polls.
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithPollTimeout bounds a single poll.
func WithPollTimeout(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithLogger sets the watcher logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// Watcher polls a Lister on a ticker. The handler runs on the watcher's
// goroutine and must not call Stop.
type Watcher struct {
	src      Lister
	handler  func(Result)
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger

	triggerCh chan struct{}

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	done    chan struct{}
	status  Status
	seen    map[model.ID]struct{}
}

// New creates a Watcher that reports to handler.
func New(src Lister, handler func(Result), opts ...Option) *Watcher {
	w := &Watcher{
		src:       src,
		handler:   handler,
		interval:  DefaultInterval,
		timeout:   pollTimeout,
		logger:    zap.NewNop(),
		triggerCh: make(chan struct{}, 1),
		status:    Status{State: StateStopped},
		seen:      make(map[model.ID]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the polling goroutine. It polls once immediately. Calling
// Start on a running watcher does nothing.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.done = make(chan struct{})
	w.status.State = StateIdle
	stop, done := w.stopCh, w.done
	w.mu.Unlock()

	go w.loop(ctx, stop, done)
}

// Stop halts polling and waits for the goroutine to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.running {
		close(w.stopCh)
		w.running = false
	}
	done := w.done
	w.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Done is closed when the polling goroutine exits, whether through Stop,
// context cancellation or an expired session.
func (w *Watcher) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done
}

// Refresh triggers an immediate poll.
func (w *Watcher) Refresh() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
		// A poll is already pending.
	}
}

// Status returns the current watcher status.
func (w *Watcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

func (w *Watcher) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer w.halt()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	if !w.poll(ctx) {
		return
	}
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.triggerCh:
		}
		if !w.poll(ctx) {
			return
		}
	}
}

// poll performs one fetch and reports whether polling should continue.
func (w *Watcher) poll(ctx context.Context) bool {
	w.setStatus(StatePolling, nil)

	pctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	list, err := w.src.List(pctx, service.NotificationFilter{UnreadOnly: true, Limit: pollLimit})
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		w.setStatus(StateError, err)

		if api.IsUnauthorized(err) {
			w.logger.Info("session expired; notification watcher stopping")
			w.deliver(Result{Err: err, SessionExpired: true})
			return false
		}

		w.logger.Warn("polling notifications", zap.Error(err))
		w.deliver(Result{Err: err})
		return true
	}

	fresh := w.markSeen(list)
	w.setStatus(StateIdle, nil)
	if len(fresh) > 0 {
		w.deliver(Result{New: fresh, Unread: len(list)})
	}
	return true
}

func (w *Watcher) markSeen(list []model.Notification) []model.Notification {
	w.mu.Lock()
	defer w.mu.Unlock()

	var fresh []model.Notification
	for _, n := range list {
		if n.IsRead {
			continue
		}
		if _, ok := w.seen[n.ID]; ok {
			continue
		}
		w.seen[n.ID] = struct{}{}
		fresh = append(fresh, n)
	}
	return fresh
}

func (w *Watcher) deliver(r Result) {
	if w.handler != nil {
		w.handler(r)
	}
}

func (w *Watcher) setStatus(state State, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.status.State = state
	w.status.Err = err
	if state == StateIdle && err == nil {
		w.status.LastPoll = time.Now()
	}
}

// halt records that the goroutine has exited.
func (w *Watcher) halt() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.running = false
	if w.status.State != StateError {
		w.status.State = StateStopped
	}
}
