package job

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/linkhound/ingest/internal/domain/model"
)

// ErrWaiterRequired means NewNotifier was called without a Waiter.
var ErrWaiterRequired = errors.New("notifier waiter is required")

// Waiter blocks until the queue signals that a job of the given type may be
// available. The Postgres implementation sits on LISTEN and returns when a
// NOTIFY for the type's channel arrives or the context ends.
type Waiter interface {
	WaitForNotification(ctx context.Context, jobType model.JobType) error
}

// Notifier fans queue wakeups out to idle workers. A worker subscribes for
// its job type and blocks on the returned channel between claim attempts
// instead of polling on a fixed interval.
type Notifier interface {
	Subscribe(jobType model.JobType) (func(), <-chan struct{})
	StopAll()
}

// NotifierOptions configure the default notifier. Zero values fall back to a
// one minute wait window and 250ms error backoff.
type NotifierOptions struct {
	Waiter     Waiter
	WaitWindow time.Duration
	Backoff    time.Duration
}

// listener is the per-job-type fanout state: one background wait loop and
// the set of subscriber channels it wakes.
type listener struct {
	cancel context.CancelFunc
	subs   map[chan struct{}]struct{}
}

// DefaultNotifier multiplexes one Waiter loop per job type across any number
// of subscribers. Loops start on first subscribe and stop when the last
// subscriber for the type leaves.
type DefaultNotifier struct {
	waiter     Waiter
	waitWindow time.Duration
	backoff    time.Duration

	mu        sync.Mutex
	listeners map[model.JobType]*listener
}

func NewNotifier(opts NotifierOptions) (*DefaultNotifier, error) {
	if opts.Waiter == nil {
		return nil, ErrWaiterRequired
	}

	n := &DefaultNotifier{
		waiter:     opts.Waiter,
		waitWindow: opts.WaitWindow,
		backoff:    opts.Backoff,
		listeners:  make(map[model.JobType]*listener),
	}
	if n.waitWindow <= 0 {
		n.waitWindow = time.Minute
	}
	if n.backoff <= 0 {
		n.backoff = 250 * time.Millisecond
	}
	return n, nil
}

// Subscribe registers a wakeup channel for jobType. The channel has a buffer
// of one; notifications arriving while the subscriber is busy coalesce into
// a single pending wakeup. The returned func unsubscribes and closes the
// channel.
func (n *DefaultNotifier) Subscribe(jobType model.JobType) (func(), <-chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()

	l, ok := n.listeners[jobType]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		l = &listener{cancel: cancel, subs: make(map[chan struct{}]struct{})}
		n.listeners[jobType] = l
		go n.waitLoop(ctx, jobType)
	}

	ch := make(chan struct{}, 1)
	l.subs[ch] = struct{}{}

	unsub := func() {
		n.mu.Lock()
		defer n.mu.Unlock()

		l, ok := n.listeners[jobType]
		if !ok {
			return
		}
		if _, ok := l.subs[ch]; !ok {
			return
		}
		delete(l.subs, ch)
		drainAndClose(ch)
		if len(l.subs) == 0 {
			l.cancel()
			delete(n.listeners, jobType)
		}
	}
	return unsub, ch
}

// StopAll cancels every wait loop and closes every subscriber channel.
// Called on shutdown after the workers have been told to stop.
func (n *DefaultNotifier) StopAll() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for jobType, l := range n.listeners {
		l.cancel()
		for ch := range l.subs {
			drainAndClose(ch)
		}
		delete(n.listeners, jobType)
	}
}

func (n *DefaultNotifier) waitLoop(ctx context.Context, jobType model.JobType) {
	for ctx.Err() == nil {
		waitCtx, cancel := context.WithTimeout(ctx, n.waitWindow)
		err := n.waiter.WaitForNotification(waitCtx, jobType)
		cancel()

		// Wake subscribers even when the wait errored or timed out. A
		// spurious wakeup costs one empty claim; a missed one can leave a
		// worker idle with work pending.
		n.broadcast(jobType)

		if err != nil && ctx.Err() == nil {
			timer := time.NewTimer(n.backoff)
			select {
			case <-ctx.Done():
				if !timer.Stop() {
					<-timer.C
				}
				return
			case <-timer.C:
			}
		}
	}
}

func (n *DefaultNotifier) broadcast(jobType model.JobType) {
	n.mu.Lock()
	defer n.mu.Unlock()

	l, ok := n.listeners[jobType]
	if !ok {
		return
	}
	for ch := range l.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// drainAndClose empties any pending wakeup so receivers see a closed channel
// rather than one last stale notification.
func drainAndClose(ch chan struct{}) {
	for {
		select {
		case <-ch:
		default:
			close(ch)
			return
		}
	}
}

var _ Notifier = (*DefaultNotifier)(nil)
