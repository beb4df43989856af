// Package subscription turns one-shot active window queries into a stream of
// focus change notifications.
//
// Each subscription owns a poller goroutine that queries the source, compares
// the result with the last window it reported and invokes the observer
// callback when focus moved. The callback runs on the poller goroutine and the
// poller does not query again until it returns, so a slow observer only slows
// down its own subscription.
package subscription

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/bryanchriswhite/xwin/internal/logger"
	"github.com/bryanchriswhite/xwin/internal/window"
)

// DefaultInterval is the pause between two polls of one subscription.
const DefaultInterval = 100 * time.Millisecond

var (
	// ErrNotFound is returned when unsubscribing a handle that is unknown or
	// already stopped.
	ErrNotFound = errors.New("subscription not found")

	// ErrClosed is returned by Subscribe after Close.
	ErrClosed = errors.New("subscription engine closed")

	errNilCallback = errors.New("nil callback")
)

// Source reports the currently focused window.
type Source interface {
	GetActiveWindow() window.WindowInfo
}

// Callback receives focus changes for one subscription.
type Callback func(window.WindowInfo)

// Engine owns the registry of running pollers.
type Engine struct {
	source   Source
	interval time.Duration

	mu      sync.Mutex
	nextID  uint32
	pollers map[uint32]context.CancelFunc
	closed  bool

	wg sync.WaitGroup
}

// NewEngine creates an engine polling source every interval. A non-positive
// interval uses DefaultInterval.
func NewEngine(source Source, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Engine{
		source:   source,
		interval: interval,
		pollers:  make(map[uint32]context.CancelFunc),
	}
}

// Interval returns the poll interval.
func (e *Engine) Interval() time.Duration {
	return e.interval
}

// Subscribe starts a poller for cb and returns its handle. It does not wait
// for the first poll.
func (e *Engine) Subscribe(cb Callback) (uint32, error) {
	if cb == nil {
		return 0, errNilCallback
	}

	ctx, cancel := context.WithCancel(context.Background())

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		cancel()
		return 0, ErrClosed
	}
	e.nextID++
	id := e.nextID
	e.pollers[id] = cancel
	e.wg.Add(1)
	e.mu.Unlock()

	go e.poll(ctx, id, cb)

	logger.WithComponent("subscription").Debug().Uint32("id", id).Msg("Subscribed")
	return id, nil
}

// Unsubscribe stops the poller for id. A callback that is already running
// finishes; no new one starts after Unsubscribe returns.
func (e *Engine) Unsubscribe(id uint32) error {
	e.mu.Lock()
	cancel, ok := e.pollers[id]
	if ok {
		delete(e.pollers, id)
	}
	e.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	cancel()

	logger.WithComponent("subscription").Debug().Uint32("id", id).Msg("Unsubscribed")
	return nil
}

// UnsubscribeAll stops every poller.
func (e *Engine) UnsubscribeAll() {
	e.mu.Lock()
	pollers := e.pollers
	e.pollers = make(map[uint32]context.CancelFunc)
	e.mu.Unlock()

	for _, cancel := range pollers {
		cancel()
	}

	logger.WithComponent("subscription").Debug().Int("count", len(pollers)).Msg("Unsubscribed all")
}

// Close stops every poller and rejects further subscriptions.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.UnsubscribeAll()
}

// Wait blocks until every stopped poller has exited or ctx is done.
func (e *Engine) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Count returns the number of active subscriptions.
func (e *Engine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pollers)
}

// Handles returns the active subscription handles in ascending order.
func (e *Engine) Handles() []uint32 {
	e.mu.Lock()
	ids := make([]uint32, 0, len(e.pollers))
	for id := range e.pollers {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (e *Engine) poll(ctx context.Context, id uint32, cb Callback) {
	defer e.wg.Done()
	log := logger.WithComponent("subscription")

	// The zero record matches the sentinel of any backend with an empty
	// title, so a desktop with nothing focused produces no callback.
	var last window.WindowInfo

	wait := time.NewTimer(e.interval)
	defer wait.Stop()

	for {
		if ctx.Err() != nil {
			log.Debug().Uint32("id", id).Msg("Poller stopped")
			return
		}

		current := e.source.GetActiveWindow()
		if !current.SameFocus(last) {
			last = current
			if ctx.Err() != nil {
				log.Debug().Uint32("id", id).Msg("Poller stopped")
				return
			}
			cb(current)
		}

		wait.Reset(e.interval)
		select {
		case <-ctx.Done():
			log.Debug().Uint32("id", id).Msg("Poller stopped")
			return
		case <-wait.C:
		}
	}
}
