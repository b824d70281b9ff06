package game

import (
	"sync"
	"time"
)

// TickerFactory produces a tick channel and a function that releases it.
// Injected so tests can drive countdowns manually.
type TickerFactory func(d time.Duration) (<-chan time.Time, func())

// NewTicker is the production TickerFactory, backed by time.Ticker.
func NewTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// TimerService creates cancellable one-second countdowns.
type TimerService struct {
	newTicker TickerFactory
}

func NewTimerService(factory TickerFactory) *TimerService {
	if factory == nil {
		factory = NewTicker
	}
	return &TimerService{newTicker: factory}
}

// Countdown is a handle to a running countdown. Stop is idempotent and safe
// to call on an already-expired countdown.
type Countdown struct {
	stop     chan struct{}
	stopOnce sync.Once
}

// Start runs a countdown of the given length. onTick fires once per second
// with the remaining value, counting seconds-1 down to 0, then onExpire fires
// exactly once. Callbacks run on the countdown's own goroutine; callers are
// expected to re-serialize them through their own locking.
func (s *TimerService) Start(seconds int, onTick func(remaining int), onExpire func()) *Countdown {
	c := &Countdown{stop: make(chan struct{})}
	ticks, release := s.newTicker(time.Second)

	go func() {
		defer release()

		if seconds <= 0 {
			onExpire()
			return
		}

		remaining := seconds
		for {
			select {
			case <-c.stop:
				return
			case <-ticks:
			}

			// A Stop racing the tick wins: never fire after cancellation
			// was observable.
			select {
			case <-c.stop:
				return
			default:
			}

			remaining--
			onTick(remaining)
			if remaining <= 0 {
				onExpire()
				return
			}
		}
	}()

	return c
}

func (c *Countdown) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}
