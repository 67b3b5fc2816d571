package utils

import (
	"sync"
	"time"
)

// An equivalent to [time.Ticker] that also ticks immediately upon creation.
// Used by long-lived connections that want a snapshot right away and then
// periodic refreshes.
type InstaTicker struct {
	C <-chan time.Time

	done     chan struct{}
	stopOnce sync.Once
	ticker   *time.Ticker
}

func NewInstaTicker(d time.Duration) *InstaTicker {
	ticker := time.NewTicker(d)
	c := make(chan time.Time)
	done := make(chan struct{})
	go func() {
		next := time.Now()
		for {
			select {
			case <-done:
				return
			case c <- next:
			}

			select {
			case <-done:
				return
			case next = <-ticker.C:
			}
		}
	}()
	return &InstaTicker{
		C:      c,
		done:   done,
		ticker: ticker,
	}
}

// Stops the ticker. Safe to call more than once.
func (it *InstaTicker) Stop() {
	it.stopOnce.Do(func() {
		it.ticker.Stop()
		close(it.done)
	})
}
