package conntrack

import (
	"log"
	"time"
)

// Purger is the sweep surface of a tracker. Satisfied by *Tracker of any
// type parameters.
type Purger interface {
	PurgeExpired(now time.Time) int
}

// Sweeper drives periodic expiry for hosts that do not run their own timer.
// The tracker itself never spawns goroutines; lookups already treat expired
// entries as absent, the sweep only reclaims their memory.
type Sweeper struct {
	purger     Purger
	interval   time.Duration
	stopSignal chan bool
}

func NewSweeper(purger Purger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		purger:     purger,
		interval:   interval,
		stopSignal: make(chan bool, 1),
	}
}

// Start launches the sweep goroutine. Call Stop to end it.
func (sweeper *Sweeper) Start() {
	go func() {
		ticker := time.NewTicker(sweeper.interval)
		defer ticker.Stop()
		for {
			select {
			case <-sweeper.stopSignal:
				return
			case <-ticker.C:
				if removed := sweeper.purger.PurgeExpired(time.Now()); removed > 0 {
					log.Printf("Sweep removed %d expired connections", removed)
				}
			}
		}
	}()
}

// Stop ends the sweep goroutine. No further purges run after Stop returns,
// except at most one already in flight.
func (sweeper *Sweeper) Stop() {
	sweeper.stopSignal <- true
}
