package session

import (
	"context"
	"sync"
	"time"
)

// DefaultSweepInterval is how often a Sweeper runs when none is configured.
const DefaultSweepInterval = 5 * time.Minute

// Sweeper calls Store.Sweep on a fixed interval until stopped.
type Sweeper struct {
	store    Store
	interval time.Duration
	report   func(removed int, err error)
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
}

// StartSweeper launches the sweep loop. report, if non-nil, is called after
// every pass.
func StartSweeper(store Store, interval time.Duration, report func(removed int, err error)) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	s := &Sweeper{
		store:    store,
		interval: interval,
		report:   report,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Sweeper) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepOnce()
		case <-s.stop:
			return
		}
	}
}

func (s *Sweeper) sweepOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	removed, err := s.store.Sweep(ctx)
	if s.report != nil {
		s.report(removed, err)
	}
}

// Stop halts the loop and waits for an in-flight pass to finish.
func (s *Sweeper) Stop() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		close(s.stop)
		<-s.done
	})
}
