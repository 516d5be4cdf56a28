// Package clock owns every per-game countdown timer in the process. The rest
// of the system only ever sees Start and Cancel; no raw timer handles leak
// out.
package clock

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type Scheduler struct {
	mu       sync.Mutex
	stops    map[string]chan struct{}
	interval time.Duration
	log      *zap.Logger
}

func NewScheduler(log *zap.Logger) *Scheduler {
	return &Scheduler{
		stops:    make(map[string]chan struct{}),
		interval: time.Second,
		log:      log,
	}
}

// NewTestScheduler ticks at the given interval so tests don't wait on wall
// seconds.
func NewTestScheduler(log *zap.Logger, interval time.Duration) *Scheduler {
	s := NewScheduler(log)
	s.interval = interval
	return s
}

// Start arms the timer for a game, cancelling any existing one first so there
// is at most one live timer per game. tick runs once per interval on the
// timer goroutine; the receiver must re-derive remaining time from its own
// checkpoint rather than counting invocations.
func (s *Scheduler) Start(code string, tick func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stop, ok := s.stops[code]; ok {
		close(stop)
	}
	stop := make(chan struct{})
	s.stops[code] = stop

	s.log.Debug("timer started", zap.String("game", code))
	go func() {
		t := time.NewTicker(s.interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				tick()
			}
		}
	}()
}

func (s *Scheduler) Cancel(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stop, ok := s.stops[code]; ok {
		close(stop)
		delete(s.stops, code)
		s.log.Debug("timer cancelled", zap.String("game", code))
	}
}

func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for code, stop := range s.stops {
		close(stop)
		delete(s.stops, code)
	}
}

// Active reports whether a timer is currently armed for the game.
func (s *Scheduler) Active(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.stops[code]
	return ok
}
