package integrity

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vinayprograms/taskkit/logging"
)

// Scheduler runs a repair function on a fixed interval in the
// background. Cancellation takes effect before the next tick; an
// in-flight run completes.
type Scheduler struct {
	id       string
	interval time.Duration
	run      func()
	log      *logging.Logger

	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewScheduler creates a scheduler invoking run every interval.
func NewScheduler(interval time.Duration, run func(), log *logging.Logger) *Scheduler {
	if log == nil {
		log = logging.New()
	}
	return &Scheduler{
		id:       uuid.New().String(),
		interval: interval,
		run:      run,
		log:      log.WithComponent("scheduler"),
	}
}

// ID returns the schedule handle used for cancellation.
func (s *Scheduler) ID() string {
	return s.id
}

// Interval returns the configured tick interval.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Start launches the background loop. The first run happens after one
// interval, not immediately.
func (s *Scheduler) Start() {
	if s.running.Swap(true) {
		return
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	s.log.Debug("schedule started", map[string]interface{}{
		"id":       s.id,
		"interval": s.interval.String(),
	})
	go s.loop()
}

// loop ticks until stopped.
func (s *Scheduler) loop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.run()
		}
	}
}

// Stop cancels the schedule and waits for any in-flight run to finish.
// Safe to call more than once.
func (s *Scheduler) Stop() {
	if !s.running.Swap(false) {
		return
	}
	close(s.stopCh)
	<-s.doneCh
	s.log.Debug("schedule stopped", map[string]interface{}{"id": s.id})
}
