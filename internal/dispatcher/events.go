package dispatcher

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/core-coin/vaultminter/internal/models"
	"github.com/core-coin/vaultminter/pkg/logger"
)

type EventType string

const (
	EventReady     EventType = "ready"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventProgress  EventType = "progress"
)

// Event describes a change in a channel or job state.
type Event struct {
	Type  EventType
	Queue string
	// Job is empty for ready events.
	Job      models.Job
	Progress int
	Err      error
	// Terminal marks a failure that will not be retried.
	Terminal bool
	Result   interface{}
	Duration time.Duration
}

// Listener receives dispatcher events. It is called from worker goroutines.
type Listener func(Event)

// QueueStats are the per-queue counters exposed over the API.
type QueueStats struct {
	Ready     bool  `json:"ready"`
	InFlight  int64 `json:"in_flight"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Terminal  int64 `json:"terminal"`
}

type counters struct {
	ready     atomic.Bool
	inFlight  atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	terminal  atomic.Int64
}

type stats struct {
	mu     sync.RWMutex
	queues map[string]*counters
}

func newStats() *stats {
	return &stats{queues: map[string]*counters{}}
}

func (s *stats) get(queue string) *counters {
	s.mu.RLock()
	c, ok := s.queues[queue]
	s.mu.RUnlock()
	if ok {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok = s.queues[queue]; !ok {
		c = &counters{}
		s.queues[queue] = c
	}
	return c
}

func (s *stats) snapshot() map[string]QueueStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]QueueStats, len(s.queues))
	for name, c := range s.queues {
		out[name] = QueueStats{
			Ready:     c.ready.Load(),
			InFlight:  c.inFlight.Load(),
			Completed: c.completed.Load(),
			Failed:    c.failed.Load(),
			Terminal:  c.terminal.Load(),
		}
	}
	return out
}

// record is the default listener: it feeds the counters and logs the event.
func (s *stats) record(log *logger.Logger) Listener {
	return func(e Event) {
		c := s.get(e.Queue)
		l := log.With("queue", e.Queue)
		if e.Job.ID != "" {
			l = l.With("job", e.Job.ID, "kind", e.Job.Kind, "attempt", e.Job.Attempt)
		}

		switch e.Type {
		case EventReady:
			c.ready.Store(true)
			l.Info("Worker ready")
		case EventCompleted:
			c.completed.Add(1)
			l.Infow("Job completed", "elapsed", e.Duration)
		case EventFailed:
			c.failed.Add(1)
			if e.Terminal {
				c.terminal.Add(1)
			}
			l.Errorw("Job failed", "error", e.Err, "terminal", e.Terminal, "elapsed", e.Duration)
		case EventProgress:
			l.Debugw("Job progress", "progress", e.Progress)
		}
	}
}
