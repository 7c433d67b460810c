// Package session holds extracted records between upload and export.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/joseph-ayodele/pharma-quotes/internal/entity"
	"github.com/joseph-ayodele/pharma-quotes/internal/metrics"
)

const (
	DefaultTTL           = 30 * time.Minute
	DefaultCapacity      = 500
	DefaultSweepInterval = time.Minute
)

// Pending is the result of one extraction waiting for the export decision.
type Pending struct {
	Records      []entity.MedicationRecord
	TotalUnits   int
	SkippedUnits []int
	CreatedAt    time.Time
}

type entry struct {
	pending Pending
	expires time.Time
}

// Store is an in-memory, TTL-bounded map of session ID to Pending. The
// oldest session is evicted when capacity is reached.
type Store struct {
	mu       sync.Mutex
	entries  map[string]*entry
	order    []string
	ttl      time.Duration
	capacity int
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger

	scheduler *gocron.Scheduler
}

type Option func(*Store)

func WithTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.ttl = d
		}
	}
}

func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

func WithSweepInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithClock replaces time.Now; used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func NewStore(logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		entries:  make(map[string]*entry),
		ttl:      DefaultTTL,
		capacity: DefaultCapacity,
		interval: DefaultSweepInterval,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put stores p under id, replacing any previous pending result for id.
func (s *Store) Put(id string, p Pending) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if _, ok := s.entries[id]; ok {
		s.removeLocked(id)
	}
	for len(s.entries) >= s.capacity && len(s.order) > 0 {
		oldest := s.order[0]
		s.removeLocked(oldest)
		s.logger.Warn("session.evicted", "session_id", oldest, "capacity", s.capacity)
	}
	s.entries[id] = &entry{pending: p, expires: now.Add(s.ttl)}
	s.order = append(s.order, id)
	metrics.PendingSessions.Set(float64(len(s.entries)))
}

// Get returns the pending result for id if present and not expired.
func (s *Store) Get(id string) (Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return Pending{}, false
	}
	if !s.now().Before(e.expires) {
		s.removeLocked(id)
		metrics.PendingSessions.Set(float64(len(s.entries)))
		return Pending{}, false
	}
	return e.pending, true
}

// Release drops id. It reports whether a session was present.
func (s *Store) Release(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return false
	}
	s.removeLocked(id)
	metrics.PendingSessions.Set(float64(len(s.entries)))
	return true
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep removes every expired session and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, e := range s.entries {
		if !now.Before(e.expires) {
			s.removeLocked(id)
			removed++
		}
	}
	metrics.PendingSessions.Set(float64(len(s.entries)))
	if removed > 0 {
		s.logger.Info("session.sweep", "removed", removed, "remaining", len(s.entries))
	}
	return removed
}

// Start schedules Sweep on the configured interval.
func (s *Store) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduler != nil {
		return nil
	}
	sched := gocron.NewScheduler(time.UTC)
	if _, err := sched.Every(s.interval).Do(func() { s.Sweep() }); err != nil {
		return err
	}
	sched.StartAsync()
	s.scheduler = sched
	s.logger.Info("session.sweeper.started", "interval", s.interval.String(), "ttl", s.ttl.String())
	return nil
}

func (s *Store) Stop() {
	s.mu.Lock()
	sched := s.scheduler
	s.scheduler = nil
	s.mu.Unlock()
	if sched != nil {
		sched.Stop()
	}
}

func (s *Store) removeLocked(id string) {
	delete(s.entries, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}
