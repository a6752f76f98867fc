package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/phenrril/tiendatextil/internal/domain"
)

const (
	retention      = time.Hour
	mirrorInterval = time.Second
	mirrorTimeout  = 2 * time.Second
	mirrorQueue    = 64
)

// Mirror publishes job snapshots outside the process.
type Mirror interface {
	Put(ctx context.Context, job domain.ImportJob) error
	Get(ctx context.Context, id uuid.UUID) (*domain.ImportJob, error)
}

// Store keeps import jobs in memory. Finished jobs are dropped after an hour.
// Mirror writes happen on a single background worker, in publish order.
type Store struct {
	mu       sync.RWMutex
	jobs     map[uuid.UUID]*domain.ImportJob
	mirrored map[uuid.UUID]time.Time
	mirror   Mirror
	now      func() time.Time

	queue   chan domain.ImportJob
	pending sync.WaitGroup
	stop    chan struct{}
	closed  bool
}

func NewStore(mirror Mirror) *Store {
	s := &Store{
		jobs:     make(map[uuid.UUID]*domain.ImportJob),
		mirrored: make(map[uuid.UUID]time.Time),
		mirror:   mirror,
		now:      time.Now,
	}
	if mirror != nil {
		s.queue = make(chan domain.ImportJob, mirrorQueue)
		s.stop = make(chan struct{})
		go s.drain()
	}
	return s
}

// Flush blocks until every queued snapshot has reached the mirror.
func (s *Store) Flush() {
	s.pending.Wait()
}

// Close flushes queued snapshots and stops the mirror worker. Later updates
// stay in memory only.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed || s.queue == nil {
		s.closed = true
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.pending.Wait()
	close(s.stop)
	return nil
}

func (s *Store) Create(supplier, fileName string, total int) domain.ImportJob {
	s.CleanupOld()

	s.mu.Lock()
	job := &domain.ImportJob{
		ID:        uuid.New(),
		Supplier:  supplier,
		FileName:  fileName,
		Status:    domain.JobStatusPending,
		Progress:  domain.ImportProgress{Total: total, Status: "En attente"},
		StartedAt: s.now(),
	}
	s.jobs[job.ID] = job
	snap := cloneJob(job)
	s.mu.Unlock()

	s.publish(snap, true)
	return snap
}

// Get returns the job from memory, falling back to the mirror for jobs
// started by another instance.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (domain.ImportJob, bool) {
	s.mu.RLock()
	job, ok := s.jobs[id]
	var snap domain.ImportJob
	if ok {
		snap = cloneJob(job)
	}
	s.mu.RUnlock()
	if ok {
		return snap, true
	}
	if s.mirror == nil {
		return domain.ImportJob{}, false
	}
	remote, err := s.mirror.Get(ctx, id)
	if err != nil || remote == nil {
		return domain.ImportJob{}, false
	}
	return *remote, true
}

// SetProgress stores the latest snapshot and marks the job as processing.
func (s *Store) SetProgress(id uuid.UUID, p domain.ImportProgress) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	job.Status = domain.JobStatusProcessing
	job.Progress = p.Clone()
	snap := cloneJob(job)
	s.mu.Unlock()

	s.publish(snap, false)
}

func (s *Store) Complete(id uuid.UUID, status string, p domain.ImportProgress) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	job.Status = status
	job.Progress = p.Clone()
	now := s.now()
	job.CompletedAt = &now
	snap := cloneJob(job)
	s.mu.Unlock()

	s.publish(snap, true)
}

// CleanupOld removes completed or failed jobs older than the retention window.
func (s *Store) CleanupOld() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-retention)
	for id, job := range s.jobs {
		finished := job.Status == domain.JobStatusCompleted || job.Status == domain.JobStatusFailed
		if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(s.jobs, id)
			delete(s.mirrored, id)
		} else if finished && job.StartedAt.Before(cutoff) {
			delete(s.jobs, id)
			delete(s.mirrored, id)
		}
	}
}

// publish queues the snapshot for the mirror at most once per second per job
// unless force is set. Throttled snapshots are dropped when the queue is full;
// forced ones wait for room.
func (s *Store) publish(job domain.ImportJob, force bool) {
	if s.mirror == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	last, seen := s.mirrored[job.ID]
	now := s.now()
	if !force && seen && now.Sub(last) < mirrorInterval {
		s.mu.Unlock()
		return
	}
	s.mirrored[job.ID] = now
	s.pending.Add(1)
	s.mu.Unlock()

	if force {
		s.queue <- job
		return
	}
	select {
	case s.queue <- job:
	default:
		s.pending.Done()
		log.Debug().Str("job", job.ID.String()).Msg("file du miroir pleine, instantané ignoré")
	}
}

func (s *Store) drain() {
	for {
		select {
		case job := <-s.queue:
			s.put(job)
			s.pending.Done()
		case <-s.stop:
			return
		}
	}
}

func (s *Store) put(job domain.ImportJob) {
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if err := s.mirror.Put(ctx, job); err != nil {
		log.Warn().Err(err).Str("job", job.ID.String()).Msg("miroir du job impossible")
	}
}

func cloneJob(j *domain.ImportJob) domain.ImportJob {
	c := *j
	c.Progress = j.Progress.Clone()
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return c
}
