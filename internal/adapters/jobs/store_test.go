package jobs

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phenrril/tiendatextil/internal/domain"
)

type memMirror struct {
	mu   sync.Mutex
	puts int
	jobs map[uuid.UUID]domain.ImportJob
}

func newMemMirror() *memMirror { return &memMirror{jobs: map[uuid.UUID]domain.ImportJob{}} }

func (m *memMirror) Put(_ context.Context, job domain.ImportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	m.jobs[job.ID] = job
	return nil
}

func (m *memMirror) Get(_ context.Context, id uuid.UUID) (*domain.ImportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &j, nil
}

func TestStoreLifecycle(t *testing.T) {
	s := NewStore(nil)
	ctx := context.Background()

	job := s.Create("toptex", "catalogue.xlsx", 3)
	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.Equal(t, 3, job.Progress.Total)

	s.SetProgress(job.ID, domain.ImportProgress{Current: 1, Total: 3, Errors: []string{"x"}})
	got, ok := s.Get(ctx, job.ID)
	require.True(t, ok)
	assert.Equal(t, domain.JobStatusProcessing, got.Status)
	assert.Equal(t, 1, got.Progress.Current)

	got.Progress.Errors[0] = "mutated"
	again, _ := s.Get(ctx, job.ID)
	assert.Equal(t, "x", again.Progress.Errors[0])

	s.Complete(job.ID, domain.JobStatusCompleted, domain.ImportProgress{Current: 3, Completed: 3, Total: 3})
	done, _ := s.Get(ctx, job.ID)
	assert.Equal(t, domain.JobStatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)

	_, ok = s.Get(ctx, uuid.New())
	assert.False(t, ok)

	s.SetProgress(uuid.New(), domain.ImportProgress{})
}

func TestStoreCleanupOld(t *testing.T) {
	s := NewStore(nil)
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	old := s.Create("sologroup", "a.xlsx", 1)
	s.Complete(old.ID, domain.JobStatusFailed, domain.ImportProgress{})
	running := s.Create("sologroup", "b.xlsx", 1)

	clock = clock.Add(2 * time.Hour)
	s.CleanupOld()

	_, ok := s.Get(context.Background(), old.ID)
	assert.False(t, ok)
	_, ok = s.Get(context.Background(), running.ID)
	assert.True(t, ok)
}

func (m *memMirror) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

func TestStoreMirrorsAndThrottles(t *testing.T) {
	m := newMemMirror()
	s := NewStore(m)
	defer s.Close()
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	job := s.Create("imbretex", "c.xlsx", 10)
	for i := 1; i <= 5; i++ {
		s.SetProgress(job.ID, domain.ImportProgress{Current: i, Total: 10})
	}
	s.Flush()
	assert.Equal(t, 1, m.count())

	clock = clock.Add(1500 * time.Millisecond)
	s.SetProgress(job.ID, domain.ImportProgress{Current: 6, Total: 10})
	s.Flush()
	assert.Equal(t, 2, m.count())

	s.Complete(job.ID, domain.JobStatusCompleted, domain.ImportProgress{Current: 10, Completed: 10, Total: 10})
	s.Flush()
	assert.Equal(t, 3, m.count())

	other := NewStore(m)
	defer other.Close()
	remote, ok := other.Get(context.Background(), job.ID)
	require.True(t, ok)
	assert.Equal(t, domain.JobStatusCompleted, remote.Status)
	assert.Equal(t, 10, remote.Progress.Completed)
}

type slowMirror struct {
	*memMirror
	release chan struct{}
}

func (m *slowMirror) Put(ctx context.Context, job domain.ImportJob) error {
	<-m.release
	return m.memMirror.Put(ctx, job)
}

func TestStorePublishDoesNotWaitForMirror(t *testing.T) {
	m := &slowMirror{memMirror: newMemMirror(), release: make(chan struct{})}
	s := NewStore(m)
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	done := make(chan struct{})
	go func() {
		job := s.Create("toptex", "e.xlsx", 2)
		for i := 1; i <= 20; i++ {
			clock = clock.Add(2 * time.Second)
			s.SetProgress(job.ID, domain.ImportProgress{Current: i, Total: 2})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("progress updates blocked on the mirror")
	}

	close(m.release)
	require.NoError(t, s.Close())
	assert.Equal(t, 21, m.count())

	s.Create("toptex", "f.xlsx", 1)
	assert.Equal(t, 21, m.count())
}

func TestRedisMirrorDegradesWhenUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:0",
		Dialer: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return nil, errors.New("redis disabled in tests")
		},
		MaxRetries: -1,
	})
	defer client.Close()
	m := NewRedisMirrorWithClient(client, time.Minute)

	s := NewStore(m)
	defer s.Close()
	job := s.Create("toptex", "d.xlsx", 1)
	got, ok := s.Get(context.Background(), job.ID)
	require.True(t, ok)
	assert.Equal(t, job.ID, got.ID)

	_, ok = s.Get(context.Background(), uuid.New())
	assert.False(t, ok)
}

func TestNewRedisMirrorRejectsBadURL(t *testing.T) {
	_, err := NewRedisMirror(context.Background(), "not a url")
	assert.Error(t, err)
}
