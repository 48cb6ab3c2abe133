package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todovault/core/internal/domain/entities"
	"github.com/todovault/core/internal/infrastructure/config"
	"github.com/todovault/core/internal/infrastructure/logger"
)

type memJobRepository struct {
	mu   sync.Mutex
	rows map[string]*entities.JobRecord
}

func newMemJobRepository() *memJobRepository {
	return &memJobRepository{rows: make(map[string]*entities.JobRecord)}
}

func (m *memJobRepository) Get(_ context.Context, name string) (*entities.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.rows[name]
	if !ok {
		return nil, entities.ErrJobNotFound
	}
	clone := *record
	return &clone, nil
}

func (m *memJobRepository) Save(_ context.Context, record *entities.JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *record
	m.rows[record.Name] = &clone
	return nil
}

func (m *memJobRepository) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, name)
	return nil
}

func (m *memJobRepository) List(_ context.Context) ([]*entities.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	records := make([]*entities.JobRecord, 0, len(m.rows))
	for _, record := range m.rows {
		clone := *record
		records = append(records, &clone)
	}
	return records, nil
}

func (m *memJobRepository) MarkRun(_ context.Context, name string, lastRun, nextRun time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.rows[name]
	if !ok {
		return entities.ErrJobNotFound
	}
	record.LastRun = &lastRun
	record.NextRun = nextRun
	return nil
}

type fakeHost struct {
	batteryNotLow bool
	deviceIdle    bool
	network       bool
}

func (h *fakeHost) BatteryNotLow() bool    { return h.batteryNotLow }
func (h *fakeHost) DeviceIdle() bool       { return h.deviceIdle }
func (h *fakeHost) NetworkAvailable() bool { return h.network }

func newTestScheduler(jobs *memJobRepository, host *fakeHost) *Scheduler {
	return New(jobs, host, logger.NewNop(), nil, config.SchedulerConfig{
		Tick:       time.Second,
		RunTimeout: time.Minute,
	})
}

func okHost() *fakeHost {
	return &fakeHost{batteryNotLow: true, deviceIdle: true, network: true}
}

func TestSchedulePeriodicValidation(t *testing.T) {
	s := newTestScheduler(newMemJobRepository(), okHost())
	fn := func(context.Context) error { return nil }

	err := s.SchedulePeriodic(context.Background(), Job{Interval: time.Hour, Fn: fn})
	assert.Error(t, err)

	err = s.SchedulePeriodic(context.Background(), Job{Name: "j", Fn: fn})
	assert.Error(t, err)

	err = s.SchedulePeriodic(context.Background(), Job{Name: "j", Interval: time.Hour})
	assert.Error(t, err)
}

func TestSchedulePeriodicUpdatePreservesAnchor(t *testing.T) {
	jobs := newMemJobRepository()
	s := newTestScheduler(jobs, okHost())

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	fn := func(context.Context) error { return nil }
	require.NoError(t, s.SchedulePeriodic(context.Background(), Job{
		Name:     "reminder",
		Interval: time.Hour,
		Policy:   entities.JobPolicyUpdate,
		Fn:       fn,
	}))

	record, err := jobs.Get(context.Background(), "reminder")
	require.NoError(t, err)
	assert.Equal(t, base.Add(time.Hour), record.NextRun)

	// Re-registering later with UPDATE keeps the anchor but merges cadence.
	s.now = func() time.Time { return base.Add(30 * time.Minute) }
	require.NoError(t, s.SchedulePeriodic(context.Background(), Job{
		Name:     "reminder",
		Interval: 2 * time.Hour,
		Flex:     15 * time.Minute,
		Policy:   entities.JobPolicyUpdate,
		Fn:       fn,
	}))

	record, err = jobs.Get(context.Background(), "reminder")
	require.NoError(t, err)
	assert.Equal(t, base.Add(time.Hour), record.NextRun)
	assert.Equal(t, 2*time.Hour, record.Interval())
	assert.Equal(t, 15*time.Minute, record.Flex())
}

func TestSchedulePeriodicReplaceReanchors(t *testing.T) {
	jobs := newMemJobRepository()
	s := newTestScheduler(jobs, okHost())

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	fn := func(context.Context) error { return nil }
	require.NoError(t, s.SchedulePeriodic(context.Background(), Job{
		Name:     "backup",
		Interval: 24 * time.Hour,
		Policy:   entities.JobPolicyUpdate,
		Fn:       fn,
	}))

	s.now = func() time.Time { return base.Add(time.Hour) }
	require.NoError(t, s.SchedulePeriodic(context.Background(), Job{
		Name:     "backup",
		Interval: 48 * time.Hour,
		Policy:   entities.JobPolicyReplace,
		Fn:       fn,
	}))

	record, err := jobs.Get(context.Background(), "backup")
	require.NoError(t, err)
	assert.Equal(t, base.Add(time.Hour).Add(48*time.Hour), record.NextRun)

	records, err := jobs.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSweepFiresDueJob(t *testing.T) {
	jobs := newMemJobRepository()
	s := newTestScheduler(jobs, okHost())

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	ran := make(chan struct{}, 1)
	require.NoError(t, s.SchedulePeriodic(context.Background(), Job{
		Name:     "reminder",
		Interval: time.Hour,
		Fn: func(context.Context) error {
			ran <- struct{}{}
			return nil
		},
	}))

	// Not due yet.
	s.sweep(context.Background())
	select {
	case <-ran:
		t.Fatal("job fired before its window opened")
	case <-time.After(50 * time.Millisecond):
	}

	// Inside the flex window ahead of the anchor.
	s.now = func() time.Time { return base.Add(2 * time.Hour) }
	s.sweep(context.Background())

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not fire after its window opened")
	}
	s.Wait()

	record, err := jobs.Get(context.Background(), "reminder")
	require.NoError(t, err)
	require.NotNil(t, record.LastRun)
	assert.Equal(t, base.Add(2*time.Hour), *record.LastRun)
	assert.Equal(t, base.Add(3*time.Hour), record.NextRun)
}

func TestSweepFiresWithinFlexWindow(t *testing.T) {
	jobs := newMemJobRepository()
	s := newTestScheduler(jobs, okHost())

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	ran := make(chan struct{}, 1)
	require.NoError(t, s.SchedulePeriodic(context.Background(), Job{
		Name:     "reminder",
		Interval: time.Hour,
		Flex:     15 * time.Minute,
		Fn: func(context.Context) error {
			ran <- struct{}{}
			return nil
		},
	}))

	// 10 minutes before the anchor is inside the 15 minute flex window.
	s.now = func() time.Time { return base.Add(50 * time.Minute) }
	s.sweep(context.Background())

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not fire inside the flex window")
	}
	s.Wait()
}

func TestUnmetConstraintDefersFiring(t *testing.T) {
	jobs := newMemJobRepository()
	host := okHost()
	host.batteryNotLow = false
	s := newTestScheduler(jobs, host)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	ran := make(chan struct{}, 1)
	require.NoError(t, s.SchedulePeriodic(context.Background(), Job{
		Name:        "backup",
		Interval:    time.Hour,
		Constraints: entities.JobConstraints{BatteryNotLow: true},
		Fn: func(context.Context) error {
			ran <- struct{}{}
			return nil
		},
	}))

	s.now = func() time.Time { return base.Add(2 * time.Hour) }
	s.sweep(context.Background())
	select {
	case <-ran:
		t.Fatal("job fired despite unmet constraint")
	case <-time.After(50 * time.Millisecond):
	}

	// The schedule anchor must not move while deferred.
	record, err := jobs.Get(context.Background(), "backup")
	require.NoError(t, err)
	assert.Equal(t, base.Add(time.Hour), record.NextRun)
	assert.Nil(t, record.LastRun)

	// Constraint satisfied on a later sweep: the deferred firing happens.
	host.batteryNotLow = true
	s.sweep(context.Background())
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("deferred job did not fire once the constraint held")
	}
	s.Wait()
}

func TestNoOverlappingFirings(t *testing.T) {
	jobs := newMemJobRepository()
	s := newTestScheduler(jobs, okHost())

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	started := make(chan struct{})
	release := make(chan struct{})
	var runs int32
	var mu sync.Mutex
	require.NoError(t, s.SchedulePeriodic(context.Background(), Job{
		Name:     "reminder",
		Interval: time.Hour,
		Fn: func(context.Context) error {
			mu.Lock()
			runs++
			mu.Unlock()
			started <- struct{}{}
			<-release
			return nil
		},
	}))

	s.now = func() time.Time { return base.Add(2 * time.Hour) }
	s.sweep(context.Background())
	<-started

	// While the first firing is in flight, further sweeps must not start
	// a second one.
	s.sweep(context.Background())
	s.sweep(context.Background())
	close(release)
	s.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, int32(1), runs)
}

func TestFailedRunStillAdvancesSchedule(t *testing.T) {
	jobs := newMemJobRepository()
	s := newTestScheduler(jobs, okHost())

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	require.NoError(t, s.SchedulePeriodic(context.Background(), Job{
		Name:     "reminder",
		Interval: time.Hour,
		Fn: func(context.Context) error {
			return errors.New("boom")
		},
	}))

	s.now = func() time.Time { return base.Add(90 * time.Minute) }
	s.sweep(context.Background())
	s.Wait()

	record, err := jobs.Get(context.Background(), "reminder")
	require.NoError(t, err)
	assert.Equal(t, base.Add(90*time.Minute).Add(time.Hour), record.NextRun)
}

func TestPanickingRunIsContained(t *testing.T) {
	jobs := newMemJobRepository()
	s := newTestScheduler(jobs, okHost())

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	require.NoError(t, s.SchedulePeriodic(context.Background(), Job{
		Name:     "reminder",
		Interval: time.Hour,
		Fn: func(context.Context) error {
			panic("boom")
		},
	}))

	s.now = func() time.Time { return base.Add(2 * time.Hour) }
	s.sweep(context.Background())
	s.Wait()

	record, err := jobs.Get(context.Background(), "reminder")
	require.NoError(t, err)
	require.NotNil(t, record.LastRun)
}

func TestCancelIsIdempotent(t *testing.T) {
	jobs := newMemJobRepository()
	s := newTestScheduler(jobs, okHost())

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	ran := make(chan struct{}, 1)
	require.NoError(t, s.SchedulePeriodic(context.Background(), Job{
		Name:     "backup",
		Interval: time.Hour,
		Fn: func(context.Context) error {
			ran <- struct{}{}
			return nil
		},
	}))

	require.NoError(t, s.Cancel(context.Background(), "backup"))
	require.NoError(t, s.Cancel(context.Background(), "backup"))
	require.NoError(t, s.Cancel(context.Background(), "never-scheduled"))

	s.now = func() time.Time { return base.Add(2 * time.Hour) }
	s.sweep(context.Background())
	select {
	case <-ran:
		t.Fatal("cancelled job fired")
	case <-time.After(50 * time.Millisecond):
	}

	_, err := jobs.Get(context.Background(), "backup")
	assert.ErrorIs(t, err, entities.ErrJobNotFound)
}
