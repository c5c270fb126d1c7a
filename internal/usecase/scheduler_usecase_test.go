package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/lead-scraper/internal/entity"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// blockingRun counts calls and blocks each one until released.
type blockingRun struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	summary entity.ScrapeSummary
}

func newBlockingRun() *blockingRun {
	return &blockingRun{
		started: make(chan struct{}, 10),
		release: make(chan struct{}),
		summary: entity.ScrapeSummary{Success: true, TotalLeads: 3},
	}
}

func (b *blockingRun) run(ctx context.Context, _ entity.Credentials) entity.ScrapeSummary {
	b.calls.Add(1)
	b.started <- struct{}{}
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return b.summary
}

func waitStarted(t *testing.T, b *blockingRun) {
	t.Helper()
	select {
	case <-b.started:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not start")
	}
}

func TestScheduler_StartIsIdempotent(t *testing.T) {
	b := newBlockingRun()
	s := NewScheduler(b.run, SchedulerConfig{Interval: time.Hour})

	require.True(t, s.Start(context.Background(), "creds"))
	waitStarted(t, b)
	assert.False(t, s.Start(context.Background(), "creds"))

	st := s.State()
	assert.True(t, st.IsRunning)
	require.NotNil(t, st.NextScheduledRun)
	assert.Equal(t, time.Hour.Milliseconds(), st.IntervalMs)

	close(b.release)
	require.True(t, s.Stop())
	s.Wait()

	assert.Equal(t, int32(1), b.calls.Load())
}

func TestScheduler_FiringDuringRunIsSkipped(t *testing.T) {
	b := newBlockingRun()
	s := NewScheduler(b.run, SchedulerConfig{Interval: time.Hour})

	s.Start(context.Background(), "")
	waitStarted(t, b)

	s.tick()
	s.tick()
	assert.Equal(t, int32(1), b.calls.Load())

	close(b.release)
	assert.Eventually(t, func() bool { return !s.State().IsRunning }, 2*time.Second, 5*time.Millisecond)

	s.tick()
	waitStarted(t, b)
	assert.Equal(t, int32(2), b.calls.Load())

	s.Stop()
	s.Wait()
}

func TestScheduler_RecordsResultAndReportsHealth(t *testing.T) {
	b := newBlockingRun()
	close(b.release)
	api := &fakeAPI{}
	history := &memoryHistory{}
	s := NewScheduler(b.run, SchedulerConfig{Interval: time.Hour, Health: api, History: history})

	s.Start(context.Background(), "creds")
	waitStarted(t, b)
	assert.Eventually(t, func() bool { return s.State().LastRunResult != nil && !s.State().IsRunning }, 2*time.Second, 5*time.Millisecond)
	s.Stop()
	s.Wait()

	st := s.State()
	require.NotNil(t, st.LastRunResult)
	assert.True(t, st.LastRunResult.Success)
	assert.Equal(t, 3, st.LastRunResult.LeadsFound)
	assert.Equal(t, entity.PlatformSlack, st.LastRunResult.Platform)
	assert.NotEmpty(t, st.LastRunResult.ID)
	assert.False(t, st.LastRunResult.EndTime.Before(st.LastRunResult.StartTime))
	assert.Nil(t, st.NextScheduledRun)

	calls := api.snapshot()
	assert.Len(t, calls.successes, 1)
	assert.Empty(t, calls.errorsPosted)
	assert.Len(t, history.all(), 1)
}

func TestScheduler_PanicIsContained(t *testing.T) {
	var calls atomic.Int32
	api := &fakeAPI{}
	s := NewScheduler(func(context.Context, entity.Credentials) entity.ScrapeSummary {
		calls.Add(1)
		panic("browser crashed")
	}, SchedulerConfig{Interval: time.Hour, Health: api})

	s.Start(context.Background(), "")
	assert.Eventually(t, func() bool {
		st := s.State()
		return st.LastRunResult != nil && !st.IsRunning
	}, 2*time.Second, 5*time.Millisecond)

	st := s.State()
	assert.False(t, st.LastRunResult.Success)
	assert.Contains(t, st.LastRunResult.Error, "browser crashed")
	assert.NotNil(t, st.NextScheduledRun, "still armed after a failed run")

	s.tick()
	assert.Eventually(t, func() bool { return calls.Load() == 2 }, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	s.Wait()
	assert.Len(t, api.snapshot().errorsPosted, 2)
}

// panickingHealth fails every report with a panic.
type panickingHealth struct{}

func (panickingHealth) ReportSuccess(context.Context, entity.Credentials, entity.HealthReport) error {
	panic("health endpoint client bug")
}

func (panickingHealth) ReportError(context.Context, entity.Credentials, entity.HealthReport) error {
	panic("health endpoint client bug")
}

func TestScheduler_ReportPanicIsContained(t *testing.T) {
	var calls atomic.Int32
	history := &memoryHistory{}
	s := NewScheduler(func(context.Context, entity.Credentials) entity.ScrapeSummary {
		calls.Add(1)
		return entity.ScrapeSummary{Success: true, TotalLeads: 1}
	}, SchedulerConfig{Interval: time.Hour, Health: panickingHealth{}, History: history})

	s.Start(context.Background(), "")
	assert.Eventually(t, func() bool {
		st := s.State()
		return st.LastRunResult != nil && !st.IsRunning
	}, 2*time.Second, 5*time.Millisecond)

	st := s.State()
	assert.True(t, st.LastRunResult.Success)
	assert.Equal(t, 1, st.LastRunResult.LeadsFound)
	require.NotNil(t, st.NextScheduledRun)
	assert.Eventually(t, func() bool { return len(history.all()) == 1 }, 2*time.Second, 5*time.Millisecond, "history is saved after a report panic")

	s.tick()
	assert.Eventually(t, func() bool { return calls.Load() == 2 }, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	s.Wait()
}

func TestScheduler_RunTimeoutEndsStuckRun(t *testing.T) {
	b := newBlockingRun()
	b.summary = entity.ScrapeSummary{Error: "cancelled"}
	s := NewScheduler(b.run, SchedulerConfig{Interval: time.Hour, RunTimeout: 20 * time.Millisecond})

	s.Start(context.Background(), "")
	waitStarted(t, b)
	assert.Eventually(t, func() bool {
		st := s.State()
		return st.LastRunResult != nil && !st.IsRunning
	}, 2*time.Second, 5*time.Millisecond)
	assert.False(t, s.State().LastRunResult.Success)

	s.tick()
	waitStarted(t, b)
	assert.Equal(t, int32(2), b.calls.Load())

	s.Stop()
	s.Wait()
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	s := NewScheduler(func(context.Context, entity.Credentials) entity.ScrapeSummary {
		return entity.ScrapeSummary{Success: true}
	}, SchedulerConfig{Interval: time.Hour})

	assert.False(t, s.Stop())
	s.Start(context.Background(), "")
	assert.True(t, s.Stop())
	assert.False(t, s.Stop())
	s.Wait()

	assert.Nil(t, s.State().NextScheduledRun)
}

func TestScheduler_TickerFires(t *testing.T) {
	var calls atomic.Int32
	s := NewScheduler(func(context.Context, entity.Credentials) entity.ScrapeSummary {
		calls.Add(1)
		return entity.ScrapeSummary{Success: true}
	}, SchedulerConfig{Interval: 20 * time.Millisecond})

	s.Start(context.Background(), "")
	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()
	s.Wait()
}

type memoryHistory struct {
	mu   sync.Mutex
	runs []*entity.ScrapeRunResult
}

func (m *memoryHistory) Save(_ context.Context, run *entity.ScrapeRunResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *memoryHistory) Recent(context.Context, int) ([]*entity.ScrapeRunResult, error) {
	return m.all(), nil
}

func (m *memoryHistory) all() []*entity.ScrapeRunResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*entity.ScrapeRunResult(nil), m.runs...)
}
