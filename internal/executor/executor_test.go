package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/unclebandit/activity-sim/internal/activity"
	appErrors "github.com/unclebandit/activity-sim/internal/errors"
	"github.com/unclebandit/activity-sim/internal/model"
	"github.com/unclebandit/activity-sim/internal/repository/memory"
	"github.com/unclebandit/activity-sim/internal/scheduler"
)

func TestMain(m *testing.M) {
	// genai links opencensus, whose view worker starts in init
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type dispatchFunc func(ctx context.Context, req activity.Request) activity.Result

func (f dispatchFunc) Dispatch(ctx context.Context, req activity.Request) activity.Result {
	return f(ctx, req)
}

// plan builds n units one step apart. The actor id encodes the sequence.
func plan(n int, start time.Time, step time.Duration) []scheduler.Unit {
	units := make([]scheduler.Unit, n)
	for i := range units {
		units[i] = scheduler.Unit{
			CampaignID:  "c1",
			Seq:         i,
			ActorID:     fmt.Sprintf("u%03d", i),
			Kind:        activity.KindLike,
			ScheduledAt: start.Add(time.Duration(i) * step),
		}
	}
	return units
}

func seqOf(t *testing.T, actorID string) int {
	var seq int
	_, err := fmt.Sscanf(actorID, "u%03d", &seq)
	assert.NoError(t, err)
	return seq
}

var ids atomic.Int64

func nextID() string { return fmt.Sprintf("rec-%d", ids.Add(1)) }

func setup(t *testing.T) (*memory.CampaignRepository, *memory.ActivityRecordRepository) {
	t.Helper()
	campaigns := memory.NewCampaignRepository()
	require.NoError(t, campaigns.Create(context.Background(), &model.Campaign{
		ID: "c1", FamilyID: "c1", Status: model.StatusRunning, CreatedAt: time.Now(),
	}))
	return campaigns, memory.NewActivityRecordRepository()
}

func TestBatchBarrierAndBound(t *testing.T) {
	campaigns, records := setup(t)
	var inflight, peak, finished, violations atomic.Int32

	d := dispatchFunc(func(ctx context.Context, req activity.Request) activity.Result {
		// every unit of earlier batches must be done before this one starts
		if batch := seqOf(t, req.ActorID) / 5; finished.Load() < int32(batch*5) {
			violations.Add(1)
		}
		n := inflight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inflight.Add(-1)
		finished.Add(1)
		return activity.Result{Success: true, ResultID: "r"}
	})

	units := plan(23, time.Now(), time.Minute)
	e := New(d, campaigns, records, Options{BatchSize: 5, NewID: nextID})
	report := e.Run(context.Background(), "c1", units[0].ScheduledAt, units)

	assert.Equal(t, 23, report.Dispatched)
	assert.Equal(t, 23, report.Succeeded)
	assert.False(t, report.Halted)
	assert.False(t, report.Interrupted)
	assert.LessOrEqual(t, peak.Load(), int32(5))
	assert.Zero(t, violations.Load())

	stats, err := records.Stats(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStats{TotalExecuted: 23, SuccessfulCount: 23}, stats)
}

func TestFailuresAreIsolatedAndClassified(t *testing.T) {
	campaigns, records := setup(t)
	d := dispatchFunc(func(ctx context.Context, req activity.Request) activity.Result {
		switch seqOf(t, req.ActorID) % 3 {
		case 0:
			return activity.Result{Success: true, ResultID: "r", TargetID: "p"}
		case 1:
			err := appErrors.Duplicate("like", "already liked")
			return activity.Result{ErrorKind: appErrors.KindDuplicate, Err: err, TargetID: "p"}
		default:
			err := appErrors.External("content.generate", errors.New("timeout"))
			return activity.Result{ErrorKind: appErrors.KindExternalService, Err: err}
		}
	})

	units := plan(12, time.Now(), time.Second)
	report := New(d, campaigns, records, Options{NewID: nextID}).Run(context.Background(), "c1", units[0].ScheduledAt, units)

	assert.Equal(t, 12, report.Dispatched)
	assert.Equal(t, 4, report.Succeeded)
	assert.Equal(t, 8, report.Failed)

	stats, err := records.Stats(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 12, stats.TotalExecuted)
	assert.Equal(t, 4, stats.SuccessfulCount)
	assert.Equal(t, 8, stats.FailedCount)
	assert.Equal(t, 4, stats.SkippedCount)
	assert.Equal(t, stats.TotalExecuted, stats.SuccessfulCount+stats.FailedCount)

	recs, total, err := records.ListByCampaign(context.Background(), "c1", 0, 50)
	require.NoError(t, err)
	require.Equal(t, 12, total)
	for _, r := range recs {
		assert.Equal(t, "LIKE", r.ActivityType)
		if !r.Success {
			assert.NotEmpty(t, r.ErrorKind)
			assert.NotEmpty(t, r.ErrorMessage)
		}
	}
}

func TestCancellationObservedAtBatchBoundary(t *testing.T) {
	campaigns, records := setup(t)
	d := dispatchFunc(func(ctx context.Context, req activity.Request) activity.Result {
		if seqOf(t, req.ActorID) == 7 {
			_, err := campaigns.Transition(ctx, "c1",
				[]model.CampaignStatus{model.StatusRunning}, model.StatusCancelled, time.Now(), "")
			assert.NoError(t, err)
		}
		return activity.Result{Success: true}
	})

	units := plan(100, time.Now(), time.Second)
	report := New(d, campaigns, records, Options{BatchSize: 5, NewID: nextID}).Run(context.Background(), "c1", units[0].ScheduledAt, units)

	// the batch holding unit 7 runs to completion, nothing after it starts
	assert.True(t, report.Halted)
	assert.Equal(t, 10, report.Dispatched)
	stats, err := records.Stats(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 10, stats.TotalExecuted)
}

func TestPacingFollowsScaledSchedule(t *testing.T) {
	campaigns, records := setup(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	var mu sync.Mutex
	var waits []time.Duration
	opts := Options{
		BatchSize: 1,
		TimeScale: 60,
		Now:       func() time.Time { return now },
		Sleep: func(ctx context.Context, d time.Duration) error {
			mu.Lock()
			defer mu.Unlock()
			waits = append(waits, d)
			return nil
		},
		NewID: nextID,
	}
	d := dispatchFunc(func(context.Context, activity.Request) activity.Result { return activity.Result{Success: true} })

	units := plan(3, now, time.Hour)
	New(d, campaigns, records, opts).Run(context.Background(), "c1", now, units)

	assert.Equal(t, []time.Duration{0, time.Minute, 2 * time.Minute}, waits)
}

func TestContextEndInterruptsRun(t *testing.T) {
	campaigns, records := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var dispatched atomic.Int32
	d := dispatchFunc(func(ctx context.Context, req activity.Request) activity.Result {
		dispatched.Add(1)
		return activity.Result{Success: true}
	})

	// real sleeps against a compressed schedule: the first batch is due
	// immediately, the second in about an hour
	units := plan(4, time.Now(), time.Hour)
	e := New(d, campaigns, records, Options{BatchSize: 2, TimeScale: 1, NewID: nextID})

	done := make(chan Report)
	go func() { done <- e.Run(ctx, "c1", units[0].ScheduledAt, units) }()

	require.Eventually(t, func() bool { return dispatched.Load() >= 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case report := <-done:
		assert.True(t, report.Interrupted)
		assert.False(t, report.Halted)
		assert.Less(t, report.Dispatched, 4)
	case <-time.After(2 * time.Second):
		t.Fatal("executor did not stop after context cancellation")
	}
}

func TestRecordFailuresAreCounted(t *testing.T) {
	campaigns, records := setup(t)
	records.FailAppend = appErrors.Persistence("activity_record.append", errors.New("disk full"))
	d := dispatchFunc(func(context.Context, activity.Request) activity.Result { return activity.Result{Success: true} })

	units := plan(3, time.Now(), time.Second)
	report := New(d, campaigns, records, Options{NewID: nextID}).Run(context.Background(), "c1", units[0].ScheduledAt, units)

	assert.Equal(t, 3, report.Dispatched)
	assert.Equal(t, 3, report.RecordErrors)
}
