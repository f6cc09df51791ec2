package service_test

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/unclebandit/activity-sim/internal/activity"
	"github.com/unclebandit/activity-sim/internal/content"
	appErrors "github.com/unclebandit/activity-sim/internal/errors"
	"github.com/unclebandit/activity-sim/internal/executor"
	"github.com/unclebandit/activity-sim/internal/model"
	"github.com/unclebandit/activity-sim/internal/queue"
	"github.com/unclebandit/activity-sim/internal/random"
	"github.com/unclebandit/activity-sim/internal/repository"
	"github.com/unclebandit/activity-sim/internal/repository/memory"
	"github.com/unclebandit/activity-sim/internal/service"
)

func TestMain(m *testing.M) {
	// genai links opencensus, whose view worker starts in init
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type env struct {
	svc       *service.CampaignService
	campaigns *memory.CampaignRepository
	records   *memory.ActivityRecordRepository
	content   *memory.ContentRepository
	queue     *queue.InMemoryQueue

	mu     sync.Mutex
	events []model.CampaignEvent
}

type dispatchFunc func(ctx context.Context, req activity.Request) activity.Result

func (f dispatchFunc) Dispatch(ctx context.Context, req activity.Request) activity.Result {
	return f(ctx, req)
}

// newEnv wires the service over the in-memory store seeded with 100 bots.
// wrap, when set, decorates the real dispatcher.
func newEnv(t *testing.T, timeScale float64, wrap func(executor.Dispatcher) executor.Dispatcher) *env {
	t.Helper()
	e := &env{
		campaigns: memory.NewCampaignRepository(),
		records:   memory.NewActivityRecordRepository(),
		content:   memory.NewContentRepository(),
		queue:     newQueue(),
	}
	personas := memory.NewPersonaRepository()
	memory.SeedDemo(personas, e.content, 100, time.Now())

	src := random.NewSeeded(99)
	disp, err := activity.NewDispatcher(&activity.Deps{
		Personas:  personas,
		Content:   e.content,
		Generator: content.NewTemplateGenerator(),
		Rand:      src,
	})
	require.NoError(t, err)
	var d executor.Dispatcher = disp
	if wrap != nil {
		d = wrap(disp)
	}

	require.NoError(t, queue.StartLifecycleSubscriber(e.queue, nil, func(ev model.CampaignEvent) {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.events = append(e.events, ev)
	}))

	e.svc = service.NewCampaignService(service.Options{
		Campaigns:  e.campaigns,
		Records:    e.records,
		Personas:   personas,
		Dispatcher: d,
		Queue:      e.queue,
		Rand:       src,
		BatchSize:  5,
		TimeScale:  timeScale,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, e.svc.Shutdown(ctx))
		assert.NoError(t, e.queue.Close())
	})
	return e
}

func newQueue() *queue.InMemoryQueue {
	q := queue.NewInMemoryQueue(nil)
	q.Backoff = time.Millisecond
	return q
}

func (e *env) eventTypes(campaignID string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for _, ev := range e.events {
		if ev.CampaignID == campaignID {
			out = append(out, ev.Type)
		}
	}
	return out
}

func waitStatus(t *testing.T, svc *service.CampaignService, id string, want model.CampaignStatus) *service.CampaignStatus {
	t.Helper()
	var snap *service.CampaignStatus
	require.Eventually(t, func() bool {
		s, err := svc.GetCampaignStatus(context.Background(), id)
		if err != nil {
			return false
		}
		snap = s
		return s.Status == want
	}, 5*time.Second, 5*time.Millisecond, "campaign %s never reached %s", id, want)
	return snap
}

func likeRequest(bots, total int) service.CampaignRequest {
	return service.CampaignRequest{
		Name:            "likes",
		ActivityType:    "LIKE",
		BotCount:        bots,
		TotalActivities: total,
		DurationHours:   24,
	}
}

func TestOneLikePerBot(t *testing.T) {
	e := newEnv(t, 0, nil)
	ctx := context.Background()

	id, err := e.svc.CreateCampaign(ctx, likeRequest(100, 100))
	require.NoError(t, err)

	snap := waitStatus(t, e.svc, id, model.StatusCompleted)
	assert.Equal(t, 100, snap.TotalExecuted)
	assert.Equal(t, 100, snap.SuccessfulCount+snap.FailedCount)
	assert.Equal(t, 100, snap.SuccessfulCount)
	assert.NotNil(t, snap.StartTime)
	assert.NotNil(t, snap.EndTime)

	perActor := map[string]int{}
	pairs := map[string]bool{}
	for _, l := range e.content.Likes() {
		perActor[l.ActorID]++
		pairs[l.ActorID+"|"+l.PostID] = true
	}
	assert.Len(t, perActor, 100)
	assert.Len(t, pairs, 100)
	for actor, n := range perActor {
		assert.Equal(t, 1, n, actor)
	}

	require.Eventually(t, func() bool {
		return len(e.eventTypes(id)) == 3
	}, time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []string{"campaign.created", "campaign.started", "campaign.completed"}, e.eventTypes(id))
}

func TestUnitsSpreadEvenlyOverBots(t *testing.T) {
	e := newEnv(t, 0, nil)
	ctx := context.Background()

	id, err := e.svc.CreateCampaign(ctx, likeRequest(100, 250))
	require.NoError(t, err)
	snap := waitStatus(t, e.svc, id, model.StatusCompleted)
	assert.Equal(t, 250, snap.TotalExecuted)
	assert.LessOrEqual(t, snap.SuccessfulCount+snap.FailedCount, snap.TotalExecuted)

	records, pagination, err := e.svc.ListActivities(ctx, id, 1, 100)
	require.NoError(t, err)
	assert.Len(t, records, 100)
	assert.Equal(t, 250, pagination["total_count"])
	assert.Equal(t, 3, pagination["total_pages"])

	all, _, err := e.records.ListByCampaign(ctx, id, 0, 1000)
	require.NoError(t, err)
	perActor := map[string]int{}
	for _, r := range all {
		perActor[r.ActorID]++
	}
	for actor, n := range perActor {
		assert.Contains(t, []int{2, 3}, n, actor)
	}
}

func TestCancelStopsAtBatchBoundary(t *testing.T) {
	var svc atomic.Pointer[service.CampaignService]
	var seen atomic.Int32
	e := newEnv(t, 0, func(next executor.Dispatcher) executor.Dispatcher {
		return dispatchFunc(func(ctx context.Context, req activity.Request) activity.Result {
			res := next.Dispatch(ctx, req)
			if seen.Add(1) == 40 {
				_, err := svc.Load().CancelCampaign(ctx, req.CampaignID)
				assert.NoError(t, err)
			}
			return res
		})
	})
	svc.Store(e.svc)

	id, err := e.svc.CreateCampaign(context.Background(), likeRequest(100, 100))
	require.NoError(t, err)

	snap := waitStatus(t, e.svc, id, model.StatusCancelled)
	// unit 40 closes batch 8; no further batch starts
	require.Eventually(t, func() bool {
		s, err := e.svc.GetCampaignStatus(context.Background(), id)
		return err == nil && s.TotalExecuted == 40
	}, time.Second, 5*time.Millisecond)
	assert.NotNil(t, snap.EndTime)

	// give a wrongly scheduled batch the chance to show up
	time.Sleep(50 * time.Millisecond)
	final, err := e.svc.GetCampaignStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 40, final.TotalExecuted)
	assert.Equal(t, model.StatusCancelled, final.Status)

	msg, err := e.svc.CancelCampaign(context.Background(), id)
	require.NoError(t, err, "cancel is idempotent")
	assert.Equal(t, "campaign already cancelled", msg)
}

func TestRepeatedLikeIsDuplicate(t *testing.T) {
	e := newEnv(t, 0, nil)
	req := likeRequest(1, 2)
	req.Config = json.RawMessage(`{"targetId": "post-go-01"}`)

	id, err := e.svc.CreateCampaign(context.Background(), req)
	require.NoError(t, err)

	snap := waitStatus(t, e.svc, id, model.StatusCompleted)
	assert.Equal(t, 2, snap.TotalExecuted)
	assert.Equal(t, 1, snap.SuccessfulCount)
	assert.Equal(t, 1, snap.FailedCount)
	assert.Equal(t, 1, snap.SkippedCount)
	assert.Len(t, e.content.Likes(), 1)
}

func TestRecurringCampaignSpawnsSuccessor(t *testing.T) {
	e := newEnv(t, 0, nil)
	ctx := context.Background()
	req := likeRequest(4, 4)
	req.Config = json.RawMessage(`{"distributeEvenly": true}`)

	id, err := e.svc.CreateRecurringCampaign(ctx, req)
	require.NoError(t, err)

	var family []service.CampaignSummary
	require.Eventually(t, func() bool {
		list, _, err := e.svc.ListCampaigns(ctx, service.ListParams{FamilyID: id, PageSize: 100})
		family = list
		return err == nil && len(list) >= 2
	}, 5*time.Second, 5*time.Millisecond)

	_, err = e.svc.StopRecurringCampaign(ctx, id)
	require.NoError(t, err)

	for _, c := range family {
		assert.Equal(t, id, c.FamilyID)
		assert.Equal(t, "LIKE", c.ActivityType)
		assert.Equal(t, 4, c.TotalActivities)
	}
	assert.NotEqual(t, family[0].ID, family[1].ID)

	succ, err := e.campaigns.GetByID(ctx, family[0].ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"distributeEvenly": true}`, string(succ.Config))
	assert.Equal(t, model.PatternDaily, succ.RecurringPattern)
}

func TestStopRecurringBeforeCompletionPreventsSuccessor(t *testing.T) {
	release := make(chan struct{})
	e := newEnv(t, 0, func(next executor.Dispatcher) executor.Dispatcher {
		return dispatchFunc(func(ctx context.Context, req activity.Request) activity.Result {
			<-release
			return next.Dispatch(ctx, req)
		})
	})
	ctx := context.Background()

	id, err := e.svc.CreateRecurringCampaign(ctx, likeRequest(2, 2))
	require.NoError(t, err)
	_, err = e.svc.StopRecurringCampaign(ctx, id)
	require.NoError(t, err)
	close(release)

	waitStatus(t, e.svc, id, model.StatusCompleted)
	// let a wrongly spawned successor surface
	time.Sleep(50 * time.Millisecond)

	list, pagination, err := e.svc.ListCampaigns(ctx, service.ListParams{FamilyID: id})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, pagination["total_count"])
	assert.False(t, list[0].Recurring)
}

func firstScheduled(t *testing.T, e *env, campaignID string) time.Time {
	t.Helper()
	recs, _, err := e.records.ListByCampaign(context.Background(), campaignID, 0, 100)
	require.NoError(t, err)
	require.NotEmpty(t, recs)
	first := recs[0].ScheduledAt
	for _, r := range recs[1:] {
		if r.ScheduledAt.Before(first) {
			first = r.ScheduledAt
		}
	}
	return first
}

func TestRecurringCyclesStartOneDayApart(t *testing.T) {
	// one simulated day passes in 250ms
	e := newEnv(t, 4*24*3600, nil)
	ctx := context.Background()
	req := likeRequest(2, 2)
	req.DurationHours = 1

	created := time.Now()
	id, err := e.svc.CreateRecurringCampaign(ctx, req)
	require.NoError(t, err)
	waitStatus(t, e.svc, id, model.StatusCompleted)

	// the hour-long cycle is over, the next one is a day away
	time.Sleep(50 * time.Millisecond)
	list, _, err := e.svc.ListCampaigns(ctx, service.ListParams{FamilyID: id})
	require.NoError(t, err)
	assert.Len(t, list, 1, "successor spawned before its daily cycle")

	var family []service.CampaignSummary
	require.Eventually(t, func() bool {
		list, _, err := e.svc.ListCampaigns(ctx, service.ListParams{FamilyID: id, PageSize: 100})
		family = list
		return err == nil && len(list) >= 2
	}, 3*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(created), 200*time.Millisecond)
	require.Len(t, family, 2)

	// most recent first
	succ := family[0].ID
	waitStatus(t, e.svc, succ, model.StatusCompleted)
	_, err = e.svc.StopRecurringCampaign(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, 24*time.Hour, firstScheduled(t, e, succ).Sub(firstScheduled(t, e, id)))

	// past the third cycle's start: the stopped family stays at two
	time.Sleep(300 * time.Millisecond)
	list, _, err = e.svc.ListCampaigns(ctx, service.ListParams{FamilyID: id})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestShutdownEndsWaitForNextCycle(t *testing.T) {
	// an hour passes in a second, so the next cycle is 24s away
	e := newEnv(t, 3600, nil)
	ctx := context.Background()
	req := likeRequest(2, 2)
	req.DurationHours = 1

	id, err := e.svc.CreateRecurringCampaign(ctx, req)
	require.NoError(t, err)
	waitStatus(t, e.svc, id, model.StatusCompleted)

	sctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, e.svc.Shutdown(sctx))

	list, _, err := e.svc.ListCampaigns(ctx, service.ListParams{FamilyID: id})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCancelDuringLastBatchWins(t *testing.T) {
	release := make(chan struct{})
	var entered sync.WaitGroup
	entered.Add(2)
	e := newEnv(t, 0, func(next executor.Dispatcher) executor.Dispatcher {
		return dispatchFunc(func(ctx context.Context, req activity.Request) activity.Result {
			entered.Done()
			<-release
			return next.Dispatch(ctx, req)
		})
	})
	ctx := context.Background()

	// two units fit in one batch, so this is the last one
	id, err := e.svc.CreateRecurringCampaign(ctx, likeRequest(2, 2))
	require.NoError(t, err)
	entered.Wait()
	msg, err := e.svc.CancelCampaign(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "campaign cancelled", msg)
	close(release)

	require.Eventually(t, func() bool {
		s, err := e.svc.GetCampaignStatus(ctx, id)
		return err == nil && s.TotalExecuted == 2
	}, 5*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	snap, err := e.svc.GetCampaignStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, snap.Status)
	list, _, err := e.svc.ListCampaigns(ctx, service.ListParams{FamilyID: id})
	require.NoError(t, err)
	assert.Len(t, list, 1, "a cancelled cycle spawns no successor")
}

func TestShutdownFailsInterruptedCampaigns(t *testing.T) {
	e := newEnv(t, 1, nil)
	ctx := context.Background()

	// with real pacing both units are hours away
	id, err := e.svc.CreateCampaign(ctx, likeRequest(2, 2))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		s, err := e.svc.GetCampaignStatus(ctx, id)
		return err == nil && s.Status == model.StatusRunning
	}, time.Second, 5*time.Millisecond)

	sctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, e.svc.Shutdown(sctx))

	snap, err := e.svc.GetCampaignStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, snap.Status)
	assert.Equal(t, "interrupted by shutdown", snap.FailureReason)
	assert.Less(t, snap.TotalExecuted, 2)

	_, err = e.svc.CreateCampaign(ctx, likeRequest(1, 1))
	assert.ErrorIs(t, err, service.ErrShuttingDown)
}

func TestCreateValidation(t *testing.T) {
	e := newEnv(t, 0, nil)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*service.CampaignRequest)
	}{
		{"blank name", func(r *service.CampaignRequest) { r.Name = "  " }},
		{"unknown type", func(r *service.CampaignRequest) { r.ActivityType = "POKE" }},
		{"zero bots", func(r *service.CampaignRequest) { r.BotCount = 0 }},
		{"zero activities", func(r *service.CampaignRequest) { r.TotalActivities = 0 }},
		{"zero hours", func(r *service.CampaignRequest) { r.DurationHours = 0 }},
		{"too many hours", func(r *service.CampaignRequest) { r.DurationHours = 169 }},
		{"pattern on one-off", func(r *service.CampaignRequest) { r.RecurringPattern = "daily" }},
		{"bad config", func(r *service.CampaignRequest) { r.Config = json.RawMessage(`{"nope": true}`) }},
		{"more bots than personas", func(r *service.CampaignRequest) { r.BotCount = 101 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := likeRequest(10, 10)
			tc.mutate(&req)
			_, err := e.svc.CreateCampaign(ctx, req)
			assert.True(t, appErrors.Is(err, appErrors.KindValidation), "got %v", err)
		})
	}

	req := likeRequest(1, 1)
	req.RecurringPattern = "weekly"
	_, err := e.svc.CreateRecurringCampaign(ctx, req)
	assert.True(t, appErrors.Is(err, appErrors.KindValidation))

	list, _, err := e.svc.ListCampaigns(ctx, service.ListParams{})
	require.NoError(t, err)
	assert.Empty(t, list, "rejected campaigns are not persisted")
}

func TestUnknownCampaign(t *testing.T) {
	e := newEnv(t, 0, nil)
	ctx := context.Background()

	_, err := e.svc.GetCampaignStatus(ctx, "missing")
	assert.True(t, appErrors.Is(err, appErrors.KindNotFound))
	_, err = e.svc.CancelCampaign(ctx, "missing")
	assert.True(t, appErrors.Is(err, appErrors.KindNotFound))
	_, err = e.svc.StopRecurringCampaign(ctx, "missing")
	assert.True(t, appErrors.Is(err, appErrors.KindNotFound))
	_, _, err = e.svc.ListActivities(ctx, "missing", 1, 10)
	assert.True(t, appErrors.Is(err, appErrors.KindNotFound))
}

func TestStopRecurringOnOneOffCampaign(t *testing.T) {
	e := newEnv(t, 0, nil)
	id, err := e.svc.CreateCampaign(context.Background(), likeRequest(1, 1))
	require.NoError(t, err)

	_, err = e.svc.StopRecurringCampaign(context.Background(), id)
	assert.True(t, appErrors.Is(err, appErrors.KindValidation))
}

func TestRecoverInterrupted(t *testing.T) {
	e := newEnv(t, 0, nil)
	ctx := context.Background()
	now := time.Now()
	for _, c := range []*model.Campaign{
		{ID: "stale-1", FamilyID: "stale-1", Status: model.StatusPending, CreatedAt: now},
		{ID: "stale-2", FamilyID: "stale-2", Status: model.StatusPending, CreatedAt: now},
		{ID: "done", FamilyID: "done", Status: model.StatusCompleted, CreatedAt: now},
	} {
		require.NoError(t, e.campaigns.Create(ctx, c))
	}
	_, err := e.campaigns.Transition(ctx, "stale-2", []model.CampaignStatus{model.StatusPending}, model.StatusRunning, now, "")
	require.NoError(t, err)

	n, err := e.svc.RecoverInterrupted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	failed, total, err := e.campaigns.ListCampaigns(ctx, repository.CampaignFilter{Status: "failed", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, c := range failed {
		assert.Equal(t, "engine restarted", c.FailureReason)
	}
}
