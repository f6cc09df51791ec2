// Package executor runs an execution plan in fixed-size concurrent batches.
package executor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/activity-sim/internal/activity"
	appErrors "github.com/unclebandit/activity-sim/internal/errors"
	"github.com/unclebandit/activity-sim/internal/logging"
	"github.com/unclebandit/activity-sim/internal/model"
	"github.com/unclebandit/activity-sim/internal/repository"
	"github.com/unclebandit/activity-sim/internal/scheduler"
)

const DefaultBatchSize = 5

// Dispatcher runs one unit. It must not return errors or panic; failures are
// carried in the Result.
type Dispatcher interface {
	Dispatch(ctx context.Context, req activity.Request) activity.Result
}

// CampaignReader is how the executor observes cancellation.
type CampaignReader interface {
	GetByID(ctx context.Context, id string) (*model.Campaign, error)
}

type Options struct {
	BatchSize int
	// TimeScale compresses the plan: a unit scheduled one hour in runs after
	// 1h/TimeScale of wall time. Zero disables pacing.
	TimeScale float64
	Now       func() time.Time
	// Sleep waits for d or until ctx is done.
	Sleep  func(ctx context.Context, d time.Duration) error
	NewID  func() string
	Logger *zap.Logger
}

type Executor struct {
	dispatcher Dispatcher
	campaigns  CampaignReader
	records    repository.ActivityRecordRepositoryInterface
	opts       Options
	logger     *zap.Logger
}

// Report summarises one run.
type Report struct {
	Planned    int
	Dispatched int
	Succeeded  int
	Failed     int
	// Halted is set when the campaign was found cancelled at a batch boundary.
	Halted bool
	// Interrupted is set when ctx ended before the plan was consumed.
	Interrupted  bool
	RecordErrors int
}

func New(d Dispatcher, campaigns CampaignReader, records repository.ActivityRecordRepositoryInterface, opts Options) *Executor {
	if opts.BatchSize < 1 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = Sleep
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Executor{
		dispatcher: d,
		campaigns:  campaigns,
		records:    records,
		opts:       opts,
		logger:     logging.OrNop(opts.Logger),
	}
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run consumes units in order, batch by batch. planStart is the instant the
// plan's offsets are measured from. Batch N+1 never starts before every unit
// of batch N has been recorded, and the campaign's status is checked before
// each batch. Units already in flight finish even if ctx ends.
func (e *Executor) Run(ctx context.Context, campaignID string, planStart time.Time, units []scheduler.Unit) Report {
	report := Report{Planned: len(units)}
	runStart := e.opts.Now()
	log := e.logger.With(zap.String("campaign_id", campaignID))

	for start := 0; start < len(units); start += e.opts.BatchSize {
		if ctx.Err() != nil {
			report.Interrupted = true
			break
		}
		if e.cancelled(ctx, campaignID) {
			report.Halted = true
			log.Info("campaign cancelled, halting", zap.Int("dispatched", report.Dispatched))
			break
		}

		batch := units[start:min(start+e.opts.BatchSize, len(units))]
		var (
			g                                     errgroup.Group
			dispatched, succeeded, failed, recErr atomic.Int32
		)
		for _, u := range batch {
			g.Go(func() error {
				if err := e.waitFor(ctx, runStart, planStart, u.ScheduledAt); err != nil {
					return nil
				}
				dispatched.Add(1)
				rec := e.execute(context.WithoutCancel(ctx), u)
				if rec.Success {
					succeeded.Add(1)
				} else {
					failed.Add(1)
				}
				if err := e.records.Append(context.WithoutCancel(ctx), rec); err != nil {
					recErr.Add(1)
					log.Error("failed to record activity", zap.Int("seq", u.Seq), zap.Error(err))
				}
				return nil
			})
		}
		_ = g.Wait()

		report.Dispatched += int(dispatched.Load())
		report.Succeeded += int(succeeded.Load())
		report.Failed += int(failed.Load())
		report.RecordErrors += int(recErr.Load())
		log.Debug("batch done",
			zap.Int("first_seq", batch[0].Seq),
			zap.Int("size", len(batch)),
			zap.Int32("failed", failed.Load()),
		)
		if int(dispatched.Load()) < len(batch) {
			report.Interrupted = true
			break
		}
	}
	return report
}

func (e *Executor) cancelled(ctx context.Context, campaignID string) bool {
	c, err := e.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		// keep going; a transient read failure must not stall the campaign
		e.logger.Warn("status check failed", zap.String("campaign_id", campaignID), zap.Error(err))
		return false
	}
	return c.Status == model.StatusCancelled
}

func (e *Executor) waitFor(ctx context.Context, runStart, planStart, at time.Time) error {
	if e.opts.TimeScale <= 0 {
		return ctx.Err()
	}
	offset := time.Duration(float64(at.Sub(planStart)) / e.opts.TimeScale)
	return e.opts.Sleep(ctx, runStart.Add(offset).Sub(e.opts.Now()))
}

func (e *Executor) execute(ctx context.Context, u scheduler.Unit) *model.ActivityRecord {
	res := e.dispatcher.Dispatch(ctx, activity.Request{
		CampaignID: u.CampaignID,
		ActorID:    u.ActorID,
		Kind:       u.Kind,
		Config:     u.Config,
	})
	rec := &model.ActivityRecord{
		ID:           e.opts.NewID(),
		CampaignID:   u.CampaignID,
		ActorID:      u.ActorID,
		ActivityType: u.Kind.String(),
		TargetID:     res.TargetID,
		ScheduledAt:  u.ScheduledAt,
		AttemptedAt:  e.opts.Now(),
		Success:      res.Success,
		Outcome:      outcomeOf(res),
		ErrorKind:    string(res.ErrorKind),
		ResultID:     res.ResultID,
	}
	if res.Err != nil {
		rec.ErrorMessage = res.Err.Error()
	}
	return rec
}

func outcomeOf(res activity.Result) string {
	switch {
	case res.Success:
		return model.OutcomeSuccess
	case res.ErrorKind == appErrors.KindDuplicate:
		return model.OutcomeDuplicate
	default:
		return model.OutcomeFailed
	}
}
