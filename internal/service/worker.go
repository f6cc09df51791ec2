package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/activity-sim/internal/executor"
	"github.com/unclebandit/activity-sim/internal/model"
	"github.com/unclebandit/activity-sim/internal/repository"
)

const reasonInterrupted = "interrupted by shutdown"

// cycle anchors one run. Plan offsets are measured from planStart, which is
// simulated time when pacing is scaled; wall is when the run began.
type cycle struct {
	planStart time.Time
	wall      time.Time
}

// launch runs c in the background. Callers hold s.mu and have checked closed.
// A zero cycle starts now.
func (s *CampaignService) launch(c *model.Campaign, actors []string, at cycle) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(c, actors, at)
	}()
}

// run drives one campaign from pending to a terminal status.
func (s *CampaignService) run(c *model.Campaign, actors []string, at cycle) {
	ctx := s.runCtx
	// lifecycle writes must land even while shutting down
	writeCtx := context.WithoutCancel(ctx)
	log := s.logger.With(zap.String("campaign_id", c.ID))

	if at.planStart.IsZero() {
		now := s.now()
		at = cycle{planStart: now, wall: now}
	}
	start := at.planStart
	units, err := s.scheduler.Plan(c, actors, start)
	if err != nil {
		s.finish(writeCtx, c, model.StatusPending, model.StatusFailed, fmt.Sprintf("planning failed: %v", err))
		return
	}

	ok, err := s.CampaignRepo.Transition(writeCtx, c.ID,
		[]model.CampaignStatus{model.StatusPending}, model.StatusRunning, s.now(), "")
	if err != nil {
		log.Error("failed to start campaign", zap.Error(err))
		return
	}
	if !ok {
		log.Info("campaign left pending before start, not running")
		return
	}
	s.publish(c, "campaign.started", model.StatusRunning, "")
	log.Info("campaign started", zap.Int("units", len(units)))

	report := s.executor.Run(ctx, c.ID, start, units)
	log.Info("campaign run finished",
		zap.Int("dispatched", report.Dispatched),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Bool("halted", report.Halted),
		zap.Bool("interrupted", report.Interrupted),
	)

	switch {
	case report.Halted:
		// CancelCampaign already moved it to cancelled
	case report.Interrupted:
		s.finish(writeCtx, c, model.StatusRunning, model.StatusFailed, reasonInterrupted)
	default:
		// a cancel landing during the last batch wins even though every unit ran
		if s.finish(writeCtx, c, model.StatusRunning, model.StatusCompleted, "") {
			s.onCompleted(ctx, writeCtx, c, at)
		}
	}
}

// finish moves c from `from` to `to` and publishes the event. It reports
// whether the transition happened; a concurrent cancel wins.
func (s *CampaignService) finish(ctx context.Context, c *model.Campaign, from, to model.CampaignStatus, reason string) bool {
	ok, err := s.CampaignRepo.Transition(ctx, c.ID, []model.CampaignStatus{from}, to, s.now(), reason)
	if err != nil {
		s.logger.Error("failed to finalise campaign",
			zap.String("campaign_id", c.ID), zap.String("status", string(to)), zap.Error(err))
		return false
	}
	if ok {
		s.publish(c, "campaign."+string(to), to, reason)
	}
	return ok
}

// nextCycle returns the plan start of the cycle after prev and how long to
// wait for it. Cycle starts are one period apart in plan time; a cycle that
// overran its period is followed at once. Without pacing there is no wait.
func (s *CampaignService) nextCycle(prev cycle, period time.Duration) (time.Time, time.Duration) {
	planStart := prev.planStart.Add(period)
	if s.timeScale <= 0 {
		return planStart, 0
	}
	simNow := prev.planStart.Add(time.Duration(float64(s.now().Sub(prev.wall)) * s.timeScale))
	if !simNow.Before(planStart) {
		return simNow, 0
	}
	return planStart, time.Duration(float64(planStart.Sub(simNow)) / s.timeScale)
}

// onCompleted waits for the family's next cycle and spawns the successor
// then, so a stop issued between cycles leaves nothing behind. runCtx ends
// the wait on shutdown.
func (s *CampaignService) onCompleted(runCtx, ctx context.Context, c *model.Campaign, prev cycle) {
	if c.RecurringPattern == "" {
		return
	}
	planStart, wait := s.nextCycle(prev, model.CyclePeriod(c.RecurringPattern))
	if wait > 0 {
		s.logger.Info("waiting for next cycle",
			zap.String("family_id", c.FamilyID), zap.Time("cycle_start", planStart), zap.Duration("wait", wait))
		if err := executor.Sleep(runCtx, wait); err != nil {
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	next, err := s.recurrence.OnCompleted(ctx, c)
	if err != nil {
		s.logger.Error("failed to spawn successor", zap.String("campaign_id", c.ID), zap.Error(err))
		return
	}
	if next == nil {
		return
	}
	actors, err := s.selectBots(ctx, next.BotCount)
	if err != nil {
		s.finish(ctx, next, model.StatusPending, model.StatusFailed, fmt.Sprintf("bot selection failed: %v", err))
		return
	}
	s.logger.Info("successor spawned",
		zap.String("campaign_id", next.ID), zap.String("family_id", next.FamilyID), zap.String("previous_id", c.ID))
	s.publish(next, "campaign.spawned", model.StatusPending, "")
	s.launch(next, actors, cycle{planStart: planStart, wall: s.now()})
}

// RecoverInterrupted fails campaigns left pending or running by a previous
// process. Call it once at startup, before accepting new campaigns.
func (s *CampaignService) RecoverInterrupted(ctx context.Context) (int, error) {
	recovered := 0
	for _, status := range []model.CampaignStatus{model.StatusPending, model.StatusRunning} {
		for {
			stale, _, err := s.CampaignRepo.ListCampaigns(ctx, repository.CampaignFilter{Status: string(status), Limit: 100})
			if err != nil {
				return recovered, err
			}
			if len(stale) == 0 {
				break
			}
			for _, c := range stale {
				if s.finish(ctx, c, status, model.StatusFailed, "engine restarted") {
					recovered++
				} else {
					// left as is; stop rather than spin on the same page
					return recovered, fmt.Errorf("could not recover campaign %s", c.ID)
				}
			}
		}
	}
	if recovered > 0 {
		s.logger.Warn("recovered interrupted campaigns", zap.Int("count", recovered))
	}
	return recovered, nil
}
