package service

import (
	"context"
	"time"

	"github.com/unclebandit/activity-sim/internal/model"
	"github.com/unclebandit/activity-sim/internal/repository"
)

// RecurrenceController spawns the next cycle of a completed recurring campaign.
type RecurrenceController struct {
	Campaigns repository.CampaignRepositoryInterface
	Now       func() time.Time
	NewID     func() string
}

// OnCompleted creates c's successor if c's family is still recurring. It
// returns nil when no successor was created. The family flag is read inside
// the same storage operation that inserts the successor, so a stop that
// lands first always wins.
func (r *RecurrenceController) OnCompleted(ctx context.Context, c *model.Campaign) (*model.Campaign, error) {
	if c.RecurringPattern == "" {
		return nil, nil
	}
	next := &model.Campaign{
		ID:               r.NewID(),
		FamilyID:         c.FamilyID,
		Name:             c.Name,
		ActivityType:     c.ActivityType,
		BotCount:         c.BotCount,
		TotalActivities:  c.TotalActivities,
		DurationHours:    c.DurationHours,
		Recurring:        true,
		RecurringPattern: c.RecurringPattern,
		Config:           c.Config,
		Status:           model.StatusPending,
		CreatedAt:        r.Now(),
	}
	ok, err := r.Campaigns.SpawnSuccessor(ctx, next)
	if err != nil || !ok {
		return nil, err
	}
	return next, nil
}
