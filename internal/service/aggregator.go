package service

import (
	"context"
	"time"

	"github.com/unclebandit/activity-sim/internal/model"
	"github.com/unclebandit/activity-sim/internal/repository"
)

// CampaignSummary is one row of the campaign listing.
type CampaignSummary struct {
	ID              string               `json:"id"`
	FamilyID        string               `json:"familyId"`
	Name            string               `json:"name"`
	ActivityType    string               `json:"activityType"`
	Status          model.CampaignStatus `json:"status"`
	Recurring       bool                 `json:"recurring"`
	BotCount        int                  `json:"botCount"`
	TotalActivities int                  `json:"totalActivities"`
	DurationHours   int                  `json:"durationHours"`
	TotalExecuted   int                  `json:"totalExecuted"`
	SuccessfulCount int                  `json:"successfulCount"`
	FailedCount     int                  `json:"failedCount"`
	SkippedCount    int                  `json:"skippedCount"`
	CreatedAt       time.Time            `json:"createdAt"`
}

// CampaignStatus is the detailed snapshot of one campaign.
type CampaignStatus struct {
	CampaignID      string               `json:"campaignId"`
	Status          model.CampaignStatus `json:"status"`
	TotalActivities int                  `json:"totalActivities"`
	TotalExecuted   int                  `json:"totalExecuted"`
	SuccessfulCount int                  `json:"successfulCount"`
	FailedCount     int                  `json:"failedCount"`
	SkippedCount    int                  `json:"skippedCount"`
	StartTime       *time.Time           `json:"startTime,omitempty"`
	EndTime         *time.Time           `json:"endTime,omitempty"`
	FailureReason   string               `json:"failureReason,omitempty"`
}

// StatusAggregator derives counters from the append-only activity log. It
// takes no locks and may run alongside an executor.
type StatusAggregator struct {
	Campaigns repository.CampaignRepositoryInterface
	Records   repository.ActivityRecordRepositoryInterface
}

func (a *StatusAggregator) Snapshot(ctx context.Context, id string) (*CampaignStatus, error) {
	c, err := a.Campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	stats, err := a.Records.Stats(ctx, id)
	if err != nil {
		return nil, err
	}
	return &CampaignStatus{
		CampaignID:      c.ID,
		Status:          c.Status,
		TotalActivities: c.TotalActivities,
		TotalExecuted:   stats.TotalExecuted,
		SuccessfulCount: stats.SuccessfulCount,
		FailedCount:     stats.FailedCount,
		SkippedCount:    stats.SkippedCount,
		StartTime:       c.StartedAt,
		EndTime:         c.EndedAt,
		FailureReason:   c.FailureReason,
	}, nil
}

// Summaries attaches counters to campaigns with one log query.
func (a *StatusAggregator) Summaries(ctx context.Context, campaigns []*model.Campaign) ([]CampaignSummary, error) {
	ids := make([]string, len(campaigns))
	for i, c := range campaigns {
		ids[i] = c.ID
	}
	stats, err := a.Records.StatsForCampaigns(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]CampaignSummary, len(campaigns))
	for i, c := range campaigns {
		st := stats[c.ID]
		out[i] = CampaignSummary{
			ID:              c.ID,
			FamilyID:        c.FamilyID,
			Name:            c.Name,
			ActivityType:    c.ActivityType,
			Status:          c.Status,
			Recurring:       c.Recurring,
			BotCount:        c.BotCount,
			TotalActivities: c.TotalActivities,
			DurationHours:   c.DurationHours,
			TotalExecuted:   st.TotalExecuted,
			SuccessfulCount: st.SuccessfulCount,
			FailedCount:     st.FailedCount,
			SkippedCount:    st.SkippedCount,
			CreatedAt:       c.CreatedAt,
		}
	}
	return out, nil
}
