package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/unclebandit/activity-sim/internal/model"
	"github.com/unclebandit/activity-sim/internal/repository"
)

type ActivityRecordRepository struct {
	mu      sync.RWMutex
	records []*model.ActivityRecord
	// FailAppend, when set, is returned by Append.
	FailAppend error
}

func NewActivityRecordRepository() *ActivityRecordRepository {
	return &ActivityRecordRepository{}
}

func (r *ActivityRecordRepository) Append(ctx context.Context, rec *model.ActivityRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailAppend != nil {
		return r.FailAppend
	}
	cp := *rec
	r.records = append(r.records, &cp)
	return nil
}

func (r *ActivityRecordRepository) Stats(ctx context.Context, campaignID string) (model.CampaignStats, error) {
	all, err := r.StatsForCampaigns(ctx, []string{campaignID})
	if err != nil {
		return model.CampaignStats{}, err
	}
	return all[campaignID], nil
}

func (r *ActivityRecordRepository) StatsForCampaigns(ctx context.Context, campaignIDs []string) (map[string]model.CampaignStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := make(map[string]bool, len(campaignIDs))
	for _, id := range campaignIDs {
		wanted[id] = true
	}
	stats := make(map[string]model.CampaignStats, len(campaignIDs))
	for _, rec := range r.records {
		if !wanted[rec.CampaignID] {
			continue
		}
		s := stats[rec.CampaignID]
		repository.AddOutcome(&s, rec.Outcome, 1)
		stats[rec.CampaignID] = s
	}
	return stats, nil
}

func (r *ActivityRecordRepository) ListByCampaign(ctx context.Context, campaignID string, offset, limit int) ([]*model.ActivityRecord, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*model.ActivityRecord{}
	for _, rec := range r.records {
		if rec.CampaignID == campaignID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AttemptedAt.After(out[j].AttemptedAt)
	})

	total := len(out)
	if offset > total {
		return []*model.ActivityRecord{}, total, nil
	}
	end := offset + limit
	if end > total || limit <= 0 {
		end = total
	}
	return out[offset:end], total, nil
}

var _ repository.ActivityRecordRepositoryInterface = (*ActivityRecordRepository)(nil)
