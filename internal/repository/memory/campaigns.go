// Package memory holds in-process implementations of the repository
// interfaces. They back the server's "memory" store mode and the engine tests.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	appErrors "github.com/unclebandit/activity-sim/internal/errors"
	"github.com/unclebandit/activity-sim/internal/model"
	"github.com/unclebandit/activity-sim/internal/repository"
)

type family struct {
	recurring bool
	pattern   string
}

type CampaignRepository struct {
	mu        sync.Mutex
	campaigns map[string]*model.Campaign
	families  map[string]*family
}

func NewCampaignRepository() *CampaignRepository {
	return &CampaignRepository{
		campaigns: make(map[string]*model.Campaign),
		families:  make(map[string]*family),
	}
}

// view copies the stored campaign and overlays the family's recurrence.
func (r *CampaignRepository) view(c *model.Campaign) *model.Campaign {
	cp := *c
	if f, ok := r.families[c.FamilyID]; ok {
		cp.Recurring = f.recurring
		cp.RecurringPattern = f.pattern
	}
	return &cp
}

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.families[c.FamilyID]; !ok {
		r.families[c.FamilyID] = &family{recurring: c.Recurring, pattern: c.RecurringPattern}
	}
	cp := *c
	r.campaigns[c.ID] = &cp
	return nil
}

func (r *CampaignRepository) SpawnSuccessor(ctx context.Context, next *model.Campaign) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.families[next.FamilyID]
	if !ok || !f.recurring {
		return false, nil
	}
	cp := *next
	r.campaigns[next.ID] = &cp
	return true, nil
}

func (r *CampaignRepository) GetByID(ctx context.Context, id string) (*model.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	return r.view(c), nil
}

func (r *CampaignRepository) ListCampaigns(ctx context.Context, f repository.CampaignFilter) ([]*model.Campaign, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	filtered := []*model.Campaign{}
	for _, c := range r.campaigns {
		if f.Status != "" && string(c.Status) != f.Status {
			continue
		}
		if f.FamilyID != "" && c.FamilyID != f.FamilyID {
			continue
		}
		if f.ActivityType != "" && c.ActivityType != f.ActivityType {
			continue
		}
		filtered = append(filtered, r.view(c))
	}
	sort.Slice(filtered, func(i, j int) bool {
		if !filtered[i].CreatedAt.Equal(filtered[j].CreatedAt) {
			return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
		}
		return filtered[i].ID > filtered[j].ID
	})

	total := len(filtered)
	start, end := f.Offset, f.Offset+f.Limit
	if start > total {
		return []*model.Campaign{}, total, nil
	}
	if end > total || f.Limit <= 0 {
		end = total
	}
	return filtered[start:end], total, nil
}

func (r *CampaignRepository) Transition(ctx context.Context, id string, from []model.CampaignStatus, to model.CampaignStatus, at time.Time, reason string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.campaigns[id]
	if !ok || !slices.Contains(from, c.Status) {
		return false, nil
	}
	c.Status = to
	if to == model.StatusRunning {
		t := at
		c.StartedAt = &t
	}
	if to.Terminal() {
		t := at
		c.EndedAt = &t
	}
	if reason != "" {
		c.FailureReason = reason
	}
	return true, nil
}

func (r *CampaignRepository) SetFamilyRecurring(ctx context.Context, familyID string, recurring bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.families[familyID]; ok {
		f.recurring = recurring
	}
	return nil
}

var _ repository.CampaignRepositoryInterface = (*CampaignRepository)(nil)
