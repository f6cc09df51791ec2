// Package scheduler turns a campaign into a time-distributed execution plan.
package scheduler

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/unclebandit/activity-sim/internal/activity"
	appErrors "github.com/unclebandit/activity-sim/internal/errors"
	"github.com/unclebandit/activity-sim/internal/model"
	"github.com/unclebandit/activity-sim/internal/random"
)

const DefaultJitterFraction = 0.25

// Unit is one scheduled (actor, time, kind) assignment. Units are values and
// are never mutated once planned.
type Unit struct {
	CampaignID  string
	Seq         int
	ActorID     string
	Kind        activity.Kind
	ScheduledAt time.Time
	Config      json.RawMessage
}

type Scheduler struct {
	rand   random.Source
	jitter float64
}

// New returns a scheduler drawing jitter from src. A jitter fraction outside
// [0, 0.5) falls back to DefaultJitterFraction.
func New(src random.Source, jitterFraction float64) *Scheduler {
	if jitterFraction < 0 || jitterFraction >= 0.5 {
		jitterFraction = DefaultJitterFraction
	}
	return &Scheduler{rand: src, jitter: jitterFraction}
}

// Plan assigns the campaign's totalActivities units round-robin over the
// first botCount actors and spreads them over [start, start+durationHours].
func (s *Scheduler) Plan(c *model.Campaign, actors []string, start time.Time) ([]Unit, error) {
	kind, err := activity.ParseKind(c.ActivityType)
	if err != nil {
		return nil, appErrors.Validation("%v", err)
	}
	if c.BotCount <= 0 || c.TotalActivities <= 0 {
		return nil, appErrors.Validation("botCount and totalActivities must be > 0")
	}
	if c.DurationHours < 1 || c.DurationHours > 168 {
		return nil, appErrors.Validation("durationHours must be between 1 and 168")
	}
	if len(actors) < c.BotCount {
		return nil, appErrors.Validation("campaign needs %d actors, got %d", c.BotCount, len(actors))
	}

	cfg := json.RawMessage(bytes.Clone(c.Config))
	offsets := s.Offsets(c.TotalActivities, time.Duration(c.DurationHours)*time.Hour)
	units := make([]Unit, c.TotalActivities)
	for i := range units {
		units[i] = Unit{
			CampaignID:  c.ID,
			Seq:         i,
			ActorID:     actors[i%c.BotCount],
			Kind:        kind,
			ScheduledAt: start.Add(offsets[i]),
			Config:      cfg,
		}
	}
	return units, nil
}

// Offsets returns n offsets into a window. Offset i sits at i*window/n plus
// a uniform jitter of up to jitter*interval either way, clamped to the
// window. A single unit lands uniformly inside the open window.
func (s *Scheduler) Offsets(n int, window time.Duration) []time.Duration {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		f := s.rand.Float64()
		for f == 0 {
			f = s.rand.Float64()
		}
		return []time.Duration{time.Duration(f * float64(window))}
	}

	interval := float64(window) / float64(n)
	out := make([]time.Duration, n)
	for i := range out {
		jitter := (s.rand.Float64()*2 - 1) * s.jitter * interval
		at := float64(i)*interval + jitter
		out[i] = time.Duration(min(max(at, 0), float64(window)))
	}
	return out
}
