// internal/model/campaign.go
package model

import (
	"encoding/json"
	"time"
)

type CampaignStatus string

const (
	StatusPending   CampaignStatus = "pending"
	StatusRunning   CampaignStatus = "running"
	StatusCompleted CampaignStatus = "completed"
	StatusFailed    CampaignStatus = "failed"
	StatusCancelled CampaignStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s CampaignStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

const PatternDaily = "daily"

// CyclePeriod is the spacing between cycle starts of a recurring family, or
// zero for an unknown pattern.
func CyclePeriod(pattern string) time.Duration {
	if pattern == PatternDaily {
		return 24 * time.Hour
	}
	return 0
}

type Campaign struct {
	ID               string          `db:"id" json:"id"`
	FamilyID         string          `db:"family_id" json:"family_id"`
	Name             string          `db:"name" json:"name"`
	ActivityType     string          `db:"activity_type" json:"activity_type"`
	BotCount         int             `db:"bot_count" json:"bot_count"`
	TotalActivities  int             `db:"total_activities" json:"total_activities"`
	DurationHours    int             `db:"duration_hours" json:"duration_hours"`
	Recurring        bool            `db:"recurring" json:"recurring"`
	RecurringPattern string          `db:"recurring_pattern" json:"recurring_pattern,omitempty"`
	Config           json.RawMessage `db:"config" json:"config,omitempty"`
	Status           CampaignStatus  `db:"status" json:"status"`
	FailureReason    string          `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	StartedAt        *time.Time      `db:"started_at" json:"started_at,omitempty"`
	EndedAt          *time.Time      `db:"ended_at" json:"ended_at,omitempty"`
}

// CampaignStats is derived from the activity log, never stored.
type CampaignStats struct {
	TotalExecuted   int `json:"total_executed"`
	SuccessfulCount int `json:"successful_count"`
	FailedCount     int `json:"failed_count"`
	SkippedCount    int `json:"skipped_count"`
}

// CampaignEvent is published on every lifecycle transition.
type CampaignEvent struct {
	Type         string         `json:"type"`
	CampaignID   string         `json:"campaign_id"`
	FamilyID     string         `json:"family_id"`
	ActivityType string         `json:"activity_type"`
	Status       CampaignStatus `json:"status"`
	Reason       string         `json:"reason,omitempty"`
	At           time.Time      `json:"at"`
}
