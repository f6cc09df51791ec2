// internal/model/activity_record.go
package model

import "time"

// Outcome values stored on activity records.
const (
	OutcomeSuccess   = "success"
	OutcomeFailed    = "failed"
	OutcomeDuplicate = "duplicate"
)

// ActivityRecord is the append-only audit row written for every attempted unit.
type ActivityRecord struct {
	ID           string    `db:"id" json:"id"`
	CampaignID   string    `db:"campaign_id" json:"campaign_id"`
	ActorID      string    `db:"actor_id" json:"actor_id"`
	ActivityType string    `db:"activity_type" json:"activity_type"`
	TargetID     string    `db:"target_id" json:"target_id,omitempty"`
	ScheduledAt  time.Time `db:"scheduled_at" json:"scheduled_at"`
	AttemptedAt  time.Time `db:"attempted_at" json:"attempted_at"`
	Success      bool      `db:"success" json:"success"`
	Outcome      string    `db:"outcome" json:"outcome"`
	ErrorKind    string    `db:"error_kind" json:"error_kind,omitempty"`
	ErrorMessage string    `db:"error_message" json:"error_message,omitempty"`
	ResultID     string    `db:"result_id" json:"result_id,omitempty"`
}
