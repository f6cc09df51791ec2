package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/activity-sim/internal/errors"
	"github.com/unclebandit/activity-sim/internal/model"
)

// ActivityRecordRepositoryInterface is the append-only execution log.
type ActivityRecordRepositoryInterface interface {
	Append(ctx context.Context, rec *model.ActivityRecord) error
	Stats(ctx context.Context, campaignID string) (model.CampaignStats, error)
	StatsForCampaigns(ctx context.Context, campaignIDs []string) (map[string]model.CampaignStats, error)
	ListByCampaign(ctx context.Context, campaignID string, offset, limit int) ([]*model.ActivityRecord, int, error)
}

type ActivityRecordRepository struct {
	DB *sql.DB
}

func (r *ActivityRecordRepository) Append(ctx context.Context, rec *model.ActivityRecord) error {
	_, err := r.DB.ExecContext(ctx, `
        INSERT INTO activity_records (id, campaign_id, actor_id, activity_type, target_id, scheduled_at,
            attempted_at, success, outcome, error_kind, error_message, result_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `, rec.ID, rec.CampaignID, rec.ActorID, rec.ActivityType, rec.TargetID, rec.ScheduledAt,
		rec.AttemptedAt, rec.Success, rec.Outcome, rec.ErrorKind, rec.ErrorMessage, rec.ResultID)
	if err != nil {
		return appErrors.Persistence("activity_record.append", err)
	}
	return nil
}

// AddOutcome folds one outcome bucket into stats. Duplicates are failures
// that are also counted as skipped.
func AddOutcome(stats *model.CampaignStats, outcome string, count int) {
	stats.TotalExecuted += count
	switch outcome {
	case model.OutcomeSuccess:
		stats.SuccessfulCount += count
	case model.OutcomeDuplicate:
		stats.FailedCount += count
		stats.SkippedCount += count
	default:
		stats.FailedCount += count
	}
}

func (r *ActivityRecordRepository) Stats(ctx context.Context, campaignID string) (model.CampaignStats, error) {
	all, err := r.StatsForCampaigns(ctx, []string{campaignID})
	if err != nil {
		return model.CampaignStats{}, err
	}
	return all[campaignID], nil
}

func (r *ActivityRecordRepository) StatsForCampaigns(ctx context.Context, campaignIDs []string) (map[string]model.CampaignStats, error) {
	stats := make(map[string]model.CampaignStats, len(campaignIDs))
	if len(campaignIDs) == 0 {
		return stats, nil
	}
	rows, err := r.DB.QueryContext(ctx, `
        SELECT campaign_id, outcome, COUNT(*)
        FROM activity_records
        WHERE campaign_id = ANY($1)
        GROUP BY campaign_id, outcome
    `, pq.Array(campaignIDs))
	if err != nil {
		return nil, appErrors.Persistence("activity_record.stats", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, outcome string
		var count int
		if err := rows.Scan(&id, &outcome, &count); err != nil {
			return nil, appErrors.Persistence("activity_record.stats", err)
		}
		s := stats[id]
		AddOutcome(&s, outcome, count)
		stats[id] = s
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.Persistence("activity_record.stats", err)
	}
	return stats, nil
}

func (r *ActivityRecordRepository) ListByCampaign(ctx context.Context, campaignID string, offset, limit int) ([]*model.ActivityRecord, int, error) {
	var total int
	if err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM activity_records WHERE campaign_id=$1`, campaignID).Scan(&total); err != nil {
		return nil, 0, appErrors.Persistence("activity_record.count", err)
	}

	rows, err := r.DB.QueryContext(ctx, `
        SELECT id, campaign_id, actor_id, activity_type, target_id, scheduled_at, attempted_at,
            success, outcome, error_kind, error_message, result_id
        FROM activity_records
        WHERE campaign_id=$1
        ORDER BY attempted_at DESC, id DESC
        LIMIT $2 OFFSET $3
    `, campaignID, limit, offset)
	if err != nil {
		return nil, 0, appErrors.Persistence("activity_record.list", err)
	}
	defer rows.Close()

	records := []*model.ActivityRecord{}
	for rows.Next() {
		rec := &model.ActivityRecord{}
		if err := rows.Scan(&rec.ID, &rec.CampaignID, &rec.ActorID, &rec.ActivityType, &rec.TargetID,
			&rec.ScheduledAt, &rec.AttemptedAt, &rec.Success, &rec.Outcome, &rec.ErrorKind,
			&rec.ErrorMessage, &rec.ResultID); err != nil {
			return nil, 0, appErrors.Persistence("activity_record.list", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, appErrors.Persistence("activity_record.list", err)
	}
	return records, total, nil
}

var _ ActivityRecordRepositoryInterface = (*ActivityRecordRepository)(nil)
