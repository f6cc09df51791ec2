package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/activity-sim/internal/errors"
	"github.com/unclebandit/activity-sim/internal/model"
)

// CampaignFilter narrows ListCampaigns. Empty fields match everything.
type CampaignFilter struct {
	Status       string
	FamilyID     string
	ActivityType string
	Offset       int
	Limit        int
}

type CampaignRepositoryInterface interface {
	// Create inserts the campaign and, for a new family, its family row.
	Create(ctx context.Context, c *model.Campaign) error
	// SpawnSuccessor inserts next only while the family is still recurring.
	SpawnSuccessor(ctx context.Context, next *model.Campaign) (bool, error)
	GetByID(ctx context.Context, id string) (*model.Campaign, error)
	ListCampaigns(ctx context.Context, f CampaignFilter) ([]*model.Campaign, int, error)
	// Transition moves a campaign to `to` if its status is one of `from`.
	Transition(ctx context.Context, id string, from []model.CampaignStatus, to model.CampaignStatus, at time.Time, reason string) (bool, error)
	SetFamilyRecurring(ctx context.Context, familyID string, recurring bool) error
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `c.id, c.family_id, c.name, c.activity_type, c.bot_count, c.total_activities,
    c.duration_hours, f.recurring, f.recurring_pattern, c.config, c.status, c.failure_reason,
    c.created_at, c.started_at, c.ended_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var c model.Campaign
	var cfg []byte
	err := row.Scan(&c.ID, &c.FamilyID, &c.Name, &c.ActivityType, &c.BotCount, &c.TotalActivities,
		&c.DurationHours, &c.Recurring, &c.RecurringPattern, &cfg, &c.Status, &c.FailureReason,
		&c.CreatedAt, &c.StartedAt, &c.EndedAt)
	if err != nil {
		return nil, err
	}
	c.Config = cfg
	return &c, nil
}

// ====================== Campaign CRUD ======================

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return appErrors.Persistence("campaign.create", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
        INSERT INTO campaign_families (id, recurring, recurring_pattern, created_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (id) DO NOTHING
    `, c.FamilyID, c.Recurring, c.RecurringPattern, c.CreatedAt)
	if err != nil {
		return appErrors.Persistence("campaign.create", err)
	}
	if err := insertCampaign(ctx, tx, c); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return appErrors.Persistence("campaign.create", err)
	}
	return nil
}

func insertCampaign(ctx context.Context, tx *sql.Tx, c *model.Campaign) error {
	cfg := []byte(c.Config)
	if len(cfg) == 0 {
		cfg = []byte("{}")
	}
	_, err := tx.ExecContext(ctx, `
        INSERT INTO campaigns (id, family_id, name, activity_type, bot_count, total_activities,
            duration_hours, config, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `, c.ID, c.FamilyID, c.Name, c.ActivityType, c.BotCount, c.TotalActivities,
		c.DurationHours, cfg, c.Status, c.CreatedAt)
	if err != nil {
		return appErrors.Persistence("campaign.insert", err)
	}
	return nil
}

func (r *CampaignRepository) SpawnSuccessor(ctx context.Context, next *model.Campaign) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, appErrors.Persistence("campaign.spawn", err)
	}
	defer tx.Rollback()

	// The row lock serialises this against SetFamilyRecurring.
	var recurring bool
	err = tx.QueryRowContext(ctx,
		`SELECT recurring FROM campaign_families WHERE id=$1 FOR UPDATE`, next.FamilyID).Scan(&recurring)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, appErrors.Persistence("campaign.spawn", err)
	}
	if !recurring {
		return false, nil
	}
	if err := insertCampaign(ctx, tx, next); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, appErrors.Persistence("campaign.spawn", err)
	}
	return true, nil
}

func (r *CampaignRepository) GetByID(ctx context.Context, id string) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + `
        FROM campaigns c JOIN campaign_families f ON f.id = c.family_id
        WHERE c.id=$1`
	c, err := scanCampaign(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, appErrors.Persistence("campaign.get", err)
	}
	return c, nil
}

func (r *CampaignRepository) ListCampaigns(ctx context.Context, f CampaignFilter) ([]*model.Campaign, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if f.Status != "" {
		where += fmt.Sprintf(" AND c.status=$%d", argPos)
		args = append(args, f.Status)
		argPos++
	}
	if f.FamilyID != "" {
		where += fmt.Sprintf(" AND c.family_id=$%d", argPos)
		args = append(args, f.FamilyID)
		argPos++
	}
	if f.ActivityType != "" {
		where += fmt.Sprintf(" AND c.activity_type=$%d", argPos)
		args = append(args, f.ActivityType)
		argPos++
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM campaigns c` + where
	if err := r.DB.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, appErrors.Persistence("campaign.count", err)
	}

	query := `SELECT ` + campaignColumns + `
        FROM campaigns c JOIN campaign_families f ON f.id = c.family_id` + where +
		fmt.Sprintf(" ORDER BY c.created_at DESC, c.id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, appErrors.Persistence("campaign.list", err)
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, appErrors.Persistence("campaign.list", err)
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, appErrors.Persistence("campaign.list", err)
	}
	return campaigns, total, nil
}

func (r *CampaignRepository) Transition(ctx context.Context, id string, from []model.CampaignStatus, to model.CampaignStatus, at time.Time, reason string) (bool, error) {
	var startedAt, endedAt *time.Time
	if to == model.StatusRunning {
		startedAt = &at
	}
	if to.Terminal() {
		endedAt = &at
	}
	fromStrs := make([]string, len(from))
	for i, s := range from {
		fromStrs[i] = string(s)
	}

	res, err := r.DB.ExecContext(ctx, `
        UPDATE campaigns
        SET status=$1,
            started_at=COALESCE($2::timestamptz, started_at),
            ended_at=COALESCE($3::timestamptz, ended_at),
            failure_reason=CASE WHEN $4::text = '' THEN failure_reason ELSE $4::text END
        WHERE id=$5 AND status = ANY($6)
    `, string(to), startedAt, endedAt, reason, id, pq.Array(fromStrs))
	if err != nil {
		return false, appErrors.Persistence("campaign.transition", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, appErrors.Persistence("campaign.transition", err)
	}
	return n == 1, nil
}

func (r *CampaignRepository) SetFamilyRecurring(ctx context.Context, familyID string, recurring bool) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE campaign_families SET recurring=$1 WHERE id=$2`, recurring, familyID)
	if err != nil {
		return appErrors.Persistence("campaign.family", err)
	}
	return nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
