// internal/service/campaign_service.go
package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unclebandit/activity-sim/internal/activity"
	appErrors "github.com/unclebandit/activity-sim/internal/errors"
	"github.com/unclebandit/activity-sim/internal/executor"
	"github.com/unclebandit/activity-sim/internal/logging"
	"github.com/unclebandit/activity-sim/internal/model"
	"github.com/unclebandit/activity-sim/internal/queue"
	"github.com/unclebandit/activity-sim/internal/random"
	"github.com/unclebandit/activity-sim/internal/repository"
	"github.com/unclebandit/activity-sim/internal/scheduler"
)

// ErrShuttingDown is returned for campaigns submitted after Shutdown.
var ErrShuttingDown = errors.New("campaign service is shutting down")

const maxDurationHours = 168

// CampaignRequest is the declarative campaign configuration.
type CampaignRequest struct {
	Name             string          `json:"name"`
	ActivityType     string          `json:"activityType"`
	BotCount         int             `json:"botCount"`
	TotalActivities  int             `json:"totalActivities"`
	DurationHours    int             `json:"durationHours"`
	RecurringPattern string          `json:"recurringPattern,omitempty"`
	Config           json.RawMessage `json:"config,omitempty"`
}

type Options struct {
	Campaigns  repository.CampaignRepositoryInterface
	Records    repository.ActivityRecordRepositoryInterface
	Personas   repository.PersonaRepositoryInterface
	Dispatcher executor.Dispatcher
	// Queue receives lifecycle events; nil disables publishing.
	Queue queue.Queue

	Rand           random.Source
	JitterFraction float64
	BatchSize      int
	TimeScale      float64

	Logger *zap.Logger
	Now    func() time.Time
	NewID  func() string
}

type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	RecordRepo   repository.ActivityRecordRepositoryInterface
	PersonaRepo  repository.PersonaRepositoryInterface
	Queue        queue.Queue

	scheduler  *scheduler.Scheduler
	executor   *executor.Executor
	recurrence *RecurrenceController
	aggregator *StatusAggregator
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string
	timeScale  float64

	runCtx  context.Context
	stopRun context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
}

func NewCampaignService(opts Options) *CampaignService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Rand == nil {
		opts.Rand = random.New(0)
	}
	logger := logging.OrNop(opts.Logger)
	ctx, cancel := context.WithCancel(context.Background())

	return &CampaignService{
		CampaignRepo: opts.Campaigns,
		RecordRepo:   opts.Records,
		PersonaRepo:  opts.Personas,
		Queue:        opts.Queue,
		scheduler:    scheduler.New(opts.Rand, opts.JitterFraction),
		executor: executor.New(opts.Dispatcher, opts.Campaigns, opts.Records, executor.Options{
			BatchSize: opts.BatchSize,
			TimeScale: opts.TimeScale,
			Now:       opts.Now,
			NewID:     opts.NewID,
			Logger:    logger,
		}),
		recurrence: &RecurrenceController{Campaigns: opts.Campaigns, Now: opts.Now, NewID: opts.NewID},
		aggregator: &StatusAggregator{Campaigns: opts.Campaigns, Records: opts.Records},
		logger:     logger,
		now:        opts.Now,
		newID:      opts.NewID,
		timeScale:  opts.TimeScale,
		runCtx:     ctx,
		stopRun:    cancel,
	}
}

// CreateCampaign validates req, persists a pending campaign and starts it
// asynchronously.
func (s *CampaignService) CreateCampaign(ctx context.Context, req CampaignRequest) (string, error) {
	if req.RecurringPattern != "" {
		return "", appErrors.Validation("recurringPattern is only allowed on recurring campaigns")
	}
	return s.create(ctx, req, false)
}

// CreateRecurringCampaign is CreateCampaign for a daily-repeating family.
func (s *CampaignService) CreateRecurringCampaign(ctx context.Context, req CampaignRequest) (string, error) {
	if req.RecurringPattern == "" {
		req.RecurringPattern = model.PatternDaily
	}
	if req.RecurringPattern != model.PatternDaily {
		return "", appErrors.Validation("recurringPattern must be %q", model.PatternDaily)
	}
	return s.create(ctx, req, true)
}

func (s *CampaignService) create(ctx context.Context, req CampaignRequest, recurring bool) (string, error) {
	if err := validateRequest(req); err != nil {
		return "", err
	}
	actors, err := s.selectBots(ctx, req.BotCount)
	if err != nil {
		return "", err
	}

	id := s.newID()
	c := &model.Campaign{
		ID:              id,
		FamilyID:        id,
		Name:            strings.TrimSpace(req.Name),
		ActivityType:    req.ActivityType,
		BotCount:        req.BotCount,
		TotalActivities: req.TotalActivities,
		DurationHours:   req.DurationHours,
		Recurring:       recurring,
		Config:          req.Config,
		Status:          model.StatusPending,
		CreatedAt:       s.now(),
	}
	if recurring {
		c.RecurringPattern = req.RecurringPattern
	}

	// the closed check and launch share mu so Shutdown cannot miss a run
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrShuttingDown
	}
	if err := s.CampaignRepo.Create(ctx, c); err != nil {
		return "", err
	}
	s.logger.Info("campaign created",
		zap.String("campaign_id", c.ID),
		zap.String("activity_type", c.ActivityType),
		zap.Int("bot_count", c.BotCount),
		zap.Int("total_activities", c.TotalActivities),
		zap.Bool("recurring", recurring),
	)
	s.publish(c, "campaign.created", model.StatusPending, "")
	s.launch(c, actors, cycle{})
	return id, nil
}

func validateRequest(req CampaignRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return appErrors.Validation("name is required")
	}
	kind, err := activity.ParseKind(req.ActivityType)
	if err != nil {
		return appErrors.Validation("%v", err)
	}
	if req.BotCount <= 0 {
		return appErrors.Validation("botCount must be > 0")
	}
	if req.TotalActivities <= 0 {
		return appErrors.Validation("totalActivities must be > 0")
	}
	if req.DurationHours < 1 || req.DurationHours > maxDurationHours {
		return appErrors.Validation("durationHours must be between 1 and %d", maxDurationHours)
	}
	return activity.ValidateConfig(kind, req.Config, activity.Shape{
		BotCount:        req.BotCount,
		TotalActivities: req.TotalActivities,
	})
}

func (s *CampaignService) selectBots(ctx context.Context, n int) ([]string, error) {
	bots, err := s.PersonaRepo.ListBots(ctx, n)
	if err != nil {
		return nil, err
	}
	if len(bots) < n {
		return nil, appErrors.Validation("botCount %d exceeds the %d available bots", n, len(bots))
	}
	return bots, nil
}

// ListParams pages and filters ListCampaigns.
type ListParams struct {
	Page         int
	PageSize     int
	Status       string
	FamilyID     string
	ActivityType string
}

// ListCampaigns returns summaries most recent first, with pagination info.
func (s *CampaignService) ListCampaigns(ctx context.Context, p ListParams) ([]CampaignSummary, map[string]int, error) {
	page, pageSize, offset := normalizePage(p.Page, p.PageSize)

	campaigns, total, err := s.CampaignRepo.ListCampaigns(ctx, repository.CampaignFilter{
		Status:       p.Status,
		FamilyID:     p.FamilyID,
		ActivityType: p.ActivityType,
		Offset:       offset,
		Limit:        pageSize,
	})
	if err != nil {
		return nil, nil, err
	}
	summaries, err := s.aggregator.Summaries(ctx, campaigns)
	if err != nil {
		return nil, nil, err
	}
	return summaries, pagination(page, pageSize, total), nil
}

func normalizePage(page, pageSize int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize, (page - 1) * pageSize
}

func pagination(page, pageSize, total int) map[string]int {
	return map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": (total + pageSize - 1) / pageSize,
	}
}

// GetCampaignStatus returns the live snapshot for id.
func (s *CampaignService) GetCampaignStatus(ctx context.Context, id string) (*CampaignStatus, error) {
	return s.aggregator.Snapshot(ctx, id)
}

// ListActivities returns the campaign's activity records, most recent first.
func (s *CampaignService) ListActivities(ctx context.Context, id string, page, pageSize int) ([]*model.ActivityRecord, map[string]int, error) {
	if _, err := s.CampaignRepo.GetByID(ctx, id); err != nil {
		return nil, nil, err
	}
	page, pageSize, offset := normalizePage(page, pageSize)
	records, total, err := s.RecordRepo.ListByCampaign(ctx, id, offset, pageSize)
	if err != nil {
		return nil, nil, err
	}
	return records, pagination(page, pageSize, total), nil
}

// CancelCampaign stops a pending or running campaign. Cancelling a terminal
// campaign is a no-op. In-flight units finish; no new batch starts.
func (s *CampaignService) CancelCampaign(ctx context.Context, id string) (string, error) {
	c, err := s.CampaignRepo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if c.Status.Terminal() {
		return "campaign already " + string(c.Status), nil
	}

	ok, err := s.CampaignRepo.Transition(ctx, id,
		[]model.CampaignStatus{model.StatusPending, model.StatusRunning},
		model.StatusCancelled, s.now(), "")
	if err != nil {
		return "", err
	}
	if !ok {
		// finished between the read and the update
		c, err = s.CampaignRepo.GetByID(ctx, id)
		if err != nil {
			return "", err
		}
		return "campaign already " + string(c.Status), nil
	}
	s.logger.Info("campaign cancelled", zap.String("campaign_id", id))
	s.publish(c, "campaign.cancelled", model.StatusCancelled, "")
	return "campaign cancelled", nil
}

// StopRecurringCampaign clears the recurring flag of id's family. The
// current cycle keeps running; no successor is spawned afterwards.
func (s *CampaignService) StopRecurringCampaign(ctx context.Context, id string) (string, error) {
	c, err := s.CampaignRepo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if c.RecurringPattern == "" {
		return "", appErrors.Validation("campaign %s is not recurring", id)
	}
	if err := s.CampaignRepo.SetFamilyRecurring(ctx, c.FamilyID, false); err != nil {
		return "", err
	}
	s.logger.Info("recurrence stopped", zap.String("campaign_id", id), zap.String("family_id", c.FamilyID))
	s.publish(c, "campaign.recurrence_stopped", c.Status, "")
	return "recurrence stopped", nil
}

// Shutdown stops accepting campaigns, interrupts running ones and waits for
// them to be finalised or for ctx to end.
func (s *CampaignService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.stopRun()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *CampaignService) publish(c *model.Campaign, eventType string, status model.CampaignStatus, reason string) {
	if s.Queue == nil {
		return
	}
	ev := model.CampaignEvent{
		Type:         eventType,
		CampaignID:   c.ID,
		FamilyID:     c.FamilyID,
		ActivityType: c.ActivityType,
		Status:       status,
		Reason:       reason,
		At:           s.now(),
	}
	if err := s.Queue.Publish(queue.TopicCampaignEvents, ev); err != nil {
		s.logger.Warn("failed to publish campaign event",
			zap.String("campaign_id", c.ID), zap.String("type", eventType), zap.Error(err))
	}
}
