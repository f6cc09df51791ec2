package activity

import (
	"context"

	"github.com/unclebandit/activity-sim/internal/content"
	appErrors "github.com/unclebandit/activity-sim/internal/errors"
	"github.com/unclebandit/activity-sim/internal/model"
	"github.com/unclebandit/activity-sim/internal/repository"
)

// ====================== LESSON ======================

type lessonHandler struct{ *Deps }

func (h *lessonHandler) Handle(ctx context.Context, req Request) (Outcome, error) {
	cfg, err := decodeConfig[LessonConfig](req.Config)
	if err != nil {
		return Outcome{}, err
	}
	p, err := h.persona(ctx, req.ActorID)
	if err != nil {
		return Outcome{}, err
	}

	q := repository.LessonQuery{CourseID: cfg.CourseID, NotCompletedBy: req.ActorID, Limit: candidateLimit}
	var lessons []*model.Lesson
	if cfg.CourseID != "" {
		lessons, err = h.Content.FindLessons(ctx, q)
	} else {
		lessons, err = byExpertise(p, func(categories []string) ([]*model.Lesson, error) {
			q.Categories = categories
			return h.Content.FindLessons(ctx, q)
		})
	}
	if err != nil {
		return Outcome{}, err
	}
	lesson, ok := pick(h.Deps, lessons)
	if !ok {
		return Outcome{}, noTarget("lesson", "lesson")
	}

	lc := &model.LessonCompletion{ID: h.NewID(), ActorID: req.ActorID, LessonID: lesson.ID, CreatedAt: h.Now()}
	guard := Guard{Op: "lesson", Exists: h.Content.LessonCompleted}
	err = guard.Do(ctx, req.ActorID, lesson.ID, func(ctx context.Context) error {
		return h.Content.CreateLessonCompletion(ctx, lc)
	})
	if err != nil {
		return Outcome{TargetID: lesson.ID}, err
	}
	return Outcome{TargetID: lesson.ID, ResultID: lc.ID}, nil
}

// ====================== CHAT ======================

type chatHandler struct{ *Deps }

func (h *chatHandler) Handle(ctx context.Context, req Request) (Outcome, error) {
	cfg, err := decodeConfig[ChatConfig](req.Config)
	if err != nil {
		return Outcome{}, err
	}
	p, err := h.persona(ctx, req.ActorID)
	if err != nil {
		return Outcome{}, err
	}

	var room *model.ChatRoom
	if cfg.RoomID != "" {
		if room, err = h.Content.GetChatRoom(ctx, cfg.RoomID); err != nil {
			return Outcome{TargetID: cfg.RoomID}, err
		}
	} else {
		rooms, err := byExpertise(p, func(topics []string) ([]*model.ChatRoom, error) {
			return h.Content.FindChatRooms(ctx, topics)
		})
		if err != nil {
			return Outcome{}, err
		}
		var ok bool
		if room, ok = pick(h.Deps, rooms); !ok {
			return Outcome{}, noTarget("chat", "room")
		}
	}

	body, err := h.generate(ctx, content.ChatPrompt, map[string]string{
		"name":  p.DisplayName,
		"room":  room.Name,
		"topic": room.Topic,
	})
	if err != nil {
		return Outcome{TargetID: room.ID}, err
	}
	msg := &model.ChatMessage{ID: h.NewID(), RoomID: room.ID, ActorID: req.ActorID, Body: body, CreatedAt: h.Now()}
	if err := h.Content.CreateChatMessage(ctx, msg); err != nil {
		return Outcome{TargetID: room.ID}, err
	}
	return Outcome{TargetID: room.ID, ResultID: msg.ID}, nil
}

// ====================== HACKATHON_APPLICATION / FREELANCER_BID ======================

const (
	defaultMinBid = 100
	defaultMaxBid = 1000
)

// applicationHandler applies to an opening of openingKind. Freelancer bids
// carry an amount drawn from the configured range.
type applicationHandler struct {
	*Deps
	openingKind string
	bid         bool
}

func (h *applicationHandler) Handle(ctx context.Context, req Request) (Outcome, error) {
	cfg, err := decodeConfig[ApplicationConfig](req.Config)
	if err != nil {
		return Outcome{}, err
	}
	p, err := h.persona(ctx, req.ActorID)
	if err != nil {
		return Outcome{}, err
	}

	var opening *model.Opening
	if cfg.OpeningID != "" {
		if opening, err = h.Content.GetOpening(ctx, cfg.OpeningID); err != nil {
			return Outcome{TargetID: cfg.OpeningID}, err
		}
		if opening.Kind != h.openingKind {
			return Outcome{TargetID: opening.ID},
				appErrors.Validation("opening %s is a %s, not a %s", opening.ID, opening.Kind, h.openingKind)
		}
	} else {
		q := repository.OpeningQuery{Kind: h.openingKind, NotAppliedBy: req.ActorID, Limit: candidateLimit}
		openings, err := byExpertise(p, func(categories []string) ([]*model.Opening, error) {
			q.Categories = categories
			return h.Content.FindOpenings(ctx, q)
		})
		if err != nil {
			return Outcome{}, err
		}
		var ok bool
		if opening, ok = pick(h.Deps, openings); !ok {
			return Outcome{}, noTarget(h.openingKind, "opening")
		}
	}

	app := &model.Application{
		ID:        h.NewID(),
		OpeningID: opening.ID,
		ActorID:   req.ActorID,
		Kind:      h.openingKind,
		CreatedAt: h.Now(),
	}
	if h.bid {
		app.BidAmount = h.bidAmount(cfg)
	}

	guard := Guard{Op: "application", Exists: h.Content.ApplicationExists}
	err = guard.Do(ctx, req.ActorID, opening.ID, func(ctx context.Context) error {
		pitch, err := h.generate(ctx, content.ApplicationPrompt, map[string]string{
			"name":    p.DisplayName,
			"level":   string(p.TechnicalLevel),
			"topic":   opening.Category,
			"opening": opening.Title,
		})
		if err != nil {
			return err
		}
		app.Pitch = pitch
		return h.Content.CreateApplication(ctx, app)
	})
	if err != nil {
		return Outcome{TargetID: opening.ID}, err
	}
	return Outcome{TargetID: opening.ID, ResultID: app.ID}, nil
}

// bidAmount is uniform in [minBid, maxBid], rounded to cents.
func (h *applicationHandler) bidAmount(cfg ApplicationConfig) float64 {
	lo, hi := cfg.MinBid, cfg.MaxBid
	if lo == 0 {
		lo = defaultMinBid
	}
	if hi == 0 {
		hi = max(defaultMaxBid, lo)
	}
	amount := lo + h.Rand.Float64()*(hi-lo)
	return float64(int64(amount*100+0.5)) / 100
}
