package activity

import (
	"context"
	"encoding/json"
	"math"

	"github.com/unclebandit/activity-sim/internal/model"
	"github.com/unclebandit/activity-sim/internal/repository"
)

const defaultCaseCount = 10

// findAssessment prefers assessments the actor has not attempted yet and
// falls back to retakes when every candidate has been attempted.
func (d *Deps) findAssessment(ctx context.Context, p *model.Persona, q repository.AssessmentQuery) (*model.Assessment, error) {
	find := func(q repository.AssessmentQuery) ([]*model.Assessment, error) {
		if len(q.Categories) > 0 {
			return d.Content.FindAssessments(ctx, q)
		}
		return byExpertise(p, func(categories []string) ([]*model.Assessment, error) {
			q.Categories = categories
			return d.Content.FindAssessments(ctx, q)
		})
	}

	q.NotAttemptedBy = p.ID
	q.Limit = candidateLimit
	items, err := find(q)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		q.NotAttemptedBy = ""
		if items, err = find(q); err != nil {
			return nil, err
		}
	}
	a, ok := pick(d, items)
	if !ok {
		return nil, noTarget(q.Kind, "assessment")
	}
	return a, nil
}

// ====================== TEST ======================

type testHandler struct{ *Deps }

func (h *testHandler) Handle(ctx context.Context, req Request) (Outcome, error) {
	cfg, err := decodeConfig[TestConfig](req.Config)
	if err != nil {
		return Outcome{}, err
	}
	p, err := h.persona(ctx, req.ActorID)
	if err != nil {
		return Outcome{}, err
	}

	q := repository.AssessmentQuery{Kind: "test"}
	if cfg.Category != "" {
		q.Categories = []string{cfg.Category}
	}
	a, err := h.findAssessment(ctx, p, q)
	if err != nil {
		return Outcome{}, err
	}

	score := h.Scorer.Sample(p.TechnicalLevel)
	attempt := &model.Attempt{
		ID:           h.NewID(),
		AssessmentID: a.ID,
		ActorID:      req.ActorID,
		Kind:         a.Kind,
		Score:        score,
		Passed:       score >= cfg.minScore(),
		CreatedAt:    h.Now(),
	}
	if err := h.Content.CreateAttempt(ctx, attempt); err != nil {
		return Outcome{TargetID: a.ID}, err
	}
	return Outcome{TargetID: a.ID, ResultID: attempt.ID}, nil
}

// ====================== LIVE_CODING / BUG_FIX ======================

// exerciseHandler runs a graded exercise of the given assessment kind. The
// fraction of cases passed tracks the sampled score.
type exerciseHandler struct {
	*Deps
	kind     string
	passMark int
}

func (h *exerciseHandler) options(raw json.RawMessage) (difficulty, language string, err error) {
	if h.kind == "live_coding" {
		cfg, err := decodeConfig[LiveCodingConfig](raw)
		return cfg.Difficulty, cfg.Language, err
	}
	cfg, err := decodeConfig[BugFixConfig](raw)
	return cfg.Difficulty, cfg.Language, err
}

func (h *exerciseHandler) Handle(ctx context.Context, req Request) (Outcome, error) {
	difficulty, language, err := h.options(req.Config)
	if err != nil {
		return Outcome{}, err
	}
	p, err := h.persona(ctx, req.ActorID)
	if err != nil {
		return Outcome{}, err
	}
	if difficulty == "" {
		difficulty = DifficultyFor(p.TechnicalLevel)
	}

	a, err := h.findAssessment(ctx, p, repository.AssessmentQuery{
		Kind:       h.kind,
		Difficulty: difficulty,
		Language:   language,
	})
	if err != nil {
		return Outcome{}, err
	}

	score := h.Scorer.Sample(p.TechnicalLevel)
	cases := a.CaseCount
	if cases <= 0 {
		cases = defaultCaseCount
	}
	attempt := &model.Attempt{
		ID:           h.NewID(),
		AssessmentID: a.ID,
		ActorID:      req.ActorID,
		Kind:         h.kind,
		Score:        score,
		CasesPassed:  int(math.Round(float64(score) / 100 * float64(cases))),
		Passed:       score >= h.passMark,
		CreatedAt:    h.Now(),
	}
	if err := h.Content.CreateAttempt(ctx, attempt); err != nil {
		return Outcome{TargetID: a.ID}, err
	}
	return Outcome{TargetID: a.ID, ResultID: attempt.ID}, nil
}
