package activity

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/unclebandit/activity-sim/internal/content"
	appErrors "github.com/unclebandit/activity-sim/internal/errors"
	"github.com/unclebandit/activity-sim/internal/model"
	"github.com/unclebandit/activity-sim/internal/random"
	"github.com/unclebandit/activity-sim/internal/repository"
)

// Request is one unit of work handed to a handler.
type Request struct {
	CampaignID string
	ActorID    string
	Kind       Kind
	Config     json.RawMessage
}

// Outcome is what a handler produced. TargetID may be set even on error.
type Outcome struct {
	TargetID string
	ResultID string
}

// Handler performs one activity kind.
type Handler interface {
	Handle(ctx context.Context, req Request) (Outcome, error)
}

// Result is the dispatcher's classified view of a handled unit.
type Result struct {
	Success   bool
	TargetID  string
	ResultID  string
	ErrorKind appErrors.Kind
	Err       error
}

// Deps are the collaborators shared by all handlers.
type Deps struct {
	Personas  repository.PersonaRepositoryInterface
	Content   repository.ContentRepositoryInterface
	Generator content.Generator
	Scorer    *Scorer
	Rand      random.Source
	Now       func() time.Time
	NewID     func() string
}

func (d *Deps) withDefaults() *Deps {
	cp := *d
	if cp.Now == nil {
		cp.Now = time.Now
	}
	if cp.NewID == nil {
		cp.NewID = uuid.NewString
	}
	if cp.Rand == nil {
		cp.Rand = random.New(0)
	}
	if cp.Scorer == nil {
		cp.Scorer = NewScorer(nil, cp.Rand)
	}
	return &cp
}

func (d *Deps) persona(ctx context.Context, actorID string) (*model.Persona, error) {
	return d.Personas.GetByID(ctx, actorID)
}

func (d *Deps) generate(ctx context.Context, template string, data map[string]string) (string, error) {
	text, err := d.Generator.Generate(ctx, content.Render(template, data))
	if err != nil {
		return "", appErrors.External("content.generate", err)
	}
	return text, nil
}

// pick returns a uniformly random element, or false for an empty slice.
func pick[T any](d *Deps, items []T) (T, bool) {
	var zero T
	i := random.Pick(d.Rand, len(items))
	if i < 0 {
		return zero, false
	}
	return items[i], true
}

// byExpertise runs find with the persona's expertise first and falls back to
// an unrestricted search when that yields nothing.
func byExpertise[T any](p *model.Persona, find func(categories []string) ([]T, error)) ([]T, error) {
	if len(p.Expertise) > 0 {
		items, err := find(p.Expertise)
		if err != nil || len(items) > 0 {
			return items, err
		}
	}
	return find(nil)
}

func noTarget(op, what string) error {
	return appErrors.NotFound(op, "no eligible %s", what)
}
