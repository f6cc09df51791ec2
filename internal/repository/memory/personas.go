package memory

import (
	"context"
	"sort"
	"sync"

	appErrors "github.com/unclebandit/activity-sim/internal/errors"
	"github.com/unclebandit/activity-sim/internal/model"
	"github.com/unclebandit/activity-sim/internal/repository"
)

type PersonaRepository struct {
	mu       sync.RWMutex
	personas map[string]*model.Persona
}

func NewPersonaRepository(personas ...*model.Persona) *PersonaRepository {
	r := &PersonaRepository{personas: make(map[string]*model.Persona)}
	for _, p := range personas {
		r.Add(p)
	}
	return r
}

func (r *PersonaRepository) Add(p *model.Persona) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.personas[p.ID] = &cp
}

func (r *PersonaRepository) GetByID(ctx context.Context, id string) (*model.Persona, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.personas[id]
	if !ok {
		return nil, appErrors.NotFound("persona.get", "persona %s not found", id)
	}
	cp := *p
	return &cp, nil
}

func (r *PersonaRepository) ListBots(ctx context.Context, limit int) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.personas))
	for id := range r.personas {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (r *PersonaRepository) ListAll(ctx context.Context) ([]*model.Persona, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Persona, 0, len(r.personas))
	for _, p := range r.personas {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var _ repository.PersonaRepositoryInterface = (*PersonaRepository)(nil)
