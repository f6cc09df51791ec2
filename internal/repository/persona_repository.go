package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/activity-sim/internal/errors"
	"github.com/unclebandit/activity-sim/internal/model"
)

// PersonaRepositoryInterface is the read-only persona store.
type PersonaRepositoryInterface interface {
	GetByID(ctx context.Context, id string) (*model.Persona, error)
	// ListBots returns up to limit bot actor ids in a stable order.
	ListBots(ctx context.Context, limit int) ([]string, error)
	ListAll(ctx context.Context) ([]*model.Persona, error)
}

type PersonaRepository struct {
	DB *sql.DB
}

func scanPersona(row rowScanner) (*model.Persona, error) {
	var p model.Persona
	var expertise pq.StringArray
	if err := row.Scan(&p.ID, &p.DisplayName, &p.TechnicalLevel, &expertise); err != nil {
		return nil, err
	}
	p.Expertise = []string(expertise)
	return &p, nil
}

// GetByID fetches a persona by ID
func (r *PersonaRepository) GetByID(ctx context.Context, id string) (*model.Persona, error) {
	row := r.DB.QueryRowContext(ctx, `
        SELECT id, display_name, technical_level, expertise
        FROM personas
        WHERE id = $1
    `, id)
	p, err := scanPersona(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFound("persona.get", "persona %s not found", id)
		}
		return nil, appErrors.Persistence("persona.get", err)
	}
	return p, nil
}

func (r *PersonaRepository) ListBots(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id FROM personas WHERE is_bot ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, appErrors.Persistence("persona.bots", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, appErrors.Persistence("persona.bots", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListAll fetches all personas (friend-request candidates)
func (r *PersonaRepository) ListAll(ctx context.Context) ([]*model.Persona, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, display_name, technical_level, expertise FROM personas ORDER BY id`)
	if err != nil {
		return nil, appErrors.Persistence("persona.list", err)
	}
	defer rows.Close()

	personas := []*model.Persona{}
	for rows.Next() {
		p, err := scanPersona(rows)
		if err != nil {
			return nil, appErrors.Persistence("persona.list", err)
		}
		personas = append(personas, p)
	}
	return personas, rows.Err()
}

var _ PersonaRepositoryInterface = (*PersonaRepository)(nil)
