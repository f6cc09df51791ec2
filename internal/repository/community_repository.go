package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/activity-sim/internal/errors"
	"github.com/unclebandit/activity-sim/internal/model"
)

// ====================== Chat ======================

func (r *ContentRepository) FindChatRooms(ctx context.Context, topics []string) ([]*model.ChatRoom, error) {
	w := &whereBuilder{}
	if len(topics) > 0 {
		w.add("topic = ANY(?)", pq.Array(topics))
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, name, topic FROM chat_rooms`+w.sql()+` ORDER BY id`+w.limit(0), w.args...)
	if err != nil {
		return nil, appErrors.Persistence("chat_room.find", err)
	}
	defer rows.Close()

	out := []*model.ChatRoom{}
	for rows.Next() {
		room := &model.ChatRoom{}
		if err := rows.Scan(&room.ID, &room.Name, &room.Topic); err != nil {
			return nil, appErrors.Persistence("chat_room.find", err)
		}
		out = append(out, room)
	}
	return out, rows.Err()
}

func (r *ContentRepository) GetChatRoom(ctx context.Context, id string) (*model.ChatRoom, error) {
	room := &model.ChatRoom{}
	err := r.DB.QueryRowContext(ctx, `SELECT id, name, topic FROM chat_rooms WHERE id=$1`, id).
		Scan(&room.ID, &room.Name, &room.Topic)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFound("chat_room.get", "chat room %s not found", id)
		}
		return nil, appErrors.Persistence("chat_room.get", err)
	}
	return room, nil
}

func (r *ContentRepository) CreateChatMessage(ctx context.Context, m *model.ChatMessage) error {
	_, err := r.DB.ExecContext(ctx, `
        INSERT INTO chat_messages (id, room_id, actor_id, body, created_at) VALUES ($1, $2, $3, $4, $5)
    `, m.ID, m.RoomID, m.ActorID, m.Body, m.CreatedAt)
	if err != nil {
		return classifyInsert("chat_message.create", err)
	}
	return nil
}

// ====================== Hackathons and freelance projects ======================

func (r *ContentRepository) FindOpenings(ctx context.Context, q OpeningQuery) ([]*model.Opening, error) {
	w := &whereBuilder{}
	w.add("o.kind = ?", q.Kind)
	if len(q.Categories) > 0 {
		w.add("o.category = ANY(?)", pq.Array(q.Categories))
	}
	if q.NotAppliedBy != "" {
		w.add("NOT EXISTS (SELECT 1 FROM applications a WHERE a.opening_id = o.id AND a.actor_id = ?)", q.NotAppliedBy)
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT o.id, o.kind, o.title, o.category FROM openings o`+w.sql()+` ORDER BY o.id`+w.limit(q.Limit), w.args...)
	if err != nil {
		return nil, appErrors.Persistence("opening.find", err)
	}
	defer rows.Close()

	out := []*model.Opening{}
	for rows.Next() {
		o := &model.Opening{}
		if err := rows.Scan(&o.ID, &o.Kind, &o.Title, &o.Category); err != nil {
			return nil, appErrors.Persistence("opening.find", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *ContentRepository) GetOpening(ctx context.Context, id string) (*model.Opening, error) {
	o := &model.Opening{}
	err := r.DB.QueryRowContext(ctx, `SELECT id, kind, title, category FROM openings WHERE id=$1`, id).
		Scan(&o.ID, &o.Kind, &o.Title, &o.Category)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFound("opening.get", "opening %s not found", id)
		}
		return nil, appErrors.Persistence("opening.get", err)
	}
	return o, nil
}

func (r *ContentRepository) ApplicationExists(ctx context.Context, actorID, openingID string) (bool, error) {
	return r.exists(ctx, "application.exists",
		`SELECT 1 FROM applications WHERE actor_id=$1 AND opening_id=$2 LIMIT 1`, actorID, openingID)
}

func (r *ContentRepository) CreateApplication(ctx context.Context, a *model.Application) error {
	_, err := r.DB.ExecContext(ctx, `
        INSERT INTO applications (id, opening_id, actor_id, kind, pitch, bid_amount, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, a.ID, a.OpeningID, a.ActorID, a.Kind, a.Pitch, a.BidAmount, a.CreatedAt)
	if err != nil {
		return classifyInsert("application.create", err)
	}
	return nil
}
