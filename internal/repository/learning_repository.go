package repository

import (
	"context"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/activity-sim/internal/errors"
	"github.com/unclebandit/activity-sim/internal/model"
)

// ====================== Assessments ======================

func (r *ContentRepository) FindAssessments(ctx context.Context, q AssessmentQuery) ([]*model.Assessment, error) {
	w := &whereBuilder{}
	w.add("a.kind = ?", q.Kind)
	if len(q.Categories) > 0 {
		w.add("a.category = ANY(?)", pq.Array(q.Categories))
	}
	if q.Difficulty != "" {
		w.add("a.difficulty = ?", q.Difficulty)
	}
	if q.Language != "" {
		w.add("a.language = ?", q.Language)
	}
	if q.NotAttemptedBy != "" {
		w.add("NOT EXISTS (SELECT 1 FROM attempts t WHERE t.assessment_id = a.id AND t.actor_id = ?)", q.NotAttemptedBy)
	}
	query := `SELECT a.id, a.kind, a.title, a.category, a.difficulty, a.language, a.case_count
        FROM assessments a` + w.sql() + ` ORDER BY a.id` + w.limit(q.Limit)

	rows, err := r.DB.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, appErrors.Persistence("assessment.find", err)
	}
	defer rows.Close()

	out := []*model.Assessment{}
	for rows.Next() {
		a := &model.Assessment{}
		if err := rows.Scan(&a.ID, &a.Kind, &a.Title, &a.Category, &a.Difficulty, &a.Language, &a.CaseCount); err != nil {
			return nil, appErrors.Persistence("assessment.find", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *ContentRepository) CreateAttempt(ctx context.Context, a *model.Attempt) error {
	_, err := r.DB.ExecContext(ctx, `
        INSERT INTO attempts (id, assessment_id, actor_id, kind, score, cases_passed, passed, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, a.ID, a.AssessmentID, a.ActorID, a.Kind, a.Score, a.CasesPassed, a.Passed, a.CreatedAt)
	if err != nil {
		return classifyInsert("attempt.create", err)
	}
	return nil
}

// ====================== Lessons ======================

func (r *ContentRepository) FindLessons(ctx context.Context, q LessonQuery) ([]*model.Lesson, error) {
	w := &whereBuilder{}
	if q.CourseID != "" {
		w.add("l.course_id = ?", q.CourseID)
	}
	if len(q.Categories) > 0 {
		w.add("l.category = ANY(?)", pq.Array(q.Categories))
	}
	if q.NotCompletedBy != "" {
		w.add("NOT EXISTS (SELECT 1 FROM lesson_completions c WHERE c.lesson_id = l.id AND c.actor_id = ?)", q.NotCompletedBy)
	}
	query := `SELECT l.id, l.course_id, l.title, l.category FROM lessons l` +
		w.sql() + ` ORDER BY l.course_id, l.id` + w.limit(q.Limit)

	rows, err := r.DB.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, appErrors.Persistence("lesson.find", err)
	}
	defer rows.Close()

	out := []*model.Lesson{}
	for rows.Next() {
		l := &model.Lesson{}
		if err := rows.Scan(&l.ID, &l.CourseID, &l.Title, &l.Category); err != nil {
			return nil, appErrors.Persistence("lesson.find", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *ContentRepository) LessonCompleted(ctx context.Context, actorID, lessonID string) (bool, error) {
	return r.exists(ctx, "lesson.completed",
		`SELECT 1 FROM lesson_completions WHERE actor_id=$1 AND lesson_id=$2 LIMIT 1`, actorID, lessonID)
}

func (r *ContentRepository) CreateLessonCompletion(ctx context.Context, lc *model.LessonCompletion) error {
	_, err := r.DB.ExecContext(ctx, `
        INSERT INTO lesson_completions (id, actor_id, lesson_id, created_at) VALUES ($1, $2, $3, $4)
    `, lc.ID, lc.ActorID, lc.LessonID, lc.CreatedAt)
	if err != nil {
		return classifyInsert("lesson_completion.create", err)
	}
	return nil
}
