package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/activity-sim/internal/errors"
	"github.com/unclebandit/activity-sim/internal/model"
)

// ErrUniqueViolation marks an insert rejected by a uniqueness constraint.
var ErrUniqueViolation = errors.New("unique constraint violation")

type PostQuery struct {
	ExcludeAuthor  string
	NotLikedBy     string
	NotCommentedBy string
	Categories     []string
	Limit          int
}

type AssessmentQuery struct {
	Kind           string
	Categories     []string
	Difficulty     string
	Language       string
	NotAttemptedBy string
	Limit          int
}

type LessonQuery struct {
	CourseID       string
	Categories     []string
	NotCompletedBy string
	Limit          int
}

type OpeningQuery struct {
	Kind         string
	Categories   []string
	NotAppliedBy string
	Limit        int
}

// ContentRepositoryInterface is the domain persistence the activity handlers
// read targets from and write results to.
type ContentRepositoryInterface interface {
	RecentPosts(ctx context.Context, q PostQuery) ([]*model.Post, error)
	GetPost(ctx context.Context, id string) (*model.Post, error)
	PostTopics(ctx context.Context, authorID string) ([]string, error)
	CreatePost(ctx context.Context, p *model.Post) error

	LikeExists(ctx context.Context, actorID, postID string) (bool, error)
	CreateLike(ctx context.Context, l *model.Like) error

	CommentExists(ctx context.Context, actorID, postID string) (bool, error)
	// CreateComment with once set enforces one comment per (actor, post).
	CreateComment(ctx context.Context, c *model.Comment, once bool) error

	// FriendRequestExists checks both directions.
	FriendRequestExists(ctx context.Context, fromID, toID string) (bool, error)
	CreateFriendRequest(ctx context.Context, fr *model.FriendRequest) error

	FindAssessments(ctx context.Context, q AssessmentQuery) ([]*model.Assessment, error)
	CreateAttempt(ctx context.Context, a *model.Attempt) error

	FindLessons(ctx context.Context, q LessonQuery) ([]*model.Lesson, error)
	LessonCompleted(ctx context.Context, actorID, lessonID string) (bool, error)
	CreateLessonCompletion(ctx context.Context, lc *model.LessonCompletion) error

	FindChatRooms(ctx context.Context, topics []string) ([]*model.ChatRoom, error)
	GetChatRoom(ctx context.Context, id string) (*model.ChatRoom, error)
	CreateChatMessage(ctx context.Context, m *model.ChatMessage) error

	FindOpenings(ctx context.Context, q OpeningQuery) ([]*model.Opening, error)
	GetOpening(ctx context.Context, id string) (*model.Opening, error)
	ApplicationExists(ctx context.Context, actorID, openingID string) (bool, error)
	CreateApplication(ctx context.Context, a *model.Application) error
}

type ContentRepository struct {
	DB *sql.DB
}

const defaultCandidateLimit = 50

// classifyInsert turns a Postgres unique_violation into ErrUniqueViolation.
func classifyInsert(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%s: %w (%s)", op, ErrUniqueViolation, pqErr.Constraint)
	}
	return appErrors.Persistence(op, err)
}

// whereBuilder numbers placeholders the way lib/pq expects. Each "?" in a
// clause is replaced with the position of its argument.
type whereBuilder struct {
	clauses []string
	args    []any
}

func (w *whereBuilder) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, strings.ReplaceAll(clause, "?", fmt.Sprintf("$%d", len(w.args))))
}

func (w *whereBuilder) sql() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func (w *whereBuilder) limit(n int) string {
	if n <= 0 {
		n = defaultCandidateLimit
	}
	w.args = append(w.args, n)
	return fmt.Sprintf(" LIMIT $%d", len(w.args))
}

func (r *ContentRepository) exists(ctx context.Context, op, query string, args ...any) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx, query, args...).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, appErrors.Persistence(op, err)
	}
	return true, nil
}

// ====================== Posts ======================

func (r *ContentRepository) RecentPosts(ctx context.Context, q PostQuery) ([]*model.Post, error) {
	w := &whereBuilder{}
	if q.ExcludeAuthor != "" {
		w.add("p.author_id <> ?", q.ExcludeAuthor)
	}
	if q.NotLikedBy != "" {
		w.add("NOT EXISTS (SELECT 1 FROM likes l WHERE l.post_id = p.id AND l.actor_id = ?)", q.NotLikedBy)
	}
	if q.NotCommentedBy != "" {
		w.add("NOT EXISTS (SELECT 1 FROM comments c WHERE c.post_id = p.id AND c.actor_id = ?)", q.NotCommentedBy)
	}
	if len(q.Categories) > 0 {
		w.add("p.category = ANY(?)", pq.Array(q.Categories))
	}
	query := `
        SELECT p.id, p.author_id, p.topic, p.category, p.body, p.created_at,
            (SELECT COUNT(*) FROM likes l WHERE l.post_id = p.id)
        FROM posts p` + w.sql() + ` ORDER BY p.created_at DESC` + w.limit(q.Limit)

	rows, err := r.DB.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, appErrors.Persistence("post.recent", err)
	}
	defer rows.Close()

	posts := []*model.Post{}
	for rows.Next() {
		p := &model.Post{}
		if err := rows.Scan(&p.ID, &p.AuthorID, &p.Topic, &p.Category, &p.Body, &p.CreatedAt, &p.LikeCount); err != nil {
			return nil, appErrors.Persistence("post.recent", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (r *ContentRepository) GetPost(ctx context.Context, id string) (*model.Post, error) {
	p := &model.Post{}
	err := r.DB.QueryRowContext(ctx, `
        SELECT p.id, p.author_id, p.topic, p.category, p.body, p.created_at,
            (SELECT COUNT(*) FROM likes l WHERE l.post_id = p.id)
        FROM posts p WHERE p.id=$1
    `, id).Scan(&p.ID, &p.AuthorID, &p.Topic, &p.Category, &p.Body, &p.CreatedAt, &p.LikeCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFound("post.get", "post %s not found", id)
		}
		return nil, appErrors.Persistence("post.get", err)
	}
	return p, nil
}

func (r *ContentRepository) PostTopics(ctx context.Context, authorID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT DISTINCT topic FROM posts WHERE author_id=$1`, authorID)
	if err != nil {
		return nil, appErrors.Persistence("post.topics", err)
	}
	defer rows.Close()

	topics := []string{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, appErrors.Persistence("post.topics", err)
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

func (r *ContentRepository) CreatePost(ctx context.Context, p *model.Post) error {
	_, err := r.DB.ExecContext(ctx, `
        INSERT INTO posts (id, author_id, topic, category, body, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, p.ID, p.AuthorID, p.Topic, p.Category, p.Body, p.CreatedAt)
	if err != nil {
		return classifyInsert("post.create", err)
	}
	return nil
}

// ====================== Likes, comments, friend requests ======================

func (r *ContentRepository) LikeExists(ctx context.Context, actorID, postID string) (bool, error) {
	return r.exists(ctx, "like.exists",
		`SELECT 1 FROM likes WHERE actor_id=$1 AND post_id=$2 LIMIT 1`, actorID, postID)
}

func (r *ContentRepository) CreateLike(ctx context.Context, l *model.Like) error {
	_, err := r.DB.ExecContext(ctx, `
        INSERT INTO likes (id, actor_id, post_id, created_at) VALUES ($1, $2, $3, $4)
    `, l.ID, l.ActorID, l.PostID, l.CreatedAt)
	if err != nil {
		return classifyInsert("like.create", err)
	}
	return nil
}

func (r *ContentRepository) CommentExists(ctx context.Context, actorID, postID string) (bool, error) {
	return r.exists(ctx, "comment.exists",
		`SELECT 1 FROM comments WHERE actor_id=$1 AND post_id=$2 LIMIT 1`, actorID, postID)
}

func (r *ContentRepository) CreateComment(ctx context.Context, c *model.Comment, once bool) error {
	var onceKey *string
	if once {
		k := c.ActorID + "|" + c.PostID
		onceKey = &k
	}
	_, err := r.DB.ExecContext(ctx, `
        INSERT INTO comments (id, actor_id, post_id, body, once_key, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, c.ID, c.ActorID, c.PostID, c.Body, onceKey, c.CreatedAt)
	if err != nil {
		return classifyInsert("comment.create", err)
	}
	return nil
}

func (r *ContentRepository) FriendRequestExists(ctx context.Context, fromID, toID string) (bool, error) {
	return r.exists(ctx, "friend_request.exists", `
        SELECT 1 FROM friend_requests
        WHERE (from_id=$1 AND to_id=$2) OR (from_id=$2 AND to_id=$1)
        LIMIT 1
    `, fromID, toID)
}

func (r *ContentRepository) CreateFriendRequest(ctx context.Context, fr *model.FriendRequest) error {
	_, err := r.DB.ExecContext(ctx, `
        INSERT INTO friend_requests (id, from_id, to_id, status, created_at) VALUES ($1, $2, $3, $4, $5)
    `, fr.ID, fr.FromID, fr.ToID, fr.Status, fr.CreatedAt)
	if err != nil {
		return classifyInsert("friend_request.create", err)
	}
	return nil
}

var _ ContentRepositoryInterface = (*ContentRepository)(nil)
