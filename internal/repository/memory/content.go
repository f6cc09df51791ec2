package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	appErrors "github.com/unclebandit/activity-sim/internal/errors"
	"github.com/unclebandit/activity-sim/internal/model"
	"github.com/unclebandit/activity-sim/internal/repository"
)

// ContentRepository enforces the same uniqueness rules as the Postgres
// schema: (actor, post) likes, (from, to) friend requests, (actor, lesson)
// completions, (actor, opening) applications and once-per-post comments.
type ContentRepository struct {
	mu sync.RWMutex

	posts        []*model.Post
	likes        []*model.Like
	comments     []*model.Comment
	onceComments map[string]bool
	friends      []*model.FriendRequest
	assessments  []*model.Assessment
	attempts     []*model.Attempt
	lessons      []*model.Lesson
	completions  []*model.LessonCompletion
	rooms        []*model.ChatRoom
	messages     []*model.ChatMessage
	openings     []*model.Opening
	applications []*model.Application
}

func NewContentRepository() *ContentRepository {
	return &ContentRepository{onceComments: make(map[string]bool)}
}

func uniqueErr(op string) error {
	return fmt.Errorf("%s: %w", op, repository.ErrUniqueViolation)
}

func matchesAny(value string, set []string) bool {
	return len(set) == 0 || slices.Contains(set, value)
}

func capLimit(n int) int {
	if n <= 0 {
		return 50
	}
	return n
}

// ====================== Seeding ======================

func (r *ContentRepository) AddPost(p *model.Post) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.posts = append(r.posts, &cp)
}

func (r *ContentRepository) AddAssessment(a *model.Assessment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.assessments = append(r.assessments, &cp)
}

func (r *ContentRepository) AddLesson(l *model.Lesson) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *l
	r.lessons = append(r.lessons, &cp)
}

func (r *ContentRepository) AddChatRoom(room *model.ChatRoom) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *room
	r.rooms = append(r.rooms, &cp)
}

func (r *ContentRepository) AddOpening(o *model.Opening) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	r.openings = append(r.openings, &cp)
}

// ====================== Snapshots ======================

func (r *ContentRepository) Likes() []model.Like {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Like, len(r.likes))
	for i, l := range r.likes {
		out[i] = *l
	}
	return out
}

func (r *ContentRepository) Posts() []model.Post {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Post, len(r.posts))
	for i, p := range r.posts {
		out[i] = *p
	}
	return out
}

func (r *ContentRepository) Attempts() []model.Attempt {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Attempt, len(r.attempts))
	for i, a := range r.attempts {
		out[i] = *a
	}
	return out
}

func (r *ContentRepository) FriendRequests() []model.FriendRequest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.FriendRequest, len(r.friends))
	for i, f := range r.friends {
		out[i] = *f
	}
	return out
}

// ====================== Posts ======================

func (r *ContentRepository) likeCount(postID string) int {
	n := 0
	for _, l := range r.likes {
		if l.PostID == postID {
			n++
		}
	}
	return n
}

func (r *ContentRepository) hasLike(actorID, postID string) bool {
	for _, l := range r.likes {
		if l.ActorID == actorID && l.PostID == postID {
			return true
		}
	}
	return false
}

func (r *ContentRepository) hasComment(actorID, postID string) bool {
	for _, c := range r.comments {
		if c.ActorID == actorID && c.PostID == postID {
			return true
		}
	}
	return false
}

func (r *ContentRepository) RecentPosts(ctx context.Context, q repository.PostQuery) ([]*model.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*model.Post{}
	for _, p := range r.posts {
		if q.ExcludeAuthor != "" && p.AuthorID == q.ExcludeAuthor {
			continue
		}
		if q.NotLikedBy != "" && r.hasLike(q.NotLikedBy, p.ID) {
			continue
		}
		if q.NotCommentedBy != "" && r.hasComment(q.NotCommentedBy, p.ID) {
			continue
		}
		if !matchesAny(p.Category, q.Categories) {
			continue
		}
		cp := *p
		cp.LikeCount = r.likeCount(p.ID)
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit := capLimit(q.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ContentRepository) GetPost(ctx context.Context, id string) (*model.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.posts {
		if p.ID == id {
			cp := *p
			cp.LikeCount = r.likeCount(id)
			return &cp, nil
		}
	}
	return nil, appErrors.NotFound("post.get", "post %s not found", id)
}

func (r *ContentRepository) PostTopics(ctx context.Context, authorID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	topics := []string{}
	for _, p := range r.posts {
		if p.AuthorID == authorID && !slices.Contains(topics, p.Topic) {
			topics = append(topics, p.Topic)
		}
	}
	return topics, nil
}

func (r *ContentRepository) CreatePost(ctx context.Context, p *model.Post) error {
	r.AddPost(p)
	return nil
}

// ====================== Likes, comments, friend requests ======================

func (r *ContentRepository) LikeExists(ctx context.Context, actorID, postID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hasLike(actorID, postID), nil
}

func (r *ContentRepository) CreateLike(ctx context.Context, l *model.Like) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hasLike(l.ActorID, l.PostID) {
		return uniqueErr("like.create")
	}
	cp := *l
	r.likes = append(r.likes, &cp)
	return nil
}

func (r *ContentRepository) CommentExists(ctx context.Context, actorID, postID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hasComment(actorID, postID), nil
}

func (r *ContentRepository) CreateComment(ctx context.Context, c *model.Comment, once bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if once {
		key := c.ActorID + "|" + c.PostID
		if r.onceComments[key] {
			return uniqueErr("comment.create")
		}
		r.onceComments[key] = true
	}
	cp := *c
	r.comments = append(r.comments, &cp)
	return nil
}

func (r *ContentRepository) hasFriendRequest(a, b string) bool {
	for _, f := range r.friends {
		if (f.FromID == a && f.ToID == b) || (f.FromID == b && f.ToID == a) {
			return true
		}
	}
	return false
}

func (r *ContentRepository) FriendRequestExists(ctx context.Context, fromID, toID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hasFriendRequest(fromID, toID), nil
}

func (r *ContentRepository) CreateFriendRequest(ctx context.Context, fr *model.FriendRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.friends {
		if f.FromID == fr.FromID && f.ToID == fr.ToID {
			return uniqueErr("friend_request.create")
		}
	}
	cp := *fr
	r.friends = append(r.friends, &cp)
	return nil
}

// ====================== Assessments and lessons ======================

func (r *ContentRepository) FindAssessments(ctx context.Context, q repository.AssessmentQuery) ([]*model.Assessment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*model.Assessment{}
	for _, a := range r.assessments {
		if a.Kind != q.Kind || !matchesAny(a.Category, q.Categories) {
			continue
		}
		if (q.Difficulty != "" && a.Difficulty != q.Difficulty) || (q.Language != "" && a.Language != q.Language) {
			continue
		}
		if q.NotAttemptedBy != "" && slices.ContainsFunc(r.attempts, func(t *model.Attempt) bool {
			return t.AssessmentID == a.ID && t.ActorID == q.NotAttemptedBy
		}) {
			continue
		}
		cp := *a
		out = append(out, &cp)
		if len(out) == capLimit(q.Limit) {
			break
		}
	}
	return out, nil
}

func (r *ContentRepository) CreateAttempt(ctx context.Context, a *model.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.attempts = append(r.attempts, &cp)
	return nil
}

func (r *ContentRepository) completed(actorID, lessonID string) bool {
	return slices.ContainsFunc(r.completions, func(c *model.LessonCompletion) bool {
		return c.ActorID == actorID && c.LessonID == lessonID
	})
}

func (r *ContentRepository) FindLessons(ctx context.Context, q repository.LessonQuery) ([]*model.Lesson, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*model.Lesson{}
	for _, l := range r.lessons {
		if q.CourseID != "" && l.CourseID != q.CourseID {
			continue
		}
		if !matchesAny(l.Category, q.Categories) {
			continue
		}
		if q.NotCompletedBy != "" && r.completed(q.NotCompletedBy, l.ID) {
			continue
		}
		cp := *l
		out = append(out, &cp)
		if len(out) == capLimit(q.Limit) {
			break
		}
	}
	return out, nil
}

func (r *ContentRepository) LessonCompleted(ctx context.Context, actorID, lessonID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.completed(actorID, lessonID), nil
}

func (r *ContentRepository) CreateLessonCompletion(ctx context.Context, lc *model.LessonCompletion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.completed(lc.ActorID, lc.LessonID) {
		return uniqueErr("lesson_completion.create")
	}
	cp := *lc
	r.completions = append(r.completions, &cp)
	return nil
}

// ====================== Chat and openings ======================

func (r *ContentRepository) FindChatRooms(ctx context.Context, topics []string) ([]*model.ChatRoom, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*model.ChatRoom{}
	for _, room := range r.rooms {
		if matchesAny(room.Topic, topics) {
			cp := *room
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *ContentRepository) GetChatRoom(ctx context.Context, id string) (*model.ChatRoom, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, room := range r.rooms {
		if room.ID == id {
			cp := *room
			return &cp, nil
		}
	}
	return nil, appErrors.NotFound("chat_room.get", "chat room %s not found", id)
}

func (r *ContentRepository) CreateChatMessage(ctx context.Context, m *model.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	r.messages = append(r.messages, &cp)
	return nil
}

func (r *ContentRepository) applied(actorID, openingID string) bool {
	return slices.ContainsFunc(r.applications, func(a *model.Application) bool {
		return a.ActorID == actorID && a.OpeningID == openingID
	})
}

func (r *ContentRepository) FindOpenings(ctx context.Context, q repository.OpeningQuery) ([]*model.Opening, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*model.Opening{}
	for _, o := range r.openings {
		if o.Kind != q.Kind || !matchesAny(o.Category, q.Categories) {
			continue
		}
		if q.NotAppliedBy != "" && r.applied(q.NotAppliedBy, o.ID) {
			continue
		}
		cp := *o
		out = append(out, &cp)
		if len(out) == capLimit(q.Limit) {
			break
		}
	}
	return out, nil
}

func (r *ContentRepository) GetOpening(ctx context.Context, id string) (*model.Opening, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.openings {
		if o.ID == id {
			cp := *o
			return &cp, nil
		}
	}
	return nil, appErrors.NotFound("opening.get", "opening %s not found", id)
}

func (r *ContentRepository) ApplicationExists(ctx context.Context, actorID, openingID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.applied(actorID, openingID), nil
}

func (r *ContentRepository) CreateApplication(ctx context.Context, a *model.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.applied(a.ActorID, a.OpeningID) {
		return uniqueErr("application.create")
	}
	cp := *a
	r.applications = append(r.applications, &cp)
	return nil
}

var _ repository.ContentRepositoryInterface = (*ContentRepository)(nil)
