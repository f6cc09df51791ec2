// internal/model/content.go
package model

import "time"

type Post struct {
	ID        string    `db:"id" json:"id"`
	AuthorID  string    `db:"author_id" json:"author_id"`
	Topic     string    `db:"topic" json:"topic"`
	Category  string    `db:"category" json:"category"`
	Body      string    `db:"body" json:"body"`
	LikeCount int       `db:"like_count" json:"like_count"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Like struct {
	ID        string    `db:"id" json:"id"`
	ActorID   string    `db:"actor_id" json:"actor_id"`
	PostID    string    `db:"post_id" json:"post_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Comment struct {
	ID        string    `db:"id" json:"id"`
	ActorID   string    `db:"actor_id" json:"actor_id"`
	PostID    string    `db:"post_id" json:"post_id"`
	Body      string    `db:"body" json:"body"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type FriendRequest struct {
	ID        string    `db:"id" json:"id"`
	FromID    string    `db:"from_id" json:"from_id"`
	ToID      string    `db:"to_id" json:"to_id"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Assessment is a test, a live-coding exercise or a bug-fix exercise.
type Assessment struct {
	ID         string `db:"id" json:"id"`
	Kind       string `db:"kind" json:"kind"` // test, live_coding, bug_fix
	Title      string `db:"title" json:"title"`
	Category   string `db:"category" json:"category"`
	Difficulty string `db:"difficulty" json:"difficulty"`
	Language   string `db:"language" json:"language"`
	CaseCount  int    `db:"case_count" json:"case_count"`
}

type Attempt struct {
	ID           string    `db:"id" json:"id"`
	AssessmentID string    `db:"assessment_id" json:"assessment_id"`
	ActorID      string    `db:"actor_id" json:"actor_id"`
	Kind         string    `db:"kind" json:"kind"`
	Score        int       `db:"score" json:"score"`
	CasesPassed  int       `db:"cases_passed" json:"cases_passed"`
	Passed       bool      `db:"passed" json:"passed"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type Lesson struct {
	ID       string `db:"id" json:"id"`
	CourseID string `db:"course_id" json:"course_id"`
	Title    string `db:"title" json:"title"`
	Category string `db:"category" json:"category"`
}

type LessonCompletion struct {
	ID        string    `db:"id" json:"id"`
	ActorID   string    `db:"actor_id" json:"actor_id"`
	LessonID  string    `db:"lesson_id" json:"lesson_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type ChatRoom struct {
	ID    string `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	Topic string `db:"topic" json:"topic"`
}

type ChatMessage struct {
	ID        string    `db:"id" json:"id"`
	RoomID    string    `db:"room_id" json:"room_id"`
	ActorID   string    `db:"actor_id" json:"actor_id"`
	Body      string    `db:"body" json:"body"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Opening is a hackathon (kind "hackathon") or freelance project (kind "project").
type Opening struct {
	ID       string `db:"id" json:"id"`
	Kind     string `db:"kind" json:"kind"`
	Title    string `db:"title" json:"title"`
	Category string `db:"category" json:"category"`
}

type Application struct {
	ID        string    `db:"id" json:"id"`
	OpeningID string    `db:"opening_id" json:"opening_id"`
	ActorID   string    `db:"actor_id" json:"actor_id"`
	Kind      string    `db:"kind" json:"kind"`
	Pitch     string    `db:"pitch" json:"pitch"`
	BidAmount float64   `db:"bid_amount" json:"bid_amount,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
