package activity

import (
	"context"
	"slices"

	"github.com/unclebandit/activity-sim/internal/content"
	appErrors "github.com/unclebandit/activity-sim/internal/errors"
	"github.com/unclebandit/activity-sim/internal/model"
	"github.com/unclebandit/activity-sim/internal/repository"
)

// genericTopics backs posts from personas with no listed expertise.
var genericTopics = []string{"career", "tooling", "debugging", "open source", "learning"}

const candidateLimit = 50

// ====================== POST ======================

type postHandler struct{ *Deps }

func (h *postHandler) Handle(ctx context.Context, req Request) (Outcome, error) {
	cfg, err := decodeConfig[PostConfig](req.Config)
	if err != nil {
		return Outcome{}, err
	}
	p, err := h.persona(ctx, req.ActorID)
	if err != nil {
		return Outcome{}, err
	}

	topics := cfg.Topics
	if len(topics) == 0 && cfg.UsePostTopics {
		topics = p.Expertise
	}
	if len(topics) == 0 {
		topics = genericTopics
	}
	if cfg.PreventDuplicateTopics {
		used, err := h.Content.PostTopics(ctx, req.ActorID)
		if err != nil {
			return Outcome{}, err
		}
		topics = slices.DeleteFunc(slices.Clone(topics), func(t string) bool {
			return slices.Contains(used, t)
		})
	}
	topic, ok := pick(h.Deps, topics)
	if !ok {
		return Outcome{}, noTarget("post", "topic")
	}

	body, err := h.generate(ctx, content.PostPrompt, map[string]string{
		"name":  p.DisplayName,
		"level": string(p.TechnicalLevel),
		"topic": topic,
	})
	if err != nil {
		return Outcome{}, err
	}

	category := "general"
	if p.HasExpertise(topic) {
		category = topic
	}
	post := &model.Post{
		ID:        h.NewID(),
		AuthorID:  req.ActorID,
		Topic:     topic,
		Category:  category,
		Body:      body,
		CreatedAt: h.Now(),
	}
	if err := h.Content.CreatePost(ctx, post); err != nil {
		return Outcome{}, err
	}
	return Outcome{TargetID: topic, ResultID: post.ID}, nil
}

// ====================== COMMENT ======================

type commentHandler struct{ *Deps }

func (h *commentHandler) Handle(ctx context.Context, req Request) (Outcome, error) {
	cfg, err := decodeConfig[CommentConfig](req.Config)
	if err != nil {
		return Outcome{}, err
	}
	p, err := h.persona(ctx, req.ActorID)
	if err != nil {
		return Outcome{}, err
	}

	var post *model.Post
	if cfg.TargetID != "" {
		if post, err = h.Content.GetPost(ctx, cfg.TargetID); err != nil {
			return Outcome{TargetID: cfg.TargetID}, err
		}
	} else {
		q := repository.PostQuery{ExcludeAuthor: req.ActorID, Limit: candidateLimit}
		if cfg.OnePerPost {
			q.NotCommentedBy = req.ActorID
		}
		posts, err := byExpertise(p, func(categories []string) ([]*model.Post, error) {
			q.Categories = categories
			return h.Content.RecentPosts(ctx, q)
		})
		if err != nil {
			return Outcome{}, err
		}
		var ok bool
		if post, ok = pick(h.Deps, posts); !ok {
			return Outcome{}, noTarget("comment", "post")
		}
	}

	comment := &model.Comment{ID: h.NewID(), ActorID: req.ActorID, PostID: post.ID, CreatedAt: h.Now()}
	create := func(ctx context.Context) error {
		body, err := h.generate(ctx, content.CommentPrompt, map[string]string{
			"name":  p.DisplayName,
			"level": string(p.TechnicalLevel),
			"topic": post.Topic,
			"body":  post.Body,
		})
		if err != nil {
			return err
		}
		comment.Body = body
		return h.Content.CreateComment(ctx, comment, cfg.OnePerPost)
	}

	if cfg.OnePerPost {
		guard := Guard{Op: "comment", Exists: h.Content.CommentExists}
		err = guard.Do(ctx, req.ActorID, post.ID, create)
	} else {
		err = create(ctx)
	}
	if err != nil {
		return Outcome{TargetID: post.ID}, err
	}
	return Outcome{TargetID: post.ID, ResultID: comment.ID}, nil
}

// ====================== LIKE ======================

type likeHandler struct{ *Deps }

func (h *likeHandler) Handle(ctx context.Context, req Request) (Outcome, error) {
	cfg, err := decodeConfig[LikeConfig](req.Config)
	if err != nil {
		return Outcome{}, err
	}

	postID := cfg.TargetID
	if postID == "" {
		p, err := h.persona(ctx, req.ActorID)
		if err != nil {
			return Outcome{}, err
		}
		q := repository.PostQuery{ExcludeAuthor: req.ActorID, NotLikedBy: req.ActorID, Limit: candidateLimit}
		posts, err := byExpertise(p, func(categories []string) ([]*model.Post, error) {
			q.Categories = categories
			return h.Content.RecentPosts(ctx, q)
		})
		if err != nil {
			return Outcome{}, err
		}
		if cfg.DistributeEvenly {
			posts = leastLiked(posts)
		}
		post, ok := pick(h.Deps, posts)
		if !ok {
			return Outcome{}, noTarget("like", "post")
		}
		postID = post.ID
	}

	like := &model.Like{ID: h.NewID(), ActorID: req.ActorID, PostID: postID, CreatedAt: h.Now()}
	guard := Guard{Op: "like", Exists: h.Content.LikeExists}
	err = guard.Do(ctx, req.ActorID, postID, func(ctx context.Context) error {
		return h.Content.CreateLike(ctx, like)
	})
	if err != nil {
		return Outcome{TargetID: postID}, err
	}
	return Outcome{TargetID: postID, ResultID: like.ID}, nil
}

// leastLiked keeps the posts sharing the minimum like count.
func leastLiked(posts []*model.Post) []*model.Post {
	if len(posts) == 0 {
		return posts
	}
	low := posts[0].LikeCount
	for _, p := range posts[1:] {
		low = min(low, p.LikeCount)
	}
	out := make([]*model.Post, 0, len(posts))
	for _, p := range posts {
		if p.LikeCount == low {
			out = append(out, p)
		}
	}
	return out
}

// ====================== FRIEND_REQUEST ======================

type friendRequestHandler struct{ *Deps }

func (h *friendRequestHandler) Handle(ctx context.Context, req Request) (Outcome, error) {
	cfg, err := decodeConfig[FriendRequestConfig](req.Config)
	if err != nil {
		return Outcome{}, err
	}

	toID := cfg.TargetID
	if toID == req.ActorID {
		return Outcome{TargetID: toID}, appErrors.Validation("actor %s cannot befriend itself", req.ActorID)
	}
	if toID == "" {
		p, err := h.persona(ctx, req.ActorID)
		if err != nil {
			return Outcome{}, err
		}
		all, err := h.Personas.ListAll(ctx)
		if err != nil {
			return Outcome{}, err
		}
		candidates := make([]string, 0, len(all))
		for _, other := range all {
			if other.ID == req.ActorID {
				continue
			}
			if cfg.SameExpertiseOnly && !sharesExpertise(p, other) {
				continue
			}
			candidates = append(candidates, other.ID)
		}
		var ok bool
		if toID, ok = pick(h.Deps, candidates); !ok {
			return Outcome{}, noTarget("friend_request", "persona")
		}
	}

	fr := &model.FriendRequest{ID: h.NewID(), FromID: req.ActorID, ToID: toID, Status: "pending", CreatedAt: h.Now()}
	guard := Guard{Op: "friend_request", Exists: h.Content.FriendRequestExists}
	err = guard.Do(ctx, req.ActorID, toID, func(ctx context.Context) error {
		return h.Content.CreateFriendRequest(ctx, fr)
	})
	if err != nil {
		return Outcome{TargetID: toID}, err
	}
	return Outcome{TargetID: toID, ResultID: fr.ID}, nil
}

func sharesExpertise(a, b *model.Persona) bool {
	for _, e := range a.Expertise {
		if b.HasExpertise(e) {
			return true
		}
	}
	return false
}
