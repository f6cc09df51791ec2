package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/activity-sim/internal/errors"
	"github.com/unclebandit/activity-sim/internal/model"
	"github.com/unclebandit/activity-sim/internal/repository"
)

func TestCampaignTransitionIsConditional(t *testing.T) {
	ctx := context.Background()
	repo := NewCampaignRepository()
	now := time.Now()
	require.NoError(t, repo.Create(ctx, &model.Campaign{ID: "c1", FamilyID: "c1", Status: model.StatusPending, CreatedAt: now}))

	ok, err := repo.Transition(ctx, "c1", []model.CampaignStatus{model.StatusPending}, model.StatusRunning, now, "")
	require.NoError(t, err)
	assert.True(t, ok)

	// pending is no longer the current state
	ok, err = repo.Transition(ctx, "c1", []model.CampaignStatus{model.StatusPending}, model.StatusCancelled, now, "")
	require.NoError(t, err)
	assert.False(t, ok)

	c, err := repo.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRunning, c.Status)
	assert.NotNil(t, c.StartedAt)

	_, err = repo.GetByID(ctx, "missing")
	assert.True(t, appErrors.Is(err, appErrors.KindNotFound))
}

func TestSpawnSuccessorHonoursFamilyFlag(t *testing.T) {
	ctx := context.Background()
	repo := NewCampaignRepository()
	require.NoError(t, repo.Create(ctx, &model.Campaign{ID: "c1", FamilyID: "c1", Recurring: true, RecurringPattern: model.PatternDaily}))

	ok, err := repo.SpawnSuccessor(ctx, &model.Campaign{ID: "c2", FamilyID: "c1"})
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, repo.SetFamilyRecurring(ctx, "c1", false))
	ok, err = repo.SpawnSuccessor(ctx, &model.Campaign{ID: "c3", FamilyID: "c1"})
	require.NoError(t, err)
	assert.False(t, ok)

	c2, err := repo.GetByID(ctx, "c2")
	require.NoError(t, err)
	assert.False(t, c2.Recurring, "flag is read from the family")

	list, total, err := repo.ListCampaigns(ctx, repository.CampaignFilter{FamilyID: "c1", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, list, 2)
}

func TestListCampaignsMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewCampaignRepository()
	base := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Create(ctx, &model.Campaign{ID: id, FamilyID: id, Status: model.StatusPending,
			CreatedAt: base.Add(time.Duration(i) * time.Minute)}))
	}

	page, total, err := repo.ListCampaigns(ctx, repository.CampaignFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].ID)
	assert.Equal(t, "b", page[1].ID)
}

func TestContentUniqueness(t *testing.T) {
	ctx := context.Background()
	content := NewContentRepository()
	content.AddPost(&model.Post{ID: "p1", AuthorID: "author"})

	require.NoError(t, content.CreateLike(ctx, &model.Like{ID: "l1", ActorID: "bot", PostID: "p1"}))
	assert.ErrorIs(t, content.CreateLike(ctx, &model.Like{ID: "l2", ActorID: "bot", PostID: "p1"}), repository.ErrUniqueViolation)
	assert.Len(t, content.Likes(), 1)

	require.NoError(t, content.CreateComment(ctx, &model.Comment{ID: "c1", ActorID: "bot", PostID: "p1"}, true))
	assert.ErrorIs(t, content.CreateComment(ctx, &model.Comment{ID: "c2", ActorID: "bot", PostID: "p1"}, true), repository.ErrUniqueViolation)
	require.NoError(t, content.CreateComment(ctx, &model.Comment{ID: "c3", ActorID: "bot", PostID: "p1"}, false))

	require.NoError(t, content.CreateFriendRequest(ctx, &model.FriendRequest{ID: "f1", FromID: "a", ToID: "b"}))
	exists, err := content.FriendRequestExists(ctx, "b", "a")
	require.NoError(t, err)
	assert.True(t, exists, "either direction counts")
}

func TestRecentPostsFilters(t *testing.T) {
	ctx := context.Background()
	content := NewContentRepository()
	now := time.Now()
	content.AddPost(&model.Post{ID: "old", AuthorID: "x", Category: "go", CreatedAt: now.Add(-time.Hour)})
	content.AddPost(&model.Post{ID: "new", AuthorID: "x", Category: "go", CreatedAt: now})
	content.AddPost(&model.Post{ID: "mine", AuthorID: "bot", Category: "go", CreatedAt: now})
	content.AddPost(&model.Post{ID: "py", AuthorID: "x", Category: "python", CreatedAt: now})
	require.NoError(t, content.CreateLike(ctx, &model.Like{ID: "l", ActorID: "bot", PostID: "old"}))

	posts, err := content.RecentPosts(ctx, repository.PostQuery{
		ExcludeAuthor: "bot", NotLikedBy: "bot", Categories: []string{"go"},
	})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "new", posts[0].ID)
}

func TestSeedDemo(t *testing.T) {
	ctx := context.Background()
	personas, content := NewPersonaRepository(), NewContentRepository()
	SeedDemo(personas, content, 8, time.Now())

	bots, err := personas.ListBots(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, bots, 8)

	tests, err := content.FindAssessments(ctx, repository.AssessmentQuery{Kind: "test", Categories: []string{"go"}})
	require.NoError(t, err)
	assert.Len(t, tests, 3)
}
