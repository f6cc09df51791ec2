package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/activity-sim/internal/config"
	appErrors "github.com/unclebandit/activity-sim/internal/errors"
	"github.com/unclebandit/activity-sim/internal/model"
	"github.com/unclebandit/activity-sim/internal/random"
	"github.com/unclebandit/activity-sim/internal/repository"
)

func TestKindNamesRoundTrip(t *testing.T) {
	for _, k := range Kinds() {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	_, err := ParseKind("POKE")
	assert.Error(t, err)
	assert.False(t, kindCount.Valid())
}

func TestExpectedScoreRisesWithLevel(t *testing.T) {
	s := NewScorer(nil, random.NewSeeded(11))
	const n = 4000

	prev := -1.0
	for _, level := range model.Levels {
		sum := 0
		for i := 0; i < n; i++ {
			score := s.Sample(level)
			band := config.DefaultScoreBands()[level]
			require.GreaterOrEqual(t, score, band.Min)
			require.LessOrEqual(t, score, band.Max)
			sum += score
		}
		mean := float64(sum) / n
		assert.Greater(t, mean, prev, "mean score for %s", level)
		prev = mean
	}
}

func TestUnknownLevelScoresAsBeginner(t *testing.T) {
	s := NewScorer(nil, random.NewSeeded(3))
	for i := 0; i < 100; i++ {
		assert.LessOrEqual(t, s.Sample("wizard"), 60)
	}
}

func TestGuard(t *testing.T) {
	ctx := context.Background()
	never := func(context.Context, string, string) (bool, error) { return false, nil }

	t.Run("pre-check hit", func(t *testing.T) {
		called := false
		g := Guard{Op: "like", Exists: func(context.Context, string, string) (bool, error) { return true, nil }}
		err := g.Do(ctx, "a", "p", func(context.Context) error { called = true; return nil })
		assert.True(t, appErrors.Is(err, appErrors.KindDuplicate))
		assert.False(t, called)
	})

	t.Run("constraint violation at insert", func(t *testing.T) {
		g := Guard{Op: "like", Exists: never}
		err := g.Do(ctx, "a", "p", func(context.Context) error {
			return fmt.Errorf("likes insert: %w", repository.ErrUniqueViolation)
		})
		assert.True(t, appErrors.Is(err, appErrors.KindDuplicate))
		assert.ErrorIs(t, err, repository.ErrUniqueViolation)
	})

	t.Run("other failures pass through", func(t *testing.T) {
		g := Guard{Op: "like", Exists: never}
		err := g.Do(ctx, "a", "p", func(context.Context) error {
			return appErrors.Persistence("like.create", fmt.Errorf("conn reset"))
		})
		assert.True(t, appErrors.Is(err, appErrors.KindPersistence))
	})
}

func TestLeastLiked(t *testing.T) {
	posts := []*model.Post{
		{ID: "a", LikeCount: 3},
		{ID: "b", LikeCount: 1},
		{ID: "c", LikeCount: 1},
		{ID: "d", LikeCount: 2},
	}
	got := leastLiked(posts)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
	assert.Empty(t, leastLiked(nil))
}

func TestDifficultyFor(t *testing.T) {
	assert.Equal(t, "easy", DifficultyFor(model.LevelBeginner))
	assert.Equal(t, "medium", DifficultyFor(model.LevelIntermediate))
	assert.Equal(t, "medium", DifficultyFor(model.LevelAdvanced))
	assert.Equal(t, "hard", DifficultyFor(model.LevelExpert))
}

type panicHandler struct{}

func (panicHandler) Handle(context.Context, Request) (Outcome, error) { panic("boom") }

func TestDispatchRecoversPanics(t *testing.T) {
	var d Dispatcher
	for i := range d.handlers {
		d.handlers[i] = panicHandler{}
	}
	res := d.Dispatch(context.Background(), Request{Kind: KindChat})
	assert.False(t, res.Success)
	assert.Equal(t, appErrors.KindInternal, res.ErrorKind)
	assert.ErrorContains(t, res.Err, "boom")

	res = d.Dispatch(context.Background(), Request{Kind: kindCount})
	assert.Equal(t, appErrors.KindValidation, res.ErrorKind)
}

func TestValidateConfig(t *testing.T) {
	shape := Shape{BotCount: 5, TotalActivities: 20}
	cases := []struct {
		name    string
		kind    Kind
		raw     string
		wantErr bool
	}{
		{"empty", KindLike, ``, false},
		{"null", KindChat, `null`, false},
		{"unknown field", KindLike, `{"distributeEvenly": true, "x": 1}`, true},
		{"wrong type", KindPost, `{"usePostTopics": "yes"}`, true},
		{"blank topic", KindPost, `{"topics": [" "]}`, true},
		{"per bot fits", KindTest, `{"testsPerBot": 4}`, false},
		{"per bot too small", KindTest, `{"testsPerBot": 3}`, true},
		{"min score range", KindTest, `{"minScore": 101}`, true},
		{"bad difficulty", KindLiveCoding, `{"difficulty": "insane"}`, true},
		{"bug fix per bot", KindBugFix, `{"fixesPerBot": 1}`, true},
		{"inverted bids", KindFreelancerBid, `{"minBid": 500, "maxBid": 100}`, true},
		{"bids", KindFreelancerBid, `{"minBid": 100, "maxBid": 500}`, false},
		{"unknown kind", kindCount, `{}`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateConfig(tc.kind, json.RawMessage(tc.raw), shape)
			if tc.wantErr {
				assert.True(t, appErrors.Is(err, appErrors.KindValidation), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBidAmountWithinRange(t *testing.T) {
	h := &applicationHandler{Deps: &Deps{Rand: random.NewSeeded(5)}, openingKind: "project", bid: true}
	for i := 0; i < 200; i++ {
		bid := h.bidAmount(ApplicationConfig{MinBid: 200, MaxBid: 300})
		assert.GreaterOrEqual(t, bid, 200.0)
		assert.LessOrEqual(t, bid, 300.0)
	}
	assert.GreaterOrEqual(t, h.bidAmount(ApplicationConfig{}), float64(defaultMinBid))
}
