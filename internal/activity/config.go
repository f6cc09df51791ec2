package activity

import (
	"bytes"
	"encoding/json"
	"strings"

	appErrors "github.com/unclebandit/activity-sim/internal/errors"
)

// Shape is the campaign-level context some per-kind rules depend on.
type Shape struct {
	BotCount        int
	TotalActivities int
}

type PostConfig struct {
	UsePostTopics          bool     `json:"usePostTopics"`
	PreventDuplicateTopics bool     `json:"preventDuplicateTopics"`
	Topics                 []string `json:"topics,omitempty"`
}

type CommentConfig struct {
	OnePerPost bool   `json:"onePerPost"`
	TargetID   string `json:"targetId,omitempty"`
}

type LikeConfig struct {
	DistributeEvenly bool   `json:"distributeEvenly"`
	TargetID         string `json:"targetId,omitempty"`
}

type FriendRequestConfig struct {
	TargetID          string `json:"targetId,omitempty"`
	SameExpertiseOnly bool   `json:"sameExpertiseOnly"`
}

type TestConfig struct {
	TestsPerBot int    `json:"testsPerBot"`
	Category    string `json:"category,omitempty"`
	MinScore    *int   `json:"minScore,omitempty"`
}

type LiveCodingConfig struct {
	CasesPerBot int    `json:"casesPerBot"`
	Difficulty  string `json:"difficulty,omitempty"`
	Language    string `json:"language,omitempty"`
}

type BugFixConfig struct {
	FixesPerBot int    `json:"fixesPerBot"`
	Difficulty  string `json:"difficulty,omitempty"`
	Language    string `json:"language,omitempty"`
}

type LessonConfig struct {
	CourseID string `json:"courseId,omitempty"`
}

type ChatConfig struct {
	RoomID string `json:"roomId,omitempty"`
}

type ApplicationConfig struct {
	OpeningID string  `json:"openingId,omitempty"`
	MinBid    float64 `json:"minBid,omitempty"`
	MaxBid    float64 `json:"maxBid,omitempty"`
}

const defaultMinScore = 60

var difficulties = []string{"easy", "medium", "hard"}

type validatable interface {
	validate(s Shape) error
}

// decodeConfig strictly decodes raw into T. Empty input yields the zero value.
func decodeConfig[T any](raw json.RawMessage) (T, error) {
	var cfg T
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return cfg, nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, appErrors.Validation("invalid config: %v", err)
	}
	return cfg, nil
}

func checker[T validatable]() func(json.RawMessage, Shape) error {
	return func(raw json.RawMessage, s Shape) error {
		cfg, err := decodeConfig[T](raw)
		if err != nil {
			return err
		}
		return cfg.validate(s)
	}
}

var configCheckers = [...]func(json.RawMessage, Shape) error{
	KindPost:                 checker[PostConfig](),
	KindComment:              checker[CommentConfig](),
	KindLike:                 checker[LikeConfig](),
	KindFriendRequest:        checker[FriendRequestConfig](),
	KindTest:                 checker[TestConfig](),
	KindLiveCoding:           checker[LiveCodingConfig](),
	KindBugFix:               checker[BugFixConfig](),
	KindLesson:               checker[LessonConfig](),
	KindChat:                 checker[ChatConfig](),
	KindHackathonApplication: checker[ApplicationConfig](),
	KindFreelancerBid:        checker[ApplicationConfig](),
}

var _ = [1]struct{}{}[len(configCheckers)-int(kindCount)]

// ValidateConfig checks raw against the schema of kind k.
func ValidateConfig(k Kind, raw json.RawMessage, s Shape) error {
	if !k.Valid() {
		return appErrors.Validation("unknown activity type %s", k)
	}
	return configCheckers[k](raw, s)
}

func validPerBot(field string, perBot int, s Shape) error {
	if perBot < 0 {
		return appErrors.Validation("%s must be >= 0", field)
	}
	if perBot > 0 && s.TotalActivities > s.BotCount*perBot {
		return appErrors.Validation("totalActivities %d exceeds botCount*%s (%d)",
			s.TotalActivities, field, s.BotCount*perBot)
	}
	return nil
}

func validDifficulty(d string) error {
	if d == "" {
		return nil
	}
	for _, v := range difficulties {
		if d == v {
			return nil
		}
	}
	return appErrors.Validation("difficulty must be one of %s", strings.Join(difficulties, ", "))
}

func (c PostConfig) validate(Shape) error {
	for _, t := range c.Topics {
		if strings.TrimSpace(t) == "" {
			return appErrors.Validation("topics must not contain empty entries")
		}
	}
	return nil
}

func (CommentConfig) validate(Shape) error       { return nil }
func (LikeConfig) validate(Shape) error          { return nil }
func (FriendRequestConfig) validate(Shape) error { return nil }
func (LessonConfig) validate(Shape) error        { return nil }
func (ChatConfig) validate(Shape) error          { return nil }

func (c TestConfig) validate(s Shape) error {
	if c.MinScore != nil && (*c.MinScore < 0 || *c.MinScore > 100) {
		return appErrors.Validation("minScore must be between 0 and 100")
	}
	return validPerBot("testsPerBot", c.TestsPerBot, s)
}

func (c TestConfig) minScore() int {
	if c.MinScore == nil {
		return defaultMinScore
	}
	return *c.MinScore
}

func (c LiveCodingConfig) validate(s Shape) error {
	if err := validDifficulty(c.Difficulty); err != nil {
		return err
	}
	return validPerBot("casesPerBot", c.CasesPerBot, s)
}

func (c BugFixConfig) validate(s Shape) error {
	if err := validDifficulty(c.Difficulty); err != nil {
		return err
	}
	return validPerBot("fixesPerBot", c.FixesPerBot, s)
}

func (c ApplicationConfig) validate(Shape) error {
	if c.MinBid < 0 || c.MaxBid < 0 {
		return appErrors.Validation("bids must be >= 0")
	}
	if c.MaxBid != 0 && c.MaxBid < c.MinBid {
		return appErrors.Validation("maxBid must be >= minBid")
	}
	return nil
}
