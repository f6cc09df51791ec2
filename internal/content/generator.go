// Package content is the text-generation capability used by content-bearing
// activities (posts, comments, chat, applications).
package content

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
)

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Render substitutes {key} placeholders. Missing values become "<unknown>".
func Render(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		if v == "" {
			v = "<unknown>"
		}
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}

// Prompt templates per content-bearing activity.
const (
	PostPrompt        = "Write a short social post by {name}, a {level} developer, about {topic}."
	CommentPrompt     = "Write a one-sentence reply from {name}, a {level} developer, to this post about {topic}: {body}"
	ChatPrompt        = "Write a casual chat message from {name} in the {room} room about {topic}."
	ApplicationPrompt = "Write a two-sentence pitch from {name}, a {level} {topic} developer, applying to {opening}."
)

// TemplateGenerator is the deterministic offline generator. The same prompt
// always yields the same text.
type TemplateGenerator struct {
	Phrases []string
}

var defaultPhrases = []string{
	"Really enjoyed digging into this.",
	"Sharing what I learned today.",
	"Curious how others approach this.",
	"This clicked for me after a few tries.",
	"Keeping notes here for future me.",
}

func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{Phrases: defaultPhrases}
}

func (g *TemplateGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("template cannot be empty")
	}
	h := fnv.New32a()
	h.Write([]byte(prompt))
	phrase := g.Phrases[int(h.Sum32())%len(g.Phrases)]
	return fmt.Sprintf("%s [%08x]", phrase, h.Sum32()), nil
}
