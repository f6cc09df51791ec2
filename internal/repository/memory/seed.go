package memory

import (
	"fmt"
	"time"

	"github.com/unclebandit/activity-sim/internal/model"
)

var demoCategories = []string{"go", "python", "web", "data"}

// SeedDemo fills the stores with a small platform: bots spread over the four
// technical levels, plus posts, assessments, lessons, rooms and openings for
// every category.
func SeedDemo(personas *PersonaRepository, content *ContentRepository, bots int, now time.Time) {
	for i := 0; i < bots; i++ {
		personas.Add(&model.Persona{
			ID:             fmt.Sprintf("bot-%04d", i+1),
			DisplayName:    fmt.Sprintf("Bot %d", i+1),
			TechnicalLevel: model.Levels[i%len(model.Levels)],
			Expertise:      []string{demoCategories[i%len(demoCategories)]},
		})
	}

	for i, cat := range demoCategories {
		for j := 0; j < 25; j++ {
			content.AddPost(&model.Post{
				ID:        fmt.Sprintf("post-%s-%02d", cat, j+1),
				AuthorID:  fmt.Sprintf("author-%s", cat),
				Topic:     fmt.Sprintf("%s tip #%d", cat, j+1),
				Category:  cat,
				Body:      fmt.Sprintf("Something worth knowing about %s.", cat),
				CreatedAt: now.Add(-time.Duration(i*25+j) * time.Minute),
			})
		}
		for j, difficulty := range []string{"easy", "medium", "hard"} {
			content.AddAssessment(&model.Assessment{ID: fmt.Sprintf("test-%s-%d", cat, j+1), Kind: "test",
				Title: fmt.Sprintf("%s quiz %d", cat, j+1), Category: cat, Difficulty: difficulty})
			content.AddAssessment(&model.Assessment{ID: fmt.Sprintf("live-%s-%d", cat, j+1), Kind: "live_coding",
				Title: fmt.Sprintf("%s kata %d", cat, j+1), Category: cat, Difficulty: difficulty, Language: cat, CaseCount: 10})
			content.AddAssessment(&model.Assessment{ID: fmt.Sprintf("bug-%s-%d", cat, j+1), Kind: "bug_fix",
				Title: fmt.Sprintf("%s bug hunt %d", cat, j+1), Category: cat, Difficulty: difficulty, Language: cat, CaseCount: 5})
		}
		for j := 0; j < 10; j++ {
			content.AddLesson(&model.Lesson{ID: fmt.Sprintf("lesson-%s-%02d", cat, j+1),
				CourseID: "course-" + cat, Title: fmt.Sprintf("%s lesson %d", cat, j+1), Category: cat})
		}
		content.AddChatRoom(&model.ChatRoom{ID: "room-" + cat, Name: cat + " lounge", Topic: cat})
		content.AddOpening(&model.Opening{ID: "hack-" + cat, Kind: "hackathon", Title: cat + " jam", Category: cat})
		content.AddOpening(&model.Opening{ID: "proj-" + cat, Kind: "project", Title: cat + " contract", Category: cat})
	}
}
