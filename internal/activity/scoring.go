package activity

import (
	"github.com/unclebandit/activity-sim/internal/config"
	"github.com/unclebandit/activity-sim/internal/model"
	"github.com/unclebandit/activity-sim/internal/random"
)

// Scorer samples outcome scores from per-level bands. Bands are ordered by
// midpoint, so expected score rises with technical level.
type Scorer struct {
	bands map[model.TechnicalLevel]config.ScoreBand
	rand  random.Source
}

// NewScorer uses config.DefaultScoreBands when bands is nil.
func NewScorer(bands map[model.TechnicalLevel]config.ScoreBand, src random.Source) *Scorer {
	if bands == nil {
		bands = config.DefaultScoreBands()
	}
	return &Scorer{bands: bands, rand: src}
}

// Sample returns a score in the level's band. Unknown levels score as beginners.
func (s *Scorer) Sample(level model.TechnicalLevel) int {
	band, ok := s.bands[level]
	if !ok {
		band = s.bands[model.LevelBeginner]
	}
	return random.Between(s.rand, band.Min, band.Max)
}

// DifficultyFor is the default exercise difficulty for a level.
func DifficultyFor(level model.TechnicalLevel) string {
	switch level {
	case model.LevelExpert:
		return "hard"
	case model.LevelAdvanced, model.LevelIntermediate:
		return "medium"
	default:
		return "easy"
	}
}
