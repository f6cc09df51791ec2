// internal/model/persona.go
package model

type TechnicalLevel string

const (
	LevelBeginner     TechnicalLevel = "beginner"
	LevelIntermediate TechnicalLevel = "intermediate"
	LevelAdvanced     TechnicalLevel = "advanced"
	LevelExpert       TechnicalLevel = "expert"
)

// Levels lists technical levels from lowest to highest.
var Levels = []TechnicalLevel{LevelBeginner, LevelIntermediate, LevelAdvanced, LevelExpert}

func (l TechnicalLevel) Valid() bool {
	for _, v := range Levels {
		if l == v {
			return true
		}
	}
	return false
}

// Persona is a synthetic actor. Read-only to the engine.
type Persona struct {
	ID             string         `db:"id" json:"id"`
	DisplayName    string         `db:"display_name" json:"display_name"`
	TechnicalLevel TechnicalLevel `db:"technical_level" json:"technical_level"`
	Expertise      []string       `db:"expertise" json:"expertise"`
}

// HasExpertise reports whether the persona lists the given category.
func (p *Persona) HasExpertise(category string) bool {
	for _, e := range p.Expertise {
		if e == category {
			return true
		}
	}
	return false
}
