package registry

import (
	"context"

	"github.com/opus67/skillctx/pkg/types/selection"
)

// Record is the parsed form of one skill definition, before validation.
// Field names follow the SKILL.md frontmatter keys.
type Record struct {
	ID          string   `mapstructure:"id" yaml:"id"`
	Description string   `mapstructure:"description" yaml:"description"`
	Tier        int      `mapstructure:"tier" yaml:"tier"`
	TokenCost   int      `mapstructure:"token_cost" yaml:"token_cost"`
	Keywords    []string `mapstructure:"keywords" yaml:"keywords"`
	FileTypes   []string `mapstructure:"file_types" yaml:"file_types"`
	Directories []string `mapstructure:"directories" yaml:"directories"`
	Related     []string `mapstructure:"related" yaml:"related"`
	AlwaysOn    bool     `mapstructure:"always_on" yaml:"always_on"`

	// Content is the record body, opaque to the engine.
	Content string `mapstructure:"-" yaml:"-"`
	// Source is where the record came from, for error reporting.
	Source string `mapstructure:"-" yaml:"-"`
}

func (r Record) skill() *selection.Skill {
	return &selection.Skill{
		ID:          r.ID,
		Description: r.Description,
		Tier:        r.Tier,
		TokenCost:   r.TokenCost,
		AlwaysOn:    r.AlwaysOn,
		Triggers: selection.Triggers{
			Keywords:    r.Keywords,
			FileTypes:   r.FileTypes,
			Directories: r.Directories,
		},
		Related: r.Related,
		Content: r.Content,
		Source:  r.Source,
	}
}

// Source yields skill records for a load or reload. The exact serialization
// behind a Source is its own concern; the registry only validates and indexes
// what it yields.
type Source interface {
	Records(ctx context.Context) ([]Record, error)
}

// StaticSource serves a fixed slice of records, for tests and embedding.
type StaticSource []Record

// Records implements Source.
func (s StaticSource) Records(context.Context) ([]Record, error) {
	return s, nil
}
