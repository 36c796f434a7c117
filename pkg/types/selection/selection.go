// Package selection defines the shared types for the skill-selection
// pipeline: skills with their trigger metadata, the per-request context,
// transient candidates, and the final selection result.
package selection

import (
	"time"
)

// DefaultBudget is the process-wide token ceiling applied when a Context
// does not carry its own budget.
const DefaultBudget = 30000

// Triggers holds the three independent predicate lists that make a skill
// a candidate. A skill fires if any predicate in any list matches.
type Triggers struct {
	// Keywords are case-insensitive substrings matched against free text.
	Keywords []string `json:"keywords,omitempty" yaml:"keywords"`
	// FileTypes are filename suffixes (".tsx") or glob patterns ("*.test.ts").
	FileTypes []string `json:"fileTypes,omitempty" yaml:"file_types"`
	// Directories are component-wise path-prefix patterns ("/cache", "components/").
	Directories []string `json:"directories,omitempty" yaml:"directories"`
}

// Empty reports whether no predicate is declared in any list.
func (t Triggers) Empty() bool {
	return len(t.Keywords) == 0 && len(t.FileTypes) == 0 && len(t.Directories) == 0
}

// Skill is a triggerable, token-costed content unit. Skills are immutable
// once loaded into a registry snapshot.
type Skill struct {
	ID          string   `json:"id"`
	Description string   `json:"description,omitempty"`
	Tier        int      `json:"tier"`
	TokenCost   int      `json:"tokenCost"`
	AlwaysOn    bool     `json:"alwaysOn,omitempty"`
	Triggers    Triggers `json:"triggers"`
	Related     []string `json:"related,omitempty"`

	// Content is the opaque payload the engine never interprets.
	Content string `json:"-"`
	// Source is the path the skill was loaded from, empty for in-memory records.
	Source string `json:"source,omitempty"`
}

// Context captures the momentary working state of one request.
type Context struct {
	QueryText         string   `json:"queryText"`
	OpenFiles         []string `json:"openFiles,omitempty"`
	ActiveDirectories []string `json:"activeDirectories,omitempty"`
	// Budget is the token ceiling for this request. Zero means DefaultBudget.
	Budget int `json:"budget,omitempty"`
}

// EffectiveBudget returns the request budget, falling back to DefaultBudget.
func (c Context) EffectiveBudget() int {
	if c.Budget > 0 {
		return c.Budget
	}
	return DefaultBudget
}

// TriggerClass identifies which predicate class produced a match.
type TriggerClass string

const (
	ClassKeyword   TriggerClass = "keyword"
	ClassFileType  TriggerClass = "fileType"
	ClassDirectory TriggerClass = "directory"
	ClassRelated   TriggerClass = "related"
	ClassAlwaysOn  TriggerClass = "alwaysOn"
)

// MatchReason explains a single firing predicate. For related-skill
// candidates Via names the skill that introduced them.
type MatchReason struct {
	Class   TriggerClass `json:"class"`
	Pattern string       `json:"pattern,omitempty"`
	Via     string       `json:"via,omitempty"`
}

// Candidate pairs a skill with the reasons it matched and its computed
// score. Candidates are transient and never persisted.
type Candidate struct {
	Skill   *Skill
	Score   float64
	Reasons []MatchReason
}

// RejectReason classifies why a considered candidate was not selected.
type RejectReason string

const (
	RejectOverBudget RejectReason = "over budget"
	RejectNotMatched RejectReason = "not matched"
)

// RejectedCandidate is a diagnostic record of a considered-but-rejected skill.
type RejectedCandidate struct {
	ID     string       `json:"id"`
	Score  float64      `json:"score"`
	Reason RejectReason `json:"reason"`
}

// Selection is the final ordered choice for one request. The id order is
// the priority order downstream consumers concatenate content in.
// Selections are immutable after construction and safe to share from cache.
type Selection struct {
	SkillIDs  []string            `json:"skillIds"`
	TotalCost int                 `json:"totalCost"`
	Budget    int                 `json:"budget"`
	Rejected  []RejectedCandidate `json:"rejected,omitempty"`
}

// AuditRecord captures one completed selection for the optional history
// store. It is produced off the hot path and never feeds back into
// selection decisions.
type AuditRecord struct {
	ID          string    `json:"id" db:"id"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	Fingerprint string    `json:"fingerprint" db:"fingerprint"`
	QueryText   string    `json:"queryText" db:"query_text"`
	Budget      int       `json:"budget" db:"budget"`
	TotalCost   int       `json:"totalCost" db:"total_cost"`
	SkillIDs    []string  `json:"skillIds" db:"-"`
	CacheHit    bool      `json:"cacheHit" db:"cache_hit"`
}

// Stats reports engine-level counters for the admin surface.
type Stats struct {
	SkillCount      int       `json:"skillCount"`
	RegistryVersion uint64    `json:"registryVersion"`
	CacheHitRate    float64   `json:"cacheHitRate"`
	LastReloadTime  time.Time `json:"lastReloadTime"`
}
