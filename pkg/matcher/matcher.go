// Package matcher maps a request context to the set of directly-triggered
// skill candidates. Matching is a pure function of (snapshot, context):
// no side effects, no I/O.
package matcher

import (
	"strings"

	"github.com/opus67/skillctx/pkg/registry"
	"github.com/opus67/skillctx/pkg/types/selection"
)

// Weights holds the per-class predicate weights. The defaults reflect
// specificity: a keyword hit says more about intent than an open file,
// which says more than a directory.
type Weights struct {
	Keyword   float64
	FileType  float64
	Directory float64
	// ClassCap bounds how many distinct firing predicates per class count
	// toward the score, so no single class dominates a skill's total.
	ClassCap int
}

// DefaultWeights returns the documented default weighting.
func DefaultWeights() Weights {
	return Weights{Keyword: 3, FileType: 2, Directory: 1, ClassCap: 3}
}

func (w Weights) class(class selection.TriggerClass) float64 {
	switch class {
	case selection.ClassKeyword:
		return w.Keyword
	case selection.ClassFileType:
		return w.FileType
	case selection.ClassDirectory:
		return w.Directory
	}
	return 0
}

type accumulator struct {
	skill   *selection.Skill
	counts  map[selection.TriggerClass]int
	seen    map[string]bool
	reasons []selection.MatchReason
}

// Match evaluates every trigger class against the context and returns a
// deduplicated map from skill id to candidate. A predicate counts once per
// skill no matter how many files or directories it hit.
func Match(snap *registry.Snapshot, reqCtx selection.Context, weights Weights) map[string]*selection.Candidate {
	acc := make(map[string]*accumulator)

	record := func(class selection.TriggerClass, hits []registry.PatternHit) {
		for _, hit := range hits {
			for _, id := range hit.IDs {
				a, ok := acc[id]
				if !ok {
					skill, err := snap.Get(id)
					if err != nil {
						continue
					}
					a = &accumulator{
						skill:  skill,
						counts: make(map[selection.TriggerClass]int),
						seen:   make(map[string]bool),
					}
					acc[id] = a
				}
				key := string(class) + "\x00" + hit.Pattern
				if a.seen[key] {
					continue
				}
				a.seen[key] = true
				a.counts[class]++
				a.reasons = append(a.reasons, selection.MatchReason{Class: class, Pattern: hit.Pattern})
			}
		}
	}

	record(selection.ClassKeyword, snap.MatchQuery(strings.ToLower(reqCtx.QueryText)))
	for _, path := range reqCtx.OpenFiles {
		record(selection.ClassFileType, snap.MatchFile(path))
	}
	for _, path := range reqCtx.ActiveDirectories {
		record(selection.ClassDirectory, snap.MatchDirectory(path))
	}

	candidates := make(map[string]*selection.Candidate, len(acc))
	for id, a := range acc {
		candidates[id] = &selection.Candidate{
			Skill:   a.skill,
			Score:   score(a.counts, weights),
			Reasons: a.reasons,
		}
	}
	return candidates
}

func score(counts map[selection.TriggerClass]int, weights Weights) float64 {
	total := 0.0
	for class, count := range counts {
		if weights.ClassCap > 0 && count > weights.ClassCap {
			count = weights.ClassCap
		}
		total += weights.class(class) * float64(count)
	}
	return total
}
