// Package expander grows a direct-candidate set with each skill's declared
// companions. The related-skill lists form a directed graph that may contain
// cycles, so traversal is breadth-first with a visited set and a hard depth
// bound instead of recursion.
package expander

import (
	"sort"

	"github.com/opus67/skillctx/pkg/registry"
	"github.com/opus67/skillctx/pkg/types/selection"
)

// Config bounds the expansion walk.
type Config struct {
	// MaxDepth is how many relation hops to follow. The default of 1 pulls
	// in only direct relations of direct matches, never transitive chains.
	MaxDepth int
	// Discount scales a related skill's score relative to the skill that
	// introduced it, so companions never outrank direct matches of the
	// same tier.
	Discount float64
}

// DefaultConfig returns the documented defaults: one hop, half score.
func DefaultConfig() Config {
	return Config{MaxDepth: 1, Discount: 0.5}
}

type frontierItem struct {
	id    string
	score float64
	via   string
}

// Expand augments candidates in place with related skills up to
// cfg.MaxDepth hops away. A related skill that is already a direct match is
// not re-added; it keeps the higher of its two scores.
func Expand(snap *registry.Snapshot, candidates map[string]*selection.Candidate, cfg Config) {
	if cfg.MaxDepth <= 0 || len(candidates) == 0 {
		return
	}

	visited := make(map[string]bool, len(candidates))
	var frontier []frontierItem
	for id, cand := range candidates {
		visited[id] = true
		frontier = append(frontier, frontierItem{id: id, score: cand.Score})
	}
	// Map iteration order is random; fix it so expansion is deterministic.
	sort.Slice(frontier, func(i, j int) bool { return frontier[i].id < frontier[j].id })

	for depth := 0; depth < cfg.MaxDepth && len(frontier) > 0; depth++ {
		var next []frontierItem
		for _, item := range frontier {
			skill, err := snap.Get(item.id)
			if err != nil {
				continue
			}
			for _, relatedID := range skill.Related {
				related, err := snap.Get(relatedID)
				if err != nil {
					// Dangling relations are rejected at load time; an id
					// missing here means a stale candidate, skip it.
					continue
				}

				score := item.score * cfg.Discount
				if existing, ok := candidates[relatedID]; ok {
					if score > existing.Score {
						existing.Score = score
					}
					existing.Reasons = append(existing.Reasons,
						selection.MatchReason{Class: selection.ClassRelated, Via: item.id})
					if !visited[relatedID] {
						visited[relatedID] = true
						next = append(next, frontierItem{id: relatedID, score: existing.Score, via: item.id})
					}
					continue
				}

				candidates[relatedID] = &selection.Candidate{
					Skill: related,
					Score: score,
					Reasons: []selection.MatchReason{
						{Class: selection.ClassRelated, Via: item.id},
					},
				}
				visited[relatedID] = true
				next = append(next, frontierItem{id: relatedID, score: score, via: item.id})
			}
		}
		frontier = next
	}
}
