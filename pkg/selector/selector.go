// Package selector packs the candidate pool into the request budget.
// Ordering is total and deterministic; the greedy fill is a best-fit
// heuristic chosen for predictable O(n log n) behavior, not an exact
// knapsack solve.
package selector

import (
	"fmt"
	"sort"
	"strings"

	"github.com/opus67/skillctx/pkg/registry"
	"github.com/opus67/skillctx/pkg/types/selection"
)

// BudgetExhaustedError reports that the reserved cost of the always-on
// skills alone exceeds the request budget. The offenders are named rather
// than silently dropped.
type BudgetExhaustedError struct {
	SkillIDs []string
	Reserved int
	Budget   int
}

func (e *BudgetExhaustedError) Error() string {
	return fmt.Sprintf("always-on skills [%s] reserve %d tokens, exceeding budget %d",
		strings.Join(e.SkillIDs, ", "), e.Reserved, e.Budget)
}

// Select chooses the subset of candidates that fits the context budget.
// Always-on skills are inserted first with their cost reserved up front;
// the rest are taken greedily in (tier, score desc, cost, id) order,
// skipping candidates that would overflow so smaller later ones still get
// considered.
func Select(snap *registry.Snapshot, candidates map[string]*selection.Candidate, reqCtx selection.Context) (*selection.Selection, error) {
	budget := reqCtx.EffectiveBudget()

	alwaysOn := snap.AlwaysOn()
	reserved := 0
	for _, skill := range alwaysOn {
		reserved += skill.TokenCost
	}
	if reserved > budget {
		ids := make([]string, 0, len(alwaysOn))
		for _, skill := range alwaysOn {
			ids = append(ids, skill.ID)
		}
		return nil, &BudgetExhaustedError{SkillIDs: ids, Reserved: reserved, Budget: budget}
	}

	sel := &selection.Selection{Budget: budget, TotalCost: reserved}
	taken := make(map[string]bool, len(alwaysOn))
	for _, skill := range alwaysOn {
		sel.SkillIDs = append(sel.SkillIDs, skill.ID)
		taken[skill.ID] = true
	}

	ordered := make([]*selection.Candidate, 0, len(candidates))
	for id, cand := range candidates {
		if taken[id] {
			continue
		}
		ordered = append(ordered, cand)
	}
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Skill.Tier != b.Skill.Tier {
			return a.Skill.Tier < b.Skill.Tier
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Skill.TokenCost != b.Skill.TokenCost {
			return a.Skill.TokenCost < b.Skill.TokenCost
		}
		return a.Skill.ID < b.Skill.ID
	})

	for _, cand := range ordered {
		// A zero score means no weighted predicate actually fired for the
		// candidate (zero class weights, or a fully discounted relation);
		// report it instead of silently loading it.
		if cand.Score <= 0 {
			sel.Rejected = append(sel.Rejected, selection.RejectedCandidate{
				ID:     cand.Skill.ID,
				Score:  cand.Score,
				Reason: selection.RejectNotMatched,
			})
			continue
		}
		if sel.TotalCost+cand.Skill.TokenCost > budget {
			sel.Rejected = append(sel.Rejected, selection.RejectedCandidate{
				ID:     cand.Skill.ID,
				Score:  cand.Score,
				Reason: selection.RejectOverBudget,
			})
			continue
		}
		sel.SkillIDs = append(sel.SkillIDs, cand.Skill.ID)
		sel.TotalCost += cand.Skill.TokenCost
	}

	return sel, nil
}
