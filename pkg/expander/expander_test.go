package expander

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opus67/skillctx/pkg/registry"
	"github.com/opus67/skillctx/pkg/types/selection"
)

func snapshot(t *testing.T, records []registry.Record) *registry.Snapshot {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.Load(context.Background(), registry.StaticSource(records)))
	return reg.Snapshot()
}

func direct(t *testing.T, snap *registry.Snapshot, id string, score float64) map[string]*selection.Candidate {
	t.Helper()
	skill, err := snap.Get(id)
	require.NoError(t, err)
	return map[string]*selection.Candidate{
		id: {Skill: skill, Score: score, Reasons: []selection.MatchReason{{Class: selection.ClassKeyword, Pattern: "x"}}},
	}
}

func TestExpandOneHop(t *testing.T) {
	snap := snapshot(t, []registry.Record{
		{ID: "a", Tier: 2, TokenCost: 100, Keywords: []string{"x"}, Related: []string{"b"}},
		{ID: "b", Tier: 3, TokenCost: 100, Keywords: []string{"y"}, Related: []string{"c"}},
		{ID: "c", Tier: 3, TokenCost: 100, Keywords: []string{"z"}},
	})

	candidates := direct(t, snap, "a", 6)
	Expand(snap, candidates, DefaultConfig())

	// One hop: b joins at half of a's score, c stays out.
	require.Len(t, candidates, 2)
	b := candidates["b"]
	require.NotNil(t, b)
	assert.Equal(t, 3.0, b.Score)
	require.Len(t, b.Reasons, 1)
	assert.Equal(t, selection.ClassRelated, b.Reasons[0].Class)
	assert.Equal(t, "a", b.Reasons[0].Via)
	assert.Nil(t, candidates["c"])
}

func TestExpandTwoHops(t *testing.T) {
	snap := snapshot(t, []registry.Record{
		{ID: "a", Tier: 2, TokenCost: 100, Keywords: []string{"x"}, Related: []string{"b"}},
		{ID: "b", Tier: 3, TokenCost: 100, Keywords: []string{"y"}, Related: []string{"c"}},
		{ID: "c", Tier: 3, TokenCost: 100, Keywords: []string{"z"}},
	})

	candidates := direct(t, snap, "a", 8)
	Expand(snap, candidates, Config{MaxDepth: 2, Discount: 0.5})

	require.Len(t, candidates, 3)
	assert.Equal(t, 4.0, candidates["b"].Score)
	assert.Equal(t, 2.0, candidates["c"].Score)
	assert.Equal(t, "b", candidates["c"].Reasons[0].Via)
}

func TestExpandCycleSafe(t *testing.T) {
	snap := snapshot(t, []registry.Record{
		{ID: "a", Tier: 2, TokenCost: 100, Keywords: []string{"x"}, Related: []string{"b"}},
		{ID: "b", Tier: 3, TokenCost: 100, Keywords: []string{"y"}, Related: []string{"a"}},
	})

	candidates := direct(t, snap, "a", 6)
	Expand(snap, candidates, Config{MaxDepth: 5, Discount: 0.5})

	// The a<->b cycle terminates; a keeps its direct score.
	require.Len(t, candidates, 2)
	assert.Equal(t, 6.0, candidates["a"].Score)
	assert.Equal(t, 3.0, candidates["b"].Score)
}

func TestExpandAlreadyDirectKeepsMaxScore(t *testing.T) {
	snap := snapshot(t, []registry.Record{
		{ID: "a", Tier: 2, TokenCost: 100, Keywords: []string{"x"}, Related: []string{"b"}},
		{ID: "b", Tier: 3, TokenCost: 100, Keywords: []string{"y"}},
	})

	t.Run("direct score wins", func(t *testing.T) {
		candidates := direct(t, snap, "a", 6)
		skillB, err := snap.Get("b")
		require.NoError(t, err)
		candidates["b"] = &selection.Candidate{Skill: skillB, Score: 5}

		Expand(snap, candidates, DefaultConfig())
		assert.Equal(t, 5.0, candidates["b"].Score)
	})

	t.Run("related derivation wins", func(t *testing.T) {
		candidates := direct(t, snap, "a", 20)
		skillB, err := snap.Get("b")
		require.NoError(t, err)
		candidates["b"] = &selection.Candidate{Skill: skillB, Score: 5}

		Expand(snap, candidates, DefaultConfig())
		assert.Equal(t, 10.0, candidates["b"].Score)
	})

	t.Run("related reason merged onto direct candidate", func(t *testing.T) {
		candidates := direct(t, snap, "a", 6)
		skillB, err := snap.Get("b")
		require.NoError(t, err)
		candidates["b"] = &selection.Candidate{
			Skill:   skillB,
			Score:   5,
			Reasons: []selection.MatchReason{{Class: selection.ClassKeyword, Pattern: "y"}},
		}

		Expand(snap, candidates, DefaultConfig())
		require.Len(t, candidates["b"].Reasons, 2)
		assert.Equal(t, selection.ClassKeyword, candidates["b"].Reasons[0].Class)
		assert.Equal(t, selection.ClassRelated, candidates["b"].Reasons[1].Class)
		assert.Equal(t, "a", candidates["b"].Reasons[1].Via)
	})
}

func TestExpandZeroDepth(t *testing.T) {
	snap := snapshot(t, []registry.Record{
		{ID: "a", Tier: 2, TokenCost: 100, Keywords: []string{"x"}, Related: []string{"b"}},
		{ID: "b", Tier: 3, TokenCost: 100, Keywords: []string{"y"}},
	})

	candidates := direct(t, snap, "a", 6)
	Expand(snap, candidates, Config{MaxDepth: 0, Discount: 0.5})
	assert.Len(t, candidates, 1)
}
