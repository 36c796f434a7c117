package registry

import (
	"context"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRecords() []Record {
	return []Record{
		{ID: "core-guide", Tier: 1, TokenCost: 100, AlwaysOn: true},
		{ID: "cache-expert", Tier: 2, TokenCost: 200, Keywords: []string{"cache"}, Related: []string{"redis-expert"}},
		{ID: "redis-expert", Tier: 3, TokenCost: 150, Keywords: []string{"redis"}},
	}
}

func TestLoad(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Load(context.Background(), StaticSource(validRecords())))

	snap := reg.Snapshot()
	assert.Equal(t, 3, snap.Len())
	assert.Equal(t, uint64(1), snap.Version())
	assert.False(t, snap.LoadedAt().IsZero())

	skill, err := reg.Get("cache-expert")
	require.NoError(t, err)
	assert.Equal(t, 2, skill.Tier)
	assert.Equal(t, []string{"redis-expert"}, skill.Related)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		records []Record
		want    error
	}{
		{
			name: "duplicate id",
			records: []Record{
				{ID: "a", Tier: 1, TokenCost: 10, Keywords: []string{"x"}},
				{ID: "a", Tier: 2, TokenCost: 20, Keywords: []string{"y"}},
			},
			want: &DuplicateIDError{ID: "a"},
		},
		{
			name: "dangling relation",
			records: []Record{
				{ID: "a", Tier: 1, TokenCost: 10, Keywords: []string{"x"}, Related: []string{"ghost"}},
			},
			want: &DanglingRelationError{ID: "a", Related: "ghost"},
		},
		{
			name: "empty triggers",
			records: []Record{
				{ID: "a", Tier: 1, TokenCost: 10},
			},
			want: &EmptyTriggerError{ID: "a"},
		},
		{
			name: "invalid cost",
			records: []Record{
				{ID: "a", Tier: 1, TokenCost: 0, Keywords: []string{"x"}},
			},
			want: &InvalidCostError{ID: "a", Cost: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := New()
			err := reg.Load(context.Background(), StaticSource(tt.records))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want.Error())
		})
	}
}

func TestLoadReportsEveryError(t *testing.T) {
	records := []Record{
		{ID: "a", Tier: 1, TokenCost: 0},                                        // invalid cost and empty triggers
		{ID: "b", Tier: 1, TokenCost: 10, Keywords: []string{"x"}, Related: []string{"ghost"}},
	}
	err := New().Load(context.Background(), StaticSource(records))
	require.Error(t, err)

	merr, ok := err.(*multierror.Error)
	require.True(t, ok, "expected a multierror, got %T", err)
	assert.Len(t, merr.Errors, 3)
}

func TestLoadRejectsBatchAtomically(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Load(context.Background(), StaticSource(validRecords())))

	bad := []Record{{ID: "broken", Tier: 1, TokenCost: -5, Keywords: []string{"x"}}}
	err := reg.Load(context.Background(), StaticSource(bad))
	require.Error(t, err)

	// The prior snapshot stays active and keeps its version.
	snap := reg.Snapshot()
	assert.Equal(t, 3, snap.Len())
	assert.Equal(t, uint64(1), snap.Version())
	_, err = reg.Get("cache-expert")
	assert.NoError(t, err)
}

func TestReloadBumpsVersion(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Load(context.Background(), StaticSource(validRecords())))
	require.NoError(t, reg.Reload(context.Background(), StaticSource(validRecords())))

	snap := reg.Snapshot()
	assert.Equal(t, uint64(2), snap.Version())
	assert.Equal(t, 3, snap.Len())
}

func TestGetNotFound(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Load(context.Background(), StaticSource(validRecords())))

	_, err := reg.Get("nope")
	require.Error(t, err)
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "nope", notFound.ID)
}

func TestMatchQuery(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Load(context.Background(), StaticSource([]Record{
		{ID: "redis-expert", Tier: 3, TokenCost: 100, Keywords: []string{"redis"}},
		{ID: "react-expert", Tier: 3, TokenCost: 100, Keywords: []string{"server component"}},
	})))
	snap := reg.Snapshot()

	t.Run("substring containment", func(t *testing.T) {
		hits := snap.MatchQuery("use redis caching")
		require.Len(t, hits, 1)
		assert.Equal(t, "redis", hits[0].Pattern)
		assert.Equal(t, []string{"redis-expert"}, hits[0].IDs)
	})

	t.Run("multi-word phrase", func(t *testing.T) {
		hits := snap.MatchQuery("when should i use a server component")
		require.Len(t, hits, 1)
		assert.Equal(t, "server component", hits[0].Pattern)
	})

	t.Run("no match", func(t *testing.T) {
		assert.Empty(t, snap.MatchQuery("unrelated text"))
		assert.Empty(t, snap.MatchQuery(""))
	})
}

func TestMatchFile(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Load(context.Background(), StaticSource([]Record{
		{ID: "react-expert", Tier: 3, TokenCost: 100, FileTypes: []string{".tsx", ".jsx"}},
		{ID: "test-expert", Tier: 3, TokenCost: 100, FileTypes: []string{"*.test.ts"}},
		{ID: "story-expert", Tier: 3, TokenCost: 100, FileTypes: []string{"*.Stories.TSX"}},
	})))
	snap := reg.Snapshot()

	t.Run("plain suffix", func(t *testing.T) {
		hits := snap.MatchFile("src/components/Button.tsx")
		require.Len(t, hits, 1)
		assert.Equal(t, ".tsx", hits[0].Pattern)
	})

	t.Run("glob pattern", func(t *testing.T) {
		hits := snap.MatchFile("src/api/client.test.ts")
		require.Len(t, hits, 1)
		assert.Equal(t, "*.test.ts", hits[0].Pattern)
	})

	t.Run("case insensitive", func(t *testing.T) {
		hits := snap.MatchFile("src/App.TSX")
		require.Len(t, hits, 1)
	})

	t.Run("glob pattern case insensitive", func(t *testing.T) {
		hits := snap.MatchFile("src/Button.stories.tsx")
		require.Len(t, hits, 1)
		assert.Equal(t, "*.Stories.TSX", hits[0].Pattern)
	})

	t.Run("no match", func(t *testing.T) {
		assert.Empty(t, snap.MatchFile("main.go"))
	})
}

func TestMatchDirectory(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Load(context.Background(), StaticSource([]Record{
		{ID: "cache-expert", Tier: 2, TokenCost: 100, Directories: []string{"/cache"}},
		{ID: "react-expert", Tier: 3, TokenCost: 100, Directories: []string{"components/"}},
	})))
	snap := reg.Snapshot()

	t.Run("anchored prefix", func(t *testing.T) {
		hits := snap.MatchDirectory("/cache/redis.ts")
		require.Len(t, hits, 1)
		assert.Equal(t, "/cache", hits[0].Pattern)
	})

	t.Run("component-wise not substring", func(t *testing.T) {
		assert.Empty(t, snap.MatchDirectory("/caching/x"))
	})

	t.Run("unanchored matches mid-path", func(t *testing.T) {
		hits := snap.MatchDirectory("src/components/forms")
		require.Len(t, hits, 1)
		assert.Equal(t, "components/", hits[0].Pattern)
	})

	t.Run("anchored does not match mid-path", func(t *testing.T) {
		assert.Empty(t, snap.MatchDirectory("app/cache/redis.ts"))
	})
}

func TestAlwaysOnOrdering(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Load(context.Background(), StaticSource([]Record{
		{ID: "zeta", Tier: 1, TokenCost: 10, AlwaysOn: true},
		{ID: "alpha", Tier: 1, TokenCost: 10, AlwaysOn: true},
		{ID: "first", Tier: 0, TokenCost: 10, AlwaysOn: true},
	})))

	alwaysOn := reg.Snapshot().AlwaysOn()
	require.Len(t, alwaysOn, 3)
	assert.Equal(t, "first", alwaysOn[0].ID)
	assert.Equal(t, "alpha", alwaysOn[1].ID)
	assert.Equal(t, "zeta", alwaysOn[2].ID)
}

func TestInvalidGlobPattern(t *testing.T) {
	reg := New()
	err := reg.Load(context.Background(), StaticSource([]Record{
		{ID: "bad", Tier: 1, TokenCost: 10, FileTypes: []string{"[unclosed"}},
	}))
	assert.Error(t, err)
}
