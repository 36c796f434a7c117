package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSkill(t *testing.T, dir, name, content string) {
	t.Helper()
	skillDir := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(skillDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte(content), 0o644))
}

func TestNewDirSource(t *testing.T) {
	t.Run("with default dirs", func(t *testing.T) {
		source, err := NewDirSource()
		require.NoError(t, err)
		assert.Len(t, source.Dirs(), 2)
	})

	t.Run("with custom dirs", func(t *testing.T) {
		source, err := NewDirSource(WithDirs("/tmp/skills"))
		require.NoError(t, err)
		assert.Equal(t, []string{"/tmp/skills"}, source.Dirs())
	})

	t.Run("empty custom dirs", func(t *testing.T) {
		_, err := NewDirSource(WithDirs())
		assert.Error(t, err)
	})
}

func TestDirSourceRecords(t *testing.T) {
	tmpDir := t.TempDir()

	writeSkill(t, tmpDir, "redis-expert", `---
id: redis-expert
description: Redis caching patterns
tier: 3
token_cost: 5000
keywords:
  - redis
  - caching
file_types:
  - .ts
directories:
  - /cache
related:
  - cache-expert
---

# Redis Expert

Connection pooling, eviction policies, cluster topology.
`)
	writeSkill(t, tmpDir, "core-guide", `---
id: core-guide
description: Baseline conventions
tier: 1
token_cost: 1000
always_on: true
---

Always-on baseline guidance.
`)

	source, err := NewDirSource(WithDirs(tmpDir))
	require.NoError(t, err)

	records, err := source.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Records come back sorted by id.
	assert.Equal(t, "core-guide", records[0].ID)
	assert.True(t, records[0].AlwaysOn)
	assert.Equal(t, 1000, records[0].TokenCost)

	redis := records[1]
	assert.Equal(t, "redis-expert", redis.ID)
	assert.Equal(t, 3, redis.Tier)
	assert.Equal(t, 5000, redis.TokenCost)
	assert.Equal(t, []string{"redis", "caching"}, redis.Keywords)
	assert.Equal(t, []string{".ts"}, redis.FileTypes)
	assert.Equal(t, []string{"/cache"}, redis.Directories)
	assert.Equal(t, []string{"cache-expert"}, redis.Related)
	assert.Contains(t, redis.Content, "# Redis Expert")
	assert.NotContains(t, redis.Content, "token_cost")
	assert.Equal(t, filepath.Join(tmpDir, "redis-expert", "SKILL.md"), redis.Source)
}

func TestDirSourcePrecedence(t *testing.T) {
	localDir := t.TempDir()
	globalDir := t.TempDir()

	writeSkill(t, localDir, "shared", `---
id: shared
tier: 2
token_cost: 100
keywords: [local]
---
local copy
`)
	writeSkill(t, globalDir, "shared", `---
id: shared
tier: 2
token_cost: 100
keywords: [global]
---
global copy
`)

	source, err := NewDirSource(WithDirs(localDir, globalDir))
	require.NoError(t, err)

	records, err := source.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"local"}, records[0].Keywords)
}

func TestDirSourceMalformed(t *testing.T) {
	t.Run("missing frontmatter", func(t *testing.T) {
		tmpDir := t.TempDir()
		writeSkill(t, tmpDir, "broken", "# No frontmatter at all\n")

		source, err := NewDirSource(WithDirs(tmpDir))
		require.NoError(t, err)
		_, err = source.Records(context.Background())
		assert.Error(t, err)
	})

	t.Run("missing id", func(t *testing.T) {
		tmpDir := t.TempDir()
		writeSkill(t, tmpDir, "broken", `---
description: no id here
---
body
`)

		source, err := NewDirSource(WithDirs(tmpDir))
		require.NoError(t, err)
		_, err = source.Records(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "skill id is required")
	})

	t.Run("missing directory is skipped", func(t *testing.T) {
		source, err := NewDirSource(WithDirs(filepath.Join(t.TempDir(), "does-not-exist")))
		require.NoError(t, err)
		records, err := source.Records(context.Background())
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}
