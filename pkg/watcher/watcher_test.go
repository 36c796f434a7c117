package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opus67/skillctx/pkg/engine"
	"github.com/opus67/skillctx/pkg/registry"
)

const skillDoc = `---
id: caching
description: Cache tuning guidance
tier: 2
token_cost: 200
keywords:
  - cache
---
Prefer read-through caches.
`

func TestNewRequiresDirs(t *testing.T) {
	eng := engine.New()
	_, err := New(eng, registry.StaticSource(nil), nil, 0)
	assert.Error(t, err)
}

func TestNewDefaultsDebounce(t *testing.T) {
	eng := engine.New()
	w, err := New(eng, registry.StaticSource(nil), []string{t.TempDir()}, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultDebounce, w.debounce)
}

func TestRunFailsWithoutWatchableDirs(t *testing.T) {
	eng := engine.New()
	w, err := New(eng, registry.StaticSource(nil), []string{filepath.Join(t.TempDir(), "missing")}, time.Millisecond)
	require.NoError(t, err)
	assert.Error(t, w.Run(context.Background()))
}

func TestRunStopsOnContextCancel(t *testing.T) {
	eng := engine.New()
	w, err := New(eng, registry.StaticSource(nil), []string{t.TempDir()}, time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop after context cancellation")
	}
}

func TestRunReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	source, err := registry.NewDirSource(registry.WithDirs(dir))
	require.NoError(t, err)

	eng := engine.New()
	require.NoError(t, eng.Load(context.Background(), source))
	require.Equal(t, 0, eng.Stats().SkillCount)

	watch, err := New(eng, source, []string{dir}, 10*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- watch.Run(ctx) }()

	// Give the watch a moment to attach before producing the event.
	time.Sleep(100 * time.Millisecond)
	skillDir := filepath.Join(dir, "caching")
	require.NoError(t, os.MkdirAll(skillDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte(skillDoc), 0o644))

	require.Eventually(t, func() bool {
		return eng.Stats().SkillCount == 1
	}, 5*time.Second, 20*time.Millisecond, "expected the new skill to be picked up")

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop after context cancellation")
	}
}
