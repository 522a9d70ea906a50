package plugins

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aetherd/internal/config"
)

func TestWatch_DetectsInstallAndRemove(t *testing.T) {
	root := t.TempDir()
	registry := NewRegistry(root)

	installed := make(chan string, 1)
	removed := make(chan string, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watchDone := make(chan error, 1)
	go func() {
		watchDone <- registry.Watch(ctx, WatchFuncs{
			OnInstalled: func(dirName string) { installed <- dirName },
			OnRemoved:   func(dirName string) { removed <- dirName },
		})
	}()

	// Give the watcher a moment to attach
	time.Sleep(100 * time.Millisecond)

	dir := filepath.Join(root, "weather")
	require.NoError(t, os.Mkdir(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ManifestName), []byte(`{"name": "weather"}`), 0o644))

	select {
	case name := <-installed:
		assert.Equal(t, "weather", name)
	case <-time.After(5 * time.Second):
		t.Fatal("Expected OnInstalled callback for new plugin directory")
	}

	require.NoError(t, os.RemoveAll(dir))

	select {
	case name := <-removed:
		assert.Equal(t, "weather", name)
	case <-time.After(5 * time.Second):
		t.Fatal("Expected OnRemoved callback for deleted plugin directory")
	}

	cancel()
	select {
	case err := <-watchDone:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after context cancellation")
	}
}

func TestWatch_IgnoresDirectoriesWithoutManifest(t *testing.T) {
	root := t.TempDir()
	registry := NewRegistry(root)

	installed := make(chan string, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = registry.Watch(ctx, WatchFuncs{
			OnInstalled: func(dirName string) { installed <- dirName },
		})
	}()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.Mkdir(filepath.Join(root, "scratch"), 0o755))

	select {
	case name := <-installed:
		t.Fatalf("Unexpected OnInstalled for %s", name)
	case <-time.After(1500 * time.Millisecond):
		// No callback: directory has no manifest
	}
}
