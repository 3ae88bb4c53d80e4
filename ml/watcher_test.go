package ml

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/require"
)

func TestWatchArtifactReportsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan fsnotify.Event, 4)
	require.NoError(t, WatchArtifact(ctx, path, nil, func(event fsnotify.Event) {
		select {
		case changed <- event:
		default:
		}
	}))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte("{}"), 0o600))
	require.NoError(t, os.WriteFile(path, []byte(`{"version":"2"}`), 0o600))

	select {
	case event := <-changed:
		require.Equal(t, filepath.Clean(path), filepath.Clean(event.Name))
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestWatchArtifactMissingDir(t *testing.T) {
	err := WatchArtifact(context.Background(), filepath.Join(t.TempDir(), "nope", "model.json"), nil, nil)
	require.Error(t, err)
}
