package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kimchi/internal/core/domain"
)

func TestWatcher_Watch(t *testing.T) {
	t.Run("reports created files", func(t *testing.T) {
		root := t.TempDir()
		w := NewWatcher(DefaultOptions())
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		changes, err := w.Watch(ctx, root)
		require.NoError(t, err)
		defer w.Close()

		go func() {
			time.Sleep(50 * time.Millisecond)
			_ = os.WriteFile(filepath.Join(root, "new-file.txt"), []byte("content"), 0o644)
		}()

		select {
		case change := <-changes:
			assert.Equal(t, domain.ChangeCreated, change.Type)
			assert.Equal(t, "new-file.txt", change.Path)
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for file change event")
		}
	})

	t.Run("rejects missing root", func(t *testing.T) {
		w := NewWatcher(DefaultOptions())
		_, err := w.Watch(context.Background(), "/non/existent/path")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("channel closes on cancel", func(t *testing.T) {
		root := t.TempDir()
		w := NewWatcher(DefaultOptions())
		ctx, cancel := context.WithCancel(context.Background())

		changes, err := w.Watch(ctx, root)
		require.NoError(t, err)
		cancel()

		select {
		case _, ok := <-changes:
			assert.False(t, ok)
		case <-time.After(2 * time.Second):
			t.Fatal("channel not closed after cancel")
		}
	})

	t.Run("close is idempotent", func(t *testing.T) {
		w := NewWatcher(DefaultOptions())
		assert.NoError(t, w.Close())
		assert.NoError(t, w.Close())
	})
}

func TestIsHidden(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"file.txt", false},
		{".hidden", true},
		{"dir/.swp", true},
		{".config/app.toml", true},
		{"a/b/c.go", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, isHidden(tt.path))
		})
	}
}

func TestHandleFsEvent(t *testing.T) {
	tests := []struct {
		name         string
		file         string
		create       bool
		dir          bool
		op           fsnotify.Op
		wantChange   bool
		expectedType domain.ChangeType
	}{
		{name: "create file", file: "test.txt", create: true, op: fsnotify.Create, wantChange: true, expectedType: domain.ChangeCreated},
		{name: "write file", file: "test.txt", create: true, op: fsnotify.Write, wantChange: true, expectedType: domain.ChangeUpdated},
		{name: "write with chmod", file: "test.txt", create: true, op: fsnotify.Write | fsnotify.Chmod, wantChange: true, expectedType: domain.ChangeUpdated},
		{name: "remove file", file: "removed.txt", op: fsnotify.Remove, wantChange: true, expectedType: domain.ChangeDeleted},
		{name: "rename file", file: "moved.txt", op: fsnotify.Rename, wantChange: true, expectedType: domain.ChangeDeleted},
		{name: "chmod only", file: "test.txt", create: true, op: fsnotify.Chmod},
		{name: "directory create", file: "testdir", dir: true, op: fsnotify.Create},
		{name: "hidden file", file: ".hidden.txt", create: true, op: fsnotify.Create},
		{name: "excluded extension", file: "logo.png", create: true, op: fsnotify.Write},
		{name: "inside excluded directory", file: "node_modules/x.js", op: fsnotify.Remove},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			eventPath := filepath.Join(root, filepath.FromSlash(tt.file))
			switch {
			case tt.dir:
				require.NoError(t, os.Mkdir(eventPath, 0o755))
			case tt.create:
				require.NoError(t, os.WriteFile(eventPath, []byte("content"), 0o644))
			}

			w := NewWatcher(DefaultOptions())
			w.root = root

			change := w.handleFsEvent(fsnotify.Event{Name: eventPath, Op: tt.op})

			if !tt.wantChange {
				assert.Nil(t, change)
				return
			}
			require.NotNil(t, change)
			assert.Equal(t, tt.expectedType, change.Type)
			assert.Equal(t, filepath.ToSlash(tt.file), change.Path)
		})
	}
}
