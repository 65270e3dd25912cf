package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipts-agent/constants"
)

func TestQualifies(t *testing.T) {
	w := &watcher{cfg: Config{AllowedExts: constants.AllowedExtensions}}

	tests := []struct {
		path string
		want bool
	}{
		{"/img/receipt.jpg", true},
		{"/img/receipt.JPG", true},
		{"/img/receipt.jpeg", true},
		{"/img/receipt.png", true},
		{"/img/~receipt.jpg", false}, // transient marker
		{"/img/.receipt.jpg", false}, // hidden
		{"/img/receipt.txt", false},
		{"/img/receipt", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, w.qualifies(tt.path), "path %q", tt.path)
	}
}

func TestWatcherEmitsOncePerArrival(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	evCh, _, err := StartWatcher(ctx, Config{Dir: dir, SettleDelay: 500 * time.Millisecond}, nil)
	require.NoError(t, err)

	// One physical arrival fires create + write; the settle delay and the
	// seen-set must collapse them into a single emission.
	path := filepath.Join(dir, "receipt.jpg")
	require.NoError(t, os.WriteFile(path, []byte("image-bytes"), 0o644))

	select {
	case got := <-evCh:
		assert.Equal(t, path, got)
	case <-time.After(5 * time.Second):
		t.Fatal("expected an emission for the new file")
	}

	select {
	case got := <-evCh:
		t.Fatalf("unexpected second emission: %s", got)
	case <-time.After(1 * time.Second):
	}
}

func TestWatcherIgnoresTransientAndForeignFiles(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	evCh, _, err := StartWatcher(ctx, Config{Dir: dir, SettleDelay: 500 * time.Millisecond}, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "~partial.jpg"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.jpg"), 0o755)) // directory with image suffix

	// A qualifying file afterwards proves the watcher is alive and that the
	// rejected paths were dropped, not merely delayed.
	accepted := filepath.Join(dir, "good.jpg")
	require.NoError(t, os.WriteFile(accepted, []byte("image-bytes"), 0o644))

	select {
	case got := <-evCh:
		assert.Equal(t, accepted, got)
	case <-time.After(5 * time.Second):
		t.Fatal("expected an emission for the qualifying file")
	}

	select {
	case got := <-evCh:
		t.Fatalf("unexpected emission: %s", got)
	case <-time.After(700 * time.Millisecond):
	}
}

func TestWatcherChannelsCloseOnCancel(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())

	evCh, errCh, err := StartWatcher(ctx, Config{Dir: dir}, nil)
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-evCh:
		assert.False(t, ok, "event channel should close")
	case <-time.After(2 * time.Second):
		t.Fatal("event channel did not close after cancel")
	}
	select {
	case _, ok := <-errCh:
		assert.False(t, ok, "error channel should close")
	case <-time.After(2 * time.Second):
		t.Fatal("error channel did not close after cancel")
	}
}
