package prompt

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSetNotifiesOnChangeOnly(t *testing.T) {
	s := New("", nil)
	var got []string
	s.OnChange(func(text string) { got = append(got, text) })

	s.Set("  be concise ")
	s.Set("be concise")
	s.Set("")

	assert.Equal(t, []string{"be concise", ""}, got)
	assert.Equal(t, "", s.Get())
}

func TestLoadMissingFileClearsPrompt(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "prompt.txt"), nil)
	s.Set("old")

	require.NoError(t, s.Load())
	assert.Empty(t, s.Get())
}

func TestWatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("first\n"), 0o644))

	s := New(path, nil)
	changes := make(chan string, 8)
	s.OnChange(func(text string) { changes <- text })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx) }()

	select {
	case text := <-changes:
		assert.Equal(t, "first", text)
	case <-time.After(5 * time.Second):
		t.Fatal("initial load not observed")
	}

	// the watcher may not be registered yet, so keep writing until seen
	deadline := time.After(5 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for seen := false; !seen; {
		select {
		case <-ticker.C:
			require.NoError(t, os.WriteFile(path, []byte("second"), 0o644))
		case text := <-changes:
			seen = text == "second"
		case <-deadline:
			t.Fatal("reload not observed")
		}
	}

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, "second", s.Get())
}

func TestWatchWithoutPathBlocksUntilDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, New("", nil).Watch(ctx))
}
