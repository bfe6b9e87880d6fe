package ops

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuntimeUpdate(t *testing.T) {
	r := NewRuntime(Default())

	r.Update(func(l *Loaded) {
		l.Tick = 42 * time.Millisecond
	})
	assert.Equal(t, 42*time.Millisecond, r.Load().Tick)

	// concurrent mutations all land
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Update(func(l *Loaded) {
				l.Submit.MaxRetries++
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, Default().Submit.MaxRetries+16, r.Load().Submit.MaxRetries)
}

func TestWatchReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"strategy": [{"symbol": "BTC"}], "engine": {"tickIntervalMs": 100}}`), 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	r := NewRuntime(loaded)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, path, 10*time.Millisecond, r)

	// mod time granularity can be coarse, force it forward
	require.NoError(t, os.WriteFile(path, []byte(`{"strategy": [{"symbol": "BTC"}], "engine": {"tickIntervalMs": 250}}`), 0o644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	require.Eventually(t, func() bool {
		return r.Load().Tick == 250*time.Millisecond
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatchKeepsConfigOnBadReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"strategy": [{"symbol": "BTC"}]}`), 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	r := NewRuntime(loaded)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, path, 10*time.Millisecond, r)

	require.NoError(t, os.WriteFile(path, []byte(`{broken`), 0o644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	time.Sleep(100 * time.Millisecond)
	assert.Len(t, r.Load().Strategy, 1)
}
