package config

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

const watcherDoc = `
kind: TracingService
name: tracing
service: zipkin:9411
driver: zipkin
ambassador_id: 015-tracing
`

const watcherDocUpdated = `
kind: TracingService
name: tracing
service: zipkin:9412
driver: zipkin
ambassador_id: 015-tracing
`

const watcherDocInvalid = `
kind: TracingService
name: tracing
service: zipkin:9411
driver: jaeger
ambassador_id: 015-tracing
`

// reloadRecorder collects reload callback invocations.
type reloadRecorder struct {
	mu    sync.Mutex
	calls [][]*TracingService
}

func (r *reloadRecorder) callback(docs []*TracingService) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, docs)
}

func (r *reloadRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *reloadRecorder) last() []*TracingService {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return nil
	}
	return r.calls[len(r.calls)-1]
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()

	configPath := filepath.Join(t.TempDir(), "tracing.yaml")
	writeConfig(t, configPath, watcherDoc)

	rec := &reloadRecorder{}
	watcher, err := NewWatcher(configPath, rec.callback)
	require.NoError(t, err)

	require.NoError(t, watcher.Start(context.Background()))
	defer func() { _ = watcher.Stop() }()

	require.Equal(t, 1, rec.count())
	docs := rec.last()
	require.Len(t, docs, 1)
	assert.Equal(t, "zipkin:9411", docs[0].Service)
	assert.Len(t, watcher.LastDocuments(), 1)
}

func TestWatcher_InitialLoadFails(t *testing.T) {
	t.Parallel()

	configPath := filepath.Join(t.TempDir(), "tracing.yaml")
	writeConfig(t, configPath, watcherDocInvalid)

	watcher, err := NewWatcher(configPath, nil)
	require.NoError(t, err)

	err = watcher.Start(context.Background())
	assert.Error(t, err)
}

func TestWatcher_ReloadOnChange(t *testing.T) {
	t.Parallel()

	configPath := filepath.Join(t.TempDir(), "tracing.yaml")
	writeConfig(t, configPath, watcherDoc)

	rec := &reloadRecorder{}
	watcher, err := NewWatcher(configPath, rec.callback,
		WithDebounceDelay(20*time.Millisecond),
	)
	require.NoError(t, err)

	require.NoError(t, watcher.Start(context.Background()))
	defer func() { _ = watcher.Stop() }()

	writeConfig(t, configPath, watcherDocUpdated)

	require.Eventually(t, func() bool {
		return rec.count() >= 2
	}, 2*time.Second, 10*time.Millisecond)

	docs := rec.last()
	require.Len(t, docs, 1)
	assert.Equal(t, "zipkin:9412", docs[0].Service)
}

func TestWatcher_RejectedReloadKeepsPrevious(t *testing.T) {
	t.Parallel()

	configPath := filepath.Join(t.TempDir(), "tracing.yaml")
	writeConfig(t, configPath, watcherDoc)

	rec := &reloadRecorder{}
	errCh := make(chan error, 4)
	watcher, err := NewWatcher(configPath, rec.callback,
		WithDebounceDelay(20*time.Millisecond),
		WithErrorCallback(func(err error) { errCh <- err }),
	)
	require.NoError(t, err)

	require.NoError(t, watcher.Start(context.Background()))
	defer func() { _ = watcher.Stop() }()

	writeConfig(t, configPath, watcherDocInvalid)

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("error callback was not invoked for invalid config")
	}

	// Last good documents are still served.
	assert.Equal(t, 1, rec.count())
	docs := watcher.LastDocuments()
	require.Len(t, docs, 1)
	assert.Equal(t, "zipkin:9411", docs[0].Service)
}

func TestWatcher_ForceReload(t *testing.T) {
	t.Parallel()

	configPath := filepath.Join(t.TempDir(), "tracing.yaml")
	writeConfig(t, configPath, watcherDoc)

	rec := &reloadRecorder{}
	watcher, err := NewWatcher(configPath, rec.callback,
		WithDebounceDelay(time.Hour), // suppress event-driven reloads
	)
	require.NoError(t, err)

	require.NoError(t, watcher.Start(context.Background()))
	defer func() { _ = watcher.Stop() }()

	writeConfig(t, configPath, watcherDocUpdated)

	require.NoError(t, watcher.ForceReload())
	require.Equal(t, 2, rec.count())
	assert.Equal(t, "zipkin:9412", rec.last()[0].Service)

	writeConfig(t, configPath, watcherDocInvalid)
	assert.Error(t, watcher.ForceReload())
	assert.Equal(t, 2, rec.count())
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	t.Parallel()

	configPath := filepath.Join(t.TempDir(), "tracing.yaml")
	writeConfig(t, configPath, watcherDoc)

	watcher, err := NewWatcher(configPath, nil)
	require.NoError(t, err)
	require.NoError(t, watcher.Start(context.Background()))

	assert.NoError(t, watcher.Stop())
	assert.NoError(t, watcher.Stop())
}
