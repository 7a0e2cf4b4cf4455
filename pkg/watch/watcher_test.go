package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/symreach/pkg/analyzer/deadcode"
	"github.com/panbanda/symreach/pkg/config"
	"github.com/panbanda/symreach/pkg/manifest"
	"github.com/panbanda/symreach/pkg/symgraph"
)

const mainManifest = `{
  "version": 1,
  "files": [{
    "path": "Sources/main.swift",
    "symbols": [{"name": "run", "kind": "function", "line": 1}],
    "references": [{"name": "Helper", "line": 2, "scope": "run"}]
  }]
}`

const helperManifest = `{
  "version": 1,
  "files": [{
    "path": "Sources/Helper.swift",
    "symbols": [
      {"name": "Helper", "kind": "class", "line": 1},
      {"name": "Orphan", "kind": "class", "accessibility": "private", "line": 10}
    ]
  }]
}`

const helperOnlyManifest = `{
  "version": 1,
  "files": [{
    "path": "Sources/Helper.swift",
    "symbols": [{"name": "Helper", "kind": "class", "line": 1}]
  }]
}`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func deadNames(res *deadcode.Result) []string {
	var names []string
	for _, d := range res.DeadSymbols {
		names = append(names, d.Symbol.Name)
	}
	return names
}

func newSession(t *testing.T, paths ...string) *Session {
	t.Helper()
	loaded, err := manifest.LoadFiles(context.Background(), paths, manifest.LoadOptions{})
	require.NoError(t, err)

	g := symgraph.New()
	g.Build(manifest.Files(loaded))
	s := NewSession(g, deadcode.PolicyForMode(deadcode.ModeExecutable))
	s.Seed(loaded)
	return s
}

func TestSession_ReloadAndRemove(t *testing.T) {
	dir := t.TempDir()
	mainPath := filepath.Join(dir, "main.symbols.json")
	helperPath := filepath.Join(dir, "helper.symbols.json")
	writeFile(t, mainPath, mainManifest)
	writeFile(t, helperPath, helperManifest)

	s := newSession(t, mainPath, helperPath)
	assert.Equal(t, []string{helperPath, mainPath}, s.Manifests())

	res, err := s.Analyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Orphan"}, deadNames(res))

	writeFile(t, helperPath, helperOnlyManifest)
	up, err := s.Apply(context.Background(), []Event{{Path: helperPath}})
	require.NoError(t, err)
	assert.Equal(t, []string{helperPath}, up.Reloaded)
	assert.Equal(t, []string{"Sources/Helper.swift"}, up.Files)
	assert.Empty(t, deadNames(up.Result))
	assert.Empty(t, s.Graph().SymbolsNamed("Orphan"))

	up, err = s.Apply(context.Background(), []Event{{Path: mainPath, Removed: true}})
	require.NoError(t, err)
	assert.Equal(t, []string{mainPath}, up.Removed)
	require.Len(t, up.Result.DeadSymbols, 1)
	assert.Equal(t, "Helper", up.Result.DeadSymbols[0].Symbol.Name)
	assert.Equal(t, deadcode.ConfidenceMedium, up.Result.DeadSymbols[0].Confidence)
	assert.Equal(t, []string{helperPath}, s.Manifests())
}

func TestSession_DroppedSourceFileIsPurged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "all.symbols.json")
	writeFile(t, path, `{"version": 1, "files": [
	  {"path": "A.swift", "symbols": [{"name": "A", "kind": "struct", "line": 1}]},
	  {"path": "B.swift", "symbols": [{"name": "B", "kind": "struct", "line": 1}]}
	]}`)
	s := newSession(t, path)
	require.Len(t, s.Graph().SymbolsInFile("B.swift"), 1)

	writeFile(t, path, `{"version": 1, "files": [
	  {"path": "A.swift", "symbols": [{"name": "A", "kind": "struct", "line": 1}]}
	]}`)
	up, err := s.Apply(context.Background(), []Event{{Path: path}})
	require.NoError(t, err)
	assert.Equal(t, []string{"A.swift", "B.swift"}, up.Files)
	assert.Empty(t, s.Graph().SymbolsInFile("B.swift"))
	assert.Equal(t, []string{"A"}, deadNames(up.Result))
}

func TestSession_FailedReloadKeepsPreviousContents(t *testing.T) {
	dir := t.TempDir()
	mainPath := filepath.Join(dir, "main.symbols.json")
	helperPath := filepath.Join(dir, "helper.symbols.json")
	writeFile(t, mainPath, mainManifest)
	writeFile(t, helperPath, helperManifest)
	s := newSession(t, mainPath, helperPath)

	writeFile(t, helperPath, `{"version": 1, "files": [{"path": ""}]}`)
	up, err := s.Apply(context.Background(), []Event{{Path: helperPath}})
	require.NoError(t, err)
	require.Contains(t, up.Failed, helperPath)
	assert.Empty(t, up.Reloaded)
	assert.Equal(t, []string{"Orphan"}, deadNames(up.Result))
}

type stubResolver struct {
	mu    sync.Mutex
	files []string
}

func (r *stubResolver) ResolveBatch(_ context.Context, file string, _ []symgraph.Query) (map[symgraph.Query]symgraph.Resolution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = append(r.files, file)
	return nil, nil
}

func TestSession_EnhancesChangedFiles(t *testing.T) {
	dir := t.TempDir()
	mainPath := filepath.Join(dir, "main.symbols.json")
	writeFile(t, mainPath, mainManifest)

	loaded, err := manifest.LoadFiles(context.Background(), []string{mainPath}, manifest.LoadOptions{})
	require.NoError(t, err)
	g := symgraph.New()
	g.Build(manifest.Files(loaded))

	r := &stubResolver{}
	s := NewSession(g, deadcode.PolicyForMode(deadcode.ModeExecutable), WithResolver(r, symgraph.EnhanceOptions{}))
	s.Seed(loaded)

	_, err = s.Apply(context.Background(), []Event{{Path: mainPath}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Sources/main.swift"}, r.files)
}

func TestSession_Cancelled(t *testing.T) {
	dir := t.TempDir()
	mainPath := filepath.Join(dir, "main.symbols.json")
	writeFile(t, mainPath, mainManifest)
	s := newSession(t, mainPath)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Apply(ctx, []Event{{Path: mainPath}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewWatcher_Defaults(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), nil, 0, nil)
	require.NoError(t, err)
	defer w.Stop()

	assert.Equal(t, DefaultDebounce, w.debounce)
	assert.NotNil(t, w.config)
	assert.NotNil(t, w.pending)
}

func TestWatcher_HandleEvent(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir, config.DefaultConfig(), time.Second, nil)
	require.NoError(t, err)
	defer w.Stop()

	manifestPath := filepath.Join(dir, "a.symbols.json")
	w.handleEvent(fsnotify.Event{Name: manifestPath, Op: fsnotify.Write})
	w.handleEvent(fsnotify.Event{Name: filepath.Join(dir, "notes.txt"), Op: fsnotify.Write})
	w.handleEvent(fsnotify.Event{Name: filepath.Join(dir, ".build", "x.symbols.json"), Op: fsnotify.Write})
	w.handleEvent(fsnotify.Event{Name: filepath.Join(dir, "b.symbols.yaml"), Op: fsnotify.Chmod})
	w.handleEvent(fsnotify.Event{Name: filepath.Join(dir, "gone.symbols.json"), Op: fsnotify.Remove})

	assert.Len(t, w.pending, 2)
	assert.Empty(t, w.ready(time.Now()), "changes inside the debounce window are held")

	events := w.ready(time.Now().Add(2 * time.Second))
	assert.Equal(t, []Event{
		{Path: manifestPath},
		{Path: filepath.Join(dir, "gone.symbols.json"), Removed: true},
	}, events)
	assert.Empty(t, w.pending)
}

func TestWatcher_RenameThenRecreateIsWrite(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir, config.DefaultConfig(), time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Stop()

	path := filepath.Join(dir, "a.symbols.json")
	w.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Rename})
	writeFile(t, path, mainManifest)

	events := w.ready(time.Now().Add(time.Second))
	assert.Equal(t, []Event{{Path: path}}, events)
}

func TestWatcher_NewDirectoryIsWatched(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir, config.DefaultConfig(), time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Stop()
	require.NoError(t, w.addTree(dir))

	sub := filepath.Join(dir, "Module")
	writeFile(t, filepath.Join(sub, "m.symbols.json"), mainManifest)
	w.handleEvent(fsnotify.Event{Name: sub, Op: fsnotify.Create})

	assert.Contains(t, w.WatchedDirs(), sub)
	events := w.ready(time.Now().Add(time.Second))
	assert.Equal(t, []Event{{Path: filepath.Join(sub, "m.symbols.json")}}, events)
}

func TestWatcher_SkipsExcludedDirs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".build", "debug"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Sources"), 0o755))

	w, err := NewWatcher(dir, config.DefaultConfig(), 0, nil)
	require.NoError(t, err)
	defer w.Stop()
	require.NoError(t, w.addTree(dir))

	assert.Equal(t, []string{dir, filepath.Join(dir, "Sources")}, w.WatchedDirs())
}

func TestWatcher_StartMissingRoot(t *testing.T) {
	w, err := NewWatcher(filepath.Join(t.TempDir(), "missing"), nil, 0, nil)
	require.NoError(t, err)
	defer w.Stop()
	assert.Error(t, w.Start(context.Background()))
}

func TestWatcher_StartDeliversBatch(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir, config.DefaultConfig(), 50*time.Millisecond, nil)
	require.NoError(t, err)

	got := make(chan []Event, 1)
	w.SetHandler(func(_ context.Context, events []Event) {
		select {
		case got <- events:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	path := filepath.Join(dir, "main.symbols.json")
	require.Eventually(t, func() bool { return len(w.fsWatcher.WatchList()) > 0 }, 2*time.Second, 10*time.Millisecond)
	writeFile(t, path, mainManifest)

	select {
	case events := <-got:
		assert.Equal(t, []Event{{Path: path}}, events)
	case <-time.After(5 * time.Second):
		t.Fatal("no batch delivered")
	}

	cancel()
	assert.True(t, errors.Is(<-done, context.Canceled))
	assert.NoError(t, w.Stop())
}

func TestStopIsIdempotent(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), nil, 0, nil)
	require.NoError(t, err)
	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}
