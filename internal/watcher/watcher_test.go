package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
	fail  bool
}

func (r *recorder) HandleCatalog(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, filepath.Base(path))
	if r.fail {
		return errors.New("bad catalog")
	}
	return nil
}

func (r *recorder) handled() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]string(nil), r.paths...)
	sort.Strings(out)
	return out
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func startWatcher(t *testing.T, roots []string, h Handler) *Watcher {
	t.Helper()
	w := NewWatcher(roots, []string{".csv", ".xlsx"}, true, h, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_AddRemoveDirectories(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, nil, &recorder{})

	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	dirs := w.Directories()
	if len(dirs) != 1 || dirs[0] != filepath.Clean(dir) {
		t.Errorf("Directories() = %v", dirs)
	}
	if err := w.RemoveDirectory(dir); err != nil {
		t.Fatal(err)
	}
	if len(w.Directories()) != 0 {
		t.Errorf("after remove: %v", w.Directories())
	}
}

func TestWatcher_IngestsDroppedCatalog(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, []string{dir}, rec)

	path := filepath.Join(dir, "spring.csv")
	for i := 0; i < 3; i++ {
		if err := writeFile(path, strings.Repeat("x", i+1)); err != nil {
			t.Fatal(err)
		}
	}
	if err := writeFile(filepath.Join(dir, "notes.txt"), "skip"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "~$spring.xlsx"), "lock"); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return len(rec.handled()) > 0 })
	time.Sleep(200 * time.Millisecond)
	if got := rec.handled(); len(got) != 1 || got[0] != "spring.csv" {
		t.Errorf("expected one debounced spring.csv, got %v", got)
	}
}

func TestWatcher_NewSubdirectory(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, []string{dir}, rec)

	nested := filepath.Join(dir, "vendor-a", "2024")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := writeFile(filepath.Join(nested, "shoes.xlsx"), "data"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		for _, p := range rec.handled() {
			if p == "shoes.xlsx" {
				return true
			}
		}
		return false
	})
}

func TestWatcher_SyncExistingFiles(t *testing.T) {
	dir := t.TempDir()
	if err := writeFile(filepath.Join(dir, "a.csv"), "a"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "ignore.json"), "{}"); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	w := startWatcher(t, []string{dir}, rec)

	w.SyncExistingFiles()
	waitFor(t, func() bool { return len(rec.handled()) == 1 })

	// Unchanged files are not handled twice.
	w.SyncExistingFiles()
	time.Sleep(150 * time.Millisecond)
	if got := rec.handled(); len(got) != 1 || got[0] != "a.csv" {
		t.Errorf("expected a.csv once, got %v", got)
	}
}

func TestWatcher_FailedCatalogRetriedOnSync(t *testing.T) {
	dir := t.TempDir()
	if err := writeFile(filepath.Join(dir, "broken.csv"), "x"); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{fail: true}
	w := startWatcher(t, []string{dir}, rec)

	w.SyncExistingFiles()
	waitFor(t, func() bool { return len(rec.handled()) == 1 })
	w.SyncExistingFiles()
	waitFor(t, func() bool { return len(rec.handled()) == 2 })
}

func TestWatcher_StartCreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "watch", "me")
	startWatcher(t, []string{root}, HandlerFunc(func(context.Context, string) error { return nil }))
	if _, err := os.Stat(root); err != nil {
		t.Errorf("root directory should exist after Start: %v", err)
	}
}

func TestWatcher_SyncBeforeStartIsNoop(t *testing.T) {
	dir := t.TempDir()
	if err := writeFile(filepath.Join(dir, "a.csv"), "a"); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	w := NewWatcher([]string{dir}, nil, true, rec)
	w.SyncExistingFiles()
	if len(rec.handled()) != 0 {
		t.Error("nothing should be handled before Start")
	}
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.csv", []string{".csv"}, true},
		{"/a/b.XLSX", []string{"xlsx"}, true},
		{"/a/b.xls", []string{".xlsx"}, false},
		{"/a/b", nil, true},
		{"/a/b", []string{}, true},
	}
	for _, tt := range tests {
		if got := matchExtension(tt.path, tt.extensions); got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func TestWatcher_Accepts(t *testing.T) {
	w := NewWatcher(nil, []string{".csv"}, true, nil)
	tests := map[string]bool{
		"/d/catalog.csv":   true,
		"/d/~$catalog.csv": false,
		"/d/.catalog.csv":  false,
		"/d/catalog.csv~":  false,
		"/d/catalog.tsv":   false,
	}
	for path, want := range tests {
		if got := w.accepts(path); got != want {
			t.Errorf("accepts(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.csv", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		if got := inDir(tt.dir, tt.path); got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}
