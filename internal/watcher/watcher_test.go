package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/kessan/internal/models"
)

type fakeIngester struct {
	mu       sync.Mutex
	ingested []string
	deleted  []string
	fail     bool
}

func (f *fakeIngester) IngestFile(_ context.Context, path string) (*models.Document, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ingested = append(f.ingested, path)
	if f.fail {
		return nil, false, errors.New("extract failed")
	}
	return &models.Document{ID: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), ChunkCount: 1}, false, nil
}

func (f *fakeIngester) DeletePath(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, path)
	return nil
}

func (f *fakeIngester) snapshot() (ingested, deleted []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ingested...), append([]string(nil), f.deleted...)
}

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

func hasSuffix(paths []string, suffix string) bool {
	for _, p := range paths {
		if strings.HasSuffix(p, suffix) {
			return true
		}
	}
	return false
}

func count(paths []string, suffix string) int {
	n := 0
	for _, p := range paths {
		if strings.HasSuffix(p, suffix) {
			n++
		}
	}
	return n
}

func startWatcher(t *testing.T, roots []string, ing Ingester, opts ...Option) *Watcher {
	t.Helper()
	opts = append([]Option{WithDebounce(50 * time.Millisecond)}, opts...)
	w := NewWatcher(roots, true, ing, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		cancel()
		t.Fatal(err)
	}
	t.Cleanup(func() {
		w.Stop()
		cancel()
	})
	return w
}

func TestWatcher_AddRemoveDirectories(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, nil, &fakeIngester{})

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
	if err := w.RemoveDirectory(filepath.Join(dir, "unknown")); err != nil {
		t.Errorf("removing an unknown directory should be a no-op: %v", err)
	}
}

func TestWatcher_ingestsSupportedFilesAfterDebounce(t *testing.T) {
	dir := t.TempDir()
	ing := &fakeIngester{}
	startWatcher(t, []string{dir}, ing)

	report := filepath.Join(dir, "q3-2024.txt")
	for i := 0; i < 3; i++ {
		if err := writeFile(report, strings.Repeat("revenue grew. ", i+1)); err != nil {
			t.Fatal(err)
		}
	}
	if err := writeFile(filepath.Join(dir, "notes.xyz"), "skip"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, ".hidden.txt"), "skip"); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		ingested, _ := ing.snapshot()
		return hasSuffix(ingested, "q3-2024.txt")
	})
	time.Sleep(150 * time.Millisecond)
	ingested, _ := ing.snapshot()
	if n := count(ingested, "q3-2024.txt"); n != 1 {
		t.Errorf("rapid writes should be ingested once, got %d", n)
	}
	if hasSuffix(ingested, "notes.xyz") || hasSuffix(ingested, ".hidden.txt") {
		t.Errorf("unexpected files ingested: %v", ingested)
	}
}

func TestWatcher_removedFileDeletesDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "annual.md")
	if err := writeFile(path, "# Annual report"); err != nil {
		t.Fatal(err)
	}
	ing := &fakeIngester{}
	startWatcher(t, []string{dir}, ing)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		_, deleted := ing.snapshot()
		return hasSuffix(deleted, "annual.md")
	})
}

func TestWatcher_customFilter(t *testing.T) {
	dir := t.TempDir()
	ing := &fakeIngester{}
	filter := func(_, path string) bool { return strings.HasSuffix(path, ".md") }
	startWatcher(t, []string{dir}, ing, WithFilter(filter))

	if err := writeFile(filepath.Join(dir, "a.txt"), "plain"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "b.md"), "markdown"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		ingested, _ := ing.snapshot()
		return hasSuffix(ingested, "b.md")
	})
	time.Sleep(100 * time.Millisecond)
	ingested, _ := ing.snapshot()
	if hasSuffix(ingested, "a.txt") {
		t.Errorf("a.txt should be filtered out: %v", ingested)
	}
}

func TestWatcher_SyncExistingFiles(t *testing.T) {
	dir := t.TempDir()
	if err := writeFile(filepath.Join(dir, "a.txt"), "hello"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "ignore.xyz"), "x"); err != nil {
		t.Fatal(err)
	}
	ing := &fakeIngester{fail: true}
	w := startWatcher(t, []string{dir}, ing)
	w.SyncExistingFiles()

	ingested, _ := ing.snapshot()
	if len(ingested) != 1 || !strings.HasSuffix(ingested[0], "a.txt") {
		t.Errorf("expected one ingested file a.txt, got %v", ingested)
	}
}

func TestWatcher_Start_createsMissingRootDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "watch", "me")
	startWatcher(t, []string{root}, &fakeIngester{})
	if _, err := os.Stat(root); err != nil {
		t.Errorf("root directory should exist after Start: %v", err)
	}
}

func TestWatcher_newFolderIsWatchedAndSynced(t *testing.T) {
	dir := t.TempDir()
	ing := &fakeIngester{}
	startWatcher(t, []string{dir}, ing)

	nested := filepath.Join(dir, "level1", "level2")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(nested, "deep.txt"), "deep content"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		ingested, _ := ing.snapshot()
		return hasSuffix(ingested, "deep.txt")
	})
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w := NewWatcher([]string{t.TempDir()}, false, &fakeIngester{})
	w.Stop()
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.txt", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
		{"/tmp/a", "/tmp/ab/c.txt", false},
	}
	for _, tt := range tests {
		if got := inDir(tt.dir, tt.path); got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}

func TestIgnored(t *testing.T) {
	tests := map[string]bool{
		"/in/report.pdf":       false,
		"/in/.DS_Store":        true,
		"/in/~$budget.xlsx":    true,
		"/in/draft.txt~":       true,
		"/in/.~lock.notes.odt": true,
	}
	for path, want := range tests {
		if got := ignored(path); got != want {
			t.Errorf("ignored(%q) = %v, want %v", path, got, want)
		}
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
