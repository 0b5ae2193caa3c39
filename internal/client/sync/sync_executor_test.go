package sync

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opennews/newsbox/internal/client/cache"
	"github.com/opennews/newsbox/internal/newsapi"
)

// fakeNewsServer serves the three cache endpoints from in-memory maps.
type fakeNewsServer struct {
	manifest newsapi.ManifestSnapshot
	dirs     map[string][]string // dirname -> member names
	files    map[string][]byte   // remote name -> content, 404 when absent

	checkStatus int // non-zero forces this status on /check_version
}

func (f *fakeNewsServer) start(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/check_version", func(w http.ResponseWriter, r *http.Request) {
		if f.checkStatus != 0 {
			w.WriteHeader(f.checkStatus)
			return
		}
		json.NewEncoder(w).Encode(f.manifest)
	})
	mux.HandleFunc("/list_files", func(w http.ResponseWriter, r *http.Request) {
		members, ok := f.dirs[r.URL.Query().Get("dirname")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(members)
	})
	mux.HandleFunc("/download", func(w http.ResponseWriter, r *http.Request) {
		content, ok := f.files[r.URL.Query().Get("filename")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write(content)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func md5hex(content []byte) string {
	return fmt.Sprintf("%x", md5.Sum(content))
}

func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	c, err := cache.New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, c.Setup())
	t.Cleanup(func() { _ = c.Unlock() })
	return c
}

func newTestExecutor(t *testing.T, server *fakeNewsServer) (*Executor, *cache.Cache) {
	t.Helper()
	c := newTestCache(t)
	api := newsapi.New(server.start(t).URL)
	t.Cleanup(api.Close)
	return NewExecutor(api, c), c
}

func TestExecutorReplaceDocument(t *testing.T) {
	content := []byte(`{"issue":1}`)
	exec, c := newTestExecutor(t, &fakeNewsServer{
		files: map[string][]byte{"onews_1.json": content},
	})

	result, err := exec.Apply(context.Background(), &PlannedAction{
		Type: ActionReplaceDocument, Name: "onews_1.json",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Downloaded)

	installed, err := os.ReadFile(c.AbsPath("onews_1.json"))
	require.NoError(t, err)
	assert.Equal(t, content, installed)

	// nothing left behind in the scratch area
	leftovers, err := os.ReadDir(c.ScratchDir)
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestExecutorReplaceDocumentFailureKeepsOldFile(t *testing.T) {
	exec, c := newTestExecutor(t, &fakeNewsServer{})

	old := []byte(`{"issue":"old"}`)
	require.NoError(t, os.WriteFile(c.AbsPath("onews_1.json"), old, 0o644))

	_, err := exec.Apply(context.Background(), &PlannedAction{
		Type: ActionReplaceDocument, Name: "onews_1.json",
	})
	require.Error(t, err)
	assert.True(t, newsapi.IsTransferError(err))

	kept, readErr := os.ReadFile(c.AbsPath("onews_1.json"))
	require.NoError(t, readErr)
	assert.Equal(t, old, kept)
}

func TestExecutorRefreshDirectoryFull(t *testing.T) {
	exec, c := newTestExecutor(t, &fakeNewsServer{
		dirs: map[string][]string{
			"news_images_1": {"a.png", "b.png", "broken.png"},
		},
		files: map[string][]byte{
			"news_images_1/a.png": []byte("aaa"),
			"news_images_1/b.png": []byte("bbb"),
			// broken.png intentionally absent
		},
	})

	// pre-existing member that must be wiped
	dir := c.AbsPath("news_images_1")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stale.png"), []byte("old"), 0o644))

	result, err := exec.Apply(context.Background(), &PlannedAction{
		Type: ActionRefreshFull, Name: "news_images_1",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Downloaded)
	assert.Equal(t, 1, result.Failed)

	assert.FileExists(t, filepath.Join(dir, "a.png"))
	assert.FileExists(t, filepath.Join(dir, "b.png"))
	assert.NoFileExists(t, filepath.Join(dir, "stale.png"))
}

func TestExecutorRefreshDirectoryFullEmptyRemote(t *testing.T) {
	exec, c := newTestExecutor(t, &fakeNewsServer{
		dirs: map[string][]string{"news_images_1": {}},
	})

	dir := c.AbsPath("news_images_1")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.png"), []byte("x"), 0o644))

	result, err := exec.Apply(context.Background(), &PlannedAction{
		Type: ActionRefreshFull, Name: "news_images_1",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Downloaded)

	// an empty member list never wipes what's there
	assert.FileExists(t, filepath.Join(dir, "keep.png"))
}

func TestExecutorRefreshDirectoryIncremental(t *testing.T) {
	exec, c := newTestExecutor(t, &fakeNewsServer{
		dirs: map[string][]string{
			"news_images_1": {"a.png", "b.png"},
		},
		files: map[string][]byte{
			"news_images_1/a.png": []byte("remote-a"),
			"news_images_1/b.png": []byte("remote-b"),
		},
	})

	dir := c.AbsPath("news_images_1")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), []byte("local-a"), 0o644))

	result, err := exec.Apply(context.Background(), &PlannedAction{
		Type: ActionRefreshIncremental, Name: "news_images_1",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Downloaded)

	// existing member untouched, missing member fetched
	a, err := os.ReadFile(filepath.Join(dir, "a.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("local-a"), a)

	b, err := os.ReadFile(filepath.Join(dir, "b.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("remote-b"), b)
}

func TestExecutorRefreshDirectoryIncrementalNothingMissing(t *testing.T) {
	exec, c := newTestExecutor(t, &fakeNewsServer{
		dirs: map[string][]string{"news_images_1": {"a.png"}},
	})

	dir := c.AbsPath("news_images_1")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), []byte("x"), 0o644))

	result, err := exec.Apply(context.Background(), &PlannedAction{
		Type: ActionRefreshIncremental, Name: "news_images_1",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Downloaded)
	assert.Equal(t, 0, result.Failed)
}

func TestExecutorRejectsEscapingMemberNames(t *testing.T) {
	exec, c := newTestExecutor(t, &fakeNewsServer{
		dirs: map[string][]string{
			"news_images_1": {"../evil.png", "ok.png"},
		},
		files: map[string][]byte{
			"news_images_1/ok.png": []byte("x"),
		},
	})

	result, err := exec.Apply(context.Background(), &PlannedAction{
		Type: ActionRefreshIncremental, Name: "news_images_1",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Downloaded)
	assert.Equal(t, 1, result.Failed)
	assert.NoFileExists(t, filepath.Join(c.Root, "evil.png"))
}

func TestExecutorDeleteStale(t *testing.T) {
	exec, c := newTestExecutor(t, &fakeNewsServer{})

	require.NoError(t, os.WriteFile(c.AbsPath("onews_9.json"), []byte("{}"), 0o644))

	result, err := exec.Apply(context.Background(), &PlannedAction{
		Type: ActionDeleteStale, Name: "onews_9.json",
	})
	require.NoError(t, err)
	assert.True(t, result.Removed)
	assert.NoFileExists(t, c.AbsPath("onews_9.json"))

	// deleting something already gone is not an error
	result, err = exec.Apply(context.Background(), &PlannedAction{
		Type: ActionDeleteStale, Name: "onews_9.json",
	})
	require.NoError(t, err)
	assert.True(t, result.Removed)
}

func TestExecutorUnknownAction(t *testing.T) {
	exec, _ := newTestExecutor(t, &fakeNewsServer{})
	_, err := exec.Apply(context.Background(), &PlannedAction{Type: "Mystery", Name: "x"})
	assert.Error(t, err)
}
