package sync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opennews/newsbox/internal/client/cache"
	"github.com/opennews/newsbox/internal/newsapi"
)

func newTestSession(t *testing.T, server *fakeNewsServer) (*Session, *cache.Cache) {
	t.Helper()
	c := newTestCache(t)
	api := newsapi.New(server.start(t).URL)
	t.Cleanup(api.Close)

	session := NewSession(api, c, nil, PlannerPolicy{})
	session.SettleHold = time.Millisecond
	return session, c
}

func issueServer() *fakeNewsServer {
	doc := []byte(`{"issue":124,"headline":"hello"}`)
	return &fakeNewsServer{
		manifest: newsapi.ManifestSnapshot{
			Version: "3",
			Files: []*newsapi.FileDescriptor{
				{Name: "onews_124.json", Kind: newsapi.FileKindDocument, MD5: md5hex(doc)},
				{Name: "news_images_124", Kind: newsapi.FileKindImages},
			},
		},
		dirs: map[string][]string{
			"news_images_124": {"cover.png", "chart.png"},
		},
		files: map[string][]byte{
			"onews_124.json":            doc,
			"news_images_124/cover.png": []byte("cover"),
			"news_images_124/chart.png": []byte("chart"),
		},
	}
}

func TestSessionFullPass(t *testing.T) {
	session, c := newTestSession(t, issueServer())

	outcome, err := session.Run(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)

	assert.FileExists(t, c.AbsPath("onews_124.json"))
	assert.FileExists(t, filepath.Join(c.AbsPath("news_images_124"), "cover.png"))
	assert.FileExists(t, filepath.Join(c.AbsPath("news_images_124"), "chart.png"))

	assert.Equal(t, PhaseIdle, session.Status().Get().Phase)
}

func TestSessionSecondPassIsIdempotent(t *testing.T) {
	session, c := newTestSession(t, issueServer())

	_, err := session.Run(context.Background(), TriggerManual)
	require.NoError(t, err)

	before, err := os.ReadFile(c.AbsPath("onews_124.json"))
	require.NoError(t, err)
	stat, err := os.Stat(c.AbsPath("onews_124.json"))
	require.NoError(t, err)

	outcome, err := session.Run(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpToDate, outcome)

	after, err := os.ReadFile(c.AbsPath("onews_124.json"))
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// the document was not re-downloaded
	statAfter, err := os.Stat(c.AbsPath("onews_124.json"))
	require.NoError(t, err)
	assert.Equal(t, stat.ModTime(), statAfter.ModTime())
}

func TestSessionHealsPartialDirectory(t *testing.T) {
	session, c := newTestSession(t, issueServer())

	_, err := session.Run(context.Background(), TriggerManual)
	require.NoError(t, err)

	// simulate an interrupted earlier pass: one member lost
	require.NoError(t, os.Remove(filepath.Join(c.AbsPath("news_images_124"), "chart.png")))

	outcome, err := session.Run(context.Background(), TriggerAuto)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)
	assert.FileExists(t, filepath.Join(c.AbsPath("news_images_124"), "chart.png"))
}

func TestSessionRemovesStaleIssues(t *testing.T) {
	server := issueServer()
	session, c := newTestSession(t, server)

	require.NoError(t, os.WriteFile(c.AbsPath("onews_99.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(c.AbsPath("notes.txt"), []byte("mine"), 0o644))

	outcome, err := session.Run(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)

	assert.NoFileExists(t, c.AbsPath("onews_99.json"))
	assert.FileExists(t, c.AbsPath("notes.txt"))
}

func TestSessionCheckFailure(t *testing.T) {
	session, _ := newTestSession(t, &fakeNewsServer{
		checkStatus: http.StatusInternalServerError,
	})

	outcome, err := session.Run(context.Background(), TriggerManual)
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.True(t, newsapi.IsNetworkError(err))

	// a failed check aborts without any settling display
	assert.Equal(t, PhaseIdle, session.Status().Get().Phase)
}

func TestSessionPublishesProgress(t *testing.T) {
	session, _ := newTestSession(t, issueServer())

	events := session.Status().Subscribe()
	defer session.Status().Unsubscribe(events)

	_, err := session.Run(context.Background(), TriggerManual)
	require.NoError(t, err)

	seen := map[Phase]bool{}
	var counters []string
	for {
		var state SessionState
		select {
		case state = <-events:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for idle")
		}
		seen[state.Phase] = true
		if state.Transferring() {
			counters = append(counters, state.Counter())
		}
		if state.Phase == PhaseIdle {
			break
		}
	}

	assert.True(t, seen[PhaseChecking])
	assert.True(t, seen[PhasePlanning])
	assert.True(t, seen[PhaseTransferring])
	assert.True(t, seen[PhaseSettling])
	require.NotEmpty(t, counters)
	assert.Equal(t, "1 of 2", counters[0])
}

func TestSessionSinglePassInFlight(t *testing.T) {
	release := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("/check_version", func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := newTestCache(t)
	api := newsapi.New(ts.URL)
	defer api.Close()

	session := NewSession(api, c, nil, PlannerPolicy{})
	session.SettleHold = time.Millisecond

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = session.Run(context.Background(), TriggerAuto)
	}()

	// wait until the first pass is blocked inside checking
	require.Eventually(t, func() bool {
		return session.Status().Get().Phase == PhaseChecking
	}, time.Second, 5*time.Millisecond)

	_, err := session.Run(context.Background(), TriggerManual)
	assert.ErrorIs(t, err, ErrPassInFlight)

	close(release)
	<-done
}
