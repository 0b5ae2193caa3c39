package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opennews/newsbox/internal/client/cache"
	"github.com/opennews/newsbox/internal/client/sync"
	"github.com/opennews/newsbox/internal/newsapi"
)

func newTestRouter(t *testing.T, token string) http.Handler {
	t.Helper()

	c, err := cache.New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, c.Setup())
	t.Cleanup(func() { _ = c.Unlock() })

	api := newsapi.New("http://127.0.0.1:1")
	t.Cleanup(api.Close)

	session := sync.NewSession(api, c, nil, sync.PlannerPolicy{})
	manager := sync.NewManager(session, 0)
	return buildRouter(c.Root, token, manager, nil)
}

func doRequest(router http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestControlPlaneIndex(t *testing.T) {
	router := newTestRouter(t, "")

	rec := doRequest(router, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Newsbox", body["app"])
}

func TestControlPlaneTokenAuth(t *testing.T) {
	router := newTestRouter(t, "secret")

	t.Run("missing token", func(t *testing.T) {
		rec := doRequest(router, http.MethodGet, "/v1/status", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong token", func(t *testing.T) {
		rec := doRequest(router, http.MethodGet, "/v1/status", "nope")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("bearer header", func(t *testing.T) {
		rec := doRequest(router, http.MethodGet, "/v1/status", "secret")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("query param", func(t *testing.T) {
		rec := doRequest(router, http.MethodGet, "/v1/sync/status?token=secret", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestControlPlaneSyncStatus(t *testing.T) {
	router := newTestRouter(t, "")

	rec := doRequest(router, http.MethodGet, "/v1/sync/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		State sync.SessionState `json:"state"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, sync.PhaseIdle, body.State.Phase)
}

func TestControlPlaneTriggerSync(t *testing.T) {
	router := newTestRouter(t, "")

	// first trigger queues; the scheduler is not running, so a second one
	// finds the queue full
	rec := doRequest(router, http.MethodPost, "/v1/sync/now", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = doRequest(router, http.MethodPost, "/v1/sync/now", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestControlPlaneHistoryWithoutJournal(t *testing.T) {
	router := newTestRouter(t, "")

	rec := doRequest(router, http.MethodGet, "/v1/sync/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"passes": []}`, rec.Body.String())
}

func TestControlPlaneNoRoute(t *testing.T) {
	router := newTestRouter(t, "")

	rec := doRequest(router, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
