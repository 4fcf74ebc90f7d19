package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/mcdev12/draftroom/go/internal/recommend"
	"github.com/mcdev12/draftroom/go/internal/reconcile"
	"github.com/mcdev12/draftroom/go/internal/session"
)

type stubRecommender struct {
	players []recommend.RankedPlayer
	err     error
}

func (s *stubRecommender) Recommend(ctx context.Context, snapshot *models.SessionSnapshot, limit int) ([]recommend.RankedPlayer, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.players, nil
}

func newTestServer(t *testing.T, recommender recommend.Port) (*httptest.Server, *session.App) {
	t.Helper()
	app := session.NewApp(nil, nil, clockwork.NewFakeClock())
	handlers := NewHandlers(app, reconcile.NewAdapter(app), recommender)

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, app
}

func createSession(t *testing.T, server *httptest.Server, syncMode models.SyncMode) models.DraftSession {
	t.Helper()
	body, err := json.Marshal(createSessionBody{
		TeamCount:   4,
		TotalRounds: 2,
		UserSlot:    3,
		SyncMode:    syncMode,
	})
	require.NoError(t, err)

	resp, err := http.Post(server.URL+"/v1/sessions", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.DraftSession
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	return created
}

func submitPick(t *testing.T, server *httptest.Server, id uuid.UUID, number int, playerID string) *http.Response {
	t.Helper()
	body, err := json.Marshal(pickBody{
		Number: number,
		Player: models.Player{ID: playerID, Name: "Player " + playerID, Position: "WR"},
	})
	require.NoError(t, err)

	resp, err := http.Post(server.URL+"/v1/sessions/"+id.String()+"/picks", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func TestCreateSessionStartsDraft(t *testing.T) {
	server, _ := newTestServer(t, nil)

	created := createSession(t, server, models.SyncModeManual)
	assert.Equal(t, models.SessionStatusInProgress, created.Status)
	assert.Equal(t, 1, created.CurrentPick)
	assert.Equal(t, 1, created.CurrentRound)
	assert.Equal(t, 3, created.NextUserPick)
}

func TestCreateSessionValidation(t *testing.T) {
	server, _ := newTestServer(t, nil)

	body, err := json.Marshal(createSessionBody{TeamCount: 0, TotalRounds: 2, UserSlot: 1, SyncMode: models.SyncModeManual})
	require.NoError(t, err)

	resp, err := http.Post(server.URL+"/v1/sessions", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetSessionSnapshot(t *testing.T) {
	server, _ := newTestServer(t, nil)
	created := createSession(t, server, models.SyncModeManual)

	resp, err := http.Get(server.URL + "/v1/sessions/" + created.ID.String())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snapshot models.SessionSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snapshot))
	assert.Equal(t, created.ID, snapshot.Session.ID)
	assert.Empty(t, snapshot.Picks)
}

func TestGetSessionNotFound(t *testing.T) {
	server, _ := newTestServer(t, nil)

	resp, err := http.Get(server.URL + "/v1/sessions/" + uuid.NewString())
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(server.URL + "/v1/sessions/not-a-uuid")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitPickAdvancesSession(t *testing.T) {
	server, _ := newTestServer(t, nil)
	created := createSession(t, server, models.SyncModeManual)

	resp := submitPick(t, server, created.ID, 1, "p1")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snapshot models.SessionSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snapshot))
	assert.Equal(t, 2, snapshot.Session.CurrentPick)
	require.Len(t, snapshot.Picks, 1)
	assert.Equal(t, models.PickSourceManual, snapshot.Picks[0].Source)
}

func TestSubmitPickConflicts(t *testing.T) {
	server, _ := newTestServer(t, nil)
	created := createSession(t, server, models.SyncModeManual)

	// Ahead of the current pick.
	resp := submitPick(t, server, created.ID, 3, "p3")
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = submitPick(t, server, created.ID, 1, "p1")
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Behind the current pick.
	resp = submitPick(t, server, created.ID, 1, "late")
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Player already drafted.
	resp = submitPick(t, server, created.ID, 2, "p1")
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

// A live-source pick posted ahead of the pointer conflicts but is buffered,
// so it lands once the gap fills.
func TestSubmitLivePickAheadIsBuffered(t *testing.T) {
	server, app := newTestServer(t, nil)
	created := createSession(t, server, models.SyncModeLive)

	body, err := json.Marshal(pickBody{
		Number: 2,
		Player: models.Player{ID: "p2", Name: "Player p2", Position: "RB"},
		Source: models.PickSourceLive,
	})
	require.NoError(t, err)
	resp, err := http.Post(server.URL+"/v1/sessions/"+created.ID.String()+"/picks", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = submitPick(t, server, created.ID, 1, "p1")
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	snapshot, err := app.Snapshot(created.ID)
	require.NoError(t, err)
	require.Len(t, snapshot.Picks, 2)
	assert.Equal(t, "p2", snapshot.Picks[1].Player.ID)
}

func TestSyncErrorLifecycle(t *testing.T) {
	server, app := newTestServer(t, nil)
	created := createSession(t, server, models.SyncModeLive)

	resp, err := http.Post(
		server.URL+"/v1/sessions/"+created.ID.String()+"/sync-error",
		"application/json",
		bytes.NewReader([]byte(`{"reason":"poll timeout"}`)),
	)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	snapshot, err := app.Snapshot(created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusSyncError, snapshot.Session.Status)

	resp, err = http.Post(
		server.URL+"/v1/sessions/"+created.ID.String()+"/sync-recovered",
		"application/json",
		bytes.NewReader([]byte(`{}`)),
	)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	snapshot, err = app.Snapshot(created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusInProgress, snapshot.Session.Status)
}

func TestRecommendationsEndpoint(t *testing.T) {
	recommender := &stubRecommender{players: []recommend.RankedPlayer{
		{Player: models.Player{ID: "p9", Name: "Player Nine", Position: "WR"}, Score: 0.93},
	}}
	server, _ := newTestServer(t, recommender)
	created := createSession(t, server, models.SyncModeManual)

	resp, err := http.Get(server.URL + "/v1/sessions/" + created.ID.String() + "/recommendations?limit=5")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var parsed struct {
		Players []recommend.RankedPlayer `json:"players"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	require.Len(t, parsed.Players, 1)
	assert.Equal(t, "p9", parsed.Players[0].Player.ID)
}

func TestRecommendationsWithoutService(t *testing.T) {
	server, _ := newTestServer(t, nil)
	created := createSession(t, server, models.SyncModeManual)

	resp, err := http.Get(server.URL + "/v1/sessions/" + created.ID.String() + "/recommendations")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t, nil)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
