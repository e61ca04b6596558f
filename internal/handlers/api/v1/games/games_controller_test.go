package games

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"planethero/internal/contextutils"
	"planethero/internal/events"
	"planethero/internal/games"
	"planethero/internal/models"
	"planethero/internal/response"
	"planethero/internal/services"
	"planethero/internal/store"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingCompletion struct {
	err error
}

func (f failingCompletion) CompleteGame(context.Context, string, models.GameType, int64) (*services.CompletionOutcome, error) {
	return nil, f.err
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Type string `json:"type"`
		Code string `json:"code"`
	} `json:"error"`
}

type testEnv struct {
	controller *GamesController
	runner     *games.Runner
	st         store.DocumentStore
}

func newTestEnv(t *testing.T, completion services.CompletionService) *testEnv {
	t.Helper()
	st := store.NewMemoryStore(nil)
	profiles := services.NewProfileRepository(st, nil, 0, "", nil)
	facts := services.NewFactPicker(nil)
	if completion == nil {
		completion = services.NewCompletionHandler(st, profiles, events.NewEventBus(nil, nil), facts, nil)
	}
	runner := games.NewRunner(time.Minute, nil)
	require.NoError(t, st.CreateDocument(context.Background(), models.UsersCollection, "u1", map[string]interface{}{
		models.FieldTotalPoints: int64(0),
		models.FieldBadges:      []string{},
	}))
	return &testEnv{
		controller: NewGamesController(runner, completion, facts, response.NewBuilder(nil, nil), nil),
		runner:     runner,
		st:         st,
	}
}

func request(method, target, body string, vars map[string]string, subjectID string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if subjectID != "" {
		req = req.WithContext(contextutils.WithSession(req.Context(), models.Session{SubjectID: subjectID, Role: models.RoleStudent}))
	}
	return mux.SetURLVars(req, vars)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func (e *testEnv) start(t *testing.T, subjectID string, gameType models.GameType) games.Session {
	t.Helper()
	rec := httptest.NewRecorder()
	e.controller.StartGame(rec, request(http.MethodPost, "/", "", map[string]string{"gameType": string(gameType)}, subjectID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var s games.Session
	decode(t, rec, &s)
	return s
}

func TestGames_StartAndComplete(t *testing.T) {
	env := newTestEnv(t, nil)
	s := env.start(t, "u1", models.GameWasteSorting)
	assert.Equal(t, models.GameWasteSorting, s.GameType)

	rec := httptest.NewRecorder()
	env.controller.CompleteGame(rec, request(http.MethodPost, "/", `{"score":60}`, map[string]string{"id": s.ID}, "u1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out CompletionResponse
	decode(t, rec, &out)
	assert.True(t, out.Recorded)
	assert.True(t, out.BadgeAwarded)
	require.NotNil(t, out.Badge)
	assert.Equal(t, "Waste Warrior", out.Badge.Name)
	require.NotNil(t, out.TotalPoints)
	assert.Equal(t, int64(60), *out.TotalPoints)
	assert.NotEmpty(t, out.Fact.Title)

	// the session ended with the completion
	rec = httptest.NewRecorder()
	env.controller.CompleteGame(rec, request(http.MethodPost, "/", `{"score":60}`, map[string]string{"id": s.ID}, "u1"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	doc, err := env.st.GetDocument(context.Background(), models.UsersCollection, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(60), doc.Int(models.FieldTotalPoints))
}

func TestGames_StartErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	env.start(t, "u1", models.GamePlantTree)

	tests := []struct {
		name       string
		gameType   string
		subjectID  string
		wantStatus int
	}{
		{name: "unknown game", gameType: "chess", subjectID: "u2", wantStatus: http.StatusBadRequest},
		{name: "already playing", gameType: "water_saver", subjectID: "u1", wantStatus: http.StatusConflict},
		{name: "anonymous", gameType: "water_saver", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			env.controller.StartGame(rec, request(http.MethodPost, "/", "", map[string]string{"gameType": tt.gameType}, tt.subjectID))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestGames_CompleteErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	s := env.start(t, "u1", models.GameWaterSaver)

	tests := []struct {
		name       string
		body       string
		sessionID  string
		wantStatus int
		wantCode   string
	}{
		{name: "bad json", body: `{"score":`, sessionID: s.ID, wantStatus: http.StatusBadRequest},
		{name: "negative score", body: `{"score":-5}`, sessionID: s.ID, wantStatus: http.StatusBadRequest},
		{name: "other session", body: `{"score":5}`, sessionID: "6ba7b810-9dad-41d1-80b4-00c04fd430c8", wantStatus: http.StatusConflict, wantCode: "SESSION_MISMATCH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			env.controller.CompleteGame(rec, request(http.MethodPost, "/", tt.body, map[string]string{"id": tt.sessionID}, "u1"))
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				out := decode(t, rec, nil)
				require.NotNil(t, out.Error)
				assert.Equal(t, tt.wantCode, out.Error.Code)
			}
		})
	}

	_, active := env.runner.Active("u1")
	assert.True(t, active, "rejected completions leave the session open")
}

func TestGames_CompleteStoreFailureIsAccepted(t *testing.T) {
	storeErr := services.NewStoreError("failed to award badge", errors.New("timeout")).WithDetail("points_recorded", true)
	env := newTestEnv(t, failingCompletion{err: storeErr})
	s := env.start(t, "u1", models.GamePlantTree)

	rec := httptest.NewRecorder()
	env.controller.CompleteGame(rec, request(http.MethodPost, "/", `{"score":120}`, map[string]string{"id": s.ID}, "u1"))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var out CompletionResponse
	decode(t, rec, &out)
	assert.False(t, out.Recorded)
	assert.True(t, out.PointsRecorded)
	assert.Equal(t, int64(120), out.Score)
	assert.NotEmpty(t, out.Fact.Title)
	assert.Nil(t, out.TotalPoints)

	_, active := env.runner.Active("u1")
	assert.False(t, active)
}

func TestGames_CompleteOtherFailure(t *testing.T) {
	env := newTestEnv(t, failingCompletion{err: services.NewValidationError("subject id is required", nil)})
	s := env.start(t, "u1", models.GamePlantTree)

	rec := httptest.NewRecorder()
	env.controller.CompleteGame(rec, request(http.MethodPost, "/", `{"score":1}`, map[string]string{"id": s.ID}, "u1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGames_AbandonAndList(t *testing.T) {
	env := newTestEnv(t, nil)
	s := env.start(t, "u1", models.GamePlantTree)

	rec := httptest.NewRecorder()
	env.controller.ListGames(rec, request(http.MethodGet, "/", "", nil, "u1"))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []GameInfo
	decode(t, rec, &list)
	require.Len(t, list, 3)
	for _, g := range list {
		if g.GameType == models.GamePlantTree {
			require.NotNil(t, g.Active)
			assert.Equal(t, s.ID, g.Active.ID)
			assert.Equal(t, int64(100), g.MinScore)
		} else {
			assert.Nil(t, g.Active)
		}
	}

	rec = httptest.NewRecorder()
	env.controller.AbandonGame(rec, request(http.MethodDelete, "/", "", map[string]string{"id": s.ID}, "u1"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	env.controller.AbandonGame(rec, request(http.MethodDelete, "/", "", map[string]string{"id": s.ID}, "u1"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
