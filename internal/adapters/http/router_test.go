package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledum/huddle/internal/app"
	"github.com/ledum/huddle/internal/auth"
	"github.com/ledum/huddle/internal/config"
)

func newTestRouter(tokenSecret string) *gin.Engine {
	cfg := &config.Config{
		Mode:        "release",
		Secret:      "cookie-secret",
		TokenSecret: tokenSecret,
		TokenTTL:    time.Minute,
		SFUURL:      "wss://sfu.example.com",
		ReadLimit:   32768,
		PingPeriod:  54 * time.Second,
	}
	relay := app.NewRelay(app.NewRoomManager(), app.NewRegistry())
	issuer := auth.NewIssuer(cfg.TokenSecret, cfg.TokenTTL)
	return SetupRouter(context.Background(), cfg, relay, issuer)
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var parsed map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	}
	return w, parsed
}

func TestHealth(t *testing.T) {
	r := newTestRouter("ts")
	w, body := doJSON(t, r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestCreateOrJoin(t *testing.T) {
	r := newTestRouter("ts")

	w, body := doJSON(t, r, http.MethodPost, "/api/rooms/join", `{"roomId":"r1","userId":"a"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "r1", body["roomId"])
	assert.Equal(t, "p2p", body["mode"])
	assert.EqualValues(t, 1, body["participantsCount"])

	// Same identity again: idempotent.
	w, body = doJSON(t, r, http.MethodPost, "/api/rooms/join", `{"roomId":"r1","userId":"a"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["participantsCount"])

	for _, u := range []string{"b", "c"} {
		w, body = doJSON(t, r, http.MethodPost, "/api/rooms/join", `{"roomId":"r1","userId":"`+u+`"}`)
		require.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, "sfu", body["mode"])
	assert.EqualValues(t, 3, body["participantsCount"])

	w, _ = doJSON(t, r, http.MethodPost, "/api/rooms/join", `{"roomId":"r1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = doJSON(t, r, http.MethodPost, "/api/rooms/join", `{"userId":"a"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRoom(t *testing.T) {
	r := newTestRouter("ts")

	w, _ := doJSON(t, r, http.MethodGet, "/api/rooms/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	doJSON(t, r, http.MethodPost, "/api/rooms/join", `{"roomId":"r1","userId":"a"}`)
	w, body := doJSON(t, r, http.MethodGet, "/api/rooms/r1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "p2p", body["mode"])
	assert.Equal(t, []any{"a"}, body["participants"])
}

func TestIssueToken(t *testing.T) {
	r := newTestRouter("ts")

	w, body := doJSON(t, r, http.MethodPost, "/api/token", `{"roomId":"r1","userId":"a"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, body["token"])
	assert.Equal(t, "wss://sfu.example.com", body["sfuUrl"])

	w, _ = doJSON(t, r, http.MethodPost, "/api/token", `{"roomId":"r1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIssueTokenUnavailableWithoutSecret(t *testing.T) {
	r := newTestRouter("")
	w, body := doJSON(t, r, http.MethodPost, "/api/token", `{"roomId":"r1","userId":"a"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, body["error"], "secret", "no key material in user-facing errors")
}
