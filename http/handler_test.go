package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aukilabs/raido/models"
	"github.com/aukilabs/raido/quadtree"
	"github.com/aukilabs/raido/world"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

func TestHandleHealthCheck(t *testing.T) {
	w := httptest.NewRecorder()
	HandleHealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestHandleReadyCheck(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleReadyCheck(func() bool { return true })(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("not ready", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleReadyCheck(func() bool { return false })(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestHandleVersion(t *testing.T) {
	w := httptest.NewRecorder()
	HandleVersion("v1.2.3")(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "v1.2.3", w.Body.String())
}

func TestHandleWithCORS(t *testing.T) {
	h := HandleWithCORS(http.HandlerFunc(HandleHealthCheck))

	t.Run("preflight", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/health", nil))
		require.Equal(t, http.StatusNoContent, w.Code)
		require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("passthrough", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestHandleOverlay(t *testing.T) {
	ctx := context.Background()
	worlds := &world.Store{ServerID: "ted"}

	wld := worlds.NewWorld()
	require.NoError(t, worlds.Add(ctx, wld))
	defer worlds.Remove(ctx, wld)

	entity := &models.Entity{
		ID:        wld.NewEntityID(),
		Size:      quadtree.Vec2{X: 5, Y: 5},
		LayerBits: 0b01,
	}
	entity.SetPosition(quadtree.Vec2{X: 10, Y: 10})
	wld.AddEntity(entity)

	handle := HandleOverlay(worlds)

	t.Run("list worlds", func(t *testing.T) {
		w := httptest.NewRecorder()
		handle(w, httptest.NewRequest(http.MethodGet, "/overlay", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var ids []string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ids))
		require.Equal(t, []string{worlds.GlobalWorldID(wld.ID)}, ids)
	})

	t.Run("world overlay", func(t *testing.T) {
		w := httptest.NewRecorder()
		handle(w, httptest.NewRequest(http.MethodGet, "/overlay?world="+worlds.GlobalWorldID(wld.ID), nil))
		require.Equal(t, http.StatusOK, w.Code)

		var res overlay
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		require.Equal(t, worlds.GlobalWorldID(wld.ID), res.WorldID)
		require.Equal(t, 1, res.Targets)
		require.NotEmpty(t, res.Nodes)
	})

	t.Run("unknown world", func(t *testing.T) {
		w := httptest.NewRecorder()
		handle(w, httptest.NewRequest(http.MethodGet, "/overlay?world=tedxff", nil))
		require.Equal(t, http.StatusNotFound, w.Code)
	})
}
