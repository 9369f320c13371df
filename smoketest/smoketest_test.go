package smoketest

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	raidows "github.com/aukilabs/raido/websocket"
	"github.com/aukilabs/raido/world"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

func newTestServer(t *testing.T) *httptest.Server {
	worlds := &world.Store{
		ServerID: "ted",
		Options: world.Options{
			FrameDuration: time.Millisecond * 50,
		},
	}

	server := httptest.NewServer(websocket.Server{
		Handshake: func(c *websocket.Config, r *http.Request) error {
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			h := raidows.HandlerWithLogs(&raidows.RealtimeHandler{
				ClientSyncClockInterval: time.Millisecond * 250,
				ClientIdleTimeout:       time.Minute,
				Worlds:                  worlds,
			}, time.Second)
			defer h.Close()

			raidows.Handle(context.Background(), conn, h)
		},
	})

	t.Cleanup(server.Close)
	return server
}

func TestRun(t *testing.T) {
	t.Run("smoke test success", func(t *testing.T) {
		server := newTestServer(t)

		res, err := Run(context.Background(), RunOptions{
			Endpoint: server.URL,
			Timeout:  time.Second * 2,
		})
		require.NoError(t, err)
		require.Equal(t, StatusSuccess, res.Status)
		require.Equal(t, server.URL, res.Endpoint)
		require.Greater(t, res.LatencyMilliSec, float64(0))
	})

	t.Run("smoke test failed - offline", func(t *testing.T) {
		res, err := Run(context.Background(), RunOptions{
			Endpoint: "http://127.0.0.1:1",
			Timeout:  time.Second,
		})
		require.Error(t, err)
		require.Equal(t, StatusFailed, res.Status)
		require.NotEmpty(t, res.Error)
	})
}

func TestHandleSmokeTest(t *testing.T) {
	server := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	ctx = context.WithValue(ctx, testCtxKeyValue, testContext{
		Context: ctx,
		Cancel:  cancel,
	})

	var gotResult bool
	smokeTest := HandleSmokeTest(ctx, Options{
		Endpoint: server.URL,
		SendResult: func(_ context.Context, res Results) error {
			require.Equal(t, server.URL, res.Endpoint)
			require.Equal(t, StatusSuccess, res.Status)
			gotResult = true
			return nil
		},
	})

	body, err := json.Marshal(Request{Timeout: time.Second * 2})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "http://localraido/smoke-test", bytes.NewBuffer(body))

	smokeTest.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	<-ctx.Done()
	require.True(t, gotResult)
}
