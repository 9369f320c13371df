package websocket

import (
	"testing"
	"time"

	"github.com/aukilabs/raido/messages"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

func sendMsg(t *testing.T, conn *websocket.Conn, msgType string, v any) {
	msg, err := messages.New(msgType, v)
	require.NoError(t, err)
	_, err = messages.Send(conn, msg)
	require.NoError(t, err)
}

func waitForMsg(t *testing.T, conn *websocket.Conn, msgType string) messages.Msg {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second*5)))

	for {
		msg, _, err := messages.Receive(conn)
		require.NoError(t, err)
		if msg.Type == msgType {
			return msg
		}
	}
}

func joinWorld(t *testing.T, conn *websocket.Conn, worldID string) messages.WorldJoinResponse {
	sendMsg(t, conn, messages.TypeWorldJoinRequest, messages.WorldJoinRequest{
		RequestID: 1,
		WorldID:   worldID,
	})

	var res messages.WorldJoinResponse
	require.NoError(t, waitForMsg(t, conn, messages.TypeWorldJoinResponse).DataTo(&res))
	return res
}

func addEntity(t *testing.T, conn *websocket.Conn, req messages.EntityAddRequest) uint32 {
	sendMsg(t, conn, messages.TypeEntityAddRequest, req)

	var res messages.EntityAddResponse
	require.NoError(t, waitForMsg(t, conn, messages.TypeEntityAddResponse).DataTo(&res))
	require.Equal(t, req.RequestID, res.RequestID)
	return res.EntityID
}

func queryRegion(t *testing.T, conn *websocket.Conn, req messages.QueryRegionRequest) []uint32 {
	sendMsg(t, conn, messages.TypeQueryRegionRequest, req)

	var res messages.QueryResponse
	require.NoError(t, waitForMsg(t, conn, messages.TypeQueryResponse).DataTo(&res))
	return res.EntityIDs
}

func TestRealtimeHandlerPing(t *testing.T) {
	clientA, _, close := NewTestingEnv(t, newTestHandler())
	defer close()

	sendMsg(t, clientA, messages.TypePingRequest, messages.Request{RequestID: 42})

	var res messages.Response
	require.NoError(t, waitForMsg(t, clientA, messages.TypePingResponse).DataTo(&res))
	require.Equal(t, uint32(42), res.RequestID)
}

func TestRealtimeHandlerWorldJoin(t *testing.T) {
	clientA, clientB, close := NewTestingEnv(t, newTestHandler())
	defer close()

	res := joinWorld(t, clientA, "")
	require.NotEmpty(t, res.WorldID)
	require.NotEmpty(t, res.WorldUUID)
	require.NotZero(t, res.ParticipantID)

	t.Run("world state is sent to the joining participant", func(t *testing.T) {
		var state messages.WorldState
		require.NoError(t, waitForMsg(t, clientA, messages.TypeWorldState).DataTo(&state))
		require.Empty(t, state.Entities)
	})

	t.Run("second participant joins the same world", func(t *testing.T) {
		resB := joinWorld(t, clientB, res.WorldID)
		require.Equal(t, res.WorldID, resB.WorldID)
		require.Equal(t, res.WorldUUID, resB.WorldUUID)
		require.NotEqual(t, res.ParticipantID, resB.ParticipantID)
	})

	t.Run("joining the current world again is an error", func(t *testing.T) {
		sendMsg(t, clientA, messages.TypeWorldJoinRequest, messages.WorldJoinRequest{
			RequestID: 2,
			WorldID:   res.WorldID,
		})

		var errRes messages.ErrorResponse
		require.NoError(t, waitForMsg(t, clientA, messages.TypeError).DataTo(&errRes))
		require.Equal(t, messages.ErrorCodeWorldAlreadyJoined, errRes.Code)
	})

	t.Run("joining an unknown world is an error", func(t *testing.T) {
		sendMsg(t, clientA, messages.TypeWorldJoinRequest, messages.WorldJoinRequest{
			RequestID: 3,
			WorldID:   "tedxff",
		})

		var errRes messages.ErrorResponse
		require.NoError(t, waitForMsg(t, clientA, messages.TypeError).DataTo(&errRes))
		require.Equal(t, messages.ErrorCodeNotFound, errRes.Code)
	})
}

func TestRealtimeHandlerEntityAdd(t *testing.T) {
	clientA, clientB, close := NewTestingEnv(t, newTestHandler())
	defer close()

	res := joinWorld(t, clientA, "")

	first := addEntity(t, clientA, messages.EntityAddRequest{
		RequestID: 2,
		X:         10,
		Y:         10,
		W:         5,
		H:         5,
		Layer:     0b01,
		Mask:      0b10,
	})
	require.NotZero(t, first)

	t.Run("entity appears in the world state of late joiners", func(t *testing.T) {
		joinWorld(t, clientB, res.WorldID)

		var state messages.WorldState
		require.NoError(t, waitForMsg(t, clientB, messages.TypeWorldState).DataTo(&state))
		require.Len(t, state.Entities, 1)
		require.Equal(t, first, state.Entities[0].ID)
	})

	t.Run("entity is broadcast to the other participants", func(t *testing.T) {
		second := addEntity(t, clientA, messages.EntityAddRequest{
			RequestID: 3, X: 20, Y: 20, W: 5, H: 5, Layer: 0b10, Mask: 0b01,
		})

		var broadcast messages.EntityAddBroadcast
		require.NoError(t, waitForMsg(t, clientB, messages.TypeEntityAddBroadcast).DataTo(&broadcast))
		require.Equal(t, second, broadcast.Entity.ID)
		require.Equal(t, res.ParticipantID, broadcast.Entity.ParticipantID)
		require.Equal(t, uint32(0b10), broadcast.Entity.Layer)
	})
}

func TestRealtimeHandlerQueries(t *testing.T) {
	clientA, _, close := NewTestingEnv(t, newTestHandler())
	defer close()

	joinWorld(t, clientA, "")

	a := addEntity(t, clientA, messages.EntityAddRequest{
		RequestID: 2, X: 10, Y: 10, W: 5, H: 5, Layer: 0b01, Mask: 0b10,
	})
	b := addEntity(t, clientA, messages.EntityAddRequest{
		RequestID: 3, X: 12, Y: 12, W: 5, H: 5, Layer: 0b10, Mask: 0b01,
	})
	c := addEntity(t, clientA, messages.EntityAddRequest{
		RequestID: 4, X: 200, Y: 200, W: 5, H: 5, Layer: 0b10, Mask: 0b01,
	})

	t.Run("region query reports intersecting entities once", func(t *testing.T) {
		ids := queryRegion(t, clientA, messages.QueryRegionRequest{
			RequestID: 5, X: 0, Y: 0, W: 30, H: 30,
		})
		require.ElementsMatch(t, []uint32{a, b}, ids)
	})

	t.Run("entity query filters by mask and excludes the querier", func(t *testing.T) {
		sendMsg(t, clientA, messages.TypeQueryEntityRequest, messages.QueryEntityRequest{
			RequestID: 6,
			EntityID:  a,
		})

		var res messages.QueryResponse
		require.NoError(t, waitForMsg(t, clientA, messages.TypeQueryResponse).DataTo(&res))
		require.Equal(t, []uint32{b}, res.EntityIDs)
	})

	t.Run("querying an unknown entity is an error", func(t *testing.T) {
		sendMsg(t, clientA, messages.TypeQueryEntityRequest, messages.QueryEntityRequest{
			RequestID: 7,
			EntityID:  c + 100,
		})

		var errRes messages.ErrorResponse
		require.NoError(t, waitForMsg(t, clientA, messages.TypeError).DataTo(&errRes))
		require.Equal(t, messages.ErrorCodeNotFound, errRes.Code)
	})
}

func TestRealtimeHandlerEntityDelete(t *testing.T) {
	clientA, clientB, close := NewTestingEnv(t, newTestHandler())
	defer close()

	res := joinWorld(t, clientA, "")
	joinWorld(t, clientB, res.WorldID)

	entityID := addEntity(t, clientA, messages.EntityAddRequest{
		RequestID: 2, X: 10, Y: 10, W: 5, H: 5, Layer: 0b01, Mask: 0b01,
	})

	t.Run("deleting another participant's entity is unauthorized", func(t *testing.T) {
		sendMsg(t, clientB, messages.TypeEntityDeleteRequest, messages.EntityDeleteRequest{
			RequestID: 3,
			EntityID:  entityID,
		})

		var errRes messages.ErrorResponse
		require.NoError(t, waitForMsg(t, clientB, messages.TypeError).DataTo(&errRes))
		require.Equal(t, messages.ErrorCodeUnauthorized, errRes.Code)
	})

	t.Run("owner deletes the entity", func(t *testing.T) {
		sendMsg(t, clientA, messages.TypeEntityDeleteRequest, messages.EntityDeleteRequest{
			RequestID: 4,
			EntityID:  entityID,
		})

		var delRes messages.EntityDeleteResponse
		require.NoError(t, waitForMsg(t, clientA, messages.TypeEntityDeleteResponse).DataTo(&delRes))

		var broadcast messages.EntityDeleteBroadcast
		require.NoError(t, waitForMsg(t, clientB, messages.TypeEntityDeleteBroadcast).DataTo(&broadcast))
		require.Equal(t, entityID, broadcast.EntityID)

		require.Empty(t, queryRegion(t, clientA, messages.QueryRegionRequest{
			RequestID: 5, X: 0, Y: 0, W: 30, H: 30,
		}))
	})

	t.Run("deleting an unknown entity is an error", func(t *testing.T) {
		sendMsg(t, clientA, messages.TypeEntityDeleteRequest, messages.EntityDeleteRequest{
			RequestID: 6,
			EntityID:  entityID,
		})

		var errRes messages.ErrorResponse
		require.NoError(t, waitForMsg(t, clientA, messages.TypeError).DataTo(&errRes))
		require.Equal(t, messages.ErrorCodeNotFound, errRes.Code)
	})
}

func TestRealtimeHandlerEntityUpdatePose(t *testing.T) {
	clientA, clientB, close := NewTestingEnv(t, newTestHandler())
	defer close()

	res := joinWorld(t, clientA, "")
	joinWorld(t, clientB, res.WorldID)

	entityID := addEntity(t, clientA, messages.EntityAddRequest{
		RequestID: 2, X: 10, Y: 10, W: 5, H: 5, Layer: 0b01, Mask: 0b01,
	})

	sendMsg(t, clientA, messages.TypeEntityUpdatePose, messages.EntityUpdatePose{
		EntityID: entityID,
		Pose:     messages.Pose{X: 200, Y: 200},
	})

	t.Run("pose update is broadcast", func(t *testing.T) {
		var broadcast messages.EntityUpdatePoseBroadcast
		require.NoError(t, waitForMsg(t, clientB, messages.TypeEntityUpdatePoseBroadcast).DataTo(&broadcast))
		require.Equal(t, entityID, broadcast.EntityID)
		require.Equal(t, float32(200), broadcast.Pose.X)
	})

	t.Run("index answers from the new position after the next frame", func(t *testing.T) {
		deadline := time.Now().Add(time.Second * 5)
		for {
			ids := queryRegion(t, clientA, messages.QueryRegionRequest{
				RequestID: 3, X: 190, Y: 190, W: 30, H: 30,
			})
			if len(ids) == 1 && ids[0] == entityID {
				break
			}
			if time.Now().After(deadline) {
				t.Fatal("entity never indexed at its new position")
			}
			time.Sleep(time.Millisecond * 20)
		}

		require.Empty(t, queryRegion(t, clientA, messages.QueryRegionRequest{
			RequestID: 4, X: 0, Y: 0, W: 30, H: 30,
		}))
	})
}

func TestRealtimeHandlerDebugInfo(t *testing.T) {
	clientA, _, close := NewTestingEnv(t, newTestHandler())
	defer close()

	res := joinWorld(t, clientA, "")

	addEntity(t, clientA, messages.EntityAddRequest{
		RequestID: 2, X: 10, Y: 10, W: 5, H: 5, Layer: 0b01, Mask: 0b01,
	})

	t.Run("one shot overlay", func(t *testing.T) {
		sendMsg(t, clientA, messages.TypeDebugInfoRequest, messages.DebugInfoRequest{RequestID: 3})

		var info messages.DebugInfoResponse
		require.NoError(t, waitForMsg(t, clientA, messages.TypeDebugInfoResponse).DataTo(&info))
		require.Equal(t, res.WorldID, info.WorldID)
		require.Equal(t, 1, info.Targets)
		require.NotEmpty(t, info.Nodes)
	})

	t.Run("streamed overlay follows index steps", func(t *testing.T) {
		sendMsg(t, clientA, messages.TypeDebugInfoRequest, messages.DebugInfoRequest{
			RequestID: 4,
			Stream:    true,
		})

		for i := 0; i < 3; i++ {
			var info messages.DebugInfoResponse
			require.NoError(t, waitForMsg(t, clientA, messages.TypeDebugInfoResponse).DataTo(&info))
			require.Equal(t, 1, info.Targets)
		}

		sendMsg(t, clientA, messages.TypeDebugInfoRequest, messages.DebugInfoRequest{RequestID: 5})
	})
}

func TestRealtimeHandlerDisconnect(t *testing.T) {
	clientA, clientB, close := NewTestingEnv(t, newTestHandler())
	defer close()

	res := joinWorld(t, clientA, "")
	joinWorld(t, clientB, res.WorldID)

	entityID := addEntity(t, clientA, messages.EntityAddRequest{
		RequestID: 2, X: 10, Y: 10, W: 5, H: 5, Layer: 0b01, Mask: 0b01,
	})

	require.NoError(t, clientA.Close())

	var broadcast messages.EntityDeleteBroadcast
	require.NoError(t, waitForMsg(t, clientB, messages.TypeEntityDeleteBroadcast).DataTo(&broadcast))
	require.Equal(t, entityID, broadcast.EntityID)
}

func TestRealtimeHandlerNotJoined(t *testing.T) {
	clientA, _, close := NewTestingEnv(t, newTestHandler())
	defer close()

	sendMsg(t, clientA, messages.TypeQueryRegionRequest, messages.QueryRegionRequest{
		RequestID: 1, X: 0, Y: 0, W: 10, H: 10,
	})

	// The connection is dropped because queries require a joined world.
	require.NoError(t, clientA.SetReadDeadline(time.Now().Add(time.Second*5)))
	for {
		msg, _, err := messages.Receive(clientA)
		if err != nil {
			return
		}
		require.NotEqual(t, messages.TypeQueryResponse, msg.Type)
	}
}
