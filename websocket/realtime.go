package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/raido/featureflag"
	raidohttp "github.com/aukilabs/raido/http"
	"github.com/aukilabs/raido/messages"
	"github.com/aukilabs/raido/models"
	"github.com/aukilabs/raido/quadtree"
	"github.com/aukilabs/raido/world"
	"golang.org/x/net/websocket"
)

const (
	// ErrTypeWorldNotJoined tags errors returned when a message requires a
	// joined world and the client has none.
	ErrTypeWorldNotJoined = "world-not-joined"
)

// RealtimeHandler represents a service that manages multiple client
// connections and relays their actions in realtime.
type RealtimeHandler struct {
	// The interval between each sync clock message sent to the connected
	// client.
	ClientSyncClockInterval time.Duration

	// The time a client is idle before being disconnected.
	ClientIdleTimeout time.Duration

	// The store that contains all the server worlds.
	Worlds *world.Store

	FeatureFlags featureflag.FeatureFlag

	conn               *websocket.Conn
	currentWorld       *world.World
	currentParticipant *world.Participant

	stopFrameHandling func()

	overlayMutex     sync.Mutex
	overlayStream    bool
	overlayRequestID uint32

	clientID string
}

func (h *RealtimeHandler) HandleConnect(conn *websocket.Conn) {
	h.clientID = conn.Request().Header.Get(raidohttp.HeaderClientID)
	h.conn = conn
}

func (h *RealtimeHandler) HandlePing(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	var req messages.Request
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	respond.Send(messages.TypePingResponse, messages.Response{
		RequestID: req.RequestID,
	})
	return nil
}

func (h *RealtimeHandler) HandleWorldJoin(ctx context.Context, handleFrame func(), respond messages.ResponseSender, msg messages.Msg) error {
	var req messages.WorldJoinRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if h.currentWorld != nil && h.Worlds.GlobalWorldID(h.currentWorld.ID) == req.WorldID {
		respond.Send(messages.TypeError, messages.ErrorResponse{
			RequestID: req.RequestID,
			Code:      messages.ErrorCodeWorldAlreadyJoined,
		})
		return nil
	}

	if h.currentParticipant != nil {
		h.leaveWorld()
	}

	w, ok := h.Worlds.GetByGlobalID(req.WorldID)
	if !ok && req.WorldID != "" {
		respond.Send(messages.TypeError, messages.ErrorResponse{
			RequestID: req.RequestID,
			Code:      messages.ErrorCodeNotFound,
		})
		return nil
	}

	if !ok {
		w = h.Worlds.NewWorld()
		if err := h.Worlds.Add(ctx, w); err != nil {
			respond.Send(messages.TypeError, messages.ErrorResponse{
				RequestID: req.RequestID,
				Code:      messages.ErrorCodeInternalServerError,
			})
			return nil
		}
		go w.StartDispatchFrames()
	}

	participant := &world.Participant{
		ID:        w.NewParticipantID(),
		Responder: respond,
	}

	w.AddParticipant(participant)
	h.stopFrameHandling = w.HandleFrame(handleFrame)

	respond.Send(messages.TypeWorldJoinResponse, messages.WorldJoinResponse{
		RequestID:     req.RequestID,
		WorldID:       h.Worlds.GlobalWorldID(w.ID),
		WorldUUID:     w.WorldUUID,
		ParticipantID: participant.ID,
	})

	h.currentWorld = w
	h.currentParticipant = participant

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableWorldState, func() {
		respond.Send(messages.TypeWorldState, messages.WorldState{
			Entities: w.EntityStates(),
		})
	})

	return nil
}

func (h *RealtimeHandler) HandleDisconnect(_ error) {
	if h.currentParticipant != nil {
		h.leaveWorld()
	}
}

func (h *RealtimeHandler) HandleEntityAdd(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	var req messages.EntityAddRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	participant := h.currentParticipant
	w := h.currentWorld
	if participant == nil || w == nil {
		return errors.New("world not joined").
			WithType(ErrTypeWorldNotJoined).
			WithTag("msg_type", msg.Type)
	}

	entity := &models.Entity{
		ID:            w.NewEntityID(),
		ParticipantID: participant.ID,
		Size:          quadtree.Vec2{X: req.W, Y: req.H},
		LayerBits:     req.Layer,
		MaskBits:      req.Mask,
	}
	entity.SetPosition(quadtree.Vec2{X: req.X, Y: req.Y})

	w.AddEntity(entity)
	participant.AddEntity(entity)

	respond.Send(messages.TypeEntityAddResponse, messages.EntityAddResponse{
		RequestID: req.RequestID,
		EntityID:  entity.ID,
	})

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableEntityAddBroadcast, func() {
		w.Broadcast(participant, messages.TypeEntityAddBroadcast, messages.EntityAddBroadcast{
			Entity: messages.EntityState{
				ID:            entity.ID,
				ParticipantID: participant.ID,
				X:             req.X,
				Y:             req.Y,
				W:             req.W,
				H:             req.H,
				Layer:         req.Layer,
				Mask:          req.Mask,
			},
		})
	})

	return nil
}

func (h *RealtimeHandler) HandleEntityDelete(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	var req messages.EntityDeleteRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	participant := h.currentParticipant
	w := h.currentWorld
	if participant == nil || w == nil {
		return errors.New("world not joined").
			WithType(ErrTypeWorldNotJoined).
			WithTag("msg_type", msg.Type)
	}

	entity, ok := w.EntityByID(req.EntityID)
	if !ok {
		respond.Send(messages.TypeError, messages.ErrorResponse{
			RequestID: req.RequestID,
			Code:      messages.ErrorCodeNotFound,
		})
		return nil
	}

	if entity.ParticipantID != participant.ID {
		respond.Send(messages.TypeError, messages.ErrorResponse{
			RequestID: req.RequestID,
			Code:      messages.ErrorCodeUnauthorized,
		})
		return nil
	}

	if err := w.RemoveEntity(entity); err != nil {
		return err
	}
	participant.RemoveEntity(entity)

	respond.Send(messages.TypeEntityDeleteResponse, messages.EntityDeleteResponse{
		RequestID: req.RequestID,
	})

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableEntityDeleteBroadcast, func() {
		w.Broadcast(participant, messages.TypeEntityDeleteBroadcast, messages.EntityDeleteBroadcast{
			EntityID: entity.ID,
		})
	})

	return nil
}

func (h *RealtimeHandler) HandleEntityUpdatePose(ctx context.Context, msg messages.Msg) error {
	var update messages.EntityUpdatePose
	if err := msg.DataTo(&update); err != nil {
		return err
	}

	participant := h.currentParticipant
	w := h.currentWorld
	if participant == nil || w == nil {
		return errors.New("world not joined").
			WithType(ErrTypeWorldNotJoined).
			WithTag("msg_type", msg.Type)
	}

	entity, ok := w.EntityByID(update.EntityID)
	if !ok {
		return nil
	}

	if entity.ParticipantID != participant.ID {
		return nil
	}

	entity.SetPosition(quadtree.Vec2{
		X: update.Pose.X,
		Y: update.Pose.Y,
	})

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableEntityUpdatePoseBroadcast, func() {
		w.Broadcast(participant, messages.TypeEntityUpdatePoseBroadcast, messages.EntityUpdatePoseBroadcast{
			EntityID: entity.ID,
			Pose:     update.Pose,
		})
	})

	return nil
}

func (h *RealtimeHandler) HandleQueryRegion(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	var req messages.QueryRegionRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	w := h.currentWorld
	if h.currentParticipant == nil || w == nil {
		return errors.New("world not joined").
			WithType(ErrTypeWorldNotJoined).
			WithTag("msg_type", msg.Type)
	}

	respond.Send(messages.TypeQueryResponse, messages.QueryResponse{
		RequestID: req.RequestID,
		EntityIDs: w.QueryRegion(quadtree.NewRect(req.X, req.Y, req.W, req.H)),
	})
	return nil
}

func (h *RealtimeHandler) HandleQueryEntity(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	var req messages.QueryEntityRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	w := h.currentWorld
	if h.currentParticipant == nil || w == nil {
		return errors.New("world not joined").
			WithType(ErrTypeWorldNotJoined).
			WithTag("msg_type", msg.Type)
	}

	ids, ok := w.QueryEntity(req.EntityID)
	if !ok {
		respond.Send(messages.TypeError, messages.ErrorResponse{
			RequestID: req.RequestID,
			Code:      messages.ErrorCodeNotFound,
		})
		return nil
	}

	respond.Send(messages.TypeQueryResponse, messages.QueryResponse{
		RequestID: req.RequestID,
		EntityIDs: ids,
	})
	return nil
}

func (h *RealtimeHandler) HandleDebugInfo(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	var req messages.DebugInfoRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	w := h.currentWorld
	if h.currentParticipant == nil || w == nil {
		return errors.New("world not joined").
			WithType(ErrTypeWorldNotJoined).
			WithTag("msg_type", msg.Type)
	}

	h.overlayMutex.Lock()
	h.overlayStream = req.Stream
	h.overlayRequestID = req.RequestID
	h.overlayMutex.Unlock()

	targets, nodes := w.DebugNodes()
	respond.Send(messages.TypeDebugInfoResponse, messages.DebugInfoResponse{
		RequestID: req.RequestID,
		WorldID:   h.Worlds.GlobalWorldID(w.ID),
		Targets:   targets,
		Nodes:     nodes,
	})
	return nil
}

// HandleFrame streams the partition overlay to the client after each index
// step while overlay streaming is enabled.
func (h *RealtimeHandler) HandleFrame(ctx context.Context, respond messages.ResponseSender) {
	h.overlayMutex.Lock()
	stream := h.overlayStream
	requestID := h.overlayRequestID
	h.overlayMutex.Unlock()

	if !stream {
		return
	}

	w := h.currentWorld
	if w == nil {
		return
	}

	targets, nodes := w.DebugNodes()
	respond.Send(messages.TypeDebugInfoResponse, messages.DebugInfoResponse{
		RequestID: requestID,
		WorldID:   h.Worlds.GlobalWorldID(w.ID),
		Targets:   targets,
		Nodes:     nodes,
	})
}

func (h *RealtimeHandler) SendSyncClock(ctx context.Context, respond messages.ResponseSender) error {
	respond.Send(messages.TypeSyncClock, messages.SyncClock{
		Timestamp: time.Now().UnixMicro(),
	})
	return nil
}

func (h *RealtimeHandler) Receiver() Receiver {
	return func() (messages.Msg, int, error) {
		return messages.Receive(h.conn)
	}
}

func (h *RealtimeHandler) Sender() Sender {
	return func(msg messages.Msg) (int, error) {
		return messages.Send(h.conn, msg)
	}
}

func (h *RealtimeHandler) Close() {
}

func (h *RealtimeHandler) SyncClockInterval() time.Duration {
	return h.ClientSyncClockInterval
}

func (h *RealtimeHandler) IdleTimeout() time.Duration {
	return h.ClientIdleTimeout
}

func (h *RealtimeHandler) GetWorlds() *world.Store {
	return h.Worlds
}

func (h *RealtimeHandler) CurrentWorld() *world.World {
	return h.currentWorld
}

func (h *RealtimeHandler) CurrentParticipant() *world.Participant {
	return h.currentParticipant
}

func (h *RealtimeHandler) leaveWorld() {
	w := h.currentWorld
	participant := h.currentParticipant

	if participant == nil || w == nil {
		return
	}

	h.overlayMutex.Lock()
	h.overlayStream = false
	h.overlayMutex.Unlock()

	for id := range participant.EntityIDs() {
		entity, ok := w.EntityByID(id)
		if !ok {
			continue
		}

		if err := w.RemoveEntity(entity); err != nil {
			continue
		}

		h.FeatureFlags.IfNotSet(featureflag.FlagDisableEntityDeleteBroadcast, func() {
			w.Broadcast(participant, messages.TypeEntityDeleteBroadcast, messages.EntityDeleteBroadcast{
				EntityID: entity.ID,
			})
		})
	}

	if h.stopFrameHandling != nil {
		h.stopFrameHandling()
	}
	w.RemoveParticipant(participant)

	if w.ParticipantCount() == 0 {
		// context.Background so the removal completes even when the
		// connection context is already canceled.
		h.Worlds.Remove(context.Background(), w)
	}

	h.currentParticipant = nil
	h.currentWorld = nil
}

func (h *RealtimeHandler) GetClientID() string {
	return h.clientID
}
