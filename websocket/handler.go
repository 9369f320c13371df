package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/raido/messages"
	"github.com/aukilabs/raido/world"
	"golang.org/x/net/websocket"
)

const (
	sendChanSize    = 512
	receiveChanSize = 512
)

// Receiver reads the next message from the connected client.
type Receiver func() (messages.Msg, int, error)

// Sender writes a message to the connected client.
type Sender func(messages.Msg) (int, error)

// Handler represents a raido connection handler.
type Handler interface {
	// Handles a ping request.
	HandlePing(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error

	// Handles a client connection.
	HandleConnect(conn *websocket.Conn)

	// Handles a request to join a world. handleFrame is called by the world
	// after every index step while the participant stays joined.
	HandleWorldJoin(ctx context.Context, handleFrame func(), respond messages.ResponseSender, msg messages.Msg) error

	// Handles a client's disconnection.
	HandleDisconnect(error)

	// Handles a request to register an entity.
	HandleEntityAdd(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error

	// Handles a request to delete an entity.
	HandleEntityDelete(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error

	// Handles an entity pose update.
	HandleEntityUpdatePose(ctx context.Context, msg messages.Msg) error

	// Handles a region overlap query.
	HandleQueryRegion(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error

	// Handles an entity overlap query.
	HandleQueryEntity(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error

	// Handles a request for the partition debug overlay.
	HandleDebugInfo(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error

	// Called after every index step of the joined world.
	HandleFrame(ctx context.Context, respond messages.ResponseSender)

	// Sends a sync clock message to the client.
	SendSyncClock(ctx context.Context, send messages.ResponseSender) error

	// Creates a message receiver used to receive incoming messages.
	Receiver() Receiver

	// Creates a message sender passed in service methods in order to send
	// messages.
	Sender() Sender

	// Closes the service and releases its allocated resources.
	Close()

	// The interval between each sync clock message sent to the connected
	// client.
	SyncClockInterval() time.Duration

	// The time a client is idle before being disconnected.
	IdleTimeout() time.Duration

	// Returns the world store.
	GetWorlds() *world.Store

	// The currently joined world.
	CurrentWorld() *world.World

	// The current participant.
	CurrentParticipant() *world.Participant

	// Get ClientID
	GetClientID() string
}

// Handle handles the given connection.
func Handle(ctx context.Context, conn *websocket.Conn, h Handler) {
	handler := handler{
		Conn:    conn,
		Handler: h,
	}

	handler.Handle(ctx)
}

type handler struct {
	// The WebSocket connection.
	Conn *websocket.Conn

	// The Raido handler.
	Handler Handler

	sendChan       chan messages.Msg
	sender         Sender
	receiveChan    chan messages.Msg
	receiver       Receiver
	disconnectChan chan error
}

func (h *handler) Handle(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.Handler.HandleConnect(h.Conn)

	h.disconnectChan = make(chan error, 8)
	defer func() {
		for len(h.disconnectChan) != 0 {
			<-h.disconnectChan
		}
	}()

	var wg sync.WaitGroup

	h.sendChan = make(chan messages.Msg, sendChanSize)
	h.sender = h.Handler.Sender()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startSending(ctx)
	}()

	h.receiveChan = make(chan messages.Msg, receiveChanSize)
	h.receiver = h.Handler.Receiver()
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startReceiving(ctx)
	}()

	idleTimeout := h.Handler.IdleTimeout()
	idleTimer := time.NewTimer(idleTimeout)
	defer idleTimer.Stop()

	syncClockTicker := time.NewTicker(h.Handler.SyncClockInterval())
	defer syncClockTicker.Stop()

	var responder = responseSender{
		send:    h.send,
		sendMsg: h.sendMsg,
	}

	for ctx.Err() == nil {
		select {
		case <-ctx.Done():
			h.disconnect(ctx.Err())

		case <-idleTimer.C:
			h.disconnect(errors.New("idle connection").WithTag("duration", h.Handler.IdleTimeout()))

		case <-syncClockTicker.C:
			if err := h.Handler.SendSyncClock(ctx, responder); err != nil {
				h.disconnect(errors.New("sending sync clock failed").Wrap(err))
			}

		case msg := <-h.receiveChan:
			idleTimer.Stop()
			idleTimer.Reset(idleTimeout)

			if err := h.handleMessage(ctx, msg, responder); err != nil {
				h.disconnect(errors.New("handling message failed").Wrap(err))
			}

		case err := <-h.disconnectChan:
			h.handleDisconnect(err)
			if ctx.Err() == nil {
				// cancel context so go routines can cleanly exit
				cancel()
			}
		}
	}

	wg.Wait()
}

func (h *handler) send(msgType string, v any) {
	msg, err := messages.New(msgType, v)
	if err != nil {
		logs.WithTag("msg_type", msgType).
			WithTag("client_id", h.Handler.GetClientID()).
			Debug(err)
		return
	}
	h.sendChan <- msg
}

func (h *handler) sendMsg(msg messages.Msg) {
	h.sendChan <- msg
}

func (h *handler) startSending(ctx context.Context) {
	defer func() {
		for len(h.sendChan) != 0 {
			<-h.sendChan
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-h.sendChan:
			if _, err := h.sender(msg); err != nil {
				h.disconnect(errors.New("sending message failed").Wrap(err))
				return
			}
		}
	}
}

func (h *handler) startReceiving(ctx context.Context) {
	for {
		msg, _, err := h.receiver()
		if err != nil {
			h.disconnect(errors.New("receiving message failed").Wrap(err))
			return
		}

		select {
		case <-ctx.Done():
			return

		case h.receiveChan <- msg:
		}
	}
}

func (h *handler) handleMessage(ctx context.Context, msg messages.Msg, responder messages.ResponseSender) error {
	switch msg.Type {
	case messages.TypePingRequest:
		return h.Handler.HandlePing(ctx, responder, msg)

	case messages.TypeWorldJoinRequest:
		return h.Handler.HandleWorldJoin(ctx,
			func() { h.Handler.HandleFrame(ctx, responder) },
			responder,
			msg,
		)

	case messages.TypeEntityAddRequest:
		return h.Handler.HandleEntityAdd(ctx, responder, msg)

	case messages.TypeEntityDeleteRequest:
		return h.Handler.HandleEntityDelete(ctx, responder, msg)

	case messages.TypeEntityUpdatePose:
		return h.Handler.HandleEntityUpdatePose(ctx, msg)

	case messages.TypeQueryRegionRequest:
		return h.Handler.HandleQueryRegion(ctx, responder, msg)

	case messages.TypeQueryEntityRequest:
		return h.Handler.HandleQueryEntity(ctx, responder, msg)

	case messages.TypeDebugInfoRequest:
		return h.Handler.HandleDebugInfo(ctx, responder, msg)
	}

	return nil
}

func (h *handler) disconnect(err error) {
	h.disconnectChan <- err
}

func (h *handler) handleDisconnect(err error) {
	h.Conn.Close()
	h.Handler.HandleDisconnect(err)
}

type responseSender struct {
	send    func(string, any)
	sendMsg func(messages.Msg)
}

func (r responseSender) Send(msgType string, v any) {
	r.send(msgType, v)
}

func (r responseSender) SendMsg(msg messages.Msg) {
	r.sendMsg(msg)
}
