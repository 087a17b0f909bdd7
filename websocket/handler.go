package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/voxellab/veldt/notify"
	"golang.org/x/net/websocket"
)

const (
	sendChanSize = 512
	recvChanSize = 64
)

// Handler represents a connected client.
type Handler interface {
	// Handles a client connection.
	HandleConnect(conn *websocket.Conn)

	// Handles a ping request.
	HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a single-cell read.
	HandleBlockGet(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a single-cell replacement.
	HandleBlockSet(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a bulk replacement.
	HandleBulkSet(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a range query.
	HandleBoxQuery(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a shape query.
	HandleShapeQuery(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a lighting command.
	HandleLight(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a block catalog request.
	HandleCatalog(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a client's disconnection.
	HandleDisconnect(error)

	// Sends a world update notification to the client.
	SendWorldUpdate(ctx context.Context, respond ResponseSender, u notify.WorldUpdate) error

	// The channel delivering world updates subscribed to on connect.
	WorldUpdates() <-chan notify.WorldUpdate

	// Creates a message receiver used to receive incoming messages.
	Receiver() Receiver

	// Creates a message sender passed to service methods in order to send
	// messages.
	Sender() Sender

	// Closes the handler and releases its allocated resources.
	Close()

	// The time a client is idle before being disconnected.
	IdleTimeout() time.Duration

	// Get client id.
	GetClientID() string
}

// Handle serves a connection with the given handler until it
// disconnects.
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

	// The veldt handler.
	Handler Handler

	sendChan       chan Msg
	recvChan       chan Msg
	sender         Sender
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

	h.sendChan = make(chan Msg, sendChanSize)
	h.sender = h.Handler.Sender()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startSending(ctx)
	}()

	h.recvChan = make(chan Msg, recvChanSize)
	h.receiver = h.Handler.Receiver()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startReceiving(ctx)
	}()

	idleTimeout := h.Handler.IdleTimeout()
	idleTimer := time.NewTimer(idleTimeout)
	defer idleTimer.Stop()

	var responder = responseSender{
		sendMsg: h.sendMsg,
	}

	for ctx.Err() == nil {
		select {
		case <-ctx.Done():
			h.disconnect(ctx.Err())

		case <-idleTimer.C:
			h.disconnect(errors.New("idle connection").WithTag("duration", idleTimeout))

		case u := <-h.Handler.WorldUpdates():
			if err := h.Handler.SendWorldUpdate(ctx, responder, u); err != nil {
				h.disconnect(errors.New("sending world update failed").Wrap(err))
			}

		case msg := <-h.recvChan:
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

func (h *handler) sendMsg(msg Msg) {
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
		select {
		case <-ctx.Done():
			return

		default:
			msg, _, err := h.receiver()
			if err != nil {
				h.disconnect(errors.New("receiving message failed").Wrap(err))
				return
			}

			select {
			case <-ctx.Done():
				return
			case h.recvChan <- msg:
			}
		}
	}
}

// handleMessage validates and dispatches one inbound message. Malformed
// payloads and unknown message types are answered with an error reply
// rather than a disconnection.
func (h *handler) handleMessage(ctx context.Context, msg Msg, responder ResponseSender) error {
	if err := validateRequest(msg); err != nil {
		responder.Send(NewErrorMsg(msg.RequestID, ErrTypeInvalidMsg, err))
		return nil
	}

	var err error

	switch msg.Type {
	case MsgTypePing:
		err = h.Handler.HandlePing(ctx, responder, msg)

	case MsgTypeBlockGetRequest:
		err = h.Handler.HandleBlockGet(ctx, responder, msg)

	case MsgTypeBlockSetRequest:
		err = h.Handler.HandleBlockSet(ctx, responder, msg)

	case MsgTypeBulkSetRequest:
		err = h.Handler.HandleBulkSet(ctx, responder, msg)

	case MsgTypeBoxQueryRequest:
		err = h.Handler.HandleBoxQuery(ctx, responder, msg)

	case MsgTypeShapeQueryRequest:
		err = h.Handler.HandleShapeQuery(ctx, responder, msg)

	case MsgTypeLightRequest:
		err = h.Handler.HandleLight(ctx, responder, msg)

	case MsgTypeCatalogRequest:
		err = h.Handler.HandleCatalog(ctx, responder, msg)

	default:
		responder.Send(NewErrorMsg(msg.RequestID, ErrTypeUnknownMsgType,
			errors.New("unknown message type").WithTag("msg_type", msg.Type)))
	}

	return err
}

func (h *handler) disconnect(err error) {
	h.disconnectChan <- err
}

func (h *handler) handleDisconnect(err error) {
	h.Conn.Close()
	h.Handler.HandleDisconnect(err)
}

type responseSender struct {
	sendMsg func(Msg)
}

func (r responseSender) Send(msg Msg) {
	r.sendMsg(msg)
}
