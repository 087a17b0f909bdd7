package websocket

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"github.com/voxellab/veldt/featureflag"
	"github.com/voxellab/veldt/grid"
	"github.com/voxellab/veldt/light"
	"github.com/voxellab/veldt/notify"
	"github.com/voxellab/veldt/router"
	"github.com/voxellab/veldt/world"
	"golang.org/x/net/websocket"
)

// HeaderClientID carries a client-chosen id on the upgrade request.
const HeaderClientID = "X-Veldt-Client-Id"

const worldUpdateChanSize = 64

// RealtimeHandler serves the world protocol over one connection. Every
// operation is forwarded to the router; world updates published by
// partitions are pushed to the client as they arrive.
type RealtimeHandler struct {
	// The router resolving operations to partition workers.
	Router *router.Router

	// The block type catalog.
	Catalog *world.Catalog

	// The global world update sink. Optional; without it the client
	// receives no world updates.
	Notifier *notify.Notifier

	FeatureFlags featureflag.FeatureFlag

	// The time a client is idle before being disconnected.
	ClientIdleTimeout time.Duration

	conn     *websocket.Conn
	clientID string
	updates  chan notify.WorldUpdate
	subID    uint32
}

func (h *RealtimeHandler) HandleConnect(conn *websocket.Conn) {
	h.conn = conn

	h.clientID = uuid.NewString()
	if req := conn.Request(); req != nil {
		if id := req.Header.Get(HeaderClientID); id != "" {
			h.clientID = id
		}
	}

	h.updates = make(chan notify.WorldUpdate, worldUpdateChanSize)
	if h.Notifier != nil {
		h.subID = h.Notifier.Subscribe(func(u notify.WorldUpdate) {
			// Slow clients lose updates rather than stall the fan-out.
			select {
			case h.updates <- u:
			default:
				instrumentUpdateDropped(h.clientID)
			}
		})
	}
}

func (h *RealtimeHandler) HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error {
	res, err := NewResponse(MsgTypePong, msg.RequestID, PongResponse{
		Time: time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}

	respond.Send(res)
	return nil
}

func (h *RealtimeHandler) HandleBlockGet(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req BlockGetRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	block, err := h.Router.GetBlock(ctx, req.Pos)
	if err != nil {
		h.sendError(respond, msg.RequestID, err)
		return nil
	}

	var name string
	if h.Catalog != nil {
		name, _ = h.Catalog.Name(block)
	}

	res, err := NewResponse(MsgTypeBlockGetResponse, msg.RequestID, BlockGetResponse{
		Pos:   req.Pos,
		Block: block,
		Name:  name,
	})
	if err != nil {
		return err
	}

	respond.Send(res)
	return nil
}

func (h *RealtimeHandler) HandleBlockSet(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req BlockSetRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	applied, err := h.Router.SetBlock(ctx, req.Pos, req.Block)
	if err != nil {
		h.sendError(respond, msg.RequestID, err)
		return nil
	}

	res, err := NewResponse(MsgTypeBlockSetResponse, msg.RequestID, BlockSetResponse{
		Pos:     req.Pos,
		Applied: applied,
	})
	if err != nil {
		return err
	}

	respond.Send(res)
	return nil
}

func (h *RealtimeHandler) HandleBulkSet(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req BulkSetRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	blocks := make(map[grid.Position]world.BlockTypeID, len(req.Blocks))
	for _, cell := range req.Blocks {
		blocks[cell.Pos] = cell.Block
	}

	var filter world.Filter
	if req.OnlyAir {
		filter = world.ReplaceOnly(world.Air)
	}

	applied, err := h.Router.ApplyBulk(ctx, blocks, filter)
	if err != nil {
		h.sendError(respond, msg.RequestID, err)
		return nil
	}

	res, err := NewResponse(MsgTypeBulkSetResponse, msg.RequestID, BulkSetResponse{
		Applied: applied,
	})
	if err != nil {
		return err
	}

	respond.Send(res)
	return nil
}

func (h *RealtimeHandler) HandleBoxQuery(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req BoxQueryRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	result, err := h.Router.QueryBox(ctx, req.Box)
	if err != nil {
		h.sendError(respond, msg.RequestID, err)
		return nil
	}

	res, err := NewResponse(MsgTypeBoxQueryResponse, msg.RequestID, BoxQueryResponse{
		Box:    result.Box,
		Blocks: result.Blocks,
	})
	if err != nil {
		return err
	}

	respond.Send(res)
	return nil
}

func (h *RealtimeHandler) HandleShapeQuery(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req ShapeQueryRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	box, include, err := shapePredicate(req.Shape)
	if err != nil {
		h.sendError(respond, msg.RequestID, err)
		return nil
	}

	result, err := h.Router.QueryShape(ctx, box, include)
	if err != nil {
		h.sendError(respond, msg.RequestID, err)
		return nil
	}

	// Cells are listed in the box's canonical order so replies are
	// deterministic.
	cells := make([]CellWrite, 0, len(result.Blocks))
	box.Each(func(p grid.Position) {
		if block, ok := result.Blocks[p]; ok {
			cells = append(cells, CellWrite{Pos: p, Block: block})
		}
	})

	res, err := NewResponse(MsgTypeShapeQueryResponse, msg.RequestID, ShapeQueryResponse{
		Box:   box,
		Cells: cells,
	})
	if err != nil {
		return err
	}

	respond.Send(res)
	return nil
}

func (h *RealtimeHandler) HandleLight(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req LightRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	op, ok := light.ParseOp(req.Op)
	if !ok {
		h.sendError(respond, msg.RequestID, errors.New("unknown lighting op").
			WithType(ErrTypeInvalidMsg).
			WithTag("op", req.Op))
		return nil
	}

	apply := func(ctx context.Context) error {
		return h.Router.ApplyLight(ctx, req.Chunk, op)
	}
	h.FeatureFlags.IfSet(featureflag.FlagNoLighting, func() {
		apply = func(context.Context) error { return nil }
	})

	if err := apply(ctx); err != nil {
		h.sendError(respond, msg.RequestID, err)
		return nil
	}

	res, err := NewResponse(MsgTypeLightResponse, msg.RequestID, LightResponse{
		Chunk: req.Chunk,
	})
	if err != nil {
		return err
	}

	respond.Send(res)
	return nil
}

func (h *RealtimeHandler) HandleCatalog(ctx context.Context, respond ResponseSender, msg Msg) error {
	catalog := h.Catalog
	if catalog == nil {
		catalog = world.DefaultCatalog()
	}

	blockTypes := catalog.Entries()
	entries := make([]CatalogEntry, 0, len(blockTypes))
	for _, b := range blockTypes {
		entries = append(entries, CatalogEntry{ID: b.ID, Name: b.Name})
	}

	res, err := NewResponse(MsgTypeCatalogResponse, msg.RequestID, CatalogResponse{
		Blocks: entries,
	})
	if err != nil {
		return err
	}

	respond.Send(res)
	return nil
}

func (h *RealtimeHandler) HandleDisconnect(err error) {
}

func (h *RealtimeHandler) SendWorldUpdate(ctx context.Context, respond ResponseSender, u notify.WorldUpdate) error {
	msg, err := NewMsg(MsgTypeWorldUpdate, u)
	if err != nil {
		return err
	}

	respond.Send(msg)
	return nil
}

func (h *RealtimeHandler) WorldUpdates() <-chan notify.WorldUpdate {
	return h.updates
}

func (h *RealtimeHandler) Receiver() Receiver {
	return func() (Msg, int, error) {
		var data []byte
		if err := websocket.Message.Receive(h.conn, &data); err != nil {
			return Msg{}, 0, err
		}

		var msg Msg
		if err := json.Unmarshal(data, &msg); err != nil {
			return Msg{}, len(data), errors.New("decoding message failed").
				WithType(ErrTypeInvalidMsg).
				Wrap(err)
		}
		return msg, len(data), nil
	}
}

func (h *RealtimeHandler) Sender() Sender {
	return func(msg Msg) (int, error) {
		data, err := json.Marshal(msg)
		if err != nil {
			return 0, errors.New("encoding message failed").
				WithTag("msg_type", msg.Type).
				Wrap(err)
		}

		if err := websocket.Message.Send(h.conn, data); err != nil {
			return 0, err
		}
		return len(data), nil
	}
}

func (h *RealtimeHandler) Close() {
	if h.Notifier != nil && h.subID != 0 {
		h.Notifier.Unsubscribe(h.subID)
	}
}

func (h *RealtimeHandler) IdleTimeout() time.Duration {
	return h.ClientIdleTimeout
}

func (h *RealtimeHandler) GetClientID() string {
	return h.clientID
}

func (h *RealtimeHandler) sendError(respond ResponseSender, requestID uint32, err error) {
	respond.Send(NewErrorMsg(requestID, errors.Type(err), err))
}

// shapePredicate turns a shape spec into its bounding box and inclusion
// predicate.
func shapePredicate(spec ShapeSpec) (grid.Box, func(grid.Position) bool, error) {
	switch spec.Kind {
	case ShapeKindBox:
		return spec.Box, func(grid.Position) bool { return true }, nil

	case ShapeKindSphere:
		c, r := spec.Center, spec.Radius
		box := grid.Box{
			From: grid.Position{X: c.X - r, Y: c.Y - r, Z: c.Z - r},
			To:   grid.Position{X: c.X + r + 1, Y: c.Y + r + 1, Z: c.Z + r + 1},
		}
		include := func(p grid.Position) bool {
			dx, dy, dz := p.X-c.X, p.Y-c.Y, p.Z-c.Z
			return dx*dx+dy*dy+dz*dz <= r*r
		}
		return box, include, nil

	default:
		return grid.Box{}, nil, errors.New("unknown shape kind").
			WithType(ErrTypeInvalidMsg).
			WithTag("kind", spec.Kind)
	}
}
