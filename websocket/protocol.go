// Package websocket implements the real-time client protocol. Messages
// are JSON envelopes carrying a type, an optional request id echoed in
// the response, and a payload.
package websocket

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/voxellab/veldt/grid"
	"github.com/voxellab/veldt/world"
)

type MsgType string

const (
	MsgTypePing               MsgType = "ping"
	MsgTypePong               MsgType = "pong"
	MsgTypeBlockGetRequest    MsgType = "block_get_request"
	MsgTypeBlockGetResponse   MsgType = "block_get_response"
	MsgTypeBlockSetRequest    MsgType = "block_set_request"
	MsgTypeBlockSetResponse   MsgType = "block_set_response"
	MsgTypeBulkSetRequest     MsgType = "bulk_set_request"
	MsgTypeBulkSetResponse    MsgType = "bulk_set_response"
	MsgTypeBoxQueryRequest    MsgType = "box_query_request"
	MsgTypeBoxQueryResponse   MsgType = "box_query_response"
	MsgTypeShapeQueryRequest  MsgType = "shape_query_request"
	MsgTypeShapeQueryResponse MsgType = "shape_query_response"
	MsgTypeLightRequest       MsgType = "light_request"
	MsgTypeLightResponse      MsgType = "light_response"
	MsgTypeCatalogRequest     MsgType = "catalog_request"
	MsgTypeCatalogResponse    MsgType = "catalog_response"
	MsgTypeWorldUpdate        MsgType = "world_update"
	MsgTypeError              MsgType = "error"
)

const (
	ErrTypeInvalidMsg     = "invalid_msg"
	ErrTypeUnknownMsgType = "unknown_msg_type"
)

// Msg is the wire envelope. Data is left encoded until a handler decodes
// it into the payload type matching Type.
type Msg struct {
	Type      MsgType         `json:"type"`
	RequestID uint32          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func NewMsg(t MsgType, v any) (Msg, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Msg{}, errors.New("encoding message payload failed").
			WithTag("msg_type", t).
			Wrap(err)
	}
	return Msg{Type: t, Data: data}, nil
}

// NewResponse builds a reply carrying the originating request id.
func NewResponse(t MsgType, requestID uint32, v any) (Msg, error) {
	msg, err := NewMsg(t, v)
	if err != nil {
		return Msg{}, err
	}
	msg.RequestID = requestID
	return msg, nil
}

// NewErrorMsg builds the error reply for a failed request.
func NewErrorMsg(requestID uint32, code string, err error) Msg {
	if code == "" {
		code = "internal"
	}
	data, _ := json.Marshal(ErrorResponse{
		Code:    code,
		Message: err.Error(),
	})
	return Msg{
		Type:      MsgTypeError,
		RequestID: requestID,
		Data:      data,
	}
}

// DataTo decodes the payload into the given value.
func (m Msg) DataTo(v any) error {
	if err := json.Unmarshal(m.Data, v); err != nil {
		return errors.New("decoding message payload failed").
			WithType(ErrTypeInvalidMsg).
			WithTag("msg_type", m.Type).
			Wrap(err)
	}
	return nil
}

func (m Msg) TypeString() string {
	return string(m.Type)
}

// Receiver reads the next message from a connection. It returns the
// decoded message and the number of bytes read.
type Receiver func() (Msg, int, error)

// Sender writes a message to a connection and returns the number of
// bytes written.
type Sender func(Msg) (int, error)

// ResponseSender queues outgoing messages from within a handler.
type ResponseSender interface {
	Send(Msg)
}

type PingRequest struct{}

type PongResponse struct {
	Time int64 `json:"time"`
}

type BlockGetRequest struct {
	Pos grid.Position `json:"pos"`
}

type BlockGetResponse struct {
	Pos   grid.Position     `json:"pos"`
	Block world.BlockTypeID `json:"block"`
	Name  string            `json:"name,omitempty"`
}

type BlockSetRequest struct {
	Pos   grid.Position     `json:"pos"`
	Block world.BlockTypeID `json:"block"`
}

type BlockSetResponse struct {
	Pos     grid.Position `json:"pos"`
	Applied bool          `json:"applied"`
}

type CellWrite struct {
	Pos   grid.Position     `json:"pos"`
	Block world.BlockTypeID `json:"block"`
}

type BulkSetRequest struct {
	Blocks []CellWrite `json:"blocks"`

	// OnlyAir restricts the bulk write to cells currently holding air.
	OnlyAir bool `json:"only_air,omitempty"`
}

type BulkSetResponse struct {
	Applied int `json:"applied"`
}

type BoxQueryRequest struct {
	Box grid.Box `json:"box"`
}

// BoxQueryResponse carries a dense buffer addressed by the box's
// canonical linear index.
type BoxQueryResponse struct {
	Box    grid.Box            `json:"box"`
	Blocks []world.BlockTypeID `json:"blocks"`
}

// ShapeSpec describes the cell selection of a shape query. The shape is
// metadata riding on a box query: partitioning follows the bounding box.
type ShapeSpec struct {
	Kind   string        `json:"kind"`
	Box    grid.Box      `json:"box,omitempty"`
	Center grid.Position `json:"center,omitempty"`
	Radius int           `json:"radius,omitempty"`
}

const (
	ShapeKindBox    = "box"
	ShapeKindSphere = "sphere"
)

type ShapeQueryRequest struct {
	Shape ShapeSpec `json:"shape"`
}

type ShapeQueryResponse struct {
	Box   grid.Box    `json:"box"`
	Cells []CellWrite `json:"cells"`
}

type LightRequest struct {
	Chunk grid.ChunkPos `json:"chunk"`
	Op    string        `json:"op"`
}

type LightResponse struct {
	Chunk grid.ChunkPos `json:"chunk"`
}

type CatalogRequest struct{}

type CatalogEntry struct {
	ID   world.BlockTypeID `json:"id"`
	Name string            `json:"name"`
}

type CatalogResponse struct {
	Blocks []CatalogEntry `json:"blocks"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
