package websocket

import (
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
	"github.com/voxellab/veldt/grid"
)

func TestMsgPayloadRoundTrip(t *testing.T) {
	msg, err := NewResponse(MsgTypeBlockGetRequest, 42, BlockGetRequest{
		Pos: grid.Position{X: 1, Y: -2, Z: 3},
	})
	require.NoError(t, err)
	require.Equal(t, MsgTypeBlockGetRequest, msg.Type)
	require.Equal(t, uint32(42), msg.RequestID)

	var req BlockGetRequest
	require.NoError(t, msg.DataTo(&req))
	require.Equal(t, grid.Position{X: 1, Y: -2, Z: 3}, req.Pos)
}

func TestMsgDataToRejectsGarbage(t *testing.T) {
	msg := Msg{Type: MsgTypeBlockGetRequest, Data: json.RawMessage(`{`)}

	var req BlockGetRequest
	err := msg.DataTo(&req)
	require.Error(t, err)
	require.True(t, errors.IsType(err, ErrTypeInvalidMsg))
}

func TestNewErrorMsgDefaultsCode(t *testing.T) {
	msg := NewErrorMsg(7, "", errors.New("boom"))
	require.Equal(t, MsgTypeError, msg.Type)
	require.Equal(t, uint32(7), msg.RequestID)

	var res ErrorResponse
	require.NoError(t, msg.DataTo(&res))
	require.Equal(t, "internal", res.Code)
	require.Contains(t, res.Message, "boom")
}

func TestValidateRequest(t *testing.T) {
	utests := []struct {
		scenario string
		msgType  MsgType
		payload  string
		valid    bool
	}{
		{
			scenario: "block get with a position",
			msgType:  MsgTypeBlockGetRequest,
			payload:  `{"pos": {"x": 1, "y": 2, "z": 3}}`,
			valid:    true,
		},
		{
			scenario: "block get without a position",
			msgType:  MsgTypeBlockGetRequest,
			payload:  `{}`,
			valid:    false,
		},
		{
			scenario: "block set with a fractional coordinate",
			msgType:  MsgTypeBlockSetRequest,
			payload:  `{"pos": {"x": 1.5, "y": 0, "z": 0}, "block": 1}`,
			valid:    false,
		},
		{
			scenario: "block set with a negative block id",
			msgType:  MsgTypeBlockSetRequest,
			payload:  `{"pos": {"x": 0, "y": 0, "z": 0}, "block": -1}`,
			valid:    false,
		},
		{
			scenario: "bulk set with cells",
			msgType:  MsgTypeBulkSetRequest,
			payload:  `{"blocks": [{"pos": {"x": 0, "y": 0, "z": 0}, "block": 2}], "only_air": true}`,
			valid:    true,
		},
		{
			scenario: "box query with a box",
			msgType:  MsgTypeBoxQueryRequest,
			payload:  `{"box": {"from": {"x": 0, "y": 0, "z": 0}, "to": {"x": 2, "y": 2, "z": 2}}}`,
			valid:    true,
		},
		{
			scenario: "box query missing the to corner",
			msgType:  MsgTypeBoxQueryRequest,
			payload:  `{"box": {"from": {"x": 0, "y": 0, "z": 0}}}`,
			valid:    false,
		},
		{
			scenario: "shape query with an unknown kind",
			msgType:  MsgTypeShapeQueryRequest,
			payload:  `{"shape": {"kind": "donut"}}`,
			valid:    false,
		},
		{
			scenario: "shape query with a sphere",
			msgType:  MsgTypeShapeQueryRequest,
			payload:  `{"shape": {"kind": "sphere", "center": {"x": 0, "y": 0, "z": 0}, "radius": 2}}`,
			valid:    true,
		},
		{
			scenario: "light request with an op",
			msgType:  MsgTypeLightRequest,
			payload:  `{"chunk": {"x": 0, "y": 0, "z": 0}, "op": "flood_ambient"}`,
			valid:    true,
		},
		{
			scenario: "ping carries no schema",
			msgType:  MsgTypePing,
			payload:  `{"whatever": true}`,
			valid:    true,
		},
	}

	for _, u := range utests {
		t.Run(u.scenario, func(t *testing.T) {
			err := validateRequest(Msg{
				Type: u.msgType,
				Data: json.RawMessage(u.payload),
			})

			if u.valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				require.True(t, errors.IsType(err, ErrTypeInvalidMsg))
			}
		})
	}
}
