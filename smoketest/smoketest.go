// Package smoketest exercises a running server through its public
// WebSocket endpoint: it connects like a regular client and runs a
// scripted exchange covering the core protocol operations.
package smoketest

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/segmentio/encoding/json"
	"github.com/voxellab/veldt/grid"
	vwebsocket "github.com/voxellab/veldt/websocket"
	"github.com/voxellab/veldt/world"
	"golang.org/x/net/websocket"
)

const defaultTimeout = 10 * time.Second

type Options struct {
	// Endpoint is the public endpoint of the server under test. HTTP
	// schemes are rewritten to their WebSocket counterparts.
	Endpoint string

	// Timeout bounds the whole run.
	Timeout time.Duration
}

type StepResult struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type Results struct {
	OK       bool          `json:"ok"`
	Steps    []StepResult  `json:"steps"`
	Duration time.Duration `json:"duration"`
}

// HandleSmokeTest runs the smoke test against the given endpoint and
// writes the results as JSON.
func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := Run(ctx, opts)

		logs.WithTag("ok", res.OK).
			WithTag("duration", res.Duration).
			Info("smoke test completed")

		w.Header().Set("Content-Type", "application/json")
		if !res.OK {
			w.WriteHeader(http.StatusInternalServerError)
		}
		json.NewEncoder(w).Encode(res)
	}
}

// Run connects to the endpoint and walks through ping, block write,
// block read and range query.
func Run(ctx context.Context, opts Options) Results {
	start := time.Now()

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res := Results{OK: true}
	fail := func(name string, err error) Results {
		res.OK = false
		res.Steps = append(res.Steps, StepResult{
			Name:  name,
			Error: err.Error(),
		})
		res.Duration = time.Since(start)
		return res
	}
	pass := func(name string) {
		res.Steps = append(res.Steps, StepResult{Name: name, OK: true})
	}

	conn, err := dial(opts.Endpoint)
	if err != nil {
		return fail("connect", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	pass("connect")

	client := client{conn: conn}

	var pong vwebsocket.PongResponse
	if err := client.roundTrip(vwebsocket.MsgTypePing, vwebsocket.PingRequest{}, vwebsocket.MsgTypePong, &pong); err != nil {
		return fail("ping", err)
	}
	pass("ping")

	// Writes land far below the surface so a failed cleanup does not
	// scar the playable world.
	pos := grid.Position{X: 0, Y: -512, Z: 0}

	var set vwebsocket.BlockSetResponse
	if err := client.roundTrip(vwebsocket.MsgTypeBlockSetRequest, vwebsocket.BlockSetRequest{
		Pos:   pos,
		Block: 1,
	}, vwebsocket.MsgTypeBlockSetResponse, &set); err != nil {
		return fail("block_set", err)
	}
	if !set.Applied {
		return fail("block_set", errors.New("write was not applied"))
	}
	pass("block_set")

	var get vwebsocket.BlockGetResponse
	if err := client.roundTrip(vwebsocket.MsgTypeBlockGetRequest, vwebsocket.BlockGetRequest{
		Pos: pos,
	}, vwebsocket.MsgTypeBlockGetResponse, &get); err != nil {
		return fail("block_get", err)
	}
	if get.Block != world.BlockTypeID(1) {
		return fail("block_get", errors.New("read a different block than written").
			WithTag("block", get.Block))
	}
	pass("block_get")

	box := grid.Box{
		From: pos,
		To:   grid.Position{X: pos.X + 2, Y: pos.Y + 2, Z: pos.Z + 2},
	}
	var query vwebsocket.BoxQueryResponse
	if err := client.roundTrip(vwebsocket.MsgTypeBoxQueryRequest, vwebsocket.BoxQueryRequest{
		Box: box,
	}, vwebsocket.MsgTypeBoxQueryResponse, &query); err != nil {
		return fail("box_query", err)
	}
	if len(query.Blocks) != box.Count() {
		return fail("box_query", errors.New("query returned a partial buffer").
			WithTag("cells", len(query.Blocks)).
			WithTag("expected", box.Count()))
	}
	if query.Blocks[box.Index(pos)] != world.BlockTypeID(1) {
		return fail("box_query", errors.New("query does not reflect the write"))
	}
	pass("box_query")

	// Revert the test write.
	if err := client.roundTrip(vwebsocket.MsgTypeBlockSetRequest, vwebsocket.BlockSetRequest{
		Pos:   pos,
		Block: world.Air,
	}, vwebsocket.MsgTypeBlockSetResponse, &set); err != nil {
		return fail("cleanup", err)
	}
	pass("cleanup")

	res.Duration = time.Since(start)
	return res
}

func dial(endpoint string) (*websocket.Conn, error) {
	url := endpoint
	url = strings.Replace(url, "https://", "wss://", 1)
	url = strings.Replace(url, "http://", "ws://", 1)

	conn, err := websocket.Dial(url, "", "http://localhost")
	if err != nil {
		return nil, errors.New("dialing server failed").
			WithTag("endpoint", endpoint).
			Wrap(err)
	}
	return conn, nil
}

type client struct {
	conn      *websocket.Conn
	requestID uint32
}

// roundTrip sends one request and waits for the matching reply, skipping
// unrelated frames such as world updates.
func (c *client) roundTrip(reqType vwebsocket.MsgType, payload any, resType vwebsocket.MsgType, out any) error {
	c.requestID++

	msg, err := vwebsocket.NewResponse(reqType, c.requestID, payload)
	if err != nil {
		return err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return errors.New("encoding request failed").Wrap(err)
	}
	if err := websocket.Message.Send(c.conn, data); err != nil {
		return errors.New("sending request failed").Wrap(err)
	}

	for {
		var data []byte
		if err := websocket.Message.Receive(c.conn, &data); err != nil {
			return errors.New("receiving reply failed").Wrap(err)
		}

		var reply vwebsocket.Msg
		if err := json.Unmarshal(data, &reply); err != nil {
			return errors.New("decoding reply failed").Wrap(err)
		}

		switch {
		case reply.Type == resType && reply.RequestID == c.requestID:
			return reply.DataTo(out)

		case reply.Type == vwebsocket.MsgTypeError && reply.RequestID == c.requestID:
			var errRes vwebsocket.ErrorResponse
			if err := reply.DataTo(&errRes); err != nil {
				return err
			}
			return errors.New("server replied with an error").
				WithType(errRes.Code).
				WithTag("message", errRes.Message)
		}
	}
}
