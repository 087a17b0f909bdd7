package websocket

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/segmentio/encoding/json"
)

// Request payloads are schema-validated before dispatch so handlers can
// decode them without re-checking shape.

const positionSchema = `{
  "type": "object",
  "required": ["x", "y", "z"],
  "properties": {
    "x": {"type": "integer"},
    "y": {"type": "integer"},
    "z": {"type": "integer"}
  }
}`

const boxSchema = `{
  "type": "object",
  "required": ["from", "to"],
  "properties": {
    "from": ` + positionSchema + `,
    "to": ` + positionSchema + `
  }
}`

var requestSchemas = map[MsgType]*jsonschema.Schema{
	MsgTypeBlockGetRequest: mustCompile("block_get_request.json", `{
	  "type": "object",
	  "required": ["pos"],
	  "properties": {"pos": `+positionSchema+`}
	}`),

	MsgTypeBlockSetRequest: mustCompile("block_set_request.json", `{
	  "type": "object",
	  "required": ["pos", "block"],
	  "properties": {
	    "pos": `+positionSchema+`,
	    "block": {"type": "integer", "minimum": 0}
	  }
	}`),

	MsgTypeBulkSetRequest: mustCompile("bulk_set_request.json", `{
	  "type": "object",
	  "required": ["blocks"],
	  "properties": {
	    "blocks": {
	      "type": "array",
	      "items": {
	        "type": "object",
	        "required": ["pos", "block"],
	        "properties": {
	          "pos": `+positionSchema+`,
	          "block": {"type": "integer", "minimum": 0}
	        }
	      }
	    },
	    "only_air": {"type": "boolean"}
	  }
	}`),

	MsgTypeBoxQueryRequest: mustCompile("box_query_request.json", `{
	  "type": "object",
	  "required": ["box"],
	  "properties": {"box": `+boxSchema+`}
	}`),

	MsgTypeShapeQueryRequest: mustCompile("shape_query_request.json", `{
	  "type": "object",
	  "required": ["shape"],
	  "properties": {
	    "shape": {
	      "type": "object",
	      "required": ["kind"],
	      "properties": {
	        "kind": {"enum": ["box", "sphere"]},
	        "box": `+boxSchema+`,
	        "center": `+positionSchema+`,
	        "radius": {"type": "integer", "minimum": 0}
	      }
	    }
	  }
	}`),

	MsgTypeLightRequest: mustCompile("light_request.json", `{
	  "type": "object",
	  "required": ["chunk", "op"],
	  "properties": {
	    "chunk": `+positionSchema+`,
	    "op": {"type": "string"}
	  }
	}`),
}

func mustCompile(name, src string) *jsonschema.Schema {
	return jsonschema.MustCompileString(name, src)
}

// validateRequest checks an incoming payload against the schema for its
// message type. Types without a schema carry no payload worth checking.
func validateRequest(msg Msg) error {
	schema, ok := requestSchemas[msg.Type]
	if !ok {
		return nil
	}

	var v any
	if err := json.Unmarshal(msg.Data, &v); err != nil {
		return errors.New("decoding request payload failed").
			WithType(ErrTypeInvalidMsg).
			WithTag("msg_type", msg.Type).
			Wrap(err)
	}
	if err := schema.Validate(v); err != nil {
		return errors.New("request payload does not match schema").
			WithType(ErrTypeInvalidMsg).
			WithTag("msg_type", msg.Type).
			Wrap(err)
	}
	return nil
}
