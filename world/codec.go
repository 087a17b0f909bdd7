package world

import (
	"encoding/binary"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

// Chunk blob layout, version 1:
//
//	byte 0      format version
//	bytes 1-2   chunk edge length, big endian
//	bytes 3...  one uint32 per cell, big endian, canonical cell order
//
// The version byte is checked on decode so the layout can evolve without
// corrupting stored worlds.
const chunkCodecVersion = 1

const chunkHeaderSize = 3

// EncodeChunk serializes a chunk into its versioned binary form.
func EncodeChunk(c *Chunk) []byte {
	data := make([]byte, chunkHeaderSize+4*len(c.Blocks))
	data[0] = chunkCodecVersion
	binary.BigEndian.PutUint16(data[1:3], uint16(c.Edge))

	for i, b := range c.Blocks {
		binary.BigEndian.PutUint32(data[chunkHeaderSize+4*i:], uint32(b))
	}
	return data
}

// DecodeChunk deserializes a chunk blob produced by EncodeChunk.
func DecodeChunk(data []byte) (*Chunk, error) {
	if len(data) < chunkHeaderSize {
		return nil, errors.New("chunk blob too short").
			WithTag("len", len(data))
	}
	if v := data[0]; v != chunkCodecVersion {
		return nil, errors.New("unsupported chunk blob version").
			WithTag("version", v)
	}

	edge := int(binary.BigEndian.Uint16(data[1:3]))
	cells := edge * edge * edge
	if len(data) != chunkHeaderSize+4*cells {
		return nil, errors.New("chunk blob size mismatch").
			WithTag("edge", edge).
			WithTag("len", len(data))
	}

	c := NewChunk(edge)
	for i := range c.Blocks {
		c.Blocks[i] = BlockTypeID(binary.BigEndian.Uint32(data[chunkHeaderSize+4*i:]))
	}
	return c, nil
}
