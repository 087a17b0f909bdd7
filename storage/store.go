package storage

import (
	"context"
	"sync"

	"github.com/voxellab/veldt/grid"
	"github.com/voxellab/veldt/world"
)

// Store persists chunk data on behalf of partition workers. A chunk that
// has never been saved reports ok == false so the worker can fall back to
// the generator.
type Store interface {
	LoadChunk(ctx context.Context, pos grid.ChunkPos) (c *world.Chunk, ok bool, err error)
	SaveChunk(ctx context.Context, pos grid.ChunkPos, c *world.Chunk) error
	Close() error
}

// MemoryStore keeps encoded chunk blobs in process memory. It is the
// default backend when no database path is configured and the backend
// used by tests.
type MemoryStore struct {
	mutex  sync.RWMutex
	chunks map[grid.ChunkPos][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chunks: make(map[grid.ChunkPos][]byte),
	}
}

func (s *MemoryStore) LoadChunk(ctx context.Context, pos grid.ChunkPos) (*world.Chunk, bool, error) {
	s.mutex.RLock()
	data, ok := s.chunks[pos]
	s.mutex.RUnlock()

	if !ok {
		return nil, false, nil
	}

	c, err := world.DecodeChunk(data)
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

func (s *MemoryStore) SaveChunk(ctx context.Context, pos grid.ChunkPos, c *world.Chunk) error {
	data := world.EncodeChunk(c)

	s.mutex.Lock()
	s.chunks[pos] = data
	s.mutex.Unlock()
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// Len returns the number of stored chunks.
func (s *MemoryStore) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.chunks)
}
