package world

import (
	"os"
	"sort"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Catalog maps block type names to ids. The routing core treats ids as
// opaque; the catalog only exists so outer surfaces can speak names.
type Catalog struct {
	byName map[string]BlockTypeID
	byID   map[BlockTypeID]string
}

// DefaultCatalog returns the built-in block types used when no catalog
// file is configured.
func DefaultCatalog() *Catalog {
	c := newCatalog()
	for name, id := range map[string]BlockTypeID{
		"air":    Air,
		"stone":  1,
		"dirt":   2,
		"grass":  3,
		"sand":   4,
		"water":  5,
		"wood":   6,
		"leaves": 7,
		"glass":  8,
	} {
		c.byName[name] = id
		c.byID[id] = name
	}
	return c
}

// LoadCatalog reads a YAML file mapping block names to numeric ids.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("reading block catalog failed").
			WithTag("path", path).
			Wrap(err)
	}

	var entries map[string]uint32
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, errors.New("parsing block catalog failed").
			WithTag("path", path).
			Wrap(err)
	}

	c := newCatalog()
	for name, id := range entries {
		if other, ok := c.byID[BlockTypeID(id)]; ok {
			return nil, errors.New("duplicate block id in catalog").
				WithTag("path", path).
				WithTag("id", id).
				WithTag("names", []string{other, name})
		}
		c.byName[name] = BlockTypeID(id)
		c.byID[BlockTypeID(id)] = name
	}
	return c, nil
}

func newCatalog() *Catalog {
	return &Catalog{
		byName: make(map[string]BlockTypeID),
		byID:   make(map[BlockTypeID]string),
	}
}

// ID resolves a block name to its id.
func (c *Catalog) ID(name string) (BlockTypeID, bool) {
	id, ok := c.byName[name]
	return id, ok
}

// Name resolves a block id to its name.
func (c *Catalog) Name(id BlockTypeID) (string, bool) {
	name, ok := c.byID[id]
	return name, ok
}

// Len returns the number of registered block types.
func (c *Catalog) Len() int {
	return len(c.byName)
}

// BlockType is one catalog entry.
type BlockType struct {
	ID   BlockTypeID
	Name string
}

// Entries returns every registered block type sorted by id.
func (c *Catalog) Entries() []BlockType {
	entries := make([]BlockType, 0, len(c.byID))
	for id, name := range c.byID {
		entries = append(entries, BlockType{ID: id, Name: name})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ID < entries[j].ID
	})
	return entries
}
