package world

// BlockTypeID identifies the contents of a voxel cell. The routing layer
// never inspects it.
type BlockTypeID uint32

// Air is the id of an empty cell and the zero value of generated space.
const Air BlockTypeID = 0

// Filter accepts or rejects replacing a cell's current block with a new
// one. A nil Filter accepts everything.
type Filter func(current, replacement BlockTypeID) bool

// ReplaceOnly returns a filter that only allows writes over the given
// block type. Used by bulk replacements that must not clobber foreign
// blocks.
func ReplaceOnly(current BlockTypeID) Filter {
	return func(c, _ BlockTypeID) bool {
		return c == current
	}
}
