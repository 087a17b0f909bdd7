package grid

import "fmt"

// Box is an axis-aligned region of voxel cells. From is inclusive, To is
// exclusive. A box with From == To on any axis contains zero cells.
type Box struct {
	From Position `json:"from"`
	To   Position `json:"to"`
}

// Valid reports whether From <= To on every axis. An invalid box must be
// rejected before it reaches decomposition.
func (b Box) Valid() bool {
	return b.From.X <= b.To.X && b.From.Y <= b.To.Y && b.From.Z <= b.To.Z
}

// Empty reports whether the box contains zero cells.
func (b Box) Empty() bool {
	return b.From.X >= b.To.X || b.From.Y >= b.To.Y || b.From.Z >= b.To.Z
}

func (b Box) Dx() int { return b.To.X - b.From.X }
func (b Box) Dy() int { return b.To.Y - b.From.Y }
func (b Box) Dz() int { return b.To.Z - b.From.Z }

// Count returns the number of cells inside the box.
func (b Box) Count() int {
	if b.Empty() {
		return 0
	}
	return b.Dx() * b.Dy() * b.Dz()
}

func (b Box) Contains(p Position) bool {
	return p.X >= b.From.X && p.X < b.To.X &&
		p.Y >= b.From.Y && p.Y < b.To.Y &&
		p.Z >= b.From.Z && p.Z < b.To.Z
}

// Index returns the canonical linear index of p within the box, with x
// varying fastest, then y, then z. Dense result buffers are addressed with
// this index.
func (b Box) Index(p Position) int {
	return ((p.Z-b.From.Z)*b.Dy()+(p.Y-b.From.Y))*b.Dx() + (p.X - b.From.X)
}

// Each calls fn for every cell of the box in canonical index order.
func (b Box) Each(fn func(Position)) {
	for z := b.From.Z; z < b.To.Z; z++ {
		for y := b.From.Y; y < b.To.Y; y++ {
			for x := b.From.X; x < b.To.X; x++ {
				fn(Position{X: x, Y: y, Z: z})
			}
		}
	}
}

func (b Box) String() string {
	return fmt.Sprintf("box[%s;%s)", b.From, b.To)
}

// Decompose splits a box into sub-boxes such that each sub-box lies
// entirely within one shard, the sub-boxes are pairwise disjoint, and
// their union is exactly the input box. The split is the cartesian product
// of the per-axis intervals between consecutive shard boundaries, so a box
// touching n shards yields exactly n sub-boxes. A box fully inside one
// shard decomposes to itself. An empty box yields nil.
func (l Layout) Decompose(b Box) []Box {
	if b.Empty() {
		return nil
	}

	xs := l.cuts(b.From.X, b.To.X)
	ys := l.cuts(b.From.Y, b.To.Y)
	zs := l.cuts(b.From.Z, b.To.Z)

	boxes := make([]Box, 0, (len(xs)-1)*(len(ys)-1)*(len(zs)-1))
	for zi := 0; zi < len(zs)-1; zi++ {
		for yi := 0; yi < len(ys)-1; yi++ {
			for xi := 0; xi < len(xs)-1; xi++ {
				boxes = append(boxes, Box{
					From: Position{X: xs[xi], Y: ys[yi], Z: zs[zi]},
					To:   Position{X: xs[xi+1], Y: ys[yi+1], Z: zs[zi+1]},
				})
			}
		}
	}
	return boxes
}

// cuts returns from, every shard boundary strictly inside (from, to), and
// to, in ascending order. A from that sits exactly on a boundary does not
// produce an extra cut, so no empty interval is ever emitted.
func (l Layout) cuts(from, to int) []int {
	span := l.ShardSpan()
	cuts := []int{from}
	for c := (floorDiv(from, span) + 1) * span; c < to; c += span {
		cuts = append(cuts, c)
	}
	return append(cuts, to)
}
