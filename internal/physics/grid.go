package physics

import "lockstep/internal/fixed"

// CellSize is the spatial grid cell edge: 64 world units in Q16.16.
const CellSize = fixed.Fixed(64 << fixed.FractionBits)

// grid is a uniform spatial hash over fixed-point space. Buckets are
// preallocated row-major slices cleared in place each tick (length
// reset, capacity kept), and bucket order is (row, col) ascending,
// which is the canonical traversal for the pair pass.
type grid struct {
	cols, rows int
	cells      [][]int32
}

func newGrid(worldW, worldH fixed.Fixed) *grid {
	cols := cellCoord(worldW) + 1
	rows := cellCoord(worldH) + 1
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	cells := make([][]int32, cols*rows)
	for i := range cells {
		cells[i] = make([]int32, 0, 4)
	}
	return &grid{cols: cols, rows: rows, cells: cells}
}

// cellCoord maps a fixed-point coordinate to its cell index.
func cellCoord(v fixed.Fixed) int {
	return int(v.Raw() >> (6 + fixed.FractionBits)) // /64 on the integer part
}

func (g *grid) clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

// insert appends an entity id to the bucket containing (x, y).
// Callers insert in id-ascending order, so each bucket list is ordered.
func (g *grid) insert(id int32, x, y fixed.Fixed) {
	col := g.clampCol(cellCoord(x))
	row := g.clampRow(cellCoord(y))
	idx := row*g.cols + col
	g.cells[idx] = append(g.cells[idx], id)
}

func (g *grid) clampCol(c int) int {
	if c < 0 {
		return 0
	}
	if c >= g.cols {
		return g.cols - 1
	}
	return c
}

func (g *grid) clampRow(r int) int {
	if r < 0 {
		return 0
	}
	if r >= g.rows {
		return g.rows - 1
	}
	return r
}

// bucket returns the ids in cell (row, col), or nil out of range.
func (g *grid) bucket(row, col int) []int32 {
	if row < 0 || row >= g.rows || col < 0 || col >= g.cols {
		return nil
	}
	return g.cells[row*g.cols+col]
}
