// Package spatial provides cache-efficient spatial data structures for
// broad-phase queries over the simulation's entity population: neighbor
// lookups for flocking, hit detection for combat, and interest queries
// for replication.
//
// All structures use preallocated slices with integer indices (not pointers)
// to minimize GC pressure and maximize cache locality.
package spatial

import (
	"math"
)

// SpatialGrid provides O(1) average spatial queries via fixed-size cells.
// Uses preallocated slices with entity handles (not pointers) for GC efficiency.
//
// Optimal cell size equals the largest query radius in common use: boid
// perception range and hit-detection range should both fit inside one or
// two cells to keep QueryRadius cheap.
//
// Memory layout: cells are stored in row-major order (cells[row*cols+col]).
type SpatialGrid struct {
	cellSize    float64
	invCellSize float64 // 1/cellSize for faster division
	cols, rows  int
	cells       [][]uint32 // cells[row*cols+col] = list of entity handles
	scratch     []uint32   // reusable buffer for query results
	maxEntities int
}

// NewSpatialGrid creates a grid for the given world bounds.
// cellSize should equal the largest query radius for optimal performance.
// maxEntities is used to preallocate cell capacity.
func NewSpatialGrid(worldWidth, worldHeight, cellSize float64, maxEntities int) *SpatialGrid {
	cols := int(math.Ceil(worldWidth / cellSize))
	rows := int(math.Ceil(worldHeight / cellSize))

	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	cells := make([][]uint32, cols*rows)
	avgPerCell := maxEntities / len(cells)
	if avgPerCell < 4 {
		avgPerCell = 4
	}
	for i := range cells {
		cells[i] = make([]uint32, 0, avgPerCell)
	}

	return &SpatialGrid{
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		cols:        cols,
		rows:        rows,
		cells:       cells,
		scratch:     make([]uint32, 0, 64),
		maxEntities: maxEntities,
	}
}

// Clear resets all cells without deallocating underlying memory.
// This is O(n) where n = number of cells, not number of entities.
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

// Insert adds an entity handle at position (x, y). O(1).
func (g *SpatialGrid) Insert(handle uint32, x, y float64) {
	idx := g.cellIndex(x, y)
	g.cells[idx] = append(g.cells[idx], handle)
}

// cellIndex computes the cell index for a position, with bounds checking.
func (g *SpatialGrid) cellIndex(x, y float64) int {
	col := int(x * g.invCellSize)
	row := int(y * g.invCellSize)

	if col < 0 {
		col = 0
	}
	if col >= g.cols {
		col = g.cols - 1
	}
	if row < 0 {
		row = 0
	}
	if row >= g.rows {
		row = g.rows - 1
	}

	return row*g.cols + col
}

// QueryRadius returns all entity handles potentially within radius of (cx, cy).
// Uses an internal scratch buffer to avoid allocation.
//
// IMPORTANT: the returned slice is reused on subsequent calls; copy it if
// you need to persist the results across a call boundary.
//
// Candidates may include entities outside the radius; callers must perform
// a precise distance check (narrow phase) before treating them as hits.
func (g *SpatialGrid) QueryRadius(cx, cy, radius float64) []uint32 {
	g.scratch = g.scratch[:0]

	minCol := int((cx - radius) * g.invCellSize)
	maxCol := int((cx + radius) * g.invCellSize)
	minRow := int((cy - radius) * g.invCellSize)
	maxRow := int((cy + radius) * g.invCellSize)

	if minCol < 0 {
		minCol = 0
	}
	if maxCol >= g.cols {
		maxCol = g.cols - 1
	}
	if minRow < 0 {
		minRow = 0
	}
	if maxRow >= g.rows {
		maxRow = g.rows - 1
	}

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			idx := row*g.cols + col
			g.scratch = append(g.scratch, g.cells[idx]...)
		}
	}

	return g.scratch
}

// Remove deletes an entity handle from the cell containing (x, y). The
// position must be the one it was inserted at; a handle not found there is
// a no-op.
func (g *SpatialGrid) Remove(handle uint32, x, y float64) {
	idx := g.cellIndex(x, y)
	cell := g.cells[idx]
	for i, h := range cell {
		if h == handle {
			cell[i] = cell[len(cell)-1]
			g.cells[idx] = cell[:len(cell)-1]
			return
		}
	}
}

// Move relocates an entity handle. It is a remove+insert only when the
// move actually crosses a cell boundary; intra-cell movement is free.
func (g *SpatialGrid) Move(handle uint32, oldX, oldY, newX, newY float64) {
	if g.cellIndex(oldX, oldY) == g.cellIndex(newX, newY) {
		return
	}
	g.Remove(handle, oldX, oldY)
	g.Insert(handle, newX, newY)
}

// QueryRectangle returns all entity handles potentially within the
// axis-aligned rectangle [minX,maxX]x[minY,maxY]. Same contract as
// QueryRadius: the scratch buffer is reused, false positives are possible,
// false negatives are not.
func (g *SpatialGrid) QueryRectangle(minX, minY, maxX, maxY float64) []uint32 {
	g.scratch = g.scratch[:0]

	minCol := int(minX * g.invCellSize)
	maxCol := int(maxX * g.invCellSize)
	minRow := int(minY * g.invCellSize)
	maxRow := int(maxY * g.invCellSize)

	if minCol < 0 {
		minCol = 0
	}
	if maxCol >= g.cols {
		maxCol = g.cols - 1
	}
	if minRow < 0 {
		minRow = 0
	}
	if maxRow >= g.rows {
		maxRow = g.rows - 1
	}

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			g.scratch = append(g.scratch, g.cells[row*g.cols+col]...)
		}
	}

	return g.scratch
}

// Rebuild clears the grid and reinserts every (handle, x, y) triple. When
// most entities moved since last tick this is cheaper than N Move calls.
func (g *SpatialGrid) Rebuild(entries []GridEntry) {
	g.Clear()
	for _, e := range entries {
		g.Insert(e.Handle, e.X, e.Y)
	}
}

// GridEntry is one (handle, position) pair for Rebuild.
type GridEntry struct {
	Handle uint32
	X, Y   float64
}

// QueryCell returns all entity handles in the cell containing (x, y).
func (g *SpatialGrid) QueryCell(x, y float64) []uint32 {
	idx := g.cellIndex(x, y)
	return g.cells[idx]
}

// GridStats contains grid statistics for debugging and metrics export.
type GridStats struct {
	TotalCells     int
	NonEmptyCells  int
	TotalEntities  int
	MaxInCell      int
	AvgPerNonEmpty float64
}

// Stats returns grid statistics for debugging/profiling.
func (g *SpatialGrid) Stats() GridStats {
	var totalEntities, maxInCell, nonEmpty int
	for _, cell := range g.cells {
		count := len(cell)
		totalEntities += count
		if count > maxInCell {
			maxInCell = count
		}
		if count > 0 {
			nonEmpty++
		}
	}

	avgPerCell := 0.0
	if nonEmpty > 0 {
		avgPerCell = float64(totalEntities) / float64(nonEmpty)
	}

	return GridStats{
		TotalCells:     len(g.cells),
		NonEmptyCells:  nonEmpty,
		TotalEntities:  totalEntities,
		MaxInCell:      maxInCell,
		AvgPerNonEmpty: avgPerCell,
	}
}

// Dimensions returns the grid dimensions.
func (g *SpatialGrid) Dimensions() (cols, rows int, cellSize float64) {
	return g.cols, g.rows, g.cellSize
}
