package spatial

import "math"

// unreachableCost marks cells no path reaches (walled off by obstacles).
const unreachableCost = float32(math.MaxFloat32)

// RallyField is the shared navigation field a boid group uses to converge
// on one rally point: a breadth-first cost-to-goal integration over the
// arena, queried per member in O(1). One field serves the whole group, so
// rallying N members costs one generation pass instead of N path searches.
//
// Unlike a precomputed vector field, only the cost surface is stored;
// Steer derives the downhill direction from the neighboring costs at query
// time. That halves the memory per field and means a field never holds a
// stale direction for a cell whose neighbors were unreachable.
type RallyField struct {
	cols, rows  int
	cellSize    float64
	invCellSize float64
	cost        []float32
	blocked     []bool
	frontier    []int32 // reusable BFS queue
}

// neighborSteps is the 8-connected neighborhood with diagonal step cost.
var neighborSteps = [8]struct {
	dc, dr int
	cost   float32
}{
	{-1, -1, math.Sqrt2}, {0, -1, 1}, {1, -1, math.Sqrt2},
	{-1, 0, 1}, {1, 0, 1},
	{-1, 1, math.Sqrt2}, {0, 1, 1}, {1, 1, math.Sqrt2},
}

func newRallyField(cols, rows int, cellSize float64, blocked []bool) *RallyField {
	size := cols * rows
	f := &RallyField{
		cols:        cols,
		rows:        rows,
		cellSize:    cellSize,
		invCellSize: 1 / cellSize,
		cost:        make([]float32, size),
		blocked:     make([]bool, size),
		frontier:    make([]int32, 0, size),
	}
	copy(f.blocked, blocked)
	return f
}

// generate floods cost-to-goal outward from the rally cell. Blocked cells
// and anything sealed off by them keep unreachableCost.
func (f *RallyField) generate(goalX, goalY float64) {
	for i := range f.cost {
		f.cost[i] = unreachableCost
	}

	goal := f.cellAt(goalX, goalY)
	if f.blocked[goal] {
		// A rally point stamped inside an obstacle would strand the whole
		// group; fall back to the nearest open cell in scan order.
		goal = -1
		for i, b := range f.blocked {
			if !b {
				goal = i
				break
			}
		}
		if goal < 0 {
			return
		}
	}

	f.cost[goal] = 0
	f.frontier = append(f.frontier[:0], int32(goal))

	for head := 0; head < len(f.frontier); head++ {
		idx := int(f.frontier[head])
		row, col := idx/f.cols, idx%f.cols
		here := f.cost[idx]

		for _, st := range neighborSteps {
			nc, nr := col+st.dc, row+st.dr
			if nc < 0 || nc >= f.cols || nr < 0 || nr >= f.rows {
				continue
			}
			nidx := nr*f.cols + nc
			if f.blocked[nidx] {
				continue
			}
			if next := here + st.cost; next < f.cost[nidx] {
				f.cost[nidx] = next
				f.frontier = append(f.frontier, int32(nidx))
			}
		}
	}
}

// cellAt maps a world position to a cell index, clamped into the field.
func (f *RallyField) cellAt(x, y float64) int {
	col := int(x * f.invCellSize)
	row := int(y * f.invCellSize)
	if col < 0 {
		col = 0
	} else if col >= f.cols {
		col = f.cols - 1
	}
	if row < 0 {
		row = 0
	} else if row >= f.rows {
		row = f.rows - 1
	}
	return row*f.cols + col
}

// Steer returns the unit direction from (x, y) toward the rally point,
// descending the cost surface through the cheapest reachable neighbor.
// Returns (0, 0) at the goal itself, from unreachable cells, and from
// inside obstacles — callers treat that as "no rally pull".
func (f *RallyField) Steer(x, y float64) (dx, dy float64) {
	idx := f.cellAt(x, y)
	here := f.cost[idx]
	if here == unreachableCost || here == 0 {
		return 0, 0
	}

	row, col := idx/f.cols, idx%f.cols
	best := here
	bestDC, bestDR := 0, 0
	for _, st := range neighborSteps {
		nc, nr := col+st.dc, row+st.dr
		if nc < 0 || nc >= f.cols || nr < 0 || nr >= f.rows {
			continue
		}
		if c := f.cost[nr*f.cols+nc]; c < best {
			best = c
			bestDC, bestDR = st.dc, st.dr
		}
	}
	if bestDC == 0 && bestDR == 0 {
		return 0, 0
	}
	length := math.Hypot(float64(bestDC), float64(bestDR))
	return float64(bestDC) / length, float64(bestDR) / length
}

// CostAt returns the cost-to-goal at a world position, for diagnostics and
// tests; unreachable cells report unreachableCost.
func (f *RallyField) CostAt(x, y float64) float32 {
	return f.cost[f.cellAt(x, y)]
}

// RallyFieldSet owns the per-group rally fields and the arena's obstacle
// stamp they all inherit. Fields are keyed by the group's rally key and
// built lazily on first request; a group releases its key when the rally
// ends.
type RallyFieldSet struct {
	cols, rows int
	cellSize   float64
	blocked    []bool // obstacle stamp shared by every field
	fields     map[string]*RallyField
}

// NewRallyFieldSet creates an empty set over the arena. Stamp obstacles
// with AddObstacle before the first field is requested.
func NewRallyFieldSet(worldWidth, worldHeight, cellSize float64) *RallyFieldSet {
	if cellSize <= 0 {
		cellSize = 50
	}
	cols := int(math.Ceil(worldWidth / cellSize))
	rows := int(math.Ceil(worldHeight / cellSize))
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	return &RallyFieldSet{
		cols:     cols,
		rows:     rows,
		cellSize: cellSize,
		blocked:  make([]bool, cols*rows),
		fields:   make(map[string]*RallyField),
	}
}

// AddObstacle stamps a static rectangular collider into the shared blocked
// mask. Fields created afterward route around it; the simulation spawns all
// obstacles before any group rallies, so existing fields are not retrofit.
func (s *RallyFieldSet) AddObstacle(centerX, centerY, halfX, halfY float64) {
	minCol := int((centerX - halfX) / s.cellSize)
	maxCol := int((centerX + halfX) / s.cellSize)
	minRow := int((centerY - halfY) / s.cellSize)
	maxRow := int((centerY + halfY) / s.cellSize)

	if minCol < 0 {
		minCol = 0
	}
	if maxCol >= s.cols {
		maxCol = s.cols - 1
	}
	if minRow < 0 {
		minRow = 0
	}
	if maxRow >= s.rows {
		maxRow = s.rows - 1
	}

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			s.blocked[row*s.cols+col] = true
		}
	}
}

// Toward returns the field steering to (goalX, goalY) under the given key,
// generating it on first request. A later call with the same key returns
// the cached field regardless of goal; use Release when the rally moves.
func (s *RallyFieldSet) Toward(key string, goalX, goalY float64) *RallyField {
	if field, ok := s.fields[key]; ok {
		return field
	}
	field := newRallyField(s.cols, s.rows, s.cellSize, s.blocked)
	field.generate(goalX, goalY)
	s.fields[key] = field
	return field
}

// Release drops a key's field, typically when its group stands down.
func (s *RallyFieldSet) Release(key string) {
	delete(s.fields, key)
}

// Len returns the number of live fields, for the observability gauges.
func (s *RallyFieldSet) Len() int {
	return len(s.fields)
}
