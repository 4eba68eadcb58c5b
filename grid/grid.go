// Package grid holds the pure geometry of an N×N chunk: neighbour lookup,
// border classification and the adjacency pairs across a chunk seam.
package grid

import "fmt"

// Point is a coordinate, either tile-local or in chunk space.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Add offsets p by one step in direction d.
func (p Point) Add(d Direction) Point {
	return Point{X: p.X + d.DX, Y: p.Y + d.DY}
}

// Direction is one of the 8 compass steps between chunks.
type Direction struct {
	DX int `json:"dx"`
	DY int `json:"dy"`
}

// Opposite returns the direction pointing back.
func (d Direction) Opposite() Direction {
	return Direction{DX: -d.DX, DY: -d.DY}
}

// Diagonal reports whether d moves along both axes.
func (d Direction) Diagonal() bool {
	return d.DX != 0 && d.DY != 0
}

// Valid reports whether d is one of the 8 compass steps.
func (d Direction) Valid() bool {
	return (d.DX != 0 || d.DY != 0) && d.DX >= -1 && d.DX <= 1 && d.DY >= -1 && d.DY <= 1
}

// Index maps d to a stable slot in [0, 8).
func (d Direction) Index() int {
	i := (d.DY+1)*3 + (d.DX + 1)
	if i > 4 {
		i--
	}
	return i
}

func (d Direction) String() string {
	return fmt.Sprintf("%d,%d", d.DX, d.DY)
}

// Directions lists the 8 neighbouring chunk steps.
var Directions = [8]Direction{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

// neighborOffsets is the fixed enumeration order used everywhere a tile's
// neighbours are walked: left, left-up, left-down, right, right-up,
// right-down, up, down.
var neighborOffsets = [8]Direction{
	{-1, 0}, {-1, -1}, {-1, 1},
	{1, 0}, {1, -1}, {1, 1},
	{0, -1}, {0, 1},
}

// Offsets returns the neighbour enumeration order.
func Offsets() [8]Direction {
	return neighborOffsets
}

// InBounds reports whether (x, y) lies inside a size×size chunk.
func InBounds(x, y, size int) bool {
	return x >= 0 && x < size && y >= 0 && y < size
}

// Neighbors returns the in-bounds neighbours of (x, y), fewer on edges and
// corners, in the fixed enumeration order.
func Neighbors(x, y, size int) []Point {
	out := make([]Point, 0, 8)
	for _, o := range neighborOffsets {
		nx, ny := x+o.DX, y+o.DY
		if InBounds(nx, ny, size) {
			out = append(out, Point{X: nx, Y: ny})
		}
	}
	return out
}

// EdgeWeight counts the neighbour slots of (x, y) that fall outside the
// chunk: 3 per border the tile sits on, minus the shared diagonal on a corner.
func EdgeWeight(size, x, y int) int {
	if size == 1 {
		return 8
	}
	count := 0
	if x == 0 || x == size-1 {
		count += 3
	}
	if y == 0 || y == size-1 {
		count += 3
	}
	if count == 6 {
		count--
	}
	return count
}

// Outside resolves a coordinate one step beyond the chunk to the neighbouring
// chunk it belongs to and its local coordinate there. ok is false when (x, y)
// is inside the chunk.
func Outside(size, x, y int) (d Direction, local Point, ok bool) {
	if InBounds(x, y, size) {
		return Direction{}, Point{}, false
	}
	switch {
	case x < 0:
		d.DX = -1
	case x >= size:
		d.DX = 1
	}
	switch {
	case y < 0:
		d.DY = -1
	case y >= size:
		d.DY = 1
	}
	return d, Point{X: x - d.DX*size, Y: y - d.DY*size}, true
}

// Pair is one tile adjacency across a seam: Near lives in this chunk, Far in
// the neighbouring chunk.
type Pair struct {
	Near Point
	Far  Point
}

// Seam lists every adjacency between this chunk and the chunk at direction d,
// walking the shared border. An axis seam has 3·size−2 pairs, a diagonal one.
func Seam(size int, d Direction) []Pair {
	if !d.Valid() {
		return nil
	}
	var border []Point
	switch {
	case d.Diagonal():
		border = []Point{{X: cornerCoord(size, d.DX), Y: cornerCoord(size, d.DY)}}
	case d.DX != 0:
		x := cornerCoord(size, d.DX)
		for y := 0; y < size; y++ {
			border = append(border, Point{X: x, Y: y})
		}
	default:
		y := cornerCoord(size, d.DY)
		for x := 0; x < size; x++ {
			border = append(border, Point{X: x, Y: y})
		}
	}

	pairs := make([]Pair, 0, len(border)*3)
	for _, p := range border {
		for _, o := range neighborOffsets {
			od, far, ok := Outside(size, p.X+o.DX, p.Y+o.DY)
			if ok && od == d {
				pairs = append(pairs, Pair{Near: p, Far: far})
			}
		}
	}
	return pairs
}

func cornerCoord(size, step int) int {
	if step < 0 {
		return 0
	}
	return size - 1
}
