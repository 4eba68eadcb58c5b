package grid

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNeighborsOrder(t *testing.T) {
	got := Neighbors(3, 3, 8)
	want := []Point{
		{2, 3}, {2, 2}, {2, 4},
		{4, 3}, {4, 2}, {4, 4},
		{3, 2}, {3, 4},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Neighbors(3,3) mismatch (-want +got):\n%s", diff)
	}
}

func TestNeighborsBorders(t *testing.T) {
	tests := []struct {
		x, y, size int
		want       int
	}{
		{0, 0, 8, 3},
		{7, 7, 8, 3},
		{0, 4, 8, 5},
		{4, 7, 8, 5},
		{4, 4, 8, 8},
		{0, 0, 1, 0},
	}
	for _, tc := range tests {
		if got := len(Neighbors(tc.x, tc.y, tc.size)); got != tc.want {
			t.Errorf("len(Neighbors(%d,%d,%d)) = %d, want %d", tc.x, tc.y, tc.size, got, tc.want)
		}
	}
}

func TestEdgeWeight(t *testing.T) {
	tests := []struct {
		x, y, want int
	}{
		{0, 0, 5},
		{7, 0, 5},
		{0, 7, 5},
		{7, 7, 5},
		{0, 3, 3},
		{3, 0, 3},
		{7, 3, 3},
		{3, 7, 3},
		{3, 3, 0},
	}
	for _, tc := range tests {
		if got := EdgeWeight(8, tc.x, tc.y); got != tc.want {
			t.Errorf("EdgeWeight(8, %d, %d) = %d, want %d", tc.x, tc.y, got, tc.want)
		}
	}
	if got := EdgeWeight(1, 0, 0); got != 8 {
		t.Errorf("EdgeWeight(1, 0, 0) = %d, want 8", got)
	}
}

// Every tile's in-chunk neighbours plus its edge weight must account for all 8 slots.
func TestEdgeWeightCompletesNeighbourhood(t *testing.T) {
	for _, size := range []int{2, 3, 8} {
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				if got := len(Neighbors(x, y, size)) + EdgeWeight(size, x, y); got != 8 {
					t.Fatalf("size %d tile (%d,%d): neighbours+edges = %d", size, x, y, got)
				}
			}
		}
	}
}

func TestOutside(t *testing.T) {
	tests := []struct {
		x, y  int
		dir   Direction
		local Point
	}{
		{-1, 3, Direction{-1, 0}, Point{7, 3}},
		{8, 3, Direction{1, 0}, Point{0, 3}},
		{3, -1, Direction{0, -1}, Point{3, 7}},
		{3, 8, Direction{0, 1}, Point{3, 0}},
		{-1, -1, Direction{-1, -1}, Point{7, 7}},
		{8, 8, Direction{1, 1}, Point{0, 0}},
		{8, -1, Direction{1, -1}, Point{0, 7}},
	}
	for _, tc := range tests {
		d, local, ok := Outside(8, tc.x, tc.y)
		if !ok {
			t.Fatalf("Outside(8, %d, %d) reported inside", tc.x, tc.y)
		}
		if d != tc.dir || local != tc.local {
			t.Errorf("Outside(8, %d, %d) = %v %v, want %v %v", tc.x, tc.y, d, local, tc.dir, tc.local)
		}
	}
	if _, _, ok := Outside(8, 0, 0); ok {
		t.Error("Outside(8, 0, 0) should report inside")
	}
}

func TestSeamSizes(t *testing.T) {
	for _, d := range Directions {
		want := 3*8 - 2
		if d.Diagonal() {
			want = 1
		}
		if got := len(Seam(8, d)); got != want {
			t.Errorf("len(Seam(8, %v)) = %d, want %d", d, got, want)
		}
	}
}

// Summed over all 8 seams, each tile must receive exactly EdgeWeight slots.
func TestSeamCoversEdgeWeight(t *testing.T) {
	const size = 8
	slots := map[Point]int{}
	for _, d := range Directions {
		for _, p := range Seam(size, d) {
			slots[p.Near]++
		}
	}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if got, want := slots[Point{x, y}], EdgeWeight(size, x, y); got != want {
				t.Errorf("tile (%d,%d): %d seam slots, edge weight %d", x, y, got, want)
			}
		}
	}
}

// A seam seen from the other side is the same set of pairs, swapped.
func TestSeamSymmetry(t *testing.T) {
	for _, d := range Directions {
		forward := map[Pair]bool{}
		for _, p := range Seam(8, d) {
			forward[p] = true
		}
		back := Seam(8, d.Opposite())
		if len(back) != len(forward) {
			t.Fatalf("seam %v: %d pairs, opposite %d", d, len(forward), len(back))
		}
		for _, p := range back {
			if !forward[Pair{Near: p.Far, Far: p.Near}] {
				t.Errorf("seam %v: missing mirror of %v", d, p)
			}
		}
	}
}

func TestDirectionIndexUnique(t *testing.T) {
	seen := map[int]Direction{}
	for _, d := range Directions {
		i := d.Index()
		if i < 0 || i >= 8 {
			t.Fatalf("%v.Index() = %d out of range", d, i)
		}
		if prev, ok := seen[i]; ok {
			t.Fatalf("%v and %v share index %d", prev, d, i)
		}
		seen[i] = d
	}
}
