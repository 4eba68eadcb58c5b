package minegen

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bodul/minefield/grid"
)

func mustRule(t *testing.T, src string) *Rule {
	t.Helper()
	r, err := CompileRule(src)
	if err != nil {
		t.Fatalf("CompileRule(%q): %v", src, err)
	}
	return r
}

func TestRuleCount(t *testing.T) {
	tests := []struct {
		src  string
		at   grid.Point
		want int
	}{
		{"size", grid.Point{}, 8},
		{"", grid.Point{X: 4, Y: -2}, 8},
		{"dist < 2 ? 0 : size", grid.Point{X: 1, Y: 1}, 0},
		{"dist < 2 ? 0 : size", grid.Point{X: 3, Y: 0}, 8},
		{"size + x", grid.Point{X: 2}, 10},
		{"dist * 2", grid.Point{X: 3, Y: 4}, 10},
		{"-5", grid.Point{}, 0},
		{"1000", grid.Point{}, 63},
	}
	for _, tc := range tests {
		got, err := mustRule(t, tc.src).Count(tc.at, 8)
		if err != nil {
			t.Fatalf("Count(%q, %v): %v", tc.src, tc.at, err)
		}
		if got != tc.want {
			t.Errorf("Count(%q, %v) = %d, want %d", tc.src, tc.at, got, tc.want)
		}
	}
}

func TestRuleErrors(t *testing.T) {
	if _, err := CompileRule("size +"); err == nil {
		t.Fatal("expected a compile error for a broken expression")
	}
	if _, err := CompileRule("unknown_var * 2"); err == nil {
		t.Fatal("expected a compile error for an unknown variable")
	}
	r := mustRule(t, `"many"`)
	if _, err := r.Count(grid.Point{}, 8); err == nil {
		t.Fatal("expected an error for a non-numeric result")
	}
}

func TestRandomIsDeterministic(t *testing.T) {
	ctx := context.Background()
	a := NewRandom(8, 42, mustRule(t, "size"))
	b := NewRandom(8, 42, mustRule(t, "size"))

	for _, at := range []grid.Point{{}, {X: -3, Y: 7}, {X: 100, Y: -100}} {
		la, err := a.Create(ctx, at)
		if err != nil {
			t.Fatalf("Create(%v): %v", at, err)
		}
		lb, _ := b.Create(ctx, at)
		if diff := cmp.Diff(la, lb); diff != "" {
			t.Fatalf("layouts for %v differ (-a +b):\n%s", at, diff)
		}
		if len(la.Mines) != 8 {
			t.Fatalf("chunk %v has %d mines, want 8", at, len(la.Mines))
		}
	}

	l1, _ := a.Create(ctx, grid.Point{X: 1, Y: 0})
	l2, _ := a.Create(ctx, grid.Point{X: 0, Y: 1})
	if cmp.Equal(l1, l2) {
		t.Fatal("different chunks should get different layouts")
	}
}

func TestMinesAreDistinctAndInBounds(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for range 50 {
		pts := Mines(rng, 8, 20)
		seen := map[grid.Point]bool{}
		for _, p := range pts {
			if !grid.InBounds(p.X, p.Y, 8) {
				t.Fatalf("mine %v out of bounds", p)
			}
			if seen[p] {
				t.Fatalf("mine %v placed twice", p)
			}
			seen[p] = true
		}
		if len(pts) != 20 {
			t.Fatalf("got %d mines, want 20", len(pts))
		}
	}
}

func TestCreateHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewRandom(8, 1, nil).Create(ctx, grid.Point{}); err == nil {
		t.Fatal("expected an error from a cancelled context")
	}
}
