package minegen

import (
	"fmt"
	"math"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/bodul/minefield/grid"
)

// DefaultRule places one mine per row of a chunk, 8 in an 8×8 chunk.
const DefaultRule = "size"

// Env is what a mine rule can see about the chunk being generated.
type Env struct {
	X    int     `expr:"x"`
	Y    int     `expr:"y"`
	Dist float64 `expr:"dist"` // euclidean distance from the origin chunk
	Size int     `expr:"size"`
}

// Rule computes how many mines a chunk gets, e.g. "size" or
// "dist < 2 ? size / 2 : size + int(dist)".
type Rule struct {
	src     string
	program *vm.Program
}

// CompileRule parses a mine rule expression.
func CompileRule(src string) (*Rule, error) {
	if src == "" {
		src = DefaultRule
	}
	program, err := expr.Compile(src, expr.Env(Env{}))
	if err != nil {
		return nil, fmt.Errorf("compile mine rule %q: %w", src, err)
	}
	return &Rule{src: src, program: program}, nil
}

func (r *Rule) String() string { return r.src }

// Count evaluates the rule for chunk at, clamped so at least one tile of the
// chunk stays safe.
func (r *Rule) Count(at grid.Point, size int) (int, error) {
	env := Env{
		X:    at.X,
		Y:    at.Y,
		Dist: math.Hypot(float64(at.X), float64(at.Y)),
		Size: size,
	}
	out, err := expr.Run(r.program, env)
	if err != nil {
		return 0, fmt.Errorf("run mine rule %q at %v: %w", r.src, at, err)
	}

	var n int
	switch v := out.(type) {
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		n = int(math.Round(v))
	default:
		return 0, fmt.Errorf("mine rule %q returned %T, want a number", r.src, out)
	}
	return min(max(n, 0), size*size-1), nil
}
