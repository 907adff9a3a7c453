package prover

import (
	"fmt"
	"math"
)

const (
	minInt64 = math.MinInt64
	maxInt64 = math.MaxInt64
)

// Shape is one of the three canonical fact shapes.
type Shape int

const (
	_ Shape = iota
	// ShapeVarVar is A <= B + C.
	ShapeVarVar
	// ShapeVarConst is A <= C.
	ShapeVarConst
	// ShapeConstVar is C <= A.
	ShapeConstVar
)

func (s Shape) String() string {
	switch s {
	case ShapeVarVar:
		return "var-var"
	case ShapeVarConst:
		return "var-const"
	case ShapeConstVar:
		return "const-var"
	default:
		return "?"
	}
}

// Fact is a recorded inequality. B is unused unless Shape is ShapeVarVar.
type Fact struct {
	Shape Shape
	A     VarID
	B     VarID
	C     int64
}

func (f Fact) String() string {
	switch f.Shape {
	case ShapeVarVar:
		return fmt.Sprintf("v%d <= v%d%+d", f.A, f.B, f.C)
	case ShapeVarConst:
		return fmt.Sprintf("v%d <= %d", f.A, f.C)
	case ShapeConstVar:
		return fmt.Sprintf("%d <= v%d", f.C, f.A)
	default:
		return "?"
	}
}

// Store holds facts in three append-only sequences, one per shape.
type Store struct {
	varVar   []Fact
	varConst []Fact
	constVar []Fact
}

func (s *Store) add(f Fact) {
	switch f.Shape {
	case ShapeVarVar:
		s.varVar = append(s.varVar, f)
	case ShapeVarConst:
		s.varConst = append(s.varConst, f)
	case ShapeConstVar:
		s.constVar = append(s.constVar, f)
	}
}

// Len is the total number of facts.
func (s *Store) Len() int {
	return len(s.varVar) + len(s.varConst) + len(s.constVar)
}

// Facts returns a copy of all facts grouped by shape.
func (s *Store) Facts() []Fact {
	out := make([]Fact, 0, s.Len())
	out = append(out, s.varVar...)
	out = append(out, s.varConst...)
	out = append(out, s.constVar...)
	return out
}

func (s *Store) truncate(varVar, varConst, constVar int) {
	s.varVar = s.varVar[:varVar]
	s.varConst = s.varConst[:varConst]
	s.constVar = s.constVar[:constVar]
}

// edge is a - b <= w in the difference graph, where node 0 is the constant zero.
type edge struct {
	from, to VarID
	w        int64
}

func (s *Store) edges() []edge {
	es := make([]edge, 0, s.Len())
	for _, f := range s.varVar {
		es = append(es, edge{from: f.A, to: f.B, w: f.C})
	}
	for _, f := range s.varConst {
		es = append(es, edge{from: f.A, to: 0, w: f.C})
	}
	for _, f := range s.constVar {
		if f.C == minInt64 {
			continue
		}
		es = append(es, edge{from: 0, to: f.A, w: -f.C})
	}
	return es
}

// Implies reports whether the stored facts entail q. It is sound and
// incomplete: overflowing paths are ignored, and a reachable negative
// cycle (contradictory facts) makes it answer false.
func (s *Store) Implies(q Fact) bool {
	var from, to VarID
	var bound int64
	switch q.Shape {
	case ShapeVarVar:
		from, to, bound = q.A, q.B, q.C
	case ShapeVarConst:
		from, to, bound = q.A, 0, q.C
	case ShapeConstVar:
		if q.C == minInt64 {
			return true
		}
		from, to, bound = 0, q.A, -q.C
	default:
		return false
	}
	if from == to {
		// x <= x + c holds for any c >= 0.
		if bound >= 0 {
			return true
		}
	}
	d, ok := s.shortest(from, to)
	return ok && d <= bound
}

// shortest runs Bellman-Ford from src and returns the tightest derivable
// c with src <= dst + c.
func (s *Store) shortest(src, dst VarID) (int64, bool) {
	es := s.edges()
	if len(es) == 0 {
		return 0, false
	}
	dist := map[VarID]int64{src: 0}
	nodes := map[VarID]struct{}{src: {}}
	for _, e := range es {
		nodes[e.from] = struct{}{}
		nodes[e.to] = struct{}{}
	}
	for range len(nodes) - 1 {
		if !relax(es, dist) {
			break
		}
	}
	if relax(es, dist) {
		// negative cycle reachable from src
		return 0, false
	}
	d, ok := dist[dst]
	return d, ok
}

func relax(es []edge, dist map[VarID]int64) bool {
	changed := false
	for _, e := range es {
		du, ok := dist[e.from]
		if !ok {
			continue
		}
		nd, ok := addInt(du, e.w)
		if !ok {
			continue
		}
		if dv, ok := dist[e.to]; !ok || nd < dv {
			dist[e.to] = nd
			changed = true
		}
	}
	return changed
}

// addInt adds without wrapping.
func addInt(a, b int64) (int64, bool) {
	if (b > 0 && a > maxInt64-b) || (b < 0 && a < minInt64-b) {
		return 0, false
	}
	return a + b, true
}
