package boundscheck

import (
	"go/ast"
	"go/token"
	"go/types"

	"github.com/gnolang/boundprove/internal/prover"
)

// expr visits e in evaluation order, checking every index and slice
// expression it contains. The right operand of && and || is checked
// under what the left operand implies.
func (w *walker) expr(e ast.Expr) {
	switch x := e.(type) {
	case nil:
	case *ast.BinaryExpr:
		w.expr(x.X)
		if x.Op == token.LAND || x.Op == token.LOR {
			w.scoped(func() {
				w.ctx.AddFact(w.low.Expr(x.X), x.Op == token.LOR)
				w.expr(x.Y)
			})
			return
		}
		w.expr(x.Y)
	case *ast.IndexExpr:
		w.expr(x.X)
		w.expr(x.Index)
		w.index(x)
	case *ast.IndexListExpr:
		w.expr(x.X)
		for _, idx := range x.Indices {
			w.expr(idx)
		}
	case *ast.SliceExpr:
		w.expr(x.X)
		w.expr(x.Low)
		w.expr(x.High)
		w.expr(x.Max)
		if w.cfg.CheckSlices {
			w.slice(x)
		}
	case *ast.ParenExpr:
		w.expr(x.X)
	case *ast.UnaryExpr:
		w.expr(x.X)
	case *ast.StarExpr:
		w.expr(x.X)
	case *ast.SelectorExpr:
		w.expr(x.X)
	case *ast.TypeAssertExpr:
		w.expr(x.X)
	case *ast.CallExpr:
		w.expr(x.Fun)
		for _, a := range x.Args {
			w.expr(a)
		}
	case *ast.CompositeLit:
		for _, elt := range x.Elts {
			w.expr(elt)
		}
	case *ast.KeyValueExpr:
		w.expr(x.Key)
		w.expr(x.Value)
	case *ast.FuncLit:
		// captured bindings are immutable, so facts in scope still hold
		// whenever the closure runs
		w.block(x.Body.List)
	}
}

// index adds 0 <= i and i <= len(x) - 1 for x[i].
func (w *walker) index(x *ast.IndexExpr) {
	if !w.low.Indexable(x.X) {
		return
	}
	idx := w.low.Expr(x.Index)
	idxText := types.ExprString(x.Index)
	w.nonNegative(x, x.Index, idx)

	goal := idxText + " < len(" + types.ExprString(x.X) + ")"
	n, ok := w.low.Len(x.X)
	if !ok {
		w.record(x, goal, false)
		return
	}
	w.obligate(x, idx, minusOne(n), goal)
}

// slice adds the obligations of x[lo:hi:max], taking len(x) as the upper
// bound for every index.
func (w *walker) slice(x *ast.SliceExpr) {
	if !w.low.Indexable(x.X) {
		return
	}
	n, hasLen := w.low.Len(x.X)
	lenText := "len(" + types.ExprString(x.X) + ")"

	upper := func(e ast.Expr) {
		goal := types.ExprString(e) + " <= " + lenText
		if !hasLen {
			w.record(x, goal, false)
			return
		}
		w.obligate(x, w.low.Expr(e), n, goal)
	}
	pair := func(a, b ast.Expr) {
		w.obligate(x, w.low.Expr(a), w.low.Expr(b), types.ExprString(a)+" <= "+types.ExprString(b))
	}

	if x.Low != nil {
		w.nonNegative(x, x.Low, w.low.Expr(x.Low))
	}
	switch {
	case x.Max != nil:
		if x.Low != nil {
			pair(x.Low, x.High)
		}
		pair(x.High, x.Max)
		upper(x.Max)
	case x.High != nil:
		if x.Low != nil {
			pair(x.Low, x.High)
		}
		upper(x.High)
	case x.Low != nil:
		upper(x.Low)
	}
}

// nonNegative adds 0 <= e. Unsigned values satisfy it by their type.
func (w *walker) nonNegative(at ast.Node, e ast.Expr, v prover.Node) {
	goal := "0 <= " + types.ExprString(e)
	if d, ok := w.low.Domain(e); ok && d == prover.DomainUint {
		w.record(at, goal, true)
		return
	}
	w.obligate(at, prover.Lit(0), v, goal)
}

// obligate asks the prover for a <= b. Two literals are compared directly.
func (w *walker) obligate(at ast.Node, a, b prover.Node, goal string) {
	if av, ok := literal(a); ok {
		if bv, ok := literal(b); ok {
			w.record(at, goal, av <= bv)
			return
		}
	}
	w.record(at, goal, w.ctx.ProveLe(a, b))
}

func (w *walker) record(at ast.Node, goal string, proven bool) {
	ob := Obligation{
		Pos:    at.Pos(),
		End:    at.End(),
		Goal:   goal,
		Proven: proven,
	}
	if w.cfg.KeepFacts {
		ob.Facts = w.facts()
	}
	w.out.Obligations = append(w.out.Obligations, ob)
}

func literal(n prover.Node) (int64, bool) {
	for n != nil && n.Kind() == prover.KindList {
		args := n.Operands()
		if len(args) == 0 {
			return 0, false
		}
		n = args[len(args)-1]
	}
	if n == nil || n.Kind() != prover.KindLit {
		return 0, false
	}
	return n.Value(), true
}

func minusOne(n prover.Node) prover.Node {
	if v, ok := literal(n); ok && v > -1<<63 {
		return prover.Lit(v - 1)
	}
	return prover.Sub(n, prover.Lit(1))
}
