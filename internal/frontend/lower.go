// Package frontend lowers Go syntax into prover expressions and decides
// which variables the prover may treat as immutable.
package frontend

import (
	"go/ast"
	"go/constant"
	"go/token"
	"go/types"
	"math"
	"strconv"

	"github.com/gnolang/boundprove/internal/prover"
)

// Lowerer converts Go expressions into prover nodes. Anything it cannot
// represent becomes an opaque, untracked symbol, so callers never see nil.
type Lowerer struct {
	res Resolver
}

// NewLowerer creates a Lowerer that resolves identifiers through res.
func NewLowerer(res Resolver) *Lowerer {
	return &Lowerer{res: res}
}

// Expr lowers e.
func (l *Lowerer) Expr(e ast.Expr) prover.Node {
	if id, ok := e.(*ast.Ident); ok {
		return l.ident(id)
	}
	if v, ok := l.constValue(e); ok {
		return prover.Lit(v)
	}

	switch x := e.(type) {
	case *ast.ParenExpr:
		return prover.List(l.Expr(x.X))
	case *ast.BasicLit:
		if x.Kind == token.INT {
			if v, err := strconv.ParseInt(x.Value, 0, 64); err == nil {
				return prover.Lit(v)
			}
		}
	case *ast.UnaryExpr:
		switch x.Op {
		case token.NOT:
			return prover.Not(l.Expr(x.X))
		case token.SUB:
			if lit, ok := x.X.(*ast.BasicLit); ok && lit.Kind == token.INT {
				if v, err := strconv.ParseInt("-"+lit.Value, 0, 64); err == nil {
					return prover.Lit(v)
				}
			}
		case token.ADD:
			return l.Expr(x.X)
		}
	case *ast.BinaryExpr:
		return l.binary(x)
	case *ast.CallExpr:
		return l.call(x)
	}
	return opaque(e)
}

func (l *Lowerer) ident(id *ast.Ident) prover.Node {
	if sym := l.res.Symbol(id); sym != nil {
		return prover.Ref(sym)
	}
	if v, ok := l.constValue(id); ok {
		return prover.Lit(v)
	}
	switch id.Name {
	case "true":
		return prover.Lit(1)
	case "false":
		return prover.Lit(0)
	}
	return opaque(id)
}

func (l *Lowerer) binary(x *ast.BinaryExpr) prover.Node {
	switch x.Op {
	case token.LAND:
		return prover.And(l.Expr(x.X), l.Expr(x.Y))
	case token.LOR:
		return prover.Or(l.Expr(x.X), l.Expr(x.Y))
	case token.ADD, token.SUB:
		// Float sums round and integer sums wrap, so only offsets that
		// provably stay in range are linear.
		d, ok := l.arithDomain(x)
		if !ok || d == prover.DomainFloat || !l.wrapFree(x, d) {
			return opaque(x)
		}
		op := prover.OpAddI
		if x.Op == token.SUB {
			op = prover.OpSubI
		}
		return prover.Call(op, l.Expr(x.X), l.Expr(x.Y))
	}

	d, ok := l.compareDomain(x.X, x.Y)
	if !ok {
		return opaque(x)
	}
	a, b := l.Expr(x.X), l.Expr(x.Y)
	switch x.Op {
	case token.LSS:
		return prover.Call(prover.LtOp(d), a, b)
	case token.LEQ:
		return prover.Call(prover.LeOp(d), a, b)
	case token.GTR:
		return prover.Call(prover.LtOp(d), b, a)
	case token.GEQ:
		return prover.Call(prover.LeOp(d), b, a)
	case token.EQL:
		return prover.Call(prover.EqOp(d), a, b)
	case token.NEQ:
		return prover.Not(prover.Call(prover.EqOp(d), a, b))
	}
	return opaque(x)
}

func (l *Lowerer) call(x *ast.CallExpr) prover.Node {
	name, ok := l.Builtin(x.Fun)
	if !ok || x.Ellipsis.IsValid() {
		return opaque(x)
	}
	switch {
	case name == "len" && len(x.Args) == 1:
		if n, ok := l.Len(x.Args[0]); ok {
			return n
		}
	case name == "min" && len(x.Args) == 2:
		if d, ok := l.typeDomain(x); ok && (d == prover.DomainInt || d == prover.DomainUint) {
			return prover.Min(l.Expr(x.Args[0]), l.Expr(x.Args[1]))
		}
	}
	return opaque(x)
}

// Len lowers the length of the collection x. It fails for maps, channels
// and anything that is not a plain identifier or has a constant length.
func (l *Lowerer) Len(x ast.Expr) (prover.Node, bool) {
	x = ast.Unparen(x)
	tv, typed := l.res.TypeAndValue(x)
	if typed {
		if tv.Value != nil && tv.Value.Kind() == constant.String {
			return prover.Lit(int64(len(constant.StringVal(tv.Value)))), true
		}
		if n, ok := arrayLen(tv.Type); ok {
			return prover.Lit(n), true
		}
	}
	id, ok := x.(*ast.Ident)
	if !ok {
		return nil, false
	}
	op := prover.OpLenSeq
	if typed {
		switch t := tv.Type.Underlying().(type) {
		case *types.Slice:
		case *types.Basic:
			if t.Info()&types.IsString == 0 {
				return nil, false
			}
			op = prover.OpLenStr
		default:
			return nil, false
		}
	}
	sym := l.res.Symbol(id)
	if sym == nil {
		return nil, false
	}
	return prover.Call(op, prover.Ref(sym)), true
}

// Indexable reports whether x[i] is a bounds-checked access: x is a slice,
// string, array or pointer to array. Without type information every
// operand is assumed indexable.
func (l *Lowerer) Indexable(x ast.Expr) bool {
	tv, ok := l.res.TypeAndValue(ast.Unparen(x))
	if !ok || tv.Type == nil {
		return !ok
	}
	if _, ok := arrayLen(tv.Type); ok {
		return true
	}
	switch t := tv.Type.Underlying().(type) {
	case *types.Slice:
		return true
	case *types.Basic:
		return t.Info()&types.IsString != 0
	}
	return false
}

func arrayLen(t types.Type) (int64, bool) {
	if t == nil {
		return 0, false
	}
	u := t.Underlying()
	if p, ok := u.(*types.Pointer); ok {
		u = p.Elem().Underlying()
	}
	if a, ok := u.(*types.Array); ok {
		return a.Len(), true
	}
	return 0, false
}

// Builtin reports whether fun names a predeclared function and which one.
func (l *Lowerer) Builtin(fun ast.Expr) (string, bool) {
	id, ok := ast.Unparen(fun).(*ast.Ident)
	if !ok {
		return "", false
	}
	if tv, ok := l.res.TypeAndValue(fun); ok {
		return id.Name, tv.IsBuiltin()
	}
	return id.Name, id.Name == "len" || id.Name == "min" || id.Name == "panic"
}

func (l *Lowerer) constValue(e ast.Expr) (int64, bool) {
	tv, ok := l.res.TypeAndValue(e)
	if !ok {
		return 0, false
	}
	return constInt(tv.Value)
}

// Domain classifies the value domain of e. Without type information every
// expression is an int.
func (l *Lowerer) Domain(e ast.Expr) (prover.Domain, bool) {
	return l.typeDomain(e)
}

// typeDomain classifies the basic type of e.
func (l *Lowerer) typeDomain(e ast.Expr) (prover.Domain, bool) {
	tv, ok := l.res.TypeAndValue(e)
	if !ok || tv.Type == nil {
		return prover.DomainInt, !ok
	}
	b, ok := tv.Type.Underlying().(*types.Basic)
	if !ok {
		return 0, false
	}
	info := b.Info()
	switch {
	case info&types.IsFloat != 0:
		return prover.DomainFloat, true
	case info&types.IsUnsigned != 0:
		return prover.DomainUint, true
	case info&types.IsInteger != 0:
		return prover.DomainInt, true
	case info&types.IsBoolean != 0:
		return prover.DomainBool, true
	}
	return 0, false
}

func (l *Lowerer) arithDomain(x *ast.BinaryExpr) (prover.Domain, bool) {
	d, ok := l.typeDomain(x)
	if !ok || d == prover.DomainBool {
		return 0, false
	}
	return d, true
}

// wrapFree reports whether the integer sum or difference x equals its
// mathematical value. With fixed-width integers that is known for
//
//	len(s) - c         0 <= len(s) <= max int
//	k - c, k + 1       k a range key, 0 <= k < n, n of k's type
//
// with c a non-negative constant. Everything else may wrap.
func (l *Lowerer) wrapFree(x *ast.BinaryExpr, d prover.Domain) bool {
	if !l.res.FixedWidth() {
		return true
	}
	base, off, ok := l.offset(x)
	if !ok {
		return false
	}
	if off == 0 {
		return true
	}
	base = ast.Unparen(base)
	if call, ok := base.(*ast.CallExpr); ok {
		name, ok := l.Builtin(call.Fun)
		return ok && name == "len" && off < 0
	}
	id, ok := base.(*ast.Ident)
	if !ok || !l.res.RangeKey(id) {
		return false
	}
	if d == prover.DomainUint {
		return off == 1
	}
	return off <= 1
}

// offset splits x into a non-constant operand and the constant added to it.
func (l *Lowerer) offset(x *ast.BinaryExpr) (ast.Expr, int64, bool) {
	if c, ok := l.constValue(x.Y); ok {
		if x.Op == token.SUB {
			if c == math.MinInt64 {
				return nil, 0, false
			}
			c = -c
		}
		return x.X, c, true
	}
	if c, ok := l.constValue(x.X); ok && x.Op == token.ADD {
		return x.Y, c, true
	}
	return nil, 0, false
}

// compareDomain picks the operand domain of a comparison, preferring the
// typed side when the other is an untyped constant.
func (l *Lowerer) compareDomain(a, b ast.Expr) (prover.Domain, bool) {
	for _, e := range []ast.Expr{a, b} {
		tv, ok := l.res.TypeAndValue(e)
		if !ok {
			continue
		}
		if bt, ok := tv.Type.(*types.Basic); ok && bt.Info()&types.IsUntyped != 0 {
			continue
		}
		return l.typeDomain(e)
	}
	return l.typeDomain(a)
}

func opaque(e ast.Expr) prover.Node {
	return prover.Ref(&prover.Sym{SymName: types.ExprString(e), Class: prover.SymOther})
}
