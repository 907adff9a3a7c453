package prover

import "fmt"

// Atom is a linear atom: the value of Base plus Offset.
type Atom struct {
	Base   Node
	Offset int64
}

func (a Atom) String() string {
	switch {
	case a.Offset > 0:
		return fmt.Sprintf("%s + %d", a.Base, a.Offset)
	case a.Offset < 0:
		return fmt.Sprintf("%s - %d", a.Base, -a.Offset)
	default:
		return a.Base.String()
	}
}

func isLengthLike(op Op) bool {
	return op.IsLength() || op == OpHigh
}

// unwrap returns the trailing value of statement-list wrappers.
func unwrap(n Node) Node {
	for n != nil && n.Kind() == KindList {
		args := n.Operands()
		if len(args) == 0 {
			return nil
		}
		n = args[len(args)-1]
	}
	return n
}

func isTrackableSym(s Symbol) bool {
	if s == nil {
		return false
	}
	switch s.Kind() {
	case SymLet, SymTemp, SymLoopVar:
		return true
	case SymParam:
		return !s.ByRef()
	default:
		return false
	}
}

// trackable reports whether n denotes a quantity the prover can treat as
// an opaque variable: an immutable binding, or the length of one.
func trackable(n Node) bool {
	switch n.Kind() {
	case KindSym:
		return isTrackableSym(n.Symbol())
	case KindCall:
		if isLengthLike(n.Op()) {
			args := n.Operands()
			return len(args) == 1 && args[0].Kind() == KindSym && isTrackableSym(args[0].Symbol())
		}
	}
	return false
}

func isMin(n Node) bool {
	return n.Kind() == KindCall && n.Op() == OpMinI && len(n.Operands()) == 2
}

// trackableOrMin also admits min(p, q) over trackable-or-min operands.
func trackableOrMin(n Node) bool {
	if n == nil {
		return false
	}
	if isMin(n) {
		args := n.Operands()
		return trackableOrMin(unwrap(args[0])) && trackableOrMin(unwrap(args[1]))
	}
	return trackable(n)
}

// literalValue folds integer literals and references to constants whose
// initializer is itself literal.
func literalValue(n Node) (int64, bool) {
	return literalDepth(n, 0)
}

const maxConstChain = 64

func literalDepth(n Node, depth int) (int64, bool) {
	n = unwrap(n)
	if n == nil || depth > maxConstChain {
		return 0, false
	}
	switch n.Kind() {
	case KindLit:
		return n.Value(), true
	case KindSym:
		s := n.Symbol()
		if s == nil || s.Kind() != SymConst || s.Init() == nil {
			return 0, false
		}
		return literalDepth(s.Init(), depth+1)
	}
	return 0, false
}

// highAdjust is -1 for high(x), which shares the VarID of len(x).
func highAdjust(n Node) int64 {
	if n.Kind() == KindCall && n.Op() == OpHigh {
		return -1
	}
	return 0
}

// extractPrimitive decomposes n into a base quantity plus a constant.
// Only u + lit, lit + u, u - lit, succ(u), pred(u) and a bare u are
// recognized, where u is trackable or a min.
func extractPrimitive(n Node) (Atom, bool) {
	n = unwrap(n)
	if n == nil {
		return Atom{}, false
	}
	if trackableOrMin(n) {
		return Atom{Base: n, Offset: highAdjust(n)}, true
	}
	if n.Kind() != KindCall {
		return Atom{}, false
	}
	args := n.Operands()
	switch n.Op() {
	case OpAddI, OpAddF:
		if len(args) != 2 {
			return Atom{}, false
		}
		u, v := unwrap(args[0]), unwrap(args[1])
		if trackableOrMin(u) {
			if lit, ok := literalValue(v); ok {
				return offsetAtom(u, lit)
			}
		}
		if trackableOrMin(v) {
			if lit, ok := literalValue(u); ok {
				return offsetAtom(v, lit)
			}
		}
	case OpSubI, OpSubF:
		if len(args) != 2 {
			return Atom{}, false
		}
		u := unwrap(args[0])
		if trackableOrMin(u) {
			if lit, ok := literalValue(args[1]); ok && lit != minInt64 {
				return offsetAtom(u, -lit)
			}
		}
	case OpSucc, OpPred:
		if len(args) != 1 {
			return Atom{}, false
		}
		u := unwrap(args[0])
		if trackableOrMin(u) {
			if n.Op() == OpSucc {
				return offsetAtom(u, 1)
			}
			return offsetAtom(u, -1)
		}
	}
	return Atom{}, false
}

func offsetAtom(base Node, c int64) (Atom, bool) {
	off, ok := addInt(c, highAdjust(base))
	if !ok {
		return Atom{}, false
	}
	return Atom{Base: base, Offset: off}, true
}
