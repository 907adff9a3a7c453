package prover

// translator turns comparisons into facts. In query mode unseen quantities
// get private negative ids so the registry is left untouched.
type translator struct {
	ctx      *Context
	emit     func(Fact)
	query    bool
	scratch  map[int64]VarID
	poisoned bool
}

func (t *translator) varOf(n Node) (VarID, bool) {
	key, ok := trackingKey(n)
	if !ok {
		return 0, false
	}
	if !t.query {
		return t.ctx.reg.VarID(key, nodeLabel(n)), true
	}
	if id, ok := t.ctx.reg.Lookup(key); ok {
		return id, true
	}
	if t.scratch == nil {
		t.scratch = make(map[int64]VarID)
	}
	id, ok := t.scratch[key]
	if !ok {
		id = VarID(-len(t.scratch) - 1)
		t.scratch[key] = id
	}
	return id, true
}

func nodeLabel(n Node) string {
	if n.Kind() == KindSym {
		return n.Symbol().Name()
	}
	return lengthLabel(n)
}

// leaf is one operand of a (possibly nested) min base, with its high adjustment.
type leaf struct {
	node Node
	adj  int64
}

// leaves flattens the base of y. A non-min base is its own single leaf
// with no extra adjustment since the atom offset already carries it.
func leaves(base Node) []leaf {
	if !isMin(base) {
		return []leaf{{node: base}}
	}
	var out []leaf
	var walk func(n Node)
	walk = func(n Node) {
		n = unwrap(n)
		if isMin(n) {
			for _, a := range n.Operands() {
				walk(a)
			}
			return
		}
		out = append(out, leaf{node: n, adj: highAdjust(n)})
	}
	walk(base)
	return out
}

// le records a <= b + adj, where adj is 0 for <= and -1 for <.
func (t *translator) le(a, b Node, adj int64) {
	a, b = unwrap(a), unwrap(b)
	if a == nil || b == nil {
		return
	}
	if lit, ok := literalValue(a); ok {
		y, ok := extractPrimitive(b)
		if !ok {
			return
		}
		// lit <= leaf + leaf.adj + y.Offset + adj
		for _, l := range leaves(y.Base) {
			c, ok := sumInts(lit, -y.Offset, -adj, -l.adj)
			if !ok {
				t.poisoned = true
				continue
			}
			t.constVar(c, l.node)
		}
		return
	}

	x, ok := extractPrimitive(a)
	if !ok || isMin(x.Base) {
		return
	}
	if lit, ok := literalValue(b); ok {
		// x + x.Offset <= lit + adj
		c, ok := sumInts(lit, adj, -x.Offset)
		if !ok {
			t.poisoned = true
			return
		}
		t.varConst(x.Base, c)
		return
	}
	y, ok := extractPrimitive(b)
	if !ok {
		return
	}
	for _, l := range leaves(y.Base) {
		// x + x.Offset <= leaf + leaf.adj + y.Offset + adj
		c, ok := sumInts(y.Offset, adj, l.adj, -x.Offset)
		if !ok {
			t.poisoned = true
			continue
		}
		t.varVar(x.Base, l.node, c)
	}
}

func (t *translator) varVar(a, b Node, c int64) {
	va, ok1 := t.varOf(a)
	vb, ok2 := t.varOf(b)
	if !ok1 || !ok2 {
		t.poisoned = true
		return
	}
	t.emit(Fact{Shape: ShapeVarVar, A: va, B: vb, C: c})
}

func (t *translator) varConst(a Node, c int64) {
	va, ok := t.varOf(a)
	if !ok {
		t.poisoned = true
		return
	}
	t.emit(Fact{Shape: ShapeVarConst, A: va, C: c})
}

func (t *translator) constVar(c int64, a Node) {
	va, ok := t.varOf(a)
	if !ok {
		t.poisoned = true
		return
	}
	t.emit(Fact{Shape: ShapeConstVar, A: va, C: c})
}

// fact interprets a boolean expression under a polarity. Shapes that carry
// no linear information are ignored.
func (t *translator) fact(n Node, negated bool) {
	n = unwrap(n)
	if n == nil || n.Kind() != KindCall {
		return
	}
	args := n.Operands()
	switch n.Op() {
	case OpAnd:
		if !negated && len(args) == 2 {
			t.fact(args[0], false)
			t.fact(args[1], false)
		}
		return
	case OpOr:
		if negated && len(args) == 2 {
			t.fact(args[0], true)
			t.fact(args[1], true)
		}
		return
	case OpNot:
		if len(args) == 1 {
			t.fact(args[0], !negated)
		}
		return
	}
	rel, dom := n.Op().comparison()
	if rel == relNone || len(args) != 2 {
		return
	}
	p, q := args[0], args[1]
	if negated && dom == DomainFloat {
		// !(p <= q) does not give q < p when either side is NaN.
		return
	}
	switch rel {
	case relLe:
		if negated {
			t.le(q, p, strictAdj(dom))
		} else {
			t.le(p, q, 0)
		}
	case relLt:
		if negated {
			t.le(q, p, 0)
		} else {
			t.le(p, q, strictAdj(dom))
		}
	case relEq:
		if !negated {
			t.le(p, q, 0)
			t.le(q, p, 0)
		}
	}
}

// strictAdj is the adjustment that turns a strict comparison into a
// non-strict one: p < q is p <= q - 1 on discrete domains, only p <= q on floats.
func strictAdj(d Domain) int64 {
	if d == DomainFloat {
		return 0
	}
	return -1
}

func sumInts(xs ...int64) (int64, bool) {
	var s int64
	for _, x := range xs {
		if x == minInt64 {
			return 0, false
		}
		var ok bool
		if s, ok = addInt(s, x); !ok {
			return 0, false
		}
	}
	return s, true
}
