package prover

import (
	"fmt"

	"go.uber.org/zap"
)

// Observer receives counts of recorded facts and attempted proofs.
type Observer interface {
	FactRecorded(shape Shape)
	ProofAttempted(proven bool)
}

// Option configures a Context.
type Option func(*Context)

// WithLogger logs every recorded fact and proof outcome at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Context) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver installs an Observer.
func WithObserver(o Observer) Option {
	return func(c *Context) {
		c.observer = o
	}
}

// Context accumulates facts for one analysis scope, typically a function
// body. It is not safe for concurrent use.
type Context struct {
	reg      *Registry
	store    Store
	logger   *zap.Logger
	observer Observer
}

// State is a checkpoint of a Context's fact sequences.
type State struct {
	owner    *Context
	varVar   int
	varConst int
	constVar int
}

// NewContext creates an empty proof context.
func NewContext(opts ...Option) *Context {
	c := &Context{
		reg:    NewRegistry(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Context) record(f Fact) {
	c.store.add(f)
	if c.observer != nil {
		c.observer.FactRecorded(f.Shape)
	}
	if ce := c.logger.Check(zap.DebugLevel, "fact recorded"); ce != nil {
		ce.Write(zap.String("fact", c.FormatFact(f)), zap.Stringer("shape", f.Shape))
	}
}

func (c *Context) recorder() *translator {
	return &translator{ctx: c, emit: c.record}
}

// AddFact records what is known when n evaluates to !negated.
func (c *Context) AddFact(n Node, negated bool) {
	c.recorder().fact(n, negated)
}

// AddFactLe records a <= b.
func (c *Context) AddFactLe(a, b Node) {
	c.recorder().le(a, b, 0)
}

// AddFactLt records a < b, stored as a <= b - 1.
func (c *Context) AddFactLt(a, b Node) {
	c.recorder().le(a, b, -1)
}

// AddAsgnFact records a == b right after the assignment a := b.
func (c *Context) AddAsgnFact(a, b Node) {
	t := c.recorder()
	t.le(a, b, 0)
	t.le(b, a, 0)
}

// RecordState returns a checkpoint for Rollback.
func (c *Context) RecordState() State {
	return State{
		owner:    c,
		varVar:   len(c.store.varVar),
		varConst: len(c.store.varConst),
		constVar: len(c.store.constVar),
	}
}

// Rollback discards every fact recorded after s was taken. The registry
// is kept. It panics when s belongs to another context or is newer than
// the current contents, both of which are caller bugs.
func (c *Context) Rollback(s State) {
	if s.owner != c {
		panic("prover: rollback to a state of another context")
	}
	if s.varVar > len(c.store.varVar) || s.varConst > len(c.store.varConst) || s.constVar > len(c.store.constVar) {
		panic(fmt.Sprintf("prover: rollback to a state ahead of the context (%d/%d/%d > %d/%d/%d)",
			s.varVar, s.varConst, s.constVar,
			len(c.store.varVar), len(c.store.varConst), len(c.store.constVar)))
	}
	c.store.truncate(s.varVar, s.varConst, s.constVar)
}

// entails reports whether a <= b + adj follows from the stored facts.
// Every candidate the decomposition produces must be implied, and an empty
// decomposition proves nothing.
func (c *Context) entails(a, b Node, adj int64) bool {
	var candidates []Fact
	t := &translator{ctx: c, query: true}
	t.emit = func(f Fact) { candidates = append(candidates, f) }
	t.le(a, b, adj)
	if t.poisoned || len(candidates) == 0 {
		return false
	}
	for _, f := range candidates {
		if !c.store.Implies(f) {
			return false
		}
	}
	return true
}

// ProveLe reports whether a <= b is entailed by the current facts. It does
// not modify the context.
func (c *Context) ProveLe(a, b Node) bool {
	ok := c.entails(a, b, 0)
	c.proofDone(ok, a, b)
	return ok
}

// Prove reports whether the boolean condition n is known to evaluate to
// !negated. Conjunctions need every part proven, disjunctions one part.
func (c *Context) Prove(n Node, negated bool) bool {
	ok := c.prove(n, negated)
	c.proofDone(ok, n, nil)
	return ok
}

func (c *Context) prove(n Node, negated bool) bool {
	n = unwrap(n)
	if n == nil || n.Kind() != KindCall {
		return false
	}
	args := n.Operands()
	switch n.Op() {
	case OpAnd, OpOr:
		if len(args) != 2 {
			return false
		}
		// and under negation behaves like or, and vice versa.
		if (n.Op() == OpAnd) != negated {
			return c.prove(args[0], negated) && c.prove(args[1], negated)
		}
		return c.prove(args[0], negated) || c.prove(args[1], negated)
	case OpNot:
		return len(args) == 1 && c.prove(args[0], !negated)
	}
	rel, dom := n.Op().comparison()
	if rel == relNone || len(args) != 2 {
		return false
	}
	// NaN fails every float comparison, x == x included.
	if dom == DomainFloat {
		return false
	}
	p, q := args[0], args[1]
	switch rel {
	case relLe:
		if negated {
			return c.entails(q, p, -1)
		}
		return c.entails(p, q, 0)
	case relLt:
		if negated {
			return c.entails(q, p, 0)
		}
		return c.entails(p, q, -1)
	case relEq:
		if negated {
			return c.entails(p, q, -1) || c.entails(q, p, -1)
		}
		return c.entails(p, q, 0) && c.entails(q, p, 0)
	}
	return false
}

func (c *Context) proofDone(ok bool, a, b Node) {
	if c.observer != nil {
		c.observer.ProofAttempted(ok)
	}
	if ce := c.logger.Check(zap.DebugLevel, "proof attempted"); ce != nil {
		fields := []zap.Field{zap.Bool("proven", ok), zap.Int("facts", c.store.Len())}
		if a != nil {
			fields = append(fields, zap.Stringer("lhs", a))
		}
		if b != nil {
			fields = append(fields, zap.Stringer("rhs", b))
		}
		ce.Write(fields...)
	}
}

// Facts returns the facts currently in scope.
func (c *Context) Facts() []Fact {
	return c.store.Facts()
}

// Len is the number of facts currently in scope.
func (c *Context) Len() int {
	return c.store.Len()
}

// VarName returns the label of a tracked quantity.
func (c *Context) VarName(id VarID) string {
	return c.reg.Label(id)
}

// FormatFact renders f with the labels of its variables.
func (c *Context) FormatFact(f Fact) string {
	switch f.Shape {
	case ShapeVarVar:
		switch {
		case f.C == 0:
			return fmt.Sprintf("%s <= %s", c.VarName(f.A), c.VarName(f.B))
		case f.C > 0:
			return fmt.Sprintf("%s <= %s + %d", c.VarName(f.A), c.VarName(f.B), f.C)
		default:
			return fmt.Sprintf("%s <= %s - %d", c.VarName(f.A), c.VarName(f.B), -f.C)
		}
	case ShapeVarConst:
		return fmt.Sprintf("%s <= %d", c.VarName(f.A), f.C)
	case ShapeConstVar:
		return fmt.Sprintf("%d <= %s", f.C, c.VarName(f.A))
	}
	return f.String()
}
