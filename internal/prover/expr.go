package prover

import (
	"strconv"
	"strings"
)

// Expr is a concrete Node used by hosts that do not have their own tree.
type Expr struct {
	kind Kind
	sym  Symbol
	val  int64
	op   Op
	args []Node
}

func (e *Expr) Kind() Kind       { return e.kind }
func (e *Expr) Symbol() Symbol   { return e.sym }
func (e *Expr) Value() int64     { return e.val }
func (e *Expr) Op() Op           { return e.op }
func (e *Expr) Operands() []Node { return e.args }

func (e *Expr) String() string {
	switch e.kind {
	case KindSym:
		if e.sym == nil {
			return "<nil>"
		}
		return e.sym.Name()
	case KindLit:
		return strconv.FormatInt(e.val, 10)
	case KindList:
		parts := make([]string, len(e.args))
		for i, a := range e.args {
			parts[i] = a.String()
		}
		return "(" + strings.Join(parts, "; ") + ")"
	case KindCall:
		return callString(e.op, e.args)
	default:
		return "?"
	}
}

func callString(op Op, args []Node) string {
	if rel, _ := op.comparison(); rel != relNone || op == OpAddI || op == OpAddF || op == OpSubI || op == OpSubF {
		if len(args) == 2 {
			return "(" + args[0].String() + " " + op.String() + " " + args[1].String() + ")"
		}
	}
	if (op == OpAnd || op == OpOr) && len(args) == 2 {
		return "(" + args[0].String() + " " + op.String() + " " + args[1].String() + ")"
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return op.String() + "(" + strings.Join(parts, ", ") + ")"
}

// Ref creates a symbol reference.
func Ref(s Symbol) *Expr {
	return &Expr{kind: KindSym, sym: s}
}

// Lit creates an integer literal.
func Lit(v int64) *Expr {
	return &Expr{kind: KindLit, val: v}
}

// Call creates a primitive operator call.
func Call(op Op, args ...Node) *Expr {
	return &Expr{kind: KindCall, op: op, args: args}
}

// List creates a statement-list wrapper whose value is its last node.
func List(nodes ...Node) *Expr {
	return &Expr{kind: KindList, args: nodes}
}

// Len creates lenSeq(n).
func Len(n Node) *Expr { return Call(OpLenSeq, n) }

// High creates high(n).
func High(n Node) *Expr { return Call(OpHigh, n) }

// Add creates the integer sum a + b.
func Add(a, b Node) *Expr { return Call(OpAddI, a, b) }

// Sub creates the integer difference a - b.
func Sub(a, b Node) *Expr { return Call(OpSubI, a, b) }

// Min creates min(a, b).
func Min(a, b Node) *Expr { return Call(OpMinI, a, b) }

// Le creates the integer comparison a <= b.
func Le(a, b Node) *Expr { return Call(OpLeI, a, b) }

// Lt creates the integer comparison a < b.
func Lt(a, b Node) *Expr { return Call(OpLtI, a, b) }

// Eq creates the integer equality a == b.
func Eq(a, b Node) *Expr { return Call(OpEqI, a, b) }

// And creates a logical and.
func And(a, b Node) *Expr { return Call(OpAnd, a, b) }

// Or creates a logical or.
func Or(a, b Node) *Expr { return Call(OpOr, a, b) }

// Not creates a logical not.
func Not(a Node) *Expr { return Call(OpNot, a) }

// Sym is a plain Symbol implementation.
type Sym struct {
	Ident   int64
	SymName string
	Class   SymKind
	Mutable bool
	Value   Node
}

func (s *Sym) ID() int64     { return s.Ident }
func (s *Sym) Kind() SymKind { return s.Class }
func (s *Sym) ByRef() bool   { return s.Mutable }
func (s *Sym) Init() Node    { return s.Value }
func (s *Sym) Name() string  { return s.SymName }
