package prover

// Kind discriminates the shapes of expression nodes the prover inspects.
type Kind int

const (
	_ Kind = iota
	// KindSym is a reference to a symbol.
	KindSym
	// KindLit is an integer or character literal.
	KindLit
	// KindCall is a call to a primitive operator.
	KindCall
	// KindList is a statement list or parenthesized wrapper whose value is its last operand.
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindSym:
		return "sym"
	case KindLit:
		return "lit"
	case KindCall:
		return "call"
	case KindList:
		return "list"
	default:
		return "?"
	}
}

// SymKind classifies a symbol for trackability.
type SymKind int

const (
	_ SymKind = iota
	SymLet
	SymTemp
	SymLoopVar
	SymParam
	SymConst
	SymOther
)

func (k SymKind) String() string {
	switch k {
	case SymLet:
		return "let"
	case SymTemp:
		return "temp"
	case SymLoopVar:
		return "loopvar"
	case SymParam:
		return "param"
	case SymConst:
		return "const"
	case SymOther:
		return "other"
	default:
		return "?"
	}
}

// Symbol is the read-only view of a host symbol.
//
// ID must be unique per binding and >= 1 for the lifetime of a Context:
// length pseudo-variables are keyed by the negated identity of their collection.
type Symbol interface {
	ID() int64
	Kind() SymKind
	// ByRef reports whether a parameter may be mutated through its declaration.
	ByRef() bool
	// Init is the initializer of a constant, nil otherwise.
	Init() Node
	Name() string
}

// Node is the read-only view of a host expression node.
type Node interface {
	Kind() Kind
	// Symbol is valid for KindSym.
	Symbol() Symbol
	// Value is valid for KindLit.
	Value() int64
	// Op is valid for KindCall.
	Op() Op
	// Operands is valid for KindCall and KindList.
	Operands() []Node
	String() string
}
