package prover

// Op is the opcode of a primitive operator call.
type Op int

const (
	OpNone Op = iota

	OpLenArray
	OpLenStr
	OpLenSeq
	// OpHigh is the greatest valid index of a collection, len - 1.
	OpHigh

	OpSucc
	OpPred
	OpAddI
	OpAddF
	OpSubI
	OpSubF
	OpMinI

	OpLeI
	OpLeF
	OpLeU
	OpLeEnum
	OpLeCh
	OpLeB

	OpLtI
	OpLtF
	OpLtU
	OpLtEnum
	OpLtCh
	OpLtB

	OpEqI
	OpEqF
	OpEqU
	OpEqEnum
	OpEqCh
	OpEqB

	OpAnd
	OpOr
	OpNot
)

// Domain is the value domain of a comparison.
type Domain int

const (
	_ Domain = iota
	DomainInt
	DomainFloat
	DomainUint
	DomainEnum
	DomainChar
	DomainBool
)

type relation int

const (
	relNone relation = iota
	relLe
	relLt
	relEq
)

var opNames = map[Op]string{
	OpLenArray: "lenArray",
	OpLenStr:   "lenStr",
	OpLenSeq:   "lenSeq",
	OpHigh:     "high",
	OpSucc:     "succ",
	OpPred:     "pred",
	OpAddI:     "+",
	OpAddF:     "+.",
	OpSubI:     "-",
	OpSubF:     "-.",
	OpMinI:     "min",
	OpAnd:      "and",
	OpOr:       "or",
	OpNot:      "not",
}

func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	if rel, dom := op.comparison(); rel != relNone {
		sym := map[relation]string{relLe: "<=", relLt: "<", relEq: "=="}[rel]
		if dom == DomainInt {
			return sym
		}
		return sym + dom.suffix()
	}
	return "?"
}

func (d Domain) suffix() string {
	switch d {
	case DomainFloat:
		return "f"
	case DomainUint:
		return "u"
	case DomainEnum:
		return "e"
	case DomainChar:
		return "c"
	case DomainBool:
		return "b"
	default:
		return ""
	}
}

// IsLength reports whether op yields the length of its collection operand.
func (op Op) IsLength() bool {
	return op == OpLenArray || op == OpLenStr || op == OpLenSeq
}

// comparison decodes a comparison opcode into its relation and domain.
func (op Op) comparison() (relation, Domain) {
	switch {
	case op >= OpLeI && op <= OpLeB:
		return relLe, Domain(op-OpLeI) + DomainInt
	case op >= OpLtI && op <= OpLtB:
		return relLt, Domain(op-OpLtI) + DomainInt
	case op >= OpEqI && op <= OpEqB:
		return relEq, Domain(op-OpEqI) + DomainInt
	default:
		return relNone, 0
	}
}

// LeOp returns the <= opcode for d.
func LeOp(d Domain) Op { return OpLeI + Op(d-DomainInt) }

// LtOp returns the < opcode for d.
func LtOp(d Domain) Op { return OpLtI + Op(d-DomainInt) }

// EqOp returns the == opcode for d.
func EqOp(d Domain) Op { return OpEqI + Op(d-DomainInt) }
