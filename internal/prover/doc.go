// Package prover implements a small linear-fact reasoner used to discharge
// bounds-check obligations such as i < len(a) or x-1 >= 0.
//
// Facts are inequalities of three shapes over tracked quantities:
//
//	a <= b + c
//	a <= c
//	c <= a
//
// where a and b are immutable bindings or lengths of immutable collections
// and c is an integer constant. Expressions are reduced to linear atoms
// (a tracked quantity plus a constant) by recognizing additions,
// subtractions, succ/pred, min and length pseudo-variables.
//
// A Context is scoped with RecordState/Rollback while a walker visits the
// branches of a function, and ProveLe/Prove decide entailment by a
// shortest-path search over the difference graph of the stored facts. The
// search is sound but incomplete: a false answer only means "not shown".
//
// Out of scope (never recorded):
//   - disjunctions and negated conjunctions
//   - multiplication, division and non-linear terms
//   - negated comparisons over floating-point values
package prover
