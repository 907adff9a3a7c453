package boundscheck

import (
	"go/ast"
	"go/token"
	"go/types"

	"github.com/gnolang/boundprove/internal/frontend"
	"github.com/gnolang/boundprove/internal/prover"
)

// walker visits one function body. Every block is a prover scope, so facts
// learned inside a branch never leak past it.
type walker struct {
	ctx *prover.Context
	low *frontend.Lowerer
	cfg Config
	out *FuncResult
}

func (w *walker) scoped(f func()) {
	s := w.ctx.RecordState()
	defer w.ctx.Rollback(s)
	f()
}

func (w *walker) block(list []ast.Stmt) {
	w.scoped(func() {
		entry := w.ctx.RecordState()
		for _, st := range list {
			// a label can be reached by goto from later in the block
			if _, ok := st.(*ast.LabeledStmt); ok {
				w.ctx.Rollback(entry)
			}
			w.stmt(st)
		}
	})
}

func (w *walker) stmt(s ast.Stmt) {
	switch x := s.(type) {
	case *ast.BlockStmt:
		w.block(x.List)
	case *ast.ExprStmt:
		w.expr(x.X)
	case *ast.AssignStmt:
		w.assign(x)
	case *ast.DeclStmt:
		w.decl(x)
	case *ast.IfStmt:
		w.ifStmt(x)
	case *ast.ForStmt:
		w.forStmt(x)
	case *ast.RangeStmt:
		w.rangeStmt(x)
	case *ast.SwitchStmt:
		w.switchStmt(x)
	case *ast.TypeSwitchStmt:
		w.scoped(func() {
			if x.Init != nil {
				w.stmt(x.Init)
			}
			w.stmt(x.Assign)
			for _, c := range x.Body.List {
				w.block(c.(*ast.CaseClause).Body)
			}
		})
	case *ast.SelectStmt:
		for _, c := range x.Body.List {
			cc := c.(*ast.CommClause)
			w.scoped(func() {
				if cc.Comm != nil {
					w.stmt(cc.Comm)
				}
				w.block(cc.Body)
			})
		}
	case *ast.ReturnStmt:
		for _, r := range x.Results {
			w.expr(r)
		}
	case *ast.IncDecStmt:
		w.expr(x.X)
	case *ast.SendStmt:
		w.expr(x.Chan)
		w.expr(x.Value)
	case *ast.GoStmt:
		w.expr(x.Call)
	case *ast.DeferStmt:
		w.expr(x.Call)
	case *ast.LabeledStmt:
		w.stmt(x.Stmt)
	}
}

func (w *walker) assign(x *ast.AssignStmt) {
	for _, r := range x.Rhs {
		w.expr(r)
	}
	for _, l := range x.Lhs {
		w.expr(l)
	}
	if x.Tok != token.DEFINE || len(x.Lhs) != len(x.Rhs) {
		return
	}
	for i, lhs := range x.Lhs {
		if id, ok := lhs.(*ast.Ident); ok {
			w.binding(id, x.Rhs[i])
		}
	}
}

func (w *walker) decl(x *ast.DeclStmt) {
	gen, ok := x.Decl.(*ast.GenDecl)
	if !ok || gen.Tok != token.VAR {
		return
	}
	for _, spec := range gen.Specs {
		vs, ok := spec.(*ast.ValueSpec)
		if !ok {
			continue
		}
		for _, v := range vs.Values {
			w.expr(v)
		}
		if len(vs.Names) != len(vs.Values) {
			continue
		}
		for i, id := range vs.Names {
			w.binding(id, vs.Values[i])
		}
	}
}

// binding records id == value for a variable that is never written again.
func (w *walker) binding(id *ast.Ident, value ast.Expr) {
	if id.Name == "_" {
		return
	}
	v := w.low.Expr(id)
	if v.Kind() != prover.KindSym || v.Symbol().Kind() != prover.SymLet {
		return
	}
	w.ctx.AddAsgnFact(v, w.low.Expr(value))
}

func (w *walker) ifStmt(x *ast.IfStmt) {
	var cond prover.Node
	w.scoped(func() {
		if x.Init != nil {
			w.stmt(x.Init)
		}
		w.expr(x.Cond)
		cond = w.low.Expr(x.Cond)
		w.judge(x.Cond, cond)

		w.scoped(func() {
			w.ctx.AddFact(cond, false)
			w.block(x.Body.List)
		})
		if x.Else != nil {
			w.scoped(func() {
				w.ctx.AddFact(cond, true)
				w.stmt(x.Else)
			})
		}
	})

	thenExits := w.terminates(x.Body)
	elseExits := x.Else != nil && w.terminates(x.Else)
	switch {
	case thenExits && !elseExits:
		w.ctx.AddFact(cond, true)
	case elseExits && !thenExits:
		w.ctx.AddFact(cond, false)
	}
}

// judge records whether the facts in scope already decide cond.
func (w *walker) judge(e ast.Expr, cond prover.Node) {
	c := Condition{
		Pos:  e.Pos(),
		End:  e.End(),
		Text: types.ExprString(e),
	}
	switch {
	case w.ctx.Prove(cond, false):
		c.Verdict = AlwaysTrue
	case w.ctx.Prove(cond, true):
		c.Verdict = AlwaysFalse
	}
	if w.cfg.KeepFacts {
		c.Facts = w.facts()
	}
	w.out.Conditions = append(w.out.Conditions, c)
}

func (w *walker) forStmt(x *ast.ForStmt) {
	w.scoped(func() {
		var counter prover.Node
		if as, ok := x.Init.(*ast.AssignStmt); ok && as.Tok == token.DEFINE && len(as.Lhs) == 1 && len(as.Rhs) == 1 {
			w.assign(as)
			counter = w.counterFact(as, x.Post)
		} else if x.Init != nil {
			w.stmt(x.Init)
		}
		if counter != nil {
			w.ctx.AddFact(counter, false)
		}

		var cond prover.Node
		if x.Cond != nil {
			w.expr(x.Cond)
			cond = w.low.Expr(x.Cond)
		}
		w.scoped(func() {
			if cond != nil {
				w.ctx.AddFact(cond, false)
			}
			w.block(x.Body.List)
		})
		if x.Post != nil {
			w.stmt(x.Post)
		}
	})
}

// counterFact bounds a loop counter by its initial value when the post
// statement only ever moves it in one direction.
func (w *walker) counterFact(init *ast.AssignStmt, post ast.Stmt) prover.Node {
	id, ok := init.Lhs[0].(*ast.Ident)
	if !ok || post == nil {
		return nil
	}
	counter := w.low.Expr(id)
	if counter.Kind() != prover.KindSym || counter.Symbol().Kind() != prover.SymLoopVar {
		return nil
	}
	start := w.low.Expr(init.Rhs[0])

	up, ok := direction(id, post)
	if !ok {
		return nil
	}
	if up {
		return prover.Le(start, counter)
	}
	return prover.Le(counter, start)
}

// direction reports whether post increments (true) or decrements (false)
// the counter id by a positive constant.
func direction(id *ast.Ident, post ast.Stmt) (bool, bool) {
	same := func(e ast.Expr) bool {
		x, ok := ast.Unparen(e).(*ast.Ident)
		return ok && x.Name == id.Name
	}
	switch p := post.(type) {
	case *ast.IncDecStmt:
		if !same(p.X) {
			return false, false
		}
		return p.Tok == token.INC, true
	case *ast.AssignStmt:
		if len(p.Lhs) != 1 || len(p.Rhs) != 1 || !same(p.Lhs[0]) {
			return false, false
		}
		lit, ok := p.Rhs[0].(*ast.BasicLit)
		if !ok || lit.Kind != token.INT || lit.Value == "0" {
			return false, false
		}
		switch p.Tok {
		case token.ADD_ASSIGN:
			return true, true
		case token.SUB_ASSIGN:
			return false, true
		}
	}
	return false, false
}

func (w *walker) rangeStmt(x *ast.RangeStmt) {
	w.expr(x.X)
	w.scoped(func() {
		if key, ok := x.Key.(*ast.Ident); ok && x.Tok == token.DEFINE && key.Name != "_" {
			if bound, ok := w.rangeBound(x.X); ok {
				k := w.low.Expr(key)
				w.ctx.AddFactLe(prover.Lit(0), k)
				w.ctx.AddFactLt(k, bound)
			}
		}
		w.block(x.Body.List)
	})
}

// rangeBound is the exclusive upper bound of a range key: the length of a
// collection, or n itself for range over an integer.
func (w *walker) rangeBound(x ast.Expr) (prover.Node, bool) {
	if w.low.Indexable(x) {
		return w.low.Len(x)
	}
	if d, ok := w.low.Domain(x); ok && (d == prover.DomainInt || d == prover.DomainUint) {
		return w.low.Expr(x), true
	}
	return nil, false
}

func (w *walker) switchStmt(x *ast.SwitchStmt) {
	w.scoped(func() {
		if x.Init != nil {
			w.stmt(x.Init)
		}
		w.expr(x.Tag)

		clauses := make([]*ast.CaseClause, 0, len(x.Body.List))
		for _, s := range x.Body.List {
			clauses = append(clauses, s.(*ast.CaseClause))
		}
		conds := make([]prover.Node, len(clauses))
		for i, cc := range clauses {
			for _, e := range cc.List {
				w.expr(e)
			}
			conds[i] = w.caseCond(x.Tag, cc.List)
		}

		for i, cc := range clauses {
			w.scoped(func() {
				if i == 0 || !fallsThrough(clauses[i-1]) {
					for j, c := range conds {
						// cases are tried in order; default only after all of them
						if c != nil && j != i && (cc.List == nil || j < i) {
							w.ctx.AddFact(c, true)
						}
					}
					if conds[i] != nil {
						w.ctx.AddFact(conds[i], false)
					}
				}
				w.block(cc.Body)
			})
		}
	})
}

// caseCond is the disjunction of a case list; with a tag each entry is
// tag == e.
func (w *walker) caseCond(tag ast.Expr, list []ast.Expr) prover.Node {
	var cond prover.Node
	for _, e := range list {
		if tag != nil {
			e = &ast.BinaryExpr{X: tag, OpPos: e.Pos(), Op: token.EQL, Y: e}
		}
		n := w.low.Expr(e)
		if cond == nil {
			cond = n
		} else {
			cond = prover.Or(cond, n)
		}
	}
	return cond
}

func fallsThrough(cc *ast.CaseClause) bool {
	if len(cc.Body) == 0 {
		return false
	}
	b, ok := cc.Body[len(cc.Body)-1].(*ast.BranchStmt)
	return ok && b.Tok == token.FALLTHROUGH
}

// terminates reports whether control never falls off the end of s.
func (w *walker) terminates(s ast.Stmt) bool {
	switch x := s.(type) {
	case *ast.ReturnStmt:
		return true
	case *ast.BranchStmt:
		return x.Tok != token.FALLTHROUGH
	case *ast.ExprStmt:
		call, ok := x.X.(*ast.CallExpr)
		if !ok {
			return false
		}
		name, ok := w.low.Builtin(call.Fun)
		return ok && name == "panic"
	case *ast.BlockStmt:
		return len(x.List) > 0 && w.terminates(x.List[len(x.List)-1])
	case *ast.IfStmt:
		return x.Else != nil && w.terminates(x.Body) && w.terminates(x.Else)
	case *ast.LabeledStmt:
		return w.terminates(x.Stmt)
	}
	return false
}

func (w *walker) facts() []string {
	fs := w.ctx.Facts()
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = w.ctx.FormatFact(f)
	}
	return out
}
