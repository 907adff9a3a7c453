package frontend

import (
	"go/ast"
	"go/constant"
	"go/token"
	"go/types"

	"github.com/gnolang/boundprove/internal/prover"
)

// Resolver maps identifiers to prover symbols and exposes whatever type
// information is available for an expression.
type Resolver interface {
	// Symbol returns the symbol named by id, or nil when id does not
	// denote a variable or constant.
	Symbol(id *ast.Ident) prover.Symbol
	// TypeAndValue reports what the type checker recorded for e.
	TypeAndValue(e ast.Expr) (types.TypeAndValue, bool)
	// FixedWidth reports whether integers wrap on overflow. It is false
	// when every variable stands for a mathematical integer.
	FixedWidth() bool
	// RangeKey reports whether id is an unmodified key of a range over a
	// slice, array, string or integer, so that 0 <= id < n for an n of
	// the key's type.
	RangeKey(id *ast.Ident) bool
}

// usage counts the ways a variable is written to.
type usage struct {
	writes    int // assignments other than the defining one
	postOnly  int // writes from a for statement's post clause
	addrTaken bool
}

// TypedResolver classifies variables using go/types results plus a scan of
// every write in the file.
type TypedResolver struct {
	info    *types.Info
	uses    map[types.Object]*usage
	params  map[types.Object]bool
	results map[types.Object]bool
	loop    map[types.Object]bool // range keys/values and for-init variables
	keys    map[types.Object]bool // keys of ranges with a length
	ids     map[types.Object]int64
	syms    map[types.Object]*prover.Sym
}

// NewTypedResolver scans file for writes to variables. info must be the
// result of type-checking file; partial results from a failed check are fine.
func NewTypedResolver(info *types.Info, file *ast.File) *TypedResolver {
	r := &TypedResolver{
		info:    info,
		uses:    make(map[types.Object]*usage),
		params:  make(map[types.Object]bool),
		results: make(map[types.Object]bool),
		loop:    make(map[types.Object]bool),
		keys:    make(map[types.Object]bool),
		ids:     make(map[types.Object]int64),
		syms:    make(map[types.Object]*prover.Sym),
	}
	r.scan(file)
	return r
}

func (r *TypedResolver) usageOf(obj types.Object) *usage {
	u, ok := r.uses[obj]
	if !ok {
		u = &usage{}
		r.uses[obj] = u
	}
	return u
}

func (r *TypedResolver) scan(file *ast.File) {
	posts := make(map[ast.Stmt]bool)
	ast.Inspect(file, func(n ast.Node) bool {
		if f, ok := n.(*ast.ForStmt); ok && f.Post != nil {
			posts[f.Post] = true
		}
		return true
	})

	ast.Inspect(file, func(n ast.Node) bool {
		switch x := n.(type) {
		case *ast.FuncType:
			r.markFields(x.Params, r.params)
			r.markFields(x.Results, r.results)
		case *ast.ForStmt:
			if init, ok := x.Init.(*ast.AssignStmt); ok && init.Tok == token.DEFINE {
				for _, lhs := range init.Lhs {
					if obj := r.defined(lhs); obj != nil {
						r.loop[obj] = true
					}
				}
			}
		case *ast.RangeStmt:
			if x.Tok == token.DEFINE && x.Key != nil && r.lengthed(x.X) {
				if obj := r.defined(x.Key); obj != nil {
					r.keys[obj] = true
				}
			}
			for _, e := range []ast.Expr{x.Key, x.Value} {
				if e == nil {
					continue
				}
				if x.Tok == token.DEFINE {
					if obj := r.defined(e); obj != nil {
						r.loop[obj] = true
					}
					continue
				}
				r.write(e, false)
			}
		case *ast.AssignStmt:
			post := posts[x]
			for _, lhs := range x.Lhs {
				if x.Tok == token.DEFINE && r.defined(lhs) != nil {
					continue
				}
				r.write(lhs, post)
			}
		case *ast.IncDecStmt:
			r.write(x.X, posts[x])
		case *ast.UnaryExpr:
			if x.Op == token.AND {
				if obj := r.object(x.X); obj != nil {
					r.usageOf(obj).addrTaken = true
				}
			}
		case *ast.SelectorExpr:
			r.implicitAddr(x)
		}
		return true
	})
}

// lengthed reports whether ranging over x yields keys in [0, n).
func (r *TypedResolver) lengthed(x ast.Expr) bool {
	tv, ok := r.info.Types[x]
	if !ok || tv.Type == nil {
		return false
	}
	u := tv.Type.Underlying()
	if p, ok := u.(*types.Pointer); ok {
		u = p.Elem().Underlying()
		if _, ok := u.(*types.Array); !ok {
			return false
		}
	}
	switch t := u.(type) {
	case *types.Slice, *types.Array:
		return true
	case *types.Basic:
		return t.Info()&(types.IsString|types.IsInteger) != 0
	}
	return false
}

func (r *TypedResolver) markFields(fl *ast.FieldList, into map[types.Object]bool) {
	if fl == nil {
		return
	}
	for _, field := range fl.List {
		for _, name := range field.Names {
			if obj := r.info.Defs[name]; obj != nil {
				into[obj] = true
			}
		}
	}
}

// implicitAddr flags x in x.M() when M has a pointer receiver and x is
// addressable, since the call takes &x.
func (r *TypedResolver) implicitAddr(sel *ast.SelectorExpr) {
	s, ok := r.info.Selections[sel]
	if !ok || s.Kind() != types.MethodVal || s.Indirect() {
		return
	}
	sig, ok := s.Obj().Type().(*types.Signature)
	if !ok || sig.Recv() == nil {
		return
	}
	if _, ptr := sig.Recv().Type().(*types.Pointer); !ptr {
		return
	}
	if obj := r.object(sel.X); obj != nil {
		r.usageOf(obj).addrTaken = true
	}
}

func (r *TypedResolver) write(e ast.Expr, post bool) {
	obj := r.object(e)
	if obj == nil {
		return
	}
	u := r.usageOf(obj)
	if post {
		u.postOnly++
		return
	}
	u.writes++
}

func (r *TypedResolver) defined(e ast.Expr) types.Object {
	id, ok := ast.Unparen(e).(*ast.Ident)
	if !ok {
		return nil
	}
	return r.info.Defs[id]
}

func (r *TypedResolver) object(e ast.Expr) types.Object {
	id, ok := ast.Unparen(e).(*ast.Ident)
	if !ok {
		return nil
	}
	return r.info.ObjectOf(id)
}

// Symbol implements Resolver.
func (r *TypedResolver) Symbol(id *ast.Ident) prover.Symbol {
	obj := r.info.ObjectOf(id)
	if obj == nil || obj.Pkg() == nil {
		return nil
	}
	if s, ok := r.syms[obj]; ok {
		return s
	}
	var sym *prover.Sym
	switch o := obj.(type) {
	case *types.Const:
		sym = &prover.Sym{SymName: o.Name(), Class: prover.SymOther}
		if v, ok := constInt(o.Val()); ok {
			sym.Class = prover.SymConst
			sym.Value = prover.Lit(v)
		}
	case *types.Var:
		if o.IsField() {
			return nil
		}
		class, byRef := r.classify(o)
		sym = &prover.Sym{SymName: o.Name(), Class: class, Mutable: byRef}
	default:
		return nil
	}
	sym.Ident = int64(len(r.ids) + 1)
	r.ids[obj] = sym.Ident
	r.syms[obj] = sym
	return sym
}

func (r *TypedResolver) classify(v *types.Var) (prover.SymKind, bool) {
	u := r.uses[v]
	if u == nil {
		u = &usage{}
	}
	switch {
	case r.results[v]:
		return prover.SymOther, false
	case r.params[v]:
		return prover.SymParam, u.addrTaken || u.writes > 0 || u.postOnly > 0
	case u.addrTaken || u.writes > 0:
		return prover.SymOther, false
	case r.loop[v]:
		return prover.SymLoopVar, false
	case u.postOnly > 0:
		return prover.SymOther, false
	case v.Pkg() != nil && v.Parent() == v.Pkg().Scope():
		return prover.SymOther, false
	case v.Parent() == nil:
		return prover.SymOther, false
	}
	return prover.SymLet, false
}

// TypeAndValue implements Resolver.
func (r *TypedResolver) TypeAndValue(e ast.Expr) (types.TypeAndValue, bool) {
	tv, ok := r.info.Types[e]
	return tv, ok
}

// FixedWidth implements Resolver.
func (r *TypedResolver) FixedWidth() bool { return true }

// RangeKey implements Resolver.
func (r *TypedResolver) RangeKey(id *ast.Ident) bool {
	obj := r.info.ObjectOf(id)
	if obj == nil || !r.keys[obj] {
		return false
	}
	v, ok := obj.(*types.Var)
	if !ok {
		return false
	}
	class, _ := r.classify(v)
	return class == prover.SymLoopVar
}

// ScratchResolver treats every non-predeclared identifier as an immutable
// integer binding keyed by name. It is used where no type information
// exists, such as the interactive prompt.
type ScratchResolver struct {
	ids map[string]int64
}

// NewScratchResolver creates an empty ScratchResolver.
func NewScratchResolver() *ScratchResolver {
	return &ScratchResolver{ids: make(map[string]int64)}
}

// Symbol implements Resolver.
func (r *ScratchResolver) Symbol(id *ast.Ident) prover.Symbol {
	if id.Name == "_" || types.Universe.Lookup(id.Name) != nil {
		return nil
	}
	n, ok := r.ids[id.Name]
	if !ok {
		n = int64(len(r.ids) + 1)
		r.ids[id.Name] = n
	}
	return &prover.Sym{Ident: n, SymName: id.Name, Class: prover.SymLet}
}

// TypeAndValue implements Resolver.
func (r *ScratchResolver) TypeAndValue(ast.Expr) (types.TypeAndValue, bool) {
	return types.TypeAndValue{}, false
}

// FixedWidth implements Resolver.
func (r *ScratchResolver) FixedWidth() bool { return false }

// RangeKey implements Resolver.
func (r *ScratchResolver) RangeKey(*ast.Ident) bool { return false }

// Names lists the identifiers seen so far.
func (r *ScratchResolver) Names() []string {
	out := make([]string, len(r.ids))
	for name, id := range r.ids {
		out[id-1] = name
	}
	return out
}

func constInt(v constant.Value) (int64, bool) {
	if v == nil {
		return 0, false
	}
	switch v.Kind() {
	case constant.Int:
		return constant.Int64Val(v)
	case constant.Bool:
		if constant.BoolVal(v) {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
