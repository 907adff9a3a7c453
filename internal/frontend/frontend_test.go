package frontend

import (
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/boundprove/internal/prover"
)

func typeCheck(t *testing.T, src string) (*ast.File, *types.Info) {
	t.Helper()
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "p.go", src, 0)
	require.NoError(t, err)
	info := &types.Info{
		Types:      make(map[ast.Expr]types.TypeAndValue),
		Defs:       make(map[*ast.Ident]types.Object),
		Uses:       make(map[*ast.Ident]types.Object),
		Selections: make(map[*ast.SelectorExpr]*types.Selection),
	}
	_, err = (&types.Config{}).Check("p", fset, []*ast.File{f}, info)
	require.NoError(t, err)
	return f, info
}

func firstIdent(f *ast.File, name string) *ast.Ident {
	var found *ast.Ident
	ast.Inspect(f, func(n ast.Node) bool {
		if found != nil {
			return false
		}
		if id, ok := n.(*ast.Ident); ok && id.Name == name {
			found = id
		}
		return true
	})
	return found
}

// blankValues returns the right-hand sides of `_ = e` statements in order.
func blankValues(f *ast.File) []ast.Expr {
	var out []ast.Expr
	ast.Inspect(f, func(n ast.Node) bool {
		as, ok := n.(*ast.AssignStmt)
		if !ok || len(as.Lhs) != 1 {
			return true
		}
		if id, ok := as.Lhs[0].(*ast.Ident); ok && id.Name == "_" {
			out = append(out, as.Rhs[0])
		}
		return true
	})
	return out
}

func TestTypedResolverClassification(t *testing.T) {
	t.Parallel()

	src := `package p

const size = 8

var global int

type C int

func (c *C) Inc() { *c++ }

func f(pv int, q int, s []int) (r int) {
	q = 1
	a := 1
	b := 2
	b = 3
	addr := 4
	_ = &addr
	var k C
	k.Inc()
	for i := 0; i < 3; i++ {
	}
	for j := range s {
		_ = j
	}
	for m := 0; m < 3; m++ {
		m = 5
	}
	_ = pv + a + b + global + size + r + int(k)
	return
}
`
	f, info := typeCheck(t, src)
	res := NewTypedResolver(info, f)

	tests := []struct {
		name  string
		kind  prover.SymKind
		byRef bool
	}{
		{"pv", prover.SymParam, false},
		{"q", prover.SymParam, true},
		{"s", prover.SymParam, false},
		{"r", prover.SymOther, false},
		{"a", prover.SymLet, false},
		{"b", prover.SymOther, false},
		{"addr", prover.SymOther, false},
		{"k", prover.SymOther, false},
		{"i", prover.SymLoopVar, false},
		{"j", prover.SymLoopVar, false},
		{"m", prover.SymOther, false},
		{"global", prover.SymOther, false},
		{"size", prover.SymConst, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := firstIdent(f, tt.name)
			require.NotNil(t, id)
			sym := res.Symbol(id)
			require.NotNil(t, sym)
			assert.Equal(t, tt.kind, sym.Kind())
			assert.Equal(t, tt.byRef, sym.ByRef())
		})
	}

	size := res.Symbol(firstIdent(f, "size"))
	require.NotNil(t, size.Init())
	assert.Equal(t, int64(8), size.Init().Value())

	// the same object always yields the same symbol
	assert.Same(t, res.Symbol(firstIdent(f, "a")), res.Symbol(firstIdent(f, "a")))
}

func TestScratchLowering(t *testing.T) {
	t.Parallel()

	tests := []struct {
		src  string
		want string
	}{
		{"i < len(s)", "(i < lenSeq(s))"},
		{"a >= b+1", "((b + 1) <= a)"},
		{"a > b-2", "((b - 2) < a)"},
		{"x != 3", "not((x == 3))"},
		{"(i)", "(i)"},
		{"min(a, b) > 0", "(0 < min(a, b))"},
		{"f(x)", "f(x)"},
		{"a && !b", "(a and not(b))"},
		{"a || b == c", "(a or (b == c))"},
		{"-5", "-5"},
		{"0x10", "16"},
		{"true", "1"},
		{"s[i]", "s[i]"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			e, err := parser.ParseExpr(tt.src)
			require.NoError(t, err)
			l := NewLowerer(NewScratchResolver())
			assert.Equal(t, tt.want, l.Expr(e).String())
		})
	}
}

func TestScratchResolverIsStable(t *testing.T) {
	t.Parallel()

	res := NewScratchResolver()
	a1 := res.Symbol(ast.NewIdent("a"))
	b := res.Symbol(ast.NewIdent("b"))
	a2 := res.Symbol(ast.NewIdent("a"))

	assert.Equal(t, a1.ID(), a2.ID())
	assert.NotEqual(t, a1.ID(), b.ID())
	assert.Equal(t, prover.SymLet, a1.Kind())
	assert.Nil(t, res.Symbol(ast.NewIdent("len")))
	assert.Nil(t, res.Symbol(ast.NewIdent("_")))
	assert.Equal(t, []string{"a", "b"}, res.Names())
}

func TestTypedLowering(t *testing.T) {
	t.Parallel()

	src := `package p

const n = 4

func f(x float64, u uint, s []int, str string, arr [5]int, pa *[3]int, m map[int]int, i int, ok bool) {
	_ = x < 1.5
	_ = u <= 3
	_ = i < len(s)
	_ = i < len(str)
	_ = i < len(arr)
	_ = i < len(pa)
	_ = i < n
	_ = n - 1
	_ = len(m)
	_ = str < "b"
	_ = ok == true
	_ = x + x
	_ = min(i, len(s))
	_ = min(x, 2)
}
`
	f, info := typeCheck(t, src)
	l := NewLowerer(NewTypedResolver(info, f))

	want := []string{
		"(x <f 1.5)",
		"(u <=u 3)",
		"(i < lenSeq(s))",
		"(i < lenStr(str))",
		"(i < 5)",
		"(i < 3)",
		"(i < n)",
		"3",
		"len(m)",
		`str < "b"`,
		"(ok ==b 1)",
		"x + x",
		"min(i, lenSeq(s))",
		"min(x, 2)",
	}
	values := blankValues(f)
	require.Len(t, values, len(want))
	for k, e := range values {
		assert.Equal(t, want[k], l.Expr(e).String(), "statement %d", k)
	}
}

func TestTypedArithmetic(t *testing.T) {
	t.Parallel()

	src := `package p

func f(s []int, i int, u uint, x float64) {
	_ = i + 1
	_ = i - 1
	_ = len(s) - 1
	_ = len(s) + 1
	_ = x - 1
	_ = i + i
	for k := range s {
		_ = k + 1
		_ = k - 2
		_ = 1 + k
		_ = k + 2
	}
	for k := range u {
		_ = k + 1
		_ = k - 1
	}
	for k := 0; k < len(s); k++ {
		_ = k + 1
	}
	m := map[int]int{}
	for k := range m {
		_ = k + 1
	}
}
`
	f, info := typeCheck(t, src)
	l := NewLowerer(NewTypedResolver(info, f))

	want := []string{
		"i + 1",
		"i - 1",
		"(lenSeq(s) - 1)",
		"len(s) + 1",
		"x - 1",
		"i + i",
		"(k + 1)",
		"(k - 2)",
		"(1 + k)",
		"k + 2",
		"(k + 1)",
		"k - 1",
		"k + 1",
		"k + 1",
	}
	values := blankValues(f)
	require.Len(t, values, len(want))
	for k, e := range values {
		assert.Equal(t, want[k], l.Expr(e).String(), "statement %d", k)
	}
}

func TestIndexable(t *testing.T) {
	t.Parallel()

	src := `package p

func f(s []int, str string, arr [5]int, pa *[3]int, m map[string]int, ps *[]int) {
	_ = s
	_ = str
	_ = arr
	_ = pa
	_ = m
	_ = ps
}
`
	f, info := typeCheck(t, src)
	l := NewLowerer(NewTypedResolver(info, f))
	values := blankValues(f)
	want := []bool{true, true, true, true, false, false}
	require.Len(t, values, len(want))
	for k, e := range values {
		assert.Equal(t, want[k], l.Indexable(e), types.ExprString(e))
	}

	assert.True(t, NewLowerer(NewScratchResolver()).Indexable(ast.NewIdent("anything")))
}

func TestLoweredFactsDischargeIndex(t *testing.T) {
	t.Parallel()

	src := `package p

func f(s []int, i int) {
	_ = i < len(s) && 0 <= i
	_ = i
	_ = len(s) - 1
}
`
	f, info := typeCheck(t, src)
	l := NewLowerer(NewTypedResolver(info, f))
	values := blankValues(f)
	require.Len(t, values, 3)

	ctx := prover.NewContext()
	ctx.AddFact(l.Expr(values[0]), false)
	assert.True(t, ctx.ProveLe(l.Expr(values[1]), l.Expr(values[2])))
	assert.True(t, ctx.ProveLe(prover.Lit(0), l.Expr(values[1])))
}
