// Package analyzer exposes the bounds checker as a go/analysis pass so it
// can run under go vet or any other analysis driver.
package analyzer

import (
	"go/ast"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"

	"github.com/gnolang/boundprove/internal/boundscheck"
)

const doc = `report index expressions whose bounds cannot be proven

The boundprove analyzer collects what control flow implies about integer
variables and lengths (range loops, if conditions, early returns) and tries
to prove 0 <= i < len(s) for every s[i], and the matching bounds for slice
expressions. It also reports if conditions that the known facts already
decide.`

const (
	CategoryUnprovenIndex      = "unproven-index"
	CategoryRedundantCondition = "redundant-condition"
)

var Analyzer = &analysis.Analyzer{
	Name:     "boundprove",
	Doc:      doc,
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

var (
	maxComplexity = boundscheck.DefaultConfig.MaxComplexity
	checkSlices   = boundscheck.DefaultConfig.CheckSlices
)

func init() {
	Analyzer.Flags.IntVar(&maxComplexity, "max-complexity", maxComplexity,
		"skip functions with a higher cyclomatic complexity (0 disables the limit)")
	Analyzer.Flags.BoolVar(&checkSlices, "check-slices", checkSlices,
		"check the bounds of slice expressions")
}

func run(pass *analysis.Pass) (any, error) {
	checker := boundscheck.New(boundscheck.Config{
		MaxComplexity: maxComplexity,
		CheckSlices:   checkSlices,
	}, nil, nil)

	ins := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)
	ins.Preorder([]ast.Node{(*ast.File)(nil)}, func(n ast.Node) {
		file := n.(*ast.File)
		if ast.IsGenerated(file) {
			return
		}
		res := checker.CheckFile(file, pass.TypesInfo)
		for _, ob := range res.Unproven() {
			pass.Report(analysis.Diagnostic{
				Pos:      ob.Pos,
				End:      ob.End,
				Category: CategoryUnprovenIndex,
				Message:  "cannot prove " + ob.Goal,
			})
		}
		for _, c := range res.Redundant() {
			pass.Report(analysis.Diagnostic{
				Pos:      c.Pos,
				End:      c.End,
				Category: CategoryRedundantCondition,
				Message:  "condition " + c.Text + " is " + c.Verdict.String(),
			})
		}
	})
	return nil, nil
}
