// Package boundscheck walks Go function bodies, accumulating facts from
// control flow into a prover context, and tries to discharge the bounds
// obligation of every index and slice expression.
package boundscheck

import (
	"go/ast"
	"go/token"
	"go/types"

	"github.com/fzipp/gocyclo"
	"go.uber.org/zap"

	"github.com/gnolang/boundprove/internal/frontend"
	"github.com/gnolang/boundprove/internal/prover"
)

// Config controls what the walker checks.
type Config struct {
	// MaxComplexity skips functions whose cyclomatic complexity exceeds it.
	// Zero disables the limit.
	MaxComplexity int
	// CheckSlices adds obligations for a[lo:hi:max] expressions.
	CheckSlices bool
	// KeepFacts snapshots the facts in scope at every obligation.
	KeepFacts bool
}

// DefaultConfig is used when no configuration file says otherwise.
var DefaultConfig = Config{
	MaxComplexity: 40,
	CheckSlices:   true,
}

// Verdict classifies an if condition.
type Verdict int

const (
	Unknown Verdict = iota
	AlwaysTrue
	AlwaysFalse
)

func (v Verdict) String() string {
	switch v {
	case AlwaysTrue:
		return "always true"
	case AlwaysFalse:
		return "always false"
	default:
		return "unknown"
	}
}

// Obligation is one inequality an index or slice expression needs.
type Obligation struct {
	Pos    token.Pos
	End    token.Pos
	Goal   string
	Proven bool
	Facts  []string
}

// Condition is an if condition together with what the prover knows of it.
type Condition struct {
	Pos     token.Pos
	End     token.Pos
	Text    string
	Verdict Verdict
	Facts   []string
}

// FuncResult is the outcome for one function declaration.
type FuncResult struct {
	Name        string
	Pos         token.Pos
	Complexity  int
	Skipped     bool
	Obligations []Obligation
	Conditions  []Condition
}

// Result collects the outcome for every function of a file.
type Result struct {
	Funcs []FuncResult
}

// Unproven returns the obligations the prover could not discharge.
func (r *Result) Unproven() []Obligation {
	var out []Obligation
	for _, f := range r.Funcs {
		for _, ob := range f.Obligations {
			if !ob.Proven {
				out = append(out, ob)
			}
		}
	}
	return out
}

// Redundant returns the conditions known to be constant.
func (r *Result) Redundant() []Condition {
	var out []Condition
	for _, f := range r.Funcs {
		for _, c := range f.Conditions {
			if c.Verdict != Unknown {
				out = append(out, c)
			}
		}
	}
	return out
}

// Func looks up the result for a function by name. Methods are named
// Recv.Method.
func (r *Result) Func(name string) (FuncResult, bool) {
	for _, f := range r.Funcs {
		if f.Name == name {
			return f, true
		}
	}
	return FuncResult{}, false
}

// Checker runs the walker over files.
type Checker struct {
	cfg      Config
	logger   *zap.Logger
	observer prover.Observer
}

// New creates a Checker. observer may be nil.
func New(cfg Config, logger *zap.Logger, observer prover.Observer) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{cfg: cfg, logger: logger, observer: observer}
}

// CheckFile analyzes every function declaration in file. info must come
// from type-checking file; a partially filled Info is accepted.
func (c *Checker) CheckFile(file *ast.File, info *types.Info) *Result {
	low := frontend.NewLowerer(frontend.NewTypedResolver(info, file))
	res := &Result{}
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Body == nil {
			continue
		}
		res.Funcs = append(res.Funcs, c.checkFunc(fn, low))
	}
	return res
}

func (c *Checker) checkFunc(fn *ast.FuncDecl, low *frontend.Lowerer) FuncResult {
	out := FuncResult{
		Name:       funcName(fn),
		Pos:        fn.Pos(),
		Complexity: gocyclo.Complexity(fn),
	}
	if c.cfg.MaxComplexity > 0 && out.Complexity > c.cfg.MaxComplexity {
		c.logger.Debug("skipping complex function",
			zap.String("func", out.Name),
			zap.Int("complexity", out.Complexity),
			zap.Int("limit", c.cfg.MaxComplexity))
		out.Skipped = true
		return out
	}

	opts := []prover.Option{prover.WithLogger(c.logger.Named("prover").With(zap.String("func", out.Name)))}
	if c.observer != nil {
		opts = append(opts, prover.WithObserver(c.observer))
	}
	w := &walker{
		ctx: prover.NewContext(opts...),
		low: low,
		cfg: c.cfg,
		out: &out,
	}
	w.block(fn.Body.List)
	return out
}

func funcName(fn *ast.FuncDecl) string {
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return fn.Name.Name
	}
	t := fn.Recv.List[0].Type
	for {
		switch x := t.(type) {
		case *ast.StarExpr:
			t = x.X
		case *ast.IndexExpr:
			t = x.X
		case *ast.IndexListExpr:
			t = x.X
		case *ast.ParenExpr:
			t = x.X
		default:
			return types.ExprString(t) + "." + fn.Name.Name
		}
	}
}
