package internal

import (
	"fmt"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/gnolang/boundprove/internal/boundscheck"
	"github.com/gnolang/boundprove/internal/metrics"
	"github.com/gnolang/boundprove/internal/nolint"
	tt "github.com/gnolang/boundprove/internal/types"
)

// Engine manages the linting process.
type Engine struct {
	rootDir  string
	logger   *zap.Logger
	cfg      boundscheck.Config
	recorder *metrics.Recorder
	cache    *Cache
	checker  *boundscheck.Checker

	mu           sync.RWMutex
	ignoredRules map[string]bool
	ignoredPaths []string
	rules        map[string]LintRule
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithProverConfig replaces boundscheck.DefaultConfig.
func WithProverConfig(cfg boundscheck.Config) EngineOption {
	return func(e *Engine) { e.cfg = cfg }
}

// WithRecorder counts prover activity and analyzed files.
func WithRecorder(r *metrics.Recorder) EngineOption {
	return func(e *Engine) { e.recorder = r }
}

// WithCache reuses issues of files whose content did not change.
func WithCache(c *Cache) EngineOption {
	return func(e *Engine) { e.cache = c }
}

// NewEngine creates a new lint engine.
func NewEngine(rootDir string, rules map[string]tt.ConfigRule, opts ...EngineOption) (*Engine, error) {
	engine := &Engine{
		rootDir: rootDir,
		logger:  zap.NewNop(),
		cfg:     boundscheck.DefaultConfig,
	}
	for _, opt := range opts {
		opt(engine)
	}

	// issues always carry the facts they were judged against
	cfg := engine.cfg
	cfg.KeepFacts = true
	if engine.recorder != nil {
		engine.checker = boundscheck.New(cfg, engine.logger.Named("boundscheck"), engine.recorder)
	} else {
		engine.checker = boundscheck.New(cfg, engine.logger.Named("boundscheck"), nil)
	}

	if err := engine.applyRules(rules); err != nil {
		return nil, err
	}
	return engine, nil
}

type ruleConstructor func() LintRule

type ruleMap map[string]ruleConstructor

var allRuleConstructors = ruleMap{
	"unproven-index":      NewUnprovenIndexRule,
	"redundant-condition": NewRedundantConditionRule,
}

// RuleNames lists every known rule.
func RuleNames() []string {
	names := make([]string, 0, len(allRuleConstructors))
	for name := range allRuleConstructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *Engine) applyRules(rules map[string]tt.ConfigRule) error {
	e.rules = make(map[string]LintRule, len(allRuleConstructors))
	for key, newRule := range allRuleConstructors {
		e.rules[key] = newRule()
	}

	for key, rule := range rules {
		r, ok := e.rules[key]
		if !ok {
			return fmt.Errorf("unknown rule %q in configuration", key)
		}
		r.SetSeverity(rule.Severity)
		if rule.Severity == tt.SeverityOff {
			e.IgnoreRule(key)
		}
	}
	return nil
}

// Rules returns the enabled rules sorted by name.
func (e *Engine) Rules() []LintRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]LintRule, 0, len(e.rules))
	for name, r := range e.rules {
		if !e.ignoredRules[name] && r.Severity() != tt.SeverityOff {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Run applies all lint rules to the given file and returns a slice of Issues.
func (e *Engine) Run(filename string) ([]tt.Issue, error) {
	if e.isIgnoredPath(filename) {
		e.logger.Debug("skipping ignored path", zap.String("file", filename))
		return nil, nil
	}

	source, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	if e.cache != nil {
		if issues, ok := e.cache.Get(filename, source); ok {
			e.logger.Debug("cache hit", zap.String("file", filename))
			return issues, nil
		}
	}

	issues, err := e.run(filename, source)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if err := e.cache.Set(filename, source, issues); err != nil {
			e.logger.Warn("failed to update cache", zap.String("file", filename), zap.Error(err))
		}
	}
	return issues, nil
}

// RunSource applies all lint rules to the given source and returns a slice of Issues.
func (e *Engine) RunSource(source []byte) ([]tt.Issue, error) {
	return e.run("", source)
}

func (e *Engine) run(filename string, source []byte) ([]tt.Issue, error) {
	fset := token.NewFileSet()
	node, err := parser.ParseFile(fset, filename, source, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("error parsing file: %w", err)
	}

	unit := &Unit{
		Filename: filename,
		File:     node,
		Fset:     fset,
		Info:     e.typeCheck(fset, node),
		checker:  e.checker,
	}
	nolintMgr := nolint.ParseComments(node, fset)

	var wg sync.WaitGroup
	var mu sync.Mutex

	var allIssues []tt.Issue
	for _, rule := range e.Rules() {
		wg.Add(1)
		go func(r LintRule) {
			defer wg.Done()
			issues, err := r.Check(unit)
			if err != nil {
				e.logger.Warn("rule failed", zap.String("rule", r.Name()), zap.String("file", filename), zap.Error(err))
				return
			}

			nolinted := filterNolintIssues(nolintMgr, issues)

			mu.Lock()
			allIssues = append(allIssues, nolinted...)
			mu.Unlock()
		}(rule)
	}
	wg.Wait()

	sortIssues(allIssues)
	if e.recorder != nil {
		e.recorder.FileAnalyzed()
	}
	e.logger.Debug("file analyzed", zap.String("file", filename), zap.Int("issues", len(allIssues)))
	return allIssues, nil
}

// Explain runs only the bounds walker over filename and returns its full
// result, proven obligations included, for display.
func (e *Engine) Explain(filename string) (*boundscheck.Result, *token.FileSet, error) {
	source, err := os.ReadFile(filename)
	if err != nil {
		return nil, nil, fmt.Errorf("error reading file: %w", err)
	}
	fset := token.NewFileSet()
	node, err := parser.ParseFile(fset, filename, source, parser.ParseComments)
	if err != nil {
		return nil, nil, fmt.Errorf("error parsing file: %w", err)
	}
	return e.checker.CheckFile(node, e.typeCheck(fset, node)), fset, nil
}

// typeCheck collects whatever type information is available. Unresolvable
// imports leave holes in the result; the resolver treats them as opaque.
func (e *Engine) typeCheck(fset *token.FileSet, file *ast.File) *types.Info {
	info := &types.Info{
		Types:      make(map[ast.Expr]types.TypeAndValue),
		Defs:       make(map[*ast.Ident]types.Object),
		Uses:       make(map[*ast.Ident]types.Object),
		Selections: make(map[*ast.SelectorExpr]*types.Selection),
	}
	conf := types.Config{
		Importer: stdImporter{importer.ForCompiler(fset, "source", nil)},
		Error: func(err error) {
			e.logger.Debug("type error", zap.Error(err))
		},
	}
	_, _ = conf.Check(file.Name.Name, fset, []*ast.File{file}, info)
	return info
}

// stdImporter resolves standard library packages from source and fails
// fast on everything else, which would need module resolution.
type stdImporter struct {
	types.Importer
}

func (s stdImporter) Import(path string) (*types.Package, error) {
	first, _, _ := strings.Cut(path, "/")
	if path == "C" || strings.Contains(first, ".") {
		return nil, fmt.Errorf("import %q: only standard library packages are resolved", path)
	}
	return s.Importer.Import(path)
}

func (e *Engine) IgnoreRule(rule string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ignoredRules == nil {
		e.ignoredRules = make(map[string]bool)
	}
	e.ignoredRules[rule] = true
}

// IgnorePath skips files matching a glob pattern or lying under a directory.
// Relative patterns are resolved against the engine's root directory.
func (e *Engine) IgnorePath(path string) {
	if path == "" {
		return
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(e.rootDir, path)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ignoredPaths = append(e.ignoredPaths, filepath.Clean(path))
}

func (e *Engine) isIgnoredPath(filename string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.ignoredPaths) == 0 {
		return false
	}
	abs := filename
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(e.rootDir, filename)
	}
	abs = filepath.Clean(abs)
	for _, p := range e.ignoredPaths {
		if matched, err := filepath.Match(p, abs); err == nil && matched {
			return true
		}
		if abs == p || strings.HasPrefix(abs, p+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// filterNolintIssues filters issues based on nolint comments.
func filterNolintIssues(mgr *nolint.Manager, issues []tt.Issue) []tt.Issue {
	if mgr == nil || mgr.Len() == 0 {
		return issues
	}
	filtered := make([]tt.Issue, 0, len(issues))
	for _, issue := range issues {
		if !mgr.IsNolint(issue.Start.Line, issue.Rule) {
			filtered = append(filtered, issue)
		}
	}
	return filtered
}

func sortIssues(issues []tt.Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if a.Start.Offset != b.Start.Offset {
			return a.Start.Offset < b.Start.Offset
		}
		if a.Rule != b.Rule {
			return a.Rule < b.Rule
		}
		return a.Message < b.Message
	})
}

// SourceCode stores the content of a source code file.
type SourceCode struct {
	Lines []string
}

// ReadSourceCode reads the content of a file and returns it as a `SourceCode` struct.
func ReadSourceCode(filename string) (*SourceCode, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return NewSourceCode(content), nil
}

// NewSourceCode splits content into lines.
func NewSourceCode(content []byte) *SourceCode {
	return &SourceCode{Lines: strings.Split(string(content), "\n")}
}
