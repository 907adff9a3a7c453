// Package nolint interprets //nolint comments.
//
// A directive silences every rule, or only the listed ones with
// //nolint:rule1,rule2. Where it applies depends on where it is written:
//
//   - above the package clause: the whole file
//   - after a statement on the same line: that statement
//   - on its own line directly above a statement or function: that node
//   - anywhere else: its own line
//
// Text after a second "//" is an explanation and is ignored.
package nolint

import (
	"errors"
	"go/ast"
	"go/token"
	"strings"
)

const prefix = "//nolint"

var (
	errNotDirective = errors.New("not a nolint directive")
	errNoRules      = errors.New("nolint directive lists no rules after the colon")
)

// span is an inclusive range of lines silenced for some rules.
type span struct {
	rules    map[string]bool // empty means every rule
	from, to int
}

func (s span) covers(line int, rule string) bool {
	if line < s.from || line > s.to {
		return false
	}
	return len(s.rules) == 0 || s.rules[rule]
}

// Manager answers whether an issue in one file is silenced.
type Manager struct {
	spans []span
}

// ParseComments collects the directives of f.
func ParseComments(f *ast.File, fset *token.FileSet) *Manager {
	m := &Manager{}
	idx := newLineIndex(f, fset)
	pkgLine := fset.Position(f.Package).Line
	fileEnd := fset.Position(f.End()).Line

	for _, cg := range f.Comments {
		for _, c := range cg.List {
			rules, err := parseDirective(c.Text)
			if err != nil {
				continue
			}
			line := fset.Position(c.Slash).Line
			s := span{rules: rules, from: line, to: line}

			switch {
			case line < pkgLine:
				s.from, s.to = 1, fileEnd
			case idx.inline(c, fset):
				s.from, s.to = idx.extent(idx.stmts[line], fset)
			default:
				if n := idx.at(line + 1); n != nil {
					_, s.to = idx.extent(n, fset)
				}
			}
			m.spans = append(m.spans, s)
		}
	}
	return m
}

// parseDirective returns the rule set of a //nolint comment.
func parseDirective(text string) (map[string]bool, error) {
	if !strings.HasPrefix(text, prefix) {
		return nil, errNotDirective
	}
	rest := text[len(prefix):]
	if i := strings.Index(rest, "//"); i >= 0 {
		rest = rest[:i]
	}
	rest = strings.TrimRight(rest, " \t")
	if rest == "" {
		return nil, nil
	}
	if rest[0] != ':' {
		// //nolintfoo and the like
		return nil, errNotDirective
	}
	rules := make(map[string]bool)
	for _, r := range strings.Split(rest[1:], ",") {
		if r = strings.TrimSpace(r); r != "" {
			rules[r] = true
		}
	}
	if len(rules) == 0 {
		return nil, errNoRules
	}
	return rules, nil
}

// lineIndex maps a line to the first statement and the function
// declaration that start on it.
type lineIndex struct {
	stmts map[int]ast.Stmt
	funcs map[int]*ast.FuncDecl
}

func newLineIndex(f *ast.File, fset *token.FileSet) *lineIndex {
	idx := &lineIndex{
		stmts: make(map[int]ast.Stmt),
		funcs: make(map[int]*ast.FuncDecl),
	}
	for _, d := range f.Decls {
		if fn, ok := d.(*ast.FuncDecl); ok {
			idx.funcs[fset.Position(fn.Pos()).Line] = fn
		}
	}
	ast.Inspect(f, func(n ast.Node) bool {
		if st, ok := n.(ast.Stmt); ok {
			line := fset.Position(st.Pos()).Line
			if _, seen := idx.stmts[line]; !seen {
				idx.stmts[line] = st
			}
		}
		return true
	})
	return idx
}

func (idx *lineIndex) at(line int) ast.Node {
	if fn, ok := idx.funcs[line]; ok {
		return fn
	}
	if st, ok := idx.stmts[line]; ok {
		return st
	}
	return nil
}

// inline reports whether c follows a statement on the same line.
func (idx *lineIndex) inline(c *ast.Comment, fset *token.FileSet) bool {
	pos := fset.Position(c.Slash)
	st, ok := idx.stmts[pos.Line]
	return ok && pos.Offset > fset.Position(st.Pos()).Offset
}

func (idx *lineIndex) extent(n ast.Node, fset *token.FileSet) (int, int) {
	return fset.Position(n.Pos()).Line, fset.Position(n.End()).Line
}

// IsNolint reports whether rule is silenced on line.
func (m *Manager) IsNolint(line int, rule string) bool {
	for _, s := range m.spans {
		if s.covers(line, rule) {
			return true
		}
	}
	return false
}

// Len is the number of directives found.
func (m *Manager) Len() int {
	return len(m.spans)
}
