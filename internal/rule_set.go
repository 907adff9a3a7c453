package internal

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"strings"
	"sync"

	"github.com/gnolang/boundprove/internal/boundscheck"
	tt "github.com/gnolang/boundprove/internal/types"
)

// LintRule defines the interface for all lint rules.
type LintRule interface {
	// Check runs the lint rule on the given unit and returns a slice of Issues.
	Check(unit *Unit) ([]tt.Issue, error)

	// Name returns the name of the lint rule.
	Name() string

	// Severity returns the level the rule reports at.
	Severity() tt.Severity

	// SetSeverity changes the level the rule reports at.
	SetSeverity(tt.Severity)
}

// Unit is one parsed and type-checked file handed to every rule.
type Unit struct {
	Filename string
	File     *ast.File
	Fset     *token.FileSet
	Info     *types.Info

	checker *boundscheck.Checker
	once    sync.Once
	result  *boundscheck.Result
}

// Bounds returns the bounds walker's result for the file, computing it on
// first use.
func (u *Unit) Bounds() *boundscheck.Result {
	u.once.Do(func() {
		u.result = u.checker.CheckFile(u.File, u.Info)
	})
	return u.result
}

func (u *Unit) issue(rule string, sev tt.Severity, pos, end token.Pos) tt.Issue {
	return tt.Issue{
		Rule:     rule,
		Category: "bounds",
		Filename: u.Filename,
		Start:    u.Fset.Position(pos),
		End:      u.Fset.Position(end),
		Severity: sev,
	}
}

func factsNote(facts []string) string {
	if len(facts) == 0 {
		return "nothing is known about the operands here"
	}
	return "known here: " + strings.Join(facts, ", ")
}

type UnprovenIndexRule struct {
	severity tt.Severity
}

func NewUnprovenIndexRule() LintRule {
	return &UnprovenIndexRule{severity: tt.SeverityWarning}
}

func (r *UnprovenIndexRule) Check(unit *Unit) ([]tt.Issue, error) {
	var issues []tt.Issue
	for _, ob := range unit.Bounds().Unproven() {
		issue := unit.issue(r.Name(), r.severity, ob.Pos, ob.End)
		issue.Message = fmt.Sprintf("cannot prove %s", ob.Goal)
		issue.Suggestion = "guard the access with a bounds check or iterate with range"
		issue.Note = factsNote(ob.Facts)
		issue.Facts = ob.Facts
		issues = append(issues, issue)
	}
	return issues, nil
}

func (r *UnprovenIndexRule) Name() string {
	return "unproven-index"
}

func (r *UnprovenIndexRule) Severity() tt.Severity {
	return r.severity
}

func (r *UnprovenIndexRule) SetSeverity(severity tt.Severity) {
	r.severity = severity
}

type RedundantConditionRule struct {
	severity tt.Severity
}

func NewRedundantConditionRule() LintRule {
	return &RedundantConditionRule{severity: tt.SeverityError}
}

func (r *RedundantConditionRule) Check(unit *Unit) ([]tt.Issue, error) {
	var issues []tt.Issue
	for _, c := range unit.Bounds().Redundant() {
		issue := unit.issue(r.Name(), r.severity, c.Pos, c.End)
		issue.Message = fmt.Sprintf("condition %s is %s", c.Text, c.Verdict)
		if c.Verdict == boundscheck.AlwaysTrue {
			issue.Suggestion = "drop the check and keep its body"
		} else {
			issue.Suggestion = "the guarded branch is dead code"
		}
		issue.Note = factsNote(c.Facts)
		issue.Facts = c.Facts
		issues = append(issues, issue)
	}
	return issues, nil
}

func (r *RedundantConditionRule) Name() string {
	return "redundant-condition"
}

func (r *RedundantConditionRule) Severity() tt.Severity {
	return r.severity
}

func (r *RedundantConditionRule) SetSeverity(severity tt.Severity) {
	r.severity = severity
}
