package formatter

import (
	"bytes"
	"fmt"
	"go/token"
	"strings"
	"text/template"

	"github.com/gnolang/boundprove/internal/boundscheck"
)

const explainTemplate = `{{ruleStyle "func"}} {{.Name}} {{lineStyle .Where}} (complexity {{.Complexity}})
{{- if .Skipped}}
  skipped: complexity above the configured limit
{{- end}}
{{- range .Obligations}}
  {{lineStyle .At}} {{status .Proven}} {{.Goal}}
{{- range .Facts}}
      {{lineStyle "|"}} {{.}}
{{- end}}
{{- end}}
{{- range .Conditions}}
  {{lineStyle .At}} {{verdict .Verdict}} if {{.Text}}
{{- end}}
`

type explainLine struct {
	At      string
	Goal    string
	Text    string
	Proven  bool
	Verdict boundscheck.Verdict
	Facts   []string
}

type explainData struct {
	Name        string
	Where       string
	Complexity  int
	Skipped     bool
	Obligations []explainLine
	Conditions  []explainLine
}

var explainTmpl = template.Must(template.New("explain").Funcs(template.FuncMap{
	"ruleStyle": func(s string) string { return ruleStyle.Sprint(s) },
	"lineStyle": func(s string) string { return lineStyle.Sprint(s) },
	"status": func(proven bool) string {
		if proven {
			return provenStyle.Sprint("proven  ")
		}
		return unprovenStyle.Sprint("unproven")
	},
	"verdict": func(v boundscheck.Verdict) string {
		if v == boundscheck.Unknown {
			return fmt.Sprintf("%-12s", "undecided")
		}
		return warningStyle.Sprintf("%-12s", v)
	},
}).Parse(explainTemplate))

// FormatExplanation lists every obligation and condition of a function in
// source order, with the facts that were in scope at each.
func FormatExplanation(fr boundscheck.FuncResult, fset *token.FileSet) string {
	pos := func(p token.Pos) string {
		position := fset.Position(p)
		return fmt.Sprintf("%d:%d", position.Line, position.Column)
	}

	where := fset.Position(fr.Pos)
	data := explainData{
		Name:       fr.Name,
		Where:      fmt.Sprintf("%s:%d", displayName(where.Filename), where.Line),
		Complexity: fr.Complexity,
		Skipped:    fr.Skipped,
	}

	width := 0
	for _, ob := range fr.Obligations {
		width = max(width, len(pos(ob.Pos)))
	}
	for _, c := range fr.Conditions {
		width = max(width, len(pos(c.Pos)))
	}
	pad := func(s string) string {
		return s + strings.Repeat(" ", width-len(s))
	}

	for _, ob := range fr.Obligations {
		data.Obligations = append(data.Obligations, explainLine{
			At:     pad(pos(ob.Pos)),
			Goal:   ob.Goal,
			Proven: ob.Proven,
			Facts:  ob.Facts,
		})
	}
	for _, c := range fr.Conditions {
		data.Conditions = append(data.Conditions, explainLine{
			At:      pad(pos(c.Pos)),
			Text:    c.Text,
			Verdict: c.Verdict,
		})
	}

	var buf bytes.Buffer
	if err := explainTmpl.Execute(&buf, data); err != nil {
		return fmt.Sprintf("Error formatting explanation: %v", err)
	}
	return buf.String()
}
