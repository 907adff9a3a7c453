package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/boundprove/internal/frontend"
	"github.com/gnolang/boundprove/internal/prover"
)

const (
	replPrompt  = "prove> "
	historyFile = ".boundprove_history"
)

const replHelp = `fact EXPR        assume EXPR holds
assume-not EXPR  assume EXPR does not hold
let x = EXPR     bind x to EXPR
prove EXPR       ask whether EXPR follows from the facts
:push            remember the current facts
:pop             forget the facts added since the matching :push
:facts           list the facts
:vars            list the variables seen so far
:quit            leave
`

var (
	provenColor   = color.New(color.FgGreen, color.Bold)
	refutedColor  = color.New(color.FgRed, color.Bold)
	unknownColor  = color.New(color.FgYellow)
	replErrColor  = color.New(color.FgRed)
	errNothingPop = errors.New("no :push to pop")
)

var replCmd = &cobra.Command{
	Use:   "repl [script]",
	Short: "Feed facts to the prover and query it interactively",
	Long: `Start an interactive prover session. Every identifier is an integer
variable. With a script argument the commands are read from the file
instead and echoed with their answers.

` + replHelp,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := newSession(os.Stdout, logger)
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return s.runScript(f)
		}
		return s.interactive()
	},
}

// session is one prover context together with the identifiers it has seen.
type session struct {
	out   io.Writer
	res   *frontend.ScratchResolver
	low   *frontend.Lowerer
	ctx   *prover.Context
	marks []prover.State
}

func newSession(out io.Writer, logger *zap.Logger) *session {
	res := frontend.NewScratchResolver()
	return &session{
		out: out,
		res: res,
		low: frontend.NewLowerer(res),
		ctx: prover.NewContext(prover.WithLogger(logger.Named("repl"))),
	}
}

func (s *session) interactive() error {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(s.complete)

	if home, err := os.UserHomeDir(); err == nil {
		histPath := filepath.Join(home, historyFile)
		if f, err := os.Open(histPath); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
		defer func() {
			if f, err := os.Create(histPath); err == nil {
				_, _ = ln.WriteHistory(f)
				_ = f.Close()
			}
		}()
	}

	fmt.Fprintln(s.out, "boundprove prover session, :help lists the commands")
	for {
		line, err := ln.Prompt(replPrompt)
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Fprintln(s.out)
			return nil
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(line) != "" {
			ln.AppendHistory(line)
		}

		more, err := s.exec(line)
		if err != nil {
			fmt.Fprintln(s.out, replErrColor.Sprint("error: "+err.Error()))
		}
		if !more {
			return nil
		}
	}
}

// runScript executes r line by line, echoing each command. It stops at the
// first error.
func (s *session) runScript(r io.Reader) error {
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := sc.Text()
		if strings.TrimSpace(line) == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		fmt.Fprintln(s.out, replPrompt+line)
		more, err := s.exec(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
		if !more {
			return nil
		}
	}
	return sc.Err()
}

func (s *session) complete(line string) []string {
	var out []string
	for _, c := range []string{"fact ", "assume-not ", "let ", "prove ", ":push", ":pop", ":facts", ":vars", ":help", ":quit"} {
		if strings.HasPrefix(c, line) {
			out = append(out, c)
		}
	}
	return out
}

// exec runs one command. It returns false when the session should end.
func (s *session) exec(line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return true, nil
	}

	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch verb {
	case ":quit", ":q":
		return false, nil
	case ":help":
		fmt.Fprint(s.out, replHelp)
	case ":push":
		s.marks = append(s.marks, s.ctx.RecordState())
	case ":pop":
		if len(s.marks) == 0 {
			return true, errNothingPop
		}
		s.ctx.Rollback(s.marks[len(s.marks)-1])
		s.marks = s.marks[:len(s.marks)-1]
	case ":facts":
		facts := s.ctx.Facts()
		if len(facts) == 0 {
			fmt.Fprintln(s.out, "no facts")
		}
		for _, f := range facts {
			fmt.Fprintln(s.out, s.ctx.FormatFact(f))
		}
	case ":vars":
		fmt.Fprintln(s.out, strings.Join(s.res.Names(), " "))
	case "fact", "assume-not":
		e, err := s.parse(rest)
		if err != nil {
			return true, err
		}
		s.ctx.AddFact(s.low.Expr(e), verb == "assume-not")
	case "let":
		name, value, ok := strings.Cut(rest, "=")
		name = strings.TrimSpace(name)
		if !ok || !isIdent(name) {
			return true, fmt.Errorf("usage: let x = EXPR")
		}
		e, err := s.parse(value)
		if err != nil {
			return true, err
		}
		s.ctx.AddAsgnFact(s.low.Expr(ast.NewIdent(name)), s.low.Expr(e))
	case "prove":
		e, err := s.parse(rest)
		if err != nil {
			return true, err
		}
		n := s.low.Expr(e)
		switch {
		case s.ctx.Prove(n, false):
			fmt.Fprintln(s.out, provenColor.Sprint("proven"))
		case s.ctx.Prove(n, true):
			fmt.Fprintln(s.out, refutedColor.Sprint("refuted"))
		default:
			fmt.Fprintln(s.out, unknownColor.Sprint("unknown"))
		}
	default:
		return true, fmt.Errorf("unknown command %q, :help lists the commands", verb)
	}
	return true, nil
}

func (s *session) parse(src string) (ast.Expr, error) {
	if strings.TrimSpace(src) == "" {
		return nil, errors.New("missing expression")
	}
	e, err := parser.ParseExpr(src)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", src, err)
	}
	return e, nil
}

func isIdent(s string) bool {
	e, err := parser.ParseExpr(s)
	if err != nil {
		return false
	}
	_, ok := e.(*ast.Ident)
	return ok
}
