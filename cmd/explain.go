package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/gnolang/boundprove/formatter"
	"github.com/gnolang/boundprove/internal"
	"github.com/gnolang/boundprove/lint"
)

var explainFunc string

var explainCmd = &cobra.Command{
	Use:   "explain <file.go>",
	Short: "Show every obligation and condition of a file with the facts behind each verdict",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := lint.New(".", cfgFile, logger)
		if err != nil {
			return err
		}
		return explain(os.Stdout, engine, args[0], explainFunc)
	},
}

func init() {
	explainCmd.Flags().StringVarP(&explainFunc, "func", "f", "", "Only explain this function (methods are written Recv.Method)")
}

func explain(w io.Writer, engine *internal.Engine, filename, fn string) error {
	res, fset, err := engine.Explain(filename)
	if err != nil {
		return err
	}

	if fn != "" {
		fr, ok := res.Func(fn)
		if !ok {
			return fmt.Errorf("no function %q in %s", fn, filename)
		}
		_, err := fmt.Fprint(w, formatter.FormatExplanation(fr, fset))
		return err
	}

	for i, fr := range res.Funcs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if _, err := fmt.Fprint(w, formatter.FormatExplanation(fr, fset)); err != nil {
			return err
		}
	}
	return nil
}
