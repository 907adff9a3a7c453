// Command boundvet runs the boundprove analyzer as a standalone vet tool:
//
//	go vet -vettool=$(which boundvet) ./...
package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"github.com/gnolang/boundprove/internal/analyzer"
)

func main() { singlechecker.Main(analyzer.Analyzer) }
