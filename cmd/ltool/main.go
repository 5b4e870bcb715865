// Command ltool is §11.8's ambient CLI front-end. It never parses source
// text: every subcommand's input is an already-assembled prototype, in
// the textual form internal/testprog's assembler understands, matching
// spec.md's explicit exclusion of lexer/parser/codegen from this
// runtime's scope.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "ltool",
		Short:         "inspect and execute lightning-sub000 bytecode prototypes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newCompileCmd(), newGCStatCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ltool:", err)
		os.Exit(1)
	}
}
