package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/li-script/lightning-sub000/internal/langerr"
	"github.com/li-script/lightning-sub000/internal/value"
	"github.com/li-script/lightning-sub000/internal/vm"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <file>",
		Short: "assemble a prototype and execute it on the bytecode VM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := newEnv()
			proto, err := e.assembleFile(args[0])
			if err != nil {
				return err
			}

			machine := vm.New(e.heap, e.strings, e.cfg)
			result, err := machine.Run(proto)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), formatResult(machine, result))
			return nil
		},
	}
}

// formatResult renders a VM.Run result the way a terminal tool should:
// numbers and booleans print their literal value, an exception prints
// its recovered message text rather than a NaN-boxed bit pattern, and
// everything else falls back to its value.Kind name.
func formatResult(machine *vm.VM, v value.Value) string {
	switch {
	case v.IsException():
		return fmt.Sprintf("exception: %s", langerr.Message(machine.LastException()))
	case v.IsNumber():
		return fmt.Sprintf("%g", v.AsNumber())
	case v.IsBool():
		return fmt.Sprintf("%t", v.AsBool())
	case v.IsNil():
		return "nil"
	default:
		return fmt.Sprintf("<%s>", v.Kind())
	}
}
