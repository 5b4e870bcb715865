package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/li-script/lightning-sub000/internal/lift"
	"github.com/li-script/lightning-sub000/internal/mir"
	"github.com/li-script/lightning-sub000/internal/opt"
)

func newCompileCmd() *cobra.Command {
	var skipOpt bool
	cmd := &cobra.Command{
		Use:   "compile <file>",
		Short: "lift, optimize, and lower a prototype, dumping the resulting MIR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := newEnv()
			proto, err := e.assembleFile(args[0])
			if err != nil {
				return err
			}

			proc, err := lift.Lift(proto)
			if err != nil {
				return fmt.Errorf("lift: %w", err)
			}
			if !skipOpt {
				if err := opt.Optimize(proc, e.cfg); err != nil {
					return fmt.Errorf("optimize: %w", err)
				}
			}

			mp := mir.Lower(proc)
			fmt.Fprint(cmd.OutOrStdout(), mp.String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipOpt, "no-opt", false, "lower directly off lift's output, skipping internal/opt's passes")
	return cmd
}
