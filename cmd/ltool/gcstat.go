package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/li-script/lightning-sub000/internal/gcprofile"
	"github.com/li-script/lightning-sub000/internal/vm"
)

func newGCStatCmd() *cobra.Command {
	var pprofPath string
	cmd := &cobra.Command{
		Use:   "gcstat <file>",
		Short: "run a prototype and report its heap's live objects by kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := newEnv()
			proto, err := e.assembleFile(args[0])
			if err != nil {
				return err
			}

			machine := vm.New(e.heap, e.strings, e.cfg)
			if _, err := machine.Run(proto); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KIND\tOBJECTS\tBYTES")
			for _, s := range gcprofile.Stats(e.heap) {
				fmt.Fprintf(tw, "%s\t%d\t%d\n", s.Kind, s.Objects, s.Bytes)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if pprofPath == "" {
				return nil
			}
			f, err := os.Create(pprofPath)
			if err != nil {
				return err
			}
			defer f.Close()
			return gcprofile.Snapshot(e.heap).Write(f)
		},
	}
	cmd.Flags().StringVar(&pprofPath, "pprof", "", "also write a pprof heap profile to this path")
	return cmd
}
