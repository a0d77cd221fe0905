package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"xdao.co/vcb/storage/bundle"
)

func (a *app) bundleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Move published status lists between stores as a tar bundle",
	}

	var outFile string
	export := &cobra.Command{
		Use:   "export <list-id>...",
		Short: "Write the named status lists to a bundle",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outFile == "" {
				return usageErrorf("missing --out")
			}
			s, err := a.store()
			if err != nil {
				return err
			}
			f, err := os.Create(outFile)
			if err != nil {
				return err
			}
			if err := bundle.Export(cmd.Context(), f, s, args); err != nil {
				_ = f.Close()
				return fmt.Errorf("export: %w", err)
			}
			return f.Close()
		},
	}
	export.Flags().StringVarP(&outFile, "out", "o", "", "Bundle file")

	importCmd := &cobra.Command{
		Use:   "import <bundle>",
		Short: "Store every object of a bundle and bind its list ids",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.store()
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			names, err := bundle.Import(cmd.Context(), f, s)
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}
			for _, n := range names {
				fmt.Fprintln(a.out, n)
			}
			return nil
		},
	}

	cmd.AddCommand(export, importCmd)
	return cmd
}
