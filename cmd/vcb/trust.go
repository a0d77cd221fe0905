package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"xdao.co/vcb/compliance"
	"xdao.co/vcb/trustlist"
)

func (a *app) trustCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trust",
		Short: "Maintain trust list files",
	}
	cmd.AddCommand(a.trustAddCmd(), a.trustShowCmd())
	return cmd
}

func (a *app) trustAddCmd() *cobra.Command {
	var listFile, name, role, trustRole string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a stored key to a trust list, creating the file if needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listFile == "" {
				return usageErrorf("missing --list")
			}
			if name == "" {
				return usageErrorf("missing --name")
			}
			if trustRole != trustlist.RoleIssuer && trustRole != trustlist.RoleStatus {
				return usageErrorf("invalid --trust-role %q: want %s or %s", trustRole, trustlist.RoleIssuer, trustlist.RoleStatus)
			}
			ks, err := a.keyStore()
			if err != nil {
				return fmt.Errorf("keys: %w", err)
			}
			k, err := ks.Load(name, role)
			if err != nil {
				return fmt.Errorf("load key: %w", err)
			}

			l := &trustlist.List{Meta: map[string]string{}}
			data, err := os.ReadFile(listFile)
			switch {
			case err == nil:
				l, err = trustlist.ParseStrict(data)
				if err != nil {
					return fmt.Errorf("trust list %s: %w", listFile, err)
				}
			case errors.Is(err, fs.ErrNotExist):
			default:
				return err
			}

			kept := l.Trust[:0]
			for _, e := range l.Trust {
				if e.KeyID != k.ID() {
					kept = append(kept, e)
				}
			}
			l.Trust = append(kept, trustlist.Entry{KeyID: k.ID(), Key: k.Public(), Role: trustRole})

			out, err := trustlist.Render(l)
			if err != nil {
				return err
			}
			if _, err := trustlist.ParseStrict(out); err != nil {
				return fmt.Errorf("rendered trust list does not parse: %w", err)
			}
			if err := os.WriteFile(listFile, out, 0o644); err != nil {
				return err
			}
			a.logger.Info("trust list updated", "path", listFile, "key_id", k.ID(), "role", trustRole, "entries", len(l.Trust))
			return nil
		},
	}
	cmd.Flags().StringVar(&listFile, "list", "", "Trust list file")
	cmd.Flags().StringVar(&name, "name", "", "Key store identifier")
	cmd.Flags().StringVar(&role, "role", "", "Optional role key under --name")
	cmd.Flags().StringVar(&trustRole, "trust-role", trustlist.RoleIssuer, "Trusted for: issuer or status")
	return cmd
}

func (a *app) trustShowCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "show <trust-list>",
		Short: "Parse a trust list and print its entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := compliance.Permissive
			if strict {
				mode = compliance.Strict
			}
			l, err := readTrustList(args[0], mode)
			if err != nil {
				return err
			}
			for _, e := range l.Trust {
				fmt.Fprintf(a.out, "%s\t%s\t%s\n", e.KeyID, e.Role, e.Key.Algorithm())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Apply strict parsing rules")
	return cmd
}
