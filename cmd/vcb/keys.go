package main

import (
	"crypto/rand"
	"fmt"

	"github.com/spf13/cobra"

	"xdao.co/vcb/keys"
	"xdao.co/vcb/model"
	"xdao.co/vcb/proof"
	"xdao.co/vcb/trustlist"
)

func (a *app) keyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Local key management",
		Long:  "Keys are stored as CBOR records under keys.dir/<name>; role keys derived from a seeded root live under <name>/roles.",
	}
	cmd.AddCommand(a.keyInitCmd(), a.keyDeriveCmd(), a.keyListCmd(), a.keyExportCmd())
	return cmd
}

func (a *app) keyInitCmd() *cobra.Command {
	var name, keyID, alg, seedHex string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a root signing key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if name == "" {
				return usageErrorf("missing --name")
			}
			if err := keys.CheckKeyName(name); err != nil {
				return usageErrorf("invalid --name: %v", err)
			}
			algorithm, err := proof.ParseAlgorithm(alg)
			if err != nil {
				return usageErrorf("invalid --alg: %v", err)
			}
			if keyID == "" {
				keyID = name
			}
			ks, err := a.keyStore()
			if err != nil {
				return fmt.Errorf("keys: %w", err)
			}

			var k *proof.PrivateKey
			var path string
			if seedHex != "" {
				seed, err := keys.ParseSeedHex(seedHex)
				if err != nil {
					return usageErrorf("invalid --seed-hex: %v", err)
				}
				k, path, err = ks.InitializeRootKey(name, keyID, algorithm, seed, force)
				if err != nil {
					return fmt.Errorf("write key: %w", err)
				}
			} else {
				k, path, err = ks.GenerateRootKey(name, keyID, algorithm, rand.Reader, force)
				if err != nil {
					return fmt.Errorf("write key: %w", err)
				}
			}
			a.logger.Info("created root key", "name", name, "key_id", k.ID(), "alg", k.Algorithm())
			return a.printKey(name, k.Public(), k.ID(), path, "Created root key")
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Key name (directory under keys.dir)")
	cmd.Flags().StringVar(&keyID, "key-id", "", "Key id carried in payloads (default --name)")
	cmd.Flags().StringVar(&alg, "alg", proof.Ed25519.String(), "Signature algorithm: ed25519, es256, es384, dilithium3")
	cmd.Flags().StringVar(&seedHex, "seed-hex", "", "Optional 32-byte seed as 64 hex chars (ed25519, dilithium3)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing key files")
	return cmd
}

func (a *app) keyDeriveCmd() *cobra.Command {
	var from, role string
	var force bool

	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive a role key from a seeded root key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if from == "" {
				return usageErrorf("missing --from")
			}
			if role == "" {
				return usageErrorf("missing --role")
			}
			if err := keys.CheckKeyName(from); err != nil {
				return usageErrorf("invalid --from: %v", err)
			}
			if err := keys.CheckRole(role); err != nil {
				return usageErrorf("invalid --role: %v", err)
			}
			ks, err := a.keyStore()
			if err != nil {
				return fmt.Errorf("keys: %w", err)
			}
			k, path, err := ks.DeriveKeyFromRole(from, role, force)
			if err != nil {
				return fmt.Errorf("derive role key: %w", err)
			}
			return a.printKey(from, k.Public(), k.ID(), path, "Created role key")
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Root key name")
	cmd.Flags().StringVar(&role, "role", "", "Role identifier (e.g. issuer, status)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing key files")
	return cmd
}

func (a *app) keyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ks, err := a.keyStore()
			if err != nil {
				return fmt.Errorf("keys: %w", err)
			}
			entries, err := ks.ListKeys()
			if err != nil {
				return fmt.Errorf("list keys: %w", err)
			}
			if a.jsonOut {
				reports := make([]model.KeyReport, 0, len(entries))
				for _, e := range entries {
					reports = append(reports, model.KeyReport{
						Identifier: e.Identifier,
						KeyID:      e.KeyID,
						Algorithm:  e.Algorithm.String(),
						Roles:      e.Roles,
					})
				}
				return a.printJSON(reports)
			}
			for _, e := range entries {
				fmt.Fprintf(a.out, "%s\t%s\t%s\n", e.Identifier, e.Algorithm, e.KeyID)
				for _, r := range e.Roles {
					fmt.Fprintf(a.out, "  - %s\n", r)
				}
			}
			return nil
		},
	}
}

func (a *app) keyExportCmd() *cobra.Command {
	var name, role string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print a public key in trust list form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if name == "" {
				return usageErrorf("missing --name")
			}
			ks, err := a.keyStore()
			if err != nil {
				return fmt.Errorf("keys: %w", err)
			}
			k, err := ks.Load(name, role)
			if err != nil {
				return fmt.Errorf("export key: %w", err)
			}
			return a.printKey(name, k.Public(), k.ID(), "", "")
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Key name")
	cmd.Flags().StringVar(&role, "role", "", "Optional role (exports the derived role key)")
	return cmd
}

func (a *app) printKey(name string, pub *proof.PublicKey, keyID, path, headline string) error {
	encoded, err := trustlist.EncodeKey(pub)
	if err != nil {
		return err
	}
	fp, err := keys.Fingerprint(pub)
	if err != nil {
		return err
	}
	if a.jsonOut {
		return a.printJSON(model.KeyReport{
			Identifier:  name,
			KeyID:       keyID,
			Algorithm:   pub.Algorithm().String(),
			Fingerprint: fp,
			PublicKey:   encoded,
			Path:        path,
		})
	}
	if headline != "" {
		fmt.Fprintf(a.out, "%s: %s\n", headline, keyID)
		fmt.Fprintf(a.out, "Stored at: %s\n", path)
	}
	fmt.Fprintf(a.out, "Key-Id: %s\nKey: %s\nFingerprint: %s\n", keyID, encoded, fp)
	return nil
}
