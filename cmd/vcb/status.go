package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"xdao.co/vcb/cidutil"
	"xdao.co/vcb/model"
	"xdao.co/vcb/proof"
	"xdao.co/vcb/statuslist"
	"xdao.co/vcb/storage"
	"xdao.co/vcb/trust"
)

func (a *app) statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Issue and update status list credentials",
		Long: "Status list credentials are signed, published to the configured storage and " +
			"bound to their list id, which is where verifiers look them up.",
	}
	cmd.AddCommand(a.statusIssueCmd(), a.statusSetCmd(), a.statusShowCmd())
	return cmd
}

func (a *app) statusIssueCmd() *cobra.Command {
	var signer signerFlags
	var listID, purpose, validUntil string
	var entries int

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Publish a new, all-clear status list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listID == "" {
				return usageErrorf("missing --list-id")
			}
			p, err := statuslist.ParsePurpose(purpose)
			if err != nil {
				return usageErrorf("invalid --purpose: %v", err)
			}
			var until time.Time
			if validUntil != "" {
				until, err = time.Parse(time.RFC3339, validUntil)
				if err != nil {
					return usageErrorf("invalid --valid-until: %v", err)
				}
			}
			l, err := statuslist.New(entries)
			if err != nil {
				return usageErrorf("invalid --entries: %v", err)
			}
			key, err := signer.load(a)
			if err != nil {
				return err
			}
			s, err := a.store()
			if err != nil {
				return err
			}
			c := &statuslist.Credential{ID: listID, Purpose: p, List: l, ValidUntil: until}
			return a.publishStatus(cmd.Context(), s, c, key)
		},
	}
	signer.register(cmd)
	cmd.Flags().StringVar(&listID, "list-id", "", "Status list id (e.g. https://issuer.example/status/revocation/0)")
	cmd.Flags().StringVar(&purpose, "purpose", string(statuslist.Revocation), "Status purpose: revocation or suspension")
	cmd.Flags().IntVar(&entries, "entries", statuslist.DefaultListLength, "Number of entries")
	cmd.Flags().StringVar(&validUntil, "valid-until", "", "Optional RFC 3339 expiry")
	return cmd
}

func (a *app) statusSetCmd() *cobra.Command {
	var signer signerFlags
	var listID string
	var indexes []int
	var clearBits bool

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set or clear entries and republish the list",
		Long: "Loads the current credential for --list-id, checks it was signed by the same " +
			"key, flips the given entries and publishes the re-signed credential.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listID == "" {
				return usageErrorf("missing --list-id")
			}
			if len(indexes) == 0 {
				return usageErrorf("missing --index")
			}
			key, err := signer.load(a)
			if err != nil {
				return err
			}
			s, err := a.store()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			b, err := storage.Fetch(ctx, s, listID)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", listID, err)
			}
			own := trust.NewStatic()
			own.AddKey(key.ID(), key.Public())
			c, err := statuslist.Open(ctx, b, own)
			if err != nil {
				return fmt.Errorf("open %s: %w", listID, err)
			}
			if c.ID != listID {
				return fmt.Errorf("credential at %s is for list %s", listID, c.ID)
			}
			for _, i := range indexes {
				if err := c.List.Set(i, !clearBits); err != nil {
					return usageErrorf("invalid --index: %v", err)
				}
			}
			a.logger.Info("updating status list", "list_id", listID, "entries", indexes, "set", !clearBits)
			return a.publishStatus(ctx, s, c, key)
		},
	}
	signer.register(cmd)
	cmd.Flags().StringVar(&listID, "list-id", "", "Status list id")
	cmd.Flags().IntSliceVar(&indexes, "index", nil, "Entry to change (repeatable)")
	cmd.Flags().BoolVar(&clearBits, "clear", false, "Clear the entries instead of setting them")
	return cmd
}

func (a *app) statusShowCmd() *cobra.Command {
	var listID, trustList string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Verify a published status list and print its set entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listID == "" {
				return usageErrorf("missing --list-id")
			}
			if trustList == "" {
				trustList = a.cfg.Verify.TrustList
			}
			if trustList == "" {
				return usageErrorf("missing --trust-list")
			}
			mode, err := a.complianceMode("")
			if err != nil {
				return err
			}
			l, err := readTrustList(trustList, mode)
			if err != nil {
				return err
			}
			s, err := a.store()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			b, err := storage.Fetch(ctx, s, listID)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", listID, err)
			}
			c, err := statuslist.Open(ctx, b, l.Static())
			if err != nil {
				return fmt.Errorf("open %s: %w", listID, err)
			}
			rep, err := statusReport(c, b)
			if err != nil {
				return err
			}
			return a.printStatus(rep)
		},
	}
	cmd.Flags().StringVar(&listID, "list-id", "", "Status list id")
	cmd.Flags().StringVar(&trustList, "trust-list", "", "Trust list file (default verify.trust_list)")
	return cmd
}

func (a *app) publishStatus(ctx context.Context, s storage.Store, c *statuslist.Credential, key *proof.PrivateKey) error {
	b, err := statuslist.Issue(c, key)
	if err != nil {
		return fmt.Errorf("issue: %w", err)
	}
	id, err := storage.Publish(ctx, s, c.ID, b)
	if err != nil {
		return fmt.Errorf("publish %s: %w", c.ID, err)
	}
	a.logger.Info("published status list", "list_id", c.ID, "cid", id.String(), "bytes", len(b))
	rep, err := statusReport(c, b)
	if err != nil {
		return err
	}
	return a.printStatus(rep)
}

func statusReport(c *statuslist.Credential, b []byte) (model.StatusListReport, error) {
	rep := model.StatusListReport{
		ListID:  c.ID,
		Purpose: string(c.Purpose),
		Entries: c.List.Len(),
		Size:    len(b),
	}
	id, err := cidutil.Of(b)
	if err != nil {
		return rep, err
	}
	rep.CID = id.String()
	if !c.ValidUntil.IsZero() {
		rep.ValidUntil = c.ValidUntil.UTC().Format(time.RFC3339)
	}
	for i := 0; i < c.List.Len(); i++ {
		if on, _ := c.List.Get(i); on {
			rep.Set = append(rep.Set, i)
		}
	}
	return rep, nil
}

func (a *app) printStatus(rep model.StatusListReport) error {
	if a.jsonOut {
		return a.printJSON(rep)
	}
	fmt.Fprintf(a.out, "List-Id: %s\nPurpose: %s\nEntries: %d\nCID: %s\n", rep.ListID, rep.Purpose, rep.Entries, rep.CID)
	if rep.ValidUntil != "" {
		fmt.Fprintf(a.out, "Valid-Until: %s\n", rep.ValidUntil)
	}
	fmt.Fprintf(a.out, "Set: %v\n", rep.Set)
	return nil
}
