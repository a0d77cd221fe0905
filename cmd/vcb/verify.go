package main

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"xdao.co/vcb/barcode"
	"xdao.co/vcb/model"
	"xdao.co/vcb/optical"
	"xdao.co/vcb/qrtext"
	"xdao.co/vcb/statuslist"
)

func (a *app) verifyCmd() *cobra.Command {
	var opt opticalFlags
	var trustList, mode, listID, purpose string
	var index int

	cmd := &cobra.Command{
		Use:   "verify <payload-file|DL/ID file|QR text>",
		Short: "Verify a barcode payload",
		Long: "Checks the signature against the trust list, the status list entry named by " +
			"--status-list-id or by the terse entry in the claims, and any optical binding. " +
			"A DL/ID data file is verified against its own DL subfile unless optical flags are given. " +
			"Exits 1 when the result is not accepted under the compliance mode.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.complianceMode(mode)
			if err != nil {
				return usageErrorf("invalid --mode: %v", err)
			}
			b, dlid, err := readPayload(args[0])
			if err != nil {
				return err
			}
			if dlid && !opt.set() {
				opt.aamva = args[0]
			}

			req := barcode.VerifyRequest{StatusListLength: a.cfg.Verify.StatusListLength}
			switch {
			case listID != "":
				req.Status = &statuslist.Reference{ListID: listID, Index: index}
			case purpose != "":
				p, err := statuslist.ParsePurpose(purpose)
				if err != nil {
					return usageErrorf("invalid --status-purpose: %v", err)
				}
				req.StatusPurpose = p
			}
			if opt.set() {
				d, _, err := opt.digest()
				if err != nil {
					return err
				}
				req.OpticalDigest = d
			}

			r, closeFn, err := a.resolver(trustList, m)
			if err != nil {
				return err
			}
			defer closeFn()

			opts := []barcode.Option{barcode.WithLogger(a.logger)}
			if n := a.cfg.Verify.MaxExpandedBytes; n > 0 {
				opts = append(opts, barcode.WithMaxExpandedSize(n))
			}
			res := barcode.NewVerifier(r, opts...).Verify(cmd.Context(), b, req)
			rep := model.NewVerificationReport(res, m)

			if a.jsonOut {
				if err := a.printJSON(rep); err != nil {
					return err
				}
			} else {
				printVerification(a, rep)
			}
			if !rep.Accepted {
				return &exitError{code: 1}
			}
			return nil
		},
	}
	opt.register(cmd)
	cmd.Flags().StringVar(&trustList, "trust-list", "", "Trust list file (default verify.trust_list)")
	cmd.Flags().StringVar(&mode, "mode", "", "Compliance mode: permissive or strict (default verify.compliance)")
	cmd.Flags().StringVar(&listID, "status-list-id", "", "Status list to check, overriding any terse entry")
	cmd.Flags().IntVar(&index, "status-index", 0, "Entry within --status-list-id")
	cmd.Flags().StringVar(&purpose, "status-purpose", string(statuslist.Revocation), "Purpose used to expand a terse status entry; empty skips discovery")
	return cmd
}

// readPayload accepts a payload file, an AAMVA DL/ID data file, a file
// holding QR text, or QR text given directly on the command line. dlid
// reports that arg was a DL/ID file.
func readPayload(arg string) (b []byte, dlid bool, err error) {
	if strings.HasPrefix(arg, qrtext.Prefix) {
		b, err = qrtext.Decode(arg)
		return b, false, err
	}
	if b, err = os.ReadFile(arg); err != nil {
		return nil, false, err
	}
	if optical.IsDLIDFile(b) {
		f, err := optical.ParseFile(b)
		if err != nil {
			return nil, true, fmt.Errorf("dl/id %s: %w", arg, err)
		}
		b, err = f.Payload()
		if err != nil {
			return nil, true, fmt.Errorf("dl/id %s: %w", arg, err)
		}
		return b, true, nil
	}
	if text := bytes.TrimSpace(b); bytes.HasPrefix(text, []byte(qrtext.Prefix)) {
		b, err = qrtext.Decode(string(text))
		return b, false, err
	}
	return b, false, nil
}

func printVerification(a *app, rep model.VerificationReport) {
	fmt.Fprintf(a.out, "Outcome: %s\n", rep.Outcome)
	fmt.Fprintf(a.out, "Accepted: %t (%s)\n", rep.Accepted, rep.Compliance)
	fmt.Fprintf(a.out, "Stage: %s\n", rep.Stage)
	fmt.Fprintf(a.out, "Signature: %s\n", rep.Signature)
	fmt.Fprintf(a.out, "Status: %s\n", rep.Status)
	if rep.StatusRef != nil {
		fmt.Fprintf(a.out, "Status-Ref: %s#%d\n", rep.StatusRef.ListID, rep.StatusRef.Index)
	}
	if rep.StatusError != "" {
		fmt.Fprintf(a.out, "Status-Error: %s\n", rep.StatusError)
	}
	if rep.KeyID != "" {
		fmt.Fprintf(a.out, "Key-Id: %s (%s, %s)\n", rep.KeyID, rep.Algorithm, rep.Digest)
	}
	fmt.Fprintf(a.out, "Payload: %s (%d bytes)\n", rep.PayloadCID, rep.Size)
	if rep.Error != nil {
		fmt.Fprintf(a.out, "Error: %s", rep.Error.Message)
		if rep.Error.RuleID != "" {
			fmt.Fprintf(a.out, " [%s]", rep.Error.RuleID)
		}
		fmt.Fprintln(a.out)
	}
	if len(rep.Claims) > 0 {
		fmt.Fprintln(a.out, "Claims:")
	}
	for _, c := range claimLines(rep.Claims, "  ") {
		fmt.Fprintln(a.out, c)
	}
}

// claimLines renders claims as sorted "key: value" lines, nested graphs
// indented under their key.
func claimLines(m map[string]any, indent string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []string
	for _, k := range keys {
		if nested, ok := m[k].(map[string]any); ok {
			out = append(out, indent+k+":")
			out = append(out, claimLines(nested, indent+"  ")...)
			continue
		}
		out = append(out, fmt.Sprintf("%s%s: %v", indent, k, m[k]))
	}
	return out
}
