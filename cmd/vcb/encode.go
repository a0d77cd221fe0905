package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"xdao.co/vcb/barcode"
	"xdao.co/vcb/cidutil"
	"xdao.co/vcb/claims"
	"xdao.co/vcb/compression"
	"xdao.co/vcb/model"
	"xdao.co/vcb/optical"
	"xdao.co/vcb/payload"
	"xdao.co/vcb/proof"
	"xdao.co/vcb/qrtext"
	"xdao.co/vcb/statuslist"
	"xdao.co/vcb/vcberr"
)

func (a *app) encodeCmd() *cobra.Command {
	var signer signerFlags
	var opt opticalFlags
	var claimsFile, outFile, dlidOut, comp, digest, statusBase string
	var statusIndex int64
	var dlidIssuer uint32
	var maxBytes int
	var qr bool

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Sign a claims file into a barcode payload",
		Long: "Reads claims from a YAML or JSON file, optionally adds a terse status entry and an " +
			"optical data digest, and writes the signed payload. With --qr the payload is " +
			"printed as alphanumeric QR text.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if claimsFile == "" {
				return usageErrorf("missing --claims")
			}
			if outFile == "" && dlidOut == "" && !qr {
				return usageErrorf("one of --out, --dlid-out or --qr is required")
			}
			if dlidOut != "" && opt.aamva == "" {
				return usageErrorf("--dlid-out requires --aamva")
			}
			if dlidIssuer > 999999 {
				return usageErrorf("--dlid-issuer must be at most six digits")
			}
			g, err := readClaims(claimsFile)
			if err != nil {
				return err
			}
			if statusBase != "" {
				if statusIndex < 0 || statusIndex > int64(^uint32(0)) {
					return usageErrorf("--status-index must fit 32 bits")
				}
				g.Set("credentialStatus", claims.Nested(statuslist.TerseEntry{BaseURL: statusBase, Index: uint32(statusIndex)}.Graph()))
			}
			d, idx, err := opt.digest()
			if err != nil {
				return err
			}
			if d != nil {
				optical.Bind(g, d)
				if idx != "" {
					g.Set(optical.IndexClaimKey, claims.String(idx))
				}
			}

			key, err := signer.load(a)
			if err != nil {
				return err
			}
			opts, err := a.encodeOptions(cmd, comp, digest, maxBytes)
			if err != nil {
				return err
			}

			rep := model.EncodeReport{Limit: a.cfg.Encode.MaxPayloadBytes, KeyID: key.ID()}
			if cmd.Flags().Changed("max-bytes") {
				rep.Limit = maxBytes
			}
			b, err := barcode.Encode(cmd.Context(), g, key, opts...)
			if err != nil {
				over := vcberr.Overage(err)
				if over > 0 {
					err = fmt.Errorf("encode: %w (remove at least %d bytes of claims)", err, over)
				} else {
					err = fmt.Errorf("encode: %w", err)
				}
				if !a.jsonOut {
					return err
				}
				rep.Error = model.ErrorFrom(err)
				rep.Overage = over
				if perr := a.printJSON(rep); perr != nil {
					return perr
				}
				return &exitError{code: 1, err: err}
			}

			rep.Size = len(b)
			rep.PayloadCID = cidutil.String(b)
			if p, err := payload.Disassemble(b); err == nil {
				rep.Compression = p.Compressed.Algorithm.String()
			}
			if outFile != "" {
				if err := os.WriteFile(outFile, b, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", outFile, err)
				}
			}
			if dlidOut != "" {
				fields, err := readFields(opt.aamva)
				if err != nil {
					return err
				}
				if err := writeDLID(dlidOut, dlidIssuer, fields, b); err != nil {
					return fmt.Errorf("dl/id file: %w", err)
				}
			}
			if qr {
				rep.QR = qrtext.Encode(b)
			}

			switch {
			case a.jsonOut:
				return a.printJSON(rep)
			case qr:
				fmt.Fprintln(a.out, rep.QR)
			default:
				fmt.Fprintln(a.out, rep.PayloadCID)
			}
			return nil
		},
	}
	signer.register(cmd)
	opt.register(cmd)
	cmd.Flags().StringVar(&claimsFile, "claims", "", "Claims file (YAML or JSON)")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "Write the raw payload to this file")
	cmd.Flags().StringVar(&dlidOut, "dlid-out", "", "Write an AAMVA DL/ID data file carrying the payload in its ZZ subfile (requires --aamva)")
	cmd.Flags().Uint32Var(&dlidIssuer, "dlid-issuer", 636000, "Issuer identification number for the DL/ID file header")
	cmd.Flags().BoolVar(&qr, "qr", false, "Print the payload as QR alphanumeric text")
	cmd.Flags().StringVar(&comp, "compression", "", "Force a compression form (default encode.compression)")
	cmd.Flags().StringVar(&digest, "digest", "", "Override the signing digest (default encode.digest)")
	cmd.Flags().IntVar(&maxBytes, "max-bytes", 0, "Capacity limit in bytes; zero or less disables it (default encode.max_payload_bytes)")
	cmd.Flags().StringVar(&statusBase, "status-base-url", "", "Add a terse status entry under this base URL")
	cmd.Flags().Int64Var(&statusIndex, "status-index", 0, "Terse status index")
	return cmd
}

func (a *app) encodeOptions(cmd *cobra.Command, comp, digest string, maxBytes int) ([]barcode.Option, error) {
	opts := []barcode.Option{
		barcode.WithLogger(a.logger),
		barcode.WithMaxPayloadBytes(a.cfg.Encode.MaxPayloadBytes),
	}
	if cmd.Flags().Changed("max-bytes") {
		opts = append(opts, barcode.WithMaxPayloadBytes(maxBytes))
	}
	if comp == "" {
		comp = a.cfg.Encode.Compression
	}
	if comp != "auto" {
		alg, err := compression.ParseAlgorithm(comp)
		if err != nil {
			return nil, usageErrorf("invalid --compression: %v", err)
		}
		opts = append(opts, barcode.WithCompression(alg))
	}
	if digest == "" {
		digest = a.cfg.Encode.Digest
	}
	if digest != "" {
		d, err := proof.ParseDigest(digest)
		if err != nil {
			return nil, usageErrorf("invalid --digest: %v", err)
		}
		opts = append(opts, barcode.WithDigest(d))
	}
	return opts, nil
}

func readClaims(path string) (*claims.Graph, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("claims %s: %w", path, err)
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("claims %s: no claims", path)
	}
	g, err := model.GraphFromMap(m)
	if err != nil {
		return nil, fmt.Errorf("claims %s: %w", path, err)
	}
	return g, nil
}
