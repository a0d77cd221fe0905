package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"xdao.co/vcb/qrtext"
)

func (a *app) qrCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qr",
		Short: "Convert between payload bytes and QR alphanumeric text",
	}

	encode := &cobra.Command{
		Use:   "encode <payload-file>",
		Short: "Print the QR text of a payload file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, qrtext.Encode(b))
			return nil
		},
	}

	var outFile string
	decode := &cobra.Command{
		Use:   "decode <QR text|file>",
		Short: "Write the payload bytes of QR text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outFile == "" {
				return usageErrorf("missing --out")
			}
			text := args[0]
			if !strings.HasPrefix(text, qrtext.Prefix) {
				b, err := os.ReadFile(text)
				if err != nil {
					return err
				}
				text = strings.TrimSpace(string(b))
			}
			b, err := qrtext.Decode(text)
			if err != nil {
				return err
			}
			return os.WriteFile(outFile, b, 0o644)
		},
	}
	decode.Flags().StringVarP(&outFile, "out", "o", "", "Payload output file")

	cmd.AddCommand(encode, decode)
	return cmd
}
