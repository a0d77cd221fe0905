// Command vcb issues and verifies verifiable credential barcodes.
//
// It manages signing keys, encodes claims files into signed barcode
// payloads, verifies payloads against a trust list and published status
// lists, and moves status lists between stores.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	root := newRootCmd(out, errOut)
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return 0
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(errOut, ee.err)
		}
		return ee.code
	}
	fmt.Fprintln(errOut, err)
	if strings.HasPrefix(err.Error(), "unknown command") {
		return 2
	}
	return 1
}

// exitError carries a specific exit status out of a command. Usage mistakes
// exit 2; a verification that is not accepted exits 1 with its report
// already printed, so err may be nil.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return &exitError{code: 2, err: fmt.Errorf(format, args...)}
}
