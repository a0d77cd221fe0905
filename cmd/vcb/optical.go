package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"xdao.co/vcb/optical"
)

// opticalFlags name the printed data a barcode is bound to: an MRZ text file,
// or AAMVA element values from a DL/ID data file or a YAML map of element ids.
type opticalFlags struct {
	mrz      string
	aamva    string
	elements []string
	index    string
}

func (f *opticalFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.mrz, "mrz", "", "MRZ file (three 30-character lines)")
	cmd.Flags().StringVar(&f.aamva, "aamva", "", "AAMVA DL/ID data file, or YAML file of element id to value")
	cmd.Flags().StringSliceVar(&f.elements, "aamva-elements", nil, "AAMVA elements covered by the digest (default all mandatory)")
	cmd.Flags().StringVar(&f.index, "aamva-index", "", "Encoded protected component index (instead of --aamva-elements)")
}

func (f *opticalFlags) set() bool { return f.mrz != "" || f.aamva != "" }

// digest returns the optical digest, and for AAMVA input the encoded index
// it covers. It returns nil when no optical input was given.
func (f *opticalFlags) digest() ([]byte, string, error) {
	switch {
	case f.mrz != "" && f.aamva != "":
		return nil, "", usageErrorf("--mrz and --aamva are mutually exclusive")
	case f.mrz != "":
		m, err := readMRZ(f.mrz)
		if err != nil {
			return nil, "", err
		}
		d, err := m.Digest()
		return d, "", err
	case f.aamva != "":
		idx, err := f.protectedIndex()
		if err != nil {
			return nil, "", err
		}
		fields, err := readFields(f.aamva)
		if err != nil {
			return nil, "", err
		}
		encoded, err := idx.Encode()
		if err != nil {
			return nil, "", err
		}
		return idx.Digest(fields), encoded, nil
	}
	return nil, "", nil
}

func (f *opticalFlags) protectedIndex() (optical.ProtectedComponentIndex, error) {
	if f.index != "" {
		if len(f.elements) > 0 {
			return 0, usageErrorf("--aamva-index and --aamva-elements are mutually exclusive")
		}
		return optical.ParseProtectedComponentIndex(f.index)
	}
	elements := f.elements
	if len(elements) == 0 {
		elements = optical.MandatoryElements
	}
	idx, err := optical.NewProtectedComponentIndex(elements...)
	if err != nil {
		return 0, usageErrorf("invalid --aamva-elements: %v", err)
	}
	return idx, nil
}

func readMRZ(path string) (optical.MRZ, error) {
	var m optical.MRZ
	b, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
	if len(lines) != optical.MRZLines {
		return m, fmt.Errorf("mrz %s: %d lines, want %d", path, len(lines), optical.MRZLines)
	}
	copy(m[:], lines)
	return m, nil
}

func readFields(path string) (map[string]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if optical.IsDLIDFile(b) {
		f, err := optical.ParseFile(b)
		if err != nil {
			return nil, fmt.Errorf("aamva %s: %w", path, err)
		}
		fields, err := f.DLFields()
		if err != nil {
			return nil, fmt.Errorf("aamva %s: %w", path, err)
		}
		return fields, nil
	}
	var fields map[string]string
	if err := yaml.Unmarshal(b, &fields); err != nil {
		return nil, fmt.Errorf("aamva %s: %w", path, err)
	}
	return fields, nil
}

// writeDLID writes a DL/ID data file holding a DL subfile built from fields
// and a ZZ subfile carrying payload.
func writeDLID(path string, issuer uint32, fields map[string]string, payload []byte) error {
	dl, err := optical.NewDLSubfile(fields)
	if err != nil {
		return err
	}
	zz, err := optical.NewZZSubfile(payload)
	if err != nil {
		return err
	}
	f := &optical.File{
		Header:   optical.Header{IssuerID: issuer, Version: dlidVersion},
		Subfiles: []optical.Subfile{dl, zz},
	}
	b, err := f.MarshalBinary()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// dlidVersion is the AAMVA card design standard version written in headers.
const dlidVersion = 10
