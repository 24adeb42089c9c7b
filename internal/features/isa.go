package features

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ISAFeatures is the bitmap of RISC-V extensions available on the target.
type ISAFeatures uint32

const (
	ISAI ISAFeatures = 1 << iota
	ISAM
	ISAA
	ISAF
	ISAD
	ISAC
	ISAV
	ISAS
	ISAU
)

// DefaultISAFeatures is RV64GC.
const DefaultISAFeatures = ISAI | ISAM | ISAA | ISAF | ISAD | ISAC

// FromVariant returns the features of a named CPU variant. Only "generic" is
// known; any other variant yields the defaults together with a non-nil error
// which callers may report as a warning.
func FromVariant(variant string) (ISAFeatures, error) {
	if variant != "generic" {
		return DefaultISAFeatures, fmt.Errorf("unexpected CPU variant for riscv64, using defaults: %q", variant)
	}
	return DefaultISAFeatures, nil
}

// FromBitmap returns the features encoded by bitmap.
func FromBitmap(bitmap uint32) ISAFeatures {
	return ISAFeatures(bitmap)
}

// FromISAString parses an ISA string such as "rv64imafdc" or "rv64gcv".
// Multi-letter extensions after an underscore are ignored.
func FromISAString(isa string) (ISAFeatures, error) {
	s := strings.ToLower(strings.TrimSpace(isa))
	if !strings.HasPrefix(s, "rv64") {
		return 0, fmt.Errorf("not a riscv64 isa string: %q", isa)
	}
	s = strings.TrimPrefix(s, "rv64")
	if i := strings.IndexByte(s, '_'); i >= 0 {
		s = s[:i]
	}
	var f ISAFeatures
	for _, c := range s {
		switch c {
		case 'i':
			f |= ISAI
		case 'g':
			f |= ISAI | ISAM | ISAA | ISAF | ISAD
		case 'm':
			f |= ISAM
		case 'a':
			f |= ISAA
		case 'f':
			f |= ISAF
		case 'd':
			f |= ISAD
		case 'c':
			f |= ISAC
		case 'v':
			f |= ISAV
		case 's':
			f |= ISAS
		case 'u':
			f |= ISAU
		default:
			// Single letter extensions the backend does not use.
		}
	}
	if !f.Has(ISAI) {
		return 0, fmt.Errorf("isa string without the base integer set: %q", isa)
	}
	return f, nil
}

// FromCPUInfo reads the "isa" line of a /proc/cpuinfo formatted stream. The
// base RV64GC set is assumed and extended by what the line advertises.
func FromCPUInfo(r io.Reader) (ISAFeatures, error) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok || strings.TrimSpace(key) != "isa" {
			continue
		}
		f, err := FromISAString(value)
		if err != nil {
			return DefaultISAFeatures, fmt.Errorf("parsing cpuinfo: %w", err)
		}
		return DefaultISAFeatures | f, nil
	}
	if err := sc.Err(); err != nil {
		return DefaultISAFeatures, fmt.Errorf("reading cpuinfo: %w", err)
	}
	return DefaultISAFeatures, nil
}

// Has returns true if every feature in other is present.
func (f ISAFeatures) Has(other ISAFeatures) bool {
	return f&other == other
}

// Equals returns true if both bitmaps are identical.
func (f ISAFeatures) Equals(other ISAFeatures) bool {
	return f == other
}

// AsBitmap returns the raw bitmap.
func (f ISAFeatures) AsBitmap() uint32 {
	return uint32(f)
}

// String implements fmt.Stringer.
func (f ISAFeatures) String() string {
	var sb strings.Builder
	sb.WriteString("rv64imaf")
	if f.Has(ISAD) {
		sb.WriteByte('d')
	}
	if f.Has(ISAC) {
		sb.WriteByte('c')
	}
	if f.Has(ISAV) {
		sb.WriteByte('v')
	}
	return sb.String()
}

// Extensions returns the single letter names of the features in f, in
// canonical order.
func (f ISAFeatures) Extensions() string {
	var sb strings.Builder
	for i, c := range "imafdcvsu" {
		if f.Has(ISAI << i) {
			sb.WriteRune(c)
		}
	}
	return sb.String()
}
