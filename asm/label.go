package asm

import (
	"fmt"

	"github.com/csx64/csx64/isa"
)

func isLocalLabel(name string) bool {
	return len(name) > 0 && name[0] == '.'
}

// resolveLabelName rewrites a local label (one beginning with '.') to
// `lastNonlocal+name`; a non-local name passes through unchanged. Defining
// a local label before any non-local label has been seen is an error.
func resolveLabelName(name, lastNonlocal string) (string, error) {
	if !isLocalLabel(name) {
		return name, nil
	}
	if lastNonlocal == "" {
		return "", fmt.Errorf("local label %q defined before any non-local label", name)
	}
	return lastNonlocal + name, nil
}

// validateLabelName checks the raw (pre-rewrite) spelling against the
// grammar `[A-Za-z_][A-Za-z0-9_.]*` (local labels additionally permit a
// leading '.') and rejects reserved names.
func validateLabelName(name string) error {
	if name == "" {
		return fmt.Errorf("empty label name")
	}
	if isa.IsReserved(name) {
		return fmt.Errorf("%q is a reserved name and cannot be used as a label", name)
	}
	c := name[0]
	if !(c == '_' || c == '.' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')) {
		return fmt.Errorf("invalid label name %q", name)
	}
	for i := 1; i < len(name); i++ {
		c := name[i]
		if !(c == '_' || c == '.' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')) {
			return fmt.Errorf("invalid label name %q", name)
		}
	}
	return nil
}
