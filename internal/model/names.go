package model

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxNameLength bounds display names, in runes.
const MaxNameLength = 128

// NormalizeName trims surrounding whitespace and converts name to Unicode
// NFC so that visually identical names collide on the store's UNIQUE index.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// ValidateName normalises name and rejects empty or oversized values.
func ValidateName(op, name string) (string, error) {
	n := NormalizeName(name)
	if n == "" {
		return "", NewError(KindInvalidInput, op, "name must not be empty")
	}
	if utf8.RuneCountInString(n) > MaxNameLength {
		return "", NewError(KindInvalidInput, op, fmt.Sprintf("name exceeds %d characters", MaxNameLength))
	}
	return n, nil
}

// ValidateSlot rejects template slots outside [MinSlot, MaxSlot].
func ValidateSlot(op string, slot int) error {
	if slot < MinSlot || slot > MaxSlot {
		return NewError(KindInvalidInput, op, fmt.Sprintf("slot %d out of range [%d, %d]", slot, MinSlot, MaxSlot))
	}
	return nil
}
