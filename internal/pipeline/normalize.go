package pipeline

import (
	"strings"

	"infolookup/internal"
	"infolookup/internal/util"
)

// NormalizeIdentifier never fails: anything that is not an 11 or 13 digit string after
// trimming (and zero-prefixing a bare 10 digit number) is kept as KindInvalid.
func NormalizeIdentifier(raw string) internal.Identifier {
	norm := strings.TrimSpace(raw)
	if len(norm) == 10 && util.IsAllDigits(norm) {
		norm = "0" + norm
	}

	kind := internal.KindInvalid
	if util.IsAllDigits(norm) {
		switch len(norm) {
		case 11:
			kind = internal.KindPhone11
		case 13:
			kind = internal.KindNationalID13
		}
	}
	return internal.Identifier{Raw: raw, Normalized: norm, Kind: kind}
}

func NormalizeIdentifiers(raws []string) []internal.Identifier {
	out := make([]internal.Identifier, 0, len(raws))
	for _, raw := range raws {
		out = append(out, NormalizeIdentifier(raw))
	}
	return out
}

// NormalizeRegistration trims, collapses inner whitespace and upper-cases a registration
// number.
func NormalizeRegistration(raw string) string {
	return strings.ToUpper(util.NormalizeSpaces(raw))
}

// NewLookupQuery validates the caller-side preconditions of a vehicle lookup. A missing or
// unknown category is an error here, before any network call is made.
func NewLookupQuery(reg, categoryLabel string) (internal.LookupQuery, error) {
	category, err := internal.ParseCategory(categoryLabel)
	if err != nil {
		return internal.LookupQuery{}, err
	}
	norm := NormalizeRegistration(reg)
	if norm == "" {
		return internal.LookupQuery{}, internal.ErrMissingRegistration
	}
	return internal.LookupQuery{Raw: reg, RegistrationNumber: norm, Category: category}, nil
}
