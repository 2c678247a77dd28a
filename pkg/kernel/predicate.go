package kernel

import (
	"cmp"
	"fmt"
	"math"
	"strings"

	"github.com/orneryd/graphkernel/pkg/index"
	"github.com/orneryd/graphkernel/pkg/storage"
)

// PredicateKind enumerates the seek shapes an index can be asked for.
type PredicateKind uint8

const (
	PredicateExact PredicateKind = iota + 1
	PredicateNumericRange
	PredicateStringRange
	PredicatePrefix
	PredicateContains
	PredicateEndsWith
	PredicateFullScan
)

func (k PredicateKind) String() string {
	switch k {
	case PredicateExact:
		return "exact"
	case PredicateNumericRange:
		return "numeric_range"
	case PredicateStringRange:
		return "string_range"
	case PredicatePrefix:
		return "prefix"
	case PredicateContains:
		return "contains"
	case PredicateEndsWith:
		return "ends_with"
	case PredicateFullScan:
		return "full_scan"
	default:
		return "unknown"
	}
}

// SeekPredicate is a property predicate to be answered by an index seek.
// Build one with Exact, NumericRange, StringRange, Prefix, Contains,
// EndsWith or FullScan; the zero value is invalid.
type SeekPredicate struct {
	kind PredicateKind

	value any // exact

	lower, upper               any // ranges, nil is unbounded
	includeLower, includeUpper bool

	text string // prefix, contains, ends_with
}

// Exact matches entities whose property equals value. Numeric values compare
// by numeric value, so 25 matches 25.0.
func Exact(value any) SeekPredicate {
	return SeekPredicate{kind: PredicateExact, value: value}
}

// NumericRange matches numeric property values between lower and upper.
// A nil bound is unbounded.
func NumericRange(lower any, includeLower bool, upper any, includeUpper bool) SeekPredicate {
	return SeekPredicate{
		kind:         PredicateNumericRange,
		lower:        lower,
		includeLower: includeLower,
		upper:        upper,
		includeUpper: includeUpper,
	}
}

// StringRange matches string property values between lower and upper by
// byte-wise comparison. A nil bound is unbounded.
func StringRange(lower any, includeLower bool, upper any, includeUpper bool) SeekPredicate {
	return SeekPredicate{
		kind:         PredicateStringRange,
		lower:        lower,
		includeLower: includeLower,
		upper:        upper,
		includeUpper: includeUpper,
	}
}

// Prefix matches string values starting with prefix.
func Prefix(prefix string) SeekPredicate {
	return SeekPredicate{kind: PredicatePrefix, text: prefix}
}

// Contains matches string values containing substring.
func Contains(substring string) SeekPredicate {
	return SeekPredicate{kind: PredicateContains, text: substring}
}

// EndsWith matches string values ending with suffix.
func EndsWith(suffix string) SeekPredicate {
	return SeekPredicate{kind: PredicateEndsWith, text: suffix}
}

// FullScan matches every entity that has an indexable value for the property.
func FullScan() SeekPredicate {
	return SeekPredicate{kind: PredicateFullScan}
}

// Kind returns the predicate shape.
func (p SeekPredicate) Kind() PredicateKind { return p.kind }

func (p SeekPredicate) String() string {
	switch p.kind {
	case PredicateExact:
		return fmt.Sprintf("exact(%v)", p.value)
	case PredicateNumericRange, PredicateStringRange:
		return fmt.Sprintf("%s%s%v, %v%s", p.kind, bracket(p.includeLower, "[", "("), p.lower, p.upper, bracket(p.includeUpper, "]", ")"))
	case PredicatePrefix, PredicateContains, PredicateEndsWith:
		return fmt.Sprintf("%s(%q)", p.kind, p.text)
	default:
		return p.kind.String()
	}
}

func bracket(inclusive bool, closed, open string) string {
	if inclusive {
		return closed
	}
	return open
}

// Validate checks that the predicate is well formed. Malformed predicates
// are reported as ErrUnsupportedSeek.
func (p SeekPredicate) Validate() error {
	switch p.kind {
	case PredicateExact:
		if !storage.IsIndexable(p.value) {
			return fmt.Errorf("%w: exact value %v (%T) cannot be indexed", ErrUnsupportedSeek, p.value, p.value)
		}
	case PredicateNumericRange:
		for _, b := range []any{p.lower, p.upper} {
			if b == nil {
				continue
			}
			f, ok := storage.NumericValue(b)
			if !ok || math.IsNaN(f) {
				return fmt.Errorf("%w: numeric range bound %v (%T) is not a number", ErrUnsupportedSeek, b, b)
			}
		}
	case PredicateStringRange:
		for _, b := range []any{p.lower, p.upper} {
			if b == nil {
				continue
			}
			if _, ok := b.(string); !ok {
				return fmt.Errorf("%w: string range bound %v (%T) is not a string", ErrUnsupportedSeek, b, b)
			}
		}
	case PredicatePrefix, PredicateContains, PredicateEndsWith, PredicateFullScan:
	default:
		return fmt.Errorf("%w: unknown predicate kind %d", ErrUnsupportedSeek, p.kind)
	}
	return nil
}

// Matches reports whether a property value satisfies the predicate.
func (p SeekPredicate) Matches(v any) bool {
	switch p.kind {
	case PredicateExact:
		return valuesEqual(p.value, v)
	case PredicateNumericRange:
		n, ok := toNumber(v)
		return ok && !n.isNaN() && p.inNumberRange(n)
	case PredicateStringRange:
		s, ok := v.(string)
		return ok && p.stringRange().Contains(s)
	case PredicatePrefix:
		s, ok := v.(string)
		return ok && strings.HasPrefix(s, p.text)
	case PredicateContains:
		s, ok := v.(string)
		return ok && strings.Contains(s, p.text)
	case PredicateEndsWith:
		s, ok := v.(string)
		return ok && strings.HasSuffix(s, p.text)
	case PredicateFullScan:
		return storage.IsIndexable(v)
	default:
		return false
	}
}

func valuesEqual(a, b any) bool {
	na, aNum := toNumber(a)
	nb, bNum := toNumber(b)
	if aNum || bNum {
		return aNum && bNum && !na.isNaN() && !nb.isNaN() && compareNumbers(na, nb) == 0
	}
	switch a.(type) {
	case bool, string:
		return a == b
	}
	return false
}

// inNumberRange applies the range bounds exactly. Equal bounds with mixed
// inclusivity include the bound value.
func (p SeekPredicate) inNumberRange(n number) bool {
	lower, hasLower := toNumber(p.lower)
	upper, hasUpper := toNumber(p.upper)
	if hasLower && hasUpper && compareNumbers(lower, upper) == 0 && compareNumbers(n, lower) == 0 {
		return p.includeLower || p.includeUpper
	}
	if hasLower {
		if c := compareNumbers(n, lower); c < 0 || (c == 0 && !p.includeLower) {
			return false
		}
	}
	if hasUpper {
		if c := compareNumbers(n, upper); c > 0 || (c == 0 && !p.includeUpper) {
			return false
		}
	}
	return true
}

type numberKind uint8

const (
	signedNumber numberKind = iota
	unsignedNumber
	floatNumber
)

// number holds a numeric property value in the Go kind that represents it
// exactly.
type number struct {
	kind numberKind
	i    int64
	u    uint64
	f    float64
}

func toNumber(v any) (number, bool) {
	switch n := v.(type) {
	case int:
		return number{kind: signedNumber, i: int64(n)}, true
	case int8:
		return number{kind: signedNumber, i: int64(n)}, true
	case int16:
		return number{kind: signedNumber, i: int64(n)}, true
	case int32:
		return number{kind: signedNumber, i: int64(n)}, true
	case int64:
		return number{kind: signedNumber, i: n}, true
	case uint:
		return number{kind: unsignedNumber, u: uint64(n)}, true
	case uint8:
		return number{kind: unsignedNumber, u: uint64(n)}, true
	case uint16:
		return number{kind: unsignedNumber, u: uint64(n)}, true
	case uint32:
		return number{kind: unsignedNumber, u: uint64(n)}, true
	case uint64:
		return number{kind: unsignedNumber, u: n}, true
	case float32:
		return number{kind: floatNumber, f: float64(n)}, true
	case float64:
		return number{kind: floatNumber, f: n}, true
	default:
		return number{}, false
	}
}

func (n number) isNaN() bool { return n.kind == floatNumber && math.IsNaN(n.f) }

// compareNumbers orders two non-NaN numbers without going through float64
// for integer kinds, so distinct integers above 2^53 never compare equal.
func compareNumbers(a, b number) int {
	switch {
	case a.kind == floatNumber && b.kind == floatNumber:
		return cmp.Compare(a.f, b.f)
	case b.kind == floatNumber:
		return compareIntegerFloat(a, b.f)
	case a.kind == floatNumber:
		return -compareIntegerFloat(b, a.f)
	case a.kind == signedNumber && b.kind == signedNumber:
		return cmp.Compare(a.i, b.i)
	case a.kind == unsignedNumber && b.kind == unsignedNumber:
		return cmp.Compare(a.u, b.u)
	case a.kind == signedNumber:
		if a.i < 0 {
			return -1
		}
		return cmp.Compare(uint64(a.i), b.u)
	default:
		if b.i < 0 {
			return 1
		}
		return cmp.Compare(a.u, uint64(b.i))
	}
}

// compareIntegerFloat compares an integer number with f exactly.
func compareIntegerFloat(n number, f float64) int {
	t := math.Trunc(f)
	var c int
	if n.kind == signedNumber {
		switch {
		case t >= math.MaxInt64: // 2^63 and above
			return -1
		case t < math.MinInt64:
			return 1
		}
		c = cmp.Compare(n.i, int64(t))
	} else {
		switch {
		case t < 0:
			return 1
		case t >= math.MaxUint64: // 2^64 and above
			return -1
		}
		c = cmp.Compare(n.u, uint64(t))
	}
	if c != 0 {
		return c
	}
	// Same integer part: the fraction decides.
	return cmp.Compare(t, f)
}

func (p SeekPredicate) capability() index.Capability {
	switch p.kind {
	case PredicateExact:
		return index.CapExact
	case PredicateNumericRange:
		return index.CapNumberRange
	case PredicateStringRange:
		return index.CapStringRange
	case PredicatePrefix:
		return index.CapPrefix
	case PredicateContains:
		return index.CapContains
	case PredicateEndsWith:
		return index.CapSuffix
	default:
		return index.CapScan
	}
}

// numberRange is the range handed to the index. Index keys are float64, so
// integers above 2^53 can round onto a bound; both bounds are widened to
// inclusive and inNumberRange applies the exact ones afterwards.
func (p SeekPredicate) numberRange() index.NumberRange {
	r := index.NumberRange{IncludeLower: true, IncludeUpper: true}
	if f, ok := storage.NumericValue(p.lower); ok {
		r.Lower = &f
	}
	if f, ok := storage.NumericValue(p.upper); ok {
		r.Upper = &f
	}
	return r
}

func (p SeekPredicate) stringRange() index.StringRange {
	r := index.StringRange{IncludeLower: p.includeLower, IncludeUpper: p.includeUpper}
	if s, ok := p.lower.(string); ok {
		r.Lower = &s
	}
	if s, ok := p.upper.(string); ok {
		r.Upper = &s
	}
	return r
}
