package index

// NumberRange bounds a numeric seek. A nil bound is open.
//
// When both bounds are the same value and only one side is inclusive, the
// inclusive side wins and that value is part of the range.
type NumberRange struct {
	Lower        *float64
	IncludeLower bool
	Upper        *float64
	IncludeUpper bool
}

// Contains reports whether f lies in the range.
func (r NumberRange) Contains(f float64) bool {
	if r.Lower != nil && r.Upper != nil && *r.Lower == *r.Upper && f == *r.Lower {
		return r.IncludeLower || r.IncludeUpper
	}
	if r.Lower != nil && (f < *r.Lower || (f == *r.Lower && !r.IncludeLower)) {
		return false
	}
	if r.Upper != nil && (f > *r.Upper || (f == *r.Upper && !r.IncludeUpper)) {
		return false
	}
	return true
}

// StringRange bounds a string seek by byte-wise comparison. A nil bound is
// open. Ties between equal bounds follow the same rule as NumberRange.
type StringRange struct {
	Lower        *string
	IncludeLower bool
	Upper        *string
	IncludeUpper bool
}

// Contains reports whether s lies in the range.
func (r StringRange) Contains(s string) bool {
	if r.Lower != nil && r.Upper != nil && *r.Lower == *r.Upper && s == *r.Lower {
		return r.IncludeLower || r.IncludeUpper
	}
	if r.Lower != nil && (s < *r.Lower || (s == *r.Lower && !r.IncludeLower)) {
		return false
	}
	if r.Upper != nil && (s > *r.Upper || (s == *r.Upper && !r.IncludeUpper)) {
		return false
	}
	return true
}
