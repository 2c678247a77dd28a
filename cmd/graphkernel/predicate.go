package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/orneryd/graphkernel/pkg/kernel"
)

// parsePredicate turns the --predicate flag into a seek predicate.
func parsePredicate(raw string) (kernel.SeekPredicate, error) {
	name, arg, hasArg := strings.Cut(strings.TrimSpace(raw), "=")
	switch strings.ToLower(name) {
	case "scan", "":
		if hasArg {
			return kernel.SeekPredicate{}, fmt.Errorf("scan takes no argument")
		}
		return kernel.FullScan(), nil
	case "exact":
		return kernel.Exact(parseValue(arg)), nil
	case "prefix":
		return kernel.Prefix(unquote(arg)), nil
	case "contains":
		return kernel.Contains(unquote(arg)), nil
	case "suffix", "ends_with":
		return kernel.EndsWith(unquote(arg)), nil
	case "range":
		return parseRange(arg)
	default:
		return kernel.SeekPredicate{}, fmt.Errorf("unknown predicate %q", name)
	}
}

// parseRange parses "[lo,hi)" style intervals. Empty bounds are unbounded.
func parseRange(raw string) (kernel.SeekPredicate, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) < 3 {
		return kernel.SeekPredicate{}, fmt.Errorf("malformed range %q", raw)
	}
	open, closing := raw[0], raw[len(raw)-1]
	if (open != '[' && open != '(') || (closing != ']' && closing != ')') {
		return kernel.SeekPredicate{}, fmt.Errorf("malformed range %q: want [lo,hi], (lo,hi) or a mix", raw)
	}
	lo, hi, ok := strings.Cut(raw[1:len(raw)-1], ",")
	if !ok {
		return kernel.SeekPredicate{}, fmt.Errorf("malformed range %q: missing comma", raw)
	}
	lo, hi = strings.TrimSpace(lo), strings.TrimSpace(hi)
	includeLower, includeUpper := open == '[', closing == ']'

	if isQuoted(lo) || isQuoted(hi) {
		return kernel.StringRange(stringBound(lo), includeLower, stringBound(hi), includeUpper), nil
	}
	lower, err := numberBound(lo)
	if err != nil {
		return kernel.SeekPredicate{}, err
	}
	upper, err := numberBound(hi)
	if err != nil {
		return kernel.SeekPredicate{}, err
	}
	return kernel.NumericRange(lower, includeLower, upper, includeUpper), nil
}

func numberBound(s string) (any, error) {
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("range bound %q is not a number (quote it for a string range)", s)
	}
	return f, nil
}

func stringBound(s string) any {
	if s == "" {
		return nil
	}
	return unquote(s)
}

// parseValue reads a literal: integers, floats and booleans are typed,
// anything else (or anything quoted) is a string.
func parseValue(s string) any {
	if isQuoted(s) {
		return unquote(s)
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

func isQuoted(s string) bool {
	return len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"'
}

func unquote(s string) string {
	if isQuoted(s) {
		return s[1 : len(s)-1]
	}
	return s
}
