// Package index resolves secondary index schemas to queryable index handles.
//
// An Index answers exact, range, prefix, substring and suffix seeks over the
// order-preserving keyspace kept by storage.BadgerStore. Every seek is a lazy
// sequence of raw index entries; visibility filtering belongs to the caller.
package index

import (
	"errors"
	"iter"
	"strings"

	"github.com/orneryd/graphkernel/pkg/storage"
)

var (
	// ErrIndexNotFound is returned when no index is built over a schema.
	ErrIndexNotFound = errors.New("index not found")
)

// Capability is one seek shape an index can answer.
type Capability uint8

const (
	CapExact Capability = iota + 1
	CapNumberRange
	CapStringRange
	CapPrefix
	CapContains
	CapSuffix
	CapScan
)

func (c Capability) String() string {
	switch c {
	case CapExact:
		return "exact"
	case CapNumberRange:
		return "numeric range"
	case CapStringRange:
		return "string range"
	case CapPrefix:
		return "prefix"
	case CapContains:
		return "contains"
	case CapSuffix:
		return "suffix"
	case CapScan:
		return "scan"
	default:
		return "unknown"
	}
}

// Supports reports whether an index holding values of type t can answer c.
func Supports(t storage.IndexValueType, c Capability) bool {
	switch c {
	case CapExact, CapScan:
		return true
	case CapNumberRange:
		return t == storage.AnyValues || t == storage.NumberValues
	case CapStringRange, CapPrefix, CapContains, CapSuffix:
		return t == storage.AnyValues || t == storage.StringValues
	default:
		return false
	}
}

// Hits is a lazy, single-pass sequence of index entries.
type Hits = iter.Seq2[storage.IndexEntry, error]

// Reader is the query surface of one index.
type Reader interface {
	Definition() storage.IndexDefinition
	// Healthy is false when the index is in a failed state.
	Healthy() bool
	Supports(c Capability) bool

	SeekExact(value any) Hits
	SeekNumberRange(r NumberRange) Hits
	SeekStringRange(r StringRange) Hits
	SeekPrefix(prefix string) Hits
	SeekContains(substring string) Hits
	SeekSuffix(suffix string) Hits
	ScanAll() Hits
}

// Index is a Reader backed by a BadgerStore.
type Index struct {
	store *storage.BadgerStore
	def   storage.IndexDefinition
}

var _ Reader = (*Index)(nil)

// Definition returns the definition as of resolution time.
func (ix *Index) Definition() storage.IndexDefinition { return ix.def }

// Healthy reports whether the index was online when resolved.
func (ix *Index) Healthy() bool { return ix.def.State == storage.IndexOnline }

// Supports reports whether the index can answer c.
func (ix *Index) Supports(c Capability) bool { return Supports(ix.def.ValueType, c) }

// SeekExact yields entries holding exactly value. Values the index cannot
// hold produce an empty sequence.
func (ix *Index) SeekExact(value any) Hits {
	if !ix.def.ValueType.Accepts(value) {
		return empty
	}
	hits, err := ix.store.ExactIndexEntries(ix.def.ID, value)
	if err != nil {
		return failed(err)
	}
	return hits
}

// SeekNumberRange yields entries whose numeric value lies in r, in ascending order.
func (ix *Index) SeekNumberRange(r NumberRange) Hits {
	var from []byte
	if r.Lower != nil {
		var err error
		if from, err = storage.EncodeIndexValue(*r.Lower); err != nil {
			return failed(err)
		}
	}
	entries := ix.store.IndexEntries(ix.def.ID, storage.NumberSection(), from)
	return func(yield func(storage.IndexEntry, error) bool) {
		for e, err := range entries {
			if err != nil {
				yield(e, err)
				return
			}
			f, _ := e.Value.(float64)
			if r.Upper != nil && f > *r.Upper {
				return
			}
			if !r.Contains(f) {
				continue
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}

// SeekStringRange yields entries whose string value lies in r, in byte order.
func (ix *Index) SeekStringRange(r StringRange) Hits {
	var from []byte
	if r.Lower != nil {
		from = storage.EncodeStringPrefix(*r.Lower)
	}
	entries := ix.store.IndexEntries(ix.def.ID, storage.StringSection(), from)
	return func(yield func(storage.IndexEntry, error) bool) {
		for e, err := range entries {
			if err != nil {
				yield(e, err)
				return
			}
			s, _ := e.Value.(string)
			if r.Upper != nil && s > *r.Upper {
				return
			}
			if !r.Contains(s) {
				continue
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}

// SeekPrefix yields entries whose string value starts with prefix.
func (ix *Index) SeekPrefix(prefix string) Hits {
	return ix.store.IndexEntries(ix.def.ID, storage.EncodeStringPrefix(prefix), nil)
}

// SeekContains yields entries whose string value contains substring.
// The index order cannot narrow this seek, so every string entry is read.
func (ix *Index) SeekContains(substring string) Hits {
	return ix.filterStrings(func(s string) bool { return strings.Contains(s, substring) })
}

// SeekSuffix yields entries whose string value ends with suffix.
func (ix *Index) SeekSuffix(suffix string) Hits {
	return ix.filterStrings(func(s string) bool { return strings.HasSuffix(s, suffix) })
}

// ScanAll yields every entry of the index.
func (ix *Index) ScanAll() Hits {
	return ix.store.IndexEntries(ix.def.ID, nil, nil)
}

func (ix *Index) filterStrings(match func(string) bool) Hits {
	entries := ix.store.IndexEntries(ix.def.ID, storage.StringSection(), nil)
	return func(yield func(storage.IndexEntry, error) bool) {
		for e, err := range entries {
			if err != nil {
				yield(e, err)
				return
			}
			if s, ok := e.Value.(string); !ok || !match(s) {
				continue
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}

func empty(func(storage.IndexEntry, error) bool) {}

func failed(err error) Hits {
	return func(yield func(storage.IndexEntry, error) bool) {
		yield(storage.IndexEntry{}, err)
	}
}
