package kernel

import (
	"iter"
	"sync/atomic"

	"github.com/orneryd/graphkernel/pkg/storage"
)

// IDSequence is a lazy, finite, single-pass sequence of entity ids.
//
// Nothing is read until the sequence is ranged over. Breaking out of the
// range early is supported and releases the underlying iterators. A second
// traversal yields ErrSequenceConsumed; ask the Reader for a new sequence.
type IDSequence struct {
	seq  iter.Seq2[storage.EntityID, error]
	used atomic.Bool
}

func newSequence(seq iter.Seq2[storage.EntityID, error]) *IDSequence {
	return &IDSequence{seq: seq}
}

// All returns the sequence for use with range. Iteration stops after the
// first error.
func (s *IDSequence) All() iter.Seq2[storage.EntityID, error] {
	return func(yield func(storage.EntityID, error) bool) {
		if s.used.Swap(true) {
			yield(storage.NoEntity, ErrSequenceConsumed)
			return
		}
		for id, err := range s.seq {
			if !yield(id, err) || err != nil {
				return
			}
		}
	}
}

// Collect drains the sequence into a slice.
func (s *IDSequence) Collect() ([]storage.EntityID, error) {
	var ids []storage.EntityID
	for id, err := range s.All() {
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
