package storage

import (
	"iter"

	"github.com/dgraph-io/badger/v4"
)

// keyScan walks the keys under prefix without loading values. Adjacency
// and label entries carry everything in the key.
func keyScan(prefix []byte) badger.IteratorOptions {
	return badger.IteratorOptions{Prefix: prefix}
}

// recordScan walks the records under prefix with values prefetched in
// windows of prefetch items, or Badger's default window when prefetch is 0.
func recordScan(prefix []byte, prefetch int) badger.IteratorOptions {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	if prefetch > 0 {
		opts.PrefetchSize = prefetch
	}
	return opts
}

// iterate lazily walks keys under prefix starting at start (or the prefix
// itself when start is nil). The read transaction is opened on the first pull
// and discarded when the caller stops ranging, so abandoning the sequence
// early releases everything. Items are only valid inside the loop body.
func (b *BadgerStore) iterate(opts badger.IteratorOptions, start []byte) iter.Seq2[*badger.Item, error] {
	return func(yield func(*badger.Item, error) bool) {
		if err := b.ensureOpen(); err != nil {
			yield(nil, err)
			return
		}
		txn := b.db.NewTransaction(false)
		defer txn.Discard()
		it := txn.NewIterator(opts)
		defer it.Close()

		if start == nil {
			start = opts.Prefix
		}
		for it.Seek(start); it.Valid(); it.Next() {
			if !yield(it.Item(), nil) {
				return
			}
		}
	}
}
