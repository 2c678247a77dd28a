package storage

import (
	"bytes"
	"fmt"
	"iter"

	"github.com/dgraph-io/badger/v4"
)

// ============================================================================
// Secondary Index Reads
// ============================================================================

// IndexDefinitions returns every stored index definition ordered by id.
func (b *BadgerStore) IndexDefinitions() ([]IndexDefinition, error) {
	var defs []IndexDefinition
	opts := recordScan([]byte{prefixIndexDef}, 0)
	for item, err := range b.iterate(opts, nil) {
		if err != nil {
			return nil, err
		}
		var def IndexDefinition
		if err := item.Value(func(val []byte) error { return decodeGob(val, &def) }); err != nil {
			return nil, fmt.Errorf("decode index definition: %w", err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// IndexDefinitionFor returns the definition built over schema, or ErrNotFound.
func (b *BadgerStore) IndexDefinitionFor(schema IndexSchema) (IndexDefinition, error) {
	defs, err := b.IndexDefinitions()
	if err != nil {
		return IndexDefinition{}, err
	}
	for _, def := range defs {
		if def.Schema == schema {
			return def, nil
		}
	}
	return IndexDefinition{}, ErrNotFound
}

// IndexDefinitionByID reads one definition. The result reflects the state at
// the time of the call.
func (b *BadgerStore) IndexDefinitionByID(id uint32) (IndexDefinition, error) {
	var def IndexDefinition
	err := b.withView(func(txn *badger.Txn) error {
		return getGob(txn, indexDefKey(id), &def)
	})
	return def, err
}

// IndexEntries lazily yields the entries of one index whose encoded key
// starts with within, beginning at the first entry whose encoded value is at
// or after from. Either may be nil: a nil within covers the whole index and a
// nil from starts at the beginning of within. Entries come back in value
// order, then entity order, and include deleted entries.
func (b *BadgerStore) IndexEntries(indexID uint32, within, from []byte) iter.Seq2[IndexEntry, error] {
	return func(yield func(IndexEntry, error) bool) {
		base := indexPrefix(indexID)
		prefix := append(bytes.Clone(base), within...)
		var start []byte
		if from != nil {
			start = append(bytes.Clone(base), from...)
			if bytes.Compare(start, prefix) < 0 {
				start = prefix
			}
		}
		for item, err := range b.iterate(recordScan(prefix, 0), start) {
			if err != nil {
				yield(IndexEntry{}, err)
				return
			}
			value, entity, err := decodeIndexEntryKey(item.Key())
			if err != nil {
				yield(IndexEntry{}, err)
				return
			}
			var v Version
			err = item.Value(func(val []byte) error {
				var decodeErr error
				v, decodeErr = decodeVersion(val)
				return decodeErr
			})
			if err != nil {
				yield(IndexEntry{}, err)
				return
			}
			if !yield(IndexEntry{Value: value, Entity: entity, Version: v}, nil) {
				return
			}
		}
	}
}

// ExactIndexEntries lazily yields the entries of one index holding exactly value.
func (b *BadgerStore) ExactIndexEntries(indexID uint32, value any) (iter.Seq2[IndexEntry, error], error) {
	enc, err := EncodeIndexValue(value)
	if err != nil {
		return nil, err
	}
	return b.IndexEntries(indexID, enc, nil), nil
}
