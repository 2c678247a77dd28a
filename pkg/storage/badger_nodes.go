package storage

import (
	"encoding/binary"
	"fmt"
	"iter"

	"github.com/dgraph-io/badger/v4"
)

// ============================================================================
// Node Reads
// ============================================================================

// Node retrieves a node record by id regardless of its visibility.
// Callers filter with a Snapshot. Returns ErrNotFound if no record exists.
func (b *BadgerStore) Node(id EntityID) (*NodeRecord, error) {
	if !id.Valid() {
		return nil, ErrInvalidID
	}

	var node *NodeRecord
	err := b.withView(func(txn *badger.Txn) error {
		var err error
		node, err = getNode(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

func getNode(txn *badger.Txn, id EntityID) (*NodeRecord, error) {
	item, err := txn.Get(nodeKey(id))
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var node *NodeRecord
	err = item.Value(func(val []byte) error {
		var decodeErr error
		node, decodeErr = decodeNode(val)
		return decodeErr
	})
	if err != nil {
		return nil, fmt.Errorf("decode node %d: %w", id, err)
	}
	return node, nil
}

// ScanNodes lazily yields every stored node record in id order, including
// deleted ones. Stopping the range early releases the underlying iterator.
func (b *BadgerStore) ScanNodes() iter.Seq2[*NodeRecord, error] {
	return func(yield func(*NodeRecord, error) bool) {
		opts := recordScan([]byte{prefixNode}, b.prefetchSize)
		for item, err := range b.iterate(opts, nil) {
			if err != nil {
				yield(nil, err)
				return
			}
			var node *NodeRecord
			err = item.Value(func(val []byte) error {
				var decodeErr error
				node, decodeErr = decodeNode(val)
				return decodeErr
			})
			if err != nil {
				yield(nil, fmt.Errorf("decode node: %w", err))
				return
			}
			if !yield(node, nil) {
				return
			}
		}
	}
}

// LabelScan lazily yields the ids of nodes that were ever stored with label.
// Entries of deleted nodes remain; callers check visibility on the record.
func (b *BadgerStore) LabelScan(label LabelID) iter.Seq2[EntityID, error] {
	return func(yield func(EntityID, error) bool) {
		prefix := labelIndexPrefix(label)
		for item, err := range b.iterate(keyScan(prefix), nil) {
			if err != nil {
				yield(NoEntity, err)
				return
			}
			key := item.Key()
			if !yield(readID(key[len(prefix):]), nil) {
				return
			}
		}
	}
}

// ============================================================================
// Graph Properties
// ============================================================================

// GraphProperty returns a graph-level property. ok is false when unset.
func (b *BadgerStore) GraphProperty(key PropertyKeyID) (value any, ok bool, err error) {
	err = b.withView(func(txn *badger.Txn) error {
		var holder graphPropValue
		getErr := getGob(txn, graphPropKey(key), &holder)
		if getErr == ErrNotFound {
			return nil
		}
		if getErr != nil {
			return getErr
		}
		value, ok = holder.V, true
		return nil
	})
	return value, ok, err
}

// GraphPropertyKeys returns the keys of all graph-level properties in key order.
func (b *BadgerStore) GraphPropertyKeys() ([]PropertyKeyID, error) {
	var keys []PropertyKeyID
	for item, err := range b.iterate(keyScan([]byte{prefixGraphProp}), nil) {
		if err != nil {
			return nil, err
		}
		k := item.Key()
		keys = append(keys, PropertyKeyID(int32(binary.BigEndian.Uint32(k[1:5]))))
	}
	return keys, nil
}
