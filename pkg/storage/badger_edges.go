package storage

import (
	"fmt"
	"iter"

	"github.com/dgraph-io/badger/v4"
)

// ============================================================================
// Relationship Reads
// ============================================================================

// Relationship retrieves a relationship record by id regardless of its
// visibility. Returns ErrNotFound if no record exists.
func (b *BadgerStore) Relationship(id EntityID) (*RelationshipRecord, error) {
	if !id.Valid() {
		return nil, ErrInvalidID
	}

	var rel *RelationshipRecord
	err := b.withView(func(txn *badger.Txn) error {
		var err error
		rel, err = getRelationship(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rel, nil
}

func getRelationship(txn *badger.Txn, id EntityID) (*RelationshipRecord, error) {
	item, err := txn.Get(relationshipKey(id))
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rel *RelationshipRecord
	err = item.Value(func(val []byte) error {
		var decodeErr error
		rel, decodeErr = decodeRelationship(val)
		return decodeErr
	})
	if err != nil {
		return nil, fmt.Errorf("decode relationship %d: %w", id, err)
	}
	return rel, nil
}

// ScanRelationships lazily yields every stored relationship record in id
// order, including deleted ones.
func (b *BadgerStore) ScanRelationships() iter.Seq2[*RelationshipRecord, error] {
	return func(yield func(*RelationshipRecord, error) bool) {
		opts := recordScan([]byte{prefixRelationship}, b.prefetchSize)
		for item, err := range b.iterate(opts, nil) {
			if err != nil {
				yield(nil, err)
				return
			}
			var rel *RelationshipRecord
			err = item.Value(func(val []byte) error {
				var decodeErr error
				rel, decodeErr = decodeRelationship(val)
				return decodeErr
			})
			if err != nil {
				yield(nil, fmt.Errorf("decode relationship: %w", err))
				return
			}
			if !yield(rel, nil) {
				return
			}
		}
	}
}

// ============================================================================
// Adjacency
// ============================================================================

// Adjacency lazily walks a node's relationship chain in the given direction.
// Both walks outgoing entries then incoming entries. A self-loop appears once
// in each direction. Entries of deleted relationships remain in the chain.
func (b *BadgerStore) Adjacency(nodeID EntityID, dir Direction) iter.Seq2[AdjacencyEntry, error] {
	prefix := adjacencyPrefix(nodeID)
	if dir != Both {
		prefix = adjacencyDirectionPrefix(nodeID, dir)
	}
	return b.walkChain(prefix, nil)
}

// GroupChain lazily walks the chain of one relationship group, starting at
// the group's first relationship.
func (b *BadgerStore) GroupChain(g RelationshipGroup) iter.Seq2[AdjacencyEntry, error] {
	prefix := adjacencyGroupPrefix(g.Node, g.Direction, g.Type)
	var start []byte
	if g.FirstRelationship.Valid() {
		start = adjacencyKey(AdjacencyEntry{
			Node:         g.Node,
			Direction:    g.Direction,
			Type:         g.Type,
			Relationship: g.FirstRelationship,
		})
	}
	return b.walkChain(prefix, start)
}

func (b *BadgerStore) walkChain(prefix, start []byte) iter.Seq2[AdjacencyEntry, error] {
	return func(yield func(AdjacencyEntry, error) bool) {
		for item, err := range b.iterate(keyScan(prefix), start) {
			if err != nil {
				yield(AdjacencyEntry{}, err)
				return
			}
			entry, err := decodeAdjacencyKey(item.Key())
			if err != nil {
				yield(AdjacencyEntry{}, err)
				return
			}
			if !yield(entry, nil) {
				return
			}
		}
	}
}

// RelationshipGroups returns the group summaries of a node ordered by
// (type, direction). Nodes without relationships have no groups.
func (b *BadgerStore) RelationshipGroups(nodeID EntityID) ([]RelationshipGroup, error) {
	var groups []RelationshipGroup
	opts := recordScan(groupPrefix(nodeID), 0)
	for item, err := range b.iterate(opts, nil) {
		if err != nil {
			return nil, err
		}
		var g RelationshipGroup
		if err := item.Value(func(val []byte) error { return decodeGob(val, &g) }); err != nil {
			return nil, fmt.Errorf("decode relationship group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, nil
}
