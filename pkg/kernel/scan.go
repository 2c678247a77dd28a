package kernel

import (
	"github.com/orneryd/graphkernel/pkg/storage"
)

// ScanAllNodes yields the id of every node visible in the statement
// snapshot, each exactly once, in id order.
func (r *Reader) ScanAllNodes() *IDSequence {
	return newSequence(func(yield func(storage.EntityID, error) bool) {
		for node, err := range r.store.ScanNodes() {
			if err != nil {
				yield(storage.NoEntity, r.fail(err))
				return
			}
			if r.visible(node.Version) && !yield(node.ID, nil) {
				return
			}
		}
	})
}

// ScanAllRelationships yields the id of every visible relationship, each
// exactly once, in id order.
func (r *Reader) ScanAllRelationships() *IDSequence {
	return newSequence(func(yield func(storage.EntityID, error) bool) {
		for rel, err := range r.store.ScanRelationships() {
			if err != nil {
				yield(storage.NoEntity, r.fail(err))
				return
			}
			if r.visible(rel.Version) && !yield(rel.ID, nil) {
				return
			}
		}
	})
}

// NodesWithLabel yields the ids of visible nodes carrying label.
func (r *Reader) NodesWithLabel(label storage.LabelID) *IDSequence {
	return newSequence(func(yield func(storage.EntityID, error) bool) {
		for id, err := range r.store.LabelScan(label) {
			if err != nil {
				yield(storage.NoEntity, r.fail(err))
				return
			}
			node, err := r.visibleNode(id)
			if KindOf(err) == KindEntityNotFound {
				continue
			}
			if err != nil {
				yield(storage.NoEntity, r.fail(err))
				return
			}
			if node.HasLabel(label) && !yield(id, nil) {
				return
			}
		}
	})
}

// NodeExists reports whether id names a node visible in the snapshot.
func (r *Reader) NodeExists(id storage.EntityID) (bool, error) {
	_, err := r.visibleNode(id)
	switch KindOf(err) {
	case KindNone:
		return true, nil
	case KindEntityNotFound:
		return false, nil
	default:
		return false, r.fail(err)
	}
}

// RelationshipExists reports whether id names a visible relationship.
func (r *Reader) RelationshipExists(id storage.EntityID) (bool, error) {
	ok, err := r.relationshipVisible(id)
	if err != nil {
		return false, r.fail(err)
	}
	return ok, nil
}

// NodeCount counts the nodes visible in the snapshot.
func (r *Reader) NodeCount() (int64, error) {
	return count(r.ScanAllNodes())
}

// RelationshipCount counts the relationships visible in the snapshot.
func (r *Reader) RelationshipCount() (int64, error) {
	return count(r.ScanAllRelationships())
}

func count(s *IDSequence) (int64, error) {
	var n int64
	for _, err := range s.All() {
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

// GraphProperty returns a graph-level property. Graph properties are not
// versioned; the latest committed value is returned.
func (r *Reader) GraphProperty(key storage.PropertyKeyID) (any, bool, error) {
	v, ok, err := r.store.GraphProperty(key)
	if err != nil {
		return nil, false, r.fail(err)
	}
	return v, ok, nil
}

// GraphHasProperty reports whether a graph-level property is set.
func (r *Reader) GraphHasProperty(key storage.PropertyKeyID) (bool, error) {
	_, ok, err := r.GraphProperty(key)
	return ok, err
}

// GraphPropertyKeys lists the keys of all graph-level properties.
func (r *Reader) GraphPropertyKeys() ([]storage.PropertyKeyID, error) {
	keys, err := r.store.GraphPropertyKeys()
	if err != nil {
		return nil, r.fail(err)
	}
	return keys, nil
}
