package kernel

import (
	"maps"
	"slices"

	"github.com/orneryd/graphkernel/pkg/storage"
)

// NodeCursor is a reusable handle positioned on at most one node.
//
// Positioning moves the cursor and invalidates every view obtained before
// the move. A failed Position leaves the cursor unbound.
type NodeCursor struct {
	r    *Reader
	gen  uint64
	node *storage.NodeRecord
}

// NodeCursor allocates an unbound node cursor.
func (r *Reader) NodeCursor() *NodeCursor {
	return &NodeCursor{r: r}
}

// Position moves the cursor to node id. It returns ErrEntityNotFound when id
// is not visible in the statement snapshot.
func (c *NodeCursor) Position(id storage.EntityID) error {
	c.reset()
	node, err := c.r.visibleNode(id)
	c.r.metrics.ObservePosition(storage.NodeEntity.String(), err == nil)
	if err != nil {
		return c.r.fail(err)
	}
	c.node = node
	return nil
}

// Positioned reports whether the cursor is on a node.
func (c *NodeCursor) Positioned() bool { return c.node != nil }

// Release unbinds the cursor. Views obtained before are invalidated.
func (c *NodeCursor) Release() { c.reset() }

func (c *NodeCursor) reset() {
	c.gen++
	c.node = nil
}

// current returns the positioned record or ErrCursorUnbound.
func (c *NodeCursor) current() (*storage.NodeRecord, error) {
	if c.node == nil {
		return nil, ErrCursorUnbound
	}
	return c.node, nil
}

// View returns a read-only view of the positioned node.
func (c *NodeCursor) View() (NodeView, error) {
	node, err := c.current()
	if err != nil {
		return NodeView{}, err
	}
	return NodeView{c: c, gen: c.gen, node: node}, nil
}

// NodeView exposes the data of the node a cursor was positioned on. It
// becomes stale as soon as the cursor moves; a stale view returns
// ErrStaleView from every accessor.
type NodeView struct {
	c    *NodeCursor
	gen  uint64
	node *storage.NodeRecord
}

func (v NodeView) check() error {
	if v.c == nil || v.c.gen != v.gen {
		return ErrStaleView
	}
	return nil
}

// ID returns the node id.
func (v NodeView) ID() (storage.EntityID, error) {
	if err := v.check(); err != nil {
		return storage.NoEntity, err
	}
	return v.node.ID, nil
}

// Labels returns the node's labels in ascending order.
func (v NodeView) Labels() ([]storage.LabelID, error) {
	if err := v.check(); err != nil {
		return nil, err
	}
	labels := slices.Clone(v.node.Labels)
	slices.Sort(labels)
	return labels, nil
}

// HasLabel reports whether the node carries label.
func (v NodeView) HasLabel(label storage.LabelID) (bool, error) {
	if err := v.check(); err != nil {
		return false, err
	}
	return v.node.HasLabel(label), nil
}

// Property returns the value stored under key. ok is false when unset.
func (v NodeView) Property(key storage.PropertyKeyID) (value any, ok bool, err error) {
	if err := v.check(); err != nil {
		return nil, false, err
	}
	value, ok = v.node.Properties[key]
	return value, ok, nil
}

// PropertyKeys returns the node's property keys in ascending order.
func (v NodeView) PropertyKeys() ([]storage.PropertyKeyID, error) {
	if err := v.check(); err != nil {
		return nil, err
	}
	return slices.Sorted(maps.Keys(v.node.Properties)), nil
}

// Relationships yields the ids of the node's visible relationships in dir.
// With Both, a self-loop is yielded once.
func (v NodeView) Relationships(dir storage.Direction) (*IDSequence, error) {
	if err := v.check(); err != nil {
		return nil, err
	}
	if err := validDirection(dir); err != nil {
		return nil, err
	}
	r, node := v.c.r, v.node.ID
	return newSequence(func(yield func(storage.EntityID, error) bool) {
		for e, err := range r.store.Adjacency(node, dir) {
			if err != nil {
				yield(storage.NoEntity, r.fail(err))
				return
			}
			rel, err := r.visibleRelationship(e.Relationship)
			if KindOf(err) == KindEntityNotFound {
				continue
			}
			if err != nil {
				yield(storage.NoEntity, r.fail(err))
				return
			}
			if dir == storage.Both && e.Direction == storage.Incoming && rel.StartNode == rel.EndNode {
				continue
			}
			if !yield(rel.ID, nil) {
				return
			}
		}
	}), nil
}

// RelationshipCursor is a reusable handle positioned on at most one
// relationship. It follows the same rules as NodeCursor.
type RelationshipCursor struct {
	r   *Reader
	gen uint64
	rel *storage.RelationshipRecord
}

// RelationshipCursor allocates an unbound relationship cursor.
func (r *Reader) RelationshipCursor() *RelationshipCursor {
	return &RelationshipCursor{r: r}
}

// Position moves the cursor to relationship id.
func (c *RelationshipCursor) Position(id storage.EntityID) error {
	c.reset()
	rel, err := c.r.visibleRelationship(id)
	c.r.metrics.ObservePosition(storage.RelationshipEntity.String(), err == nil)
	if err != nil {
		return c.r.fail(err)
	}
	c.rel = rel
	return nil
}

// Positioned reports whether the cursor is on a relationship.
func (c *RelationshipCursor) Positioned() bool { return c.rel != nil }

// Release unbinds the cursor.
func (c *RelationshipCursor) Release() { c.reset() }

func (c *RelationshipCursor) reset() {
	c.gen++
	c.rel = nil
}

// View returns a read-only view of the positioned relationship.
func (c *RelationshipCursor) View() (RelationshipView, error) {
	if c.rel == nil {
		return RelationshipView{}, ErrCursorUnbound
	}
	return RelationshipView{c: c, gen: c.gen, rel: c.rel}, nil
}

// RelationshipView exposes the data of a positioned relationship.
type RelationshipView struct {
	c   *RelationshipCursor
	gen uint64
	rel *storage.RelationshipRecord
}

func (v RelationshipView) check() error {
	if v.c == nil || v.c.gen != v.gen {
		return ErrStaleView
	}
	return nil
}

// ID returns the relationship id.
func (v RelationshipView) ID() (storage.EntityID, error) {
	if err := v.check(); err != nil {
		return storage.NoEntity, err
	}
	return v.rel.ID, nil
}

// Type returns the relationship type.
func (v RelationshipView) Type() (storage.RelTypeID, error) {
	if err := v.check(); err != nil {
		return 0, err
	}
	return v.rel.Type, nil
}

// Endpoints returns the start and end node ids.
func (v RelationshipView) Endpoints() (start, end storage.EntityID, err error) {
	if err := v.check(); err != nil {
		return storage.NoEntity, storage.NoEntity, err
	}
	return v.rel.StartNode, v.rel.EndNode, nil
}

// OtherNode returns the endpoint opposite node. For a self-loop that is node.
func (v RelationshipView) OtherNode(node storage.EntityID) (storage.EntityID, error) {
	if err := v.check(); err != nil {
		return storage.NoEntity, err
	}
	switch node {
	case v.rel.StartNode:
		return v.rel.EndNode, nil
	case v.rel.EndNode:
		return v.rel.StartNode, nil
	default:
		return storage.NoEntity, ErrIllegalState
	}
}

// Property returns the value stored under key.
func (v RelationshipView) Property(key storage.PropertyKeyID) (value any, ok bool, err error) {
	if err := v.check(); err != nil {
		return nil, false, err
	}
	value, ok = v.rel.Properties[key]
	return value, ok, nil
}

// PropertyKeys returns the relationship's property keys in ascending order.
func (v RelationshipView) PropertyKeys() ([]storage.PropertyKeyID, error) {
	if err := v.check(); err != nil {
		return nil, err
	}
	return slices.Sorted(maps.Keys(v.rel.Properties)), nil
}

// RelationshipVisitor receives the structural data of one relationship.
type RelationshipVisitor func(id storage.EntityID, relType storage.RelTypeID, start, end storage.EntityID) error

// RelationshipVisit calls visit with the data of relationship id. Errors
// returned by visit are passed through unchanged.
func (r *Reader) RelationshipVisit(id storage.EntityID, visit RelationshipVisitor) error {
	rel, err := r.visibleRelationship(id)
	if err != nil {
		return r.fail(err)
	}
	return visit(rel.ID, rel.Type, rel.StartNode, rel.EndNode)
}
