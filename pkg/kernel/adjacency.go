package kernel

import (
	"fmt"
	"maps"
	"slices"

	"github.com/orneryd/graphkernel/pkg/storage"
)

// TypeSet is a set of relationship types.
type TypeSet map[storage.RelTypeID]struct{}

// Contains reports whether t is in the set.
func (s TypeSet) Contains(t storage.RelTypeID) bool {
	_, ok := s[t]
	return ok
}

// Sorted returns the members in ascending order.
func (s TypeSet) Sorted() []storage.RelTypeID {
	return slices.Sorted(maps.Keys(s))
}

// Degree counts the visible relationships of the cursor's node in dir.
//
// A self-loop counts once in Outgoing and once in Incoming, so Both is
// always the sum of the two.
func (r *Reader) Degree(c *NodeCursor, dir storage.Direction) (int64, error) {
	return r.degree(c, dir, nil)
}

// DegreeWithType counts the visible relationships of type relType in dir.
func (r *Reader) DegreeWithType(c *NodeCursor, dir storage.Direction, relType storage.RelTypeID) (int64, error) {
	return r.degree(c, dir, &relType)
}

func (r *Reader) degree(c *NodeCursor, dir storage.Direction, relType *storage.RelTypeID) (int64, error) {
	node, err := c.current()
	if err != nil {
		return 0, r.fail(err)
	}
	if err := validDirection(dir); err != nil {
		return 0, r.fail(err)
	}
	s := r.strategyFor(node)
	r.metrics.ObserveDegree(s.name())
	n, err := s.count(node, dir, relType)
	if err != nil {
		return 0, r.fail(err)
	}
	return n, nil
}

// RelationshipTypes returns the types of the node's visible relationships.
func (r *Reader) RelationshipTypes(c *NodeCursor) (TypeSet, error) {
	node, err := c.current()
	if err != nil {
		return nil, r.fail(err)
	}
	s := r.strategyFor(node)
	r.metrics.ObserveDegree(s.name())
	types, err := s.types(node)
	if err != nil {
		return nil, r.fail(err)
	}
	return types, nil
}

func validDirection(dir storage.Direction) error {
	switch dir {
	case storage.Outgoing, storage.Incoming, storage.Both:
		return nil
	default:
		return fmt.Errorf("%w: invalid direction %d", ErrIllegalState, dir)
	}
}

// adjacencyStrategy answers degree queries for one node. Both strategies
// return the same results; they differ only in what they read.
type adjacencyStrategy interface {
	name() string
	count(node *storage.NodeRecord, dir storage.Direction, relType *storage.RelTypeID) (int64, error)
	types(node *storage.NodeRecord) (TypeSet, error)
}

func (r *Reader) strategyFor(node *storage.NodeRecord) adjacencyStrategy {
	if node.DegreeHint >= r.dense {
		return denseStrategy{r}
	}
	return sparseStrategy{r}
}

// sparseStrategy walks the node's adjacency chain and checks every
// relationship record.
type sparseStrategy struct{ r *Reader }

func (sparseStrategy) name() string { return "sparse" }

func (s sparseStrategy) count(node *storage.NodeRecord, dir storage.Direction, relType *storage.RelTypeID) (int64, error) {
	var n int64
	for e, err := range s.r.store.Adjacency(node.ID, dir) {
		if err != nil {
			return 0, err
		}
		if relType != nil && e.Type != *relType {
			continue
		}
		ok, err := s.r.relationshipVisible(e.Relationship)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (s sparseStrategy) types(node *storage.NodeRecord) (TypeSet, error) {
	set := TypeSet{}
	for e, err := range s.r.store.Adjacency(node.ID, storage.Both) {
		if err != nil {
			return nil, err
		}
		if set.Contains(e.Type) {
			continue
		}
		ok, err := s.r.relationshipVisible(e.Relationship)
		if err != nil {
			return nil, err
		}
		if ok {
			set[e.Type] = struct{}{}
		}
	}
	return set, nil
}

// denseStrategy reads the node's relationship group summaries. A summary
// last updated after the snapshot no longer describes it, so that group's
// chain is walked instead.
type denseStrategy struct{ r *Reader }

func (denseStrategy) name() string { return "dense" }

func (s denseStrategy) count(node *storage.NodeRecord, dir storage.Direction, relType *storage.RelTypeID) (int64, error) {
	groups, err := s.r.store.RelationshipGroups(node.ID)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, g := range groups {
		if !dir.Includes(g.Direction) || (relType != nil && g.Type != *relType) {
			continue
		}
		c, err := s.groupCount(g)
		if err != nil {
			return 0, err
		}
		n += c
	}
	return n, nil
}

func (s denseStrategy) types(node *storage.NodeRecord) (TypeSet, error) {
	groups, err := s.r.store.RelationshipGroups(node.ID)
	if err != nil {
		return nil, err
	}
	set := TypeSet{}
	for _, g := range groups {
		if set.Contains(g.Type) {
			continue
		}
		c, err := s.groupCount(g)
		if err != nil {
			return nil, err
		}
		if c > 0 {
			set[g.Type] = struct{}{}
		}
	}
	return set, nil
}

func (s denseStrategy) groupCount(g storage.RelationshipGroup) (int64, error) {
	if s.r.stmt.Snapshot().Sees(g.UpdatedAt) {
		return g.Count, nil
	}
	s.r.log.Debug("group summary newer than snapshot, walking chain",
		"node", g.Node, "type", g.Type, "direction", g.Direction.String())
	var n int64
	for e, err := range s.r.store.GroupChain(g) {
		if err != nil {
			return 0, err
		}
		ok, err := s.r.relationshipVisible(e.Relationship)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// relationshipVisible reports whether relationship id exists in the snapshot.
func (r *Reader) relationshipVisible(id storage.EntityID) (bool, error) {
	_, err := r.visibleRelationship(id)
	switch KindOf(err) {
	case KindNone:
		return true, nil
	case KindEntityNotFound:
		return false, nil
	default:
		return false, err
	}
}
