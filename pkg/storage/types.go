// Package storage provides the entity store consumed by the graphkernel read path.
//
// The store keeps node and relationship records keyed by dense 64-bit ids,
// a label index, per-node adjacency chains, per-node relationship group
// summaries and secondary index entries. Every record and index entry carries
// a Version so that readers can filter by a Snapshot.
package storage

import (
	"errors"
	"fmt"
	"slices"
)

// Common storage errors.
var (
	ErrNotFound              = errors.New("not found")
	ErrAlreadyExists         = errors.New("already exists")
	ErrInvalidID             = errors.New("invalid id")
	ErrInvalidData           = errors.New("invalid data")
	ErrStorageClosed         = errors.New("storage closed")
	ErrNodeHasRelationships  = errors.New("node still has relationships")
	ErrUnsupportedIndexValue = errors.New("value type cannot be indexed")
)

// EntityID identifies a node or a relationship. Node and relationship ids
// live in independent spaces. Negative ids are never allocated.
type EntityID int64

// NoEntity is the sentinel for "no entity".
const NoEntity EntityID = -1

// Valid reports whether id can refer to an entity.
func (id EntityID) Valid() bool { return id >= 0 }

// LabelID identifies a node label token.
type LabelID int32

// RelTypeID identifies a relationship type token.
type RelTypeID int32

// PropertyKeyID identifies a property key token.
type PropertyKeyID int32

// EntityKind distinguishes the node and relationship id spaces.
type EntityKind uint8

const (
	NodeEntity EntityKind = iota + 1
	RelationshipEntity
)

func (k EntityKind) String() string {
	switch k {
	case NodeEntity:
		return "node"
	case RelationshipEntity:
		return "relationship"
	default:
		return fmt.Sprintf("entity(%d)", uint8(k))
	}
}

// Direction filters relationships relative to a node.
type Direction uint8

const (
	Outgoing Direction = iota + 1
	Incoming
	Both
)

func (d Direction) String() string {
	switch d {
	case Outgoing:
		return "OUTGOING"
	case Incoming:
		return "INCOMING"
	case Both:
		return "BOTH"
	default:
		return fmt.Sprintf("Direction(%d)", uint8(d))
	}
}

// Includes reports whether a chain entry stored under dir passes the filter d.
// Both includes every stored direction.
func (d Direction) Includes(dir Direction) bool {
	return d == Both || d == dir
}

// ParseDirection parses OUTGOING, INCOMING or BOTH (case-insensitive, "out"/"in" accepted).
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "OUTGOING", "outgoing", "out", "OUT":
		return Outgoing, nil
	case "INCOMING", "incoming", "in", "IN":
		return Incoming, nil
	case "BOTH", "both", "":
		return Both, nil
	default:
		return 0, fmt.Errorf("unknown direction %q", s)
	}
}

// Version records the commit sequences at which an entity or index entry
// became visible and, if deleted, stopped being visible. Deleted is 0 while live.
type Version struct {
	Created uint64
	Deleted uint64
}

// Live reports whether the version has not been deleted by any commit.
func (v Version) Live() bool { return v.Deleted == 0 }

// NodeRecord is the stored form of a node.
type NodeRecord struct {
	ID         EntityID
	Labels     []LabelID
	Properties map[PropertyKeyID]any
	// DegreeHint is the number of live relationship endpoints at this node as
	// of the last commit that touched it. A self-loop contributes two.
	DegreeHint int64
	Version    Version
}

// HasLabel reports whether the record carries label.
func (n *NodeRecord) HasLabel(label LabelID) bool {
	return slices.Contains(n.Labels, label)
}

// RelationshipRecord is the stored form of a relationship.
type RelationshipRecord struct {
	ID         EntityID
	Type       RelTypeID
	StartNode  EntityID
	EndNode    EntityID
	Properties map[PropertyKeyID]any
	Version    Version
}

// RelationshipGroup summarizes one (node, type, direction) slice of a node's
// adjacency. Count is exact as of UpdatedAt; FirstRelationship is the head of
// the group's chain.
type RelationshipGroup struct {
	Node              EntityID
	Type              RelTypeID
	Direction         Direction
	Count             int64
	FirstRelationship EntityID
	UpdatedAt         uint64
}

// AdjacencyEntry is one link in a node's relationship chain.
type AdjacencyEntry struct {
	Node         EntityID
	Direction    Direction
	Type         RelTypeID
	Relationship EntityID
}

// Snapshot is the visibility filter supplied by a transaction context.
type Snapshot interface {
	// Visible reports whether a record or index entry with version v is
	// visible in this snapshot.
	Visible(v Version) bool
	// Sees reports whether every commit at or before seq is visible in this
	// snapshot and nothing the snapshot sees is hidden from such a commit.
	Sees(seq uint64) bool
}

// SequenceSnapshot sees exactly the commits with sequence at or below its value.
type SequenceSnapshot uint64

// Visible implements Snapshot.
func (s SequenceSnapshot) Visible(v Version) bool {
	if v.Created == 0 || v.Created > uint64(s) {
		return false
	}
	return v.Deleted == 0 || v.Deleted > uint64(s)
}

// Sees implements Snapshot.
func (s SequenceSnapshot) Sees(seq uint64) bool {
	return seq <= uint64(s)
}
