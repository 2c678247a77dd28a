package storage

import (
	"fmt"
	"strings"
)

// IndexSchema identifies a secondary index by the token and property it is built over.
// Token is a LabelID for node indexes and a RelTypeID for relationship indexes.
type IndexSchema struct {
	Entity   EntityKind
	Token    int32
	Property PropertyKeyID
}

// NodeIndexSchema builds the schema of a node index over (label, property).
func NodeIndexSchema(label LabelID, property PropertyKeyID) IndexSchema {
	return IndexSchema{Entity: NodeEntity, Token: int32(label), Property: property}
}

// RelationshipIndexSchema builds the schema of a relationship index over (type, property).
func RelationshipIndexSchema(relType RelTypeID, property PropertyKeyID) IndexSchema {
	return IndexSchema{Entity: RelationshipEntity, Token: int32(relType), Property: property}
}

func (s IndexSchema) String() string {
	if s.Entity == RelationshipEntity {
		return fmt.Sprintf("-[:%d {%d}]-", s.Token, s.Property)
	}
	return fmt.Sprintf("(:%d {%d})", s.Token, s.Property)
}

// IndexValueType restricts which property values an index holds. It also
// decides which seek shapes the index can answer.
type IndexValueType uint8

const (
	AnyValues IndexValueType = iota
	NumberValues
	StringValues
)

func (t IndexValueType) String() string {
	switch t {
	case NumberValues:
		return "number"
	case StringValues:
		return "string"
	default:
		return "any"
	}
}

// ParseIndexValueType parses "any", "number" or "string".
func ParseIndexValueType(s string) (IndexValueType, error) {
	switch strings.ToLower(s) {
	case "", "any":
		return AnyValues, nil
	case "number", "numeric":
		return NumberValues, nil
	case "string", "text":
		return StringValues, nil
	default:
		return 0, fmt.Errorf("unknown index value type %q", s)
	}
}

// Accepts reports whether v belongs in an index of this value type.
func (t IndexValueType) Accepts(v any) bool {
	switch t {
	case NumberValues:
		_, ok := NumericValue(v)
		return ok && IsIndexable(v)
	case StringValues:
		_, ok := v.(string)
		return ok
	default:
		return IsIndexable(v)
	}
}

// IndexState is the health of an index.
type IndexState uint8

const (
	IndexOnline IndexState = iota
	IndexFailed
)

func (s IndexState) String() string {
	if s == IndexFailed {
		return "FAILED"
	}
	return "ONLINE"
}

// IndexDefinition is the stored description of a secondary index.
type IndexDefinition struct {
	ID        uint32
	Name      string
	Schema    IndexSchema
	Unique    bool
	ValueType IndexValueType
	State     IndexState
	Failure   string
}

// IndexEntry is one (value, entity) pair stored in a secondary index.
type IndexEntry struct {
	Value   any
	Entity  EntityID
	Version Version
}
