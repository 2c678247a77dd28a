package storage

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/dgraph-io/badger/v4"
)

// Writer applies changes inside one commit. Every change made through a
// Writer becomes visible at the same commit sequence. A Writer is only valid
// inside the Update callback that created it.
//
// The write path is deliberately small: it exists so that graphs can be
// built for reading. It does not enforce uniqueness constraints, so a unique
// index can end up holding duplicate values exactly as a corrupted store would.
type Writer struct {
	store *BadgerStore
	txn   *badger.Txn
	seq   uint64
	defs  []IndexDefinition

	nodeDelta int64
	relDelta  int64
}

type graphPropValue struct {
	V any
}

// Update runs fn inside a single commit and returns the commit sequence.
// If fn returns an error nothing is written.
func (b *BadgerStore) Update(fn func(w *Writer) error) (uint64, error) {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	defs, err := b.IndexDefinitions()
	if err != nil {
		return 0, err
	}

	seq := b.lastCommit.Load() + 1
	w := &Writer{store: b, seq: seq, defs: defs}
	err = b.withUpdate(func(txn *badger.Txn) error {
		w.txn = txn
		if err := fn(w); err != nil {
			return err
		}
		return writeMeta(txn, metaLastCommit, seq)
	})
	if err != nil {
		return 0, err
	}

	b.lastCommit.Store(seq)
	b.nodeCount.Add(w.nodeDelta)
	b.relCount.Add(w.relDelta)
	return seq, nil
}

// Sequence returns the commit sequence this writer stamps on changes.
func (w *Writer) Sequence() uint64 {
	return w.seq
}

func (w *Writer) nextID(key []byte) (uint64, error) {
	next, err := readMeta(w.txn, key)
	if err != nil {
		return 0, err
	}
	if err := writeMeta(w.txn, key, next+1); err != nil {
		return 0, err
	}
	return next, nil
}

func (w *Writer) putNode(n *NodeRecord) error {
	data, err := encodeNode(n)
	if err != nil {
		return fmt.Errorf("failed to encode node: %w", err)
	}
	return w.txn.Set(nodeKey(n.ID), data)
}

func (w *Writer) putRelationship(r *RelationshipRecord) error {
	data, err := encodeRelationship(r)
	if err != nil {
		return fmt.Errorf("failed to encode relationship: %w", err)
	}
	return w.txn.Set(relationshipKey(r.ID), data)
}

// ============================================================================
// Nodes
// ============================================================================

// CreateNode stores a new node and returns its id.
func (w *Writer) CreateNode(labels []LabelID, props map[PropertyKeyID]any) (EntityID, error) {
	raw, err := w.nextID(metaNextNode)
	if err != nil {
		return NoEntity, err
	}
	node := &NodeRecord{
		ID:         EntityID(raw),
		Labels:     slices.Clone(labels),
		Properties: maps.Clone(props),
		Version:    Version{Created: w.seq},
	}
	if err := w.putNode(node); err != nil {
		return NoEntity, err
	}
	for _, label := range node.Labels {
		if err := w.txn.Set(labelIndexKey(label, node.ID), []byte{}); err != nil {
			return NoEntity, err
		}
	}
	for _, def := range w.defs {
		if !nodeMatches(def.Schema, node) {
			continue
		}
		if err := w.putIndexEntry(def, node.Properties[def.Schema.Property], node.ID, node.Version); err != nil {
			return NoEntity, err
		}
	}
	w.nodeDelta++
	return node.ID, nil
}

// DeleteNode marks a node deleted at this commit. The node must not have live
// relationships.
func (w *Writer) DeleteNode(id EntityID) error {
	node, err := getNode(w.txn, id)
	if err != nil {
		return err
	}
	if !node.Version.Live() {
		return ErrNotFound
	}
	if node.DegreeHint > 0 {
		return fmt.Errorf("delete node %d: %w", id, ErrNodeHasRelationships)
	}
	node.Version.Deleted = w.seq
	if err := w.putNode(node); err != nil {
		return err
	}
	for _, def := range w.defs {
		if !nodeMatches(def.Schema, node) {
			continue
		}
		if err := w.deleteIndexEntry(def, node.Properties[def.Schema.Property], id); err != nil {
			return err
		}
	}
	w.nodeDelta--
	return nil
}

func nodeMatches(s IndexSchema, n *NodeRecord) bool {
	if s.Entity != NodeEntity || !n.HasLabel(LabelID(s.Token)) {
		return false
	}
	_, ok := n.Properties[s.Property]
	return ok
}

func relationshipMatches(s IndexSchema, r *RelationshipRecord) bool {
	if s.Entity != RelationshipEntity || r.Type != RelTypeID(s.Token) {
		return false
	}
	_, ok := r.Properties[s.Property]
	return ok
}

// ============================================================================
// Relationships
// ============================================================================

// CreateRelationship stores a new relationship between two live nodes and
// maintains adjacency chains, group summaries and degree hints.
func (w *Writer) CreateRelationship(relType RelTypeID, start, end EntityID, props map[PropertyKeyID]any) (EntityID, error) {
	startNode, err := w.liveNode(start)
	if err != nil {
		return NoEntity, fmt.Errorf("start node %d: %w", start, err)
	}
	endNode := startNode
	if end != start {
		if endNode, err = w.liveNode(end); err != nil {
			return NoEntity, fmt.Errorf("end node %d: %w", end, err)
		}
	}

	raw, err := w.nextID(metaNextRel)
	if err != nil {
		return NoEntity, err
	}
	rel := &RelationshipRecord{
		ID:         EntityID(raw),
		Type:       relType,
		StartNode:  start,
		EndNode:    end,
		Properties: maps.Clone(props),
		Version:    Version{Created: w.seq},
	}
	if err := w.putRelationship(rel); err != nil {
		return NoEntity, err
	}

	out := AdjacencyEntry{Node: start, Direction: Outgoing, Type: relType, Relationship: rel.ID}
	in := AdjacencyEntry{Node: end, Direction: Incoming, Type: relType, Relationship: rel.ID}
	for _, e := range []AdjacencyEntry{out, in} {
		if err := w.txn.Set(adjacencyKey(e), []byte{}); err != nil {
			return NoEntity, err
		}
		if err := w.adjustGroup(e, 1); err != nil {
			return NoEntity, err
		}
	}

	startNode.DegreeHint++
	endNode.DegreeHint++ // same pointer for a self-loop, which counts twice
	if err := w.putNode(startNode); err != nil {
		return NoEntity, err
	}
	if endNode != startNode {
		if err := w.putNode(endNode); err != nil {
			return NoEntity, err
		}
	}

	for _, def := range w.defs {
		if !relationshipMatches(def.Schema, rel) {
			continue
		}
		if err := w.putIndexEntry(def, rel.Properties[def.Schema.Property], rel.ID, rel.Version); err != nil {
			return NoEntity, err
		}
	}
	w.relDelta++
	return rel.ID, nil
}

// DeleteRelationship marks a relationship deleted at this commit.
func (w *Writer) DeleteRelationship(id EntityID) error {
	rel, err := getRelationship(w.txn, id)
	if err != nil {
		return err
	}
	if !rel.Version.Live() {
		return ErrNotFound
	}
	rel.Version.Deleted = w.seq
	if err := w.putRelationship(rel); err != nil {
		return err
	}

	out := AdjacencyEntry{Node: rel.StartNode, Direction: Outgoing, Type: rel.Type, Relationship: id}
	in := AdjacencyEntry{Node: rel.EndNode, Direction: Incoming, Type: rel.Type, Relationship: id}
	for _, e := range []AdjacencyEntry{out, in} {
		if err := w.adjustGroup(e, -1); err != nil {
			return err
		}
	}

	startNode, err := getNode(w.txn, rel.StartNode)
	if err != nil {
		return err
	}
	endNode := startNode
	if rel.EndNode != rel.StartNode {
		if endNode, err = getNode(w.txn, rel.EndNode); err != nil {
			return err
		}
	}
	startNode.DegreeHint--
	endNode.DegreeHint--
	if err := w.putNode(startNode); err != nil {
		return err
	}
	if endNode != startNode {
		if err := w.putNode(endNode); err != nil {
			return err
		}
	}

	for _, def := range w.defs {
		if !relationshipMatches(def.Schema, rel) {
			continue
		}
		if err := w.deleteIndexEntry(def, rel.Properties[def.Schema.Property], id); err != nil {
			return err
		}
	}
	w.relDelta--
	return nil
}

func (w *Writer) liveNode(id EntityID) (*NodeRecord, error) {
	node, err := getNode(w.txn, id)
	if err != nil {
		return nil, err
	}
	if !node.Version.Live() {
		return nil, ErrNotFound
	}
	return node, nil
}

// adjustGroup applies delta to the group summary the entry belongs to.
func (w *Writer) adjustGroup(e AdjacencyEntry, delta int64) error {
	key := groupKey(e.Node, e.Type, e.Direction)
	var g RelationshipGroup
	err := getGob(w.txn, key, &g)
	switch {
	case errors.Is(err, ErrNotFound):
		g = RelationshipGroup{
			Node:              e.Node,
			Type:              e.Type,
			Direction:         e.Direction,
			FirstRelationship: e.Relationship,
		}
	case err != nil:
		return err
	}
	g.Count += delta
	g.UpdatedAt = w.seq
	if g.Count < 0 {
		return fmt.Errorf("%w: negative group count for node %d", ErrInvalidData, e.Node)
	}
	data, err := encodeGob(&g)
	if err != nil {
		return err
	}
	return w.txn.Set(key, data)
}

// ============================================================================
// Secondary Indexes
// ============================================================================

func (w *Writer) putIndexEntry(def IndexDefinition, value any, entity EntityID, v Version) error {
	if !def.ValueType.Accepts(value) {
		return nil
	}
	key, err := indexEntryKey(def.ID, value, entity)
	if err != nil {
		return err
	}
	return w.txn.Set(key, encodeVersion(v))
}

func (w *Writer) deleteIndexEntry(def IndexDefinition, value any, entity EntityID) error {
	if !def.ValueType.Accepts(value) {
		return nil
	}
	key, err := indexEntryKey(def.ID, value, entity)
	if err != nil {
		return err
	}
	item, err := w.txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	var v Version
	if err := item.Value(func(val []byte) error {
		var decodeErr error
		v, decodeErr = decodeVersion(val)
		return decodeErr
	}); err != nil {
		return err
	}
	v.Deleted = w.seq
	return w.txn.Set(key, encodeVersion(v))
}

// CreateIndex stores a new index definition and populates it from existing
// entities. Entries of existing entities carry the entity's own version so
// older snapshots read the index consistently.
func (w *Writer) CreateIndex(name string, schema IndexSchema, unique bool, valueType IndexValueType) (IndexDefinition, error) {
	for _, def := range w.defs {
		if def.Schema == schema {
			return IndexDefinition{}, fmt.Errorf("index on %s: %w", schema, ErrAlreadyExists)
		}
	}
	id, err := w.nextID(metaNextIndex)
	if err != nil {
		return IndexDefinition{}, err
	}
	def := IndexDefinition{
		ID:        uint32(id) + 1,
		Name:      name,
		Schema:    schema,
		Unique:    unique,
		ValueType: valueType,
		State:     IndexOnline,
	}
	if err := w.putIndexDefinition(def); err != nil {
		return IndexDefinition{}, err
	}
	if err := w.backfill(def); err != nil {
		return IndexDefinition{}, fmt.Errorf("populate index %s: %w", name, err)
	}
	w.defs = append(w.defs, def)
	return def, nil
}

// SetIndexState records the health of an index.
func (w *Writer) SetIndexState(id uint32, state IndexState, failure string) error {
	var def IndexDefinition
	if err := getGob(w.txn, indexDefKey(id), &def); err != nil {
		return err
	}
	def.State = state
	def.Failure = failure
	if state == IndexOnline {
		def.Failure = ""
	}
	for i := range w.defs {
		if w.defs[i].ID == id {
			w.defs[i] = def
		}
	}
	return w.putIndexDefinition(def)
}

func (w *Writer) putIndexDefinition(def IndexDefinition) error {
	data, err := encodeGob(&def)
	if err != nil {
		return err
	}
	return w.txn.Set(indexDefKey(def.ID), data)
}

// backfill collects candidate ids with a single iterator first; a read-write
// transaction allows only one open iterator.
func (w *Writer) backfill(def IndexDefinition) error {
	var prefix []byte
	if def.Schema.Entity == NodeEntity {
		prefix = labelIndexPrefix(LabelID(def.Schema.Token))
	} else {
		prefix = []byte{prefixRelationship}
	}

	var ids []EntityID
	it := w.txn.NewIterator(keyScan(prefix))
	for it.Rewind(); it.Valid(); it.Next() {
		ids = append(ids, readID(it.Item().Key()[len(prefix):]))
	}
	it.Close()

	for _, id := range ids {
		if def.Schema.Entity == NodeEntity {
			node, err := getNode(w.txn, id)
			if err != nil {
				return err
			}
			if nodeMatches(def.Schema, node) {
				if err := w.putIndexEntry(def, node.Properties[def.Schema.Property], id, node.Version); err != nil {
					return err
				}
			}
			continue
		}
		rel, err := getRelationship(w.txn, id)
		if err != nil {
			return err
		}
		if relationshipMatches(def.Schema, rel) {
			if err := w.putIndexEntry(def, rel.Properties[def.Schema.Property], id, rel.Version); err != nil {
				return err
			}
		}
	}
	return nil
}

// ============================================================================
// Graph Properties
// ============================================================================

// SetGraphProperty sets a graph-level property.
func (w *Writer) SetGraphProperty(key PropertyKeyID, value any) error {
	data, err := encodeGob(&graphPropValue{V: value})
	if err != nil {
		return fmt.Errorf("failed to encode graph property: %w", err)
	}
	return w.txn.Set(graphPropKey(key), data)
}

// RemoveGraphProperty removes a graph-level property.
func (w *Writer) RemoveGraphProperty(key PropertyKeyID) error {
	return w.txn.Delete(graphPropKey(key))
}
