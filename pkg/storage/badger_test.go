package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test Helpers
// ============================================================================

const (
	labelPerson  LabelID       = 1
	labelCompany LabelID       = 2
	relKnows     RelTypeID     = 10
	relWorksAt   RelTypeID     = 11
	propName     PropertyKeyID = 100
	propAge      PropertyKeyID = 101
)

// createTestStore creates an in-memory BadgerStore for testing.
func createTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := NewBadgerStoreInMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func mustCreateNode(t *testing.T, store *BadgerStore, labels []LabelID, props map[PropertyKeyID]any) EntityID {
	t.Helper()
	var id EntityID
	_, err := store.Update(func(w *Writer) error {
		var err error
		id, err = w.CreateNode(labels, props)
		return err
	})
	require.NoError(t, err)
	return id
}

func mustCreateRelationship(t *testing.T, store *BadgerStore, relType RelTypeID, start, end EntityID) EntityID {
	t.Helper()
	var id EntityID
	_, err := store.Update(func(w *Writer) error {
		var err error
		id, err = w.CreateRelationship(relType, start, end, nil)
		return err
	})
	require.NoError(t, err)
	return id
}

func collectAdjacency(t *testing.T, store *BadgerStore, node EntityID, dir Direction) []AdjacencyEntry {
	t.Helper()
	var out []AdjacencyEntry
	for e, err := range store.Adjacency(node, dir) {
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

// ============================================================================
// Nodes
// ============================================================================

func TestBadgerStore_CreateNode(t *testing.T) {
	store := createTestStore(t)

	id := mustCreateNode(t, store, []LabelID{labelPerson}, map[PropertyKeyID]any{propName: "Alice", propAge: 30})

	node, err := store.Node(id)
	require.NoError(t, err)
	assert.Equal(t, id, node.ID)
	assert.True(t, node.HasLabel(labelPerson))
	assert.False(t, node.HasLabel(labelCompany))
	assert.Equal(t, "Alice", node.Properties[propName])
	assert.Equal(t, 30, node.Properties[propAge])
	assert.Equal(t, store.LastCommitted(), node.Version.Created)
	assert.True(t, node.Version.Live())
	assert.Equal(t, int64(1), store.NodeCount())
}

func TestBadgerStore_NodeIDsAreDense(t *testing.T) {
	store := createTestStore(t)

	a := mustCreateNode(t, store, nil, nil)
	b := mustCreateNode(t, store, nil, nil)
	c := mustCreateNode(t, store, nil, nil)

	assert.Equal(t, []EntityID{0, 1, 2}, []EntityID{a, b, c})
}

func TestBadgerStore_NodeNotFound(t *testing.T) {
	store := createTestStore(t)

	_, err := store.Node(42)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Node(NoEntity)
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestBadgerStore_DeleteNode(t *testing.T) {
	store := createTestStore(t)

	id := mustCreateNode(t, store, []LabelID{labelPerson}, nil)
	before := store.Snapshot()

	seq, err := store.Update(func(w *Writer) error { return w.DeleteNode(id) })
	require.NoError(t, err)

	node, err := store.Node(id)
	require.NoError(t, err, "deleted records stay readable for older snapshots")
	assert.Equal(t, seq, node.Version.Deleted)
	assert.True(t, before.Visible(node.Version))
	assert.False(t, store.Snapshot().Visible(node.Version))
	assert.Equal(t, int64(0), store.NodeCount())

	_, err = store.Update(func(w *Writer) error { return w.DeleteNode(id) })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBadgerStore_DeleteNodeWithRelationships(t *testing.T) {
	store := createTestStore(t)

	a := mustCreateNode(t, store, nil, nil)
	b := mustCreateNode(t, store, nil, nil)
	mustCreateRelationship(t, store, relKnows, a, b)

	_, err := store.Update(func(w *Writer) error { return w.DeleteNode(a) })
	assert.ErrorIs(t, err, ErrNodeHasRelationships)
}

func TestBadgerStore_ScanNodes(t *testing.T) {
	store := createTestStore(t)

	for range 5 {
		mustCreateNode(t, store, nil, nil)
	}

	var ids []EntityID
	for node, err := range store.ScanNodes() {
		require.NoError(t, err)
		ids = append(ids, node.ID)
	}
	assert.Equal(t, []EntityID{0, 1, 2, 3, 4}, ids)

	t.Run("early break", func(t *testing.T) {
		n := 0
		for _, err := range store.ScanNodes() {
			require.NoError(t, err)
			n++
			if n == 2 {
				break
			}
		}
		assert.Equal(t, 2, n)
		// the store stays usable after an abandoned scan
		_, err := store.Node(4)
		require.NoError(t, err)
	})
}

func TestBadgerStore_LabelScan(t *testing.T) {
	store := createTestStore(t)

	alice := mustCreateNode(t, store, []LabelID{labelPerson}, nil)
	mustCreateNode(t, store, []LabelID{labelCompany}, nil)
	bob := mustCreateNode(t, store, []LabelID{labelPerson, labelCompany}, nil)

	var ids []EntityID
	for id, err := range store.LabelScan(labelPerson) {
		require.NoError(t, err)
		ids = append(ids, id)
	}
	assert.Equal(t, []EntityID{alice, bob}, ids)
}

// ============================================================================
// Relationships
// ============================================================================

func TestBadgerStore_CreateRelationship(t *testing.T) {
	store := createTestStore(t)

	a := mustCreateNode(t, store, nil, nil)
	b := mustCreateNode(t, store, nil, nil)
	id := mustCreateRelationship(t, store, relKnows, a, b)

	rel, err := store.Relationship(id)
	require.NoError(t, err)
	assert.Equal(t, relKnows, rel.Type)
	assert.Equal(t, a, rel.StartNode)
	assert.Equal(t, b, rel.EndNode)
	assert.Equal(t, int64(1), store.RelationshipCount())

	out := collectAdjacency(t, store, a, Outgoing)
	require.Len(t, out, 1)
	assert.Equal(t, id, out[0].Relationship)
	assert.Empty(t, collectAdjacency(t, store, a, Incoming))

	in := collectAdjacency(t, store, b, Incoming)
	require.Len(t, in, 1)
	assert.Equal(t, id, in[0].Relationship)

	startNode, err := store.Node(a)
	require.NoError(t, err)
	assert.Equal(t, int64(1), startNode.DegreeHint)
}

func TestBadgerStore_CreateRelationshipToMissingNode(t *testing.T) {
	store := createTestStore(t)

	a := mustCreateNode(t, store, nil, nil)
	_, err := store.Update(func(w *Writer) error {
		_, err := w.CreateRelationship(relKnows, a, 99, nil)
		return err
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int64(0), store.RelationshipCount())
}

func TestBadgerStore_SelfLoop(t *testing.T) {
	store := createTestStore(t)

	n := mustCreateNode(t, store, nil, nil)
	loop := mustCreateRelationship(t, store, relKnows, n, n)

	assert.Len(t, collectAdjacency(t, store, n, Outgoing), 1)
	assert.Len(t, collectAdjacency(t, store, n, Incoming), 1)
	both := collectAdjacency(t, store, n, Both)
	require.Len(t, both, 2)
	assert.Equal(t, loop, both[0].Relationship)
	assert.Equal(t, loop, both[1].Relationship)

	node, err := store.Node(n)
	require.NoError(t, err)
	assert.Equal(t, int64(2), node.DegreeHint)
}

func TestBadgerStore_RelationshipGroups(t *testing.T) {
	store := createTestStore(t)

	hub := mustCreateNode(t, store, nil, nil)
	other := mustCreateNode(t, store, nil, nil)
	for range 3 {
		mustCreateRelationship(t, store, relKnows, hub, other)
	}
	for range 2 {
		mustCreateRelationship(t, store, relWorksAt, other, hub)
	}

	groups, err := store.RelationshipGroups(hub)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	byType := map[RelTypeID]RelationshipGroup{}
	for _, g := range groups {
		byType[g.Type] = g
	}
	assert.Equal(t, Outgoing, byType[relKnows].Direction)
	assert.Equal(t, int64(3), byType[relKnows].Count)
	assert.Equal(t, Incoming, byType[relWorksAt].Direction)
	assert.Equal(t, int64(2), byType[relWorksAt].Count)

	var chain []EntityID
	for e, err := range store.GroupChain(byType[relKnows]) {
		require.NoError(t, err)
		chain = append(chain, e.Relationship)
	}
	assert.Len(t, chain, 3)
}

func TestBadgerStore_DeleteRelationship(t *testing.T) {
	store := createTestStore(t)

	a := mustCreateNode(t, store, nil, nil)
	b := mustCreateNode(t, store, nil, nil)
	id := mustCreateRelationship(t, store, relKnows, a, b)
	created := store.LastCommitted()

	seq, err := store.Update(func(w *Writer) error { return w.DeleteRelationship(id) })
	require.NoError(t, err)

	rel, err := store.Relationship(id)
	require.NoError(t, err)
	assert.Equal(t, seq, rel.Version.Deleted)
	assert.Len(t, collectAdjacency(t, store, a, Outgoing), 1, "chain entries stay for older snapshots")

	groups, err := store.RelationshipGroups(a)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, int64(0), groups[0].Count)
	assert.Equal(t, seq, groups[0].UpdatedAt)
	assert.Less(t, created, groups[0].UpdatedAt)

	node, err := store.Node(a)
	require.NoError(t, err)
	assert.Equal(t, int64(0), node.DegreeHint)
	assert.Equal(t, int64(0), store.RelationshipCount())
}

// ============================================================================
// Commits
// ============================================================================

func TestBadgerStore_UpdateRollsBackOnError(t *testing.T) {
	store := createTestStore(t)

	mustCreateNode(t, store, nil, nil)
	last := store.LastCommitted()

	_, err := store.Update(func(w *Writer) error {
		if _, err := w.CreateNode(nil, nil); err != nil {
			return err
		}
		return ErrInvalidData
	})
	require.ErrorIs(t, err, ErrInvalidData)

	assert.Equal(t, last, store.LastCommitted())
	assert.Equal(t, int64(1), store.NodeCount())
	_, err = store.Node(1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBadgerStore_Persistence(t *testing.T) {
	dir := t.TempDir()

	store, err := NewBadgerStore(dir)
	require.NoError(t, err)
	a := mustCreateNode(t, store, []LabelID{labelPerson}, map[PropertyKeyID]any{propName: "Alice"})
	b := mustCreateNode(t, store, nil, nil)
	mustCreateRelationship(t, store, relKnows, a, b)
	last := store.LastCommitted()
	require.NoError(t, store.Close())

	store, err = NewBadgerStore(dir)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, last, store.LastCommitted())
	assert.Equal(t, int64(2), store.NodeCount())
	assert.Equal(t, int64(1), store.RelationshipCount())

	node, err := store.Node(a)
	require.NoError(t, err)
	assert.Equal(t, "Alice", node.Properties[propName])

	c := mustCreateNode(t, store, nil, nil)
	assert.Equal(t, EntityID(2), c, "id allocation resumes after reopen")
}

func TestBadgerStore_InMemoryIgnoresDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "x")
	store, err := NewBadgerStoreWithOptions(BadgerOptions{InMemory: true, DataDir: dir})
	require.NoError(t, err)
	defer store.Close()

	assert.True(t, store.IsInMemory())
	mustCreateNode(t, store, []LabelID{labelPerson}, nil)
	assert.Equal(t, int64(1), store.NodeCount())

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "nothing is written to the data dir")
}

func TestBadgerStore_Closed(t *testing.T) {
	store, err := NewBadgerStoreInMemory()
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err = store.Node(0)
	assert.ErrorIs(t, err, ErrStorageClosed)
}

// ============================================================================
// Graph Properties
// ============================================================================

func TestBadgerStore_GraphProperties(t *testing.T) {
	store := createTestStore(t)

	_, ok, err := store.GraphProperty(propName)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Update(func(w *Writer) error {
		if err := w.SetGraphProperty(propName, "social"); err != nil {
			return err
		}
		return w.SetGraphProperty(propAge, 3)
	})
	require.NoError(t, err)

	v, ok, err := store.GraphProperty(propName)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "social", v)

	keys, err := store.GraphPropertyKeys()
	require.NoError(t, err)
	assert.Equal(t, []PropertyKeyID{propName, propAge}, keys)

	_, err = store.Update(func(w *Writer) error { return w.RemoveGraphProperty(propName) })
	require.NoError(t, err)
	keys, err = store.GraphPropertyKeys()
	require.NoError(t, err)
	assert.Equal(t, []PropertyKeyID{propAge}, keys)
}
