package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indexEntries(t *testing.T, store *BadgerStore, id uint32) []IndexEntry {
	t.Helper()
	var out []IndexEntry
	for e, err := range store.IndexEntries(id, nil, nil) {
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

func TestWriter_CreateIndexBackfills(t *testing.T) {
	store := createTestStore(t)

	alice := mustCreateNode(t, store, []LabelID{labelPerson}, map[PropertyKeyID]any{propAge: 30})
	bob := mustCreateNode(t, store, []LabelID{labelPerson}, map[PropertyKeyID]any{propAge: 25})
	mustCreateNode(t, store, []LabelID{labelPerson}, nil)                                  // no property
	mustCreateNode(t, store, []LabelID{labelCompany}, map[PropertyKeyID]any{propAge: 99}) // wrong label

	var def IndexDefinition
	_, err := store.Update(func(w *Writer) error {
		var err error
		def, err = w.CreateIndex("person_age", NodeIndexSchema(labelPerson, propAge), false, AnyValues)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), def.ID)
	assert.Equal(t, IndexOnline, def.State)

	entries := indexEntries(t, store, def.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, bob, entries[0].Entity, "entries come back in value order")
	assert.Equal(t, 25.0, entries[0].Value)
	assert.Equal(t, alice, entries[1].Entity)

	aliceNode, err := store.Node(alice)
	require.NoError(t, err)
	assert.Equal(t, aliceNode.Version, entries[1].Version, "backfilled entries carry the entity version")
}

func TestWriter_CreateIndexTwice(t *testing.T) {
	store := createTestStore(t)
	schema := NodeIndexSchema(labelPerson, propName)

	_, err := store.Update(func(w *Writer) error {
		_, err := w.CreateIndex("a", schema, false, AnyValues)
		return err
	})
	require.NoError(t, err)

	_, err = store.Update(func(w *Writer) error {
		_, err := w.CreateIndex("b", schema, false, AnyValues)
		return err
	})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestWriter_IndexMaintenance(t *testing.T) {
	store := createTestStore(t)

	var def IndexDefinition
	_, err := store.Update(func(w *Writer) error {
		var err error
		def, err = w.CreateIndex("person_name", NodeIndexSchema(labelPerson, propName), false, StringValues)
		return err
	})
	require.NoError(t, err)

	alice := mustCreateNode(t, store, []LabelID{labelPerson}, map[PropertyKeyID]any{propName: "Alice"})
	mustCreateNode(t, store, []LabelID{labelPerson}, map[PropertyKeyID]any{propName: 7}) // not a string

	entries := indexEntries(t, store, def.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, "Alice", entries[0].Value)
	assert.True(t, entries[0].Version.Live())

	seq, err := store.Update(func(w *Writer) error { return w.DeleteNode(alice) })
	require.NoError(t, err)

	entries = indexEntries(t, store, def.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, seq, entries[0].Version.Deleted)
}

func TestWriter_RelationshipIndex(t *testing.T) {
	store := createTestStore(t)

	var def IndexDefinition
	_, err := store.Update(func(w *Writer) error {
		var err error
		def, err = w.CreateIndex("knows_since", RelationshipIndexSchema(relKnows, propAge), false, NumberValues)
		return err
	})
	require.NoError(t, err)

	a := mustCreateNode(t, store, nil, nil)
	b := mustCreateNode(t, store, nil, nil)
	var rel EntityID
	_, err = store.Update(func(w *Writer) error {
		var err error
		rel, err = w.CreateRelationship(relKnows, a, b, map[PropertyKeyID]any{propAge: 2020})
		return err
	})
	require.NoError(t, err)

	entries := indexEntries(t, store, def.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, rel, entries[0].Entity)
	assert.Equal(t, 2020.0, entries[0].Value)
}

func TestWriter_SetIndexState(t *testing.T) {
	store := createTestStore(t)

	var def IndexDefinition
	_, err := store.Update(func(w *Writer) error {
		var err error
		def, err = w.CreateIndex("person_name", NodeIndexSchema(labelPerson, propName), true, AnyValues)
		return err
	})
	require.NoError(t, err)

	_, err = store.Update(func(w *Writer) error { return w.SetIndexState(def.ID, IndexFailed, "population aborted") })
	require.NoError(t, err)

	got, err := store.IndexDefinitionByID(def.ID)
	require.NoError(t, err)
	assert.Equal(t, IndexFailed, got.State)
	assert.Equal(t, "population aborted", got.Failure)
	assert.True(t, got.Unique)

	_, err = store.Update(func(w *Writer) error { return w.SetIndexState(def.ID, IndexOnline, "ignored") })
	require.NoError(t, err)
	got, err = store.IndexDefinitionFor(def.Schema)
	require.NoError(t, err)
	assert.Equal(t, IndexOnline, got.State)
	assert.Empty(t, got.Failure)

	_, err = store.IndexDefinitionFor(NodeIndexSchema(labelCompany, propName))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWriter_UniqueIndexAllowsDuplicates(t *testing.T) {
	store := createTestStore(t)

	var def IndexDefinition
	_, err := store.Update(func(w *Writer) error {
		var err error
		def, err = w.CreateIndex("person_name", NodeIndexSchema(labelPerson, propName), true, AnyValues)
		return err
	})
	require.NoError(t, err)

	mustCreateNode(t, store, []LabelID{labelPerson}, map[PropertyKeyID]any{propName: "dup"})
	mustCreateNode(t, store, []LabelID{labelPerson}, map[PropertyKeyID]any{propName: "dup"})

	hits, err := store.ExactIndexEntries(def.ID, "dup")
	require.NoError(t, err)
	n := 0
	for _, err := range hits {
		require.NoError(t, err)
		n++
	}
	assert.Equal(t, 2, n)
}
