package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/graphkernel/pkg/storage"
)

func emailGraph(t *testing.T, emails ...string) (*testGraph, []storage.EntityID) {
	t.Helper()
	g := newTestGraph(t)
	g.index(t, "person_email", storage.NodeIndexSchema(labelPerson, propEmail), true, storage.StringValues)
	var ids []storage.EntityID
	for _, e := range emails {
		ids = append(ids, g.node(t, []storage.LabelID{labelPerson}, map[storage.PropertyKeyID]any{propEmail: e}))
	}
	return g, ids
}

func TestSeekUnique(t *testing.T) {
	schema := storage.NodeIndexSchema(labelPerson, propEmail)

	t.Run("no match", func(t *testing.T) {
		g, _ := emailGraph(t, "a@example.com")
		id, found, err := g.reader().SeekUnique(schema, "z@example.com")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Equal(t, storage.NoEntity, id)
	})

	t.Run("one match", func(t *testing.T) {
		g, ids := emailGraph(t, "a@example.com", "b@example.com")
		id, found, err := g.reader().SeekUnique(schema, "b@example.com")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, ids[1], id)
	})

	t.Run("duplicate is a constraint violation", func(t *testing.T) {
		g, _ := emailGraph(t, "a@example.com", "a@example.com")
		m := newMetrics()
		_, found, err := g.reader(Options{Metrics: m}).SeekUnique(schema, "a@example.com")
		assert.ErrorIs(t, err, ErrConstraintViolation)
		assert.Equal(t, KindConstraintViolation, KindOf(err))
		assert.False(t, found)
	})

	t.Run("deleted duplicate is not a violation", func(t *testing.T) {
		g, ids := emailGraph(t, "a@example.com", "a@example.com")
		g.update(t, func(w *storage.Writer) error { return w.DeleteNode(ids[0]) })
		id, found, err := g.reader().SeekUnique(schema, "a@example.com")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, ids[1], id)
	})

	t.Run("broken index", func(t *testing.T) {
		g, _ := emailGraph(t, "a@example.com")
		require.NoError(t, g.catalog.MarkFailed(schema, "corrupt"))
		_, _, err := g.reader().SeekUnique(schema, "a@example.com")
		assert.ErrorIs(t, err, ErrIndexBroken)
	})

	t.Run("missing index", func(t *testing.T) {
		g, _ := emailGraph(t)
		_, _, err := g.reader().SeekUnique(storage.NodeIndexSchema(labelCompany, propEmail), "x")
		assert.ErrorIs(t, err, ErrIndexNotFound)
	})

	t.Run("non unique index", func(t *testing.T) {
		g, _ := agesGraph(t)
		_, _, err := g.reader().SeekUnique(storage.NodeIndexSchema(labelPerson, propAge), 18)
		assert.ErrorIs(t, err, ErrUnsupportedSeek)
	})
}

func TestCountIndexed(t *testing.T) {
	schema := storage.NodeIndexSchema(labelPerson, propEmail)
	g, ids := emailGraph(t, "a@example.com", "a@example.com", "b@example.com")
	r := g.reader()

	n, err := r.CountIndexed(schema, ids[0], "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = r.CountIndexed(schema, ids[2], "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	g.update(t, func(w *storage.Writer) error { return w.DeleteNode(ids[0]) })
	n, err = r.CountIndexed(schema, ids[0], "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "counts reflect committed index state")

	_, err = r.CountIndexed(storage.NodeIndexSchema(labelCompany, propEmail), ids[0], "a@example.com")
	assert.ErrorIs(t, err, ErrIndexNotFound)
}

func TestSeekUnique_LargeIntegersSharingAKey(t *testing.T) {
	const base = int64(1) << 53 // 2^53 and 2^53+1 have the same float64 form
	g := newTestGraph(t)
	schema := storage.NodeIndexSchema(labelPerson, propAge)
	g.index(t, "person_uid", schema, true, storage.NumberValues)
	a := g.node(t, []storage.LabelID{labelPerson}, map[storage.PropertyKeyID]any{propAge: base})
	b := g.node(t, []storage.LabelID{labelPerson}, map[storage.PropertyKeyID]any{propAge: base + 1})
	r := g.reader()

	id, found, err := r.SeekUnique(schema, base+1)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, b, id)

	id, found, err = r.SeekUnique(schema, base)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, a, id)

	n, err := r.CountIndexed(schema, a, base+1)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = r.CountIndexed(schema, a, base)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
