package index

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/graphkernel/pkg/storage"
)

const (
	labelPerson storage.LabelID       = 1
	propAge     storage.PropertyKeyID = 1
	propName    storage.PropertyKeyID = 2
)

func setupCatalog(t *testing.T) (*storage.BadgerStore, *Catalog) {
	t.Helper()
	store, err := storage.NewBadgerStoreInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, NewCatalog(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func createPeople(t *testing.T, store *storage.BadgerStore, key storage.PropertyKeyID, values ...any) []storage.EntityID {
	t.Helper()
	ids := make([]storage.EntityID, 0, len(values))
	_, err := store.Update(func(w *storage.Writer) error {
		for _, v := range values {
			id, err := w.CreateNode([]storage.LabelID{labelPerson}, map[storage.PropertyKeyID]any{key: v})
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	require.NoError(t, err)
	return ids
}

func values(t *testing.T, hits Hits) []any {
	t.Helper()
	var out []any
	for e, err := range hits {
		require.NoError(t, err)
		out = append(out, e.Value)
	}
	return out
}

func ptr[T any](v T) *T { return &v }

func TestCatalog_Resolve(t *testing.T) {
	_, catalog := setupCatalog(t)
	schema := storage.NodeIndexSchema(labelPerson, propAge)

	_, err := catalog.Resolve(schema)
	assert.ErrorIs(t, err, ErrIndexNotFound)

	def, err := catalog.Create("person_age", schema, false, storage.NumberValues)
	require.NoError(t, err)

	ix, err := catalog.Resolve(schema)
	require.NoError(t, err)
	assert.Equal(t, def, ix.Definition())
	assert.True(t, ix.Healthy())

	defs, err := catalog.List()
	require.NoError(t, err)
	assert.Len(t, defs, 1)
}

func TestCatalog_MarkFailed(t *testing.T) {
	_, catalog := setupCatalog(t)
	schema := storage.NodeIndexSchema(labelPerson, propAge)

	assert.ErrorIs(t, catalog.MarkFailed(schema, "boom"), ErrIndexNotFound)

	_, err := catalog.Create("person_age", schema, false, storage.AnyValues)
	require.NoError(t, err)
	require.NoError(t, catalog.MarkFailed(schema, "boom"))

	ix, err := catalog.Resolve(schema)
	require.NoError(t, err)
	assert.False(t, ix.Healthy())
	assert.Equal(t, "boom", ix.Definition().Failure)

	require.NoError(t, catalog.MarkOnline(schema))
	ix, err = catalog.Resolve(schema)
	require.NoError(t, err)
	assert.True(t, ix.Healthy())
}

func TestSupports(t *testing.T) {
	tests := []struct {
		valueType storage.IndexValueType
		cap       Capability
		want      bool
	}{
		{storage.AnyValues, CapNumberRange, true},
		{storage.AnyValues, CapSuffix, true},
		{storage.NumberValues, CapExact, true},
		{storage.NumberValues, CapNumberRange, true},
		{storage.NumberValues, CapPrefix, false},
		{storage.NumberValues, CapContains, false},
		{storage.StringValues, CapNumberRange, false},
		{storage.StringValues, CapStringRange, true},
		{storage.StringValues, CapScan, true},
	}
	for _, tt := range tests {
		t.Run(tt.valueType.String()+"/"+tt.cap.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Supports(tt.valueType, tt.cap))
		})
	}
}

func TestIndex_SeekNumberRange(t *testing.T) {
	store, catalog := setupCatalog(t)
	schema := storage.NodeIndexSchema(labelPerson, propAge)
	createPeople(t, store, propAge, 17, 18, 25, 30, 31, "thirty")
	_, err := catalog.Create("person_age", schema, false, storage.AnyValues)
	require.NoError(t, err)
	ix, err := catalog.Resolve(schema)
	require.NoError(t, err)

	tests := []struct {
		name string
		r    NumberRange
		want []any
	}{
		{"half open", NumberRange{Lower: ptr(18.0), IncludeLower: true, Upper: ptr(30.0)}, []any{18.0, 25.0}},
		{"closed", NumberRange{Lower: ptr(18.0), IncludeLower: true, Upper: ptr(30.0), IncludeUpper: true}, []any{18.0, 25.0, 30.0}},
		{"open", NumberRange{Lower: ptr(18.0), Upper: ptr(30.0)}, []any{25.0}},
		{"no lower", NumberRange{Upper: ptr(18.0), IncludeUpper: true}, []any{17.0, 18.0}},
		{"no upper", NumberRange{Lower: ptr(30.0)}, []any{31.0}},
		{"unbounded", NumberRange{}, []any{17.0, 18.0, 25.0, 30.0, 31.0}},
		{"equal bounds inclusive wins", NumberRange{Lower: ptr(25.0), IncludeLower: true, Upper: ptr(25.0)}, []any{25.0}},
		{"equal bounds exclusive", NumberRange{Lower: ptr(25.0), Upper: ptr(25.0)}, nil},
		{"inverted", NumberRange{Lower: ptr(30.0), IncludeLower: true, Upper: ptr(18.0), IncludeUpper: true}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, values(t, ix.SeekNumberRange(tt.r)))
		})
	}
}

func TestIndex_StringSeeks(t *testing.T) {
	store, catalog := setupCatalog(t)
	schema := storage.NodeIndexSchema(labelPerson, propName)
	createPeople(t, store, propName, "Alice", "Alfred", "Bob", "Carol", "Mallory", 42)
	_, err := catalog.Create("person_name", schema, false, storage.AnyValues)
	require.NoError(t, err)
	ix, err := catalog.Resolve(schema)
	require.NoError(t, err)

	assert.Equal(t, []any{"Alfred", "Alice"}, values(t, ix.SeekPrefix("Al")))
	assert.Equal(t, []any{"Bob", "Carol", "Mallory"}, values(t, ix.SeekContains("o")))
	assert.Equal(t, []any{"Mallory"}, values(t, ix.SeekSuffix("ory")))
	assert.Equal(t, []any{"Alice", "Bob"}, values(t, ix.SeekStringRange(StringRange{Lower: ptr("Alice"), IncludeLower: true, Upper: ptr("Bob"), IncludeUpper: true})))
	assert.Equal(t, []any{"Bob", "Carol"}, values(t, ix.SeekStringRange(StringRange{Lower: ptr("Alice"), Upper: ptr("Carol"), IncludeUpper: true})))
	assert.Equal(t, []any{"Mallory"}, values(t, ix.SeekStringRange(StringRange{Lower: ptr("Carol")})))
	assert.Equal(t, []any{"Bob"}, values(t, ix.SeekExact("Bob")))
	assert.Equal(t, []any{42.0}, values(t, ix.SeekExact(42)))
	assert.Len(t, values(t, ix.ScanAll()), 6)
}

func TestIndex_SeekExactRejectedValue(t *testing.T) {
	store, catalog := setupCatalog(t)
	schema := storage.NodeIndexSchema(labelPerson, propName)
	createPeople(t, store, propName, "Alice")
	_, err := catalog.Create("person_name", schema, false, storage.StringValues)
	require.NoError(t, err)
	ix, err := catalog.Resolve(schema)
	require.NoError(t, err)

	assert.Empty(t, values(t, ix.SeekExact(7)))
	assert.False(t, ix.Supports(CapNumberRange))
}

func TestIndex_EarlyBreak(t *testing.T) {
	store, catalog := setupCatalog(t)
	schema := storage.NodeIndexSchema(labelPerson, propAge)
	createPeople(t, store, propAge, 1, 2, 3, 4, 5)
	_, err := catalog.Create("person_age", schema, false, storage.NumberValues)
	require.NoError(t, err)
	ix, err := catalog.Resolve(schema)
	require.NoError(t, err)

	n := 0
	for _, err := range ix.ScanAll() {
		require.NoError(t, err)
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)

	// a new write after an abandoned seek still commits
	createPeople(t, store, propAge, 6)
	assert.Len(t, values(t, ix.ScanAll()), 6)
}
