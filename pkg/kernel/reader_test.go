package kernel

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orneryd/graphkernel/pkg/index"
	"github.com/orneryd/graphkernel/pkg/metrics"
	"github.com/orneryd/graphkernel/pkg/storage"
)

const (
	labelPerson  storage.LabelID       = 1
	labelCompany storage.LabelID       = 2
	relT1        storage.RelTypeID     = 1
	relT2        storage.RelTypeID     = 2
	propAge      storage.PropertyKeyID = 1
	propName     storage.PropertyKeyID = 2
	propEmail    storage.PropertyKeyID = 3
)

// testGraph bundles a store and catalog for read path tests.
type testGraph struct {
	store   *storage.BadgerStore
	catalog *index.Catalog
}

func newTestGraph(t *testing.T) *testGraph {
	t.Helper()
	store, err := storage.NewBadgerStoreInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return &testGraph{store: store, catalog: index.NewCatalog(store, quietLogger())}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (g *testGraph) update(t *testing.T, fn func(w *storage.Writer) error) uint64 {
	t.Helper()
	seq, err := g.store.Update(fn)
	require.NoError(t, err)
	return seq
}

func (g *testGraph) node(t *testing.T, labels []storage.LabelID, props map[storage.PropertyKeyID]any) storage.EntityID {
	t.Helper()
	var id storage.EntityID
	g.update(t, func(w *storage.Writer) error {
		var err error
		id, err = w.CreateNode(labels, props)
		return err
	})
	return id
}

func (g *testGraph) rel(t *testing.T, relType storage.RelTypeID, start, end storage.EntityID, props map[storage.PropertyKeyID]any) storage.EntityID {
	t.Helper()
	var id storage.EntityID
	g.update(t, func(w *storage.Writer) error {
		var err error
		id, err = w.CreateRelationship(relType, start, end, props)
		return err
	})
	return id
}

func (g *testGraph) index(t *testing.T, name string, schema storage.IndexSchema, unique bool, valueType storage.IndexValueType) {
	t.Helper()
	_, err := g.catalog.Create(name, schema, unique, valueType)
	require.NoError(t, err)
}

// reader returns a reader over the latest commit.
func (g *testGraph) reader(opts ...Options) *Reader {
	return g.readerAt(g.store.Snapshot(), opts...)
}

func (g *testGraph) readerAt(snapshot storage.Snapshot, opts ...Options) *Reader {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.Logger == nil {
		o.Logger = quietLogger()
	}
	return NewReader(g.store, g.catalog, NewStatement(snapshot), o)
}

func collect(t *testing.T, s *IDSequence) []storage.EntityID {
	t.Helper()
	ids, err := s.Collect()
	require.NoError(t, err)
	return ids
}

func newMetrics() *metrics.Metrics {
	return metrics.New("test", nil)
}
