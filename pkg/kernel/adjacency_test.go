package kernel

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/graphkernel/pkg/storage"
)

// strategies forces the dense path with a threshold of 1 and the sparse path
// with a threshold no test node reaches.
var strategies = []struct {
	name      string
	threshold int
}{
	{"dense", 1},
	{"sparse", 1 << 20},
}

type degrees struct {
	out, in, both      int64
	outT1, outT2, inT2 int64
	types              []storage.RelTypeID
}

func readDegrees(t *testing.T, r *Reader, node storage.EntityID) degrees {
	t.Helper()
	c := r.NodeCursor()
	require.NoError(t, c.Position(node))

	var d degrees
	var err error
	d.out, err = r.Degree(c, storage.Outgoing)
	require.NoError(t, err)
	d.in, err = r.Degree(c, storage.Incoming)
	require.NoError(t, err)
	d.both, err = r.Degree(c, storage.Both)
	require.NoError(t, err)
	d.outT1, err = r.DegreeWithType(c, storage.Outgoing, relT1)
	require.NoError(t, err)
	d.outT2, err = r.DegreeWithType(c, storage.Outgoing, relT2)
	require.NoError(t, err)
	d.inT2, err = r.DegreeWithType(c, storage.Incoming, relT2)
	require.NoError(t, err)
	types, err := r.RelationshipTypes(c)
	require.NoError(t, err)
	d.types = types.Sorted()
	return d
}

// hubGraph builds a node with three outgoing T1 and two incoming T2
// relationships.
func hubGraph(t *testing.T) (*testGraph, storage.EntityID, []storage.EntityID) {
	t.Helper()
	g := newTestGraph(t)
	hub := g.node(t, nil, nil)
	other := g.node(t, nil, nil)
	var rels []storage.EntityID
	for range 3 {
		rels = append(rels, g.rel(t, relT1, hub, other, nil))
	}
	for range 2 {
		rels = append(rels, g.rel(t, relT2, other, hub, nil))
	}
	return g, hub, rels
}

func TestDegree(t *testing.T) {
	for _, s := range strategies {
		t.Run(s.name, func(t *testing.T) {
			g, hub, _ := hubGraph(t)
			m := newMetrics()
			r := g.reader(Options{DenseNodeThreshold: s.threshold, Metrics: m})

			d := readDegrees(t, r, hub)
			assert.Equal(t, degrees{
				out: 3, in: 2, both: 5,
				outT1: 3, outT2: 0, inT2: 2,
				types: []storage.RelTypeID{relT1, relT2},
			}, d)
			assert.Equal(t, 7.0, testutil.ToFloat64(m.DegreeQueries.WithLabelValues(s.name)))
		})
	}
}

func TestDegree_SelfLoop(t *testing.T) {
	for _, s := range strategies {
		t.Run(s.name, func(t *testing.T) {
			g := newTestGraph(t)
			n := g.node(t, nil, nil)
			g.rel(t, relT1, n, n, nil)
			r := g.reader(Options{DenseNodeThreshold: s.threshold})

			d := readDegrees(t, r, n)
			assert.Equal(t, int64(1), d.out)
			assert.Equal(t, int64(1), d.in)
			assert.Equal(t, int64(2), d.both)
			assert.Equal(t, []storage.RelTypeID{relT1}, d.types)
		})
	}
}

func TestDegree_NoRelationships(t *testing.T) {
	for _, s := range strategies {
		t.Run(s.name, func(t *testing.T) {
			g := newTestGraph(t)
			n := g.node(t, nil, nil)
			d := readDegrees(t, g.reader(Options{DenseNodeThreshold: s.threshold}), n)
			assert.Equal(t, degrees{}, d)
		})
	}
}

func TestDegree_StrategiesAgreeUnderOlderSnapshot(t *testing.T) {
	g, hub, rels := hubGraph(t)
	before := g.store.Snapshot()

	// change the hub after the snapshot: drop one of each type, add a new type
	g.update(t, func(w *storage.Writer) error {
		if err := w.DeleteRelationship(rels[0]); err != nil {
			return err
		}
		return w.DeleteRelationship(rels[3])
	})
	other := g.node(t, nil, nil)
	g.rel(t, 3, hub, other, nil)

	want := degrees{
		out: 3, in: 2, both: 5,
		outT1: 3, outT2: 0, inT2: 2,
		types: []storage.RelTypeID{relT1, relT2},
	}
	for _, s := range strategies {
		t.Run(s.name+" old", func(t *testing.T) {
			assert.Equal(t, want, readDegrees(t, g.readerAt(before, Options{DenseNodeThreshold: s.threshold}), hub))
		})
		t.Run(s.name+" current", func(t *testing.T) {
			assert.Equal(t, degrees{
				out: 3, in: 1, both: 4,
				outT1: 2, outT2: 0, inT2: 1,
				types: []storage.RelTypeID{relT1, relT2, 3},
			}, readDegrees(t, g.reader(Options{DenseNodeThreshold: s.threshold}), hub))
		})
	}
}

func TestDegree_TypeVanishes(t *testing.T) {
	for _, s := range strategies {
		t.Run(s.name, func(t *testing.T) {
			g := newTestGraph(t)
			a := g.node(t, nil, nil)
			b := g.node(t, nil, nil)
			g.rel(t, relT1, a, b, nil)
			drop := g.rel(t, relT2, a, b, nil)
			g.update(t, func(w *storage.Writer) error { return w.DeleteRelationship(drop) })

			d := readDegrees(t, g.reader(Options{DenseNodeThreshold: s.threshold}), a)
			assert.Equal(t, []storage.RelTypeID{relT1}, d.types)
			assert.Equal(t, int64(1), d.out)
		})
	}
}

func TestDegree_CursorState(t *testing.T) {
	g, hub, _ := hubGraph(t)
	r := g.reader()
	c := r.NodeCursor()

	_, err := r.Degree(c, storage.Outgoing)
	assert.ErrorIs(t, err, ErrCursorUnbound)
	_, err = r.RelationshipTypes(c)
	assert.ErrorIs(t, err, ErrCursorUnbound)

	require.NoError(t, c.Position(hub))
	_, err = r.Degree(c, storage.Direction(0))
	assert.ErrorIs(t, err, ErrIllegalState)
}
