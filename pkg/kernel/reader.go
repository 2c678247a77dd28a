// Package kernel is the read path between query execution and storage.
//
// A Reader answers point lookups, scans, index seeks, unique lookups and
// degree queries under one Statement. Every record it hands out has been
// checked against the statement's snapshot; multi-result reads come back as
// lazy single-pass IDSequences.
package kernel

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/orneryd/graphkernel/pkg/config"
	"github.com/orneryd/graphkernel/pkg/index"
	"github.com/orneryd/graphkernel/pkg/metrics"
	"github.com/orneryd/graphkernel/pkg/storage"
)

// EntityStore is the storage surface the read path consumes.
type EntityStore interface {
	Node(id storage.EntityID) (*storage.NodeRecord, error)
	Relationship(id storage.EntityID) (*storage.RelationshipRecord, error)
	ScanNodes() iter.Seq2[*storage.NodeRecord, error]
	ScanRelationships() iter.Seq2[*storage.RelationshipRecord, error]
	LabelScan(label storage.LabelID) iter.Seq2[storage.EntityID, error]

	Adjacency(node storage.EntityID, dir storage.Direction) iter.Seq2[storage.AdjacencyEntry, error]
	GroupChain(g storage.RelationshipGroup) iter.Seq2[storage.AdjacencyEntry, error]
	RelationshipGroups(node storage.EntityID) ([]storage.RelationshipGroup, error)

	GraphProperty(key storage.PropertyKeyID) (any, bool, error)
	GraphPropertyKeys() ([]storage.PropertyKeyID, error)
}

// IndexCatalog resolves a schema to an index.
type IndexCatalog interface {
	Resolve(schema storage.IndexSchema) (index.Reader, error)
}

var (
	_ EntityStore  = (*storage.BadgerStore)(nil)
	_ IndexCatalog = (*index.Catalog)(nil)
)

// Options tune a Reader. The zero value is usable.
type Options struct {
	// DenseNodeThreshold is the degree hint at which degree queries switch
	// from walking adjacency chains to reading group summaries.
	DenseNodeThreshold int
	Logger             *slog.Logger
	Metrics            *metrics.Metrics
}

// Reader is the read facade for one statement. It is not safe for
// concurrent use; give each goroutine its own Reader.
type Reader struct {
	store   EntityStore
	catalog IndexCatalog
	stmt    *Statement
	dense   int64
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewReader creates a Reader over store and catalog for stmt.
func NewReader(store EntityStore, catalog IndexCatalog, stmt *Statement, opts Options) *Reader {
	threshold := opts.DenseNodeThreshold
	if threshold <= 0 {
		threshold = config.DefaultDenseNodeThreshold
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{
		store:   store,
		catalog: catalog,
		stmt:    stmt,
		dense:   int64(threshold),
		log:     logger.With("component", "kernel", "statement", stmt.ID().String()),
		metrics: opts.Metrics,
	}
}

// Statement returns the statement the reader works under.
func (r *Reader) Statement() *Statement { return r.stmt }

func (r *Reader) visible(v storage.Version) bool {
	return r.stmt.Snapshot().Visible(v)
}

// fail records err in metrics and returns it.
func (r *Reader) fail(err error) error {
	if err != nil {
		r.metrics.ObserveError(KindOf(err).String())
	}
	return err
}

// visibleNode loads a node and checks it against the snapshot.
func (r *Reader) visibleNode(id storage.EntityID) (*storage.NodeRecord, error) {
	node, err := r.store.Node(id)
	if missingRecord(err) {
		return nil, fmt.Errorf("node %d: %w", id, ErrEntityNotFound)
	}
	if err != nil {
		return nil, err
	}
	if !r.visible(node.Version) {
		return nil, fmt.Errorf("node %d: %w", id, ErrEntityNotFound)
	}
	return node, nil
}

// visibleRelationship loads a relationship and checks it against the snapshot.
func (r *Reader) visibleRelationship(id storage.EntityID) (*storage.RelationshipRecord, error) {
	rel, err := r.store.Relationship(id)
	if missingRecord(err) {
		return nil, fmt.Errorf("relationship %d: %w", id, ErrEntityNotFound)
	}
	if err != nil {
		return nil, err
	}
	if !r.visible(rel.Version) {
		return nil, fmt.Errorf("relationship %d: %w", id, ErrEntityNotFound)
	}
	return rel, nil
}

// resolve maps a schema to a healthy index.
func (r *Reader) resolve(schema storage.IndexSchema) (index.Reader, error) {
	ix, err := r.catalog.Resolve(schema)
	if errors.Is(err, index.ErrIndexNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, schema)
	}
	if err != nil {
		return nil, err
	}
	if !ix.Healthy() {
		def := ix.Definition()
		r.log.Warn("index unavailable", "index", def.Name, "schema", schema.String(), "failure", def.Failure)
		return nil, fmt.Errorf("%w: %s (%s)", ErrIndexBroken, def.Name, def.Failure)
	}
	return ix, nil
}
