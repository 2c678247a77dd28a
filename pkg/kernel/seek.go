package kernel

import (
	"errors"
	"fmt"
	"iter"

	"github.com/orneryd/graphkernel/pkg/index"
	"github.com/orneryd/graphkernel/pkg/storage"
)

// Seek returns the ids of entities matching pred through the index built
// over schema. Resolution and capability problems are reported here, before
// anything is read; an unsupported predicate is never answered by a scan.
//
// Every yielded id is visible in the statement snapshot and its current
// property value satisfies pred. For FullScan the order is unspecified; all
// other seeks come back in index order.
func (r *Reader) Seek(schema storage.IndexSchema, pred SeekPredicate) (*IDSequence, error) {
	if err := pred.Validate(); err != nil {
		return nil, r.fail(err)
	}
	ix, err := r.resolve(schema)
	if err != nil {
		return nil, r.fail(err)
	}
	if !ix.Supports(pred.capability()) {
		def := ix.Definition()
		return nil, r.fail(fmt.Errorf("%w: index %s over %s values cannot answer %s",
			ErrUnsupportedSeek, def.Name, def.ValueType, pred))
	}
	r.metrics.ObserveSeek(pred.Kind().String())
	r.log.Debug("index seek", "index", ix.Definition().Name, "predicate", pred.String())
	return newSequence(r.matching(schema, pred, dispatch(ix, pred))), nil
}

func dispatch(ix index.Reader, pred SeekPredicate) index.Hits {
	switch pred.kind {
	case PredicateExact:
		return ix.SeekExact(pred.value)
	case PredicateNumericRange:
		return ix.SeekNumberRange(pred.numberRange())
	case PredicateStringRange:
		return ix.SeekStringRange(pred.stringRange())
	case PredicatePrefix:
		return ix.SeekPrefix(pred.text)
	case PredicateContains:
		return ix.SeekContains(pred.text)
	case PredicateEndsWith:
		return ix.SeekSuffix(pred.text)
	case PredicateFullScan:
		return ix.ScanAll()
	default:
		panic(fmt.Sprintf("kernel: unhandled predicate kind %d", pred.kind))
	}
}

// matching filters raw index hits down to entities that are visible and
// still hold a value satisfying pred.
func (r *Reader) matching(schema storage.IndexSchema, pred SeekPredicate, hits index.Hits) iter.Seq2[storage.EntityID, error] {
	return func(yield func(storage.EntityID, error) bool) {
		for e, err := range hits {
			if err != nil {
				yield(storage.NoEntity, r.fail(err))
				return
			}
			if !r.visible(e.Version) {
				continue
			}
			ok, err := r.entityMatches(schema, e.Entity, pred)
			if err != nil {
				yield(storage.NoEntity, r.fail(err))
				return
			}
			if ok && !yield(e.Entity, nil) {
				return
			}
		}
	}
}

func (r *Reader) entityMatches(schema storage.IndexSchema, id storage.EntityID, pred SeekPredicate) (bool, error) {
	return r.recordMatches(schema, id, pred, r.visible)
}

// recordMatches reports whether the stored record of id passes accept,
// carries the schema's label or type, and holds a property value satisfying
// pred. Missing records do not match.
func (r *Reader) recordMatches(schema storage.IndexSchema, id storage.EntityID, pred SeekPredicate, accept func(storage.Version) bool) (bool, error) {
	var props map[storage.PropertyKeyID]any
	switch schema.Entity {
	case storage.NodeEntity:
		node, err := r.store.Node(id)
		if missingRecord(err) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if !accept(node.Version) || !node.HasLabel(storage.LabelID(schema.Token)) {
			return false, nil
		}
		props = node.Properties
	case storage.RelationshipEntity:
		rel, err := r.store.Relationship(id)
		if missingRecord(err) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if !accept(rel.Version) || rel.Type != storage.RelTypeID(schema.Token) {
			return false, nil
		}
		props = rel.Properties
	default:
		return false, fmt.Errorf("%w: schema entity %s", ErrIllegalState, schema.Entity)
	}
	v, ok := props[schema.Property]
	return ok && pred.Matches(v), nil
}

func missingRecord(err error) bool {
	return errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidID)
}
