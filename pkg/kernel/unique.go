package kernel

import (
	"fmt"

	"github.com/orneryd/graphkernel/pkg/storage"
)

// SeekUnique looks up the single entity holding value in a uniqueness
// constrained index. found is false when no visible entity holds it.
//
// More than one visible match means the constraint is broken in storage;
// that is reported as ErrConstraintViolation and never reduced to a pick.
func (r *Reader) SeekUnique(schema storage.IndexSchema, value any) (id storage.EntityID, found bool, err error) {
	pred := Exact(value)
	if err := pred.Validate(); err != nil {
		return storage.NoEntity, false, r.fail(err)
	}
	ix, err := r.resolve(schema)
	if err != nil {
		return storage.NoEntity, false, r.fail(err)
	}
	def := ix.Definition()
	if !def.Unique {
		return storage.NoEntity, false, r.fail(fmt.Errorf("%w: index %s is not unique", ErrUnsupportedSeek, def.Name))
	}
	r.metrics.ObserveSeek("unique")

	id = storage.NoEntity
	for hit, err := range r.matching(schema, pred, ix.SeekExact(value)) {
		if err != nil {
			return storage.NoEntity, false, err
		}
		if found {
			r.log.Error("uniqueness constraint violated",
				"index", def.Name, "value", value, "first", id, "second", hit)
			return storage.NoEntity, false, r.fail(fmt.Errorf("%w: index %s holds entities %d and %d for value %v",
				ErrConstraintViolation, def.Name, id, hit, value))
		}
		id, found = hit, true
	}
	return id, found, nil
}

// CountIndexed counts the live entries of the index over schema that
// associate value with entity id. The count reflects committed index state,
// not the statement snapshot; a healthy index yields 0 or 1. An entry only
// counts when the committed record still holds a value equal to value, since
// distinct numbers can share one index key.
func (r *Reader) CountIndexed(schema storage.IndexSchema, id storage.EntityID, value any) (int64, error) {
	pred := Exact(value)
	if err := pred.Validate(); err != nil {
		return 0, r.fail(err)
	}
	ix, err := r.resolve(schema)
	if err != nil {
		return 0, r.fail(err)
	}
	var n int64
	for e, err := range ix.SeekExact(value) {
		if err != nil {
			return 0, r.fail(err)
		}
		if e.Entity != id || !e.Version.Live() {
			continue
		}
		ok, err := r.recordMatches(schema, id, pred, storage.Version.Live)
		if err != nil {
			return 0, r.fail(err)
		}
		if ok {
			n++
		}
	}
	return n, nil
}
