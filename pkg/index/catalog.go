package index

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/orneryd/graphkernel/pkg/storage"
)

// Catalog maps index schemas to Index handles. Resolution reads the stored
// definition at call time, so a dropped or failed index is noticed by the
// next Resolve.
type Catalog struct {
	store *storage.BadgerStore
	log   *slog.Logger
}

// NewCatalog creates a catalog over the indexes stored in store.
func NewCatalog(store *storage.BadgerStore, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{store: store, log: logger.With("component", "index")}
}

// Resolve returns the index built over schema, or ErrIndexNotFound.
func (c *Catalog) Resolve(schema storage.IndexSchema) (Reader, error) {
	def, err := c.store.IndexDefinitionFor(schema)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, schema)
	}
	if err != nil {
		return nil, err
	}
	return &Index{store: c.store, def: def}, nil
}

// List returns every index definition.
func (c *Catalog) List() ([]storage.IndexDefinition, error) {
	return c.store.IndexDefinitions()
}

// Create defines a new index over schema and populates it.
func (c *Catalog) Create(name string, schema storage.IndexSchema, unique bool, valueType storage.IndexValueType) (storage.IndexDefinition, error) {
	var def storage.IndexDefinition
	_, err := c.store.Update(func(w *storage.Writer) error {
		var err error
		def, err = w.CreateIndex(name, schema, unique, valueType)
		return err
	})
	if err != nil {
		return storage.IndexDefinition{}, err
	}
	c.log.Info("index created", "name", name, "schema", schema.String(), "unique", unique, "value_type", valueType.String())
	return def, nil
}

// MarkFailed puts the index over schema into the failed state.
func (c *Catalog) MarkFailed(schema storage.IndexSchema, reason string) error {
	return c.setState(schema, storage.IndexFailed, reason)
}

// MarkOnline clears a failed state.
func (c *Catalog) MarkOnline(schema storage.IndexSchema) error {
	return c.setState(schema, storage.IndexOnline, "")
}

func (c *Catalog) setState(schema storage.IndexSchema, state storage.IndexState, reason string) error {
	def, err := c.store.IndexDefinitionFor(schema)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, schema)
	}
	if err != nil {
		return err
	}
	_, err = c.store.Update(func(w *storage.Writer) error {
		return w.SetIndexState(def.ID, state, reason)
	})
	if err != nil {
		return err
	}
	c.log.Warn("index state changed", "name", def.Name, "state", state.String(), "reason", reason)
	return nil
}
