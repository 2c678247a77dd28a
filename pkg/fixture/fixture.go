// Package fixture loads YAML graph descriptions into a storage.BadgerStore.
//
// A fixture names its tokens once and refers to them by name everywhere else:
//
//	tokens:
//	  labels: {Person: 1}
//	  relationship_types: {KNOWS: 1}
//	  property_keys: {name: 1, age: 2}
//	nodes:
//	  - key: alice
//	    labels: [Person]
//	    properties: {name: Alice, age: 30}
//	relationships:
//	  - {type: KNOWS, start: alice, end: alice}
//	indexes:
//	  - {name: person_age, label: Person, property: age, value_type: number}
//
// Nodes and relationships are created first, then indexes are populated, and
// finally entries marked deleted are removed, each step in its own commit, so
// the store ends up with tombstones older snapshots can still see.
package fixture

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/orneryd/graphkernel/pkg/storage"
)

// ErrInvalidFixture is returned for fixtures that reference unknown tokens or
// keys, or carry values the store cannot hold.
var ErrInvalidFixture = errors.New("invalid fixture")

// Fixture is the YAML document.
type Fixture struct {
	Tokens          Tokens         `yaml:"tokens"`
	Nodes           []Node         `yaml:"nodes"`
	Relationships   []Relationship `yaml:"relationships"`
	Indexes         []Index        `yaml:"indexes"`
	GraphProperties map[string]any `yaml:"graph_properties"`
}

// Tokens maps token names to ids.
type Tokens struct {
	Labels            map[string]storage.LabelID       `yaml:"labels"`
	RelationshipTypes map[string]storage.RelTypeID     `yaml:"relationship_types"`
	PropertyKeys      map[string]storage.PropertyKeyID `yaml:"property_keys"`
}

// Node describes one node.
type Node struct {
	Key        string         `yaml:"key"`
	Labels     []string       `yaml:"labels"`
	Properties map[string]any `yaml:"properties"`
	Deleted    bool           `yaml:"deleted"`
}

// Relationship describes one relationship between two node keys.
type Relationship struct {
	Key        string         `yaml:"key"`
	Type       string         `yaml:"type"`
	Start      string         `yaml:"start"`
	End        string         `yaml:"end"`
	Properties map[string]any `yaml:"properties"`
	Deleted    bool           `yaml:"deleted"`
}

// Index describes one secondary index. Exactly one of Label and
// RelationshipType is set. A non-empty Failed marks the index failed.
type Index struct {
	Name             string `yaml:"name"`
	Label            string `yaml:"label"`
	RelationshipType string `yaml:"relationship_type"`
	Property         string `yaml:"property"`
	Unique           bool   `yaml:"unique"`
	ValueType        string `yaml:"value_type"`
	Failed           string `yaml:"failed"`
}

// Result maps fixture keys to the ids the store allocated.
type Result struct {
	Nodes         map[string]storage.EntityID
	Relationships map[string]storage.EntityID
	Indexes       map[string]storage.IndexDefinition
	// Sequence is the last commit made by the load.
	Sequence uint64
}

// Parse decodes a fixture document.
func Parse(r io.Reader) (*Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	return &f, nil
}

// LoadFile parses the fixture at path and loads it into store.
func LoadFile(store *storage.BadgerStore, path string, logger *slog.Logger) (*Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixture: %w", err)
	}
	defer file.Close()

	f, err := Parse(file)
	if err != nil {
		return nil, err
	}
	return f.Load(store, logger)
}

// Load writes the fixture into store.
func (f *Fixture) Load(store *storage.BadgerStore, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "fixture")

	if err := f.Validate(); err != nil {
		return nil, err
	}

	res := &Result{
		Nodes:         make(map[string]storage.EntityID, len(f.Nodes)),
		Relationships: make(map[string]storage.EntityID, len(f.Relationships)),
		Indexes:       make(map[string]storage.IndexDefinition, len(f.Indexes)),
	}

	steps := []struct {
		name string
		fn   func(w *storage.Writer) error
	}{
		{"entities", func(w *storage.Writer) error { return f.createEntities(w, res) }},
		{"indexes", func(w *storage.Writer) error { return f.createIndexes(w, res) }},
		{"deletes", func(w *storage.Writer) error { return f.applyDeletes(w, res) }},
	}
	for _, step := range steps {
		seq, err := store.Update(step.fn)
		if err != nil {
			return nil, fmt.Errorf("fixture %s: %w", step.name, err)
		}
		res.Sequence = seq
		log.Debug("fixture step committed", "step", step.name, "sequence", seq)
	}

	log.Info("fixture loaded",
		"nodes", len(res.Nodes),
		"relationships", len(res.Relationships),
		"indexes", len(res.Indexes),
		"sequence", res.Sequence)
	return res, nil
}

// Validate checks every token, key and value reference without writing.
func (f *Fixture) Validate() error {
	nodes := make(map[string]bool, len(f.Nodes))
	for i, n := range f.Nodes {
		key := nodeKey(n, i)
		if nodes[key] {
			return fmt.Errorf("%w: duplicate node key %q", ErrInvalidFixture, key)
		}
		nodes[key] = true
		if _, err := f.labels(n.Labels); err != nil {
			return err
		}
		if _, err := f.properties(n.Properties); err != nil {
			return fmt.Errorf("node %q: %w", key, err)
		}
	}

	rels := make(map[string]bool, len(f.Relationships))
	for i, r := range f.Relationships {
		key := relationshipKey(r, i)
		if rels[key] {
			return fmt.Errorf("%w: duplicate relationship key %q", ErrInvalidFixture, key)
		}
		rels[key] = true
		if _, ok := f.Tokens.RelationshipTypes[r.Type]; !ok {
			return fmt.Errorf("%w: unknown relationship type %q", ErrInvalidFixture, r.Type)
		}
		if !nodes[r.Start] {
			return fmt.Errorf("%w: relationship %q: unknown start node %q", ErrInvalidFixture, key, r.Start)
		}
		if !nodes[r.End] {
			return fmt.Errorf("%w: relationship %q: unknown end node %q", ErrInvalidFixture, key, r.End)
		}
		if _, err := f.properties(r.Properties); err != nil {
			return fmt.Errorf("relationship %q: %w", key, err)
		}
	}

	for _, ix := range f.Indexes {
		if _, err := f.schema(ix); err != nil {
			return err
		}
		if _, err := storage.ParseIndexValueType(ix.ValueType); err != nil {
			return fmt.Errorf("%w: index %q: %v", ErrInvalidFixture, ix.Name, err)
		}
	}

	for name, v := range f.GraphProperties {
		if _, ok := f.Tokens.PropertyKeys[name]; !ok {
			return fmt.Errorf("%w: unknown property key %q", ErrInvalidFixture, name)
		}
		if !scalar(v) {
			return fmt.Errorf("%w: graph property %q has unsupported value %v (%T)", ErrInvalidFixture, name, v, v)
		}
	}
	return nil
}

func nodeKey(n Node, i int) string {
	if n.Key != "" {
		return n.Key
	}
	return fmt.Sprintf("node-%d", i)
}

func relationshipKey(r Relationship, i int) string {
	if r.Key != "" {
		return r.Key
	}
	return fmt.Sprintf("rel-%d", i)
}

func (f *Fixture) createEntities(w *storage.Writer, res *Result) error {
	for i, n := range f.Nodes {
		labels, err := f.labels(n.Labels)
		if err != nil {
			return err
		}
		props, err := f.properties(n.Properties)
		if err != nil {
			return err
		}
		id, err := w.CreateNode(labels, props)
		if err != nil {
			return err
		}
		res.Nodes[nodeKey(n, i)] = id
	}

	for i, r := range f.Relationships {
		props, err := f.properties(r.Properties)
		if err != nil {
			return err
		}
		relType := f.Tokens.RelationshipTypes[r.Type]
		id, err := w.CreateRelationship(relType, res.Nodes[r.Start], res.Nodes[r.End], props)
		if err != nil {
			return err
		}
		res.Relationships[relationshipKey(r, i)] = id
	}

	for name, v := range f.GraphProperties {
		if err := w.SetGraphProperty(f.Tokens.PropertyKeys[name], v); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fixture) createIndexes(w *storage.Writer, res *Result) error {
	for _, ix := range f.Indexes {
		schema, err := f.schema(ix)
		if err != nil {
			return err
		}
		valueType, err := storage.ParseIndexValueType(ix.ValueType)
		if err != nil {
			return err
		}
		def, err := w.CreateIndex(ix.Name, schema, ix.Unique, valueType)
		if err != nil {
			return err
		}
		if ix.Failed != "" {
			if err := w.SetIndexState(def.ID, storage.IndexFailed, ix.Failed); err != nil {
				return err
			}
			def.State, def.Failure = storage.IndexFailed, ix.Failed
		}
		res.Indexes[ix.Name] = def
	}
	return nil
}

func (f *Fixture) applyDeletes(w *storage.Writer, res *Result) error {
	for i, r := range f.Relationships {
		if !r.Deleted {
			continue
		}
		key := relationshipKey(r, i)
		if err := w.DeleteRelationship(res.Relationships[key]); err != nil {
			return fmt.Errorf("delete relationship %q: %w", key, err)
		}
	}
	for i, n := range f.Nodes {
		if !n.Deleted {
			continue
		}
		key := nodeKey(n, i)
		if err := w.DeleteNode(res.Nodes[key]); err != nil {
			return fmt.Errorf("delete node %q: %w", key, err)
		}
	}
	return nil
}

func (f *Fixture) labels(names []string) ([]storage.LabelID, error) {
	labels := make([]storage.LabelID, 0, len(names))
	for _, name := range names {
		id, ok := f.Tokens.Labels[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown label %q", ErrInvalidFixture, name)
		}
		labels = append(labels, id)
	}
	return labels, nil
}

func (f *Fixture) properties(in map[string]any) (map[storage.PropertyKeyID]any, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[storage.PropertyKeyID]any, len(in))
	for name, v := range in {
		key, ok := f.Tokens.PropertyKeys[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown property key %q", ErrInvalidFixture, name)
		}
		if !scalar(v) {
			return nil, fmt.Errorf("%w: property %q has unsupported value %v (%T)", ErrInvalidFixture, name, v, v)
		}
		out[key] = v
	}
	return out, nil
}

// scalar reports whether v is one of the value kinds YAML decodes scalars to.
func scalar(v any) bool {
	switch v.(type) {
	case bool, string, int, float64:
		return true
	default:
		return false
	}
}

func (f *Fixture) schema(ix Index) (storage.IndexSchema, error) {
	prop, ok := f.Tokens.PropertyKeys[ix.Property]
	if !ok {
		return storage.IndexSchema{}, fmt.Errorf("%w: index %q: unknown property key %q", ErrInvalidFixture, ix.Name, ix.Property)
	}
	switch {
	case ix.Label != "" && ix.RelationshipType == "":
		label, ok := f.Tokens.Labels[ix.Label]
		if !ok {
			return storage.IndexSchema{}, fmt.Errorf("%w: index %q: unknown label %q", ErrInvalidFixture, ix.Name, ix.Label)
		}
		return storage.NodeIndexSchema(label, prop), nil
	case ix.RelationshipType != "" && ix.Label == "":
		relType, ok := f.Tokens.RelationshipTypes[ix.RelationshipType]
		if !ok {
			return storage.IndexSchema{}, fmt.Errorf("%w: index %q: unknown relationship type %q", ErrInvalidFixture, ix.Name, ix.RelationshipType)
		}
		return storage.RelationshipIndexSchema(relType, prop), nil
	default:
		return storage.IndexSchema{}, fmt.Errorf("%w: index %q needs exactly one of label and relationship_type", ErrInvalidFixture, ix.Name)
	}
}
