// Package storage provides the entity store consumed by the graphkernel read path.
//
// BadgerStore keeps graph records in BadgerDB. Reads go through lazily
// evaluated iterators so that callers can stop consuming at any point.
package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
)

// Key prefixes for BadgerDB storage organization.
// Using single-byte prefixes for efficiency.
const (
	prefixNode         = byte(0x01) // node:nodeID -> NodeRecord
	prefixRelationship = byte(0x02) // rel:relID -> RelationshipRecord
	prefixLabelIndex   = byte(0x03) // label:labelID:nodeID -> empty
	prefixAdjacency    = byte(0x04) // adj:nodeID:dir:type:relID -> empty
	prefixGroup        = byte(0x05) // group:nodeID:type:dir -> RelationshipGroup
	prefixIndexEntry   = byte(0x06) // idx:indexID:value:entityID -> Version
	prefixIndexDef     = byte(0x07) // idxdef:indexID -> IndexDefinition
	prefixGraphProp    = byte(0x08) // graph:keyID -> value
	prefixMeta         = byte(0x09) // meta:name -> uint64
)

var (
	metaLastCommit = []byte{prefixMeta, 'c'}
	metaNextNode   = []byte{prefixMeta, 'n'}
	metaNextRel    = []byte{prefixMeta, 'r'}
	metaNextIndex  = []byte{prefixMeta, 'i'}
)

// BadgerStore provides persistent graph storage using BadgerDB.
//
// Key Structure:
//   - Nodes: 0x01 + nodeID -> gob(NodeRecord)
//   - Relationships: 0x02 + relID -> gob(RelationshipRecord)
//   - Label Index: 0x03 + labelID + nodeID -> empty
//   - Adjacency: 0x04 + nodeID + direction + typeID + relID -> empty
//   - Groups: 0x05 + nodeID + typeID + direction -> gob(RelationshipGroup)
//   - Index Entries: 0x06 + indexID + encoded value + entityID -> Version
//
// All ids are big-endian, so prefix iteration returns entities in id order.
//
// Thread Safety:
//
//	Reads are safe for concurrent use. Writes are serialized by Update.
type BadgerStore struct {
	db       *badger.DB
	mu       sync.RWMutex // protects closed
	closed   bool
	inMemory bool
	log      *slog.Logger

	writeMu    sync.Mutex // serializes Update so commit sequences are dense
	lastCommit atomic.Uint64

	// Cached counts of live entities as of the last commit.
	nodeCount atomic.Int64
	relCount  atomic.Int64

	prefetchSize int
}

// BadgerOptions configures the BadgerDB store.
type BadgerOptions struct {
	// DataDir is the directory for storing data files.
	// Required unless InMemory is set.
	DataDir string

	// InMemory runs BadgerDB in memory-only mode and ignores DataDir.
	// Useful for testing. Data is not persisted.
	InMemory bool

	// SyncWrites forces fsync after each write.
	SyncWrites bool

	// LowMemory reduces memtable and cache sizes.
	LowMemory bool

	// PrefetchSize is the value prefetch window used by record scans.
	// Zero keeps Badger's default.
	PrefetchSize int

	// Logger receives store diagnostics and BadgerDB's internal log output.
	// Defaults to slog.Default().
	Logger *slog.Logger
}

// NewBadgerStore opens a persistent store in dataDir with default settings.
func NewBadgerStore(dataDir string) (*BadgerStore, error) {
	return NewBadgerStoreWithOptions(BadgerOptions{DataDir: dataDir})
}

// NewBadgerStoreInMemory creates an in-memory store for testing.
//
// Data is not persisted and is lost when the store is closed.
func NewBadgerStoreInMemory() (*BadgerStore, error) {
	return NewBadgerStoreWithOptions(BadgerOptions{InMemory: true})
}

// NewBadgerStoreWithOptions opens a store with custom configuration.
func NewBadgerStoreWithOptions(opts BadgerOptions) (*BadgerStore, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "storage")

	// Badger rejects a directory in memory-only mode.
	dir := opts.DataDir
	if opts.InMemory {
		dir = ""
	}
	badgerOpts := badger.DefaultOptions(dir).WithInMemory(opts.InMemory)
	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}
	badgerOpts = badgerOpts.WithLogger(&badgerLogger{log: logger})

	if opts.LowMemory {
		badgerOpts = badgerOpts.
			WithMemTableSize(8 << 20).
			WithNumMemtables(1).
			WithNumLevelZeroTables(1).
			WithNumLevelZeroTablesStall(2).
			WithBlockCacheSize(8 << 20).
			WithIndexCacheSize(4 << 20)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	store := &BadgerStore{
		db:           db,
		inMemory:     opts.InMemory,
		log:          logger,
		prefetchSize: opts.PrefetchSize,
	}

	// Initialize cached counts by scanning existing data (one-time cost)
	if err := store.initializeCounts(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize counts: %w", err)
	}

	return store, nil
}

// IsInMemory returns true if the store is running in memory-only mode.
func (b *BadgerStore) IsInMemory() bool {
	return b.inMemory
}

// Close closes the underlying database. Further calls return ErrStorageClosed.
func (b *BadgerStore) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}

// LastCommitted returns the sequence of the most recent commit.
func (b *BadgerStore) LastCommitted() uint64 {
	return b.lastCommit.Load()
}

// Snapshot returns a snapshot that sees every commit so far.
func (b *BadgerStore) Snapshot() SequenceSnapshot {
	return SequenceSnapshot(b.lastCommit.Load())
}

// NodeCount returns the number of live nodes as of the last commit.
func (b *BadgerStore) NodeCount() int64 {
	return b.nodeCount.Load()
}

// RelationshipCount returns the number of live relationships as of the last commit.
func (b *BadgerStore) RelationshipCount() int64 {
	return b.relCount.Load()
}

// initializeCounts loads the commit sequence and scans records once to seed
// the cached counts.
func (b *BadgerStore) initializeCounts() error {
	var nodes, rels int64
	err := b.db.View(func(txn *badger.Txn) error {
		seq, err := readMeta(txn, metaLastCommit)
		if err != nil {
			return err
		}
		b.lastCommit.Store(seq)

		for _, p := range []byte{prefixNode, prefixRelationship} {
			it := txn.NewIterator(recordScan([]byte{p}, b.prefetchSize))
			for it.Rewind(); it.Valid(); it.Next() {
				var v Version
				err := it.Item().Value(func(val []byte) error {
					var decodeErr error
					v, decodeErr = decodeVersionOnly(p, val)
					return decodeErr
				})
				if err != nil {
					it.Close()
					return err
				}
				if !v.Live() {
					continue
				}
				if p == prefixNode {
					nodes++
				} else {
					rels++
				}
			}
			it.Close()
		}
		return nil
	})
	if err != nil {
		return err
	}
	b.nodeCount.Store(nodes)
	b.relCount.Store(rels)
	return nil
}

func decodeVersionOnly(prefix byte, val []byte) (Version, error) {
	if prefix == prefixNode {
		n, err := decodeNode(val)
		if err != nil {
			return Version{}, err
		}
		return n.Version, nil
	}
	r, err := decodeRelationship(val)
	if err != nil {
		return Version{}, err
	}
	return r.Version, nil
}

// ============================================================================
// Key encoding helpers
// ============================================================================

func appendID(dst []byte, id EntityID) []byte {
	return binary.BigEndian.AppendUint64(dst, uint64(id))
}

func appendToken(dst []byte, token int32) []byte {
	return binary.BigEndian.AppendUint32(dst, uint32(token))
}

func readID(b []byte) EntityID {
	return EntityID(binary.BigEndian.Uint64(b))
}

// nodeKey creates a key for storing a node.
func nodeKey(id EntityID) []byte {
	return appendID([]byte{prefixNode}, id)
}

// relationshipKey creates a key for storing a relationship.
func relationshipKey(id EntityID) []byte {
	return appendID([]byte{prefixRelationship}, id)
}

// labelIndexKey creates a key for the label index.
// Format: prefix + labelID + nodeID
func labelIndexKey(label LabelID, nodeID EntityID) []byte {
	key := make([]byte, 0, 1+4+8)
	key = append(key, prefixLabelIndex)
	key = appendToken(key, int32(label))
	return appendID(key, nodeID)
}

// labelIndexPrefix returns the prefix for scanning all nodes with a label.
func labelIndexPrefix(label LabelID) []byte {
	return appendToken([]byte{prefixLabelIndex}, int32(label))
}

// adjacencyKey creates a key in a node's relationship chain.
// Format: prefix + nodeID + direction + typeID + relID
func adjacencyKey(e AdjacencyEntry) []byte {
	key := make([]byte, 0, 1+8+1+4+8)
	key = append(key, prefixAdjacency)
	key = appendID(key, e.Node)
	key = append(key, byte(e.Direction))
	key = appendToken(key, int32(e.Type))
	return appendID(key, e.Relationship)
}

// adjacencyPrefix returns the prefix of a node's whole chain.
func adjacencyPrefix(nodeID EntityID) []byte {
	return appendID([]byte{prefixAdjacency}, nodeID)
}

// adjacencyDirectionPrefix returns the prefix of one direction of a node's chain.
func adjacencyDirectionPrefix(nodeID EntityID, dir Direction) []byte {
	return append(adjacencyPrefix(nodeID), byte(dir))
}

// adjacencyGroupPrefix returns the prefix of one (direction, type) group chain.
func adjacencyGroupPrefix(nodeID EntityID, dir Direction, relType RelTypeID) []byte {
	return appendToken(adjacencyDirectionPrefix(nodeID, dir), int32(relType))
}

func decodeAdjacencyKey(key []byte) (AdjacencyEntry, error) {
	if len(key) != 1+8+1+4+8 || key[0] != prefixAdjacency {
		return AdjacencyEntry{}, fmt.Errorf("%w: malformed adjacency key", ErrInvalidData)
	}
	return AdjacencyEntry{
		Node:         readID(key[1:9]),
		Direction:    Direction(key[9]),
		Type:         RelTypeID(int32(binary.BigEndian.Uint32(key[10:14]))),
		Relationship: readID(key[14:22]),
	}, nil
}

// groupKey creates the key of a relationship group summary.
// Format: prefix + nodeID + typeID + direction
func groupKey(nodeID EntityID, relType RelTypeID, dir Direction) []byte {
	key := make([]byte, 0, 1+8+4+1)
	key = append(key, prefixGroup)
	key = appendID(key, nodeID)
	key = appendToken(key, int32(relType))
	return append(key, byte(dir))
}

func groupPrefix(nodeID EntityID) []byte {
	return appendID([]byte{prefixGroup}, nodeID)
}

func indexDefKey(id uint32) []byte {
	return binary.BigEndian.AppendUint32([]byte{prefixIndexDef}, id)
}

// indexPrefix returns the prefix of every entry of one index.
func indexPrefix(id uint32) []byte {
	return binary.BigEndian.AppendUint32([]byte{prefixIndexEntry}, id)
}

// indexEntryKey creates a key for a secondary index entry.
// Format: prefix + indexID + encoded value + entityID
func indexEntryKey(id uint32, value any, entity EntityID) ([]byte, error) {
	key, err := appendIndexValue(indexPrefix(id), value)
	if err != nil {
		return nil, err
	}
	return appendID(key, entity), nil
}

func decodeIndexEntryKey(key []byte) (any, EntityID, error) {
	if len(key) < 1+4+8+2 {
		return nil, NoEntity, fmt.Errorf("%w: short index key", ErrInvalidData)
	}
	value, rest, err := decodeIndexValue(key[5:])
	if err != nil {
		return nil, NoEntity, err
	}
	if len(rest) != 8 {
		return nil, NoEntity, fmt.Errorf("%w: malformed index key", ErrInvalidData)
	}
	return value, readID(rest), nil
}

func graphPropKey(key PropertyKeyID) []byte {
	return appendToken([]byte{prefixGraphProp}, int32(key))
}

// ============================================================================
// Serialization helpers
// ============================================================================

// encodeNode serializes a NodeRecord using gob (preserves Go types like int64).
func encodeNode(n *NodeRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(n); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeNode deserializes a NodeRecord from gob.
func decodeNode(data []byte) (*NodeRecord, error) {
	var node NodeRecord
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&node); err != nil {
		return nil, err
	}
	return &node, nil
}

// encodeRelationship serializes a RelationshipRecord using gob.
func encodeRelationship(r *RelationshipRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeRelationship deserializes a RelationshipRecord from gob.
func decodeRelationship(data []byte) (*RelationshipRecord, error) {
	var rel RelationshipRecord
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rel); err != nil {
		return nil, err
	}
	return &rel, nil
}

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func encodeVersion(v Version) []byte {
	out := make([]byte, 16)
	binary.BigEndian.PutUint64(out[:8], v.Created)
	binary.BigEndian.PutUint64(out[8:], v.Deleted)
	return out
}

func decodeVersion(b []byte) (Version, error) {
	if len(b) != 16 {
		return Version{}, fmt.Errorf("%w: version length %d", ErrInvalidData, len(b))
	}
	return Version{
		Created: binary.BigEndian.Uint64(b[:8]),
		Deleted: binary.BigEndian.Uint64(b[8:]),
	}, nil
}

func readMeta(txn *badger.Txn, key []byte) (uint64, error) {
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var v uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("%w: meta value length %d", ErrInvalidData, len(val))
		}
		v = binary.BigEndian.Uint64(val)
		return nil
	})
	return v, err
}

func writeMeta(txn *badger.Txn, key []byte, v uint64) error {
	return txn.Set(key, binary.BigEndian.AppendUint64(nil, v))
}
