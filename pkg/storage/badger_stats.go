package storage

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
)

// Stats summarizes the store as of the last commit.
type Stats struct {
	Nodes         int64
	Relationships int64
	LastCommit    uint64
	// LSMSize and VLogSize are Badger's on-disk table and value log sizes.
	LSMSize  int64
	VLogSize int64
}

// Stats returns live entity counts and storage sizes.
func (b *BadgerStore) Stats() (Stats, error) {
	if err := b.ensureOpen(); err != nil {
		return Stats{}, err
	}
	lsm, vlog := b.db.Size()
	return Stats{
		Nodes:         b.nodeCount.Load(),
		Relationships: b.relCount.Load(),
		LastCommit:    b.lastCommit.Load(),
		LSMSize:       lsm,
		VLogSize:      vlog,
	}, nil
}

// Sync flushes pending writes to disk.
func (b *BadgerStore) Sync() error {
	if err := b.ensureOpen(); err != nil {
		return err
	}
	if b.inMemory {
		return nil
	}
	return b.db.Sync()
}

// RunGC runs one round of value log garbage collection. Nothing to collect
// is not an error.
func (b *BadgerStore) RunGC() error {
	if err := b.ensureOpen(); err != nil {
		return err
	}
	if b.inMemory {
		return nil
	}
	err := b.db.RunValueLogGC(0.5)
	if errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return err
}
