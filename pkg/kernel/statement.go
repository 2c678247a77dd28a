package kernel

import (
	"github.com/google/uuid"

	"github.com/orneryd/graphkernel/pkg/storage"
)

// Statement is the transaction context a Reader works under. It fixes the
// visibility filter for every read made through the Reader.
type Statement struct {
	id       uuid.UUID
	snapshot storage.Snapshot
}

// NewStatement creates a statement reading through snapshot.
func NewStatement(snapshot storage.Snapshot) *Statement {
	return &Statement{id: uuid.New(), snapshot: snapshot}
}

// ID identifies the statement in logs.
func (s *Statement) ID() uuid.UUID { return s.id }

// Snapshot returns the statement's visibility filter.
func (s *Statement) Snapshot() storage.Snapshot { return s.snapshot }
