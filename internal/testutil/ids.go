// Package testutil holds fixtures shared by the bridge's package tests:
// deterministic request ids, on-disk projects, and a fake resolver worker.
package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDs generates numbered request ids: prefix-1, prefix-2, ...
//
// Unlike the production UUIDv7 generator, two runs of the same test see
// identical ids. Safe for concurrent use.
type SequenceIDs struct {
	mu     sync.Mutex
	prefix string
	seq    int64
}

// NewSequenceIDs creates a generator whose first id is prefix-1.
// An empty prefix selects "req".
func NewSequenceIDs(prefix string) *SequenceIDs {
	if prefix == "" {
		prefix = "req"
	}
	return &SequenceIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequenceIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%d", g.prefix, g.seq)
}

// Issued returns how many ids have been generated.
func (g *SequenceIDs) Issued() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

// Reset restarts the sequence at prefix-1.
func (g *SequenceIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
