// Package store holds the relationship state produced by the relationship
// tracker: edges between norms and the vigency status of each norm. The
// engine receives a Store as a collaborator; MemStore serves single runs and
// tests, SQLiteStore durable corpus-wide state.
package store

import (
	"fmt"
	"sync"

	"github.com/laguileracl/leychile-epub/pkg/norma"
)

// EdgeKind classifies a relationship between two norms.
type EdgeKind string

const (
	KindDerogates EdgeKind = "deroga"
	KindModifies  EdgeKind = "modifica"
	KindCites     EdgeKind = "cita"
)

// Edge is one directed relationship from a source norm to a target norm.
// Detail carries the triggering text fragment.
type Edge struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Kind   EdgeKind `json:"kind"`
	Detail string   `json:"detail,omitempty"`
}

// VigencyRecord is the stored legal-force status of a norm.
type VigencyRecord struct {
	NormID string             `json:"norm_id"`
	State  norma.VigencyState `json:"state"`
	Note   string             `json:"note,omitempty"`
}

// Store persists relationship edges and vigency records. Implementations
// must be safe for concurrent use and idempotent: re-adding an existing
// (source, target, kind) edge is a no-op, re-upserting a vigency overwrites.
type Store interface {
	// AddEdge records an edge. Duplicate (source, target, kind) triples are
	// ignored.
	AddEdge(e Edge) error

	// Edges returns all edges originating at the source, in insertion order.
	Edges(source string) ([]Edge, error)

	// AllEdges returns every stored edge.
	AllEdges() ([]Edge, error)

	// UpsertVigency sets the vigency state of a norm.
	UpsertVigency(rec VigencyRecord) error

	// Vigency returns the vigency record of a norm, reporting whether one
	// exists.
	Vigency(normID string) (VigencyRecord, bool, error)

	// Close releases resources.
	Close() error
}

// MemStore is an in-memory Store guarded by a RWMutex.
type MemStore struct {
	mu      sync.RWMutex
	edges   []Edge
	edgeSet map[string]bool
	vigency map[string]VigencyRecord
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		edgeSet: make(map[string]bool),
		vigency: make(map[string]VigencyRecord),
	}
}

func edgeKey(e Edge) string {
	return e.Source + "\x00" + e.Target + "\x00" + string(e.Kind)
}

// AddEdge records an edge, ignoring exact duplicates.
func (s *MemStore) AddEdge(e Edge) error {
	if e.Source == "" || e.Target == "" || e.Kind == "" {
		return fmt.Errorf("edge requires source, target and kind")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := edgeKey(e)
	if s.edgeSet[key] {
		return nil
	}
	s.edgeSet[key] = true
	s.edges = append(s.edges, e)
	return nil
}

// Edges returns all edges originating at the source.
func (s *MemStore) Edges(source string) ([]Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Edge
	for _, e := range s.edges {
		if e.Source == source {
			out = append(out, e)
		}
	}
	return out, nil
}

// AllEdges returns every stored edge in insertion order.
func (s *MemStore) AllEdges() ([]Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Edge, len(s.edges))
	copy(out, s.edges)
	return out, nil
}

// UpsertVigency sets the vigency state of a norm, overwriting any previous
// record.
func (s *MemStore) UpsertVigency(rec VigencyRecord) error {
	if rec.NormID == "" {
		return fmt.Errorf("vigency record requires a norm ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.vigency[rec.NormID] = rec
	return nil
}

// Vigency returns the vigency record of a norm.
func (s *MemStore) Vigency(normID string) (VigencyRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.vigency[normID]
	return rec, ok, nil
}

// Close is a no-op for the in-memory store.
func (s *MemStore) Close() error {
	return nil
}
