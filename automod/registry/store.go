package registry

import "sync/atomic"

// Store holds the current snapshot. Load is wait-free; Replace swaps the
// whole snapshot atomically, so a request in flight keeps the view it
// started with.
type Store struct {
	current atomic.Pointer[Snapshot]
}

func NewStore(snap *Snapshot) *Store {
	s := &Store{}
	s.current.Store(snap)
	return s
}

func (s *Store) Load() *Snapshot { return s.current.Load() }

func (s *Store) Replace(snap *Snapshot) { s.current.Store(snap) }
