package krotov

// StateSequence is a mutable, indexable container of propagated states, one
// per time-grid point.
type StateSequence interface {
	Len() int
	Get(i int) State
	Set(i int, s State)
}

// Storage allocates state sequences. Implementations may keep states in
// memory or page them out for large problems.
type Storage interface {
	Allocate(n int) StateSequence
}

// MemoryStorage keeps all states in a dense in-memory slice. It is the
// default storage.
type MemoryStorage struct{}

// Allocate returns an empty in-memory sequence of length n.
func (MemoryStorage) Allocate(n int) StateSequence {
	return make(memorySequence, n)
}

type memorySequence []State

func (s memorySequence) Len() int           { return len(s) }
func (s memorySequence) Get(i int) State    { return s[i] }
func (s memorySequence) Set(i int, v State) { s[i] = v }
