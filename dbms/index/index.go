// Package index defines the byte-oriented store interface shared by the
// embedded B+ tree engine and the baseline engines it is evaluated
// against.
package index

// Store is the common interface for all engines under evaluation.
type Store interface {
	// Put inserts or updates the value for key.
	Put(key, value []byte) error

	// Get retrieves the value for key. Returns nil, nil when the key
	// is absent.
	Get(key []byte) ([]byte, error)

	// Close cleanly shuts the engine down.
	Close() error
}
