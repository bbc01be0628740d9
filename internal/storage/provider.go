// Package storage defines the durable key-value abstraction behind the overlay.
package storage

// Provider is the interface for keyed blob persistence.
type Provider interface {
	// Get returns the value stored under key, or an error wrapping apperr.ErrNotFound.
	Get(key string) ([]byte, error)
	// Put durably replaces the value stored under key.
	Put(key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
	// Close releases backend resources.
	Close() error
}
