// Package prefs persists the client's non-secret state as a flat key/value
// store of JSON documents. Three backends exist: a JSON file (default), a
// SQLite database and an in-memory store for tests and throwaway clients.
package prefs

import "encoding/json"

// Store is the persistence contract the client works against. Values are
// JSON-marshaled on Set and unmarshaled into out on Get. Implementations
// must be safe for concurrent use.
type Store interface {
	// Get unmarshals the value stored under key into out. Returns false
	// when the key is absent.
	Get(key string, out any) (bool, error)

	// Set marshals value and stores it under key.
	Set(key string, value any) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(key string) error

	// Keys lists all stored keys, sorted.
	Keys() ([]string, error)

	// Dump returns a copy of the whole store, for diagnostics snapshots.
	Dump() (map[string]json.RawMessage, error)

	// Close releases the backend. The store must not be used afterwards.
	Close() error
}

// GetString is a convenience for string-valued keys.
func GetString(s Store, key string) (string, error) {
	var v string
	if _, err := s.Get(key, &v); err != nil {
		return "", err
	}
	return v, nil
}

// GetInt64 is a convenience for integer-valued keys.
func GetInt64(s Store, key string) (int64, error) {
	var v int64
	if _, err := s.Get(key, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// GetStringSlice is a convenience for list-valued keys. Absent keys yield
// an empty slice.
func GetStringSlice(s Store, key string) ([]string, error) {
	var v []string
	if _, err := s.Get(key, &v); err != nil {
		return nil, err
	}
	return v, nil
}
