// Package storage defines the persistence interfaces for the world store.
//
// It provides a high-level abstraction for storing players, rooms, objects,
// shops, the transaction ledger, and ephemeral trade sessions.
// Implementations of these interfaces (e.g., using bbolt) can be found in
// subpackages.
//
// # Error Types
//
// The package defines common error types used across storage implementations:
//   - ErrNotFound: Indicates a requested record is missing.
//   - CorruptRecordError: Preserves the key and raw bytes of an undecodable
//     record for operator inspection.
package storage
