// Package world defines the persisted record types of the mesh world: players,
// rooms, objects, shops, and ledger entries, plus the dual currency model.
//
// Every record carries an explicit schema version. Records handed to callers
// are always at the current version; the migrate subpackage upgrades older
// shapes on read.
package world
