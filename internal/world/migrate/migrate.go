// Package migrate upgrades persisted world records across schema versions.
//
// Each record type has a Descriptor naming its current version and a chain
// of pure upgrade-by-one-version steps. Records are decoded tolerantly
// (missing newer fields take their zero defaults) and stepped forward until
// they reach the current version. A record already at the current version
// passes through unchanged, so migration is idempotent.
package migrate

import (
	"encoding/json"
	"fmt"

	"github.com/louisbranch/meshmush/internal/storage"
)

// Step upgrades a record by exactly one schema version. Steps are pure: they
// return the upgraded record and must set its new version tag.
type Step[T any] func(T) (T, error)

// Descriptor describes how one record type migrates. Runners are built from
// explicit descriptors rather than package-level registries so tests can
// construct their own chains.
type Descriptor[T any] struct {
	// Type names the record type in errors and telemetry.
	Type string
	// Current is the schema version this binary writes.
	Current int
	// Version reads a record's stored version tag.
	Version func(T) int
	// Steps maps a from-version to the step that upgrades past it.
	Steps map[int]Step[T]
}

// LoadAndMigrate decodes raw bytes into a record and upgrades it to the
// descriptor's current version. It reports whether any step ran, so the
// caller can persist the upgraded form and make the cost at-most-once per
// record. Undecodable bytes and future versions yield a
// *storage.CorruptRecordError carrying the key and raw bytes.
func LoadAndMigrate[T any](raw []byte, key string, d Descriptor[T]) (T, bool, error) {
	var record T
	if err := json.Unmarshal(raw, &record); err != nil {
		return record, false, &storage.CorruptRecordError{
			RecordType: d.Type,
			Key:        key,
			Raw:        raw,
			Err:        fmt.Errorf("decode: %w", err),
		}
	}
	migrated, wasMigrated, err := Apply(record, key, d)
	return migrated, wasMigrated, err
}

// Apply runs the descriptor's step chain on an already-decoded record.
func Apply[T any](record T, key string, d Descriptor[T]) (T, bool, error) {
	version := d.Version(record)
	if version > d.Current {
		raw, _ := json.Marshal(record)
		return record, false, &storage.CorruptRecordError{
			RecordType: d.Type,
			Key:        key,
			Raw:        raw,
			Err:        fmt.Errorf("schema version %d is ahead of current %d", version, d.Current),
		}
	}

	migrated := false
	for version < d.Current {
		step, ok := d.Steps[version]
		if !ok {
			return record, migrated, fmt.Errorf("%s %q: no step registered from version %d", d.Type, key, version)
		}
		next, err := step(record)
		if err != nil {
			return record, migrated, fmt.Errorf("%s %q: step from version %d: %w", d.Type, key, version, err)
		}
		nextVersion := d.Version(next)
		if nextVersion != version+1 {
			return record, migrated, fmt.Errorf("%s %q: step from version %d produced version %d", d.Type, key, version, nextVersion)
		}
		record = next
		version = nextVersion
		migrated = true
	}
	return record, migrated, nil
}
