package world

import "time"

// ObjectSchemaVersion is the current on-disk shape of ObjectRecord.
//
// v1: integer Value field.
// v2: Value folded into the tagged CurrencyValue amount.
const ObjectSchemaVersion = 2

// OwnerKind distinguishes world-owned records from player-owned ones. The
// owner determines the record's key prefix, so per-owner range scans stay
// ordered.
type OwnerKind string

const (
	// OwnerWorld marks a record owned by the world itself.
	OwnerWorld OwnerKind = "world"
	// OwnerPlayer marks a record owned by a named player.
	OwnerPlayer OwnerKind = "player"
)

// Owner identifies who owns a room or object.
type Owner struct {
	Kind OwnerKind `json:"kind"`
	// Username is set only when Kind is OwnerPlayer.
	Username string `json:"username,omitempty"`
}

// WorldOwner returns the world owner.
func WorldOwner() Owner { return Owner{Kind: OwnerWorld} }

// PlayerOwner returns an owner for the named player.
func PlayerOwner(username string) Owner {
	return Owner{Kind: OwnerPlayer, Username: username}
}

// ObjectRecord is a persisted world object. The economy engine only reads
// objects, except that item transfers move ownership of player-owned copies.
type ObjectRecord struct {
	ID          string    `json:"id"`
	Owner       Owner     `json:"owner"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Weight      uint8     `json:"weight"`
	Takeable    bool      `json:"takeable"`
	CreatedAt   time.Time `json:"created_at"`

	CurrencyValue CurrencyAmount `json:"currency_value"`

	// Deprecated: pre-v2 integer value, folded into CurrencyValue by
	// migration.
	Value uint32 `json:"value,omitempty"`

	SchemaVersion int `json:"schema_version"`
}

// NewWorldObject creates a world-owned object at the current schema version.
func NewWorldObject(id, name, description string, now time.Time) ObjectRecord {
	return ObjectRecord{
		ID:            id,
		Owner:         WorldOwner(),
		Name:          name,
		Description:   description,
		Takeable:      true,
		CreatedAt:     now.UTC(),
		SchemaVersion: ObjectSchemaVersion,
	}
}
