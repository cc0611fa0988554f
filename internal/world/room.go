package world

import "time"

// RoomSchemaVersion is the current on-disk shape of RoomRecord.
//
// v1: no lock state.
// v2: Locked flag for player housing.
const RoomSchemaVersion = 2

// RoomRecord is a persisted room. The economy engine never mutates rooms;
// they are stored here because they share the migration and key scheme with
// the other world records.
type RoomRecord struct {
	ID        string            `json:"id"`
	Owner     Owner             `json:"owner"`
	Name      string            `json:"name"`
	ShortDesc string            `json:"short_desc"`
	LongDesc  string            `json:"long_desc"`
	Exits     map[string]string `json:"exits,omitempty"`
	Locked    bool              `json:"locked"`
	CreatedAt time.Time         `json:"created_at"`

	SchemaVersion int `json:"schema_version"`
}

// NewWorldRoom creates a world-owned room at the current schema version.
func NewWorldRoom(id, name, shortDesc, longDesc string, now time.Time) RoomRecord {
	return RoomRecord{
		ID:            id,
		Owner:         WorldOwner(),
		Name:          name,
		ShortDesc:     shortDesc,
		LongDesc:      longDesc,
		CreatedAt:     now.UTC(),
		SchemaVersion: RoomSchemaVersion,
	}
}
