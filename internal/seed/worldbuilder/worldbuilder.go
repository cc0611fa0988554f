// Package worldbuilder generates fantasy-flavored names and descriptions
// for seeding a world database with diverse demo data.
package worldbuilder

import (
	"fmt"
	"math/rand"
	"strings"
)

// WorldBuilder generates names and descriptions for demo world records.
type WorldBuilder struct {
	rng *rand.Rand
}

// New creates a WorldBuilder with the given random source.
func New(rng *rand.Rand) *WorldBuilder {
	return &WorldBuilder{rng: rng}
}

// RoomName generates a place name like "The Jade Grove".
func (w *WorldBuilder) RoomName() string {
	adj := placeAdjectives[w.rng.Intn(len(placeAdjectives))]
	noun := placeNouns[w.rng.Intn(len(placeNouns))]
	return fmt.Sprintf("The %s %s", adj, noun)
}

// RoomDescription generates a long room description.
func (w *WorldBuilder) RoomDescription() string {
	return roomDescriptions[w.rng.Intn(len(roomDescriptions))]
}

// ObjectName generates an item name like "Ashen Lantern".
func (w *WorldBuilder) ObjectName() string {
	material := objectMaterials[w.rng.Intn(len(objectMaterials))]
	kind := objectKinds[w.rng.Intn(len(objectKinds))]
	return fmt.Sprintf("%s %s", material, kind)
}

// ObjectDescription generates a short item description.
func (w *WorldBuilder) ObjectDescription() string {
	return objectDescriptions[w.rng.Intn(len(objectDescriptions))]
}

// ShopName generates a vendor name like "Okonkwo's Curiosities".
func (w *WorldBuilder) ShopName() string {
	owner := surnames[w.rng.Intn(len(surnames))]
	trade := shopTrades[w.rng.Intn(len(shopTrades))]
	return fmt.Sprintf("%s's %s", owner, trade)
}

// Username generates a lowercase login name like "priya".
func (w *WorldBuilder) Username() string {
	return strings.ToLower(usernames[w.rng.Intn(len(usernames))])
}

// DisplayName generates a culturally diverse character name.
func (w *WorldBuilder) DisplayName() string {
	first := firstNames[w.rng.Intn(len(firstNames))]
	last := surnames[w.rng.Intn(len(surnames))]
	return fmt.Sprintf("%s %s", first, last)
}
