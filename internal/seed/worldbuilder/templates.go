package worldbuilder

// Room descriptions for generated locations.
var roomDescriptions = []string{
	"Lantern light pools on worn flagstones, and the murmur of distant haggling drifts through the air.",
	"A crooked signpost leans at the center, its painted arrows pointing to places no one remembers.",
	"Moss creeps up the old stone walls here, and water drips somewhere out of sight.",
	"Market stalls crowd both sides of the path, their awnings faded by years of sun and rain.",
	"The air smells of woodsmoke and tanned leather, and a forge rings steadily nearby.",
	"Tall shelves of salvaged goods lean against each other, sorted by some logic only the owner knows.",
	"A cold draft moves through this place, carrying the faint smell of salt and tar.",
	"Sunlight filters through a broken roof, lighting drifting dust above the packed-earth floor.",
	"Traders argue quietly over a table of spread-out maps while porters weave between them.",
	"The remains of an older building frame this space, its carved lintels repurposed as benches.",
}

// Object descriptions for generated items.
var objectDescriptions = []string{
	"Dented and well-traveled, but still serviceable.",
	"Etched with a maker's mark no local trader recognizes.",
	"Heavier than it looks, and cold to the touch.",
	"The grip is worn smooth by a previous owner's hands.",
	"It hums faintly when held near running water.",
	"A practical piece, built to outlast its buyer.",
	"Traded up from the coast, or so the seller claimed.",
	"Small enough to pocket, dear enough to miss.",
	"The lacquer has chipped, revealing older paint beneath.",
	"Sturdy work from an unhurried craftsman.",
}
