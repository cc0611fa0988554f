package worldbuilder

// Place name components - adjective + noun combinations.
var placeAdjectives = []string{
	"Crimson", "Forgotten", "Shattered", "Eternal", "Hollow",
	"Burning", "Silent", "Lost", "Golden", "Jade",
	"Obsidian", "Amber", "Silver", "Frozen", "Verdant",
	"Twilight", "Iron", "Sapphire", "Ashen", "Emerald",
}

var placeNouns = []string{
	"Vale", "Crossing", "Market", "Commons", "Keep",
	"Tower", "Wharf", "Marsh", "Oasis", "Summit",
	"Grove", "Square", "Depths", "Citadel", "Sanctuary",
	"Gate", "Frontier", "Cellar", "Haven", "Archive",
}

// Object name components - material + item kind.
var objectMaterials = []string{
	"Ashen", "Copper", "Oaken", "Gilded", "Weathered",
	"Polished", "Cracked", "Runed", "Woven", "Tarnished",
	"Ivory", "Leatherbound", "Glass", "Obsidian", "Brass",
}

var objectKinds = []string{
	"Lantern", "Compass", "Dagger", "Flask", "Talisman",
	"Ledger", "Spyglass", "Whetstone", "Satchel", "Chime",
	"Idol", "Quill", "Tinderbox", "Locket", "Map Case",
}

// First names - culturally diverse fantasy-appropriate.
var firstNames = []string{
	// Western European inspired
	"Rowan", "Elena", "Marcus", "Vera", "Theron", "Lyra",
	"Aldric", "Isolde", "Gareth", "Celeste",
	// African inspired
	"Amara", "Kofi", "Zara", "Jabari", "Nia", "Kwame",
	"Ayo", "Imani", "Sekou", "Adaeze",
	// East Asian inspired
	"Kenji", "Mei", "Hiroshi", "Yuki", "Jin", "Sora",
	"Hana", "Takeshi", "Akira", "Sakura",
	// South Asian inspired
	"Priya", "Arjun", "Kavya", "Ravi", "Anaya", "Dev",
	"Lakshmi", "Vikram", "Nisha", "Arun",
	// Middle Eastern inspired
	"Layla", "Nasir", "Farah", "Khalil", "Zahra", "Omar",
	"Soraya", "Rashid", "Leila", "Tariq",
	// Latin American inspired
	"Mateo", "Lucia", "Diego", "Carmen", "Rafael", "Sofia",
	"Camila", "Alejandro", "Valentina", "Miguel",
	// Indigenous/Nature inspired
	"Kaya", "Tala", "Sequoia", "Aiyana", "Makoa", "Chenoa",
	"Orenda", "Wren", "Sage", "River",
}

// Surnames/epithets - mix of cultural and fantasy.
var surnames = []string{
	// European inspired
	"Blackwood", "Ironforge", "Stormborn", "Ashford", "Thornwick",
	"Ravencroft", "Winterbourne", "Fairchild", "Silverwood", "Greymoor",
	// African inspired
	"Okonkwo", "Mbeki", "Diallo", "Nkrumah", "Osei",
	"Mensah", "Kone", "Traore", "Achebe", "Bankole",
	// Asian inspired
	"Tanaka", "Chen", "Sharma", "Nguyen", "Kim",
	"Nakamura", "Patel", "Li", "Yamamoto", "Singh",
	// Middle Eastern inspired
	"Al-Rashid", "Hakim", "Farouk", "Barzani", "Nazari",
	"El-Amin", "Khoury", "Abbasi", "Karimi", "Mansouri",
	// Latin inspired
	"Reyes", "Mendoza", "Castillo", "Vargas", "Delgado",
	"Moreno", "Fuentes", "Navarro", "Santos", "Vega",
	// Fantasy epithets
	"Whisperwind", "Nighthollow", "Sunweaver", "Dawnstrider", "Moonshadow",
	"Starfall", "Flameheart", "Frostbane", "Shadowmend", "Lightbringer",
}

// Usernames - modern, globally diverse login names.
var usernames = []string{
	"Sarah", "Alex", "Yuki", "Priya", "Amara",
	"Diego", "Layla", "Kofi", "Morgan", "Mei",
	"Ravi", "Sofia", "Kenji", "Zara", "Jordan",
	"Aisha", "Marcus", "Elena", "Tariq", "Nia",
	"Chris", "Luna", "Omar", "Maya", "Sam",
	"Kai", "Jasmine", "Andre", "Isla", "Leo",
}

// Shop trade names for vendor flavor.
var shopTrades = []string{
	"Curiosities", "Provisions", "Outfitters", "Sundries", "Emporium",
	"Trading Post", "Apothecary", "Smithy", "Wares", "Exchange",
}
