package models

// BadgeKind identifies a one-time achievement a student can earn.
// Badges are stored by their string value in the profile's badge set.
type BadgeKind string

const (
	BadgeWasteWarrior    BadgeKind = "waste_warrior"
	BadgeWaterSaver      BadgeKind = "water_saver"
	BadgeGreenThumb      BadgeKind = "green_thumb"
	BadgeEcoChampion     BadgeKind = "eco_champion"
	BadgePlanetProtector BadgeKind = "planet_protector"
	BadgeCarbonCrusher   BadgeKind = "carbon_crusher"
)

// FallbackBadgeIcon is rendered for badge values that are not part of the catalog.
const FallbackBadgeIcon = "fa-medal"

// BadgeInfo holds the presentation data of a badge kind.
type BadgeInfo struct {
	Kind BadgeKind `json:"kind"`
	Name string    `json:"name"`
	Icon string    `json:"icon"`
}

// AllBadgeKinds lists every badge kind in display order.
func AllBadgeKinds() []BadgeKind {
	return []BadgeKind{
		BadgeWasteWarrior,
		BadgeWaterSaver,
		BadgeGreenThumb,
		BadgeEcoChampion,
		BadgePlanetProtector,
		BadgeCarbonCrusher,
	}
}

// Info returns the catalog entry for the kind. The switch has no default
// branch so that adding a kind without an entry is caught by the catalog test.
func (b BadgeKind) Info() (BadgeInfo, bool) {
	switch b {
	case BadgeWasteWarrior:
		return BadgeInfo{Kind: b, Name: "Waste Warrior", Icon: "fa-recycle"}, true
	case BadgeWaterSaver:
		return BadgeInfo{Kind: b, Name: "Water Saver", Icon: "fa-tint"}, true
	case BadgeGreenThumb:
		return BadgeInfo{Kind: b, Name: "Green Thumb", Icon: "fa-seedling"}, true
	case BadgeEcoChampion:
		return BadgeInfo{Kind: b, Name: "Eco Champion", Icon: "fa-leaf"}, true
	case BadgePlanetProtector:
		return BadgeInfo{Kind: b, Name: "Planet Protector", Icon: "fa-globe"}, true
	case BadgeCarbonCrusher:
		return BadgeInfo{Kind: b, Name: "Carbon Crusher", Icon: "fa-industry"}, true
	}
	return BadgeInfo{}, false
}

// Display returns the catalog entry, or a fallback built from the raw value
// when the kind is unknown (e.g. a value written by a newer release).
func (b BadgeKind) Display() BadgeInfo {
	if info, ok := b.Info(); ok {
		return info
	}
	return BadgeInfo{Kind: b, Name: string(b), Icon: FallbackBadgeIcon}
}

// Valid reports whether the kind is part of the catalog.
func (b BadgeKind) Valid() bool {
	_, ok := b.Info()
	return ok
}
