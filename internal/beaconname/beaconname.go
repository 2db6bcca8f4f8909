// Package beaconname generates the human-readable slugs assigned to
// stations on first sighting.
package beaconname

import "math/rand/v2"

var verbs = []string{
	"accelerating", "arcing", "banking", "braking", "charging", "circling",
	"climbing", "coasting", "cornering", "crossing", "cruising", "dashing",
	"drifting", "driving", "flowing", "gliding", "humming", "idling",
	"merging", "motoring", "parking", "passing", "racing", "reversing",
	"rolling", "rushing", "shifting", "signaling", "sparking", "speeding",
	"spinning", "steering", "surging", "swerving", "touring", "towing",
	"tracking", "traveling", "turning", "veering", "wandering", "winding",
}

var nouns = []string{
	"anchor", "aqueduct", "archway", "basalt", "basin", "battery", "bay",
	"beacon", "bollard", "boulevard", "bridge", "brook", "bypass", "cairn",
	"canal", "canyon", "causeway", "channel", "cistern", "cobalt", "comet",
	"copper", "creek", "crossing", "culvert", "delta", "depot", "dynamo",
	"embankment", "estuary", "fjord", "garnet", "gateway", "girder",
	"granite", "harbor", "highway", "inlet", "junction", "lagoon", "lantern",
	"lighthouse", "magnet", "meridian", "mesa", "milestone", "nebula",
	"outpost", "overpass", "parkway", "pier", "plaza", "quarry", "quartz",
	"ravine", "reservoir", "ridge", "riverbed", "rotary", "signal", "spire",
	"summit", "terrace", "tollway", "trestle", "tunnel", "turbine",
	"viaduct", "waypoint", "zenith",
}

// Generate returns a random verb-noun slug such as "cruising-viaduct".
// Uniqueness is the caller's concern; regenerate on collision.
func Generate() string {
	return verbs[rand.IntN(len(verbs))] + "-" + nouns[rand.IntN(len(nouns))]
}
