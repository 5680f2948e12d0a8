package jornettest

import "math/rand/v2"

var (
	adjectives = []string{"Brave", "Clever", "Swift", "Quiet", "Lucky", "Mighty", "Nimble", "Sly"}
	animals    = []string{"Otter", "Falcon", "Badger", "Lynx", "Heron", "Wolf", "Gecko", "Panda"}
)

// randomName is used for players created without a name.
func randomName() string {
	return adjectives[rand.IntN(len(adjectives))] + " " + animals[rand.IntN(len(animals))]
}
