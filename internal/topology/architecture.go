package topology

import "fmt"

// Class is the size class of an architecture.
type Class string

const (
	ClassStandalone Class = "standalone"
	ClassLarge      Class = "large"
	ClassExtraLarge Class = "extra-large"
)

// Architecture is a supported PE architecture.
type Architecture struct {
	Class Class
	HA    bool
}

// String returns the architecture name: standalone, ha, large, large-ha,
// extra-large or extra-large-ha.
func (a Architecture) String() string {
	switch {
	case a.Class == ClassStandalone && a.HA:
		return "ha"
	case a.HA:
		return string(a.Class) + "-ha"
	default:
		return string(a.Class)
	}
}

// Classify maps the presence of each slot onto exactly one architecture.
func Classify(replica, primaryDB, replicaDB bool, compilers int) (Architecture, error) {
	var class Class
	switch {
	case !replica && !primaryDB && !replicaDB:
		class = ClassStandalone
	case replica && !primaryDB && !replicaDB:
		class = ClassStandalone
	case !replica && primaryDB && !replicaDB:
		class = ClassExtraLarge
	case replica && primaryDB && replicaDB:
		class = ClassExtraLarge
	default:
		return Architecture{}, fmt.Errorf("%w: replica=%t primary_postgresql=%t replica_postgresql=%t",
			ErrUnsupportedTopology, replica, primaryDB, replicaDB)
	}

	if class == ClassStandalone && compilers > 0 {
		class = ClassLarge
	}
	return Architecture{Class: class, HA: replica}, nil
}
