package workspace

import (
	"github.com/oklog/ulid/v2"
)

type (
	// IDSource produces unique placed item ids.
	IDSource interface {
		NewID() string
	}

	// RandomSource yields integers in [0, n). *rand.Rand satisfies it.
	RandomSource interface {
		Intn(n int) int
	}

	IDFunc func() string
)

func (f IDFunc) NewID() string {
	return f()
}

// ULIDSource generates monotonic ULIDs.
func ULIDSource() IDSource {
	return IDFunc(func() string {
		return ulid.Make().String()
	})
}
