package app

import "github.com/ledum/huddle/internal/domain"

// routedThreshold is the member count at which a room stops being a mesh.
const routedThreshold = 3

// DeriveMode maps member count to topology. There is no hysteresis: a room
// that grows to three and shrinks back to two reverts to p2p immediately,
// even if that means repeated mode-change notifications around the boundary.
func DeriveMode(memberCount int) domain.Mode {
	if memberCount >= routedThreshold {
		return domain.ModeRouted
	}
	return domain.ModeMesh
}
