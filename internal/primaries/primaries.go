// Package primaries implements primaries handling: Load (loader.go) decodes
// this package's own binary (particle, pixel) layout, and the functions in
// this file work on an already-decoded (particle, pixel) array: AABB
// rejection, the prescan shuffle, and tag assignment (spec.md §4.5 step 4).
package primaries

import (
	"math/rand"

	"github.com/nebula-sim/nebula/internal/geometry"
	"github.com/nebula-sim/nebula/internal/particle"
)

// RejectOutOfBounds filters particles (and their parallel pixel array)
// whose position lies outside bounds, per spec §6's loader contract. It
// compacts in place and returns the kept slices (sharing particles'/
// pixels' backing arrays) plus the number dropped.
func RejectOutOfBounds(particles []particle.Particle, pixels []particle.Pixel, bounds geometry.AABB) ([]particle.Particle, []particle.Pixel, int) {
	keptP := particles[:0]
	keptX := pixels[:0]
	dropped := 0
	for i, p := range particles {
		if !bounds.Contains(p.Position) {
			dropped++
			continue
		}
		keptP = append(keptP, p)
		keptX = append(keptX, pixels[i])
	}
	return keptP, keptX, dropped
}

// PrescanShuffle moves prescanSize representative samples to the front of
// particles/pixels via a partial Fisher-Yates selection, so the pilot run
// (internal/prescan) draws an unbiased sample of the full population
// rather than just its first prescanSize entries. The two slices are
// permuted identically, preserving the particle/pixel correspondence.
// Tags are assigned afterward as the post-shuffle index (spec §4.5 step
// 4: "assign tag i to primary i"), so this must run before tag
// assignment.
func PrescanShuffle(particles []particle.Particle, pixels []particle.Pixel, prescanSize int, rng *rand.Rand) {
	n := len(particles)
	if prescanSize > n {
		prescanSize = n
	}
	for i := 0; i < prescanSize; i++ {
		j := i + rng.Intn(n-i)
		particles[i], particles[j] = particles[j], particles[i]
		pixels[i], pixels[j] = pixels[j], pixels[i]
	}
}

// AssignTags returns the tag array for particles in their current order:
// tag i is assigned to primary i, per spec §4.5 step 4.
func AssignTags(particles []particle.Particle) []particle.Tag {
	tags := make([]particle.Tag, len(particles))
	for i := range tags {
		tags[i] = particle.Tag(i)
	}
	return tags
}
