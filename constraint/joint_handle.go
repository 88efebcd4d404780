package constraint

import (
	"github.com/akmonengine/tendon/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// InvalidIndex is the index of a freed handle and the island, level and
// color of a joint that is not part of the coloring graph
const InvalidIndex = -1

// JointHandle is a stable reference to a joint of a JointConstraints.
// It stays valid while other joints are removed or sorted, and becomes
// invalid once its own joint is removed. The zero JointHandle is invalid.
type JointHandle struct {
	container  *JointConstraints
	slot       int32
	generation uint32
}

type handleSlot struct {
	index      int
	generation uint32
}

// handlePool maps handle slots to dense constraint indices
type handlePool struct {
	slots     []handleSlot
	freeSlots []int32
}

func (p *handlePool) alloc(container *JointConstraints, index int) JointHandle {
	var slot int32
	if n := len(p.freeSlots); n > 0 {
		slot = p.freeSlots[n-1]
		p.freeSlots = p.freeSlots[:n-1]
	} else {
		slot = int32(len(p.slots))
		p.slots = append(p.slots, handleSlot{generation: 1})
	}

	p.slots[slot].index = index
	return JointHandle{container: container, slot: slot, generation: p.slots[slot].generation}
}

func (p *handlePool) free(h JointHandle) {
	p.slots[h.slot].index = InvalidIndex
	p.slots[h.slot].generation++
	p.freeSlots = append(p.freeSlots, h.slot)
}

func (p *handlePool) setIndex(h JointHandle, index int) {
	p.slots[h.slot].index = index
}

func (p *handlePool) index(h JointHandle) int {
	if h.slot < 0 || int(h.slot) >= len(p.slots) {
		return InvalidIndex
	}

	slot := p.slots[h.slot]
	if slot.generation != h.generation {
		return InvalidIndex
	}
	return slot.index
}

// ConstraintIndex returns the current dense index of the joint, or
// InvalidIndex if the joint was removed
func (h JointHandle) ConstraintIndex() int {
	if h.container == nil {
		return InvalidIndex
	}
	return h.container.pool.index(h)
}

func (h JointHandle) IsValid() bool {
	return h.ConstraintIndex() != InvalidIndex
}

func (h JointHandle) Container() *JointConstraints {
	return h.container
}

func (h JointHandle) ConstrainedParticles() ParticlePair {
	return h.container.ConstrainedParticles(h.ConstraintIndex())
}

func (h JointHandle) Settings() JointSettings {
	return h.container.ConstraintSettings(h.ConstraintIndex())
}

func (h JointHandle) SetSettings(settings JointSettings) {
	h.container.SetConstraintSettings(h.ConstraintIndex(), settings)
}

func (h JointHandle) IsEnabled() bool {
	return h.container.IsConstraintEnabled(h.ConstraintIndex())
}

func (h JointHandle) SetEnabled(enabled bool) {
	h.container.SetConstraintEnabled(h.ConstraintIndex(), enabled)
}

func (h JointHandle) IsBreaking() bool {
	return h.container.IsConstraintBreaking(h.ConstraintIndex())
}

func (h JointHandle) ClearBreaking() {
	h.container.ClearConstraintBreaking(h.ConstraintIndex())
}

func (h JointHandle) Island() int {
	return h.container.ConstraintIsland(h.ConstraintIndex())
}

func (h JointHandle) IslandSize() int {
	return h.container.ConstraintIslandSize(h.ConstraintIndex())
}

func (h JointHandle) Level() int {
	return h.container.ConstraintLevel(h.ConstraintIndex())
}

func (h JointHandle) Color() int {
	return h.container.ConstraintColor(h.ConstraintIndex())
}

// LinearImpulse returns the impulse per second applied to the child during the last iteration
func (h JointHandle) LinearImpulse() mgl64.Vec3 {
	return h.container.LinearImpulse(h.ConstraintIndex())
}

func (h JointHandle) AngularImpulse() mgl64.Vec3 {
	return h.container.AngularImpulse(h.ConstraintIndex())
}

// ConstraintSpace returns the world frames of the child and parent connectors
func (h JointHandle) ConstraintSpace() [2]actor.Transform {
	return h.container.CalculateConstraintSpace(h.ConstraintIndex())
}

var _ actor.ConstraintHandle = JointHandle{}
