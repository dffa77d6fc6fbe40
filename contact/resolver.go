package contact

// Batch is the ordered working set of contacts for one simulation step,
// with a hard capacity so detection cost stays bounded. It is transient:
// regenerated every step, never carried across steps.
type Batch struct {
	contacts []*Contact
	limit    int
}

// NewBatch creates a batch holding at most limit contacts.
func NewBatch(limit int) *Batch {
	return &Batch{
		contacts: make([]*Contact, 0, limit),
		limit:    limit,
	}
}

// Add appends a contact, reporting false when the batch is full.
func (b *Batch) Add(c *Contact) bool {
	if len(b.contacts) >= b.limit {
		return false
	}
	b.contacts = append(b.contacts, c)

	return true
}

// HasRoom reports whether the batch can take more contacts.
func (b *Batch) HasRoom() bool {
	return len(b.contacts) < b.limit
}

func (b *Batch) Len() int {
	return len(b.contacts)
}

// Contacts returns the batch content in insertion order.
func (b *Batch) Contacts() []*Contact {
	return b.contacts
}

// Reset empties the batch for reuse.
func (b *Batch) Reset() {
	b.contacts = b.contacts[:0]
}

// Resolver removes interpenetration and resolves closing velocities for a
// batch of contacts, in place, in two greedy iterative phases. Contacts
// that share a body interact: each correction refreshes the cached state of
// its neighbours before the next one is picked.
//
// Reaching an iteration cap is not an error; the residual penetration or
// closing velocity is left for the next step. The used-iteration counters
// make cap exhaustion observable for tuning.
type Resolver struct {
	// PositionIterations and VelocityIterations cap the two phases. Zero
	// means twice the contact count, which converges for small batches
	// without tuning.
	PositionIterations int
	VelocityIterations int

	// PositionEpsilon is the penetration depth considered resolved;
	// VelocityEpsilon the closing velocity considered at rest. Both avoid
	// jitter from chasing numerical noise.
	PositionEpsilon float64
	VelocityEpsilon float64

	positionIterationsUsed int
	velocityIterationsUsed int
}

// NewResolver creates a resolver with the default tolerances.
func NewResolver(positionIterations, velocityIterations int) *Resolver {
	return &Resolver{
		PositionIterations: positionIterations,
		VelocityIterations: velocityIterations,
		PositionEpsilon:    0.01,
		VelocityEpsilon:    0.01,
	}
}

// Resolve processes the batch for the current step: derived contact data,
// then the interpenetration phase, then the velocity phase.
func (r *Resolver) Resolve(batch *Batch, dt float64) {
	contacts := batch.Contacts()
	if len(contacts) == 0 {
		return
	}

	r.prepareContacts(contacts, dt)
	r.adjustPositions(contacts, dt)
	r.adjustVelocities(contacts, dt)
}

// IterationsUsed reports how many position and velocity iterations the last
// Resolve consumed.
func (r *Resolver) IterationsUsed() (position, velocity int) {
	return r.positionIterationsUsed, r.velocityIterationsUsed
}

func (r *Resolver) prepareContacts(contacts []*Contact, dt float64) {
	for _, c := range contacts {
		c.calculateInternals(dt)
	}
}

// adjustPositions repeatedly resolves the deepest penetrating contact,
// updating the penetration of every contact sharing a moved body before
// re-selecting.
func (r *Resolver) adjustPositions(contacts []*Contact, dt float64) {
	iterations := r.PositionIterations
	if iterations == 0 {
		iterations = 2 * len(contacts)
	}

	r.positionIterationsUsed = 0
	for r.positionIterationsUsed < iterations {
		worst := -1
		maxPenetration := r.PositionEpsilon
		for i, c := range contacts {
			if c.Penetration > maxPenetration {
				maxPenetration = c.Penetration
				worst = i
			}
		}
		if worst < 0 {
			return
		}

		c := contacts[worst]
		c.matchAwakeState()
		linearChange, angularChange := c.applyPositionChange(maxPenetration)

		// Moving the bodies changed the contact points of every contact
		// sharing them.
		for _, other := range contacts {
			for b, body := range other.Bodies {
				if body == nil {
					continue
				}
				for d, moved := range c.Bodies {
					if body != moved {
						continue
					}

					deltaPosition := linearChange[d].Add(
						angularChange[d].Cross(other.relativePos[b]))

					sign := -1.0
					if b == 1 {
						sign = 1.0
					}
					other.Penetration += sign * deltaPosition.Dot(other.Normal)
				}
			}
		}

		r.positionIterationsUsed++
	}
}

// adjustVelocities repeatedly resolves the contact with the largest desired
// velocity change, updating the closing velocity of every contact sharing
// an affected body before re-selecting.
func (r *Resolver) adjustVelocities(contacts []*Contact, dt float64) {
	iterations := r.VelocityIterations
	if iterations == 0 {
		iterations = 2 * len(contacts)
	}

	r.velocityIterationsUsed = 0
	for r.velocityIterationsUsed < iterations {
		worst := -1
		maxVelocity := r.VelocityEpsilon
		for i, c := range contacts {
			if c.desiredDeltaVelocity > maxVelocity {
				maxVelocity = c.desiredDeltaVelocity
				worst = i
			}
		}
		if worst < 0 {
			return
		}

		c := contacts[worst]
		c.matchAwakeState()
		velocityChange, rotationChange := c.applyVelocityChange()

		// The impulse changed both bodies' velocities; refresh the
		// closing velocity of every contact sharing one of them.
		for _, other := range contacts {
			for b, body := range other.Bodies {
				if body == nil {
					continue
				}
				for d, affected := range c.Bodies {
					if body != affected {
						continue
					}

					deltaVelocity := velocityChange[d].Add(
						rotationChange[d].Cross(other.relativePos[b]))

					sign := 1.0
					if b == 1 {
						sign = -1.0
					}
					other.contactVelocity = other.contactVelocity.Add(
						other.basis.Transpose().Mul3x1(deltaVelocity).Mul(sign))
					other.calculateDesiredDeltaVelocity(dt)
				}
			}
		}

		r.velocityIterationsUsed++
	}
}
