// Package quill is a rigid-body physics core: it advances body state over
// discrete time steps and resolves the contacts between collision
// primitives. The render loop and scene graph belong to the caller; quill
// owns kinematic state, force accumulation, narrow-phase contact generation
// and the iterative contact resolver.
package quill

import (
	"github.com/akmonengine/quill/actor"
	"github.com/akmonengine/quill/collide"
	"github.com/akmonengine/quill/config"
	"github.com/akmonengine/quill/contact"
	"github.com/akmonengine/quill/force"
	"github.com/go-gl/mathgl/mgl64"
)

const DEFAULT_WORKERS = 1

// maxContactsPerPair bounds what a single narrow-phase test can emit; the
// largest producer is box against half-space with one contact per vertex.
const maxContactsPerPair = 8

// World owns the simulated bodies and their collision geometry and drives
// the per-step pipeline: clear accumulators, apply forces, integrate,
// detect, resolve. Steps are synchronous; only integration and narrow-phase
// detection fan out to workers, resolution is sequential by design since
// contacts sharing a body interact.
type World struct {
	Bodies     []*actor.RigidBody
	Primitives []*collide.Primitive

	// Gravity is assigned as the constant acceleration of bodies added
	// through AddBody.
	Gravity mgl64.Vec3

	Forces   force.Registry
	Resolver *contact.Resolver
	Grid     *SpatialGrid
	Workers  int

	Events Events

	sleepEnabled bool
	batch        *contact.Batch
}

// NewWorld creates a world with the default tuning.
func NewWorld() *World {
	return NewWorldFromConfig(config.Default())
}

// NewWorldFromConfig creates a world from explicit tuning.
func NewWorldFromConfig(cfg config.Config) *World {
	resolver := contact.NewResolver(
		cfg.Resolver.PositionIterations,
		cfg.Resolver.VelocityIterations,
	)
	resolver.PositionEpsilon = cfg.Resolver.PositionEpsilon
	resolver.VelocityEpsilon = cfg.Resolver.VelocityEpsilon

	actor.SleepEpsilon = cfg.Sleep.Epsilon

	return &World{
		Gravity:      mgl64.Vec3{cfg.Gravity[0], cfg.Gravity[1], cfg.Gravity[2]},
		Resolver:     resolver,
		Grid:         NewSpatialGrid(cfg.Grid.CellSize, cfg.Grid.Cells),
		Workers:      cfg.Workers,
		Events:       NewEvents(),
		sleepEnabled: cfg.Sleep.Enabled,
		batch:        contact.NewBatch(cfg.MaxContacts),
	}
}

// AddBody adds a rigid body to the world. Dynamic bodies get the world
// gravity as their constant acceleration; call SetAcceleration afterwards
// to override.
func (w *World) AddBody(body *actor.RigidBody) {
	if body.HasFiniteMass() {
		body.SetAcceleration(w.Gravity)
	}
	body.SetCanSleep(w.sleepEnabled)

	w.Bodies = append(w.Bodies, body)
}

// AddPrimitive adds collision geometry. Static planes have no body and are
// added through this only.
func (w *World) AddPrimitive(primitive *collide.Primitive) {
	w.Primitives = append(w.Primitives, primitive)
}

// RemoveBody removes a rigid body and all collision geometry bound to it.
func (w *World) RemoveBody(body *actor.RigidBody) {
	k := -1
	for i, b := range w.Bodies {
		if b == body {
			k = i
			break
		}
	}
	if k == -1 {
		return
	}
	w.Bodies = append(w.Bodies[:k], w.Bodies[k+1:]...)

	n := 0
	for _, p := range w.Primitives {
		if p.Body == body {
			continue
		}
		w.Primitives[n] = p
		n++
	}
	w.Primitives = w.Primitives[:n]

	w.Events.forget(body)
}

// StartFrame clears force and torque accumulators and refreshes derived
// body data. Must be called before force generators run.
func (w *World) StartFrame() {
	for _, body := range w.Bodies {
		body.ClearAccumulators()
		body.CalculateDerivedData()
	}
}

// Integrate advances every awake body by dt and refreshes the cached
// transforms of their collision geometry.
func (w *World) Integrate(dt float64) {
	workers := max(DEFAULT_WORKERS, w.Workers)

	task(workers, w.Bodies, func(_ int, body *actor.RigidBody) {
		body.Integrate(dt)
	})
	task(workers, w.Primitives, func(_ int, primitive *collide.Primitive) {
		primitive.CalculateInternals()
	})
}

// GenerateContacts runs broad then narrow phase and returns this step's
// contact batch. Detection fans out to workers; results are merged in pair
// order so the batch content is reproducible.
func (w *World) GenerateContacts() *contact.Batch {
	workers := max(DEFAULT_WORKERS, w.Workers)

	w.Grid.Clear()
	for i, primitive := range w.Primitives {
		w.Grid.Insert(i, primitive)
	}
	w.Grid.SortCells()

	pairs := w.Grid.FindPairs(w.Primitives)

	results := make([]*contact.Batch, len(pairs))
	task(workers, pairs, func(i int, pair Pair) {
		batch := contact.NewBatch(maxContactsPerPair)
		collide.Detect(pair.A, pair.B, batch)
		results[i] = batch
	})

	w.batch.Reset()
	for _, result := range results {
		for _, c := range result.Contacts() {
			if !w.batch.Add(c) {
				return w.batch
			}
		}
	}

	return w.batch
}

// ResolveContacts resolves the batch in place, adjusting body positions and
// velocities. Sequential: every resolved contact may invalidate the cached
// state of others sharing a body.
func (w *World) ResolveContacts(batch *contact.Batch, dt float64) {
	w.Resolver.Resolve(batch, dt)
}

// Step runs one full physics step in the mandated order and flushes
// events.
func (w *World) Step(dt float64) {
	w.StartFrame()
	w.Forces.ApplyForces(dt)
	w.Integrate(dt)

	batch := w.GenerateContacts()
	w.Events.recordContacts(batch)

	w.ResolveContacts(batch, dt)

	w.Events.processSleepEvents(w.Bodies)
	w.Events.flush()
}
