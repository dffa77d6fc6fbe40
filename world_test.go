package quill

import (
	"math"
	"testing"

	"github.com/akmonengine/quill/actor"
	"github.com/akmonengine/quill/collide"
	"github.com/akmonengine/quill/config"
	"github.com/go-gl/mathgl/mgl64"
)

const testDt = 1.0 / 60.0

func addSphere(w *World, position mgl64.Vec3, radius float64, surface collide.Surface) *actor.RigidBody {
	body := actor.NewRigidBody()
	if err := body.SetMass(1); err != nil {
		panic(err)
	}
	body.SetPosition(position)
	body.SetInertiaTensor(collide.SphereInertia(1, radius))
	body.SetDamping(0.99, 0.9)
	body.CalculateDerivedData()

	w.AddBody(body)
	w.AddPrimitive(collide.NewSphere(body, radius, surface))

	return body
}

func addBox(w *World, position mgl64.Vec3, halfExtents mgl64.Vec3, surface collide.Surface) *actor.RigidBody {
	body := actor.NewRigidBody()
	if err := body.SetMass(4); err != nil {
		panic(err)
	}
	body.SetPosition(position)
	body.SetInertiaTensor(collide.BoxInertia(4, halfExtents))
	body.SetDamping(0.95, 0.8)
	body.CalculateDerivedData()

	w.AddBody(body)
	w.AddPrimitive(collide.NewBox(body, halfExtents, surface))

	return body
}

func TestWorld_FreeFallMatchesGravity(t *testing.T) {
	world := NewWorld()

	body := actor.NewRigidBody()
	if err := body.SetMass(1); err != nil {
		t.Fatal(err)
	}
	body.SetPosition(mgl64.Vec3{0, 100, 0})
	body.CalculateDerivedData()
	world.AddBody(body)

	for _i_ := 0; _i_ < 60; _i_++ {
		world.Step(testDt)
	}

	// One second of undamped fall.
	if got := body.Velocity().Y(); math.Abs(got-(-9.81)) > 1e-9 {
		t.Errorf("velocity.Y after 1s = %v, want -9.81", got)
	}
	if body.Position().Y() >= 100 {
		t.Error("body did not fall")
	}
}

func TestWorld_ImmovableBodyGetsNoGravity(t *testing.T) {
	world := NewWorld()

	body := actor.NewRigidBody()
	body.SetInverseMass(0)
	body.CalculateDerivedData()
	world.AddBody(body)

	if body.Acceleration() != (mgl64.Vec3{}) {
		t.Errorf("immovable body got acceleration %v", body.Acceleration())
	}
}

func TestWorld_SphereComesToRestOnPlane(t *testing.T) {
	world := NewWorld()
	surface := collide.Surface{Friction: 0.4, Restitution: 0}

	sphere := addSphere(world, mgl64.Vec3{0, 3, 0}, 0.5, surface)
	world.AddPrimitive(collide.NewPlane(mgl64.Vec3{0, 1, 0}, 0, surface))

	for _i_ := 0; _i_ < 600; _i_++ {
		world.Step(testDt)
	}

	// Resting height is the radius, within the resolver tolerance.
	if got := sphere.Position().Y(); math.Abs(got-0.5) > 0.05 {
		t.Errorf("rest height = %v, want 0.5±0.05", got)
	}
	if v := sphere.Velocity().Len(); v > 0.1 {
		t.Errorf("rest velocity = %v, want near zero", v)
	}
	if sphere.IsAwake() {
		t.Error("settled sphere never fell asleep")
	}
}

func TestWorld_BoxStackSettlesWithoutSinking(t *testing.T) {
	world := NewWorld()
	surface := collide.Surface{Friction: 0.6, Restitution: 0}
	halfExtents := mgl64.Vec3{0.5, 0.5, 0.5}

	bottom := addBox(world, mgl64.Vec3{0, 0.5, 0}, halfExtents, surface)
	top := addBox(world, mgl64.Vec3{0, 1.55, 0}, halfExtents, surface)
	world.AddPrimitive(collide.NewPlane(mgl64.Vec3{0, 1, 0}, 0, surface))

	for _i_ := 0; _i_ < 900; _i_++ {
		world.Step(testDt)
	}

	if got := bottom.Position().Y(); math.Abs(got-0.5) > 0.1 {
		t.Errorf("bottom box height = %v, want 0.5±0.1", got)
	}
	if got := top.Position().Y(); math.Abs(got-1.5) > 0.15 {
		t.Errorf("top box height = %v, want 1.5±0.15", got)
	}
	if bottom.Position().Y() < 0.4 || top.Position().Y() < 1.3 {
		t.Error("stack sank into the ground")
	}
}

func TestWorld_BounceLosesHeightWithRestitution(t *testing.T) {
	world := NewWorld()
	surface := collide.Surface{Friction: 0, Restitution: 0.5}

	sphere := addSphere(world, mgl64.Vec3{0, 4, 0}, 0.5, surface)
	world.AddPrimitive(collide.NewPlane(mgl64.Vec3{0, 1, 0}, 0, surface))

	peak := 0.0
	bounced := false
	falling := true
	for _i_ := 0; _i_ < 600; _i_++ {
		world.Step(testDt)

		y := sphere.Position().Y()
		if falling && sphere.Velocity().Y() > 0 {
			falling = false
			bounced = true
		}
		if !falling {
			peak = math.Max(peak, y)
		}
	}

	if !bounced {
		t.Fatal("sphere never bounced")
	}
	// Restitution 0.5 returns a quarter of the energy: the rebound peak
	// stays well under the drop height.
	if peak >= 2.5 {
		t.Errorf("rebound peak = %v, want well below the 4.0 drop", peak)
	}
	if peak <= 0.5 {
		t.Errorf("rebound peak = %v, sphere did not leave the ground", peak)
	}
}

func TestWorld_MaxContactsBoundsTheBatch(t *testing.T) {
	cfg := config.Default()
	cfg.MaxContacts = 2
	world := NewWorldFromConfig(cfg)

	surface := collide.Surface{Friction: 0.5, Restitution: 0}
	// A box flat on the plane produces four vertex contacts.
	addBox(world, mgl64.Vec3{0, 0.4, 0}, mgl64.Vec3{0.5, 0.5, 0.5}, surface)
	world.AddPrimitive(collide.NewPlane(mgl64.Vec3{0, 1, 0}, 0, surface))

	world.StartFrame()
	world.Integrate(testDt)
	batch := world.GenerateContacts()

	if batch.Len() != 2 {
		t.Errorf("batch holds %d contacts, want the cap of 2", batch.Len())
	}
}

func TestWorld_RemoveBodyDropsItsPrimitives(t *testing.T) {
	world := NewWorld()
	surface := collide.Surface{}

	a := addSphere(world, mgl64.Vec3{0, 1, 0}, 0.5, surface)
	addSphere(world, mgl64.Vec3{5, 1, 0}, 0.5, surface)

	world.RemoveBody(a)

	if len(world.Bodies) != 1 {
		t.Errorf("%d bodies after removal, want 1", len(world.Bodies))
	}
	if len(world.Primitives) != 1 {
		t.Errorf("%d primitives after removal, want 1", len(world.Primitives))
	}
	if world.Primitives[0].Body == a {
		t.Error("removed body's primitive survived")
	}
}

func TestWorld_CollisionEventsFireOnImpact(t *testing.T) {
	world := NewWorld()
	surface := collide.Surface{Friction: 0.4, Restitution: 0}

	addSphere(world, mgl64.Vec3{0, 1, 0}, 0.5, surface)
	world.AddPrimitive(collide.NewPlane(mgl64.Vec3{0, 1, 0}, 0, surface))

	enters := 0
	world.Events.Subscribe(COLLISION_ENTER, func(Event) { enters++ })

	for _i_ := 0; _i_ < 120; _i_++ {
		world.Step(testDt)
	}

	if enters == 0 {
		t.Error("no collision enter event for a sphere landing on a plane")
	}
}

func TestWorld_SleepEventFiresOnceSettled(t *testing.T) {
	world := NewWorld()
	surface := collide.Surface{Friction: 0.4, Restitution: 0}

	addSphere(world, mgl64.Vec3{0, 1, 0}, 0.5, surface)
	world.AddPrimitive(collide.NewPlane(mgl64.Vec3{0, 1, 0}, 0, surface))

	sleeps := 0
	world.Events.Subscribe(ON_SLEEP, func(Event) { sleeps++ })

	for _i_ := 0; _i_ < 600; _i_++ {
		world.Step(testDt)
	}

	if sleeps != 1 {
		t.Errorf("%d sleep events, want exactly 1", sleeps)
	}
}

func TestWorld_DeterministicAcrossWorkerCounts(t *testing.T) {
	run := func(workers int) []mgl64.Vec3 {
		cfg := config.Default()
		cfg.Workers = workers
		world := NewWorldFromConfig(cfg)
		surface := collide.Surface{Friction: 0.5, Restitution: 0.3}

		addSphere(world, mgl64.Vec3{0, 3, 0}, 0.5, surface)
		addSphere(world, mgl64.Vec3{0.3, 4.2, 0.1}, 0.5, surface)
		addBox(world, mgl64.Vec3{-0.2, 1.5, 0}, mgl64.Vec3{0.5, 0.5, 0.5}, surface)
		world.AddPrimitive(collide.NewPlane(mgl64.Vec3{0, 1, 0}, 0, surface))

		for _i_ := 0; _i_ < 300; _i_++ {
			world.Step(testDt)
		}

		positions := make([]mgl64.Vec3, len(world.Bodies))
		for i, body := range world.Bodies {
			positions[i] = body.Position()
		}
		return positions
	}

	serial := run(1)
	parallel := run(4)

	for i := range serial {
		if serial[i] != parallel[i] {
			t.Errorf("body %d diverged across worker counts: %v vs %v",
				i, serial[i], parallel[i])
		}
	}
}

func TestWorld_SleepingStackIgnoredUntilDisturbed(t *testing.T) {
	world := NewWorld()
	surface := collide.Surface{Friction: 0.6, Restitution: 0}

	box := addBox(world, mgl64.Vec3{0, 0.5, 0}, mgl64.Vec3{0.5, 0.5, 0.5}, surface)
	world.AddPrimitive(collide.NewPlane(mgl64.Vec3{0, 1, 0}, 0, surface))

	for i := 0; i < 600 && box.IsAwake(); i++ {
		world.Step(testDt)
	}
	if box.IsAwake() {
		t.Fatal("box never fell asleep")
	}

	settled := box.Position()
	for _i_ := 0; _i_ < 60; _i_++ {
		world.Step(testDt)
	}
	if box.Position() != settled {
		t.Error("sleeping box drifted")
	}

	// An impulse-like force wakes it again.
	box.AddForce(mgl64.Vec3{100, 0, 0})
	world.Step(testDt)
	if !box.IsAwake() {
		t.Error("disturbed box stayed asleep")
	}
}
