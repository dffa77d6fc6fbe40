package main

import (
	"fmt"
	"os"

	"github.com/akmonengine/quill"
	"github.com/akmonengine/quill/actor"
	"github.com/akmonengine/quill/collide"
	"github.com/akmonengine/quill/config"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
)

var (
	configFile  string
	dt          float64
	steps       int
	restitution float64
	count       int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "quillsim",
		Short: "rigid-body physics scenes in the terminal",
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML tuning file")
	rootCmd.PersistentFlags().Float64Var(&dt, "dt", 1.0/60.0, "timestep")
	rootCmd.PersistentFlags().IntVar(&steps, "steps", 600, "steps to simulate")

	bounceCmd := &cobra.Command{
		Use:   "bounce",
		Short: "drop a sphere on a half-space and plot its height",
		RunE:  runBounce,
	}
	bounceCmd.Flags().Float64Var(&restitution, "restitution", 0.7, "sphere restitution")

	stackCmd := &cobra.Command{
		Use:   "stack",
		Short: "stack boxes on a half-space and report how they settle",
		RunE:  runStack,
	}
	stackCmd.Flags().IntVar(&count, "count", 3, "boxes in the stack")

	rootCmd.AddCommand(bounceCmd, stackCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	if configFile == "" {
		return config.Default(), nil
	}

	return config.Load(configFile)
}

func runBounce(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	world := quill.NewWorldFromConfig(cfg)

	sphere := actor.NewRigidBody()
	if err := sphere.SetMass(1); err != nil {
		return err
	}
	sphere.SetPosition(mgl64.Vec3{0, 5, 0})
	sphere.SetInertiaTensor(collide.SphereInertia(1, 0.5))
	sphere.SetDamping(0.99, 0.9)
	sphere.CalculateDerivedData()

	world.AddBody(sphere)
	world.AddPrimitive(collide.NewSphere(sphere, 0.5, collide.Surface{
		Friction:    0.4,
		Restitution: restitution,
	}))
	world.AddPrimitive(collide.NewPlane(mgl64.Vec3{0, 1, 0}, 0, collide.Surface{
		Friction:    0.4,
		Restitution: restitution,
	}))

	heights := make([]float64, 0, steps)
	for s := 0; s < steps; s++ {
		world.Step(dt)
		heights = append(heights, sphere.Position().Y())
	}

	fmt.Println(asciigraph.Plot(heights,
		asciigraph.Height(12),
		asciigraph.Width(70),
		asciigraph.Caption("sphere height (m)")))

	positionUsed, velocityUsed := world.Resolver.IterationsUsed()
	fmt.Printf("final height %.3f, awake=%v, last resolver iterations: position=%d velocity=%d\n",
		sphere.Position().Y(), sphere.IsAwake(), positionUsed, velocityUsed)

	return nil
}

func runStack(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	world := quill.NewWorldFromConfig(cfg)

	surface := collide.Surface{Friction: 0.6, Restitution: 0}
	halfExtents := mgl64.Vec3{0.5, 0.5, 0.5}

	boxes := make([]*actor.RigidBody, 0, count)
	for i := 0; i < count; i++ {
		box := actor.NewRigidBody()
		if err := box.SetMass(4); err != nil {
			return err
		}
		box.SetPosition(mgl64.Vec3{0, 0.5 + float64(i)*1.001, 0})
		box.SetInertiaTensor(collide.BoxInertia(4, halfExtents))
		box.SetDamping(0.95, 0.8)
		box.CalculateDerivedData()

		world.AddBody(box)
		world.AddPrimitive(collide.NewBox(box, halfExtents, surface))
		boxes = append(boxes, box)
	}
	world.AddPrimitive(collide.NewPlane(mgl64.Vec3{0, 1, 0}, 0, surface))

	topHeights := make([]float64, 0, steps)
	for s := 0; s < steps; s++ {
		world.Step(dt)
		topHeights = append(topHeights, boxes[len(boxes)-1].Position().Y())
	}

	fmt.Println(asciigraph.Plot(topHeights,
		asciigraph.Height(12),
		asciigraph.Width(70),
		asciigraph.Caption("top box height (m)")))

	asleep := 0
	for i, box := range boxes {
		if !box.IsAwake() {
			asleep++
		}
		fmt.Printf("box %d: y=%.3f awake=%v\n", i, box.Position().Y(), box.IsAwake())
	}

	positionUsed, velocityUsed := world.Resolver.IterationsUsed()
	fmt.Printf("%d/%d asleep, last resolver iterations: position=%d velocity=%d\n",
		asleep, count, positionUsed, velocityUsed)

	return nil
}
