// Package config reads a scene description from YAML and builds a ready World
// out of it.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/akmonengine/quill"
	"github.com/akmonengine/quill/actor"
	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"
)

const (
	ShapeBox    = "box"
	ShapeSphere = "sphere"

	DefaultStepsPerSecond = quill.DEFAULT_STEPS_PER_SECOND
	DefaultTimeSpeed      = quill.DEFAULT_TIME_SPEED
	DefaultGJKMaxSteps    = 64
	DefaultWorkers        = quill.DEFAULT_WORKERS
)

var DefaultGravity = Vec3{0, -9.81, 0}

var (
	ErrInvalidShape   = errors.New("config: unknown shape")
	ErrInvalidSize    = errors.New("config: shape size must be positive")
	ErrInvalidMass    = errors.New("config: mass must be positive and finite")
	ErrInvalidPhysics = errors.New("config: invalid physics settings")
)

// Vec3 is written as a three element YAML sequence
type Vec3 [3]float64

func (v Vec3) Vec() mgl64.Vec3 {
	return mgl64.Vec3(v)
}

// IsZero lets omitempty drop null vectors
func (v Vec3) IsZero() bool {
	return v == Vec3{}
}

type Physics struct {
	StepsPerSecond int     `yaml:"steps_per_second"`
	TimeSpeed      float64 `yaml:"time_speed"`
	Gravity        Vec3    `yaml:"gravity,flow"`
	GJKMaxSteps    int     `yaml:"gjk_max_steps"`
	Workers        int     `yaml:"workers"`
	CellSize       float64 `yaml:"cell_size,omitempty"`
}

// Body describes one rigid body. Rotation holds XYZ euler angles in degrees.
type Body struct {
	Name        string  `yaml:"name,omitempty"`
	Shape       string  `yaml:"shape"`
	HalfExtents Vec3    `yaml:"half_extents,flow,omitempty"`
	Radius      float64 `yaml:"radius,omitempty"`

	Position Vec3 `yaml:"position,flow"`
	Rotation Vec3 `yaml:"rotation,flow,omitempty"`
	Velocity Vec3 `yaml:"velocity,flow,omitempty"`

	Mass      float64 `yaml:"mass"`
	Kinematic bool    `yaml:"kinematic,omitempty"`
	Trigger   bool    `yaml:"trigger,omitempty"`

	Friction        *float64 `yaml:"friction,omitempty"`
	Restitution     *float64 `yaml:"restitution,omitempty"`
	CollisionGroups *uint32  `yaml:"collision_groups,omitempty"`
}

// UnmarshalYAML fills the fields missing from the document with their defaults
func (b *Body) UnmarshalYAML(node *yaml.Node) error {
	type plain Body
	body := plain{Mass: actor.DefaultMass}
	if err := node.Decode(&body); err != nil {
		return err
	}

	*b = Body(body)
	return nil
}

type Scene struct {
	Physics Physics `yaml:"physics"`
	Bodies  []Body  `yaml:"bodies"`
}

// Default returns an empty scene with the default physics settings
func Default() Scene {
	return Scene{
		Physics: Physics{
			StepsPerSecond: DefaultStepsPerSecond,
			TimeSpeed:      DefaultTimeSpeed,
			Gravity:        DefaultGravity,
			GJKMaxSteps:    DefaultGJKMaxSteps,
			Workers:        DefaultWorkers,
		},
	}
}

// Parse decodes and validates a YAML scene. Missing physics settings keep
// their default value.
func Parse(data []byte) (Scene, error) {
	scene := Default()
	if err := yaml.Unmarshal(data, &scene); err != nil {
		return Scene{}, fmt.Errorf("config: decode scene: %w", err)
	}
	if err := scene.Validate(); err != nil {
		return Scene{}, err
	}

	return scene, nil
}

// Load reads and parses the scene file at path
func Load(path string) (Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scene{}, fmt.Errorf("config: read scene: %w", err)
	}

	return Parse(data)
}

// Save writes the scene as YAML to path
func Save(path string, scene Scene) error {
	data, err := yaml.Marshal(scene)
	if err != nil {
		return fmt.Errorf("config: encode scene: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// Validate reports every invalid setting of the scene
func (s Scene) Validate() error {
	var errs []error

	p := s.Physics
	if p.StepsPerSecond <= 0 || p.TimeSpeed <= 0 || p.GJKMaxSteps <= 0 || p.Workers <= 0 || p.CellSize < 0 {
		errs = append(errs, fmt.Errorf("%w: %+v", ErrInvalidPhysics, p))
	}

	for i, body := range s.Bodies {
		if err := body.validate(); err != nil {
			errs = append(errs, fmt.Errorf("body %d %q: %w", i, body.Name, err))
		}
	}

	return errors.Join(errs...)
}

func (b Body) validate() error {
	switch b.Shape {
	case ShapeBox:
		for _, h := range b.HalfExtents {
			if h <= 0 || math.IsInf(h, 0) || math.IsNaN(h) {
				return fmt.Errorf("%w: half extents %v", ErrInvalidSize, b.HalfExtents)
			}
		}
	case ShapeSphere:
		if b.Radius <= 0 || math.IsInf(b.Radius, 0) || math.IsNaN(b.Radius) {
			return fmt.Errorf("%w: radius %v", ErrInvalidSize, b.Radius)
		}
	default:
		return fmt.Errorf("%w %q", ErrInvalidShape, b.Shape)
	}

	if !b.Kinematic && (b.Mass <= 0 || math.IsInf(b.Mass, 0) || math.IsNaN(b.Mass)) {
		return fmt.Errorf("%w: %v", ErrInvalidMass, b.Mass)
	}

	return nil
}

// RigidBody creates the body described by b
func (b Body) RigidBody() (*actor.RigidBody, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	var shape actor.Shape
	switch b.Shape {
	case ShapeBox:
		shape = actor.NewBox(b.HalfExtents.Vec())
	case ShapeSphere:
		shape = actor.NewSphere(b.Radius)
	}
	if b.Friction != nil {
		shape.SetFriction(*b.Friction)
	}
	if b.Restitution != nil {
		shape.SetRestitution(*b.Restitution)
	}
	if b.CollisionGroups != nil {
		shape.SetCollisionGroups(*b.CollisionGroups)
	}

	rotation := mgl64.AnglesToQuat(
		mgl64.DegToRad(b.Rotation[0]),
		mgl64.DegToRad(b.Rotation[1]),
		mgl64.DegToRad(b.Rotation[2]),
		mgl64.XYZ,
	)
	transform := actor.NewTransformAt(b.Position.Vec(), rotation)

	var body *actor.RigidBody
	if b.Kinematic {
		body = actor.NewKinematicBody(transform, shape)
	} else {
		body = actor.NewRigidBody(transform, shape, b.Mass)
	}
	body.VelocityLinear = b.Velocity.Vec()
	body.IsTrigger = b.Trigger

	return body, nil
}

// Build creates a paused World holding the scene bodies, in the scene order,
// and its gravity.
func (s Scene) Build(logger *slog.Logger) (*quill.World, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	world := quill.NewWorld(quill.Settings{
		StepsPerSecond: s.Physics.StepsPerSecond,
		TimeSpeed:      s.Physics.TimeSpeed,
		GJKMaxSteps:    s.Physics.GJKMaxSteps,
		Workers:        s.Physics.Workers,
		CellSize:       s.Physics.CellSize,
	}, logger)

	if gravity := s.Physics.Gravity.Vec(); gravity.LenSqr() > 0 {
		if err := world.AddGlobalForce(actor.NewGlobalForceGravity(gravity)); err != nil {
			return nil, err
		}
	}

	for i, b := range s.Bodies {
		body, err := b.RigidBody()
		if err != nil {
			return nil, fmt.Errorf("body %d %q: %w", i, b.Name, err)
		}
		if err := world.AddBody(body); err != nil {
			return nil, fmt.Errorf("body %d %q: %w", i, b.Name, err)
		}
	}

	return world, nil
}
