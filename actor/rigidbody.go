package actor

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	DefaultMass = 1.0

	// DefaultDamping is the fraction of velocity kept after one second
	DefaultDamping = 0.8

	LocationSleepThreshold = 2.0e-5
	RotationSleepThreshold = 1.5e-5
	SleepTimeout           = 0.2
)

var (
	ErrInvalidMass = errors.New("mass must be positive and finite")
	ErrNilShape    = errors.New("shape is nil")
)

var nextBodyID atomic.Uint64

// RigidBody represents a rigid body in the physics simulation
type RigidBody struct {
	// ID is unique per process and stable for the body lifetime
	ID uint64

	VelocityLinear  mgl64.Vec3 // m/s
	VelocityAngular mgl64.Vec3 // rad/s, direction is the axis

	// Damping values are the fraction of velocity kept per second, in [0, 1]
	DampingLinear  float64
	DampingAngular float64

	// IsTrigger bodies report overlaps but are never resolved
	IsTrigger bool

	location       mgl64.Vec3
	locationBefore mgl64.Vec3
	rotation       mgl64.Quat
	rotationBefore mgl64.Quat
	transform      Transform

	mass        float64
	massInverse float64
	// world space, refreshed with the transform
	inertiaTensorInverse mgl64.Mat3

	totalForce  mgl64.Vec3
	totalTorque mgl64.Vec3

	isAwake      bool
	isCanSleep   bool
	isKinematic  bool
	sleepTimeout float64

	shape Shape
}

// NewRigidBody creates an awake dynamic body. A non positive or infinite mass
// falls back to DefaultMass.
func NewRigidBody(transform Transform, shape Shape, mass float64) *RigidBody {
	if mass <= 0 || math.IsInf(mass, 0) || math.IsNaN(mass) {
		mass = DefaultMass
	}

	rb := &RigidBody{
		ID:                   nextBodyID.Add(1),
		DampingLinear:        DefaultDamping,
		DampingAngular:       DefaultDamping,
		location:             transform.Position,
		locationBefore:       transform.Position,
		rotation:             transform.Rotation.Normalize(),
		rotationBefore:       transform.Rotation.Normalize(),
		mass:                 mass,
		massInverse:          1.0 / mass,
		inertiaTensorInverse: mgl64.Ident3(),
		isAwake:              true,
		isCanSleep:           true,
		shape:                shape,
	}
	rb.transform = NewTransformAt(rb.location, rb.rotation)

	if shape != nil {
		shape.CalculateInertiaTensor(mass)
		rb.updateCacheData()
	}

	return rb
}

// NewKinematicBody creates a body moved only by its velocity and SetLocation
func NewKinematicBody(transform Transform, shape Shape) *RigidBody {
	rb := NewRigidBody(transform, shape, DefaultMass)
	rb.EnableKinematic()

	return rb
}

func (rb *RigidBody) Location() mgl64.Vec3 {
	return rb.location
}

// SetLocation moves the body and refreshes the shape cache (world transform and bounds).
func (rb *RigidBody) SetLocation(location mgl64.Vec3) {
	rb.location = location
	rb.updateCacheData()
}

func (rb *RigidBody) Rotation() mgl64.Quat {
	return rb.rotation
}

func (rb *RigidBody) SetRotation(rotation mgl64.Quat) {
	rb.rotation = rotation.Normalize()
	rb.rotationBefore = rb.rotation
	rb.updateCacheData()
}

// Transform returns the body world transform
func (rb *RigidBody) Transform() Transform {
	return rb.transform
}

func (rb *RigidBody) Shape() Shape {
	return rb.shape
}

func (rb *RigidBody) HasShape() bool {
	return rb.shape != nil
}

// SetShape attaches a shape. A nil shape detaches the current one.
// A shape caches the world transform of its last owner, so two bodies of the
// same world must not share one.
func (rb *RigidBody) SetShape(shape Shape) {
	rb.shape = shape
	if shape == nil {
		return
	}

	shape.CalculateInertiaTensor(rb.mass)
	rb.updateCacheData()
}

func (rb *RigidBody) Mass() float64 {
	return rb.mass
}

// MassInverse is 0 for kinematic bodies
func (rb *RigidBody) MassInverse() float64 {
	if rb.isKinematic {
		return 0
	}

	return rb.massInverse
}

func (rb *RigidBody) SetMass(mass float64) error {
	if mass <= 0 || math.IsInf(mass, 0) || math.IsNaN(mass) {
		return fmt.Errorf("set mass %v: %w", mass, ErrInvalidMass)
	}

	rb.mass = mass
	rb.massInverse = 1.0 / mass

	if rb.shape != nil {
		rb.shape.CalculateInertiaTensor(mass)
		rb.updateCacheData()
	}

	return nil
}

// GetInverseInertiaWorld returns R * I_local^-1 * R^T, or zero for kinematic bodies
func (rb *RigidBody) GetInverseInertiaWorld() mgl64.Mat3 {
	if rb.isKinematic {
		return mgl64.Mat3{}
	}

	return rb.inertiaTensorInverse
}

func (rb *RigidBody) TotalForce() mgl64.Vec3 {
	return rb.totalForce
}

func (rb *RigidBody) TotalTorque() mgl64.Vec3 {
	return rb.totalTorque
}

// AddForce accumulates a force applied at a world point until the next reset.
// The lever arm from the body location adds torque.
func (rb *RigidBody) AddForce(force mgl64.Vec3, point mgl64.Vec3) {
	if rb.isKinematic {
		return
	}

	rb.totalForce = rb.totalForce.Add(force)
	rb.totalTorque = rb.totalTorque.Add(point.Sub(rb.location).Cross(force))
	rb.Awake()
}

// AddImpulse changes the velocities immediately. The linear part does not depend on the point.
func (rb *RigidBody) AddImpulse(impulse mgl64.Vec3, point mgl64.Vec3) {
	if rb.isKinematic {
		return
	}

	rb.VelocityLinear = rb.VelocityLinear.Add(impulse.Mul(rb.massInverse))

	angularImpulse := point.Sub(rb.location).Cross(impulse)
	rb.VelocityAngular = rb.VelocityAngular.Add(rb.inertiaTensorInverse.Mul3x1(angularImpulse))
	rb.Awake()
}

func (rb *RigidBody) ResetAccumulators() {
	rb.totalForce = mgl64.Vec3{}
	rb.totalTorque = mgl64.Vec3{}
}

func (rb *RigidBody) IsKinematic() bool {
	return rb.isKinematic
}

func (rb *RigidBody) EnableKinematic() {
	rb.isKinematic = true
}

func (rb *RigidBody) DisableKinematic() {
	rb.isKinematic = false
}

func (rb *RigidBody) IsAwake() bool {
	return rb.isAwake
}

func (rb *RigidBody) IsCanSleep() bool {
	return rb.isCanSleep
}

func (rb *RigidBody) EnableSleep() {
	rb.isCanSleep = true
}

// DisableSleep also wakes the body up
func (rb *RigidBody) DisableSleep() {
	rb.isCanSleep = false
	if !rb.isAwake {
		rb.Awake()
	}
}

func (rb *RigidBody) Awake() {
	rb.isAwake = true
	rb.sleepTimeout = 0
}

func (rb *RigidBody) Sleep() {
	rb.isAwake = false
	rb.VelocityLinear = mgl64.Vec3{}
	rb.VelocityAngular = mgl64.Vec3{}
}

// Integrate advances the body by dt. Dynamic bodies use the accumulated force and
// torque and are skipped while asleep or without a shape. Kinematic bodies only
// follow their velocities.
func (rb *RigidBody) Integrate(dt float64) {
	if rb.isKinematic {
		rb.integratePose(dt)
		return
	}

	if !rb.isAwake || rb.shape == nil {
		return
	}

	rb.VelocityLinear = rb.VelocityLinear.Add(rb.totalForce.Mul(rb.massInverse * dt))
	rb.VelocityAngular = rb.VelocityAngular.Add(rb.inertiaTensorInverse.Mul3x1(rb.totalTorque).Mul(dt))

	rb.VelocityLinear = rb.VelocityLinear.Mul(math.Pow(rb.DampingLinear, dt))
	rb.VelocityAngular = rb.VelocityAngular.Mul(math.Pow(rb.DampingAngular, dt))

	rb.integratePose(dt)
	rb.runSleepLogic(dt)
}

func (rb *RigidBody) integratePose(dt float64) {
	rb.locationBefore = rb.location
	rb.location = rb.location.Add(rb.VelocityLinear.Mul(dt))

	// q' = (1 + 0.5 * dt * omega) * q
	spin := mgl64.Quat{W: 1, V: rb.VelocityAngular.Mul(0.5 * dt)}
	rb.rotationBefore = rb.rotation
	rb.rotation = spin.Mul(rb.rotation).Normalize()

	rb.updateCacheData()
}

func (rb *RigidBody) runSleepLogic(dt float64) {
	if !rb.isCanSleep {
		return
	}

	if rb.location.Sub(rb.locationBefore).LenSqr() > LocationSleepThreshold {
		rb.sleepTimeout = 0
		return
	}

	rotationDiff := rb.rotation.Sub(rb.rotationBefore)
	if rotationDiff.Dot(rotationDiff) > RotationSleepThreshold {
		rb.sleepTimeout = 0
		return
	}

	rb.sleepTimeout += dt
	if rb.sleepTimeout >= SleepTimeout {
		rb.Sleep()
	}
}

func (rb *RigidBody) updateCacheData() {
	rb.rotation = rb.rotation.Normalize()
	rb.transform = NewTransformAt(rb.location, rb.rotation)

	if rb.shape == nil {
		return
	}

	// I_world^-1 = R * I_local^-1 * R^T
	r := rb.rotation.Mat4().Mat3()
	rb.inertiaTensorInverse = r.Mul3(rb.shape.GetInertiaTensorInverse()).Mul3(r.Transpose())

	rb.shape.UpdateCacheData(rb.transform)
}
