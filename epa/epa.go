// Package epa implements the Expanding Polytope Algorithm for computing penetration depth.
//
// EPA is run after GJK detects a collision to determine the penetration depth and
// the contact normal. It expands a polytope (starting from GJK's final simplex)
// toward the boundary of the Minkowski difference, finding the closest face which
// gives the Minimum Translation Vector (MTV) to separate the shapes.
//
// References:
//   - Van den Bergen: "Proximity Queries and Penetration Depth Computation on 3D Game Objects" (2001)
package epa

import (
	"errors"
	"fmt"
	"math"

	"github.com/akmonengine/quill/actor"
	"github.com/akmonengine/quill/gjk"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// MaxIterations limits polytope expansion.
	// Typical convergence: 5-15 iterations for simple shapes.
	MaxIterations = 32

	// ConvergenceTolerance is the distance gain under which the closest face
	// is taken as the boundary of the Minkowski difference.
	ConvergenceTolerance = 1e-3

	// NormalSnapThreshold is used to clamp nearly-zero normal components to exactly zero.
	NormalSnapThreshold = 1e-8

	visibilityEpsilon = 1e-10

	// squared sine under which the initial tetrahedron is flat, as in GJK
	flatEpsilon = 1e-14

	polytopeInitialCapacity = 16
)

var (
	ErrInvalidSimplex = errors.New("epa: simplex is not a tetrahedron")
	ErrNoConvergence  = errors.New("epa: failed to converge")
)

// Result is the minimum translation separating the shapes: moving B by
// Normal*Depth (or A by the opposite) leaves them touching.
type Result struct {
	Normal     mgl64.Vec3 // unit, from A toward B
	Depth      float64
	Iterations int
}

// EPA computes the penetration of two overlapping shapes from the tetrahedron
// GJK ended with.
//
// Algorithm overview:
//  1. Build the polytope faces from the simplex
//  2. Find the face closest to the origin
//  3. Get the support point along its normal
//  4. If the point does not improve the distance → done
//  5. Otherwise, add the point and rebuild the faces around it
func EPA(shapeA, shapeB actor.Shape, simplex *gjk.Simplex) (Result, error) {
	builder := polytopeBuilderPool.Get().(*PolytopeBuilder)
	defer polytopeBuilderPool.Put(builder)
	builder.Reset()

	if err := builder.BuildInitialFaces(simplex); err != nil {
		return Result{}, err
	}

	for i := 1; i <= MaxIterations; i++ {
		closestIndex := builder.FindClosestFaceIndex()
		if closestIndex < 0 {
			return Result{}, fmt.Errorf("%w: empty polytope", ErrNoConvergence)
		}
		closest := builder.faces[closestIndex]

		support := actor.FindSupportPoint(closest.Normal, shapeA, shapeB)
		distance := support.Dot(closest.Normal)

		if distance-closest.Distance < ConvergenceTolerance || !builder.AddPoint(support) {
			return Result{
				Normal:     snapNormalToAxis(closest.Normal),
				Depth:      closest.Distance,
				Iterations: i,
			}, nil
		}
	}

	return Result{}, fmt.Errorf("%w after %d iterations", ErrNoConvergence, MaxIterations)
}

// snapNormalToAxis clamps nearly-zero components of a normal vector to exactly zero,
// then renormalizes it. Axis aligned contacts (box on ground) stay exactly aligned.
func snapNormalToAxis(normal mgl64.Vec3) mgl64.Vec3 {
	for i := 0; i < 3; i++ {
		if math.Abs(normal[i]) < NormalSnapThreshold {
			normal[i] = 0
		}
	}

	length := normal.Len()
	if length < 1e-8 {
		return mgl64.Vec3{0, 1, 0}
	}

	return normal.Mul(1.0 / length)
}
