// Package clip builds contact polygons from the features of two touching shapes.
package clip

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// CollinearTolerance is the largest |n·d| for which an edge is parallel to a face boundary
	CollinearTolerance = 5e-4
	// SamePointTolerance merges the ends of a clipped edge shorter than this (world units)
	SamePointTolerance = 1e-3

	outsideTolerance = 1e-6
)

// CyrusBeck clips an edge against the prism spanned by the side planes of a convex face.
// The zero value is ready to use.
type CyrusBeck struct{}

// Run returns the part of the edge inside the face prism as 0, 1 or 2 points.
// The face vertices must be convex and ordered (either winding).
func (c *CyrusBeck) Run(face []mgl64.Vec3, faceNormal mgl64.Vec3, edge []mgl64.Vec3, edgeDir mgl64.Vec3) []mgl64.Vec3 {
	if len(face) < 3 || len(edge) < 1 {
		return nil
	}

	origin := edge[0]
	length := edgeDir.Len()
	if length < 1e-12 {
		if insideAll(face, faceNormal, origin) {
			return []mgl64.Vec3{origin}
		}
		return nil
	}
	unit := edgeDir.Mul(1.0 / length)
	center := centroid(face)

	start, end := 0.0, 1.0

	for i := range face {
		v0 := face[i]
		boundary, ok := outwardBoundary(v0, face[(i+1)%len(face)], faceNormal, center)
		if !ok {
			continue
		}

		if math.Abs(boundary.Dot(unit)) < CollinearTolerance {
			// A parallel edge wholly outside this boundary misses the face
			if boundary.Dot(origin.Sub(v0)) > outsideTolerance {
				return nil
			}
			continue
		}

		gamma := boundary.Dot(edgeDir)
		t := boundary.Dot(v0.Sub(origin)) / gamma

		// Entering the face when moving against the outward normal
		if gamma < 0 {
			start = math.Max(start, t)
			continue
		}
		end = math.Min(end, t)
	}

	if start > end+1e-9 {
		return nil
	}

	first := origin.Add(edgeDir.Mul(start))
	if (end-start)*length < SamePointTolerance {
		return []mgl64.Vec3{first}
	}

	return []mgl64.Vec3{first, origin.Add(edgeDir.Mul(end))}
}

// outwardBoundary returns the unit normal of the side plane through v0 and v1,
// pointing away from the face center.
func outwardBoundary(v0, v1, faceNormal, center mgl64.Vec3) (mgl64.Vec3, bool) {
	boundary := v1.Sub(v0).Cross(faceNormal)
	length := boundary.Len()
	if length < 1e-12 {
		return mgl64.Vec3{}, false
	}
	boundary = boundary.Mul(1.0 / length)

	if boundary.Dot(center.Sub(v0)) > 0 {
		boundary = boundary.Mul(-1)
	}

	return boundary, true
}

func insideAll(face []mgl64.Vec3, faceNormal, point mgl64.Vec3) bool {
	center := centroid(face)

	for i := range face {
		boundary, ok := outwardBoundary(face[i], face[(i+1)%len(face)], faceNormal, center)
		if ok && boundary.Dot(point.Sub(face[i])) > outsideTolerance {
			return false
		}
	}

	return true
}

func centroid(points []mgl64.Vec3) mgl64.Vec3 {
	var sum mgl64.Vec3
	for _, p := range points {
		sum = sum.Add(p)
	}

	return sum.Mul(1.0 / float64(len(points)))
}
