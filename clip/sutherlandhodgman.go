package clip

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const insideTolerance = 1e-9

// SutherlandHodgman clips a window polygon against a convex clip polygon, both
// projected on the plane of the clip polygon. Scratch buffers are reused across
// calls, so a value must not be shared between goroutines.
type SutherlandHodgman struct {
	clipPoints []mgl64.Vec2
	working    []mgl64.Vec2
	output     []mgl64.Vec2
}

// Run clips faceB against faceA and returns the overlap on faceA's plane.
// Points lying on a clip edge are kept. An empty overlap, or a degenerate
// faceA, gives an empty result.
func (s *SutherlandHodgman) Run(faceA []mgl64.Vec3, normalA mgl64.Vec3, faceB []mgl64.Vec3) []mgl64.Vec3 {
	if len(faceA) < 3 || len(faceB) == 0 || normalA.LenSqr() < 1e-24 {
		return nil
	}
	normalA = normalA.Normalize()

	xAxis := faceA[1].Sub(faceA[0])
	if xAxis.LenSqr() < 1e-24 {
		return nil
	}
	xAxis = xAxis.Normalize()
	yAxis := normalA.Cross(xAxis)

	s.clipPoints = project(s.clipPoints[:0], faceA, xAxis, yAxis)
	s.output = project(s.output[:0], faceB, xAxis, yAxis)

	area := signedArea(s.clipPoints)
	if math.Abs(area) < 1e-12 {
		return nil
	}
	orientation := 1.0
	if area < 0 {
		orientation = -1.0
	}

	for i := range s.clipPoints {
		e0 := s.clipPoints[i]
		edge := s.clipPoints[(i+1)%len(s.clipPoints)].Sub(e0)

		s.working, s.output = s.output, s.working[:0]

		side := func(p mgl64.Vec2) float64 {
			return orientation * cross2(edge, p.Sub(e0))
		}

		for j := range s.working {
			current := s.working[j]
			next := s.working[(j+1)%len(s.working)]
			currentSide := side(current)
			nextSide := side(next)

			if nextSide >= -insideTolerance {
				if currentSide < -insideTolerance {
					s.output = append(s.output, intersect(current, next, currentSide, nextSide))
				}
				s.output = append(s.output, next)
				continue
			}

			if currentSide >= -insideTolerance {
				s.output = append(s.output, intersect(current, next, currentSide, nextSide))
			}
		}

		if len(s.output) == 0 {
			return nil
		}
	}

	// Restore 3D coordinates on the plane of A
	origin := normalA.Mul(normalA.Dot(faceA[0]))
	result := make([]mgl64.Vec3, 0, len(s.output))

	for _, p := range s.output {
		point := origin.Add(xAxis.Mul(p.X())).Add(yAxis.Mul(p.Y()))
		if n := len(result); n > 0 && result[n-1].Sub(point).LenSqr() < 1e-18 {
			continue
		}
		result = append(result, point)
	}
	if n := len(result); n > 1 && result[0].Sub(result[n-1]).LenSqr() < 1e-18 {
		result = result[:n-1]
	}

	return result
}

func project(dst []mgl64.Vec2, points []mgl64.Vec3, xAxis, yAxis mgl64.Vec3) []mgl64.Vec2 {
	for _, p := range points {
		dst = append(dst, mgl64.Vec2{xAxis.Dot(p), yAxis.Dot(p)})
	}
	return dst
}

// signedArea is positive for counter-clockwise polygons
func signedArea(points []mgl64.Vec2) float64 {
	area := 0.0
	for i := range points {
		area += cross2(points[i], points[(i+1)%len(points)])
	}
	return area * 0.5
}

func cross2(a, b mgl64.Vec2) float64 {
	return a.X()*b.Y() - a.Y()*b.X()
}

func intersect(current, next mgl64.Vec2, currentSide, nextSide float64) mgl64.Vec2 {
	t := currentSide / (currentSide - nextSide)
	return current.Add(next.Sub(current).Mul(t))
}
