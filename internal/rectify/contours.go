package rectify

import (
	"image"
	"math"
	"sort"
)

// contour is the convex outline of one connected edge region
type contour struct {
	hull      []Point
	area      float64
	perimeter float64
}

// findContours collects the 8-connected components of a binary edge map and
// returns their convex outlines sorted by enclosed area, largest first.
// Components too small to outline a document are skipped.
func findContours(edges *image.Gray) []contour {
	b := edges.Bounds()
	w, h := b.Dx(), b.Dy()

	visited := make([]bool, w*h)
	var contours []contour

	stack := make([]int, 0, 256)
	for start := 0; start < w*h; start++ {
		if visited[start] || edges.Pix[(start/w)*edges.Stride+start%w] == 0 {
			continue
		}

		// Flood-fill one component, collecting its pixel coordinates
		var points []Point
		visited[start] = true
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := i%w, i/w
			points = append(points, Point{float64(x), float64(y)})

			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					j := ny*w + nx
					if !visited[j] && edges.Pix[ny*edges.Stride+nx] != 0 {
						visited[j] = true
						stack = append(stack, j)
					}
				}
			}
		}

		hull := convexHull(points)
		if len(hull) < 3 {
			continue
		}
		contours = append(contours, contour{
			hull:      hull,
			area:      polygonArea(hull),
			perimeter: polygonPerimeter(hull),
		})
	}

	sort.Slice(contours, func(i, j int) bool {
		return contours[i].area > contours[j].area
	})
	return contours
}

// convexHull computes the convex outline of a point set with the monotone
// chain algorithm. Collinear points are dropped so a clean rectangle
// reduces to its four corners.
func convexHull(points []Point) []Point {
	if len(points) < 3 {
		return nil
	}

	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})

	cross := func(o, a, b Point) float64 {
		return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
	}

	var lower []Point
	for _, p := range sorted {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}

	var upper []Point
	for i := len(sorted) - 1; i >= 0; i-- {
		p := sorted[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}

	hull := append(lower[:len(lower)-1], upper[:len(upper)-1]...)
	if len(hull) < 3 {
		return nil
	}
	return hull
}

// polygonArea computes the enclosed area of a closed polygon by the
// shoelace formula
func polygonArea(poly []Point) float64 {
	var area float64
	n := len(poly)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		area += poly[i].X*poly[j].Y - poly[j].X*poly[i].Y
	}
	return math.Abs(area) / 2
}

// polygonPerimeter computes the closed-path length of a polygon
func polygonPerimeter(poly []Point) float64 {
	var p float64
	n := len(poly)
	for i := 0; i < n; i++ {
		p += distance(poly[i], poly[(i+1)%n])
	}
	return p
}

// approxPolygon simplifies a closed polygon with the Douglas-Peucker
// algorithm: the outline is split at its two farthest-apart vertices and
// each half is reduced until no dropped vertex deviates more than epsilon
// from the simplified path.
func approxPolygon(poly []Point, epsilon float64) []Point {
	n := len(poly)
	if n < 3 {
		return poly
	}

	// Anchor the split on the farthest vertex pair
	ai, bi := 0, 1
	maxDist := 0.0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if d := distance(poly[i], poly[j]); d > maxDist {
				maxDist = d
				ai, bi = i, j
			}
		}
	}

	var chainA, chainB []Point
	for i := ai; ; i = (i + 1) % n {
		chainA = append(chainA, poly[i])
		if i == bi {
			break
		}
	}
	for i := bi; ; i = (i + 1) % n {
		chainB = append(chainB, poly[i])
		if i == ai {
			break
		}
	}

	simpA := douglasPeucker(chainA, epsilon)
	simpB := douglasPeucker(chainB, epsilon)

	// Chain endpoints are shared; drop them from the second half
	out := append([]Point{}, simpA...)
	if len(simpB) > 2 {
		out = append(out, simpB[1:len(simpB)-1]...)
	}
	return out
}

// douglasPeucker reduces an open polyline, keeping endpoints
func douglasPeucker(points []Point, epsilon float64) []Point {
	if len(points) < 3 {
		return points
	}

	first, last := points[0], points[len(points)-1]
	maxDist := 0.0
	index := 0
	for i := 1; i < len(points)-1; i++ {
		if d := pointSegmentDistance(points[i], first, last); d > maxDist {
			maxDist = d
			index = i
		}
	}

	if maxDist <= epsilon {
		return []Point{first, last}
	}

	left := douglasPeucker(points[:index+1], epsilon)
	right := douglasPeucker(points[index:], epsilon)
	return append(left[:len(left)-1], right...)
}

// pointSegmentDistance returns the distance from p to the segment ab
func pointSegmentDistance(p, a, b Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return distance(p, a)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return distance(p, Point{a.X + t*dx, a.Y + t*dy})
}

// findDocumentQuad scans contours from largest to smallest for the first
// whose simplified outline has exactly four corners. Larger but noisier
// outlines win over smaller clean ones.
func findDocumentQuad(edges *image.Gray, approxFactor float64) (Quad, bool) {
	for _, c := range findContours(edges) {
		approx := approxPolygon(c.hull, approxFactor*c.perimeter)
		if len(approx) == 4 {
			return Quad{approx[0], approx[1], approx[2], approx[3]}, true
		}
	}
	return Quad{}, false
}
