package rectify

import (
	"fmt"
	"image"
	"math"
)

// Point is a 2D coordinate with floating-point precision
type Point struct {
	X float64
	Y float64
}

// Quad is a quadrilateral assumed to enclose a document under perspective
// distortion. Vertex order is arbitrary until normalized with OrderPoints.
type Quad [4]Point

// OrderPoints normalizes the corners of a quad into a canonical order:
// top-left, top-right, bottom-right, bottom-left. The top-left corner has
// the smallest x+y sum and the bottom-right the largest; the remaining two
// are separated by the y-x difference.
func OrderPoints(q Quad) Quad {
	var ordered Quad

	sum := func(p Point) float64 { return p.X + p.Y }
	diff := func(p Point) float64 { return p.Y - p.X }

	minSum, maxSum := 0, 0
	minDiff, maxDiff := 0, 0
	for i := 1; i < 4; i++ {
		if sum(q[i]) < sum(q[minSum]) {
			minSum = i
		}
		if sum(q[i]) > sum(q[maxSum]) {
			maxSum = i
		}
		if diff(q[i]) < diff(q[minDiff]) {
			minDiff = i
		}
		if diff(q[i]) > diff(q[maxDiff]) {
			maxDiff = i
		}
	}

	ordered[0] = q[minSum]  // top-left
	ordered[1] = q[minDiff] // top-right
	ordered[2] = q[maxSum]  // bottom-right
	ordered[3] = q[maxDiff] // bottom-left
	return ordered
}

// distance returns the euclidean distance between two points
func distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// destSize computes the output rectangle dimensions for an ordered quad as
// the max of the two opposing edge lengths on each axis. Using the max
// keeps skewed quads from collapsing their shorter edge.
func destSize(q Quad) (int, int) {
	tl, tr, br, bl := q[0], q[1], q[2], q[3]

	widthBottom := distance(br, bl)
	widthTop := distance(tr, tl)
	width := int(math.Max(widthBottom, widthTop))

	heightRight := distance(tr, br)
	heightLeft := distance(tl, bl)
	height := int(math.Max(heightRight, heightLeft))

	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return width, height
}

// homography holds the 3x3 projective transform matrix in row-major order
// with the bottom-right element fixed at 1.
type homography [9]float64

// apply maps a point through the homography
func (h homography) apply(p Point) Point {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	if w == 0 {
		w = 1e-12
	}
	return Point{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / w,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / w,
	}
}

// computeHomography solves for the projective transform mapping each src
// corner onto the corresponding dst corner. Each correspondence contributes
// two rows to an 8x8 linear system which is solved by gaussian elimination
// with partial pivoting.
func computeHomography(src, dst Quad) (homography, error) {
	var m [8][9]float64
	for i := 0; i < 4; i++ {
		x, y := src[i].X, src[i].Y
		u, v := dst[i].X, dst[i].Y
		m[2*i] = [9]float64{x, y, 1, 0, 0, 0, -u * x, -u * y, u}
		m[2*i+1] = [9]float64{0, 0, 0, x, y, 1, -v * x, -v * y, v}
	}

	// Forward elimination
	for col := 0; col < 8; col++ {
		pivot := col
		for row := col + 1; row < 8; row++ {
			if math.Abs(m[row][col]) > math.Abs(m[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(m[pivot][col]) < 1e-12 {
			return homography{}, fmt.Errorf("degenerate quad: corners are collinear")
		}
		m[col], m[pivot] = m[pivot], m[col]

		for row := col + 1; row < 8; row++ {
			factor := m[row][col] / m[col][col]
			for k := col; k < 9; k++ {
				m[row][k] -= factor * m[col][k]
			}
		}
	}

	// Back substitution
	var h homography
	for row := 7; row >= 0; row-- {
		v := m[row][8]
		for k := row + 1; k < 8; k++ {
			v -= m[row][k] * h[k]
		}
		h[row] = v / m[row][row]
	}
	h[8] = 1
	return h, nil
}

// warpPerspective maps the region of src bounded by the ordered quad onto an
// axis-aligned width x height rectangle. Destination pixels are traced back
// through the inverse transform and sampled bilinearly.
func warpPerspective(src *image.NRGBA, q Quad, width, height int) (*image.NRGBA, error) {
	dstQuad := Quad{
		{0, 0},
		{float64(width - 1), 0},
		{float64(width - 1), float64(height - 1)},
		{0, float64(height - 1)},
	}

	// Solve dst -> src so every output pixel has a defined source sample
	inv, err := computeHomography(dstQuad, q)
	if err != nil {
		return nil, err
	}

	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			sp := inv.apply(Point{float64(x), float64(y)})
			r, g, b, a := sampleBilinear(src, sp.X, sp.Y)
			i := y*dst.Stride + x*4
			dst.Pix[i] = r
			dst.Pix[i+1] = g
			dst.Pix[i+2] = b
			dst.Pix[i+3] = a
		}
	}
	return dst, nil
}

// sampleBilinear reads a subpixel value from src, clamping coordinates to
// the image borders
func sampleBilinear(src *image.NRGBA, x, y float64) (uint8, uint8, uint8, uint8) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)

	x0 = clamp(x0, 0, w-1)
	y0 = clamp(y0, 0, h-1)
	x1 := clamp(x0+1, 0, w-1)
	y1 := clamp(y0+1, 0, h-1)

	read := func(px, py int) (float64, float64, float64, float64) {
		i := py*src.Stride + px*4
		return float64(src.Pix[i]), float64(src.Pix[i+1]), float64(src.Pix[i+2]), float64(src.Pix[i+3])
	}

	r00, g00, b00, a00 := read(x0, y0)
	r10, g10, b10, a10 := read(x1, y0)
	r01, g01, b01, a01 := read(x0, y1)
	r11, g11, b11, a11 := read(x1, y1)

	lerp2 := func(v00, v10, v01, v11 float64) uint8 {
		top := v00 + (v10-v00)*fx
		bottom := v01 + (v11-v01)*fx
		return uint8(top + (bottom-top)*fy + 0.5)
	}

	return lerp2(r00, r10, r01, r11),
		lerp2(g00, g10, g01, g11),
		lerp2(b00, b10, b01, b11),
		lerp2(a00, a10, a01, a11)
}

// clamp limits v to the range [lo, hi]
func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
