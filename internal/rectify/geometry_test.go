package rectify

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// permutations returns every vertex ordering of a quad
func permutations(q Quad) []Quad {
	var out []Quad
	var permute func(idx []int, k int)
	permute = func(idx []int, k int) {
		if k == len(idx) {
			var p Quad
			for i, j := range idx {
				p[i] = q[j]
			}
			out = append(out, p)
			return
		}
		for i := k; i < len(idx); i++ {
			idx[k], idx[i] = idx[i], idx[k]
			permute(idx, k+1)
			idx[k], idx[i] = idx[i], idx[k]
		}
	}
	permute([]int{0, 1, 2, 3}, 0)
	return out
}

var _ = Describe("OrderPoints", func() {
	var quad Quad

	BeforeEach(func() {
		// A skewed but clearly oriented quad
		quad = Quad{
			{10, 10},   // top-left
			{200, 20},  // top-right
			{210, 180}, // bottom-right
			{5, 190},   // bottom-left
		}
	})

	It("places the minimum x+y corner at index 0 for every vertex order", func() {
		for _, p := range permutations(quad) {
			ordered := OrderPoints(p)
			Expect(ordered[0]).To(Equal(Point{10, 10}))
		}
	})

	It("places the maximum x+y corner at index 2 for every vertex order", func() {
		for _, p := range permutations(quad) {
			ordered := OrderPoints(p)
			Expect(ordered[2]).To(Equal(Point{210, 180}))
		}
	})

	It("places the top-right corner at index 1 for every vertex order", func() {
		for _, p := range permutations(quad) {
			ordered := OrderPoints(p)
			Expect(ordered[1]).To(Equal(Point{200, 20}))
		}
	})

	It("places the bottom-left corner at index 3 for every vertex order", func() {
		for _, p := range permutations(quad) {
			ordered := OrderPoints(p)
			Expect(ordered[3]).To(Equal(Point{5, 190}))
		}
	})
})

var _ = Describe("destSize", func() {
	When("the quad is an axis-aligned rectangle", func() {
		It("returns the rectangle dimensions", func() {
			q := Quad{{0, 0}, {299, 0}, {299, 199}, {0, 199}}
			w, h := destSize(q)
			Expect(w).To(Equal(299))
			Expect(h).To(Equal(199))
		})
	})

	When("the quad is skewed", func() {
		It("uses the longer of each opposing edge pair", func() {
			// Bottom edge is longer than the top, right longer than left
			q := Quad{{10, 0}, {90, 0}, {100, 100}, {0, 100}}
			w, h := destSize(q)
			Expect(w).To(Equal(100))
			Expect(h).To(BeNumerically(">=", 100))
		})
	})

	When("the quad collapses to a point", func() {
		It("never returns dimensions below one pixel", func() {
			q := Quad{{5, 5}, {5, 5}, {5, 5}, {5, 5}}
			w, h := destSize(q)
			Expect(w).To(Equal(1))
			Expect(h).To(Equal(1))
		})
	})
})

var _ = Describe("computeHomography", func() {
	When("the corners form a proper quad", func() {
		It("maps each source corner onto its destination corner", func() {
			src := Quad{{12, 8}, {410, 30}, {400, 290}, {20, 310}}
			dst := Quad{{0, 0}, {399, 0}, {399, 299}, {0, 299}}

			h, err := computeHomography(src, dst)
			Expect(err).NotTo(HaveOccurred())

			for i := 0; i < 4; i++ {
				mapped := h.apply(src[i])
				Expect(mapped.X).To(BeNumerically("~", dst[i].X, 1e-6))
				Expect(mapped.Y).To(BeNumerically("~", dst[i].Y, 1e-6))
			}
		})
	})

	When("the corners are collinear", func() {
		It("returns an error", func() {
			src := Quad{{0, 0}, {10, 10}, {20, 20}, {30, 30}}
			dst := Quad{{0, 0}, {99, 0}, {99, 99}, {0, 99}}

			_, err := computeHomography(src, dst)
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("approxPolygon", func() {
	When("the outline is a rectangle", func() {
		It("keeps exactly four corners", func() {
			rect := []Point{{0, 0}, {200, 0}, {200, 100}, {0, 100}}
			eps := 0.02 * polygonPerimeter(rect)
			Expect(approxPolygon(rect, eps)).To(HaveLen(4))
		})
	})

	When("the outline is a rectangle with beveled corners", func() {
		It("collapses the bevels down to four corners", func() {
			poly := []Point{
				{4, 0}, {196, 0}, {200, 4}, {200, 96},
				{196, 100}, {4, 100}, {0, 96}, {0, 4},
			}
			eps := 0.02 * polygonPerimeter(poly)
			Expect(approxPolygon(poly, eps)).To(HaveLen(4))
		})
	})

	When("the outline is circular", func() {
		It("does not reduce to four corners", func() {
			var poly []Point
			for i := 0; i < 16; i++ {
				angle := 2 * math.Pi * float64(i) / 16
				poly = append(poly, Point{100 + 50*math.Cos(angle), 100 + 50*math.Sin(angle)})
			}
			eps := 0.02 * polygonPerimeter(poly)
			Expect(len(approxPolygon(poly, eps))).To(BeNumerically(">", 4))
		})
	})
})

var _ = Describe("convexHull", func() {
	It("reduces a filled rectangle of points to its corners", func() {
		var points []Point
		for y := 0; y <= 10; y++ {
			for x := 0; x <= 20; x++ {
				points = append(points, Point{float64(x), float64(y)})
			}
		}
		hull := convexHull(points)
		Expect(hull).To(HaveLen(4))
		Expect(hull).To(ContainElements(
			Point{0, 0}, Point{20, 0}, Point{20, 10}, Point{0, 10},
		))
	})

	It("returns nil for collinear points", func() {
		points := []Point{{0, 0}, {1, 1}, {2, 2}, {3, 3}}
		Expect(convexHull(points)).To(BeNil())
	})
})
