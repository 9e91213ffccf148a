package rectify

import (
	"image"
	"math"
)

// grayFrom extracts the single intensity channel from an image produced by
// imaging.Grayscale, where R, G and B carry the same value.
func grayFrom(img *image.NRGBA) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	gray := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		si := y * img.Stride
		di := y * gray.Stride
		for x := 0; x < w; x++ {
			gray.Pix[di+x] = img.Pix[si+x*4]
		}
	}
	return gray
}

// canny runs a Canny-style edge detector over a smoothed grayscale image:
// Sobel gradients, non-maximum suppression along the quantized gradient
// direction, then double thresholding with hysteresis. The result is a
// binary image with edge pixels at 255.
func canny(gray *image.Gray, low, high float64) *image.Gray {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()

	edges := image.NewGray(image.Rect(0, 0, w, h))
	if w < 3 || h < 3 {
		return edges
	}

	mag := make([]float64, w*h)
	dir := make([]uint8, w*h) // quantized: 0=E/W, 1=NE/SW, 2=N/S, 3=NW/SE

	at := func(x, y int) float64 {
		return float64(gray.Pix[y*gray.Stride+x])
	}

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := -at(x-1, y-1) + at(x+1, y-1) +
				-2*at(x-1, y) + 2*at(x+1, y) +
				-at(x-1, y+1) + at(x+1, y+1)
			gy := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) +
				at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)

			i := y*w + x
			mag[i] = math.Hypot(gx, gy)

			angle := math.Atan2(gy, gx) * 180 / math.Pi
			if angle < 0 {
				angle += 180
			}
			switch {
			case angle < 22.5 || angle >= 157.5:
				dir[i] = 0
			case angle < 67.5:
				dir[i] = 1
			case angle < 112.5:
				dir[i] = 2
			default:
				dir[i] = 3
			}
		}
	}

	// Non-maximum suppression: keep only local ridge maxima along the
	// gradient direction
	const (
		weak   = 128
		strong = 255
	)
	thin := make([]uint8, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			m := mag[i]
			if m < low {
				continue
			}

			var n1, n2 float64
			switch dir[i] {
			case 0:
				n1, n2 = mag[i-1], mag[i+1]
			case 1:
				n1, n2 = mag[(y-1)*w+x+1], mag[(y+1)*w+x-1]
			case 2:
				n1, n2 = mag[(y-1)*w+x], mag[(y+1)*w+x]
			default:
				n1, n2 = mag[(y-1)*w+x-1], mag[(y+1)*w+x+1]
			}
			if m < n1 || m < n2 {
				continue
			}

			if m >= high {
				thin[i] = strong
			} else {
				thin[i] = weak
			}
		}
	}

	// Hysteresis: promote weak pixels reachable from a strong pixel
	stack := make([]int, 0, w+h)
	for i, v := range thin {
		if v == strong {
			stack = append(stack, i)
			edges.Pix[(i/w)*edges.Stride+i%w] = 255
		}
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if thin[j] == weak {
					thin[j] = strong
					edges.Pix[ny*edges.Stride+nx] = 255
					stack = append(stack, j)
				}
			}
		}
	}

	return edges
}

// dilate grows binary regions by a 3x3 structuring element: a pixel turns
// on when any of its neighbors is on
func dilate(src *image.Gray) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			on := false
			for dy := -1; dy <= 1 && !on; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					if src.Pix[ny*src.Stride+nx] != 0 {
						on = true
						break
					}
				}
			}
			if on {
				dst.Pix[y*dst.Stride+x] = 255
			}
		}
	}
	return dst
}

// erode shrinks binary regions by a 3x3 structuring element: a pixel stays
// on only when all of its in-bounds neighbors are on
func erode(src *image.Gray) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if src.Pix[y*src.Stride+x] == 0 {
				continue
			}
			on := true
			for dy := -1; dy <= 1 && on; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					if src.Pix[ny*src.Stride+nx] == 0 {
						on = false
						break
					}
				}
			}
			if on {
				dst.Pix[y*dst.Stride+x] = 255
			}
		}
	}
	return dst
}
