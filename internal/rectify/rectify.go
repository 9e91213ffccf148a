package rectify

import (
	"errors"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// ErrInvalidImage is returned when the input image is empty or cannot be
// decoded
var ErrInvalidImage = errors.New("rectify: invalid image")

// Config holds the tuning constants for document detection and
// binarization
type Config struct {
	// MaxDetectSide caps the longer image side during edge detection.
	// Geometry is mapped back to full resolution before warping.
	MaxDetectSide int

	// BlurKernel is the Gaussian kernel size applied before edge
	// detection to keep sensor noise from reading as edges
	BlurKernel int

	// CannyLow and CannyHigh are the edge detector's hysteresis
	// thresholds
	CannyLow  float64
	CannyHigh float64

	// ApproxFactor is the polygon approximation tolerance as a fraction
	// of the contour perimeter
	ApproxFactor float64

	// ThresholdBlock is the local window size for adaptive binarization
	ThresholdBlock int

	// ThresholdOffset is subtracted from the local mean before
	// comparing; larger values push more pixels to white
	ThresholdOffset float64
}

// DefaultConfig returns the detection constants tuned for phone photos of
// receipts
func DefaultConfig() Config {
	return Config{
		MaxDetectSide:   1000,
		BlurKernel:      5,
		CannyLow:        50,
		CannyHigh:       150,
		ApproxFactor:    0.02,
		ThresholdBlock:  31,
		ThresholdOffset: 10,
	}
}

// Rectifier locates the document boundary in a photographed receipt and
// produces a top-down warped copy plus a binarized copy for OCR
type Rectifier struct {
	cfg Config
}

// NewRectifier creates a Rectifier with the given configuration
func NewRectifier(cfg Config) *Rectifier {
	return &Rectifier{cfg: cfg}
}

// Rectify runs the full pipeline on a decoded image: locate the document
// quad, unwarp it to a top-down view at original resolution, and binarize
// the result. When no document boundary is found the full frame is used,
// so any non-empty image produces output. The warped color image is meant
// for display, the binarized one for text recognition.
func (r *Rectifier) Rectify(img image.Image) (*image.NRGBA, *image.Gray, error) {
	if img == nil {
		return nil, nil, ErrInvalidImage
	}
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, nil, ErrInvalidImage
	}

	src := imaging.Clone(img)
	quad, scale := r.detectQuad(src)

	// Map detection-space corners back to original resolution
	ordered := OrderPoints(quad)
	if scale != 1 {
		for i := range ordered {
			ordered[i].X /= scale
			ordered[i].Y /= scale
		}
	}

	warped := r.warp(src, ordered)
	binarized := r.binarize(warped)
	return warped, binarized, nil
}

// detectQuad finds the document boundary on a possibly downscaled copy of
// the image and returns it together with the applied scale factor
func (r *Rectifier) detectQuad(src *image.NRGBA) (Quad, float64) {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	scale := 1.0
	detect := src
	if long := maxInt(w, h); long > r.cfg.MaxDetectSide {
		scale = float64(r.cfg.MaxDetectSide) / float64(long)
		detect = imaging.Resize(src, int(math.Round(float64(w)*scale)), int(math.Round(float64(h)*scale)), imaging.Lanczos)
	}

	gray := grayFrom(imaging.Blur(imaging.Grayscale(detect), gaussianSigma(r.cfg.BlurKernel)))
	edges := canny(gray, r.cfg.CannyLow, r.cfg.CannyHigh)
	closed := erode(dilate(edges))

	quad, ok := findDocumentQuad(closed, r.cfg.ApproxFactor)
	if !ok {
		quad = fullFrame(detect.Bounds())
	}
	return quad, scale
}

// warp unwarps the quad region to an axis-aligned rectangle. A degenerate
// detected quad falls back to the full frame, and a degenerate frame
// (single row or column) falls back to the unmodified image.
func (r *Rectifier) warp(src *image.NRGBA, ordered Quad) *image.NRGBA {
	w, h := destSize(ordered)
	warped, err := warpPerspective(src, ordered, w, h)
	if err == nil {
		return warped
	}

	full := OrderPoints(fullFrame(src.Bounds()))
	w, h = destSize(full)
	warped, err = warpPerspective(src, full, w, h)
	if err == nil {
		return warped
	}
	return src
}

// binarize converts the warped image to an OCR-ready black and white copy
// using a Gaussian-weighted local mean, which tolerates the uneven
// lighting of receipt photos better than a global threshold
func (r *Rectifier) binarize(warped *image.NRGBA) *image.Gray {
	gray := grayFrom(imaging.Grayscale(warped))
	localMean := grayFrom(imaging.Blur(gray, gaussianSigma(r.cfg.ThresholdBlock)))

	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*gray.Stride + x
			threshold := float64(localMean.Pix[y*localMean.Stride+x]) - r.cfg.ThresholdOffset
			if float64(gray.Pix[i]) > threshold {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}

// fullFrame returns the quad covering an entire image
func fullFrame(b image.Rectangle) Quad {
	w, h := float64(b.Dx()), float64(b.Dy())
	return Quad{
		{0, 0},
		{w - 1, 0},
		{w - 1, h - 1},
		{0, h - 1},
	}
}

// gaussianSigma derives a blur sigma from an odd kernel size using the
// same relation OpenCV applies when none is given, so kernel-size
// constants keep their conventional meaning
func gaussianSigma(ksize int) float64 {
	return 0.3*(float64(ksize-1)*0.5-1) + 0.8
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
