package rectify

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"strings"

	chaiwebp "github.com/chai2010/webp"
	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
	_ "golang.org/x/image/bmp"  // Register BMP decoder
	_ "golang.org/x/image/tiff" // Register TIFF decoder
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// Decode turns uploaded receipt bytes into a pixel grid. Standard raster
// formats go through the registered stdlib and x/image decoders, HEIC and
// PDF need their own handling: HEIC via the pure Go decoder, PDF by
// rendering the first page (receipts are single page). Empty or
// undecodable input fails with ErrInvalidImage.
func Decode(data []byte, contentType string) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrInvalidImage
	}

	mimeType := strings.ToLower(strings.TrimSpace(contentType))

	if mimeType == "application/pdf" || isPDFData(data) {
		return pdfToImage(data)
	}

	if isHEICData(data) || isHEICMimeType(mimeType) {
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: decoding HEIC: %v", ErrInvalidImage, err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		// Some WebP variants are rejected by x/image; retry with the
		// cgo-free chai2010 decoder before giving up
		if wimg, werr := chaiwebp.Decode(bytes.NewReader(data)); werr == nil {
			return wimg, nil
		}
		return nil, fmt.Errorf("%w: decoding image: %v", ErrInvalidImage, err)
	}
	return img, nil
}

// pdfToImage renders the first page of a PDF as an image
func pdfToImage(data []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("%w: opening PDF: %v", ErrInvalidImage, err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("%w: rendering PDF page: %v", ErrInvalidImage, err)
	}
	return img, nil
}

// isPDFData checks for the PDF header magic
func isPDFData(data []byte) bool {
	return len(data) >= 5 && string(data[:5]) == "%PDF-"
}

// isHEICData checks if the data is in HEIC/HEIF format by looking for an
// ftyp box with a HEIC-related brand
func isHEICData(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	if string(data[4:8]) != "ftyp" {
		return false
	}
	brand := string(data[8:12])
	return brand == "heic" || brand == "heif" || brand == "mif1" || brand == "msf1"
}

// isHEICMimeType checks if the MIME type indicates HEIC/HEIF format
func isHEICMimeType(mimeType string) bool {
	return mimeType == "image/heic" || mimeType == "image/heif" ||
		strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}
