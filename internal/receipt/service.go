package receipt

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/Timmybu/Trip-Tally/internal/extract"
	"github.com/Timmybu/Trip-Tally/internal/ocr"
	"github.com/Timmybu/Trip-Tally/internal/rectify"
)

// IDGenerator generates unique IDs for receipts
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates IDs using UnixNano timestamp
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles receipt operations
type Service struct {
	db          DB
	engine      ocr.Engine
	storage     Storage
	rectifier   *rectify.Rectifier
	extractor   *extract.Extractor
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, engine ocr.Engine, storage Storage) *Service {
	return NewServiceWithDeps(db, engine, storage, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, engine ocr.Engine, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		engine:      engine,
		storage:     storage,
		rectifier:   rectify.NewRectifier(rectify.DefaultConfig()),
		extractor:   extract.NewExtractor(),
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// allowedExtensions are the upload types the pipeline can decode
var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".heic": true,
	".heif": true,
	".pdf":  true,
}

// allowedFile reports whether the filename has a supported extension
func allowedFile(filename string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	// Get the extension
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	// Remove special characters, keep only alphanumeric, spaces, hyphens, and underscores
	reg := regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	base = reg.ReplaceAllString(base, "")

	// Replace multiple spaces with single space
	reg = regexp.MustCompile(`\s+`)
	base = reg.ReplaceAllString(base, " ")

	// Trim spaces
	base = strings.TrimSpace(base)

	// Truncate to reasonable length (50 chars for base, plus extension)
	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}

	// If base is empty after sanitization, use a default
	if base == "" {
		base = "receipt"
	}

	return base + ext
}

// ProcessUpload runs an uploaded receipt through the full pipeline: decode,
// rectify, OCR, field extraction, then persists the record and its image
// artifacts. Stored files are removed again if a later step fails.
func (s *Service) ProcessUpload(ctx context.Context, filename string, data []byte, contentType, tripID string) (*Receipt, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty file uploaded")
	}
	if !allowedFile(filename) {
		return nil, fmt.Errorf("unsupported file type: %q", filepath.Ext(filename))
	}
	if tripID != "" {
		if _, err := s.db.GetTrip(tripID); err != nil {
			return nil, fmt.Errorf("getting trip: %w", err)
		}
	}

	// Generate unique ID
	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	// Sanitize filename to clean up phone-generated long filenames
	cleanFilename := sanitizeFilename(filename)
	ext := strings.ToLower(filepath.Ext(cleanFilename))

	// Decode and rectify before anything is stored
	img, err := rectify.Decode(data, contentType)
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	warped, binarized, err := s.rectifier.Rectify(img)
	if err != nil {
		slog.Error("Failed to rectify receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		return nil, fmt.Errorf("rectifying receipt: %w", err)
	}

	warpedJPEG, err := rectify.EncodeJPEG(warped, 85)
	if err != nil {
		return nil, fmt.Errorf("encoding warped image: %w", err)
	}
	binarizedPNG, err := rectify.EncodePNG(binarized)
	if err != nil {
		return nil, fmt.Errorf("encoding binarized image: %w", err)
	}

	// Save the original and both derived images
	stored := make([]string, 0, 3)
	cleanup := func() {
		for _, path := range stored {
			if err := s.storage.Delete(path); err != nil {
				slog.Warn("Failed to delete file", "filename", path, "error", err)
			}
		}
	}

	for _, artifact := range []struct {
		filename string
		data     []byte
	}{
		{originalFilename(id, ext), data},
		{warpedFilename(id), warpedJPEG},
		{binarizedFilename(id), binarizedPNG},
	} {
		path, err := s.storage.Save(artifact.filename, artifact.data)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("saving file: %w", err)
		}
		stored = append(stored, path)
	}

	// Read text from the binarized image
	lines, err := s.engine.Recognize(ctx, binarizedPNG)
	if err != nil {
		slog.Error("Failed to recognize receipt text",
			"filename", filename,
			"file_size", len(data),
			"error", err,
		)
		cleanup()
		return nil, fmt.Errorf("recognizing text: %w", err)
	}

	// Field extraction never fails; unread fields come back empty
	record := s.extractor.Extract(ocr.Texts(lines))

	items := make([]Item, 0, len(record.Items))
	for _, item := range record.Items {
		items = append(items, Item{Line: item.Line, Amount: item.Amount})
	}

	receipt := &Receipt{
		ID:        id,
		Filename:  cleanFilename,
		Merchant:  record.Merchant,
		Date:      record.Date,
		Total:     record.Total,
		Tax:       record.Tax,
		Items:     items,
		RawText:   record.RawText,
		TripID:    tripID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Save to database
	if err := s.db.SaveReceipt(receipt); err != nil {
		cleanup()
		return nil, fmt.Errorf("saving receipt to database: %w", err)
	}

	return receipt, nil
}

// GetReceipt retrieves a receipt by ID
func (s *Service) GetReceipt(id string) (*Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return receipt, nil
}

// ListReceipts returns all receipts, or only those on a trip when tripID is
// not empty
func (s *Service) ListReceipts(tripID string) ([]*Receipt, error) {
	receipts, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	if tripID == "" {
		return receipts, nil
	}

	filtered := make([]*Receipt, 0)
	for _, receipt := range receipts {
		if receipt.TripID == tripID {
			filtered = append(filtered, receipt)
		}
	}
	return filtered, nil
}

// UpdateReceiptParams carries the editable fields of a receipt. Nil fields
// are left unchanged.
type UpdateReceiptParams struct {
	Merchant *string  `json:"merchant"`
	Date     *string  `json:"date"`
	Total    *float64 `json:"total"`
	Tax      *float64 `json:"tax"`
	TripID   *string  `json:"trip_id"`
}

// UpdateReceipt edits a receipt's extracted fields or moves it to another trip
func (s *Service) UpdateReceipt(id string, params UpdateReceiptParams) (*Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}

	if params.Merchant != nil {
		receipt.Merchant = *params.Merchant
	}
	if params.Date != nil {
		receipt.Date = *params.Date
	}
	if params.Total != nil {
		receipt.Total = params.Total
	}
	if params.Tax != nil {
		receipt.Tax = params.Tax
	}
	if params.TripID != nil {
		if *params.TripID != "" {
			if _, err := s.db.GetTrip(*params.TripID); err != nil {
				return nil, fmt.Errorf("getting trip: %w", err)
			}
		}
		receipt.TripID = *params.TripID
	}
	receipt.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveReceipt(receipt); err != nil {
		return nil, fmt.Errorf("saving receipt to database: %w", err)
	}
	return receipt, nil
}

// DeleteReceipt removes a receipt and its stored images
func (s *Service) DeleteReceipt(id string) error {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return fmt.Errorf("getting receipt for deletion: %w", err)
	}

	for _, path := range artifactFilenames(receipt) {
		if err := s.storage.Delete(path); err != nil {
			// Log error but continue with database deletion
			slog.Warn("Failed to delete file", "filename", path, "error", err)
		}
	}

	// Delete from database
	if err := s.db.DeleteReceipt(id); err != nil {
		return fmt.Errorf("deleting receipt from database: %w", err)
	}
	return nil
}

// GetReceiptImage retrieves one stored image of a receipt along with its
// content type. An empty variant serves the warped display copy.
func (s *Service) GetReceiptImage(id, variant string) ([]byte, string, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt: %w", err)
	}

	var filename, contentType string
	switch variant {
	case VariantOriginal:
		ext := strings.ToLower(filepath.Ext(receipt.Filename))
		filename = originalFilename(receipt.ID, ext)
		contentType = contentTypeForExtension(ext)
	case VariantWarped, "":
		filename = warpedFilename(receipt.ID)
		contentType = "image/jpeg"
	case VariantBinarized:
		filename = binarizedFilename(receipt.ID)
		contentType = "image/png"
	default:
		return nil, "", fmt.Errorf("unknown image variant: %s", variant)
	}

	data, err := s.storage.Get(filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt image: %w", err)
	}
	return data, contentType, nil
}

// CreateTrip creates a new trip
func (s *Service) CreateTrip(name string) (*Trip, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("trip name is required")
	}

	trip := &Trip{
		ID:        s.idGenerator.Generate(),
		Name:      name,
		CreatedAt: s.timeSource.Now(),
	}
	if err := s.db.SaveTrip(trip); err != nil {
		return nil, fmt.Errorf("saving trip: %w", err)
	}
	return trip, nil
}

// GetTrip retrieves a trip by ID
func (s *Service) GetTrip(id string) (*Trip, error) {
	trip, err := s.db.GetTrip(id)
	if err != nil {
		return nil, fmt.Errorf("getting trip: %w", err)
	}
	return trip, nil
}

// GetTripWithReceipts retrieves a trip along with its associated receipts
func (s *Service) GetTripWithReceipts(id string) (*Trip, []*Receipt, error) {
	trip, err := s.db.GetTrip(id)
	if err != nil {
		return nil, nil, fmt.Errorf("getting trip: %w", err)
	}

	receipts, err := s.ListReceipts(id)
	if err != nil {
		return nil, nil, err
	}
	return trip, receipts, nil
}

// ListTrips returns all trips
func (s *Service) ListTrips() ([]*Trip, error) {
	trips, err := s.db.ListTrips()
	if err != nil {
		return nil, fmt.Errorf("listing trips: %w", err)
	}
	return trips, nil
}

// DeleteTrip removes a trip and detaches its receipts
func (s *Service) DeleteTrip(id string) error {
	if _, err := s.db.GetTrip(id); err != nil {
		return fmt.Errorf("getting trip for deletion: %w", err)
	}

	receipts, err := s.db.ListReceipts()
	if err != nil {
		return fmt.Errorf("listing receipts: %w", err)
	}
	now := s.timeSource.Now()
	for _, receipt := range receipts {
		if receipt.TripID != id {
			continue
		}
		receipt.TripID = ""
		receipt.UpdatedAt = now
		if err := s.db.SaveReceipt(receipt); err != nil {
			return fmt.Errorf("updating receipt %s: %w", receipt.ID, err)
		}
	}

	if err := s.db.DeleteTrip(id); err != nil {
		return fmt.Errorf("deleting trip from database: %w", err)
	}
	return nil
}
