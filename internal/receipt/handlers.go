package receipt

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
)

// maxUploadSize caps receipt uploads at 20MB
const maxUploadSize = int64(20 << 20)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleListReceipts returns a list of all receipts, optionally filtered by
// trip via the trip_id query parameter
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.service.ListReceipts(r.URL.Query().Get("trip_id"))
	if err != nil {
		slog.Error("Error listing receipts", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Ensure we always return an array, not nil
	if receipts == nil {
		receipts = []*Receipt{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(receipts); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleUploadReceipt handles receipt upload
func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		setCORSHeaders(w)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		errorMsg := "Error parsing form"
		if strings.Contains(err.Error(), "request body too large") {
			errorMsg = "File is too large. Maximum size is 20MB. Please compress or resize your image."
		}
		json.NewEncoder(w).Encode(map[string]string{
			"error": errorMsg,
		})
		return
	}

	f, header, err := r.FormFile("receipt")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		setCORSHeaders(w)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		errorMsg := "No file provided"
		if err.Error() == "http: no such file" {
			errorMsg = "No file was selected. Please choose a file to upload."
		}
		json.NewEncoder(w).Encode(map[string]string{
			"error": errorMsg,
		})
		return
	}
	defer f.Close()

	// Read file data
	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		setCORSHeaders(w)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "Error reading file. Please try again.",
		})
		return
	}

	// Determine content type, falling back to the filename extension for
	// clients that do not set one on the part
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = contentTypeForExtension(strings.ToLower(filepath.Ext(header.Filename)))
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))

	// Process receipt
	receipt, err := s.service.ProcessUpload(r.Context(), header.Filename, data, contentType, r.FormValue("trip_id"))
	if err != nil {
		slog.Error("Error processing receipt", "filename", header.Filename, "error", err)
		setCORSHeaders(w)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": err.Error(),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(receipt); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleGetReceipt returns a single receipt
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Receipt ID required", http.StatusBadRequest)
		return
	}
	receipt, err := s.service.GetReceipt(id)
	if err != nil {
		corsError(w, "Receipt not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(receipt); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleGetReceiptImage returns one stored image of a receipt. The variant
// query selects the original upload, the warped display copy (the default)
// or the binarized OCR input.
func (s *Server) handleGetReceiptImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Receipt ID required", http.StatusBadRequest)
		return
	}
	variant := r.URL.Query().Get("variant")
	switch variant {
	case "", VariantOriginal, VariantWarped, VariantBinarized:
	default:
		corsError(w, "Unknown image variant", http.StatusBadRequest)
		return
	}

	data, contentType, err := s.service.GetReceiptImage(id, variant)
	if err != nil {
		corsError(w, "Image not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleUpdateReceipt edits a receipt's extracted fields
func (s *Server) handleUpdateReceipt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Receipt ID required", http.StatusBadRequest)
		return
	}

	var params UpdateReceiptParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	receipt, err := s.service.UpdateReceipt(id, params)
	if err != nil {
		if strings.Contains(err.Error(), "receipt not found") {
			corsError(w, "Receipt not found", http.StatusNotFound)
			return
		}
		slog.Error("Error updating receipt", "id", id, "error", err)
		setCORSHeaders(w)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": err.Error(),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(receipt); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleDeleteReceipt deletes a receipt
func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Receipt ID required", http.StatusBadRequest)
		return
	}
	if err := s.service.DeleteReceipt(id); err != nil {
		corsError(w, "Error deleting receipt", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleListTrips returns a list of all trips
func (s *Server) handleListTrips(w http.ResponseWriter, r *http.Request) {
	trips, err := s.service.ListTrips()
	if err != nil {
		slog.Error("Error listing trips", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Ensure we always return an array, not nil
	if trips == nil {
		trips = []*Trip{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(trips); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleCreateTrip handles trip creation
func (s *Server) handleCreateTrip(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	trip, err := s.service.CreateTrip(req.Name)
	if err != nil {
		slog.Error("Error creating trip", "error", err)
		setCORSHeaders(w)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": err.Error(),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(trip); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleGetTrip returns a trip with its receipts
func (s *Server) handleGetTrip(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Trip ID required", http.StatusBadRequest)
		return
	}
	trip, receipts, err := s.service.GetTripWithReceipts(id)
	if err != nil {
		corsError(w, "Trip not found", http.StatusNotFound)
		return
	}

	response := map[string]interface{}{
		"trip":     trip,
		"receipts": receipts,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleDeleteTrip deletes a trip and detaches its receipts
func (s *Server) handleDeleteTrip(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Trip ID required", http.StatusBadRequest)
		return
	}
	if err := s.service.DeleteTrip(id); err != nil {
		corsError(w, "Error deleting trip", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleVersion reports the running build's version
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"version": s.version}); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleStaticCSS serves the CSS file
func (s *Server) handleStaticCSS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/css")
	w.Write(appCSS)
}

// handleStaticJS serves the JavaScript file
func (s *Server) handleStaticJS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	// Use module MIME type for ES6 modules
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Write(appJS)
}
