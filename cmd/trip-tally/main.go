package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Timmybu/Trip-Tally/internal/ocr"
	"github.com/Timmybu/Trip-Tally/internal/receipt"
	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A .env file is optional; explicit env vars and flags win
	_ = godotenv.Load()

	fs := ff.NewFlagSet("trip-tally")
	var (
		listenAddr  = fs.StringLong("listen", ":8080", "HTTP listen address")
		dbPath      = fs.StringLong("db", "trip-tally.db", "Database file path")
		uploadsDir  = fs.StringLong("uploads", "uploads", "Upload directory path")
		ocrEngine   = fs.StringLong("ocr-engine", "read", "OCR engine: 'read' or 'gemini'")
		ocrEndpoint = fs.StringLong("ocr-endpoint", "", "Read OCR service base URL")
		ocrKey      = fs.StringLong("ocr-key", "", "Read OCR service subscription key")
		geminiKey   = fs.StringLong("gemini-api-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		basicAuth   = fs.StringLong("basic-auth", "", "Basic auth credentials as user:pass (optional)")
		showVersion = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("TRIP_TALLY"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// Initialize database
	slog.Info("Initializing database...")
	db, err := receipt.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize OCR engine based on type
	var engine ocr.Engine
	switch *ocrEngine {
	case "read":
		if *ocrEndpoint == "" {
			slog.Error("Read endpoint is required. Set --ocr-endpoint flag or TRIP_TALLY_OCR_ENDPOINT environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Read OCR client...", "endpoint", *ocrEndpoint)
		engine = ocr.NewReadClient(ocr.ReadConfig{
			Endpoint: *ocrEndpoint,
			Key:      *ocrKey,
		})
	case "gemini":
		// Get Gemini API key from flag or environment
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-api-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini OCR engine...", "model", *geminiModel)
		engine, err = ocr.NewGeminiEngine(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid OCR engine", "engine", *ocrEngine, "valid", "read or gemini")
		os.Exit(1)
	}
	defer engine.Close()

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := receipt.NewLocalStorage(*uploadsDir)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	// Initialize service
	receiptService := receipt.NewService(db, engine, store)

	// Initialize server
	auth := receipt.BasicAuth{}
	if *basicAuth != "" {
		username, password, ok := strings.Cut(*basicAuth, ":")
		if !ok {
			slog.Error("Invalid basic auth format", "expected", "user:pass")
			os.Exit(1)
		}
		auth = receipt.BasicAuth{Username: username, Password: password}
	}
	server := receipt.NewServer(receiptService, auth, version)

	// Start server in goroutine
	go func() {
		if err := server.Start(*listenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", *listenAddr))
	if auth.Username != "" {
		slog.Info("Basic auth enabled", "user", auth.Username)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Shutdown error", "error", err)
	}
}
