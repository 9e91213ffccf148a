package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// geminiPrompt asks for a verbatim transcription rather than a summary, so
// the downstream field heuristics see the receipt as printed.
const geminiPrompt = `Transcribe all text in this receipt image.
Return every printed line as its own line of plain text, in reading order from top to bottom.
Do not add commentary, labels, or markdown. Output the text exactly as printed.`

// GeminiEngine implements the Engine interface using Google Gemini
type GeminiEngine struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiEngine creates a new Gemini OCR engine instance
func NewGeminiEngine(apiKey string, modelName string) (*GeminiEngine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &GeminiEngine{
		client: client,
		model:  client.GenerativeModel(modelName),
	}, nil
}

// Recognize sends the image to Gemini and splits the transcription into
// lines. The image data must be PNG encoded.
func (g *GeminiEngine) Recognize(ctx context.Context, imageData []byte) ([]TextLine, error) {
	parts := []genai.Part{
		genai.ImageData("png", imageData),
		genai.Text(geminiPrompt),
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from gemini")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	var lines []TextLine
	for _, line := range strings.Split(text.String(), "\n") {
		line = strings.TrimSpace(line)
		// Drop markdown fences some models wrap output in
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		lines = append(lines, TextLine{Text: line})
	}
	return lines, nil
}

// Close closes the Gemini client
func (g *GeminiEngine) Close() error {
	return g.client.Close()
}
