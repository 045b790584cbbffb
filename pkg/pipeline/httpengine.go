package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPEngine is a uniform JSON/HTTP client implementing OCREngine,
// NEREngine, and EmbedEngine against an out-of-process model server
// declared by config.EngineConfig (Endpoint). One struct backs all
// three interfaces since every engine kind is the same "POST input,
// decode output" shape — only the payload differs.
type HTTPEngine struct {
	Endpoint   string
	ModelName  string
	EmbedDims  int
	HTTPClient *http.Client
}

// NewHTTPEngine constructs an HTTPEngine against endpoint with a
// sensible request timeout.
func NewHTTPEngine(endpoint, modelName string, dimensions int) *HTTPEngine {
	return &HTTPEngine{
		Endpoint:  endpoint,
		ModelName: modelName,
		EmbedDims: dimensions,
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (e *HTTPEngine) post(ctx context.Context, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal engine request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build engine request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("engine request to %s: %w", e.Endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("engine %s returned status %d", e.Endpoint, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Recognize implements OCREngine.
func (e *HTTPEngine) Recognize(ctx context.Context, imagePath string) (OCRResult, error) {
	var out OCRResult
	if err := e.post(ctx, map[string]string{"image_path": imagePath}, &out); err != nil {
		return OCRResult{}, err
	}
	return out, nil
}

// Extract implements NEREngine.
func (e *HTTPEngine) Extract(ctx context.Context, text string) ([]RawEntity, error) {
	var out struct {
		Entities []RawEntity `json:"entities"`
	}
	if err := e.post(ctx, map[string]string{"text": text}, &out); err != nil {
		return nil, err
	}
	return out.Entities, nil
}

// Embed implements EmbedEngine.
func (e *HTTPEngine) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.post(ctx, map[string][]string{"texts": texts}, &out); err != nil {
		return nil, err
	}
	if len(out.Embeddings) == 0 {
		return nil, fmt.Errorf("engine %s returned no embeddings for %d texts", e.Endpoint, len(texts))
	}
	return out.Embeddings, nil
}

// Model implements EmbedEngine.
func (e *HTTPEngine) Model() string { return e.ModelName }

// Dimensions implements EmbedEngine.
func (e *HTTPEngine) Dimensions() int { return e.EmbedDims }
