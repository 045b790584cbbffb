package e2e

import (
	"context"
	"sync"

	"github.com/arkhamforge/docintel/pkg/pipeline"
)

// ScriptedOCREngine returns a fixed, pre-scripted result (or error) for
// every Recognize call, letting a scenario drive the fast/heavy engine
// fallback rule deterministically — exactly the lever a real PaddleOCR
// vs. a vision-LM pair gives an operator, just without either binary.
type ScriptedOCREngine struct {
	mu       sync.Mutex
	Result   pipeline.OCRResult
	Err      error
	Requests []string // imagePath for every call, in order
}

func (e *ScriptedOCREngine) Recognize(ctx context.Context, imagePath string) (pipeline.OCRResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Requests = append(e.Requests, imagePath)
	if e.Err != nil {
		return pipeline.OCRResult{}, e.Err
	}
	return e.Result, nil
}

// ScriptedNEREngine returns a fixed entity list for every Extract call.
type ScriptedNEREngine struct {
	mu       sync.Mutex
	Entities []pipeline.RawEntity
	Err      error
	Requests []string // text for every call, in order
}

func (e *ScriptedNEREngine) Extract(ctx context.Context, text string) ([]pipeline.RawEntity, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Requests = append(e.Requests, text)
	if e.Err != nil {
		return nil, e.Err
	}
	return e.Entities, nil
}

// ScriptedEmbedEngine returns deterministic, zero-valued vectors of a
// fixed dimensionality for every Embed call, enough to exercise vector
// collection creation and storage without a real embedding model.
type ScriptedEmbedEngine struct {
	mu        sync.Mutex
	ModelName string
	Dims      int
	Err       error
	Requests  [][]string // texts for every call, in order
}

func (e *ScriptedEmbedEngine) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Requests = append(e.Requests, texts)
	if e.Err != nil {
		return nil, e.Err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, e.Dims)
	}
	return out, nil
}

func (e *ScriptedEmbedEngine) Model() string   { return e.ModelName }
func (e *ScriptedEmbedEngine) Dimensions() int { return e.Dims }

// ScriptedEngines bundles one scripted engine per kind, with defaults
// tuned so a scenario that doesn't care about OCR/NER/embedding behavior
// still gets a plausible, always-succeeding pipeline run. A scenario
// mutates the relevant field's Result/Entities/Err directly (these are
// value-initialized, not behind a constructor script queue, since no
// docintel scenario so far needs more than one scripted response per
// engine per test).
type ScriptedEngines struct {
	OCRFast  *ScriptedOCREngine
	OCRHeavy *ScriptedOCREngine
	NER      *ScriptedNEREngine
	Embed    *ScriptedEmbedEngine
}

// NewScriptedEngines returns engines that all succeed: high-confidence
// OCR on both tiers, no entities, and 8-dimensional embeddings.
func NewScriptedEngines() *ScriptedEngines {
	return &ScriptedEngines{
		OCRFast:  &ScriptedOCREngine{Result: pipeline.OCRResult{Text: "scripted fast ocr text", Confidence: 0.95}},
		OCRHeavy: &ScriptedOCREngine{Result: pipeline.OCRResult{Text: "scripted heavy ocr text", Confidence: 0.98}},
		NER:      &ScriptedNEREngine{},
		Embed:    &ScriptedEmbedEngine{ModelName: "scripted-embed", Dims: 8},
	}
}
