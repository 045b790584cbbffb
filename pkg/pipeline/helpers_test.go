package pipeline_test

import (
	"context"

	"github.com/arkhamforge/docintel/pkg/models"
	"github.com/arkhamforge/docintel/pkg/pipeline"
)

type fakeEntityStore struct {
	saved map[string][]models.EntityMention
}

func (f *fakeEntityStore) SaveMentions(ctx context.Context, documentID string, mentions []models.EntityMention) error {
	if f.saved == nil {
		f.saved = make(map[string][]models.EntityMention)
	}
	f.saved[documentID] = mentions
	return nil
}

type fakeVectorStore struct {
	collections map[string]int
	saved       []models.Vector
}

func (f *fakeVectorStore) EnsureCollection(ctx context.Context, collection string, dimensions int) error {
	if f.collections == nil {
		f.collections = make(map[string]int)
	}
	f.collections[collection] = dimensions
	return nil
}

func (f *fakeVectorStore) SaveVector(ctx context.Context, v models.Vector) error {
	f.saved = append(f.saved, v)
	return nil
}

type fakeNEREngine struct {
	entities []pipeline.RawEntity
	err      error
}

func (f *fakeNEREngine) Extract(ctx context.Context, text string) ([]pipeline.RawEntity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.entities, nil
}

type fakeEmbedEngine struct {
	model string
	dims  int
	err   error
}

func (f *fakeEmbedEngine) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dims)
	}
	return out, nil
}

func (f *fakeEmbedEngine) Model() string     { return f.model }
func (f *fakeEmbedEngine) Dimensions() int   { return f.dims }

type fakeOCREngine struct {
	result pipeline.OCRResult
	err    error
}

func (f *fakeOCREngine) Recognize(ctx context.Context, imagePath string) (pipeline.OCRResult, error) {
	if f.err != nil {
		return pipeline.OCRResult{}, f.err
	}
	return f.result, nil
}
