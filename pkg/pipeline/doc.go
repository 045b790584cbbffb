// Package pipeline implements the document processing DAG's stage
// handlers: Extract, OCR, Normalize, NER, Chunk, Embed.
// Each handler satisfies pkg/worker.Handler so a Pool can dispatch jobs
// to it directly; stages are coupled to each other only through the
// event bus's stage.<name>.completed topics, never by calling one
// another, keeping "what runs a step" separate from "what decides the
// next step" (pkg/worker.Dispatcher).
package pipeline
